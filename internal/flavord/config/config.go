package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type Config struct {
	// DBPath 主库（API 库）的 SQLite 文件路径
	// 可以通过环境变量 FLAVORD_DB_PATH 配置
	// 默认：~/.local/share/flavord/flavord.db
	DBPath string `yaml:"db_path"`

	// LegacyDBPath legacy cell 库的 SQLite 文件路径
	// 为空表示迁移已完成，服务只挂主库
	// 可以通过环境变量 FLAVORD_LEGACY_DB_PATH 配置
	LegacyDBPath string `yaml:"legacy_db_path"`

	// Address HTTP 服务绑定地址
	// 可以通过环境变量 FLAVORD_ADDRESS 配置
	Address string `yaml:"address"`
}

// New 加载配置
// 优先级：环境变量 > FLAVORD_CONFIG 指向的 YAML 文件 > 默认值
func New() (*Config, error) {
	cfg := &Config{
		DBPath:  defaultDBPath(),
		Address: "0.0.0.0:7777",
	}

	if path := os.Getenv("FLAVORD_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if path := os.Getenv("FLAVORD_DB_PATH"); path != "" {
		cfg.DBPath = path
	}
	if path := os.Getenv("FLAVORD_LEGACY_DB_PATH"); path != "" {
		cfg.LegacyDBPath = path
	}
	if addr := os.Getenv("FLAVORD_ADDRESS"); addr != "" {
		cfg.Address = addr
	}
	return cfg, nil
}

// defaultDBPath 默认的主库路径
func defaultDBPath() string {
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "flavord", "flavord.db")
	}
	return filepath.Join(".", "data", "flavord.db")
}
