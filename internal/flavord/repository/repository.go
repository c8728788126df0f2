// Package repository 提供主库（API 库）的数据持久化层实现
package repository

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jimyag/flavord/internal/flavord/repository/model"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite" // 纯 Go SQLite 驱动，不需要 CGO
)

// Repository 数据库仓库
type Repository struct {
	db *gorm.DB
}

// New 创建新的 Repository 实例
func New(dbPath string) (*Repository, error) {
	db, err := Open(dbPath)
	if err != nil {
		return nil, err
	}
	return &Repository{db: db}, nil
}

// Open 打开一个 flavor 库并完成迁移和索引创建
//
// 主库和 legacy 库的逻辑 schema 相同，legacy.New 也通过它打开自己的库文件。
func Open(dbPath string) (*gorm.DB, error) {
	// 确保数据库目录存在
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// 连接数据库（使用纯 Go SQLite 驱动，不需要 CGO）
	// 直接使用 database/sql + modernc.org/sqlite 创建连接，然后传递给 GORM
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// 使用 GORM 的 Dialector 包装已创建的 sql.DB 连接
	// TranslateError 让唯一约束冲突以 gorm.ErrDuplicatedKey 的形式返回，
	// create/upsert 的并发冲突检测依赖它
	db, err := gorm.Open(sqlite.Dialector{
		DriverName: "sqlite",
		DSN:        dbPath,
		Conn:       sqlDB,
	}, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("open gorm database: %w", err)
	}

	// 自动迁移
	if err := db.AutoMigrate(
		&model.Flavor{},
		&model.FlavorExtraSpec{},
		&model.FlavorProject{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	// 创建索引（GORM 的 AutoMigrate 可能不会创建所有索引，手动确保）
	if err := createIndexes(db); err != nil {
		return nil, fmt.Errorf("create indexes: %w", err)
	}

	return db, nil
}

// DB 返回 GORM 数据库实例（用于 Repository 实现）
func (r *Repository) DB() *gorm.DB {
	return r.db
}

// WithContext 返回带上下文的数据库实例
func (r *Repository) WithContext(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx)
}

// Close 关闭数据库连接
func (r *Repository) Close() error {
	if r.db == nil {
		return nil
	}
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// createIndexes 创建额外的索引和唯一约束
//
// 唯一性只约束未删除的记录，软删除后同一 flavorid/name 可以重建。
func createIndexes(db *gorm.DB) error {
	// flavors 表：flavorid 在未删除记录中唯一
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_flavors_flavorid_unique
		ON flavors(flavorid)
		WHERE deleted_at IS NULL
	`).Error; err != nil {
		return fmt.Errorf("create unique index on flavors(flavorid): %w", err)
	}

	// flavors 表：name 在未删除记录中唯一
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_flavors_name_unique
		ON flavors(name)
		WHERE deleted_at IS NULL
	`).Error; err != nil {
		return fmt.Errorf("create unique index on flavors(name): %w", err)
	}

	// flavor_extra_specs 表：同一 flavor 的同一 key 只能有一条未删除记录
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_flavor_extra_specs_unique
		ON flavor_extra_specs(flavor_id, key)
		WHERE deleted_at IS NULL
	`).Error; err != nil {
		return fmt.Errorf("create unique index on flavor_extra_specs: %w", err)
	}

	// flavor_projects 表：同一 flavor 的同一 project 只能有一条未删除记录
	if err := db.Exec(`
		CREATE UNIQUE INDEX IF NOT EXISTS idx_flavor_projects_unique
		ON flavor_projects(flavor_id, project_id)
		WHERE deleted_at IS NULL
	`).Error; err != nil {
		return fmt.Errorf("create unique index on flavor_projects: %w", err)
	}

	return nil
}
