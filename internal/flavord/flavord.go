// Package flavord 提供 flavord 服务器的主入口和初始化逻辑
package flavord

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jimmicro/grace"
	"github.com/jimyag/flavord/internal/flavord/api"
	"github.com/jimyag/flavord/internal/flavord/config"
	"github.com/jimyag/flavord/internal/flavord/legacy"
	"github.com/jimyag/flavord/internal/flavord/repository"
	"github.com/jimyag/flavord/internal/flavord/service"
	"github.com/rs/zerolog"
)

type Server struct {
	cfg         *config.Config
	api         *api.API
	repo        *repository.Repository
	legacyStore legacy.Store
}

func New(cfg *config.Config) (*Server, error) {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	zerolog.DefaultContextLogger = &logger

	// 1. 打开主库（API 库）
	repo, err := repository.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open primary database: %w", err)
	}
	logger.Info().Str("path", cfg.DBPath).Msg("Primary database opened")

	// 2. 打开 legacy 库（可选，迁移完成后不再配置）
	var legacyStore legacy.Store
	if cfg.LegacyDBPath != "" {
		legacyStore, err = legacy.New(cfg.LegacyDBPath)
		if err != nil {
			return nil, fmt.Errorf("open legacy database: %w", err)
		}
		logger.Info().Str("path", cfg.LegacyDBPath).Msg("Legacy database opened, serving merged view")
	}

	// 3. 创建 Flavor Service
	flavorService := service.NewFlavorService(repo, legacyStore)

	// 4. 创建 API
	apiInstance, err := api.New(flavorService, cfg.Address)
	if err != nil {
		return nil, err
	}

	return &Server{
		cfg:         cfg,
		api:         apiInstance,
		repo:        repo,
		legacyStore: legacyStore,
	}, nil
}

func (s *Server) Run(ctx context.Context) error {
	// 使用 grace.Shepherd 管理服务生命周期
	services := []grace.Grace{
		s.api,
	}

	shepherd := grace.NewShepherd(
		services,
		grace.WithTimeout(30*time.Second),
		grace.WithLogger(&zerologLogger{}),
	)

	shepherd.Start(ctx)
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	if err := s.api.Shutdown(ctx); err != nil {
		return err
	}
	if s.legacyStore != nil {
		if err := s.legacyStore.Close(); err != nil {
			return err
		}
	}
	return s.repo.Close()
}

// Name 实现 grace.Grace 接口
func (s *Server) Name() string {
	return "Flavord Server"
}

// zerologLogger 实现 grace.Logger 接口
type zerologLogger struct{}

func (l *zerologLogger) Info(msg string, args ...interface{}) {
	logger := zerolog.DefaultContextLogger.Info()
	if len(args) > 0 {
		logger.Msgf(msg, args...)
	} else {
		logger.Msg(msg)
	}
}

func (l *zerologLogger) Error(msg string, args ...interface{}) {
	logger := zerolog.DefaultContextLogger.Error()
	if len(args) > 0 {
		logger.Msgf(msg, args...)
	} else {
		logger.Msg(msg)
	}
}
