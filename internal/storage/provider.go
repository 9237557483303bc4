// Package storage opens the configured profile.Store backend.
package storage

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/my-github-review/internal/config"
	"github.com/JakeFAU/my-github-review/internal/profile"
	"github.com/JakeFAU/my-github-review/internal/storage/memory"
	"github.com/JakeFAU/my-github-review/internal/storage/postgres"
	redisstore "github.com/JakeFAU/my-github-review/internal/storage/redis"
	"github.com/JakeFAU/my-github-review/internal/storage/sqlite"
)

// OpenProfileStore builds the backend named by cfg.Driver.
func OpenProfileStore(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (profile.Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("using in-memory profile store; state is lost on restart")
		return memory.NewProfileStore(), nil
	case config.DriverSQLite:
		store, err := sqlite.Open(ctx, sqlite.Config{Path: cfg.SQLitePath})
		if err != nil {
			return nil, fmt.Errorf("sqlite store init failed: %w", err)
		}
		logger.Info("using sqlite profile store", zap.String("path", cfg.SQLitePath))
		return store, nil
	case config.DriverPostgres:
		store, err := postgres.NewProfileStore(ctx, postgres.Config{
			DSN:         cfg.PostgresDSN,
			MaxConns:    cfg.PostgresMaxConns,
			AutoMigrate: cfg.AutoMigrate,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres store init failed: %w", err)
		}
		logger.Info("using postgres profile store", zap.Bool("auto_migrate", cfg.AutoMigrate))
		return store, nil
	case config.DriverRedis:
		store, err := redisstore.Open(ctx, redisstore.Config{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   cfg.RedisPrefix,
		}, redisstore.WithLogger(logger.Named("redis_store")))
		if err != nil {
			return nil, fmt.Errorf("redis store init failed: %w", err)
		}
		logger.Info("using redis profile store", zap.String("addr", cfg.RedisAddr), zap.String("prefix", cfg.RedisPrefix))
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
