package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	cfgpkg "github.com/taoyao-code/iot-node/internal/config"
	"github.com/taoyao-code/iot-node/internal/registry"
	"github.com/taoyao-code/iot-node/internal/storage/gormrepo"
	pgstorage "github.com/taoyao-code/iot-node/internal/storage/pg"
)

// Registry 协调端注册表及其资源
type Registry struct {
	registry.Registry
	Pool  *pgxpool.Pool // memory 模式为 nil
	close func()
}

// Close 释放数据库资源
func (r *Registry) Close() {
	if r.close != nil {
		r.close()
	}
}

// OpenRegistry 按配置打开注册表；postgres 模式下按需自动迁移
func OpenRegistry(ctx context.Context, cfg *cfgpkg.Config, log *zap.Logger) (*Registry, error) {
	if cfg.Coordinator.Registry != "postgres" {
		log.Info("using in-memory node registry")
		return &Registry{Registry: registry.NewMemoryRegistry()}, nil
	}

	pool, err := pgstorage.NewPool(ctx, cfg.Database, log)
	if err != nil {
		log.Error("db connect error", zap.Error(err))
		return nil, err
	}
	db, sqlDB, err := pgstorage.OpenGorm(pool)
	if err != nil {
		pool.Close()
		return nil, err
	}
	repo := gormrepo.New(db)
	if cfg.Database.AutoMigrate {
		if err := repo.Migrate(ctx); err != nil {
			_ = sqlDB.Close()
			pool.Close()
			return nil, fmt.Errorf("migrate nodes table: %w", err)
		}
		log.Info("db migrations applied")
	}
	return &Registry{
		Registry: repo,
		Pool:     pool,
		close: func() {
			_ = sqlDB.Close()
			pool.Close()
		},
	}, nil
}
