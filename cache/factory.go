package cache

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/isdmx/buildbox/config"
)

// NewFromConfig opens the store selected by cache.backend
func NewFromConfig(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.Cache.Backend {
	case config.CacheSQLite:
		store, err = OpenSQLite(cfg.Cache.Path)
	case config.CacheBolt:
		store, err = OpenBolt(cfg.Cache.Path)
	case config.CachePostgres:
		store, err = OpenPostgres(ctx, cfg.Cache.DSN)
	case config.CacheMemory:
		store = NewMemory()
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.Cache.Backend)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("result cache opened",
		zap.String("backend", cfg.Cache.Backend),
		zap.String("path", cfg.Cache.Path))
	return store, nil
}
