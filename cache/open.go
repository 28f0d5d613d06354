package cache

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/fabfab/billchat/config"
	"github.com/fabfab/billchat/database"
	"github.com/fabfab/billchat/logging"
)

// Open builds the gateway selected by cfg.Cache.Backend. The returned
// gateway owns its connections.
func Open(ctx context.Context, cfg config.Config, logger *zap.Logger) (Gateway, error) {
	logger = logging.OrNop(logger)

	switch cfg.Cache.Backend {
	case config.CacheBackendPostgres, "":
		pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		if err := database.EnsureCacheSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("response cache ready", zap.String("backend", config.CacheBackendPostgres))
		return NewPostgresGateway(pool, true), nil

	case config.CacheBackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		logger.Info("response cache ready", zap.String("backend", config.CacheBackendRedis))
		return NewRedisGateway(client, cfg.Cache.Retention()), nil

	case config.CacheBackendMemory:
		logger.Info("response cache ready", zap.String("backend", config.CacheBackendMemory))
		return NewMemoryGateway(), nil

	case config.CacheBackendNone:
		logger.Warn("response cache disabled")
		return NoopGateway{}, nil

	default:
		return nil, fmt.Errorf("unsupported cache backend %q", cfg.Cache.Backend)
	}
}
