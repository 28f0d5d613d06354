package cache

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fabfab/billchat/config"
	"github.com/fabfab/billchat/database"
)

func requireIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_DB_INTEGRATION_TESTS") != "1" {
		t.Skip("set RUN_DB_INTEGRATION_TESTS=1 to run database-backed tests")
	}
}

func exerciseGateway(t *testing.T, gateway Gateway) {
	t.Helper()
	ctx := context.Background()
	bill := fmt.Sprintf("integration-%d", time.Now().UnixNano())
	direct := Key{Bill: bill, Query: "Who pays?", Variant: VariantDirect}
	chunked := Key{Bill: bill, Query: "Who pays?", Variant: VariantChunked}

	require.NoError(t, gateway.Store(ctx, direct, "first"))
	require.NoError(t, gateway.Store(ctx, direct, "second"))

	entry, found, err := gateway.Lookup(ctx, direct)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "second", entry.Answer)
	assert.False(t, entry.UpdatedAt.Before(entry.CreatedAt))

	_, found, err = gateway.Lookup(ctx, chunked)
	require.NoError(t, err)
	assert.False(t, found)

	removed, err := gateway.Sweep(ctx, 0)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, removed, int64(1))

	_, found, err = gateway.Lookup(ctx, direct)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestPostgresGatewayIntegration(t *testing.T) {
	requireIntegration(t)
	cfg := config.Load()
	ctx := context.Background()

	pool, err := database.NewPostgresPool(ctx, cfg.PostgresDSN)
	require.NoError(t, err)
	require.NoError(t, database.EnsureCacheSchema(ctx, pool))

	gateway := NewPostgresGateway(pool, true)
	defer gateway.Close()

	exerciseGateway(t, gateway)
}

func TestRedisGatewayIntegration(t *testing.T) {
	requireIntegration(t)
	cfg := config.Load()

	opts, err := redis.ParseURL(cfg.RedisURL)
	require.NoError(t, err)
	gateway := NewRedisGateway(redis.NewClient(opts), time.Hour)
	defer gateway.Close()

	exerciseGateway(t, gateway)
}

func TestOpenSelectsBackend(t *testing.T) {
	ctx := context.Background()

	gateway, err := Open(ctx, config.Config{Cache: config.CacheConfig{Backend: config.CacheBackendMemory}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &MemoryGateway{}, gateway)

	gateway, err = Open(ctx, config.Config{Cache: config.CacheConfig{Backend: config.CacheBackendNone}}, nil)
	require.NoError(t, err)
	assert.IsType(t, NoopGateway{}, gateway)

	_, err = Open(ctx, config.Config{Cache: config.CacheConfig{Backend: "memcached"}}, nil)
	assert.ErrorContains(t, err, "unsupported cache backend")

	_, err = Open(ctx, config.Config{RedisURL: "://bad", Cache: config.CacheConfig{Backend: config.CacheBackendRedis}}, nil)
	assert.Error(t, err)
}
