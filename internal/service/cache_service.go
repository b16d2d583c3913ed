package service

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache implements Cache over a go-redis client. Cache faults are
// logged and treated as misses so Redis outages never surface to callers.
type RedisCache struct {
	client  *redis.Client
	metrics *MetricsService
	logger  *zap.Logger
}

// NewRedisCache wraps the provided client. metrics may be nil.
func NewRedisCache(client *redis.Client, metrics *MetricsService, logger *zap.Logger) *RedisCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisCache{client: client, metrics: metrics, logger: logger}
}

// Get returns the cached value and whether it was present.
func (c *RedisCache) Get(ctx context.Context, key string) (string, bool) {
	val, err := c.client.Get(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			c.logger.Sugar().Warnw("cache get failed", "key", key, "error", err)
		}
		c.recordLookup(false)
		return "", false
	}
	c.recordLookup(true)
	return val, true
}

func (c *RedisCache) recordLookup(hit bool) {
	if c.metrics != nil {
		c.metrics.RecordCacheOperation(hit)
	}
}

// Set stores the value with a TTL.
func (c *RedisCache) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.logger.Sugar().Warnw("cache set failed", "key", key, "error", err)
	}
}

// Delete evicts a key.
func (c *RedisCache) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.logger.Sugar().Warnw("cache delete failed", "key", key, "error", err)
	}
}
