package rules

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/liamcoop/excedencia/internal/logger"
)

const redisKeyPrefix = "excedencia:outcome:"

// RedisOutcomeCache implements OutcomeCache using Redis, so several calculator
// processes can share evaluated outcomes. Redis failures degrade to cache misses.
type RedisOutcomeCache struct {
	client *redis.Client
	config CacheConfig
}

// NewRedisOutcomeCache creates a new cache backed by Redis
func NewRedisOutcomeCache(addr string, password string, db int, config CacheConfig) *RedisOutcomeCache {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisOutcomeCache{client: rdb, config: config}
}

// Ping checks connectivity with the Redis server
func (c *RedisOutcomeCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Get retrieves a cached payload
func (c *RedisOutcomeCache) Get(ctx context.Context, key string) ([]byte, bool) {
	payload, err := c.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Warn("outcome cache read failed", "error", err)
		}
		return nil, false
	}
	return payload, true
}

// Set stores a payload, expiring it after the configured TTL (0 keeps it forever)
func (c *RedisOutcomeCache) Set(ctx context.Context, key string, payload []byte) {
	if err := c.client.Set(ctx, redisKeyPrefix+key, payload, c.config.TTL).Err(); err != nil {
		logger.Warn("outcome cache write failed", "error", err)
	}
}

// Invalidate deletes every outcome key written by this cache
func (c *RedisOutcomeCache) Invalidate(ctx context.Context) {
	iter := c.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			logger.Warn("outcome cache invalidation failed", "key", iter.Val(), "error", err)
		}
	}
	if err := iter.Err(); err != nil {
		logger.Warn("outcome cache scan failed", "error", err)
	}
}

// Close releases the Redis connection pool
func (c *RedisOutcomeCache) Close() error {
	return c.client.Close()
}
