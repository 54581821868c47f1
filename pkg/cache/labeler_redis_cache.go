// Package cache wraps Redis for raw byte values.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache is a thin key/value layer over a Redis client.
type RedisCache struct {
	client redis.UniversalClient
}

// NewRedisCache creates a Redis-backed cache.
func NewRedisCache(client redis.UniversalClient) *RedisCache {
	return &RedisCache{client: client}
}

// Get returns the raw value. found is false when the key does not exist.
func (c *RedisCache) Get(ctx context.Context, key string) (value []byte, found bool, err error) {
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Set stores value. A zero ttl keeps the key forever. A single SET is atomic.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
