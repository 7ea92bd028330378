package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the byte-oriented key/value store used by [Resolver].
//
// Get returns [ErrCacheMiss] for absent keys. Any other error means the
// backend could not answer.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// RedisCache implements [Cache] on top of a go-redis client.
type RedisCache struct {
	redis redis.UniversalClient
}

// NewRedisCache wraps an existing client. The caller owns its lifecycle.
func NewRedisCache(rdb redis.UniversalClient) *RedisCache {
	return &RedisCache{redis: rdb}
}

// Get implements [Cache].
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.redis.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return data, nil
}

// Set implements [Cache]. A non-positive ttl stores the key without expiry.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.redis.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Delete implements [Cache]. Deleting absent keys is not an error.
func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.redis.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// Ping measures round-trip latency to Redis.
func (c *RedisCache) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return time.Since(start), nil
}

// NopCache never stores anything. Every Get is a miss.
type NopCache struct{}

// Get implements [Cache].
func (NopCache) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

// Set implements [Cache].
func (NopCache) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete implements [Cache].
func (NopCache) Delete(context.Context, ...string) error { return nil }
