// Package cache holds the Redis-backed display-name cache and the request
// counters used for rate limiting.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the caching interface. Implementations must be safe for concurrent use.
type Cache interface {
	Ping(ctx context.Context) error
	SetDisplayName(ctx context.Context, userID, name string, ttl time.Duration) error
	GetDisplayName(ctx context.Context, userID string) (string, bool, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RedisCache implements Cache on go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a RedisCache from a Redis URL. It does not dial;
// call Ping to check connectivity.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close releases the underlying connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// SetDisplayName stores the resolved name of userID for ttl.
func (c *RedisCache) SetDisplayName(ctx context.Context, userID, name string, ttl time.Duration) error {
	return c.client.Set(ctx, DisplayNameKey(userID), name, ttl).Err()
}

// GetDisplayName returns the cached name of userID. A miss is not an error.
func (c *RedisCache) GetDisplayName(ctx context.Context, userID string) (string, bool, error) {
	val, err := c.client.Get(ctx, DisplayNameKey(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// IncrWithExpiry increments key and returns the new count. The expiry is set
// only when the key has none, so the count resets once per window rather than
// sliding with every hit.
func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
