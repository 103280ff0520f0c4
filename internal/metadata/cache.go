package metadata

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// SharedCache stores raw documents by content identifier across processes.
type SharedCache interface {
	Get(ctx context.Context, cid string) ([]byte, bool, error)
	Set(ctx context.Context, cid string, raw []byte) error
}

// DefaultRedisTTL bounds how long documents stay in Redis. Content is
// immutable; the TTL only bounds memory.
const DefaultRedisTTL = 24 * time.Hour

const redisKeyPrefix = "juicescan:metadata:"

// RedisCache is a SharedCache backed by Redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache creates a cache from a redis:// URL.
func NewRedisCache(url string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisCacheFromClient(redis.NewClient(opts), ttl), nil
}

// NewRedisCacheFromClient wraps an existing client.
func NewRedisCacheFromClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisCache{client: client, ttl: ttl}
}

// Get returns the cached document.
func (c *RedisCache) Get(ctx context.Context, cid string) ([]byte, bool, error) {
	raw, err := c.client.Get(ctx, redisKeyPrefix+cid).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	return raw, true, nil
}

// Set stores a document.
func (c *RedisCache) Set(ctx context.Context, cid string, raw []byte) error {
	if err := c.client.Set(ctx, redisKeyPrefix+cid, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
