package fetcher

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheKeyPrefix = "triage:fetch:"

// Cache stores fetched documents by URL.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache keeps fetched documents in redis.
type RedisCache struct {
	rdb *redis.Client
}

// NewRedisCache returns nil when rdb is nil so callers can pass the result
// straight to New.
func NewRedisCache(rdb *redis.Client) Cache {
	if rdb == nil {
		return nil
	}
	return &RedisCache{rdb: rdb}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	raw, err := c.rdb.Get(ctx, cacheKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, cacheKeyPrefix+key, value, ttl).Err()
}
