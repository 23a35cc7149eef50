package redisdb

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"go-triage/internal/config"
)

// NewClient returns a client for the configured redis, or nil when no
// address is set. Callers treat nil as "no sessions, no cache".
func NewClient(cfg *config.Config) *redis.Client {
	if cfg.Redis.Addr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
}

// Connect builds the client and checks it answers a ping.
func Connect(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	rdb := NewClient(cfg)
	if rdb == nil {
		log.Printf("[Redis] No address configured, fetch cache disabled")
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", cfg.Redis.Addr, err)
	}
	log.Printf("[Redis] Connected to %s (db %d)", cfg.Redis.Addr, cfg.Redis.DB)
	return rdb, nil
}
