package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	connectTimeout = 5 * time.Second

	// Every send attempt costs at least one limiter round trip, so the pool
	// is sized above the worker concurrency ceiling.
	minPoolSize  = 16
	minIdleConns = 2
)

// NewRedis connects using a redis:// URL and verifies the connection.
func NewRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	if opts.PoolSize < minPoolSize {
		opts.PoolSize = minPoolSize
	}
	if opts.MinIdleConns < minIdleConns {
		opts.MinIdleConns = minIdleConns
	}
	opts.DialTimeout = connectTimeout

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
