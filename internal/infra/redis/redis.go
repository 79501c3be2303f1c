// Package redis bootstraps the client backing the shared delivery rate
// limiter. It is only dialed when REDIS_URL is set; without it the limiter
// falls back to its in-memory window.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NewRedis parses url and returns a client verified with a ping, so a bad
// limiter backend fails startup instead of the first delivery.
func NewRedis(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}
