package testing

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SetupTestRedis connects to TEST_REDIS_URL, redis://localhost:6379/15 by default.
// Nothing is flushed, so tests must use their own keys.
func SetupTestRedis() (*redis.Client, error) {
	opt, err := redis.ParseURL(getEnv("TEST_REDIS_URL", "redis://localhost:6379/15"))
	if err != nil {
		return nil, fmt.Errorf("invalid TEST_REDIS_URL: %w", err)
	}
	client := redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to test redis: %w", err)
	}
	return client, nil
}
