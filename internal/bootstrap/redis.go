package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SkullXA/kaliun-connect-api/internal/config"
)

// initializeRateLimitRedisClient creates the shared Redis client for the
// rate limiter, or nil when the memory store is in use.
func initializeRateLimitRedisClient(cfg *config.Config) (*redis.Client, error) {
	if !cfg.EnableRateLimit || cfg.RateLimitStore != "redis" {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RateLimitRedisAddr,
		Password: cfg.RateLimitRedisPassword,
		DB:       cfg.RateLimitRedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to rate limit Redis at %s: %w", cfg.RateLimitRedisAddr, err)
	}

	return client, nil
}
