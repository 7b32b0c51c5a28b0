package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ophion/companion/internal/infrastructure/config"
	"github.com/ophion/companion/internal/infrastructure/logger"
)

const (
	maxConnectAttempts = 5
	initialRetryDelay  = 500 * time.Millisecond
)

// Connect opens a Redis client, retrying with exponential backoff until the
// server answers a ping or the attempts run out.
func Connect(ctx context.Context, cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	retryDelay := initialRetryDelay
	var lastErr error

	for attempt := 1; attempt <= maxConnectAttempts; attempt++ {
		client := redis.NewClient(&redis.Options{
			Addr:         cfg.GetAddr(),
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
			MinIdleConns: 2,
		})

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		lastErr = client.Ping(pingCtx).Err()
		cancel()
		if lastErr == nil {
			log.Infow("Redis connected", "addr", cfg.GetAddr(), "attempt", attempt)
			return client, nil
		}
		_ = client.Close()

		log.Warnw("Redis connection failed", "addr", cfg.GetAddr(), "attempt", attempt, "error", lastErr)
		if attempt == maxConnectAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
		retryDelay *= 2
	}

	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", maxConnectAttempts, lastErr)
}
