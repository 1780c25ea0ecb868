package database

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/storefront/core/internal/infrastructure/config"
	"github.com/storefront/core/internal/infrastructure/logger"
)

// NewRedis connects to redis, retrying with exponential backoff until the
// server answers a PING or cfg.ConnectRetries attempts have failed.
func NewRedis(ctx context.Context, cfg config.RedisConfig, appLogger *logger.Logger) (*redis.Client, error) {
	maxRetries := cfg.ConnectRetries
	if maxRetries < 1 {
		maxRetries = 1
	}
	retryDelay := 500 * time.Millisecond

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.GetAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     cfg.PoolSize,
	})

	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		if err = client.Ping(ctx).Err(); err == nil {
			appLogger.Infow("Redis connected", "address", cfg.GetAddr(), "db", cfg.DB)
			return client, nil
		}

		appLogger.Warnw("Redis connection failed", "attempt", attempt, "max_attempts", maxRetries, "error", err)
		if attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			client.Close()
			return nil, ctx.Err()
		case <-time.After(retryDelay):
		}
		retryDelay *= 2
	}

	client.Close()
	return nil, fmt.Errorf("failed to connect to redis after %d attempts: %w", maxRetries, err)
}
