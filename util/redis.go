package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PingRedis checks that client can reach its store within connectTimeout.
func PingRedis(ctx context.Context, client redis.UniversalClient, connectTimeout time.Duration) error {
	timeoutCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()
	_, err := client.Ping(timeoutCtx).Result()
	if err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}
	return nil
}
