// internal/pkg/ratelimit/redis_limiter.go
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RateLimiter is a fixed-window counter backed by Redis INCR/EXPIRE.
type RateLimiter struct {
	client *redis.Client
	prefix string
}

func NewRateLimiter(client *redis.Client) *RateLimiter {
	return &RateLimiter{client: client, prefix: "ratelimit"}
}

// Allow counts one hit for key and reports whether it is within max per window.
func (r *RateLimiter) Allow(ctx context.Context, key string, max int64, window time.Duration) (bool, error) {
	fullKey := fmt.Sprintf("%s:%s", r.prefix, key)

	count, err := r.client.Incr(ctx, fullKey).Result()
	if err != nil {
		return false, fmt.Errorf("failed to increment rate limit counter: %w", err)
	}

	// Set expiration on first hit
	if count == 1 {
		r.client.Expire(ctx, fullKey, window)
	}

	return count <= max, nil
}
