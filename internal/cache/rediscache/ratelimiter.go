package rediscache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RateLimiter struct {
	c *redis.Client
}

func NewRateLimiter(c *redis.Client) *RateLimiter {
	return &RateLimiter{c: c}
}

// Allow increments the window counter and refreshes its TTL.
// Returns (allowed, currentCount).
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error) {
	pipe := rl.c.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, window)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return false, 0, errors.Wrap(err, "redis ratelimit")
	}
	n := incr.Val()
	return n <= limit, n, nil
}

// TTL reports how long the current window for key still lives.
func (rl *RateLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	d, err := rl.c.TTL(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrap(err, "redis ttl")
	}
	return d, nil
}
