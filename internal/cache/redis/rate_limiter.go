package redis

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pricewatch/pricewatch/internal/domain"
)

//go:embed scripts/sliding_window.lua
var slidingWindowLua string

// acquireMaxWait bounds how long Acquire will block waiting for a free slot
// before giving up (original source: rate_limiter.py RateLimiter.acquire,
// 30s ceiling).
const acquireMaxWait = 30 * time.Second

// acquirePollInterval is how often Acquire retries Allow while waiting.
const acquirePollInterval = 200 * time.Millisecond

// RateLimiter implements domain.RateLimiter using a sliding-window approach
// backed by a Redis sorted set and an atomic Lua script, providing both
// global (key="global") and per-host admission control (§4.3).
type RateLimiter struct {
	rdb           *redis.Client
	slidingWindow *redis.Script
}

// NewRateLimiter creates a RateLimiter backed by the given Client.
func NewRateLimiter(c *Client) *RateLimiter {
	return &RateLimiter{
		rdb:           c.Underlying(),
		slidingWindow: redis.NewScript(slidingWindowLua),
	}
}

func rateLimitKey(key string) string {
	return "ratelimit:" + key
}

// Allow checks whether a request for the given key is permitted under the
// sliding window rate limit, without blocking. It returns true if the
// request is allowed (and the request is counted), or false if the limit
// has been reached.
func (rl *RateLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	now := time.Now().UnixMicro()
	windowMicro := window.Microseconds()

	result, err := rl.slidingWindow.Run(
		ctx,
		rl.rdb,
		[]string{rateLimitKey(key)},
		now,
		windowMicro,
		limit,
	).Int64Slice()
	if err != nil {
		return false, fmt.Errorf("redis: rate limit allow %s: %w", key, err)
	}
	if len(result) < 2 {
		return false, fmt.Errorf("redis: rate limit allow %s: unexpected result length %d", key, len(result))
	}

	return result[0] == 1, nil
}

// Acquire blocks, polling Allow, until a slot is free or acquireMaxWait
// elapses, whichever comes first. Past that budget it returns a
// domain.ScrapeError carrying RetryAfter so callers can surface a
// rate-limited status instead of hanging indefinitely.
func (rl *RateLimiter) Acquire(ctx context.Context, key string, limit int, window time.Duration) error {
	deadline := time.Now().Add(acquireMaxWait)

	for {
		allowed, err := rl.Allow(ctx, key, limit, window)
		if err != nil {
			return err
		}
		if allowed {
			return nil
		}

		if time.Now().After(deadline) {
			return &domain.ScrapeError{
				Kind:       domain.ErrKindNetwork,
				Message:    "rate limit not released within wait budget",
				RetryAfter: int(window.Seconds()),
				Cause:      domain.ErrRateLimited,
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("redis: acquire rate limit %s: %w", key, ctx.Err())
		case <-time.After(acquirePollInterval):
		}
	}
}

// Compile-time interface check.
var _ domain.RateLimiter = (*RateLimiter)(nil)
