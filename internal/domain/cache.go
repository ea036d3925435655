package domain

import (
	"context"
	"time"
)

// RateLimiter provides sliding-window admission control, global and
// per-host (§4.3).
type RateLimiter interface {
	// Allow reports whether a request for key is permitted right now under
	// the sliding window, without blocking.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	// Acquire blocks until a slot is free, up to a 30s internal budget; past
	// that it returns an error carrying RetryAfter.
	Acquire(ctx context.Context, key string, limit int, window time.Duration) error
}

// LockManager provides distributed locking for cross-process coordination.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// TokenBudget tracks the shared daily LLM token ceiling (§5) with UTC
// midnight rollover.
type TokenBudget interface {
	// Reserve debits n tokens from the remaining daily budget. It returns
	// ErrBudgetExceeded if n would exceed what remains today.
	Reserve(ctx context.Context, n int) error
	Remaining(ctx context.Context) (int, error)
}
