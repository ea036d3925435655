// Package ratelimit wraps domain.RateLimiter with the two-layer global/
// per-host admission policy described in §4.3, plus the introspection
// surface carried over from the original rate_limiter.py's get_stats/check.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/pricewatch/pricewatch/internal/domain"
)

const (
	window            = 60 * time.Second
	defaultGlobalCap  = 10
	defaultHostCap    = 10
	globalKey         = "global"
)

// HostStats is a point-in-time introspection snapshot for one host.
type HostStats struct {
	Host     string
	Limit    int
	Admitted int
}

// GlobalStats is the introspection snapshot for the global window.
type GlobalStats struct {
	Limit    int
	Admitted int
}

// Limiter enforces a global cap and a per-host cap, both sliding-window,
// backed by a domain.RateLimiter (typically cache/redis.RateLimiter).
type Limiter struct {
	backend    domain.RateLimiter
	globalCap  int
	defaultCap int

	mu       sync.Mutex
	hostCaps map[string]int
}

// New creates a Limiter with the given global and default per-host caps.
func New(backend domain.RateLimiter, globalCap, defaultHostCapOverride int) *Limiter {
	if globalCap <= 0 {
		globalCap = defaultGlobalCap
	}
	if defaultHostCapOverride <= 0 {
		defaultHostCapOverride = defaultHostCap
	}
	return &Limiter{
		backend:    backend,
		globalCap:  globalCap,
		defaultCap: defaultHostCapOverride,
		hostCaps:   make(map[string]int),
	}
}

// SetHostCap overrides the per-host cap for a host, typically sourced from
// Store.rate_limit_rpm.
func (l *Limiter) SetHostCap(host string, cap int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hostCaps[host] = cap
}

func (l *Limiter) hostCap(host string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	if cap, ok := l.hostCaps[host]; ok && cap > 0 {
		return cap
	}
	return l.defaultCap
}

// Acquire blocks until both the global and the per-host window admit a
// request for host. It returns a *domain.ScrapeError with RetryAfter if
// either wait exceeds the 30s budget (enforced inside the backend).
func (l *Limiter) Acquire(ctx context.Context, host string) error {
	if err := l.backend.Acquire(ctx, globalKey, l.globalCap, window); err != nil {
		return err
	}
	return l.backend.Acquire(ctx, host, l.hostCap(host), window)
}

// Allow reports admissibility for host without blocking, consulting only the
// per-host window.
func (l *Limiter) Allow(ctx context.Context, host string) (bool, error) {
	return l.backend.Allow(ctx, host, l.hostCap(host), window)
}

// Stats reports the configured caps (original source: rate_limiter.py
// get_stats/check introspection). It does not reflect live window
// occupancy, since the sliding-window state lives in Redis and is not
// enumerable through domain.RateLimiter's interface.
func (l *Limiter) Stats() (GlobalStats, map[string]HostStats) {
	l.mu.Lock()
	defer l.mu.Unlock()

	hosts := make(map[string]HostStats, len(l.hostCaps))
	for host, cap := range l.hostCaps {
		hosts[host] = HostStats{Host: host, Limit: cap}
	}
	return GlobalStats{Limit: l.globalCap}, hosts
}
