package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

type call struct {
	key   string
	limit int
}

type fakeBackend struct {
	acquireCalls []call
	allowCalls   []call
	acquireErr   map[string]error
	allowResult  map[string]bool
}

func (f *fakeBackend) Acquire(ctx context.Context, key string, limit int, window time.Duration) error {
	f.acquireCalls = append(f.acquireCalls, call{key, limit})
	return f.acquireErr[key]
}

func (f *fakeBackend) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	f.allowCalls = append(f.allowCalls, call{key, limit})
	return f.allowResult[key], nil
}

func TestNewAppliesDefaultCaps(t *testing.T) {
	l := New(&fakeBackend{}, 0, 0)
	if l.globalCap != defaultGlobalCap {
		t.Fatalf("globalCap = %d, want %d", l.globalCap, defaultGlobalCap)
	}
	if l.defaultCap != defaultHostCap {
		t.Fatalf("defaultCap = %d, want %d", l.defaultCap, defaultHostCap)
	}
}

func TestAcquireChecksGlobalThenHost(t *testing.T) {
	backend := &fakeBackend{}
	l := New(backend, 5, 2)

	if err := l.Acquire(context.Background(), "example.com"); err != nil {
		t.Fatalf("Acquire returned error: %v", err)
	}
	if len(backend.acquireCalls) != 2 {
		t.Fatalf("expected 2 acquire calls, got %d", len(backend.acquireCalls))
	}
	if backend.acquireCalls[0] != (call{globalKey, 5}) {
		t.Fatalf("first call = %+v, want global key with cap 5", backend.acquireCalls[0])
	}
	if backend.acquireCalls[1] != (call{"example.com", 2}) {
		t.Fatalf("second call = %+v, want host key with cap 2", backend.acquireCalls[1])
	}
}

func TestAcquireShortCircuitsOnGlobalFailure(t *testing.T) {
	wantErr := errors.New("global budget exceeded")
	backend := &fakeBackend{acquireErr: map[string]error{globalKey: wantErr}}
	l := New(backend, 5, 2)

	if err := l.Acquire(context.Background(), "example.com"); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if len(backend.acquireCalls) != 1 {
		t.Fatalf("expected the host check to be skipped, got %d calls", len(backend.acquireCalls))
	}
}

func TestSetHostCapOverridesDefault(t *testing.T) {
	backend := &fakeBackend{}
	l := New(backend, 5, 2)
	l.SetHostCap("slow.example.com", 1)

	if _, err := l.Allow(context.Background(), "slow.example.com"); err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if backend.allowCalls[0] != (call{"slow.example.com", 1}) {
		t.Fatalf("call = %+v, want host cap override of 1", backend.allowCalls[0])
	}

	if _, err := l.Allow(context.Background(), "other.example.com"); err != nil {
		t.Fatalf("Allow returned error: %v", err)
	}
	if backend.allowCalls[1] != (call{"other.example.com", 2}) {
		t.Fatalf("call = %+v, want default cap of 2 for an unconfigured host", backend.allowCalls[1])
	}
}

func TestStatsReportsConfiguredCaps(t *testing.T) {
	l := New(&fakeBackend{}, 5, 2)
	l.SetHostCap("example.com", 7)

	global, hosts := l.Stats()
	if global.Limit != 5 {
		t.Fatalf("global.Limit = %d, want 5", global.Limit)
	}
	if hosts["example.com"].Limit != 7 {
		t.Fatalf("hosts[example.com].Limit = %d, want 7", hosts["example.com"].Limit)
	}
}
