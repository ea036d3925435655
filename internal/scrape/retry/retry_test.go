package retry

import (
	"context"
	"errors"
	"testing"

	"github.com/pricewatch/pricewatch/internal/domain"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want domain.ErrorKind
	}{
		{"nil", nil, domain.ErrKindUnknown},
		{"scrape error kind wins", domain.NewScrapeError(domain.ErrKindRobotsBlocked, "disallowed"), domain.ErrKindRobotsBlocked},
		{"429 in message", errors.New("got status 429 too many requests"), domain.ErrKindBlocked},
		{"403 in message", errors.New("http 403 forbidden"), domain.ErrKindBlocked},
		{"404 in message", errors.New("404 page not found"), domain.ErrKindNotFound},
		{"timeout in message", errors.New("context deadline: timeout"), domain.ErrKindTimeout},
		{"connection in message", errors.New("dial tcp: connection refused"), domain.ErrKindNetwork},
		{"unrecognized", errors.New("boom"), domain.ErrKindUnknown},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.err); got != c.want {
				t.Fatalf("Classify(%v) = %v, want %v", c.err, got, c.want)
			}
		})
	}
}

func TestScheduleFor(t *testing.T) {
	if s := ScheduleFor(domain.ErrKindRobotsBlocked); s.MaxAttempts != 1 || len(s.Delays) != 1 {
		t.Fatalf("robots-blocked schedule = %+v, want single-attempt", s)
	}
	if s := ScheduleFor(domain.ErrKindBlocked); s.MaxAttempts != 3 {
		t.Fatalf("blocked schedule = %+v, want 3 attempts", s)
	}
	if s := ScheduleFor(domain.ErrKindPriceValidation); s.MaxAttempts != 2 {
		t.Fatalf("price-validation schedule = %+v, want 2 attempts", s)
	}
	if s := ScheduleFor(domain.ErrKindNotFound); s.MaxAttempts != 0 {
		t.Fatalf("not-found schedule = %+v, want 0 attempts", s)
	}
	if s := ScheduleFor(domain.ErrKindBlockedTerminal); s.MaxAttempts != 0 {
		t.Fatalf("blocked-terminal schedule = %+v, want 0 attempts", s)
	}
	if s := ScheduleFor(domain.ErrKindBlockedEvasive); s.MaxAttempts != 2 || len(s.Delays) != 2 {
		t.Fatalf("blocked-evasive schedule = %+v, want 2 attempts", s)
	}
	if s := ScheduleFor(domain.ErrorKind(999)); s.MaxAttempts != 0 || s.Delays != nil {
		t.Fatalf("unknown kind schedule = %+v, want zero value", s)
	}
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("attempts = %d, want 2", attempts)
	}
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		attempts++
		return errors.New("404 not found")
	})
	if err == nil {
		t.Fatal("expected error after exhausting a zero-retry schedule")
	}
	if attempts != 1 {
		t.Fatalf("attempts = %d, want 1 for a non-retryable kind", attempts)
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, func(ctx context.Context) error {
		attempts++
		if attempts == 1 {
			cancel()
		}
		return errors.New("dial tcp: connection refused")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestIsTerminal(t *testing.T) {
	if IsTerminal(nil) {
		t.Fatal("nil error must not be terminal")
	}
	if !IsTerminal(errors.New("404 missing")) {
		t.Fatal("not-found kind has a zero-attempt schedule and must be terminal")
	}
	if IsTerminal(errors.New("dial tcp: connection refused")) {
		t.Fatal("network kind has retries and must not be terminal")
	}
}
