// Package retry implements the configurable ErrorCategory -> delay schedule
// engine described in §4.7.
package retry

import (
	"context"
	"math/rand"
	"strings"
	"time"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// Schedule is the delay-in-seconds sequence tried for one error category,
// plus the max attempt count.
type Schedule struct {
	Delays      []int
	MaxAttempts int
}

// DefaultSchedules maps each ErrorKind to its retry schedule (§4.7).
var DefaultSchedules = map[domain.ErrorKind]Schedule{
	domain.ErrKindNetwork:         {Delays: []int{2, 4, 8}, MaxAttempts: 3},
	domain.ErrKindTimeout:         {Delays: []int{2, 4, 8}, MaxAttempts: 3},
	domain.ErrKindBlocked:         {Delays: []int{5, 10, 20}, MaxAttempts: 3},
	domain.ErrKindBlockedTerminal: {Delays: nil, MaxAttempts: 0},
	domain.ErrKindBlockedEvasive:  {Delays: []int{5, 5}, MaxAttempts: 2},
	domain.ErrKindNotFound:        {Delays: nil, MaxAttempts: 0},
}

// forbiddenSchedule backs robots.txt disallows: one delayed recheck, since a
// robots rule rarely changes within a single run.
var forbiddenSchedule = Schedule{Delays: []int{5}, MaxAttempts: 1}
var parseSchedule = Schedule{Delays: []int{2, 4}, MaxAttempts: 2}

// ScheduleFor returns the retry schedule for the classified kind.
func ScheduleFor(kind domain.ErrorKind) Schedule {
	switch kind {
	case domain.ErrKindPriceValidation, domain.ErrKindStructureChange, domain.ErrKindParseFailure:
		return parseSchedule
	case domain.ErrKindRobotsBlocked:
		return forbiddenSchedule
	}
	if s, ok := DefaultSchedules[kind]; ok {
		return s
	}
	return Schedule{Delays: nil, MaxAttempts: 0}
}

// Classify inspects an error's declared kind (if it carries a
// *domain.ScrapeError) and, failing that, its message for embedded status
// tokens, to produce an ErrorKind (§4.7).
func Classify(err error) domain.ErrorKind {
	if err == nil {
		return domain.ErrKindUnknown
	}
	if se, ok := domain.AsScrapeError(err); ok {
		return se.Kind
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "429"):
		return domain.ErrKindBlocked
	case strings.Contains(msg, "403"):
		return domain.ErrKindBlocked
	case strings.Contains(msg, "404"):
		return domain.ErrKindNotFound
	case strings.Contains(msg, "50") && strings.Contains(msg, "status"):
		return domain.ErrKindNetwork
	case strings.Contains(msg, "timeout"):
		return domain.ErrKindTimeout
	case strings.Contains(msg, "connection"):
		return domain.ErrKindNetwork
	default:
		return domain.ErrKindUnknown
	}
}

// Do runs fn, retrying on failure per the classified error's schedule, with
// ±20% jitter on each delay. It returns the last error if all attempts are
// exhausted.
func Do(ctx context.Context, fn func(ctx context.Context) error) error {
	var lastErr error
	attempt := 0

	for {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		lastErr = err

		kind := Classify(err)
		sched := ScheduleFor(kind)
		if attempt >= sched.MaxAttempts || attempt >= len(sched.Delays) {
			return lastErr
		}

		delay := jitter(sched.Delays[attempt])
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		attempt++
	}
}

func jitter(seconds int) time.Duration {
	base := float64(seconds)
	spread := base * 0.2
	delta := (rand.Float64()*2 - 1) * spread
	return time.Duration((base + delta) * float64(time.Second))
}

// IsTerminal reports whether the classified error should never be retried.
func IsTerminal(err error) bool {
	if err == nil {
		return false
	}
	return ScheduleFor(Classify(err)).MaxAttempts == 0
}
