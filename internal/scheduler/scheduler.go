// Package scheduler implements the cron-driven job runner of §4.10: four
// fixed system jobs (daily-scrape, store-health-recompute, healing-cycle,
// data-cleanup) plus the per-product/store Schedule override resolution
// that the daily-scrape job consults.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/pricewatch/pricewatch/internal/domain"
)

// minScheduleInterval is the floor enforced on any submitted Schedule's
// consecutive firings (§4.10 CRON semantics).
const minScheduleInterval = 24 * time.Hour

// missedFireGrace is the window within which a job whose scheduled firing
// was missed (process was down, or a prior run overran into the next slot)
// still gets coalesced into a single catch-up execution (§4.10).
const missedFireGrace = 3600 * time.Second

// JobFunc is one system job's body.
type JobFunc func(ctx context.Context) error

// Jobs groups the four handlers the Scheduler registers at startup. Each
// maps to a core job named in §4.10.
type Jobs struct {
	DailyScrape         JobFunc
	StoreHealthRecompute JobFunc
	HealingCycle        JobFunc
	DataCleanup         JobFunc
}

// Scheduler owns the process-wide cron.Cron instance and the ScheduleStore
// used to resolve per-product/store overrides.
type Scheduler struct {
	cron      *cron.Cron
	schedules domain.ScheduleStore
	logger    *slog.Logger
	jitter    time.Duration

	mu      sync.Mutex
	lastRun map[string]time.Time
}

// New builds a Scheduler. jitter bounds the random delay applied before
// daily-scrape fires (up to 1800s per §4.10); pass 0 to disable it. The
// other three jobs never jitter.
func New(schedules domain.ScheduleStore, logger *slog.Logger, jitter time.Duration) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		schedules: schedules,
		logger:    logger,
		jitter:    jitter,
		lastRun:   make(map[string]time.Time),
	}
}

// RegisterCoreJobs wires the four fixed system jobs of §4.10's table, each
// gated to at most 3 concurrent instances with excess firings dropped.
func (s *Scheduler) RegisterCoreJobs(ctx context.Context, jobs Jobs) error {
	specs := []struct {
		name   string
		cron   string
		jitter bool
		fn     JobFunc
	}{
		{"daily-scrape", "0 6 * * *", true, jobs.DailyScrape},
		{"store-health-recompute", "0 7 * * *", false, jobs.StoreHealthRecompute},
		{"healing-cycle", "0 8 * * *", false, jobs.HealingCycle},
		{"data-cleanup", "0 0 * * 0", false, jobs.DataCleanup},
	}

	for _, spec := range specs {
		spec := spec
		if spec.fn == nil {
			continue
		}
		runner := s.wrap(spec.name, spec.fn, spec.jitter)
		if _, err := s.cron.AddFunc(spec.cron, func() { runner(ctx) }); err != nil {
			return fmt.Errorf("scheduler: register %s: %w", spec.name, err)
		}
		if err := s.catchUpIfMissed(ctx, spec.name, spec.cron, runner); err != nil {
			s.logger.Warn("scheduler: catch-up check failed", "job", spec.name, "error", err)
		}
	}
	return nil
}

// wrap bounds concurrent executions of a job to 3 (§4.10 missed-fire
// policy), optionally sleeping a random jitter before running.
func (s *Scheduler) wrap(name string, fn JobFunc, useJitter bool) func(ctx context.Context) {
	sem := make(chan struct{}, 3)
	return func(ctx context.Context) {
		select {
		case sem <- struct{}{}:
		default:
			s.logger.Warn("scheduler: dropping firing, max concurrent instances reached", "job", name)
			return
		}
		defer func() { <-sem }()

		if useJitter && s.jitter > 0 {
			d := time.Duration(rand.Int63n(int64(s.jitter)))
			select {
			case <-time.After(d):
			case <-ctx.Done():
				return
			}
		}

		s.recordRun(name)
		if err := fn(ctx); err != nil {
			s.logger.Error("scheduler: job failed", "job", name, "error", err)
		}
	}
}

// catchUpIfMissed fires a job immediately, once, if its most recent expected
// firing falls within missedFireGrace of now and no run has been recorded
// since (coalescing any overlapping missed runs into this single catch-up).
func (s *Scheduler) catchUpIfMissed(ctx context.Context, name, cronExpr string, runner func(context.Context)) error {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return fmt.Errorf("parse cron %q: %w", cronExpr, err)
	}

	now := time.Now().UTC()
	expected := mostRecentFiring(schedule, now)
	if expected.IsZero() || now.Sub(expected) > missedFireGrace {
		return nil
	}

	s.mu.Lock()
	last := s.lastRun[name]
	s.mu.Unlock()
	if last.After(expected) {
		return nil
	}

	go runner(ctx)
	return nil
}

// mostRecentFiring walks backward from a lower bound to find the last time
// schedule would have fired at or before now.
func mostRecentFiring(schedule cron.Schedule, now time.Time) time.Time {
	t := now.Add(-48 * time.Hour)
	var last time.Time
	for i := 0; i < 1000; i++ {
		next := schedule.Next(t)
		if next.After(now) || next.IsZero() {
			break
		}
		last = next
		t = next
	}
	return last
}

func (s *Scheduler) recordRun(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastRun[name] = time.Now().UTC()
}

// Start begins firing registered jobs.
func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts new firings and waits for in-flight jobs to finish, honoring
// the scheduler shutdown grace described in §5.
func (s *Scheduler) Stop(ctx context.Context) {
	stopped := s.cron.Stop()
	select {
	case <-stopped.Done():
	case <-ctx.Done():
	}
}

// ValidateCronExpression parses a five-field standard cron expression and
// verifies its next two computed firings are at least minScheduleInterval
// apart (§4.10 CRON semantics), rejecting submissions that would fire more
// than once a day.
func ValidateCronExpression(expr string) error {
	schedule, err := cron.ParseStandard(expr)
	if err != nil {
		return fmt.Errorf("scheduler: invalid cron expression: %w", err)
	}
	first := schedule.Next(time.Now().UTC())
	second := schedule.Next(first)
	if second.Sub(first) < minScheduleInterval {
		return fmt.Errorf("scheduler: cron expression fires more than once per %s", minScheduleInterval)
	}
	return nil
}

// EffectiveNextRun resolves, and computes the next firing after now for,
// whichever Schedule applies to a product per the product > store > system
// default priority of §4.10.
func EffectiveNextRun(ctx context.Context, schedules domain.ScheduleStore, productID, storeDomain string, now time.Time, systemDefaultCron string) (time.Time, error) {
	sched, ok, err := schedules.EffectiveForProduct(ctx, productID, storeDomain)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduler: resolve effective schedule: %w", err)
	}
	expr := systemDefaultCron
	if ok {
		expr = sched.CronExpression
	}
	cronSchedule, err := cron.ParseStandard(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("scheduler: parse effective cron %q: %w", expr, err)
	}
	return cronSchedule.Next(now), nil
}
