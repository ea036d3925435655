package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/pricewatch/pricewatch/internal/domain"
)

func TestValidateCronExpressionRejectsSubDaily(t *testing.T) {
	if err := ValidateCronExpression("*/5 * * * *"); err == nil {
		t.Fatal("expected rejection of a sub-daily cron expression")
	}
}

func TestValidateCronExpressionAcceptsDaily(t *testing.T) {
	if err := ValidateCronExpression("0 6 * * *"); err != nil {
		t.Fatalf("expected daily cron to validate, got %v", err)
	}
}

func TestValidateCronExpressionRejectsGarbage(t *testing.T) {
	if err := ValidateCronExpression("not a cron"); err == nil {
		t.Fatal("expected error for malformed expression")
	}
}

type fakeScheduleStore struct {
	effective domain.Schedule
	has       bool
}

func (f *fakeScheduleStore) Create(ctx context.Context, s domain.Schedule) (domain.Schedule, error) {
	return s, nil
}
func (f *fakeScheduleStore) GetByID(ctx context.Context, id string) (domain.Schedule, error) {
	return domain.Schedule{}, nil
}
func (f *fakeScheduleStore) Update(ctx context.Context, s domain.Schedule) error    { return nil }
func (f *fakeScheduleStore) SoftDelete(ctx context.Context, id string) error        { return nil }
func (f *fakeScheduleStore) ListDue(ctx context.Context, now time.Time) ([]domain.Schedule, error) {
	return nil, nil
}
func (f *fakeScheduleStore) EffectiveForProduct(ctx context.Context, productID, storeDomain string) (domain.Schedule, bool, error) {
	return f.effective, f.has, nil
}

func TestEffectiveNextRunFallsBackToSystemDefault(t *testing.T) {
	store := &fakeScheduleStore{has: false}
	next, err := EffectiveNextRun(context.Background(), store, "p1", "amazon.ca", time.Now().UTC(), "0 6 * * *")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Hour() != 6 {
		t.Fatalf("expected system default 06:00 UTC firing, got %v", next)
	}
}

func TestEffectiveNextRunUsesOverride(t *testing.T) {
	store := &fakeScheduleStore{has: true, effective: domain.Schedule{CronExpression: "0 12 * * *"}}
	next, err := EffectiveNextRun(context.Background(), store, "p1", "amazon.ca", time.Now().UTC(), "0 6 * * *")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if next.Hour() != 12 {
		t.Fatalf("expected override 12:00 UTC firing, got %v", next)
	}
}
