package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/pricewatch/pricewatch/internal/domain"
	"github.com/pricewatch/pricewatch/internal/notify"
)

type fakeNotificationStore struct {
	created []domain.Notification
}

func (f *fakeNotificationStore) Create(ctx context.Context, n domain.Notification) (domain.Notification, error) {
	n.ID = "notif-1"
	f.created = append(f.created, n)
	return n, nil
}

func (f *fakeNotificationStore) Update(ctx context.Context, n domain.Notification) error { return nil }

func (f *fakeNotificationStore) LastSent(ctx context.Context, productID string, alertID *string, since time.Time) (domain.Notification, error) {
	return domain.Notification{}, errors.New("not found")
}

func (f *fakeNotificationStore) ListOlderThan(ctx context.Context, before time.Time) ([]domain.Notification, error) {
	return nil, nil
}

func (f *fakeNotificationStore) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func testApp() *App {
	return &App{logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

func TestRecordFailureDoesNotDemoteBelowThreshold(t *testing.T) {
	a := testApp()
	store := &fakeNotificationStore{}
	deps := &Dependencies{NotifyDisp: notify.NewDispatcher(store)}
	p := &domain.Product{ID: "p1", Status: domain.ProductStatusActive}

	a.recordFailure(context.Background(), deps, p, domain.ErrKindNetwork)
	a.recordFailure(context.Background(), deps, p, domain.ErrKindNetwork)

	if p.ConsecutiveFailures != 2 {
		t.Fatalf("ConsecutiveFailures = %d, want 2", p.ConsecutiveFailures)
	}
	if p.Status != domain.ProductStatusActive {
		t.Fatalf("Status = %v, want unchanged ACTIVE below the notify threshold", p.Status)
	}
	if len(store.created) != 0 {
		t.Fatalf("expected no notification below threshold, got %d", len(store.created))
	}
}

func TestRecordFailureDemotesToErrorOnHealableKindAtThreshold(t *testing.T) {
	a := testApp()
	store := &fakeNotificationStore{}
	deps := &Dependencies{NotifyDisp: notify.NewDispatcher(store)}
	p := &domain.Product{ID: "p1", Status: domain.ProductStatusActive}

	for i := 0; i < 3; i++ {
		a.recordFailure(context.Background(), deps, p, domain.ErrKindParseFailure)
	}

	if p.ConsecutiveFailures != 3 {
		t.Fatalf("ConsecutiveFailures = %d, want 3", p.ConsecutiveFailures)
	}
	if p.Status != domain.ProductStatusError {
		t.Fatalf("Status = %v, want ERROR for a healable kind at the threshold", p.Status)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected exactly one product_error notification, got %d", len(store.created))
	}
}

func TestRecordFailureDemotesToNeedsAttentionOnNonHealableKindAtThreshold(t *testing.T) {
	a := testApp()
	store := &fakeNotificationStore{}
	deps := &Dependencies{NotifyDisp: notify.NewDispatcher(store)}
	p := &domain.Product{ID: "p1", Status: domain.ProductStatusActive}

	for i := 0; i < 3; i++ {
		a.recordFailure(context.Background(), deps, p, domain.ErrKindBlockedTerminal)
	}

	if p.Status != domain.ProductStatusNeedsAttention {
		t.Fatalf("Status = %v, want NEEDS_ATTENTION for a non-healable kind at the threshold", p.Status)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected exactly one product_error notification, got %d", len(store.created))
	}
}

func TestRecordFailureOnlyNotifiesOnceAtThreshold(t *testing.T) {
	a := testApp()
	store := &fakeNotificationStore{}
	deps := &Dependencies{NotifyDisp: notify.NewDispatcher(store)}
	p := &domain.Product{ID: "p1", Status: domain.ProductStatusActive}

	for i := 0; i < 5; i++ {
		a.recordFailure(context.Background(), deps, p, domain.ErrKindBlockedTerminal)
	}

	if p.ConsecutiveFailures != 5 {
		t.Fatalf("ConsecutiveFailures = %d, want 5", p.ConsecutiveFailures)
	}
	if len(store.created) != 1 {
		t.Fatalf("expected notification only once at the threshold, got %d sends", len(store.created))
	}
}

func TestRecordFailureLeavesArchivedStatusAlone(t *testing.T) {
	a := testApp()
	store := &fakeNotificationStore{}
	deps := &Dependencies{NotifyDisp: notify.NewDispatcher(store)}
	p := &domain.Product{ID: "p1", Status: domain.ProductStatusArchived, ConsecutiveFailures: 2}

	a.recordFailure(context.Background(), deps, p, domain.ErrKindParseFailure)

	if p.Status != domain.ProductStatusArchived {
		t.Fatalf("Status = %v, want ARCHIVED left untouched", p.Status)
	}
}
