package healing

import (
	"context"
	"testing"
	"time"

	"github.com/pricewatch/pricewatch/internal/domain"
)

type fakeLogStore struct {
	latest domain.ScrapeLog
	recent []domain.ScrapeLog
}

func (f *fakeLogStore) Append(ctx context.Context, l domain.ScrapeLog) error { return nil }
func (f *fakeLogStore) LatestForProduct(ctx context.Context, productID string) (domain.ScrapeLog, error) {
	return f.latest, nil
}
func (f *fakeLogStore) RecentForProduct(ctx context.Context, productID string, limit int) ([]domain.ScrapeLog, error) {
	return f.recent, nil
}
func (f *fakeLogStore) CountSince(ctx context.Context, storeDomain string, since time.Time) (int64, int64, error) {
	return 0, 0, nil
}
func (f *fakeLogStore) ListOlderThan(ctx context.Context, before time.Time) ([]domain.ScrapeLog, error) {
	return nil, nil
}
func (f *fakeLogStore) DeleteOlderThan(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

func TestAnalyzeNeedsHealing(t *testing.T) {
	now := time.Now()
	logs := &fakeLogStore{latest: domain.ScrapeLog{ErrorType: domain.ErrKindParseFailure.String(), ScrapedAt: now}}
	d := NewDetector(logs, 5)

	p := domain.Product{ID: "p1", ConsecutiveFailures: 3, Status: domain.ProductStatusError}
	a, err := d.Analyze(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.NeedsHealing {
		t.Fatalf("expected needs_healing, got %+v", a)
	}
}

func TestAnalyzeBelowThresholdDoesNotHeal(t *testing.T) {
	now := time.Now()
	logs := &fakeLogStore{latest: domain.ScrapeLog{ErrorType: domain.ErrKindParseFailure.String(), ScrapedAt: now}}
	d := NewDetector(logs, 5)

	p := domain.Product{ID: "p1", ConsecutiveFailures: 1, Status: domain.ProductStatusError}
	a, err := d.Analyze(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.NeedsHealing {
		t.Fatalf("expected no healing below threshold, got %+v", a)
	}
}

func TestAnalyzeNonHealableEscalates(t *testing.T) {
	now := time.Now()
	logs := &fakeLogStore{latest: domain.ScrapeLog{ErrorType: domain.ErrKindBlocked.String(), ScrapedAt: now}}
	d := NewDetector(logs, 3)

	p := domain.Product{ID: "p1", ConsecutiveFailures: 4, Status: domain.ProductStatusError}
	a, err := d.Analyze(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.NeedsHealing {
		t.Fatalf("blocked is not healable, got %+v", a)
	}
	if !a.NeedsAttention {
		t.Fatalf("expected needs_attention once past non-healable limit, got %+v", a)
	}
}

func TestAnalyzePersistentNotFound(t *testing.T) {
	now := time.Now()
	logs := &fakeLogStore{
		latest: domain.ScrapeLog{ErrorType: domain.ErrKindNotFound.String(), ScrapedAt: now},
		recent: []domain.ScrapeLog{
			{ErrorType: domain.ErrKindNotFound.String(), ScrapedAt: now},
			{ErrorType: domain.ErrKindNotFound.String(), ScrapedAt: now.Add(-4 * 24 * time.Hour)},
		},
	}
	d := NewDetector(logs, 5)

	p := domain.Product{ID: "p1", ConsecutiveFailures: 1, Status: domain.ProductStatusError}
	a, err := d.Analyze(context.Background(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !a.NeedsAttention {
		t.Fatalf("expected needs_attention for persistent 404, got %+v", a)
	}
}
