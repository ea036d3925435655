package healing

import (
	"context"
	"testing"
	"time"

	"github.com/pricewatch/pricewatch/internal/domain"
)

type fakeStoreRegistry struct {
	stores       []domain.Store
	updatedRates map[string]float64
}

func (f *fakeStoreRegistry) Lookup(ctx context.Context, d string) (domain.Store, error) {
	for _, s := range f.stores {
		if s.Domain == d {
			return s, nil
		}
	}
	return domain.Store{}, domain.ErrNotFound
}
func (f *fakeStoreRegistry) SelectorsFor(ctx context.Context, d string) (domain.SelectorSet, error) {
	s, err := f.Lookup(ctx, d)
	return s.Selectors, err
}
func (f *fakeStoreRegistry) RecordSuccess(ctx context.Context, d string, at time.Time) error { return nil }
func (f *fakeStoreRegistry) UpdateSelectors(ctx context.Context, d string, s domain.SelectorSet) error {
	return nil
}
func (f *fakeStoreRegistry) UpdateSuccessRate(ctx context.Context, d string, rate float64) error {
	if f.updatedRates == nil {
		f.updatedRates = make(map[string]float64)
	}
	f.updatedRates[d] = rate
	return nil
}
func (f *fakeStoreRegistry) Upsert(ctx context.Context, seed domain.Store) error { return nil }
func (f *fakeStoreRegistry) List(ctx context.Context) ([]domain.Store, error)    { return f.stores, nil }

type countingLogStore struct {
	fakeLogStore
	total, successful int64
}

func (c *countingLogStore) CountSince(ctx context.Context, storeDomain string, since time.Time) (int64, int64, error) {
	return c.total, c.successful, nil
}

func TestHealthCalculatorInsufficientSignal(t *testing.T) {
	stores := &fakeStoreRegistry{stores: []domain.Store{{Domain: "amazon.ca", Active: true}}}
	logs := &countingLogStore{total: 2, successful: 0}

	h := NewHealthCalculator(stores, logs)
	reports, err := h.ComputeAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 1 || !reports[0].IsHealthy || reports[0].SuccessRate != 1.0 {
		t.Fatalf("expected insufficient-signal store treated healthy at 1.0, got %+v", reports)
	}
}

func TestHealthCalculatorFlagsLowSuccessRate(t *testing.T) {
	stores := &fakeStoreRegistry{stores: []domain.Store{{Domain: "walmart.ca", Active: true}}}
	logs := &countingLogStore{total: 20, successful: 4}

	h := NewHealthCalculator(stores, logs)
	reports, err := h.ComputeAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 1 || reports[0].IsHealthy {
		t.Fatalf("expected unhealthy store flagged, got %+v", reports)
	}
	if stores.updatedRates["walmart.ca"] != 0.2 {
		t.Fatalf("expected persisted rate 0.2, got %v", stores.updatedRates)
	}
}

func TestHealthCalculatorSkipsInactiveStores(t *testing.T) {
	stores := &fakeStoreRegistry{stores: []domain.Store{{Domain: "dead.ca", Active: false}}}
	logs := &countingLogStore{total: 100, successful: 0}

	h := NewHealthCalculator(stores, logs)
	reports, err := h.ComputeAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(reports) != 0 {
		t.Fatalf("expected inactive store skipped, got %+v", reports)
	}
}
