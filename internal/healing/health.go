package healing

import (
	"context"
	"fmt"
	"time"

	"github.com/pricewatch/pricewatch/internal/domain"
)

const (
	healthWindow          = 7 * 24 * time.Hour
	minScrapesForSignal   = 5
	healthySuccessRate    = 0.5
)

// HealthReport is the Store Health Calculator's per-store output (§4.16).
type HealthReport struct {
	StoreDomain  string
	SuccessRate  float64
	TotalScrapes int64
	IsHealthy    bool
}

// HealthCalculator computes rolling 7-day success rates per active store and
// persists them on the Store row.
type HealthCalculator struct {
	stores domain.StoreRegistry
	logs   domain.ScrapeLogStore
	now    func() time.Time
}

// NewHealthCalculator builds a HealthCalculator.
func NewHealthCalculator(stores domain.StoreRegistry, logs domain.ScrapeLogStore) *HealthCalculator {
	return &HealthCalculator{stores: stores, logs: logs, now: time.Now}
}

// ComputeAll computes and persists a HealthReport for every active store
// (§4.16).
func (h *HealthCalculator) ComputeAll(ctx context.Context) ([]HealthReport, error) {
	all, err := h.stores.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("healing: list stores: %w", err)
	}

	since := h.now().Add(-healthWindow)
	reports := make([]HealthReport, 0, len(all))
	for _, s := range all {
		if !s.Active {
			continue
		}
		r, err := h.computeOne(ctx, s, since)
		if err != nil {
			return nil, err
		}
		reports = append(reports, r)
	}
	return reports, nil
}

func (h *HealthCalculator) computeOne(ctx context.Context, s domain.Store, since time.Time) (HealthReport, error) {
	total, successful, err := h.logs.CountSince(ctx, s.Domain, since)
	if err != nil {
		return HealthReport{}, fmt.Errorf("healing: count scrapes for %s: %w", s.Domain, err)
	}

	rate := 1.0
	if total >= minScrapesForSignal {
		rate = float64(successful) / float64(total)
	}

	if err := h.stores.UpdateSuccessRate(ctx, s.Domain, rate); err != nil {
		return HealthReport{}, fmt.Errorf("healing: persist success rate for %s: %w", s.Domain, err)
	}

	return HealthReport{
		StoreDomain:  s.Domain,
		SuccessRate:  rate,
		TotalScrapes: total,
		IsHealthy:    rate >= healthySuccessRate,
	}, nil
}
