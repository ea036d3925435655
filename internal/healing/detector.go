// Package healing implements the Self-Healing Controller, Failure Detector,
// Selector Regenerator, and Store Health Calculator (§4.13-4.16).
package healing

import (
	"context"
	"fmt"
	"time"

	"github.com/pricewatch/pricewatch/internal/domain"
)

const (
	healingConsecutiveThreshold = 3
	attentionWindow             = 30 * 24 * time.Hour
	attentionDays               = 3 * 24 * time.Hour
)

var healableKinds = map[domain.ErrorKind]bool{
	domain.ErrKindParseFailure:     true,
	domain.ErrKindStructureChange:  true,
	domain.ErrKindPriceValidation:  true,
}

// Analysis is the Failure Detector's verdict for one product (§4.14).
type Analysis struct {
	Category            domain.ErrorKind
	ConsecutiveFailures int
	NeedsHealing        bool
	NeedsAttention      bool
	LastError           string
	LastFailureAt       *time.Time
}

// Detector classifies a product's latest failure run into a healing
// disposition by reading its scrape log history.
type Detector struct {
	logs             domain.ScrapeLogStore
	nonHealableLimit int
}

// NewDetector builds a Detector. nonHealableLimit is the consecutive-failure
// threshold at which a non-healable category escalates straight to
// NEEDS_ATTENTION (Wire passes config.HealingConfig.StoreFailureThreshold).
func NewDetector(logs domain.ScrapeLogStore, nonHealableLimit int) *Detector {
	if nonHealableLimit <= 0 {
		nonHealableLimit = 5
	}
	return &Detector{logs: logs, nonHealableLimit: nonHealableLimit}
}

// Analyze implements §4.14's analyze(product_id).
func (d *Detector) Analyze(ctx context.Context, product domain.Product) (Analysis, error) {
	latest, err := d.logs.LatestForProduct(ctx, product.ID)
	if err != nil {
		return Analysis{}, fmt.Errorf("healing: latest log for product %s: %w", product.ID, err)
	}

	category, _ := domain.ParseErrorKind(latest.ErrorType)
	consecutive := product.ConsecutiveFailures

	already := product.Status == domain.ProductStatusNeedsAttention
	needsHealing := consecutive >= healingConsecutiveThreshold && healableKinds[category] && !already

	needsAttention := already
	if !needsAttention && category == domain.ErrKindNotFound {
		needsAttention = d.persistentNotFound(ctx, product.ID, latest.ScrapedAt)
	}
	if !needsAttention && !healableKinds[category] && category != domain.ErrKindNotFound {
		needsAttention = consecutive >= d.nonHealableLimit
	}

	return Analysis{
		Category:            category,
		ConsecutiveFailures: consecutive,
		NeedsHealing:        needsHealing,
		NeedsAttention:      needsAttention,
		LastError:           latest.ErrorMessage,
		LastFailureAt:       &latest.ScrapedAt,
	}, nil
}

// persistentNotFound reports whether the earliest 404 within attentionWindow
// of asOf is at least attentionDays old, per §4.14's NOT_FOUND clause.
func (d *Detector) persistentNotFound(ctx context.Context, productID string, asOf time.Time) bool {
	recent, err := d.logs.RecentForProduct(ctx, productID, 50)
	if err != nil {
		return false
	}
	var earliest *time.Time
	cutoff := asOf.Add(-attentionWindow)
	for _, l := range recent {
		if l.Success || l.ErrorType != domain.ErrKindNotFound.String() {
			break
		}
		if l.ScrapedAt.Before(cutoff) {
			continue
		}
		t := l.ScrapedAt
		earliest = &t
	}
	if earliest == nil {
		return false
	}
	return asOf.Sub(*earliest) >= attentionDays
}
