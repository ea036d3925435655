package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// StoreRegistry persists Store rows and owns the seed-reconciliation upsert
// policy described in §4.1.
type StoreRegistry interface {
	Lookup(ctx context.Context, domain string) (Store, error)
	SelectorsFor(ctx context.Context, domain string) (SelectorSet, error)
	RecordSuccess(ctx context.Context, domain string, at time.Time) error
	UpdateSelectors(ctx context.Context, domain string, newSelectors SelectorSet) error
	UpdateSuccessRate(ctx context.Context, domain string, rate float64) error
	// Upsert reconciles a seed entry into the persistent store: a new domain
	// takes every seed field; an existing one takes the seed's display name,
	// whitelist flag and rate limit and keeps its active flag, selectors and
	// health statistics.
	Upsert(ctx context.Context, seed Store) error
	List(ctx context.Context) ([]Store, error)
}

// ProductStore persists Product rows. All reads filter deleted_at IS NULL.
type ProductStore interface {
	Create(ctx context.Context, p Product) (Product, error)
	GetByID(ctx context.Context, id string) (Product, error)
	GetByURL(ctx context.Context, url string) (Product, error)
	Update(ctx context.Context, p Product) error
	ListByStore(ctx context.Context, storeDomain string, opts ListOpts) ([]Product, error)
	ListDue(ctx context.Context, now time.Time) ([]Product, error)
	SoftDelete(ctx context.Context, id string) error
}

// PriceHistoryStore persists append-only PriceHistory rows.
type PriceHistoryStore interface {
	Append(ctx context.Context, h PriceHistory) error
	ListByProduct(ctx context.Context, productID string, opts ListOpts) ([]PriceHistory, error)
	LatestForProduct(ctx context.Context, productID string) (PriceHistory, error)
}

// AlertStore persists Alert rows.
type AlertStore interface {
	Create(ctx context.Context, a Alert) (Alert, error)
	GetByID(ctx context.Context, id string) (Alert, error)
	ListByProduct(ctx context.Context, productID string) ([]Alert, error)
	Update(ctx context.Context, a Alert) error
	SoftDelete(ctx context.Context, id string) error
}

// ScheduleStore persists Schedule rows and resolves effective schedules.
type ScheduleStore interface {
	Create(ctx context.Context, s Schedule) (Schedule, error)
	GetByID(ctx context.Context, id string) (Schedule, error)
	Update(ctx context.Context, s Schedule) error
	SoftDelete(ctx context.Context, id string) error
	ListDue(ctx context.Context, now time.Time) ([]Schedule, error)
	// EffectiveForProduct returns, in priority order, a product-level
	// schedule, else a store-level schedule, else (false) to signal the
	// system default applies.
	EffectiveForProduct(ctx context.Context, productID, storeDomain string) (Schedule, bool, error)
}

// ScrapeLogStore persists append-only ScrapeLog rows with a 30-day rolling
// retention window (§3).
type ScrapeLogStore interface {
	Append(ctx context.Context, l ScrapeLog) error
	LatestForProduct(ctx context.Context, productID string) (ScrapeLog, error)
	RecentForProduct(ctx context.Context, productID string, limit int) ([]ScrapeLog, error)
	CountSince(ctx context.Context, storeDomain string, since time.Time) (total, successful int64, err error)
	ListOlderThan(ctx context.Context, before time.Time) ([]ScrapeLog, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}

// NotificationStore persists append-only Notification rows with a 90-day
// rolling retention window (§3).
type NotificationStore interface {
	Create(ctx context.Context, n Notification) (Notification, error)
	Update(ctx context.Context, n Notification) error
	LastSent(ctx context.Context, productID string, alertID *string, since time.Time) (Notification, error)
	ListOlderThan(ctx context.Context, before time.Time) ([]Notification, error)
	DeleteOlderThan(ctx context.Context, before time.Time) (int64, error)
}
