// Package domain holds the core types, store/cache interfaces, and sentinel
// errors shared across the price-monitoring subsystems. It deliberately
// contains no persistence or transport code: stores live under
// internal/store/postgres, caches under internal/cache/redis and the
// scrape/* packages, so that every dependency here can be faked in tests.
package domain

import "time"

// ProductStatus is the lifecycle state of a tracked Product.
type ProductStatus string

const (
	ProductStatusActive           ProductStatus = "ACTIVE"
	ProductStatusPaused           ProductStatus = "PAUSED"
	ProductStatusError            ProductStatus = "ERROR"
	ProductStatusNeedsAttention   ProductStatus = "NEEDS_ATTENTION"
	ProductStatusPriceUnavailable ProductStatus = "PRICE_UNAVAILABLE"
	ProductStatusArchived         ProductStatus = "ARCHIVED"
)

// AlertType enumerates the kinds of alerts a user can attach to a Product.
type AlertType string

const (
	AlertTypeTargetPrice  AlertType = "TARGET_PRICE"
	AlertTypePercentDrop  AlertType = "PERCENT_DROP"
	AlertTypeAnyChange    AlertType = "ANY_CHANGE"
	AlertTypeBackInStock  AlertType = "BACK_IN_STOCK"
)

// NotificationStatus tracks delivery bookkeeping for a dispatched Notification.
type NotificationStatus string

const (
	NotificationStatusPending NotificationStatus = "PENDING"
	NotificationStatusSent    NotificationStatus = "SENT"
	NotificationStatusFailed  NotificationStatus = "FAILED"
)

// Store is a retailer domain tracked by the system. Selectors are owned
// exclusively by Store and survive restarts; healing mutates them in place.
type Store struct {
	Domain        string // primary key, e.g. "amazon.ca"
	DisplayName   string
	Whitelisted   bool
	Active        bool
	RateLimitRPM  int
	Selectors     SelectorSet
	SuccessRate   float64 // in [0,1]
	LastSuccessAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Product is a single retailer-specific listing under track.
type Product struct {
	ID                  string
	URL                 string
	StoreDomain         string
	Name                string
	Brand               string
	UPC                 string
	ImageURL            string
	CurrentPrice        *float64
	OriginalPrice       *float64
	Currency            string // default "CAD"
	InStock             bool
	Status              ProductStatus
	ConsecutiveFailures int
	LastCheckedAt       *time.Time
	CanonicalID         string
	DeletedAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PriceHistory is an append-only record of a price/stock observation. Rows
// are written only when the price moved by at least one cent or in_stock
// flipped (§8 testable property).
type PriceHistory struct {
	ID            int64
	ProductID     string
	Price         float64
	OriginalPrice *float64
	InStock       bool
	ScrapedAt     time.Time
}

// Alert is a user-configured trigger condition on a Product's price/stock.
type Alert struct {
	ID                 string
	ProductID          string
	Type               AlertType
	TargetValue        *float64
	MinChangeThreshold float64 // default 1.0
	Active             bool
	Triggered          bool
	TriggeredAt        *time.Time
	DeletedAt          *time.Time
}

// Schedule binds a cron expression to exactly one of ProductID/StoreDomain.
// Resolution priority for an effective schedule is product > store > system
// default (§3, §4.10).
type Schedule struct {
	ID             string
	ProductID      *string
	StoreDomain    *string
	CronExpression string
	Active         bool
	LastRunAt      *time.Time
	NextRunAt      *time.Time
	DeletedAt      *time.Time
}

// ScrapeLog is an append-only row recording the outcome of one scrape
// attempt. Retention: 30 days rolling (§3).
type ScrapeLog struct {
	ID              string
	ProductID       string
	Success         bool
	StrategyUsed    string
	ErrorType       string
	ErrorMessage    string
	ResponseTimeMs  int64
	ScrapedAt       time.Time
}

// Notification is an append-only delivery record. Retention: 90 days
// rolling (§3).
type Notification struct {
	ID           string
	AlertID      *string
	ProductID    string
	Channel      string
	Status       NotificationStatus
	Payload      NotificationPayload
	SentAt       *time.Time
	ErrorMessage string
}

// NotificationPayload is the opaque JSON blob captured at dispatch time, used
// both to render templates and to detect duplicate sends (§4.12).
type NotificationPayload struct {
	ProductName    string   `json:"product_name"`
	CurrentPrice   float64  `json:"current_price"`
	PreviousPrice  *float64 `json:"previous_price,omitempty"`
	AlertType      string   `json:"alert_type,omitempty"`
}
