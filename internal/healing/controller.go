package healing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pricewatch/pricewatch/internal/domain"
	"github.com/pricewatch/pricewatch/internal/scrape/engine"
)

// Fetcher performs a bare HTML fetch for a healing candidate, satisfied by
// *engine.Engine with Options.SkipExtract set.
type Fetcher interface {
	Scrape(ctx context.Context, rawURL string, opts engine.Options) engine.Result
}

// Notifier is the subset of notify.Dispatcher the controller needs to raise
// a store_flagged notification.
type Notifier interface {
	DispatchStoreFlagged(ctx context.Context, store domain.Store) error
}

// Controller runs the Self-Healing Controller pipeline of §4.13.
type Controller struct {
	products     domain.ProductStore
	stores       domain.StoreRegistry
	logs         domain.ScrapeLogStore
	detector     *Detector
	regenerator  *Regenerator
	health       *HealthCalculator
	fetch        Fetcher
	notify       Notifier
	maxAttempts  int
	logger       *slog.Logger

	mu          sync.Mutex
	attempts    map[string]int // productID -> healing attempts this process lifetime
	lastSample  map[string]string // host -> fingerprint of the last HTML sample regeneration ran against
}

// NewController wires a Controller. maxAttempts is sourced from
// config.HealingConfig.MaxAttempts (default 3).
func NewController(
	products domain.ProductStore,
	stores domain.StoreRegistry,
	logs domain.ScrapeLogStore,
	detector *Detector,
	regenerator *Regenerator,
	health *HealthCalculator,
	fetch Fetcher,
	notify Notifier,
	maxAttempts int,
	logger *slog.Logger,
) *Controller {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		products:    products,
		stores:      stores,
		logs:        logs,
		detector:    detector,
		regenerator: regenerator,
		health:      health,
		fetch:       fetch,
		notify:      notify,
		maxAttempts: maxAttempts,
		logger:      logger,
		attempts:    make(map[string]int),
		lastSample:  make(map[string]string),
	}
}

// RunCycle executes one full healing cycle over candidates: detect, group by
// host, attempt regeneration per group, and flag unhealthy stores (§4.13).
func (c *Controller) RunCycle(ctx context.Context, candidates []domain.Product) error {
	groups := make(map[string][]domain.Product)
	for _, p := range candidates {
		analysis, err := c.detector.Analyze(ctx, p)
		if err != nil {
			c.logger.Warn("healing: analyze failed", "product_id", p.ID, "error", err)
			continue
		}
		if p.Status == domain.ProductStatusNeedsAttention || p.Status == domain.ProductStatusArchived {
			continue
		}
		if !analysis.NeedsHealing {
			continue
		}
		groups[p.StoreDomain] = append(groups[p.StoreDomain], p)
	}

	for host, products := range groups {
		if err := c.healGroup(ctx, host, products); err != nil {
			c.logger.Warn("healing: group failed", "host", host, "error", err)
		}
	}

	return c.flagUnhealthyStores(ctx)
}

func (c *Controller) healGroup(ctx context.Context, host string, products []domain.Product) error {
	rep := products[0]

	if c.attemptsFor(rep.ID) >= c.maxAttempts {
		return c.giveUp(ctx, products)
	}
	c.incrementAttempts(products)

	store, err := c.stores.Lookup(ctx, host)
	if err != nil {
		return fmt.Errorf("healing: lookup store %s: %w", host, err)
	}

	result := c.fetch.Scrape(ctx, rep.URL, engine.Options{SkipExtract: true, ValidateSSRF: true})
	if result.Err != nil || result.HTML == "" {
		return c.maybeGiveUp(ctx, products)
	}

	sample := fingerprint(result.HTML)
	c.mu.Lock()
	unchanged := c.lastSample[host] == sample
	c.lastSample[host] = sample
	c.mu.Unlock()
	if unchanged {
		c.logger.Info("healing: skipping regeneration, page unchanged since last attempt", "host", host)
		return c.maybeGiveUp(ctx, products)
	}

	regen := c.regenerator.Regenerate(ctx, result.HTML, host, store.Selectors)
	if !regen.Success || regen.Confidence < 0.7 || !regen.Selectors.ValidForHealing() {
		return c.maybeGiveUp(ctx, products)
	}

	merged := store.Selectors.Merge(regen.Selectors)
	if err := c.stores.UpdateSelectors(ctx, host, merged); err != nil {
		return fmt.Errorf("healing: update selectors for %s: %w", host, err)
	}

	for _, p := range products {
		p.ConsecutiveFailures = 0
		p.Status = domain.ProductStatusActive
		if err := c.products.Update(ctx, p); err != nil {
			c.logger.Warn("healing: reset product after heal", "product_id", p.ID, "error", err)
		}
	}
	c.resetAttempts(products)
	c.mu.Lock()
	delete(c.lastSample, host)
	c.mu.Unlock()
	return nil
}

func (c *Controller) maybeGiveUp(ctx context.Context, products []domain.Product) error {
	if c.attemptsFor(products[0].ID) < c.maxAttempts {
		return nil
	}
	return c.giveUp(ctx, products)
}

func (c *Controller) giveUp(ctx context.Context, products []domain.Product) error {
	for _, p := range products {
		p.Status = domain.ProductStatusNeedsAttention
		if err := c.products.Update(ctx, p); err != nil {
			c.logger.Warn("healing: flag needs_attention", "product_id", p.ID, "error", err)
		}
	}
	return nil
}

func (c *Controller) flagUnhealthyStores(ctx context.Context) error {
	reports, err := c.health.ComputeAll(ctx)
	if err != nil {
		return fmt.Errorf("healing: compute store health: %w", err)
	}
	for _, r := range reports {
		if r.IsHealthy || c.notify == nil {
			continue
		}
		store, err := c.stores.Lookup(ctx, r.StoreDomain)
		if err != nil {
			continue
		}
		if err := c.notify.DispatchStoreFlagged(ctx, store); err != nil {
			c.logger.Warn("healing: store_flagged notify failed", "store", r.StoreDomain, "error", err)
		}
	}
	return nil
}

func (c *Controller) attemptsFor(productID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts[productID]
}

func (c *Controller) incrementAttempts(products []domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range products {
		c.attempts[p.ID]++
	}
}

func (c *Controller) resetAttempts(products []domain.Product) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range products {
		delete(c.attempts, p.ID)
	}
}
