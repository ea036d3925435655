package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/pricewatch/pricewatch/internal/alert"
	"github.com/pricewatch/pricewatch/internal/domain"
	"github.com/pricewatch/pricewatch/internal/dispatch"
	"github.com/pricewatch/pricewatch/internal/scheduler"
	"github.com/pricewatch/pricewatch/internal/scrape/engine"
	"github.com/pricewatch/pricewatch/internal/scrape/retry"
	"github.com/pricewatch/pricewatch/internal/server"
	"github.com/pricewatch/pricewatch/internal/server/handler"
)

// consecutiveFailuresForErrorNotify is how many consecutive scrape failures
// on a product trigger a product_error notification (§4.6, §4.12).
const consecutiveFailuresForErrorNotify = 3

// ServeMode runs the long-lived daemon: it registers the four core
// scheduler jobs, starts the cron loop, optionally serves a thin HTTP
// status surface, and blocks until the context is cancelled (§4.10, §6).
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering serve mode")

	g, ctx := errgroup.WithContext(ctx)

	dispatcher := a.newDispatcher(deps)

	jobs := scheduler.Jobs{
		DailyScrape: func(ctx context.Context) error {
			due, err := deps.Products.ListDue(ctx, time.Now().UTC())
			if err != nil {
				return fmt.Errorf("daily-scrape: list due products: %w", err)
			}
			a.logger.InfoContext(ctx, "daily-scrape: products due", slog.Int("count", len(due)))
			return dispatcher.Run(ctx, due)
		},
		StoreHealthRecompute: func(ctx context.Context) error {
			reports, err := deps.HealthCalc.ComputeAll(ctx)
			if err != nil {
				return fmt.Errorf("store-health-recompute: %w", err)
			}
			a.logger.InfoContext(ctx, "store-health-recompute: complete", slog.Int("stores", len(reports)))
			return nil
		},
		HealingCycle: func(ctx context.Context) error {
			candidates, err := a.healingCandidates(ctx, deps)
			if err != nil {
				return fmt.Errorf("healing-cycle: %w", err)
			}
			a.logger.InfoContext(ctx, "healing-cycle: starting", slog.Int("candidates", len(candidates)))
			return deps.Healing.RunCycle(ctx, candidates)
		},
		DataCleanup: func(ctx context.Context) error {
			return a.runCleanup(ctx, deps)
		},
	}

	if err := deps.Scheduler.RegisterCoreJobs(ctx, jobs); err != nil {
		return fmt.Errorf("serve mode: register core jobs: %w", err)
	}
	deps.Scheduler.Start()

	g.Go(func() error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		a.logger.Info("serve mode: stopping scheduler")
		deps.Scheduler.Stop(stopCtx)
		return nil
	})

	if a.cfg.Server.Enabled {
		a.startHTTPServer(ctx, g, deps)
	}

	return g.Wait()
}

// ScrapeOnceMode runs a single dispatcher pass over every currently-due
// product, then returns. Intended for manual invocation or external cron.
func (a *App) ScrapeOnceMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering scrape-once mode")

	due, err := deps.Products.ListDue(ctx, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("scrape-once mode: list due products: %w", err)
	}
	a.logger.InfoContext(ctx, "scrape-once mode: products due", slog.Int("count", len(due)))

	if err := a.newDispatcher(deps).Run(ctx, due); err != nil {
		return fmt.Errorf("scrape-once mode: %w", err)
	}
	return nil
}

// HealMode runs one self-healing cycle over every non-archived product,
// then returns. Intended for manual invocation after a known site change.
func (a *App) HealMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering heal mode")

	candidates, err := a.healingCandidates(ctx, deps)
	if err != nil {
		return fmt.Errorf("heal mode: %w", err)
	}
	a.logger.InfoContext(ctx, "heal mode: candidates gathered", slog.Int("count", len(candidates)))

	if err := deps.Healing.RunCycle(ctx, candidates); err != nil {
		return fmt.Errorf("heal mode: run cycle: %w", err)
	}
	return nil
}

// CleanupMode archives scrape logs and notifications past their retention
// window, then returns. Intended for manual invocation outside the weekly
// data-cleanup job (§4.14).
func (a *App) CleanupMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "entering cleanup mode")
	return a.runCleanup(ctx, deps)
}

// runCleanup archives scrape logs and notifications older than their
// configured retention windows (§3, §4.14). Shared by CleanupMode and the
// weekly data-cleanup job.
func (a *App) runCleanup(ctx context.Context, deps *Dependencies) error {
	scrapeCutoff := time.Now().UTC().AddDate(0, 0, -deps.Retention.ScrapeLogDays)
	archivedLogs, err := deps.Archiver.ArchiveScrapeLogs(ctx, scrapeCutoff)
	if err != nil {
		return fmt.Errorf("cleanup: archive scrape logs: %w", err)
	}

	notifCutoff := time.Now().UTC().AddDate(0, 0, -deps.Retention.NotificationDays)
	archivedNotifs, err := deps.Archiver.ArchiveNotifications(ctx, notifCutoff)
	if err != nil {
		return fmt.Errorf("cleanup: archive notifications: %w", err)
	}

	a.logger.InfoContext(ctx, "cleanup complete",
		slog.Int64("scrape_logs_archived", archivedLogs),
		slog.Int64("notifications_archived", archivedNotifs),
	)
	return nil
}

// newDispatcher builds a Batch Dispatcher (§4.9) whose ScrapeFunc is the
// shared per-product scrape pipeline.
func (a *App) newDispatcher(deps *Dependencies) *dispatch.Dispatcher {
	return dispatch.New(
		dispatch.Config{MemoryThreshold: deps.EngineConfig.MemoryThresholdPct},
		func(ctx context.Context, p domain.Product) dispatch.Outcome {
			return a.scrapeOne(ctx, deps, p)
		},
		func(host string, outcomes []dispatch.Outcome) {
			a.logger.Info("dispatcher: chunk complete", slog.String("host", host), slog.Int("count", len(outcomes)))
		},
	)
}

// healingCandidates gathers every non-deleted product across every tracked
// store, since ProductStore has no single "list all" query.
func (a *App) healingCandidates(ctx context.Context, deps *Dependencies) ([]domain.Product, error) {
	stores, err := deps.Stores.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	var out []domain.Product
	for _, s := range stores {
		products, err := deps.Products.ListByStore(ctx, s.Domain, domain.ListOpts{})
		if err != nil {
			return nil, fmt.Errorf("list products for %s: %w", s.Domain, err)
		}
		out = append(out, products...)
	}
	return out, nil
}

// scrapeOne runs the full per-product scrape pipeline: fetch and extract,
// persist the scrape log, append price history on a material change,
// evaluate alerts, and update product status (§4.6, §4.8, §4.11, §4.12).
func (a *App) scrapeOne(ctx context.Context, deps *Dependencies, p domain.Product) dispatch.Outcome {
	result := deps.Engine.Scrape(ctx, p.URL, engine.Options{ValidateSSRF: true})

	a.recordScrapeLog(ctx, deps, p, result)

	now := time.Now().UTC()
	p.LastCheckedAt = &now

	if result.Success && result.Snapshot != nil && result.Snapshot.Complete() {
		a.recordSuccess(ctx, deps, &p, result.Snapshot)
	} else {
		a.recordFailure(ctx, deps, &p, retry.Classify(result.Err))
	}

	if err := deps.Products.Update(ctx, p); err != nil {
		a.logger.WarnContext(ctx, "scrapeOne: update product failed",
			slog.String("product_id", p.ID), slog.String("error", err.Error()))
	}

	return dispatch.Outcome{Product: p, Result: result, Err: result.Err}
}

func (a *App) recordScrapeLog(ctx context.Context, deps *Dependencies, p domain.Product, result engine.Result) {
	entry := domain.ScrapeLog{
		ProductID:      p.ID,
		Success:        result.Success,
		ResponseTimeMs: result.ResponseTimeMs,
		ScrapedAt:      time.Now().UTC(),
	}
	if result.Snapshot != nil {
		entry.StrategyUsed = string(result.Snapshot.StrategyUsed)
	}
	if result.Err != nil {
		if se, ok := domain.AsScrapeError(result.Err); ok {
			entry.ErrorType = se.Kind.String()
			entry.ErrorMessage = se.Message
		} else {
			entry.ErrorMessage = result.Err.Error()
		}
	}
	if err := deps.ScrapeLogs.Append(ctx, entry); err != nil {
		a.logger.WarnContext(ctx, "recordScrapeLog: append failed",
			slog.String("product_id", p.ID), slog.String("error", err.Error()))
	}
}

// recordSuccess applies a completed snapshot to the product, appends a
// price history row when the price or stock state materially moved (§8),
// and evaluates the product's alerts against the new observation.
func (a *App) recordSuccess(ctx context.Context, deps *Dependencies, p *domain.Product, snap *domain.ProductSnapshot) {
	previous, err := deps.PriceHistory.LatestForProduct(ctx, p.ID)
	hasPrevious := err == nil
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		a.logger.WarnContext(ctx, "recordSuccess: read latest price history failed",
			slog.String("product_id", p.ID), slog.String("error", err.Error()))
	}
	wasInStock := p.InStock
	var previousPrice *float64
	if hasPrevious {
		pv := previous.Price
		previousPrice = &pv
		wasInStock = previous.InStock
	}

	priceChanged := !hasPrevious || previous.Price != *snap.Price
	stockFlipped := hasPrevious && previous.InStock != snap.InStock
	if !hasPrevious || priceChanged || stockFlipped {
		if err := deps.PriceHistory.Append(ctx, domain.PriceHistory{
			ProductID:     p.ID,
			Price:         *snap.Price,
			OriginalPrice: snap.OriginalPrice,
			InStock:       snap.InStock,
			ScrapedAt:     time.Now().UTC(),
		}); err != nil {
			a.logger.WarnContext(ctx, "recordSuccess: append price history failed",
				slog.String("product_id", p.ID), slog.String("error", err.Error()))
		}
	}

	p.Name = snap.Name
	if snap.Brand != "" {
		p.Brand = snap.Brand
	}
	if snap.UPC != "" {
		p.UPC = snap.UPC
	}
	if snap.ImageURL != "" {
		p.ImageURL = snap.ImageURL
	}
	if snap.Currency != "" {
		p.Currency = snap.Currency
	}
	p.CurrentPrice = snap.Price
	p.OriginalPrice = snap.OriginalPrice
	p.InStock = snap.InStock
	p.ConsecutiveFailures = 0
	if p.Status != domain.ProductStatusArchived {
		p.Status = domain.ProductStatusActive
	}

	a.evaluateAlerts(ctx, deps, *p, previousPrice, snap.InStock, wasInStock)
}

// recordFailure increments the product's failure streak and, once the
// streak reaches consecutiveFailuresForErrorNotify, demotes its status and
// raises a product_error notification. The demoted status branches on
// whether the classified failure is healable: a healable kind (parse
// failure, structure change, price validation) demotes to ERROR since a
// selector regeneration can plausibly fix it automatically on the next
// healing cycle; a non-healable kind (blocked, robots-disallowed, private
// IP, ...) demotes straight to NEEDS_ATTENTION since no automated remedy
// applies and it needs a human (§4.8, §4.13).
func (a *App) recordFailure(ctx context.Context, deps *Dependencies, p *domain.Product, kind domain.ErrorKind) {
	p.ConsecutiveFailures++
	if p.ConsecutiveFailures < consecutiveFailuresForErrorNotify {
		return
	}
	if p.Status != domain.ProductStatusNeedsAttention && p.Status != domain.ProductStatusArchived {
		if kind.Healable() {
			p.Status = domain.ProductStatusError
		} else {
			p.Status = domain.ProductStatusNeedsAttention
		}
	}
	if p.ConsecutiveFailures == consecutiveFailuresForErrorNotify {
		if err := deps.NotifyDisp.DispatchProductError(ctx, *p); err != nil {
			a.logger.WarnContext(ctx, "recordFailure: dispatch product_error failed",
				slog.String("product_id", p.ID), slog.String("error", err.Error()))
		}
	}
}

// evaluateAlerts runs every active alert on a product against the latest
// observation and dispatches a notification for each one that fires (§4.11,
// §4.12).
func (a *App) evaluateAlerts(ctx context.Context, deps *Dependencies, p domain.Product, previousPrice *float64, inStock, wasInStock bool) {
	alerts, err := deps.Alerts.ListByProduct(ctx, p.ID)
	if err != nil {
		a.logger.WarnContext(ctx, "evaluateAlerts: list failed",
			slog.String("product_id", p.ID), slog.String("error", err.Error()))
		return
	}

	var currentPrice float64
	if p.CurrentPrice != nil {
		currentPrice = *p.CurrentPrice
	}

	for _, al := range alerts {
		outcome := alert.Evaluate(al, currentPrice, previousPrice, inStock, wasInStock)
		if !outcome.Triggered {
			continue
		}
		if err := deps.NotifyDisp.DispatchPriceAlert(ctx, al, p, previousPrice); err != nil {
			a.logger.WarnContext(ctx, "evaluateAlerts: dispatch failed",
				slog.String("alert_id", al.ID), slog.String("error", err.Error()))
			continue
		}
		now := time.Now().UTC()
		al.Triggered = true
		al.TriggeredAt = &now
		if err := deps.Alerts.Update(ctx, al); err != nil {
			a.logger.WarnContext(ctx, "evaluateAlerts: update after trigger failed",
				slog.String("alert_id", al.ID), slog.String("error", err.Error()))
		}
	}
}

// startHTTPServer serves the thin control-plane surface described in §6:
// a health check and a status summary. Routing for anything richer is
// explicitly out of scope (§4 Non-goals).
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	startedAt := time.Now().UTC()

	statusProvider := func(ctx context.Context) (handler.StatusSnapshot, error) {
		reports, err := deps.HealthCalc.ComputeAll(ctx)
		unhealthy := 0
		for _, rep := range reports {
			if !rep.IsHealthy {
				unhealthy++
			}
		}
		return handler.StatusSnapshot{
			Mode:            a.cfg.Mode,
			StartedAt:       startedAt,
			StoresUnhealthy: unhealthy,
		}, err
	}

	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
	}, server.Handlers{
		Health: handler.NewHealthHandler(a.logger),
		Status: handler.NewStatusHandler(statusProvider, a.logger),
	}, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening", slog.Int("port", a.cfg.Server.Port))
		return srv.Start()
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.Info("HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
}
