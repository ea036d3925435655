package main

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/pricewatch/pricewatch/internal/cache/redis"
	"github.com/pricewatch/pricewatch/internal/config"
	"github.com/pricewatch/pricewatch/internal/scrape/engine"
	"github.com/pricewatch/pricewatch/internal/scrape/ratelimit"
	"github.com/pricewatch/pricewatch/internal/scrape/robots"
	"github.com/pricewatch/pricewatch/internal/scrape/useragent"
	"github.com/pricewatch/pricewatch/internal/store/postgres"
)

func newScrapeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Trigger a one-shot scrape or inspect the latest ScrapeLog for a product",
	}
	cmd.AddCommand(newScrapeTriggerCommand())
	cmd.AddCommand(newScrapeLogCommand())
	return cmd
}

func newScrapeTriggerCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "trigger <product-id>",
		Short: "Scrape one product immediately through the same engine the daemon uses",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			pool, cleanupPG, err := connectPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanupPG()

			eng, cleanupEngine, err := buildEngine(ctx, cfg, pool)
			if err != nil {
				return err
			}
			defer cleanupEngine()

			products := postgres.NewProductStore(pool)
			product, err := products.GetByID(ctx, args[0])
			if err != nil {
				return fmt.Errorf("scrape trigger: %w", err)
			}

			result := eng.Scrape(ctx, product.URL, engine.Options{ValidateSSRF: true})
			if result.Err != nil {
				return fmt.Errorf("scrape trigger: %w", result.Err)
			}
			if result.Snapshot == nil || !result.Snapshot.Complete() {
				fmt.Println("scrape completed but returned an incomplete snapshot")
				return nil
			}
			fmt.Printf("name=%q price=%.2f %s in_stock=%t strategy=%s\n",
				result.Snapshot.Name, *result.Snapshot.Price, result.Snapshot.Currency,
				result.Snapshot.InStock, result.Snapshot.StrategyUsed)
			return nil
		},
	}
}

func newScrapeLogCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "log <product-id>",
		Short: "Show the most recent ScrapeLog entry for a product",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			pool, cleanup, err := connectPostgres(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			entry, err := postgres.NewScrapeLogStore(pool).LatestForProduct(ctx, args[0])
			if err != nil {
				return fmt.Errorf("scrape log: %w", err)
			}
			status := "success"
			if !entry.Success {
				status = fmt.Sprintf("failed (%s: %s)", entry.ErrorType, entry.ErrorMessage)
			}
			fmt.Printf("%s  strategy=%s  %dms  %s\n",
				entry.ScrapedAt.Format("2006-01-02T15:04:05Z"), entry.StrategyUsed, entry.ResponseTimeMs, status)
			return nil
		},
	}
}

// buildEngine wires the minimal engine dependency set needed for CLI-driven
// scrape diagnostics: the robots cache, a Redis-backed rate limiter, a UA
// pool, and the store registry for per-host selectors. The LLM fallback
// tier is intentionally left unwired here (nil client) since a CLI
// diagnostic run isn't worth burning an LLM-budget reservation on; the
// waterfall degrades gracefully to JSON-LD/CSS/XPath only (§4.2).
func buildEngine(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool) (*engine.Engine, func(), error) {
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("buildEngine: redis: %w", err)
	}
	cleanup := func() { _ = redisClient.Close() }

	limiter := ratelimit.New(redis.NewRateLimiter(redisClient), cfg.RateLimit.MaxScrapesPerMinute, cfg.RateLimit.MaxScrapesPerMinute)
	robotsCache := robots.New("PricewatchBot/1.0 (+https://pricewatch.example/bot)")
	uaPool := useragent.New(cfg.Engine.UserAgents)
	stores := postgres.NewStoreRegistry(pool)

	eng := engine.New(engine.Config{
		RequestTimeout:        cfg.Engine.RequestTimeout.Duration,
		OperationTimeout:      cfg.Engine.OperationTimeout.Duration,
		MaxConcurrentBrowsers: cfg.Engine.MaxConcurrentBrowsers,
		PageLoadDelay:         cfg.Engine.PageLoadDelay.Duration,
	}, robotsCache, limiter, uaPool, stores, nil)

	return eng, cleanup, nil
}
