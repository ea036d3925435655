package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/pricewatch/pricewatch/internal/blob/s3"
	"github.com/pricewatch/pricewatch/internal/cache/redis"
	"github.com/pricewatch/pricewatch/internal/config"
	"github.com/pricewatch/pricewatch/internal/domain"
	"github.com/pricewatch/pricewatch/internal/healing"
	"github.com/pricewatch/pricewatch/internal/llm"
	"github.com/pricewatch/pricewatch/internal/notify"
	"github.com/pricewatch/pricewatch/internal/scheduler"
	"github.com/pricewatch/pricewatch/internal/scrape/engine"
	"github.com/pricewatch/pricewatch/internal/scrape/ratelimit"
	"github.com/pricewatch/pricewatch/internal/scrape/robots"
	"github.com/pricewatch/pricewatch/internal/scrape/useragent"
	"github.com/pricewatch/pricewatch/internal/seed"
	"github.com/pricewatch/pricewatch/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Stores
	Stores        domain.StoreRegistry
	Products      domain.ProductStore
	PriceHistory  domain.PriceHistoryStore
	Alerts        domain.AlertStore
	Schedules     domain.ScheduleStore
	ScrapeLogs    domain.ScrapeLogStore
	Notifications domain.NotificationStore

	// Caches
	RateLimiter domain.RateLimiter
	LockManager domain.LockManager
	TokenBudget domain.TokenBudget

	// Blob storage
	BlobWriter  domain.BlobWriter
	BlobReader  domain.BlobReader
	BlobDeleter domain.BlobDeleter
	Archiver    domain.Archiver

	// Scrape engine and its sub-components
	Engine *engine.Engine

	// LLM channel, notification dispatch, and self-healing
	LLMClient  *llm.Client
	NotifyDisp *notify.Dispatcher
	Detector   *healing.Detector
	HealthCalc *healing.HealthCalculator
	Healing    *healing.Controller

	// Scheduler
	Scheduler *scheduler.Scheduler

	EngineConfig config.EngineConfig
	Retention    config.RetentionConfig
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{EngineConfig: cfg.Engine, Retention: cfg.Retention}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      cfg.Database.DSN,
		Host:     cfg.Database.Host,
		Port:     cfg.Database.Port,
		Database: cfg.Database.Database,
		User:     cfg.Database.User,
		Password: cfg.Database.Password,
		SSLMode:  cfg.Database.SSLMode,
		MaxConns: cfg.Database.PoolMaxConns,
		MinConns: cfg.Database.PoolMinConns,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Database.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Stores = postgres.NewStoreRegistry(pool)
	deps.Products = postgres.NewProductStore(pool)
	deps.PriceHistory = postgres.NewPriceHistoryStore(pool)
	deps.Alerts = postgres.NewAlertStore(pool)
	deps.Schedules = postgres.NewScheduleStore(pool)
	deps.ScrapeLogs = postgres.NewScrapeLogStore(pool)
	deps.Notifications = postgres.NewNotificationStore(pool)

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.TokenBudget = redis.NewTokenBudget(redisClient, cfg.LLM.DailyTokenLimit)

	// --- S3 blob storage ---
	s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
		Endpoint:       cfg.S3.Endpoint,
		Region:         cfg.S3.Region,
		Bucket:         cfg.S3.Bucket,
		AccessKey:      cfg.S3.AccessKey,
		SecretKey:      cfg.S3.SecretKey,
		UseSSL:         cfg.S3.UseSSL,
		ForcePathStyle: cfg.S3.ForcePathStyle,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: s3: %w", err)
	}
	closers = append(closers, func() { _ = s3Client.Close() })

	deps.BlobWriter = s3blob.NewWriter(s3Client)
	reader := s3blob.NewReader(s3Client)
	deps.BlobReader = reader
	deps.BlobDeleter = reader // same type implements BlobDeleter
	deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.ScrapeLogs, deps.Notifications)

	// --- Seed reconciliation: upsert the known retailer catalog on every
	// start so newly added seeds appear without a manual migration (§4.1).
	if err := seed.Reconcile(ctx, deps.Stores); err != nil {
		logger.WarnContext(ctx, "seed reconciliation failed", slog.String("error", err.Error()))
	}

	// --- LLM channel (§4.7 waterfall step 4, §4.15 selector regeneration) ---
	apiKey := cfg.LLM.OpenAIAPIKey
	if cfg.LLM.OpenRouterAPIKey != "" {
		apiKey = cfg.LLM.OpenRouterAPIKey
	}
	deps.LLMClient = llm.New(llm.Config{
		APIKey:         apiKey,
		Model:          cfg.LLM.Model,
		MaxTokens:      1024,
		RequestTimeout: 30 * time.Second,
	}, deps.TokenBudget, deps.RateLimiter)

	// --- Scrape engine (§4.8) ---
	robotsCache := robots.New("PricewatchBot/1.0 (+https://pricewatch.example/bot)")
	limiter := ratelimit.New(deps.RateLimiter, cfg.RateLimit.MaxScrapesPerMinute, cfg.RateLimit.MaxScrapesPerMinute)
	uaPool := useragent.New(cfg.Engine.UserAgents)

	deps.Engine = engine.New(engine.Config{
		RequestTimeout:        cfg.Engine.RequestTimeout.Duration,
		OperationTimeout:      cfg.Engine.OperationTimeout.Duration,
		MaxConcurrentBrowsers: cfg.Engine.MaxConcurrentBrowsers,
		PageLoadDelay:         cfg.Engine.PageLoadDelay.Duration,
	}, robotsCache, limiter, uaPool, deps.Stores, deps.LLMClient)

	// --- Notification channels (§4.12) ---
	var channels []notify.RenderedSender
	if cfg.Email.ResendAPIKey != "" && cfg.Email.FromEmail != "" && cfg.Email.UserEmail != "" {
		channels = append(channels, notify.NewEmailChannel(cfg.Email.ResendAPIKey, cfg.Email.FromEmail, []string{cfg.Email.UserEmail}))
	}
	deps.NotifyDisp = notify.NewDispatcher(deps.Notifications, channels...)

	// --- Self-healing pipeline (§4.13-4.16) ---
	deps.Detector = healing.NewDetector(deps.ScrapeLogs, cfg.Healing.StoreFailureThreshold)
	regenerator := healing.NewRegenerator(deps.LLMClient)
	deps.HealthCalc = healing.NewHealthCalculator(deps.Stores, deps.ScrapeLogs)
	deps.Healing = healing.NewController(
		deps.Products,
		deps.Stores,
		deps.ScrapeLogs,
		deps.Detector,
		regenerator,
		deps.HealthCalc,
		deps.Engine,
		deps.NotifyDisp,
		cfg.Healing.MaxAttempts,
		logger,
	)

	// --- Scheduler (§4.10) ---
	deps.Scheduler = scheduler.New(deps.Schedules, logger, 30*time.Minute)

	return deps, cleanup, nil
}
