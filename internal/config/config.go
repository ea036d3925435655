// Package config defines the top-level configuration for the price-monitoring
// daemon and CLI, and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PRICEWATCH_* environment variables.
type Config struct {
	Database  DatabaseConfig  `toml:"database"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Engine    EngineConfig    `toml:"engine"`
	RateLimit RateLimitConfig `toml:"rate_limit"`
	LLM       LLMConfig       `toml:"llm"`
	Email     EmailConfig     `toml:"email"`
	Scheduler SchedulerConfig `toml:"scheduler"`
	Healing   HealingConfig   `toml:"healing"`
	Retention RetentionConfig `toml:"retention"`
	Server    ServerConfig    `toml:"server"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters, used for rate limiting,
// distributed locks, and the daily LLM token budget.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters used for archived
// scrape logs, notifications, and raw HTML samples collected during healing.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// EngineConfig holds scrape-engine timing and concurrency tunables (§4.8, §5).
type EngineConfig struct {
	RequestTimeout       duration `toml:"request_timeout"`
	OperationTimeout     duration `toml:"operation_timeout"`
	MaxConcurrentBrowsers int     `toml:"max_concurrent_browsers"`
	MemoryThresholdPct   float64  `toml:"memory_threshold_percent"`
	PageLoadDelay        duration `toml:"page_load_delay"`
	MaxConsecutiveFailures int    `toml:"max_consecutive_failures"`
	UserAgents           []string `toml:"user_agents"`
}

// RateLimitConfig holds the global and per-host admission ceilings enforced
// by internal/scrape/ratelimit (§4.3, §5).
type RateLimitConfig struct {
	MaxScrapesPerMinute    int `toml:"max_scrapes_per_minute"`
	MaxLLMRequestsPerMinute int `toml:"max_llm_requests_per_minute"`
}

// LLMConfig holds the LLM fallback extraction and selector-healing channel
// credentials and the daily token ceiling (§4.4 step D, §5, §4.15).
type LLMConfig struct {
	OpenRouterAPIKey string  `toml:"openrouter_api_key"`
	OpenAIAPIKey     string  `toml:"openai_api_key"`
	Model            string  `toml:"model"`
	BaseURL          string  `toml:"base_url"`
	DailyTokenLimit  int     `toml:"daily_token_limit"`
}

// EmailConfig holds the notification email channel credentials (§4.12).
type EmailConfig struct {
	ResendAPIKey string `toml:"resend_api_key"`
	UserEmail    string `toml:"user_email"`
	FromEmail    string `toml:"from_email"`
}

// SchedulerConfig holds the default check cadence and timezone applied when
// no product- or store-level schedule overrides it (§4.10).
type SchedulerConfig struct {
	DefaultCheckHour int    `toml:"default_check_hour"`
	Timezone         string `toml:"timezone"`
}

// HealingConfig holds the self-healing controller's attempt and demotion
// thresholds (§4.13, §4.16).
type HealingConfig struct {
	MaxAttempts           int `toml:"max_attempts"`
	StoreFailureThreshold int `toml:"store_failure_threshold"`
}

// RetentionConfig holds the rolling retention windows for append-only tables
// (§3, §4.14 cleanup).
type RetentionConfig struct {
	ScrapeLogDays    int `toml:"scrape_log_days"`
	NotificationDays int `toml:"notification_days"`
}

// ServerConfig holds HTTP server parameters for the control-plane surface
// (§6 External Interfaces).
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Database: DatabaseConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "pricewatch",
			User:          "pricewatch",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "pricewatch-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Engine: EngineConfig{
			RequestTimeout:         duration{30 * time.Second},
			OperationTimeout:       duration{2 * time.Minute},
			MaxConcurrentBrowsers:  3,
			MemoryThresholdPct:     70.0,
			PageLoadDelay:          duration{2 * time.Second},
			MaxConsecutiveFailures: 5,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
			},
		},
		RateLimit: RateLimitConfig{
			MaxScrapesPerMinute:     10,
			MaxLLMRequestsPerMinute: 30,
		},
		LLM: LLMConfig{
			Model:           "anthropic/claude-3-5-sonnet",
			BaseURL:         "https://openrouter.ai/api/v1",
			DailyTokenLimit: 100_000,
		},
		Scheduler: SchedulerConfig{
			DefaultCheckHour: 6,
			Timezone:         "America/Toronto",
		},
		Healing: HealingConfig{
			MaxAttempts:           3,
			StoreFailureThreshold: 10,
		},
		Retention: RetentionConfig{
			ScrapeLogDays:    30,
			NotificationDays: 90,
		},
		Server: ServerConfig{
			Enabled:     true,
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":       true,
	"scrape-once": true,
	"heal":        true,
	"cleanup":     true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, scrape-once, heal, cleanup)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if strings.TrimSpace(c.Database.DSN) == "" {
		if c.Database.Host == "" {
			errs = append(errs, "database: host must not be empty (or set database.dsn)")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.Database == "" {
			errs = append(errs, "database: database must not be empty")
		}
	}
	if c.Database.PoolMaxConns < 1 {
		errs = append(errs, "database: pool_max_conns must be >= 1")
	}
	if c.Database.PoolMinConns < 0 {
		errs = append(errs, "database: pool_min_conns must be >= 0")
	}
	if c.Database.PoolMinConns > c.Database.PoolMaxConns {
		errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	if c.Engine.MaxConcurrentBrowsers < 1 {
		errs = append(errs, "engine: max_concurrent_browsers must be >= 1")
	}
	if c.Engine.MemoryThresholdPct <= 0 || c.Engine.MemoryThresholdPct > 100 {
		errs = append(errs, "engine: memory_threshold_percent must be in (0,100]")
	}
	if c.Engine.MaxConsecutiveFailures < 1 {
		errs = append(errs, "engine: max_consecutive_failures must be >= 1")
	}
	if len(c.Engine.UserAgents) == 0 {
		errs = append(errs, "engine: user_agents must not be empty")
	}

	if c.RateLimit.MaxScrapesPerMinute < 1 {
		errs = append(errs, "rate_limit: max_scrapes_per_minute must be >= 1")
	}
	if c.RateLimit.MaxLLMRequestsPerMinute < 1 {
		errs = append(errs, "rate_limit: max_llm_requests_per_minute must be >= 1")
	}

	if c.LLM.DailyTokenLimit < 0 {
		errs = append(errs, "llm: daily_token_limit must be >= 0")
	}
	if c.LLM.OpenRouterAPIKey == "" && c.LLM.OpenAIAPIKey == "" {
		errs = append(errs, "llm: one of openrouter_api_key or openai_api_key should be set for LLM fallback and healing to function")
	}

	if c.Email.FromEmail != "" && c.Email.ResendAPIKey == "" {
		errs = append(errs, "email: resend_api_key is required when from_email is set")
	}

	if _, err := time.LoadLocation(c.Scheduler.Timezone); c.Scheduler.Timezone != "" && err != nil {
		errs = append(errs, fmt.Sprintf("scheduler: invalid timezone %q: %v", c.Scheduler.Timezone, err))
	}
	if c.Scheduler.DefaultCheckHour < 0 || c.Scheduler.DefaultCheckHour > 23 {
		errs = append(errs, "scheduler: default_check_hour must be 0-23")
	}

	if c.Healing.MaxAttempts < 1 {
		errs = append(errs, "healing: max_attempts must be >= 1")
	}
	if c.Healing.StoreFailureThreshold < 1 {
		errs = append(errs, "healing: store_failure_threshold must be >= 1")
	}

	if c.Retention.ScrapeLogDays < 1 {
		errs = append(errs, "retention: scrape_log_days must be >= 1")
	}
	if c.Retention.NotificationDays < 1 {
		errs = append(errs, "retention: notification_days must be >= 1")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
