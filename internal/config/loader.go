package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PRICEWATCH_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PRICEWATCH_* environment variables, plus
// a handful of bare aliases matching the original scraper's env names, and
// overwrites the corresponding Config fields when set. This lets operators
// inject secrets at deploy time without touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Database ──
	setStr(&cfg.Database.DSN, "PRICEWATCH_DATABASE_DSN")
	setStr(&cfg.Database.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Database.Host, "PRICEWATCH_DATABASE_HOST")
	setInt(&cfg.Database.Port, "PRICEWATCH_DATABASE_PORT")
	setStr(&cfg.Database.Database, "PRICEWATCH_DATABASE_NAME")
	setStr(&cfg.Database.User, "PRICEWATCH_DATABASE_USER")
	setStr(&cfg.Database.Password, "PRICEWATCH_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "PRICEWATCH_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "PRICEWATCH_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "PRICEWATCH_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "PRICEWATCH_DATABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "PRICEWATCH_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "PRICEWATCH_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "PRICEWATCH_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "PRICEWATCH_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "PRICEWATCH_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "PRICEWATCH_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "PRICEWATCH_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "PRICEWATCH_S3_REGION")
	setStr(&cfg.S3.Bucket, "PRICEWATCH_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "PRICEWATCH_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "PRICEWATCH_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "PRICEWATCH_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "PRICEWATCH_S3_FORCE_PATH_STYLE")

	// ── Engine ──
	setDuration(&cfg.Engine.RequestTimeout, "PRICEWATCH_ENGINE_REQUEST_TIMEOUT")
	setDurationSeconds(&cfg.Engine.RequestTimeout, "REQUEST_TIMEOUT_SECONDS")
	setDuration(&cfg.Engine.OperationTimeout, "PRICEWATCH_ENGINE_OPERATION_TIMEOUT")
	setDurationSeconds(&cfg.Engine.OperationTimeout, "OPERATION_TIMEOUT_SECONDS")
	setInt(&cfg.Engine.MaxConcurrentBrowsers, "PRICEWATCH_ENGINE_MAX_CONCURRENT_BROWSERS")
	setInt(&cfg.Engine.MaxConcurrentBrowsers, "MAX_CONCURRENT_BROWSERS")
	setFloat64(&cfg.Engine.MemoryThresholdPct, "PRICEWATCH_ENGINE_MEMORY_THRESHOLD_PERCENT")
	setFloat64(&cfg.Engine.MemoryThresholdPct, "MEMORY_THRESHOLD_PERCENT")
	setDuration(&cfg.Engine.PageLoadDelay, "PRICEWATCH_ENGINE_PAGE_LOAD_DELAY")
	setDurationSeconds(&cfg.Engine.PageLoadDelay, "PAGE_LOAD_DELAY_SECONDS")
	setInt(&cfg.Engine.MaxConsecutiveFailures, "PRICEWATCH_ENGINE_MAX_CONSECUTIVE_FAILURES")
	setInt(&cfg.Engine.MaxConsecutiveFailures, "MAX_CONSECUTIVE_FAILURES")
	setStringSlice(&cfg.Engine.UserAgents, "PRICEWATCH_ENGINE_USER_AGENTS")

	// ── Rate limit ──
	setInt(&cfg.RateLimit.MaxScrapesPerMinute, "PRICEWATCH_RATE_LIMIT_MAX_SCRAPES_PER_MINUTE")
	setInt(&cfg.RateLimit.MaxScrapesPerMinute, "MAX_SCRAPES_PER_MINUTE")
	setInt(&cfg.RateLimit.MaxLLMRequestsPerMinute, "PRICEWATCH_RATE_LIMIT_MAX_LLM_REQUESTS_PER_MINUTE")
	setInt(&cfg.RateLimit.MaxLLMRequestsPerMinute, "MAX_LLM_REQUESTS_PER_MINUTE")

	// ── LLM ──
	setStr(&cfg.LLM.OpenRouterAPIKey, "PRICEWATCH_LLM_OPENROUTER_API_KEY")
	setStr(&cfg.LLM.OpenRouterAPIKey, "OPENROUTER_API_KEY")
	setStr(&cfg.LLM.OpenAIAPIKey, "PRICEWATCH_LLM_OPENAI_API_KEY")
	setStr(&cfg.LLM.OpenAIAPIKey, "OPENAI_API_KEY")
	setStr(&cfg.LLM.Model, "PRICEWATCH_LLM_MODEL")
	setStr(&cfg.LLM.BaseURL, "PRICEWATCH_LLM_BASE_URL")
	setInt(&cfg.LLM.DailyTokenLimit, "PRICEWATCH_LLM_DAILY_TOKEN_LIMIT")
	setInt(&cfg.LLM.DailyTokenLimit, "DAILY_TOKEN_LIMIT")

	// ── Email ──
	setStr(&cfg.Email.ResendAPIKey, "PRICEWATCH_EMAIL_RESEND_API_KEY")
	setStr(&cfg.Email.ResendAPIKey, "RESEND_API_KEY")
	setStr(&cfg.Email.UserEmail, "PRICEWATCH_EMAIL_USER_EMAIL")
	setStr(&cfg.Email.UserEmail, "USER_EMAIL")
	setStr(&cfg.Email.FromEmail, "PRICEWATCH_EMAIL_FROM_EMAIL")
	setStr(&cfg.Email.FromEmail, "FROM_EMAIL")

	// ── Scheduler ──
	setInt(&cfg.Scheduler.DefaultCheckHour, "PRICEWATCH_SCHEDULER_DEFAULT_CHECK_HOUR")
	setInt(&cfg.Scheduler.DefaultCheckHour, "DEFAULT_CHECK_HOUR")
	setStr(&cfg.Scheduler.Timezone, "PRICEWATCH_SCHEDULER_TIMEZONE")
	setStr(&cfg.Scheduler.Timezone, "SCHEDULER_TIMEZONE")

	// ── Healing ──
	setInt(&cfg.Healing.MaxAttempts, "PRICEWATCH_HEALING_MAX_ATTEMPTS")
	setInt(&cfg.Healing.MaxAttempts, "MAX_HEALING_ATTEMPTS")
	setInt(&cfg.Healing.StoreFailureThreshold, "PRICEWATCH_HEALING_STORE_FAILURE_THRESHOLD")
	setInt(&cfg.Healing.StoreFailureThreshold, "STORE_FAILURE_THRESHOLD")

	// ── Retention ──
	setInt(&cfg.Retention.ScrapeLogDays, "PRICEWATCH_RETENTION_SCRAPE_LOG_DAYS")
	setInt(&cfg.Retention.ScrapeLogDays, "SCRAPE_LOG_RETENTION_DAYS")
	setInt(&cfg.Retention.NotificationDays, "PRICEWATCH_RETENTION_NOTIFICATION_DAYS")
	setInt(&cfg.Retention.NotificationDays, "NOTIFICATION_RETENTION_DAYS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PRICEWATCH_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "PRICEWATCH_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "PRICEWATCH_SERVER_CORS_ORIGINS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PRICEWATCH_MODE")
	setStr(&cfg.LogLevel, "PRICEWATCH_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

// setDurationSeconds parses a plain integer env var as a number of seconds,
// matching the original scraper's *_SECONDS naming convention.
func setDurationSeconds(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			dst.Duration = time.Duration(n) * time.Second
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
