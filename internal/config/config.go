// Package config loads service configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"archie-core-shopify-ingestion/internal/domain"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
)

// Config holds all service configuration
type Config struct {
	Server        ServerConfig
	Mongo         MongoConfig
	Store         StoreConfig
	Queue         QueueConfig
	Redis         RedisConfig
	Shopify       ShopifyConfig
	Webhook       WebhookConfig
	Scheduler     SchedulerConfig
	Import        ImportConfig
	Log           LogConfig
	EncryptionKey string
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	CORSOrigins     []string
	// AdminToken protects /api/v1; an empty token disables the admin API
	AdminToken string
}

// MongoConfig holds the tenant and webhook log database. An empty URI keeps both in memory.
type MongoConfig struct {
	URI      string
	Database string
}

// StoreConfig selects the analytics record store
type StoreConfig struct {
	Driver string // postgres, sqlite, memory
	DSN    string
}

// QueueConfig selects the webhook queue
type QueueConfig struct {
	Driver  string // redis, memory
	Workers int
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	QueueKey string
	// VisibilityTimeout is how long a claimed webhook event stays with its worker
	VisibilityTimeout time.Duration
}

// ShopifyConfig holds Admin API client settings
type ShopifyConfig struct {
	APIVersion         string
	PageSize           int
	PageDelay          time.Duration
	LeakRatePerSecond  float64
	BucketSize         int
	MaxThrottleRetries int
	RequestTimeout     time.Duration
}

// WebhookConfig holds webhook settings
type WebhookConfig struct {
	// Address is the public URL registered with Shopify; empty disables registration
	Address   string
	Path      string
	Retention time.Duration
}

// SchedulerConfig holds job schedules and limits
type SchedulerConfig struct {
	Enabled          bool
	Cooldown         time.Duration
	TenantJobTimeout time.Duration
	GlobalJobTimeout time.Duration
	CustomerSyncCron string
	ProductSyncCron  string
	OrderSyncCron    string
	FullSyncCron     string
	HealthCheckCron  string
	RateLimitCron    string
	CleanupCron      string
	OrderSyncWindow  time.Duration
}

// ImportConfig holds importer defaults; zero values fall back to per-resource defaults
type ImportConfig struct {
	BatchSize     int
	Concurrency   int
	RetryAttempts int
	RetryMin      time.Duration
	RetryMax      time.Duration
	RetryFactor   float64
}

// LogConfig holds logging settings
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
}

const defaultSQLiteDSN = "ingestion.db"

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", "8080")
	v.SetDefault("http_read_timeout", 15*time.Second)
	v.SetDefault("http_write_timeout", 30*time.Second)
	v.SetDefault("http_shutdown_timeout", 20*time.Second)
	v.SetDefault("http_max_body_bytes", int64(5<<20))
	v.SetDefault("cors_allowed_origins", "*")

	v.SetDefault("mongodb_database", "shopify_ingestion")

	v.SetDefault("store_driver", "sqlite")

	v.SetDefault("queue_driver", "memory")
	v.SetDefault("queue_workers", 4)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_queue_key", "shopify:webhooks")
	v.SetDefault("redis_visibility_timeout", 5*time.Minute)

	v.SetDefault("shopify_api_version", "2024-01")
	v.SetDefault("shopify_page_size", 250)
	v.SetDefault("shopify_page_delay", 500*time.Millisecond)
	v.SetDefault("shopify_leak_rate", 2.0)
	v.SetDefault("shopify_bucket_size", 40)
	v.SetDefault("shopify_max_throttle_retries", 10)
	v.SetDefault("shopify_request_timeout", 30*time.Second)

	v.SetDefault("webhook_path", "/webhooks/shopify")
	v.SetDefault("webhook_retention", 30*24*time.Hour)

	v.SetDefault("scheduler_enabled", true)
	v.SetDefault("scheduler_cooldown", 30*time.Second)
	v.SetDefault("scheduler_tenant_job_timeout", 30*time.Minute)
	v.SetDefault("scheduler_global_job_timeout", 2*time.Minute)
	v.SetDefault("cron_customer_sync", "0 */6 * * *")
	v.SetDefault("cron_product_sync", "0 2 * * *")
	v.SetDefault("cron_order_sync", "*/15 * * * *")
	v.SetDefault("cron_full_sync", "0 3 * * 0")
	v.SetDefault("cron_health_check", "*/5 * * * *")
	v.SetDefault("cron_rate_limit", "* * * * *")
	v.SetDefault("cron_cleanup", "0 4 * * *")
	v.SetDefault("order_sync_window", 7*24*time.Hour)

	v.SetDefault("import_retry_attempts", 3)
	v.SetDefault("import_retry_min", time.Second)
	v.SetDefault("import_retry_max", 10*time.Second)
	v.SetDefault("import_retry_factor", 2.0)

	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Load reads .env (if present) and the environment into a validated Config
func Load() (*Config, error) {
	// a missing .env is normal outside local development
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Port:            v.GetString("port"),
			ReadTimeout:     v.GetDuration("http_read_timeout"),
			WriteTimeout:    v.GetDuration("http_write_timeout"),
			ShutdownTimeout: v.GetDuration("http_shutdown_timeout"),
			MaxBodyBytes:    v.GetInt64("http_max_body_bytes"),
			CORSOrigins:     splitList(v.GetString("cors_allowed_origins")),
			AdminToken:      v.GetString("admin_token"),
		},
		Mongo: MongoConfig{
			URI:      v.GetString("mongodb_uri"),
			Database: v.GetString("mongodb_database"),
		},
		Store: StoreConfig{
			Driver: strings.ToLower(v.GetString("store_driver")),
			DSN:    v.GetString("store_dsn"),
		},
		Queue: QueueConfig{
			Driver:  strings.ToLower(v.GetString("queue_driver")),
			Workers: v.GetInt("queue_workers"),
		},
		Redis: RedisConfig{
			Addr:              v.GetString("redis_addr"),
			Password:          v.GetString("redis_password"),
			DB:                v.GetInt("redis_db"),
			QueueKey:          v.GetString("redis_queue_key"),
			VisibilityTimeout: v.GetDuration("redis_visibility_timeout"),
		},
		Shopify: ShopifyConfig{
			APIVersion:         v.GetString("shopify_api_version"),
			PageSize:           v.GetInt("shopify_page_size"),
			PageDelay:          v.GetDuration("shopify_page_delay"),
			LeakRatePerSecond:  v.GetFloat64("shopify_leak_rate"),
			BucketSize:         v.GetInt("shopify_bucket_size"),
			MaxThrottleRetries: v.GetInt("shopify_max_throttle_retries"),
			RequestTimeout:     v.GetDuration("shopify_request_timeout"),
		},
		Webhook: WebhookConfig{
			Address:   v.GetString("webhook_address"),
			Path:      v.GetString("webhook_path"),
			Retention: v.GetDuration("webhook_retention"),
		},
		Scheduler: SchedulerConfig{
			Enabled:          v.GetBool("scheduler_enabled"),
			Cooldown:         v.GetDuration("scheduler_cooldown"),
			TenantJobTimeout: v.GetDuration("scheduler_tenant_job_timeout"),
			GlobalJobTimeout: v.GetDuration("scheduler_global_job_timeout"),
			CustomerSyncCron: v.GetString("cron_customer_sync"),
			ProductSyncCron:  v.GetString("cron_product_sync"),
			OrderSyncCron:    v.GetString("cron_order_sync"),
			FullSyncCron:     v.GetString("cron_full_sync"),
			HealthCheckCron:  v.GetString("cron_health_check"),
			RateLimitCron:    v.GetString("cron_rate_limit"),
			CleanupCron:      v.GetString("cron_cleanup"),
			OrderSyncWindow:  v.GetDuration("order_sync_window"),
		},
		Import: ImportConfig{
			BatchSize:     v.GetInt("import_batch_size"),
			Concurrency:   v.GetInt("import_concurrency"),
			RetryAttempts: v.GetInt("import_retry_attempts"),
			RetryMin:      v.GetDuration("import_retry_min"),
			RetryMax:      v.GetDuration("import_retry_max"),
			RetryFactor:   v.GetFloat64("import_retry_factor"),
		},
		Log: LogConfig{
			Level:  strings.ToLower(v.GetString("log_level")),
			Format: strings.ToLower(v.GetString("log_format")),
		},
		EncryptionKey: v.GetString("encryption_key"),
	}

	if cfg.Store.Driver == "sqlite" && cfg.Store.DSN == "" {
		cfg.Store.DSN = defaultSQLiteDSN
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once
func (c *Config) Validate() error {
	var errs []error
	if c.EncryptionKey == "" {
		errs = append(errs, errors.New("ENCRYPTION_KEY is required"))
	}
	if c.Server.Port == "" {
		errs = append(errs, errors.New("PORT must not be empty"))
	}

	switch c.Store.Driver {
	case "postgres", "sqlite":
		if c.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("STORE_DSN is required for the %s store", c.Store.Driver))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("STORE_DRIVER must be postgres, sqlite or memory, got %q", c.Store.Driver))
	}

	switch c.Queue.Driver {
	case "redis":
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("REDIS_ADDR is required for the redis queue"))
		}
		if c.Redis.VisibilityTimeout <= 0 {
			errs = append(errs, errors.New("REDIS_VISIBILITY_TIMEOUT must be positive"))
		}
	case "memory":
	default:
		errs = append(errs, fmt.Errorf("QUEUE_DRIVER must be redis or memory, got %q", c.Queue.Driver))
	}
	if c.Queue.Workers <= 0 {
		errs = append(errs, errors.New("QUEUE_WORKERS must be positive"))
	}

	if c.Shopify.PageSize <= 0 || c.Shopify.PageSize > 250 {
		errs = append(errs, fmt.Errorf("SHOPIFY_PAGE_SIZE must be between 1 and 250, got %d", c.Shopify.PageSize))
	}
	if c.Shopify.MaxThrottleRetries <= 0 {
		errs = append(errs, errors.New("SHOPIFY_MAX_THROTTLE_RETRIES must be positive"))
	}

	if c.Webhook.Address != "" {
		u, err := url.Parse(c.Webhook.Address)
		if err != nil || !u.IsAbs() {
			errs = append(errs, fmt.Errorf("WEBHOOK_ADDRESS must be an absolute URL, got %q", c.Webhook.Address))
		}
	}
	if !strings.HasPrefix(c.Webhook.Path, "/") {
		errs = append(errs, fmt.Errorf("WEBHOOK_PATH must start with /, got %q", c.Webhook.Path))
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, expr := range map[string]string{
		"CRON_CUSTOMER_SYNC": c.Scheduler.CustomerSyncCron,
		"CRON_PRODUCT_SYNC":  c.Scheduler.ProductSyncCron,
		"CRON_ORDER_SYNC":    c.Scheduler.OrderSyncCron,
		"CRON_FULL_SYNC":     c.Scheduler.FullSyncCron,
		"CRON_HEALTH_CHECK":  c.Scheduler.HealthCheckCron,
		"CRON_RATE_LIMIT":    c.Scheduler.RateLimitCron,
		"CRON_CLEANUP":       c.Scheduler.CleanupCron,
	} {
		if _, err := parser.Parse(expr); err != nil {
			errs = append(errs, fmt.Errorf("%s is not a valid cron expression: %w", name, err))
		}
	}

	switch c.Log.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("LOG_FORMAT must be json or console, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// Options converts the defaults into import options
func (c ImportConfig) Options() domain.ImportOptions {
	return domain.ImportOptions{
		BatchSize:   c.BatchSize,
		Concurrency: c.Concurrency,
		Retry: domain.RetryPolicy{
			Attempts:   c.RetryAttempts,
			MinTimeout: c.RetryMin,
			MaxTimeout: c.RetryMax,
			Factor:     c.RetryFactor,
		},
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
