package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"archie-core-shopify-ingestion/internal/application"
	"archie-core-shopify-ingestion/internal/application/transformer"
	"archie-core-shopify-ingestion/internal/application/webhook_handlers"
	"archie-core-shopify-ingestion/internal/config"
	"archie-core-shopify-ingestion/internal/infrastructure/encryption"
	"archie-core-shopify-ingestion/internal/infrastructure/metrics"
	"archie-core-shopify-ingestion/internal/infrastructure/pubsub"
	"archie-core-shopify-ingestion/internal/infrastructure/queue"
	"archie-core-shopify-ingestion/internal/infrastructure/repository"
	"archie-core-shopify-ingestion/internal/infrastructure/scheduler"
	shopifyinfra "archie-core-shopify-ingestion/internal/infrastructure/shopify"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// app holds the wired service graph shared by the commands
type app struct {
	cfg       *config.Config
	logger    zerolog.Logger
	registry  *prometheus.Registry
	events    *pubsub.SyncPubSub
	queue     ports.EventQueue
	scheduler *scheduler.Scheduler
	ingestion *application.IngestionService
	processor *application.WebhookProcessor
	receiver  *application.WebhookReceiver

	closers []func(context.Context) error
}

func buildApp(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*app, error) {
	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(ctx); err != nil {
		a.close(context.Background())
		return nil, err
	}
	return a, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg, logger := a.cfg, a.logger

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(a.registry)

	tenants, webhookLog, err := a.openMongo(ctx)
	if err != nil {
		return err
	}
	store, err := a.openRecordStore(ctx)
	if err != nil {
		return err
	}
	if a.queue, err = a.openQueue(ctx); err != nil {
		return err
	}

	enc, err := encryption.NewService(cfg.EncryptionKey)
	if err != nil {
		return fmt.Errorf("failed to initialize encryption service: %w", err)
	}
	tokens := shopifyinfra.NewTokenManager(enc, logger)
	credentials := application.NewCredentialsService(tenants, tokens, logger)
	tr := transformer.New(enc.Encrypt)

	clientFactory := shopifyinfra.NewClientFactory(shopifyinfra.ClientConfig{
		APIVersion:         cfg.Shopify.APIVersion,
		PageSize:           cfg.Shopify.PageSize,
		PageDelay:          cfg.Shopify.PageDelay,
		LeakRatePerSecond:  cfg.Shopify.LeakRatePerSecond,
		DefaultBucketSize:  cfg.Shopify.BucketSize,
		MaxThrottleRetries: cfg.Shopify.MaxThrottleRetries,
		RequestTimeout:     cfg.Shopify.RequestTimeout,
	}, logger)

	var registrar ports.WebhookRegistrar
	if cfg.Webhook.Address != "" {
		registrar = shopifyinfra.NewWebhookRegistrar(cfg.Shopify.APIVersion, logger)
	} else {
		logger.Warn().Msg("WEBHOOK_ADDRESS not set, webhook registration disabled")
	}

	a.events = pubsub.NewSyncPubSub(logger)
	a.scheduler = scheduler.New(scheduler.Config{
		Cooldown:       cfg.Scheduler.Cooldown,
		DefaultTimeout: cfg.Scheduler.TenantJobTimeout,
		Location:       time.UTC,
	}, m, logger)

	importer := application.NewImporter(store, tr, m, logger)
	a.ingestion = application.NewIngestionService(
		credentials,
		clientFactory,
		importer,
		a.scheduler,
		registrar,
		webhookLog,
		a.events,
		m,
		ingestionConfig(cfg),
		logger,
	)

	procCfg := application.DefaultWebhookProcessorConfig()
	procCfg.Workers = cfg.Queue.Workers
	if cfg.Queue.Driver == "redis" {
		procCfg.RecoverInterval = cfg.Redis.VisibilityTimeout
	}
	a.processor = application.NewWebhookProcessor(a.queue, webhookLog, a.events, m, procCfg, logger)
	a.processor.RegisterHandler(webhook_handlers.NewCustomerHandler(store, tr, logger))
	a.processor.RegisterHandler(webhook_handlers.NewProductHandler(store, tr, logger))
	a.processor.RegisterHandler(webhook_handlers.NewOrderHandler(store, tr, logger))
	a.processor.RegisterHandler(webhook_handlers.NewAppUninstalledHandler(a.ingestion, logger))

	a.receiver = application.NewWebhookReceiver(a.ingestion, shopifyinfra.VerifySignature, a.queue, webhookLog, m, logger)
	return nil
}

func ingestionConfig(cfg *config.Config) application.IngestionConfig {
	ic := application.DefaultIngestionConfig()
	ic.WebhookAddress = cfg.Webhook.Address
	ic.WebhookTopics = shopifyinfra.DefaultWebhookTopics
	ic.CustomerSyncCron = cfg.Scheduler.CustomerSyncCron
	ic.ProductSyncCron = cfg.Scheduler.ProductSyncCron
	ic.OrderSyncCron = cfg.Scheduler.OrderSyncCron
	ic.FullSyncCron = cfg.Scheduler.FullSyncCron
	ic.HealthCheckCron = cfg.Scheduler.HealthCheckCron
	ic.RateLimitCron = cfg.Scheduler.RateLimitCron
	ic.CleanupCron = cfg.Scheduler.CleanupCron
	ic.OrderSyncWindow = cfg.Scheduler.OrderSyncWindow
	ic.TenantJobTimeout = cfg.Scheduler.TenantJobTimeout
	ic.GlobalJobTimeout = cfg.Scheduler.GlobalJobTimeout
	ic.WebhookRetention = cfg.Webhook.Retention
	ic.ImportDefaults = cfg.Import.Options()
	return ic
}

// openMongo connects the tenant and webhook stores, falling back to memory without a URI
func (a *app) openMongo(ctx context.Context) (ports.TenantRepository, ports.WebhookEventLog, error) {
	if a.cfg.Mongo.URI == "" {
		a.logger.Warn().Msg("MONGODB_URI not set, tenants and webhook log are kept in memory")
		return repository.NewMemoryTenantRepository(), repository.NewMemoryWebhookEventLog(), nil
	}

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(a.cfg.Mongo.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	a.closers = append(a.closers, client.Disconnect)
	if err := client.Ping(connectCtx, nil); err != nil {
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(a.cfg.Mongo.Database)
	tenants := repository.NewMongoTenantRepository(db)
	if err := tenants.EnsureIndexes(ctx); err != nil {
		return nil, nil, err
	}
	webhookLog := repository.NewMongoWebhookEventRepository(db)
	if err := webhookLog.EnsureIndexes(ctx); err != nil {
		return nil, nil, err
	}
	a.logger.Info().Str("database", a.cfg.Mongo.Database).Msg("Connected to MongoDB")
	return tenants, webhookLog, nil
}

// openRecordStore opens the analytics database and migrates its schema
func (a *app) openRecordStore(ctx context.Context) (ports.RecordStore, error) {
	var dialector gorm.Dialector
	switch a.cfg.Store.Driver {
	case "postgres":
		dialector = postgres.Open(a.cfg.Store.DSN)
	case "sqlite":
		dialector = sqlite.Open(a.cfg.Store.DSN)
	default:
		a.logger.Warn().Msg("Record store is in memory, imported data will not survive a restart")
		return repository.NewMemoryRecordStore(), nil
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s record store: %w", a.cfg.Store.Driver, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	a.closers = append(a.closers, func(context.Context) error { return sqlDB.Close() })

	store := repository.NewGormRecordStore(db)
	if err := store.Migrate(ctx); err != nil {
		return nil, err
	}
	a.logger.Info().Str("driver", a.cfg.Store.Driver).Msg("Record store ready")
	return store, nil
}

func (a *app) openQueue(ctx context.Context) (ports.EventQueue, error) {
	if a.cfg.Queue.Driver != "redis" {
		a.logger.Warn().Msg("Webhook queue is in memory, queued events are lost on restart")
		return queue.NewMemoryEventQueue(), nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     a.cfg.Redis.Addr,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	a.logger.Info().Str("addr", a.cfg.Redis.Addr).Str("key", a.cfg.Redis.QueueKey).Msg("Connected to Redis")
	return queue.NewRedisEventQueue(client, a.cfg.Redis.QueueKey, a.cfg.Redis.VisibilityTimeout), nil
}

// close releases connections in reverse order of opening
func (a *app) close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
