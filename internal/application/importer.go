package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"archie-core-shopify-ingestion/internal/application/transformer"
	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Importer turns a paginated fetch into persisted, deduplicated records
type Importer struct {
	store       ports.RecordStore
	transformer *transformer.Transformer
	metrics     ports.Metrics
	logger      zerolog.Logger
	sleep       func(ctx context.Context, d time.Duration) error
}

// NewImporter creates a batch importer
func NewImporter(store ports.RecordStore, tr *transformer.Transformer, metrics ports.Metrics, logger zerolog.Logger) *Importer {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &Importer{
		store:       store,
		transformer: tr,
		metrics:     metrics,
		logger:      logger,
		sleep:       sleepContext,
	}
}

// pipeline describes how one resource type flows from raw JSON to the store.
// transform returns the write to perform so that only the write is retried.
type pipeline[T any] struct {
	decode    func(raw json.RawMessage) (T, error)
	id        func(rec T) string
	transform func(rec T, tenantID string) (func(ctx context.Context) error, error)
}

func (imp *Importer) customerPipeline() pipeline[*transformer.Customer] {
	return pipeline[*transformer.Customer]{
		decode: imp.transformer.DecodeCustomer,
		id:     func(c *transformer.Customer) string { return transformer.ExternalID(c.ID) },
		transform: func(c *transformer.Customer, tenantID string) (func(context.Context) error, error) {
			customer, err := imp.transformer.TransformCustomer(c, tenantID)
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context) error { return imp.store.UpsertCustomer(ctx, customer) }, nil
		},
	}
}

func (imp *Importer) productPipeline() pipeline[*transformer.Product] {
	return pipeline[*transformer.Product]{
		decode: imp.transformer.DecodeProduct,
		id:     func(p *transformer.Product) string { return transformer.ExternalID(p.ID) },
		transform: func(p *transformer.Product, tenantID string) (func(context.Context) error, error) {
			product, err := imp.transformer.TransformProduct(p, tenantID)
			if err != nil {
				return nil, err
			}
			return func(ctx context.Context) error { return imp.store.UpsertProduct(ctx, product) }, nil
		},
	}
}

func (imp *Importer) orderPipeline() pipeline[*transformer.Order] {
	return pipeline[*transformer.Order]{
		decode: imp.transformer.DecodeOrder,
		id:     func(o *transformer.Order) string { return transformer.ExternalID(o.ID) },
		transform: func(o *transformer.Order, tenantID string) (func(context.Context) error, error) {
			order, items, event, err := imp.transformer.TransformOrder(o, tenantID)
			if err != nil {
				return nil, err
			}
			events := []domain.OrderEvent{event}
			return func(ctx context.Context) error { return imp.store.UpsertOrder(ctx, order, items, events) }, nil
		},
	}
}

// Import runs one resource import for a tenant. Item-level failures are
// reported in the result; only an unknown resource returns an error.
func (imp *Importer) Import(ctx context.Context, client ports.ShopifyClient, tenantID string, resource domain.ResourceType, opts domain.ImportOptions) (*domain.ImportResult, error) {
	opts = opts.WithDefaults(resource)
	result := domain.NewImportResult(uuid.NewString(), tenantID, resource, opts.DryRun)

	logger := imp.logger.With().
		Str("tenant_id", tenantID).
		Str("resource", string(resource)).
		Str("run_id", result.RunID).
		Logger()

	var onBatch ports.BatchFunc
	switch resource {
	case domain.ResourceCustomers:
		onBatch = batchHandler(imp, client, imp.customerPipeline(), tenantID, resource, opts, result, logger)
	case domain.ResourceProducts:
		onBatch = batchHandler(imp, client, imp.productPipeline(), tenantID, resource, opts, result, logger)
	case domain.ResourceOrders:
		onBatch = batchHandler(imp, client, imp.orderPipeline(), tenantID, resource, opts, result, logger)
	default:
		return nil, fmt.Errorf("%w: %q", domain.ErrUnknownResource, resource)
	}

	logger.Info().
		Int("batch_size", opts.BatchSize).
		Int("concurrency", opts.Concurrency).
		Bool("dry_run", opts.DryRun).
		Bool("skip_existing", opts.SkipExisting).
		Msg("Starting import")

	if _, err := client.FetchAll(ctx, resource, FetchParams(resource, opts), onBatch); err != nil {
		logger.Error().Err(err).Msg("Import fetch stopped early")
		result.Fail(fmt.Errorf("failed to fetch %s: %w", resource, err))
	} else {
		result.Finish()
	}

	imp.metrics.ObserveImport(result)
	imp.metrics.SetRateLimitUtilization(tenantID, client.RateLimit().Utilization())

	logger.Info().
		Str("status", string(result.Status)).
		Int("imported", result.Imported).
		Int("skipped", result.Skipped).
		Int("errors", result.Errors).
		Dur("duration", result.Duration).
		Msg("Import finished")

	return result, nil
}

// ImportAll imports customers, products and orders in that order.
// A failing resource does not stop the next one.
func (imp *Importer) ImportAll(ctx context.Context, client ports.ShopifyClient, tenantID string, opts domain.ImportOptions) []*domain.ImportResult {
	results := make([]*domain.ImportResult, 0, len(domain.ImportOrder))
	for _, resource := range domain.ImportOrder {
		if ctx.Err() != nil {
			break
		}
		result, err := imp.Import(ctx, client, tenantID, resource, opts)
		if err != nil {
			continue
		}
		results = append(results, result)
	}
	return results
}

// FetchParams builds the query parameters for a resource import
func FetchParams(resource domain.ResourceType, opts domain.ImportOptions) url.Values {
	params := url.Values{}
	setTime := func(key string, t *time.Time) {
		if t != nil {
			params.Set(key, t.UTC().Format(time.RFC3339))
		}
	}
	setTime("created_at_min", opts.CreatedAtMin)
	setTime("created_at_max", opts.CreatedAtMax)
	setTime("updated_at_min", opts.UpdatedAtMin)
	setTime("updated_at_max", opts.UpdatedAtMax)

	if resource == domain.ResourceOrders {
		// closed and cancelled orders are hidden unless asked for
		params.Set("status", "any")
		if opts.FinancialStatus != "" {
			params.Set("financial_status", opts.FinancialStatus)
		}
	}
	return params
}

func batchHandler[T any](
	imp *Importer,
	client ports.ShopifyClient,
	p pipeline[T],
	tenantID string,
	resource domain.ResourceType,
	opts domain.ImportOptions,
	result *domain.ImportResult,
	logger zerolog.Logger,
) ports.BatchFunc {
	return func(ctx context.Context, items []json.RawMessage) error {
		for start := 0; start < len(items); start += opts.BatchSize {
			end := min(start+opts.BatchSize, len(items))

			if client.IsThrottled() {
				wait := client.WaitTime()
				logger.Warn().Dur("wait", wait).Msg("Client throttled, pausing before next batch")
				if err := imp.sleep(ctx, wait); err != nil {
					return err
				}
			}

			var g errgroup.Group
			g.SetLimit(opts.Concurrency)
			for _, raw := range items[start:end] {
				g.Go(func() error {
					importItem(ctx, imp, p, raw, tenantID, resource, opts, result, logger)
					return nil
				})
			}
			_ = g.Wait()
		}
		return ctx.Err()
	}
}

func importItem[T any](
	ctx context.Context,
	imp *Importer,
	p pipeline[T],
	raw json.RawMessage,
	tenantID string,
	resource domain.ResourceType,
	opts domain.ImportOptions,
	result *domain.ImportResult,
	logger zerolog.Logger,
) {
	rec, err := p.decode(raw)
	if err != nil {
		logger.Debug().Err(err).Str("external_id", transformer.RecordID(raw)).Msg("Skipping invalid record")
		result.AddSkippedInvalid()
		return
	}
	externalID := p.id(rec)

	if opts.DryRun {
		result.AddImported()
		return
	}

	if opts.SkipExisting {
		var exists bool
		err := imp.withRetry(ctx, resource, opts.Retry, func(ctx context.Context) error {
			var err error
			exists, err = imp.store.Exists(ctx, resource, tenantID, externalID)
			return err
		})
		if err != nil {
			result.AddError(externalID, fmt.Errorf("failed to check existing record: %w", err))
			return
		}
		if exists {
			result.AddSkippedExisting()
			return
		}
	}

	write, err := p.transform(rec, tenantID)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			logger.Debug().Err(err).Str("external_id", externalID).Msg("Skipping invalid record")
			result.AddSkippedInvalid()
			return
		}
		logger.Error().Err(err).Str("external_id", externalID).Msg("Failed to transform record")
		result.AddError(externalID, err)
		return
	}

	if err := imp.withRetry(ctx, resource, opts.Retry, write); err != nil {
		logger.Error().Err(err).Str("external_id", externalID).Msg("Failed to persist record")
		result.AddError(externalID, err)
		return
	}
	result.AddImported()
}

// withRetry runs op up to policy.Attempts times with exponential backoff
func (imp *Importer) withRetry(ctx context.Context, resource domain.ResourceType, policy domain.RetryPolicy, op func(ctx context.Context) error) error {
	var err error
	for attempt := 0; attempt < policy.Attempts; attempt++ {
		if attempt > 0 {
			delay := policy.Backoff(attempt - 1)
			imp.metrics.ObserveRetry(resource, delay)
			if serr := imp.sleep(ctx, delay); serr != nil {
				return serr
			}
		}
		if err = op(ctx); err == nil {
			return nil
		}
	}
	return fmt.Errorf("failed after %d attempts: %w", policy.Attempts, err)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
