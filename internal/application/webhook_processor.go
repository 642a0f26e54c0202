package application

import (
	"context"
	"errors"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// WebhookHandler applies one family of webhook topics
type WebhookHandler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookProcessorConfig tunes the queue workers
type WebhookProcessorConfig struct {
	Workers        int
	ClaimWait      time.Duration
	HandlerTimeout time.Duration
	Retry          domain.RetryPolicy
	// RecoverInterval re-runs queue recovery while running; zero only recovers at start
	RecoverInterval time.Duration
}

// DefaultWebhookProcessorConfig returns 4 workers and the default retry policy
func DefaultWebhookProcessorConfig() WebhookProcessorConfig {
	return WebhookProcessorConfig{
		Workers:        4,
		ClaimWait:      2 * time.Second,
		HandlerTimeout: 30 * time.Second,
		Retry:          domain.DefaultRetryPolicy(),
	}
}

// WebhookProcessor drains the webhook queue and dispatches events to handlers
type WebhookProcessor struct {
	queue    ports.EventQueue
	events   ports.WebhookEventLog
	handlers []WebhookHandler
	notifier ports.Notifier
	metrics  ports.Metrics
	cfg      WebhookProcessorConfig
	logger   zerolog.Logger
	sleep    func(ctx context.Context, d time.Duration) error
}

// NewWebhookProcessor creates a processor; register handlers before Run
func NewWebhookProcessor(
	queue ports.EventQueue,
	events ports.WebhookEventLog,
	notifier ports.Notifier,
	metrics ports.Metrics,
	cfg WebhookProcessorConfig,
	logger zerolog.Logger,
) *WebhookProcessor {
	if notifier == nil {
		notifier = ports.NopNotifier{}
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	def := DefaultWebhookProcessorConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.ClaimWait <= 0 {
		cfg.ClaimWait = def.ClaimWait
	}
	if cfg.HandlerTimeout <= 0 {
		cfg.HandlerTimeout = def.HandlerTimeout
	}
	if cfg.Retry.Attempts <= 0 {
		cfg.Retry = def.Retry
	}
	return &WebhookProcessor{
		queue:    queue,
		events:   events,
		notifier: notifier,
		metrics:  metrics,
		cfg:      cfg,
		logger:   logger.With().Str("component", "webhook-processor").Logger(),
		sleep:    sleepContext,
	}
}

// RegisterHandler adds a handler; the first one that accepts a topic wins
func (p *WebhookProcessor) RegisterHandler(h WebhookHandler) {
	p.handlers = append(p.handlers, h)
}

func (p *WebhookProcessor) handlerFor(topic string) WebhookHandler {
	for _, h := range p.handlers {
		if h.CanHandle(topic) {
			return h
		}
	}
	return nil
}

// Run recovers events left in flight by a previous process, then drains the
// queue with the configured number of workers until ctx is cancelled.
func (p *WebhookProcessor) Run(ctx context.Context) error {
	p.recover(ctx)

	p.logger.Info().Int("workers", p.cfg.Workers).Msg("Webhook processor started")

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < p.cfg.Workers; i++ {
		g.Go(func() error {
			for gctx.Err() == nil {
				if _, err := p.ProcessNext(gctx); err != nil && gctx.Err() == nil {
					p.logger.Error().Err(err).Msg("Failed to claim webhook event")
					_ = p.sleep(gctx, time.Second)
				}
			}
			return nil
		})
	}
	if p.cfg.RecoverInterval > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(p.cfg.RecoverInterval)
			defer ticker.Stop()
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
					p.recover(gctx)
				}
			}
		})
	}
	err := g.Wait()
	p.logger.Info().Msg("Webhook processor stopped")
	return err
}

func (p *WebhookProcessor) recover(ctx context.Context) {
	if n, err := p.queue.Recover(ctx); err != nil {
		if ctx.Err() == nil {
			p.logger.Error().Err(err).Msg("Failed to recover in-flight webhook events")
		}
	} else if n > 0 {
		p.logger.Warn().Int("count", n).Msg("Recovered in-flight webhook events")
	}
}

// ProcessNext claims and processes at most one event. It reports whether an event was handled.
func (p *WebhookProcessor) ProcessNext(ctx context.Context) (bool, error) {
	item, err := p.queue.Claim(ctx, p.cfg.ClaimWait)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return false, nil
		}
		return false, err
	}
	if item == nil {
		p.reportDepth(ctx)
		return false, nil
	}

	// an event that was claimed is finished even if shutdown begins
	procCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.HandlerTimeout)
	defer cancel()

	p.Process(procCtx, item.Event)
	if err := p.queue.Ack(procCtx, item); err != nil {
		p.logger.Error().Err(err).Str("eventId", item.Event.ID).Msg("Failed to ack webhook event")
	}
	p.reportDepth(procCtx)
	return true, nil
}

func (p *WebhookProcessor) reportDepth(ctx context.Context) {
	if n, err := p.queue.Len(ctx); err == nil {
		p.metrics.SetQueueDepth(n)
	}
}

// Process dispatches one event and records the outcome in the event log
func (p *WebhookProcessor) Process(ctx context.Context, event *domain.WebhookEvent) domain.WebhookStatus {
	logger := p.logger.With().
		Str("eventId", event.ID).
		Str("topic", event.Topic).
		Str("tenantId", event.TenantID).
		Logger()

	h := p.handlerFor(event.Topic)
	if h == nil {
		logger.Warn().Msg("No handler registered for topic, dropping event")
		if err := p.events.MarkProcessed(ctx, event.ID, 0); err != nil {
			logger.Error().Err(err).Msg("Failed to update webhook event log")
		}
		p.finish(event, domain.WebhookStatusDropped, "")
		return domain.WebhookStatusDropped
	}

	var (
		err      error
		attempts int
	)
	for attempts = 1; attempts <= p.cfg.Retry.Attempts; attempts++ {
		if err = h.Handle(ctx, event); err == nil || errors.Is(err, domain.ErrValidation) {
			break
		}
		if attempts == p.cfg.Retry.Attempts {
			break
		}
		delay := p.cfg.Retry.Backoff(attempts - 1)
		logger.Warn().Err(err).Int("attempt", attempts).Dur("retryIn", delay).Msg("Webhook handler failed, retrying")
		if serr := p.sleep(ctx, delay); serr != nil {
			err = serr
			break
		}
	}
	attempts = min(attempts, p.cfg.Retry.Attempts)

	if err != nil {
		logger.Error().Err(err).Int("attempts", attempts).Msg("Webhook processing failed")
		if merr := p.events.MarkFailed(ctx, event.ID, attempts, err.Error()); merr != nil {
			logger.Error().Err(merr).Msg("Failed to update webhook event log")
		}
		p.finish(event, domain.WebhookStatusFailed, err.Error())
		return domain.WebhookStatusFailed
	}

	if merr := p.events.MarkProcessed(ctx, event.ID, attempts); merr != nil {
		logger.Error().Err(merr).Msg("Failed to update webhook event log")
	}
	logger.Debug().Int("attempts", attempts).Msg("Webhook processed")
	p.finish(event, domain.WebhookStatusProcessed, "")
	return domain.WebhookStatusProcessed
}

func (p *WebhookProcessor) finish(event *domain.WebhookEvent, status domain.WebhookStatus, errMsg string) {
	p.metrics.IncWebhook(event.Topic, status)
	n := &domain.Notification{
		Kind:     domain.NotificationWebhookProcessed,
		TenantID: event.TenantID,
		Topic:    event.Topic,
		EventID:  event.ID,
		Status:   string(status),
		At:       time.Now().UTC(),
	}
	if errMsg != "" {
		n.Status = string(status) + ": " + errMsg
	}
	p.notifier.Publish(n)
}
