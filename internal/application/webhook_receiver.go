package application

import (
	"context"
	"fmt"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// TenantResolver maps a shop domain to its decrypted active credential
type TenantResolver interface {
	ResolveTenantByDomain(ctx context.Context, shopDomain string) (*domain.TenantCredential, error)
}

// WebhookDelivery is an inbound webhook request as received over HTTP
type WebhookDelivery struct {
	Topic      string
	ShopDomain string
	Signature  string
	WebhookID  string
	Body       []byte
}

// WebhookReceiver authenticates deliveries and hands them to the queue
type WebhookReceiver struct {
	resolver TenantResolver
	verify   ports.SignatureVerifier
	queue    ports.EventQueue
	events   ports.WebhookEventLog
	metrics  ports.Metrics
	logger   zerolog.Logger
	now      func() time.Time
}

// NewWebhookReceiver creates a receiver
func NewWebhookReceiver(
	resolver TenantResolver,
	verify ports.SignatureVerifier,
	queue ports.EventQueue,
	events ports.WebhookEventLog,
	metrics ports.Metrics,
	logger zerolog.Logger,
) *WebhookReceiver {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &WebhookReceiver{
		resolver: resolver,
		verify:   verify,
		queue:    queue,
		events:   events,
		metrics:  metrics,
		logger:   logger.With().Str("component", "webhook-receiver").Logger(),
		now:      time.Now,
	}
}

// Receive verifies a delivery and durably enqueues it. A nil error means the
// event is safe to acknowledge: it is logged and will be processed.
//
// Errors: ErrValidation for missing headers, ErrTenantNotFound for an unknown
// shop, ErrInvalidSignature for a bad signature. Anything else is a storage
// failure and the delivery should be refused so the sender retries it.
func (r *WebhookReceiver) Receive(ctx context.Context, d WebhookDelivery) (*domain.WebhookEvent, error) {
	if d.Topic == "" || d.ShopDomain == "" || d.Signature == "" {
		return nil, fmt.Errorf("%w: missing webhook headers", domain.ErrValidation)
	}

	cred, err := r.resolver.ResolveTenantByDomain(ctx, d.ShopDomain)
	if err != nil {
		return nil, err
	}
	if cred == nil {
		return nil, domain.ErrTenantNotFound
	}

	if err := r.verify(cred.WebhookSecret, d.Body, d.Signature); err != nil {
		r.logger.Warn().
			Str("shop", d.ShopDomain).
			Str("topic", d.Topic).
			Msg("Rejected webhook with invalid signature")
		return nil, err
	}

	id := d.WebhookID
	if id == "" {
		id = uuid.NewString()
	}
	event := &domain.WebhookEvent{
		ID:         id,
		Topic:      d.Topic,
		TenantID:   cred.TenantID,
		ShopDomain: d.ShopDomain,
		Payload:    d.Body,
		ReceivedAt: r.now().UTC(),
		Status:     domain.WebhookStatusReceived,
	}

	if err := r.events.LogWebhook(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to log webhook event: %w", err)
	}
	if err := r.queue.Enqueue(ctx, event); err != nil {
		if merr := r.events.MarkFailed(ctx, event.ID, 0, "enqueue failed: "+err.Error()); merr != nil {
			r.logger.Error().Err(merr).Str("eventId", event.ID).Msg("Failed to update webhook event log")
		}
		return nil, fmt.Errorf("failed to enqueue webhook event: %w", err)
	}

	r.metrics.IncWebhook(event.Topic, domain.WebhookStatusReceived)
	r.logger.Debug().
		Str("eventId", event.ID).
		Str("tenantId", event.TenantID).
		Str("topic", event.Topic).
		Msg("Webhook accepted")
	return event, nil
}
