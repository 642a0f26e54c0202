package webhook_handlers

import (
	"context"
	"fmt"

	"archie-core-shopify-ingestion/internal/application/transformer"
	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/rs/zerolog"
)

// CustomerHandler applies customer webhooks to the record store
type CustomerHandler struct {
	store       ports.RecordStore
	transformer *transformer.Transformer
	logger      zerolog.Logger
}

// NewCustomerHandler creates a new customer webhook handler
func NewCustomerHandler(store ports.RecordStore, tr *transformer.Transformer, logger zerolog.Logger) *CustomerHandler {
	return &CustomerHandler{
		store:       store,
		transformer: tr,
		logger:      logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *CustomerHandler) CanHandle(topic string) bool {
	switch topic {
	case "customers/create", "customers/update", "customers/delete",
		"customers/enable", "customers/disable":
		return true
	}
	return false
}

// Handle processes a customer webhook event
func (h *CustomerHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	if event.Topic == "customers/delete" {
		return deleteRecord(ctx, h.store, h.transformer, domain.ResourceCustomers, event, h.logger)
	}

	c, err := h.transformer.DecodeCustomer(event.Payload)
	if err != nil {
		return err
	}
	customer, err := h.transformer.TransformCustomer(c, event.TenantID)
	if err != nil {
		return err
	}
	if err := h.store.UpsertCustomer(ctx, customer); err != nil {
		return fmt.Errorf("failed to upsert customer %s: %w", customer.ExternalID, err)
	}

	h.logger.Debug().
		Str("topic", event.Topic).
		Str("tenantId", event.TenantID).
		Str("customerId", customer.ExternalID).
		Msg("Customer webhook applied")
	return nil
}

func deleteRecord(
	ctx context.Context,
	store ports.RecordStore,
	tr *transformer.Transformer,
	resource domain.ResourceType,
	event *domain.WebhookEvent,
	logger zerolog.Logger,
) error {
	rec, err := tr.DecodeDeleted(event.Payload)
	if err != nil {
		return err
	}
	id := transformer.ExternalID(rec.ID)
	if err := store.Delete(ctx, resource, event.TenantID, id); err != nil {
		return fmt.Errorf("failed to delete %s %s: %w", resource, id, err)
	}
	logger.Info().
		Str("topic", event.Topic).
		Str("tenantId", event.TenantID).
		Str("externalId", id).
		Msg("Record deleted from webhook")
	return nil
}
