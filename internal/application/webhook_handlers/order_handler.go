package webhook_handlers

import (
	"context"
	"fmt"

	"archie-core-shopify-ingestion/internal/application/transformer"
	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/rs/zerolog"
)

// OrderHandler applies order webhooks to the record store
type OrderHandler struct {
	store       ports.RecordStore
	transformer *transformer.Transformer
	logger      zerolog.Logger
}

// NewOrderHandler creates a new order webhook handler
func NewOrderHandler(store ports.RecordStore, tr *transformer.Transformer, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		store:       store,
		transformer: tr,
		logger:      logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *OrderHandler) CanHandle(topic string) bool {
	switch topic {
	case "orders/create", "orders/updated", "orders/paid",
		"orders/fulfilled", "orders/partially_fulfilled", "orders/cancelled", "orders/delete":
		return true
	}
	return false
}

// Handle processes an order webhook event. The order and its children are
// written in one unit, exactly as the batch import does.
func (h *OrderHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	if event.Topic == "orders/delete" {
		return deleteRecord(ctx, h.store, h.transformer, domain.ResourceOrders, event, h.logger)
	}

	o, err := h.transformer.DecodeOrder(event.Payload)
	if err != nil {
		return err
	}
	order, items, lifecycle, err := h.transformer.TransformOrder(o, event.TenantID)
	if err != nil {
		return err
	}
	if err := h.store.UpsertOrder(ctx, order, items, []domain.OrderEvent{lifecycle}); err != nil {
		return fmt.Errorf("failed to upsert order %s: %w", order.ExternalID, err)
	}

	h.logger.Debug().
		Str("topic", event.Topic).
		Str("tenantId", event.TenantID).
		Str("orderId", order.ExternalID).
		Str("lifecycle", string(lifecycle.Kind)).
		Msg("Order webhook applied")
	return nil
}
