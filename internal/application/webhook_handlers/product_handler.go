package webhook_handlers

import (
	"context"
	"fmt"

	"archie-core-shopify-ingestion/internal/application/transformer"
	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/rs/zerolog"
)

// ProductHandler applies product webhooks to the record store
type ProductHandler struct {
	store       ports.RecordStore
	transformer *transformer.Transformer
	logger      zerolog.Logger
}

// NewProductHandler creates a new product webhook handler
func NewProductHandler(store ports.RecordStore, tr *transformer.Transformer, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		store:       store,
		transformer: tr,
		logger:      logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *ProductHandler) CanHandle(topic string) bool {
	return topic == "products/create" ||
		topic == "products/update" ||
		topic == "products/delete"
}

// Handle processes a product webhook event
func (h *ProductHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	if event.Topic == "products/delete" {
		return deleteRecord(ctx, h.store, h.transformer, domain.ResourceProducts, event, h.logger)
	}

	p, err := h.transformer.DecodeProduct(event.Payload)
	if err != nil {
		return err
	}
	product, err := h.transformer.TransformProduct(p, event.TenantID)
	if err != nil {
		return err
	}
	if err := h.store.UpsertProduct(ctx, product); err != nil {
		return fmt.Errorf("failed to upsert product %s: %w", product.ExternalID, err)
	}

	h.logger.Debug().
		Str("topic", event.Topic).
		Str("tenantId", event.TenantID).
		Str("productId", product.ExternalID).
		Int("variants", product.VariantCount).
		Msg("Product webhook applied")
	return nil
}
