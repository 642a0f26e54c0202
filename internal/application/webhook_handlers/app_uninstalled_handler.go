package webhook_handlers

import (
	"context"
	"errors"
	"fmt"

	"archie-core-shopify-ingestion/internal/domain"

	"github.com/rs/zerolog"
)

// TenantRemover offboards a tenant
type TenantRemover interface {
	RemoveTenant(ctx context.Context, tenantID string) error
}

// AppUninstalledHandler offboards the tenant whose store uninstalled the app
type AppUninstalledHandler struct {
	remover TenantRemover
	logger  zerolog.Logger
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(remover TenantRemover, logger zerolog.Logger) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		remover: remover,
		logger:  logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == "app/uninstalled"
}

// Handle processes an app uninstalled webhook event
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	h.logger.Info().
		Str("tenantId", event.TenantID).
		Str("shop", event.ShopDomain).
		Msg("App uninstalled, offboarding tenant")

	err := h.remover.RemoveTenant(ctx, event.TenantID)
	if errors.Is(err, domain.ErrTenantNotFound) {
		// already offboarded; the uninstall is redelivered or raced an admin removal
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to offboard tenant %s: %w", event.TenantID, err)
	}
	return nil
}
