package shopify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
)

// DefaultWebhookTopics are subscribed for every onboarded tenant
var DefaultWebhookTopics = []string{
	"customers/create",
	"customers/update",
	"customers/delete",
	"products/create",
	"products/update",
	"products/delete",
	"orders/create",
	"orders/updated",
	"orders/paid",
	"orders/fulfilled",
	"orders/cancelled",
	"orders/delete",
	"app/uninstalled",
}

// WebhookRegistrar manages webhook subscriptions through go-shopify
type WebhookRegistrar struct {
	apiVersion string
	httpClient *http.Client
	logger     zerolog.Logger
}

var _ ports.WebhookRegistrar = (*WebhookRegistrar)(nil)

// NewWebhookRegistrar creates a registrar pinned to an Admin API version
func NewWebhookRegistrar(apiVersion string, logger zerolog.Logger) *WebhookRegistrar {
	return &WebhookRegistrar{
		apiVersion: apiVersion,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

func (r *WebhookRegistrar) createClient(cred *domain.TenantCredential) (*goshopify.Client, error) {
	return newAPIClient(cred.ShopDomain, cred.BaseURL, cred.AccessToken, r.apiVersion, r.httpClient, r.logger)
}

// Register subscribes address to each topic, skipping topics already pointing at address
func (r *WebhookRegistrar) Register(ctx context.Context, cred *domain.TenantCredential, address string, topics []string) error {
	client, err := r.createClient(cred)
	if err != nil {
		return err
	}

	existing, err := client.Webhook.List(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to list webhooks: %w", err)
	}
	registered := make(map[string]bool, len(existing))
	for _, w := range existing {
		if w.Address == address {
			registered[w.Topic] = true
		}
	}

	var failed []string
	for _, topic := range topics {
		if registered[topic] {
			continue
		}
		_, err := client.Webhook.Create(ctx, goshopify.Webhook{
			Topic:   topic,
			Address: address,
			Format:  "json",
		})
		if err != nil {
			r.logger.Warn().Err(err).Str("shop", cred.ShopDomain).Str("topic", topic).Msg("Failed to create webhook")
			failed = append(failed, topic)
			continue
		}
		r.logger.Info().Str("shop", cred.ShopDomain).Str("topic", topic).Msg("Webhook registered")
	}

	if len(failed) > 0 {
		return fmt.Errorf("failed to register webhook topics: %s", strings.Join(failed, ", "))
	}
	return nil
}

// Unregister deletes every subscription pointing at address
func (r *WebhookRegistrar) Unregister(ctx context.Context, cred *domain.TenantCredential, address string) error {
	client, err := r.createClient(cred)
	if err != nil {
		return err
	}

	existing, err := client.Webhook.List(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to list webhooks: %w", err)
	}
	for _, w := range existing {
		if w.Address != address {
			continue
		}
		if err := client.Webhook.Delete(ctx, w.Id); err != nil {
			return fmt.Errorf("failed to delete webhook %d: %w", w.Id, err)
		}
		r.logger.Info().Str("shop", cred.ShopDomain).Str("topic", w.Topic).Msg("Webhook removed")
	}
	return nil
}
