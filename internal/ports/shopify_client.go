package ports

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
)

// BatchFunc receives one page of raw records during a paginated fetch
type BatchFunc func(ctx context.Context, items []json.RawMessage) error

// ShopifyClient is a rate-limit aware client bound to a single tenant
type ShopifyClient interface {
	// FetchPage issues one paginated request. The returned cursor is the
	// last item's id, empty when the page was empty.
	FetchPage(ctx context.Context, resource domain.ResourceType, params url.Values, sinceID string) ([]json.RawMessage, string, error)

	// FetchAll walks every page with since-id cursoring. When onBatch is
	// non-nil pages are streamed to it and nothing is buffered.
	FetchAll(ctx context.Context, resource domain.ResourceType, params url.Values, onBatch BatchFunc) ([]json.RawMessage, error)

	IsThrottled() bool
	WaitTime() time.Duration
	RateLimit() domain.RateLimitState

	// HealthCheck returns nil when the credentials can reach the API
	HealthCheck(ctx context.Context) error
}

// ShopifyClientFactory builds a client for a decrypted credential
type ShopifyClientFactory func(cred *domain.TenantCredential) (ShopifyClient, error)

// WebhookRegistrar manages webhook subscriptions on the remote store
type WebhookRegistrar interface {
	Register(ctx context.Context, cred *domain.TenantCredential, address string, topics []string) error
	Unregister(ctx context.Context, cred *domain.TenantCredential, address string) error
}
