package ports

import "archie-core-shopify-ingestion/internal/domain"

// Notifier fans out sync notifications; Publish never blocks
type Notifier interface {
	Publish(n *domain.Notification)
}

// NopNotifier drops every notification
type NopNotifier struct{}

func (NopNotifier) Publish(*domain.Notification) {}

// SignatureVerifier checks a webhook body against a tenant secret
type SignatureVerifier func(secret string, payload []byte, signature string) error
