package domain

import "time"

// WebhookStatus tracks an inbound event from receipt to processing
type WebhookStatus string

const (
	WebhookStatusReceived  WebhookStatus = "received"
	WebhookStatusProcessed WebhookStatus = "processed"
	WebhookStatusFailed    WebhookStatus = "failed"
	WebhookStatusDropped   WebhookStatus = "dropped"
)

// WebhookEvent represents a verified Shopify webhook
type WebhookEvent struct {
	ID          string        `json:"id"`
	Topic       string        `json:"topic"`
	TenantID    string        `json:"tenant_id"`
	ShopDomain  string        `json:"shop_domain"`
	Payload     []byte        `json:"payload"`
	ReceivedAt  time.Time     `json:"received_at"`
	Status      WebhookStatus `json:"status"`
	Processed   bool          `json:"processed"`
	Error       string        `json:"error,omitempty"`
	Attempts    int           `json:"attempts"`
	ProcessedAt *time.Time    `json:"processed_at,omitempty"`
}
