package domain

import "time"

// TenantCredential holds the connection details for one tenant's Shopify store.
// AccessToken and WebhookSecret are plaintext in memory and encrypted at rest.
type TenantCredential struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenant_id"`
	ShopDomain    string    `json:"shop_domain"`
	BaseURL       string    `json:"base_url"`
	AccessToken   string    `json:"-"`
	WebhookSecret string    `json:"-"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// RateLimitState mirrors the remote leaky bucket as last reported by the API.
// It is advisory only; the remote side is authoritative.
type RateLimitState struct {
	CallsMade         int      `json:"calls_made"`
	BucketSize        int      `json:"bucket_size"`
	LeakRatePerSecond float64  `json:"leak_rate_per_second"`
	RetryAfterSeconds *float64 `json:"retry_after_seconds,omitempty"`
}

// Utilization returns callsMade/bucketSize, or 0 when the bucket size is unknown.
func (s RateLimitState) Utilization() float64 {
	if s.BucketSize <= 0 {
		return 0
	}
	return float64(s.CallsMade) / float64(s.BucketSize)
}
