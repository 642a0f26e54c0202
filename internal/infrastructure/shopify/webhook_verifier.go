package shopify

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"archie-core-shopify-ingestion/internal/domain"
)

// WebhookVerifier checks X-Shopify-Hmac-Sha256 signatures
type WebhookVerifier struct {
	secret []byte
}

// NewWebhookVerifier creates a verifier for one tenant's webhook secret
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret)}
}

// Sign returns base64(HMAC-SHA256(payload, secret))
func (v *WebhookVerifier) Sign(payload []byte) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write(payload)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// Verify compares the supplied signature against the expected one in constant time
func (v *WebhookVerifier) Verify(payload []byte, signature string) error {
	if len(v.secret) == 0 {
		return fmt.Errorf("%w: webhook secret not configured", domain.ErrInvalidSignature)
	}
	if signature == "" {
		return fmt.Errorf("%w: missing signature", domain.ErrInvalidSignature)
	}
	if !hmac.Equal([]byte(v.Sign(payload)), []byte(signature)) {
		return domain.ErrInvalidSignature
	}
	return nil
}

// VerifySignature verifies a payload against a secret without keeping a verifier around
func VerifySignature(secret string, payload []byte, signature string) error {
	return NewWebhookVerifier(secret).Verify(payload, signature)
}
