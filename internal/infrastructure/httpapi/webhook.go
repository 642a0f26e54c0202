package httpapi

import (
	"errors"
	"io"
	"net/http"
	"time"

	"archie-core-shopify-ingestion/internal/application"
)

// Shopify webhook headers
const (
	HeaderTopic      = "X-Shopify-Topic"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
	HeaderHmac       = "X-Shopify-Hmac-SHA256"
	HeaderWebhookID  = "X-Shopify-Webhook-Id"
)

// webhook acknowledges a delivery only after it is durably queued.
// Any non-2xx answer makes Shopify redeliver.
func (a *api) webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, a.opts.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "payload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}
	defer r.Body.Close()

	event, err := a.deps.Receiver.Receive(r.Context(), application.WebhookDelivery{
		Topic:      r.Header.Get(HeaderTopic),
		ShopDomain: r.Header.Get(HeaderShopDomain),
		Signature:  r.Header.Get(HeaderHmac),
		WebhookID:  r.Header.Get(HeaderWebhookID),
		Body:       body,
	})
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			a.logger.Error().Err(err).
				Str("topic", r.Header.Get(HeaderTopic)).
				Str("shop", r.Header.Get(HeaderShopDomain)).
				Msg("Failed to accept webhook")
			writeError(w, status, "failed to accept webhook")
			return
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"received":  true,
		"id":        event.ID,
		"topic":     event.Topic,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
