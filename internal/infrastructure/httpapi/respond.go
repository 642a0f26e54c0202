package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/infrastructure/scheduler"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// statusFor maps service errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrUnknownResource):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInvalidSignature):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrTenantNotFound), errors.Is(err, domain.ErrJobNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrTenantExists), errors.Is(err, scheduler.ErrJobRunning):
		return http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrHealthCheckFailed), errors.Is(err, domain.ErrRateLimited):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
