package domain

import "errors"

var (
	// ErrTenantNotFound is returned when no active credential exists for a tenant
	ErrTenantNotFound = errors.New("tenant not found")

	// ErrTenantExists is returned when onboarding a tenant that is already registered
	ErrTenantExists = errors.New("tenant already registered")

	// ErrInvalidCredentials is returned when the remote API rejects the access token
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrHealthCheckFailed is returned when a run cannot start because the API is unreachable
	ErrHealthCheckFailed = errors.New("health check failed")

	// ErrValidation marks a record that failed structural validation
	ErrValidation = errors.New("validation failed")

	// ErrRateLimited is returned when the API keeps answering 429 past the retry bound
	ErrRateLimited = errors.New("rate limited")

	// ErrUnknownResource is returned for resource types the pipeline does not import
	ErrUnknownResource = errors.New("unknown resource type")

	// ErrJobNotFound is returned when a scheduled job is not registered
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidSignature is returned when a webhook HMAC does not match
	ErrInvalidSignature = errors.New("invalid webhook signature")
)
