package shopify

import (
	"fmt"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/rs/zerolog"
)

// TokenManager encrypts and decrypts the secrets carried by tenant credentials
type TokenManager struct {
	encryptionSvc ports.EncryptionService
	logger        zerolog.Logger
}

// NewTokenManager creates a new token manager
func NewTokenManager(encryptionSvc ports.EncryptionService, logger zerolog.Logger) *TokenManager {
	return &TokenManager{
		encryptionSvc: encryptionSvc,
		logger:        logger,
	}
}

// EncryptToken encrypts an access token before storage
func (tm *TokenManager) EncryptToken(token string) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token cannot be empty")
	}
	return tm.encryptionSvc.Encrypt(token)
}

// DecryptToken decrypts an access token after retrieval
func (tm *TokenManager) DecryptToken(encryptedToken string) (string, error) {
	if encryptedToken == "" {
		return "", fmt.Errorf("encrypted token cannot be empty")
	}
	return tm.encryptionSvc.Decrypt(encryptedToken)
}

// Seal returns a copy of cred with the access token and webhook secret encrypted
func (tm *TokenManager) Seal(cred *domain.TenantCredential) (*domain.TenantCredential, error) {
	sealed := *cred
	var err error
	if sealed.AccessToken, err = tm.EncryptToken(cred.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to encrypt access token: %w", err)
	}
	if sealed.WebhookSecret, err = tm.EncryptToken(cred.WebhookSecret); err != nil {
		return nil, fmt.Errorf("failed to encrypt webhook secret: %w", err)
	}
	return &sealed, nil
}

// Open returns a copy of a stored credential with its secrets decrypted
func (tm *TokenManager) Open(cred *domain.TenantCredential) (*domain.TenantCredential, error) {
	opened := *cred
	var err error
	if opened.AccessToken, err = tm.DecryptToken(cred.AccessToken); err != nil {
		tm.logger.Warn().Str("tenantId", cred.TenantID).Msg("Stored access token could not be decrypted")
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	if opened.WebhookSecret, err = tm.DecryptToken(cred.WebhookSecret); err != nil {
		tm.logger.Warn().Str("tenantId", cred.TenantID).Msg("Stored webhook secret could not be decrypted")
		return nil, fmt.Errorf("failed to decrypt webhook secret: %w", err)
	}
	return &opened, nil
}
