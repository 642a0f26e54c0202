package application

import (
	"context"
	"fmt"
	"strings"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// CredentialSealer encrypts credential secrets for storage and decrypts them on load
type CredentialSealer interface {
	Seal(cred *domain.TenantCredential) (*domain.TenantCredential, error)
	Open(cred *domain.TenantCredential) (*domain.TenantCredential, error)
}

// TenantInput is the onboarding request for a tenant
type TenantInput struct {
	TenantID      string `json:"tenant_id" validate:"required,max=128"`
	ShopDomain    string `json:"shop_domain" validate:"required,hostname"`
	BaseURL       string `json:"base_url,omitempty" validate:"omitempty,url"`
	AccessToken   string `json:"access_token" validate:"required"`
	WebhookSecret string `json:"webhook_secret" validate:"required"`
}

// CredentialsService stores tenant credentials with their secrets encrypted
type CredentialsService struct {
	repo      ports.TenantRepository
	sealer    CredentialSealer
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewCredentialsService creates a new credentials service
func NewCredentialsService(repo ports.TenantRepository, sealer CredentialSealer, logger zerolog.Logger) *CredentialsService {
	return &CredentialsService{
		repo:      repo,
		sealer:    sealer,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger,
	}
}

// Validate checks an onboarding request and normalises the shop domain
func (s *CredentialsService) Validate(input *TenantInput) error {
	input.ShopDomain = strings.ToLower(strings.TrimSpace(input.ShopDomain))
	if err := s.validator.Struct(input); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	return nil
}

// Store seals and saves cred as the tenant's active credential
func (s *CredentialsService) Store(ctx context.Context, cred *domain.TenantCredential) error {
	sealed, err := s.sealer.Seal(cred)
	if err != nil {
		return err
	}
	if err := s.repo.Save(ctx, sealed); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}
	cred.ID = sealed.ID
	cred.CreatedAt = sealed.CreatedAt
	cred.UpdatedAt = sealed.UpdatedAt

	s.logger.Info().
		Str("tenantId", cred.TenantID).
		Str("shop", cred.ShopDomain).
		Msg("Tenant credentials saved")
	return nil
}

// Get returns the decrypted active credential of a tenant, or nil
func (s *CredentialsService) Get(ctx context.Context, tenantID string) (*domain.TenantCredential, error) {
	cred, err := s.repo.GetActive(ctx, tenantID)
	if err != nil || cred == nil {
		return nil, err
	}
	return s.sealer.Open(cred)
}

// GetByShopDomain returns the decrypted active credential for a shop, or nil
func (s *CredentialsService) GetByShopDomain(ctx context.Context, shopDomain string) (*domain.TenantCredential, error) {
	cred, err := s.repo.GetActiveByShopDomain(ctx, strings.ToLower(shopDomain))
	if err != nil || cred == nil {
		return nil, err
	}
	return s.sealer.Open(cred)
}

// ListActive returns every decryptable active credential. Credentials that
// fail to decrypt are logged and left out.
func (s *CredentialsService) ListActive(ctx context.Context) ([]*domain.TenantCredential, error) {
	stored, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	out := make([]*domain.TenantCredential, 0, len(stored))
	for _, cred := range stored {
		opened, err := s.sealer.Open(cred)
		if err != nil {
			s.logger.Error().Err(err).Str("tenantId", cred.TenantID).Msg("Skipping tenant with unreadable credentials")
			continue
		}
		out = append(out, opened)
	}
	return out, nil
}

// Revoke deactivates a tenant's credentials
func (s *CredentialsService) Revoke(ctx context.Context, tenantID string) error {
	if err := s.repo.Deactivate(ctx, tenantID); err != nil {
		return fmt.Errorf("failed to deactivate credentials: %w", err)
	}
	s.logger.Info().Str("tenantId", tenantID).Msg("Tenant credentials deactivated")
	return nil
}
