package ports

import (
	"context"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
)

// RecordStore is the write contract of the analytics store.
// Every upsert is keyed by (externalID, tenantID).
type RecordStore interface {
	UpsertCustomer(ctx context.Context, customer *domain.Customer) error
	UpsertProduct(ctx context.Context, product *domain.Product) error
	// UpsertOrder writes the order and replaces its children in one atomic unit
	UpsertOrder(ctx context.Context, order *domain.Order, items []domain.LineItem, events []domain.OrderEvent) error
	Exists(ctx context.Context, resource domain.ResourceType, tenantID, externalID string) (bool, error)
	Delete(ctx context.Context, resource domain.ResourceType, tenantID, externalID string) error
}

// TenantRepository persists tenant credentials with secrets already encrypted
type TenantRepository interface {
	// Save stores cred as the tenant's only active credential
	Save(ctx context.Context, cred *domain.TenantCredential) error
	GetActive(ctx context.Context, tenantID string) (*domain.TenantCredential, error)
	GetActiveByShopDomain(ctx context.Context, shopDomain string) (*domain.TenantCredential, error)
	ListActive(ctx context.Context) ([]*domain.TenantCredential, error)
	Deactivate(ctx context.Context, tenantID string) error
}

// WebhookEventLog records webhook receipt and processing outcome
type WebhookEventLog interface {
	LogWebhook(ctx context.Context, event *domain.WebhookEvent) error
	MarkProcessed(ctx context.Context, eventID string, attempts int) error
	MarkFailed(ctx context.Context, eventID string, attempts int, errMsg string) error
	DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error)
}

// EncryptionService encrypts secrets and PII
type EncryptionService interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(ciphertext string) (string, error)
}
