package entity

import (
	"time"

	"archie-core-shopify-ingestion/internal/domain"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoTenantCredentialDoc represents a tenant credential in MongoDB.
// AccessToken and WebhookSecret hold ciphertext.
type MongoTenantCredentialDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	TenantID      string             `bson:"tenantId"`
	ShopDomain    string             `bson:"shopDomain"`
	BaseURL       string             `bson:"baseUrl"`
	AccessToken   string             `bson:"accessToken"`
	WebhookSecret string             `bson:"webhookSecret"`
	Active        bool               `bson:"active"`
	CreatedAt     time.Time          `bson:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoTenantCredentialDoc) ToDomain() *domain.TenantCredential {
	return &domain.TenantCredential{
		ID:            d.ID.Hex(),
		TenantID:      d.TenantID,
		ShopDomain:    d.ShopDomain,
		BaseURL:       d.BaseURL,
		AccessToken:   d.AccessToken,
		WebhookSecret: d.WebhookSecret,
		Active:        d.Active,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
}

// MongoTenantCredentialDocFromDomain converts a domain entity to a MongoDB document
func MongoTenantCredentialDocFromDomain(cred *domain.TenantCredential) *MongoTenantCredentialDoc {
	doc := &MongoTenantCredentialDoc{
		TenantID:      cred.TenantID,
		ShopDomain:    cred.ShopDomain,
		BaseURL:       cred.BaseURL,
		AccessToken:   cred.AccessToken,
		WebhookSecret: cred.WebhookSecret,
		Active:        cred.Active,
		CreatedAt:     cred.CreatedAt,
		UpdatedAt:     cred.UpdatedAt,
	}

	if cred.ID != "" {
		if objID, err := primitive.ObjectIDFromHex(cred.ID); err == nil {
			doc.ID = objID
		}
	}

	return doc
}
