package entity

import (
	"time"

	"archie-core-shopify-ingestion/internal/domain"
)

// MongoWebhookEventDoc represents a webhook event in MongoDB.
// The event id doubles as _id so redeliveries of the same webhook collapse.
type MongoWebhookEventDoc struct {
	ID          string     `bson:"_id,omitempty"`
	Topic       string     `bson:"topic"`
	TenantID    string     `bson:"tenantId"`
	ShopDomain  string     `bson:"shopDomain"`
	Payload     string     `bson:"payload"`
	Status      string     `bson:"status"`
	Processed   bool       `bson:"processed"`
	Error       string     `bson:"error,omitempty"`
	Attempts    int        `bson:"attempts"`
	ReceivedAt  time.Time  `bson:"receivedAt"`
	ProcessedAt *time.Time `bson:"processedAt,omitempty"`
	CreatedAt   time.Time  `bson:"createdAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoWebhookEventDoc) ToDomain() *domain.WebhookEvent {
	return &domain.WebhookEvent{
		ID:          d.ID,
		Topic:       d.Topic,
		TenantID:    d.TenantID,
		ShopDomain:  d.ShopDomain,
		Payload:     []byte(d.Payload),
		ReceivedAt:  d.ReceivedAt,
		Status:      domain.WebhookStatus(d.Status),
		Processed:   d.Processed,
		Error:       d.Error,
		Attempts:    d.Attempts,
		ProcessedAt: d.ProcessedAt,
	}
}

// MongoWebhookEventDocFromDomain converts a domain entity to a MongoDB document
func MongoWebhookEventDocFromDomain(event *domain.WebhookEvent) *MongoWebhookEventDoc {
	return &MongoWebhookEventDoc{
		ID:          event.ID,
		Topic:       event.Topic,
		TenantID:    event.TenantID,
		ShopDomain:  event.ShopDomain,
		Payload:     string(event.Payload),
		Status:      string(event.Status),
		Processed:   event.Processed,
		Error:       event.Error,
		Attempts:    event.Attempts,
		ReceivedAt:  event.ReceivedAt,
		ProcessedAt: event.ProcessedAt,
	}
}
