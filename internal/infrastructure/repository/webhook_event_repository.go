package repository

import (
	"context"
	"fmt"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/infrastructure/repository/entity"
	"archie-core-shopify-ingestion/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoWebhookEventRepository implements WebhookEventLog using MongoDB
type MongoWebhookEventRepository struct {
	collection *mongo.Collection
}

var _ ports.WebhookEventLog = (*MongoWebhookEventRepository)(nil)

// NewMongoWebhookEventRepository creates a new MongoDB webhook event log
func NewMongoWebhookEventRepository(db *mongo.Database) *MongoWebhookEventRepository {
	return &MongoWebhookEventRepository{
		collection: db.Collection("webhook_events"),
	}
}

// EnsureIndexes creates the lookup indexes used by cleanup and status queries
func (r *MongoWebhookEventRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "processed", Value: 1}, {Key: "processedAt", Value: 1}}},
		{Keys: bson.D{{Key: "tenantId", Value: 1}, {Key: "receivedAt", Value: -1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create webhook event indexes: %w", err)
	}
	return nil
}

// LogWebhook records a received event; a redelivered event id overwrites the earlier entry
func (r *MongoWebhookEventRepository) LogWebhook(ctx context.Context, event *domain.WebhookEvent) error {
	doc := entity.MongoWebhookEventDocFromDomain(event)
	doc.CreatedAt = time.Now()
	filter := bson.M{"_id": doc.ID}
	doc.ID = ""

	opts := options.Update().SetUpsert(true)
	update := bson.M{"$set": doc}

	if _, err := r.collection.UpdateOne(ctx, filter, update, opts); err != nil {
		return fmt.Errorf("failed to log webhook: %w", err)
	}
	return nil
}

// MarkProcessed records successful processing
func (r *MongoWebhookEventRepository) MarkProcessed(ctx context.Context, eventID string, attempts int) error {
	update := bson.M{"$set": bson.M{
		"status":      string(domain.WebhookStatusProcessed),
		"processed":   true,
		"attempts":    attempts,
		"error":       "",
		"processedAt": time.Now(),
	}}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": eventID}, update); err != nil {
		return fmt.Errorf("failed to mark webhook processed: %w", err)
	}
	return nil
}

// MarkFailed records a terminal processing failure
func (r *MongoWebhookEventRepository) MarkFailed(ctx context.Context, eventID string, attempts int, errMsg string) error {
	update := bson.M{"$set": bson.M{
		"status":      string(domain.WebhookStatusFailed),
		"processed":   false,
		"attempts":    attempts,
		"error":       errMsg,
		"processedAt": time.Now(),
	}}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"_id": eventID}, update); err != nil {
		return fmt.Errorf("failed to mark webhook failed: %w", err)
	}
	return nil
}

// DeleteProcessedBefore prunes processed events older than before
func (r *MongoWebhookEventRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.collection.DeleteMany(ctx, bson.M{
		"processed":   true,
		"processedAt": bson.M{"$lt": before},
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete processed webhooks: %w", err)
	}
	return res.DeletedCount, nil
}

// Get retrieves an event by id, or nil when absent
func (r *MongoWebhookEventRepository) Get(ctx context.Context, eventID string) (*domain.WebhookEvent, error) {
	var doc entity.MongoWebhookEventDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": eventID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get webhook event: %w", err)
	}
	return doc.ToDomain(), nil
}
