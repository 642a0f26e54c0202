package repository

import (
	"context"
	"fmt"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/infrastructure/repository/entity"
	"archie-core-shopify-ingestion/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoTenantRepository implements TenantRepository using MongoDB
type MongoTenantRepository struct {
	collection *mongo.Collection
}

var _ ports.TenantRepository = (*MongoTenantRepository)(nil)

// NewMongoTenantRepository creates a new MongoDB tenant repository
func NewMongoTenantRepository(db *mongo.Database) *MongoTenantRepository {
	return &MongoTenantRepository{
		collection: db.Collection("tenant_credentials"),
	}
}

// EnsureIndexes enforces a single active credential per tenant and per shop
func (r *MongoTenantRepository) EnsureIndexes(ctx context.Context) error {
	activeOnly := bson.M{"active": true}
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenantId", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(activeOnly).SetName("uniq_active_tenant"),
		},
		{
			Keys:    bson.D{{Key: "shopDomain", Value: 1}},
			Options: options.Index().SetUnique(true).SetPartialFilterExpression(activeOnly).SetName("uniq_active_shop"),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create tenant indexes: %w", err)
	}
	return nil
}

// Save deactivates any active credential for the tenant, then stores cred as active
func (r *MongoTenantRepository) Save(ctx context.Context, cred *domain.TenantCredential) error {
	if err := r.Deactivate(ctx, cred.TenantID); err != nil {
		return err
	}

	doc := entity.MongoTenantCredentialDocFromDomain(cred)
	doc.Active = true
	doc.UpdatedAt = time.Now()
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = doc.UpdatedAt
	}
	if doc.ID.IsZero() {
		doc.ID = primitive.NewObjectID()
	}

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to save tenant credential: %w", err)
	}
	cred.ID = doc.ID.Hex()
	return nil
}

func (r *MongoTenantRepository) findOne(ctx context.Context, filter bson.M) (*domain.TenantCredential, error) {
	var doc entity.MongoTenantCredentialDoc
	err := r.collection.FindOne(ctx, filter).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get tenant credential: %w", err)
	}
	return doc.ToDomain(), nil
}

// GetActive retrieves the active credential for a tenant
func (r *MongoTenantRepository) GetActive(ctx context.Context, tenantID string) (*domain.TenantCredential, error) {
	return r.findOne(ctx, bson.M{"tenantId": tenantID, "active": true})
}

// GetActiveByShopDomain retrieves the active credential for a shop
func (r *MongoTenantRepository) GetActiveByShopDomain(ctx context.Context, shopDomain string) (*domain.TenantCredential, error) {
	return r.findOne(ctx, bson.M{"shopDomain": shopDomain, "active": true})
}

// ListActive retrieves every active credential
func (r *MongoTenantRepository) ListActive(ctx context.Context) ([]*domain.TenantCredential, error) {
	opts := options.Find().SetSort(bson.D{{Key: "tenantId", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list tenant credentials: %w", err)
	}
	defer cursor.Close(ctx)

	var creds []*domain.TenantCredential
	for cursor.Next(ctx) {
		var doc entity.MongoTenantCredentialDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode tenant credential: %w", err)
		}
		creds = append(creds, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return creds, nil
}

// Deactivate marks every active credential of the tenant inactive
func (r *MongoTenantRepository) Deactivate(ctx context.Context, tenantID string) error {
	filter := bson.M{"tenantId": tenantID, "active": true}
	update := bson.M{"$set": bson.M{"active": false, "updatedAt": time.Now()}}
	if _, err := r.collection.UpdateMany(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to deactivate tenant credentials: %w", err)
	}
	return nil
}
