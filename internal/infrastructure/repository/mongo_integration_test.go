package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"archie-core-shopify-ingestion/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func mongoTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGODB_URI")
	if uri == "" {
		t.Skip("MONGODB_URI not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	require.NoError(t, err)
	require.NoError(t, client.Ping(ctx, nil))

	db := client.Database("ingestion_test_" + uuid.NewString()[:8])
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
		_ = client.Disconnect(context.Background())
	})
	return db
}

func TestMongoTenantRepository(t *testing.T) {
	db := mongoTestDB(t)
	repo := NewMongoTenantRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.EnsureIndexes(ctx))

	require.NoError(t, repo.Save(ctx, &domain.TenantCredential{TenantID: "t1", ShopDomain: "a.myshopify.com", AccessToken: "enc-1"}))
	require.NoError(t, repo.Save(ctx, &domain.TenantCredential{TenantID: "t1", ShopDomain: "a.myshopify.com", AccessToken: "enc-2"}))

	active, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "enc-2", active[0].AccessToken)

	byShop, err := repo.GetActiveByShopDomain(ctx, "a.myshopify.com")
	require.NoError(t, err)
	require.NotNil(t, byShop)

	require.NoError(t, repo.Deactivate(ctx, "t1"))
	got, err := repo.GetActive(ctx, "t1")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMongoWebhookEventRepository(t *testing.T) {
	db := mongoTestDB(t)
	repo := NewMongoWebhookEventRepository(db)
	ctx := context.Background()
	require.NoError(t, repo.EnsureIndexes(ctx))

	event := &domain.WebhookEvent{
		ID:         "evt-1",
		Topic:      "customers/create",
		TenantID:   "t1",
		Payload:    []byte(`{"id":1}`),
		Status:     domain.WebhookStatusReceived,
		ReceivedAt: time.Now(),
	}
	require.NoError(t, repo.LogWebhook(ctx, event))
	require.NoError(t, repo.LogWebhook(ctx, event))
	require.NoError(t, repo.MarkProcessed(ctx, "evt-1", 1))

	got, err := repo.Get(ctx, "evt-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.True(t, got.Processed)
	assert.Equal(t, `{"id":1}`, string(got.Payload))

	n, err := repo.DeleteProcessedBefore(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}
