package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"archie-core-shopify-ingestion/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupRecordStoreTestDB(t *testing.T) (*gorm.DB, *GormRecordStore) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	store := NewGormRecordStore(db)
	require.NoError(t, store.Migrate(context.Background()))
	return db, store
}

func testOrder(tenantID, id string, total string) (*domain.Order, []domain.LineItem, []domain.OrderEvent) {
	order := &domain.Order{
		ExternalID:    id,
		TenantID:      tenantID,
		Name:          "#" + id,
		TotalPrice:    decimal.RequireFromString(total),
		LineItemCount: 2,
	}
	items := []domain.LineItem{
		{ExternalID: id + "-1", OrderExternalID: id, TenantID: tenantID, Quantity: 1, Price: decimal.NewFromInt(5)},
		{ExternalID: id + "-2", OrderExternalID: id, TenantID: tenantID, Quantity: 2, Price: decimal.NewFromInt(3)},
	}
	events := []domain.OrderEvent{
		{OrderExternalID: id, TenantID: tenantID, Kind: domain.OrderEventCreated, OccurredAt: time.Now().UTC()},
	}
	return order, items, events
}

func TestGormRecordStore_UpsertCustomerIsIdempotent(t *testing.T) {
	_, store := setupRecordStoreTestDB(t)
	ctx := context.Background()

	c := &domain.Customer{ExternalID: "1", TenantID: "t1", EmailEncrypted: "v1", OrdersCount: 1, TotalSpent: decimal.NewFromInt(10)}
	require.NoError(t, store.UpsertCustomer(ctx, c))

	c.EmailEncrypted = "v2"
	c.OrdersCount = 4
	for i := 0; i < 3; i++ {
		require.NoError(t, store.UpsertCustomer(ctx, c))
	}

	n, err := store.CountByTenant(ctx, domain.ResourceCustomers, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := store.GetCustomer(ctx, "t1", "1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "v2", got.EmailEncrypted)
	assert.Equal(t, 4, got.OrdersCount)
}

func TestGormRecordStore_KeyIncludesTenant(t *testing.T) {
	_, store := setupRecordStoreTestDB(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertProduct(ctx, &domain.Product{ExternalID: "7", TenantID: "t1", Title: "A"}))
	require.NoError(t, store.UpsertProduct(ctx, &domain.Product{ExternalID: "7", TenantID: "t2", Title: "B"}))

	a, err := store.GetProduct(ctx, "t1", "7")
	require.NoError(t, err)
	b, err := store.GetProduct(ctx, "t2", "7")
	require.NoError(t, err)
	assert.Equal(t, "A", a.Title)
	assert.Equal(t, "B", b.Title)

	ok, err := store.Exists(ctx, domain.ResourceProducts, "t3", "7")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGormRecordStore_UpsertOrderReplacesChildren(t *testing.T) {
	_, store := setupRecordStoreTestDB(t)
	ctx := context.Background()

	order, items, events := testOrder("t1", "1001", "11")
	require.NoError(t, store.UpsertOrder(ctx, order, items, events))

	order.LineItemCount = 1
	order.FulfillmentStatus = "fulfilled"
	require.NoError(t, store.UpsertOrder(ctx, order, items[:1], []domain.OrderEvent{
		{OrderExternalID: "1001", TenantID: "t1", Kind: domain.OrderEventFulfilled, OccurredAt: time.Now().UTC()},
	}))

	got, gotItems, gotEvents, err := store.GetOrder(ctx, "t1", "1001")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "fulfilled", got.FulfillmentStatus)
	assert.Len(t, gotItems, 1)
	require.Len(t, gotEvents, 1)
	assert.Equal(t, domain.OrderEventFulfilled, gotEvents[0].Kind)
	assert.True(t, decimal.NewFromInt(11).Equal(got.TotalPrice))
}

func TestGormRecordStore_OrderWriteIsAtomic(t *testing.T) {
	db, store := setupRecordStoreTestDB(t)
	ctx := context.Background()

	failing := true
	err := db.Callback().Create().Before("gorm:create").Register("test:fail_line_items", func(tx *gorm.DB) {
		if failing && tx.Statement.Table == "order_line_items" {
			tx.AddError(errors.New("disk full"))
		}
	})
	require.NoError(t, err)

	order, items, events := testOrder("t1", "2002", "11")
	err = store.UpsertOrder(ctx, order, items, events)
	require.Error(t, err)

	got, gotItems, _, err := store.GetOrder(ctx, "t1", "2002")
	require.NoError(t, err)
	assert.Nil(t, got, "parent must not be visible without its children")
	assert.Empty(t, gotItems)

	failing = false
	require.NoError(t, store.UpsertOrder(ctx, order, items, events))

	got, gotItems, gotEvents, err := store.GetOrder(ctx, "t1", "2002")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Len(t, gotItems, 2)
	assert.Len(t, gotEvents, 1)
}

func TestGormRecordStore_DeleteOrderRemovesChildren(t *testing.T) {
	_, store := setupRecordStoreTestDB(t)
	ctx := context.Background()

	order, items, events := testOrder("t1", "3003", "1")
	require.NoError(t, store.UpsertOrder(ctx, order, items, events))
	require.NoError(t, store.Delete(ctx, domain.ResourceOrders, "t1", "3003"))

	got, gotItems, gotEvents, err := store.GetOrder(ctx, "t1", "3003")
	require.NoError(t, err)
	assert.Nil(t, got)
	assert.Empty(t, gotItems)
	assert.Empty(t, gotEvents)

	ok, err := store.Exists(ctx, domain.ResourceOrders, "t1", "3003")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGormRecordStore_UnknownResource(t *testing.T) {
	_, store := setupRecordStoreTestDB(t)
	_, err := store.Exists(context.Background(), domain.ResourceType("refunds"), "t1", "1")
	assert.True(t, errors.Is(err, domain.ErrUnknownResource))
}
