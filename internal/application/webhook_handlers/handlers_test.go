package webhook_handlers

import (
	"context"
	"errors"
	"testing"

	"archie-core-shopify-ingestion/internal/application/transformer"
	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/infrastructure/repository"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func event(topic, payload string) *domain.WebhookEvent {
	return &domain.WebhookEvent{ID: "evt", Topic: topic, TenantID: "t1", ShopDomain: "demo.myshopify.com", Payload: []byte(payload)}
}

func TestCanHandle(t *testing.T) {
	store := repository.NewMemoryRecordStore()
	tr := transformer.New(nil)
	customers := NewCustomerHandler(store, tr, zerolog.Nop())
	products := NewProductHandler(store, tr, zerolog.Nop())
	orders := NewOrderHandler(store, tr, zerolog.Nop())
	uninstall := NewAppUninstalledHandler(nil, zerolog.Nop())

	tests := []struct {
		topic string
		want  []bool
	}{
		{"customers/update", []bool{true, false, false, false}},
		{"products/delete", []bool{false, true, false, false}},
		{"orders/paid", []bool{false, false, true, false}},
		{"orders/cancelled", []bool{false, false, true, false}},
		{"app/uninstalled", []bool{false, false, false, true}},
		{"shop/update", []bool{false, false, false, false}},
	}
	for _, tt := range tests {
		t.Run(tt.topic, func(t *testing.T) {
			got := []bool{
				customers.CanHandle(tt.topic),
				products.CanHandle(tt.topic),
				orders.CanHandle(tt.topic),
				uninstall.CanHandle(tt.topic),
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCustomerHandler_UpsertThenDelete(t *testing.T) {
	store := repository.NewMemoryRecordStore()
	h := NewCustomerHandler(store, transformer.New(nil), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, event("customers/create", `{"id":9,"email":"nine@example.com","orders_count":1}`)))
	require.NoError(t, h.Handle(ctx, event("customers/update", `{"id":9,"email":"nine@example.com","orders_count":2}`)))
	got := store.Customer("t1", "9")
	require.NotNil(t, got)
	assert.Equal(t, 2, got.OrdersCount)

	require.NoError(t, h.Handle(ctx, event("customers/delete", `{"id":9}`)))
	assert.Nil(t, store.Customer("t1", "9"))
}

func TestCustomerHandler_InvalidPayload(t *testing.T) {
	h := NewCustomerHandler(repository.NewMemoryRecordStore(), transformer.New(nil), zerolog.Nop())
	err := h.Handle(context.Background(), event("customers/create", `{"id":9}`))
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestProductHandler(t *testing.T) {
	store := repository.NewMemoryRecordStore()
	h := NewProductHandler(store, transformer.New(nil), zerolog.Nop())

	require.NoError(t, h.Handle(context.Background(), event("products/update",
		`{"id":3,"title":"Lamp","variants":[{"id":1,"price":"20.00","inventory_quantity":2},{"id":2,"price":"25.00","inventory_quantity":3}]}`)))
	got := store.Product("t1", "3")
	require.NotNil(t, got)
	assert.Equal(t, 5, got.TotalInventory)
	assert.Equal(t, 2, got.VariantCount)
}

func TestOrderHandler_CancelledEventReplacesChildren(t *testing.T) {
	store := repository.NewMemoryRecordStore()
	h := NewOrderHandler(store, transformer.New(nil), zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, h.Handle(ctx, event("orders/create",
		`{"id":50,"total_price":"5.00","line_items":[{"id":1,"quantity":1,"price":"5.00"},{"id":2,"quantity":1,"price":"0.00"}]}`)))
	require.NoError(t, h.Handle(ctx, event("orders/cancelled",
		`{"id":50,"total_price":"5.00","cancelled_at":"2024-05-01T10:00:00Z","line_items":[{"id":1,"quantity":1,"price":"5.00"}]}`)))

	order, items, events := store.Order("t1", "50")
	require.NotNil(t, order)
	assert.Len(t, items, 1)
	require.Len(t, events, 1)
	assert.Equal(t, domain.OrderEventCancelled, events[0].Kind)
}

type fakeRemover struct {
	removed []string
	err     error
}

func (r *fakeRemover) RemoveTenant(ctx context.Context, tenantID string) error {
	r.removed = append(r.removed, tenantID)
	return r.err
}

func TestAppUninstalledHandler(t *testing.T) {
	remover := &fakeRemover{}
	h := NewAppUninstalledHandler(remover, zerolog.Nop())
	require.NoError(t, h.Handle(context.Background(), event("app/uninstalled", `{}`)))
	assert.Equal(t, []string{"t1"}, remover.removed)

	remover.err = domain.ErrTenantNotFound
	assert.NoError(t, h.Handle(context.Background(), event("app/uninstalled", `{}`)))

	remover.err = errors.New("mongo down")
	assert.Error(t, h.Handle(context.Background(), event("app/uninstalled", `{}`)))
}
