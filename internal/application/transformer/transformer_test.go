package transformer

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"archie-core-shopify-ingestion/internal/domain"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func prefixEncrypt(s string) (string, error) { return "enc:" + s, nil }

func TestDecodeCustomer(t *testing.T) {
	tr := New(prefixEncrypt)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"valid", `{"id":1,"email":"a@example.com","total_spent":"10.50"}`, false},
		{"missing id", `{"email":"a@example.com"}`, true},
		{"missing email", `{"id":2,"first_name":"Bob"}`, true},
		{"bad email", `{"id":3,"email":"nope"}`, true},
		{"bad total spent", `{"id":4,"email":"a@example.com","total_spent":"ten"}`, true},
		{"malformed json", `{"id":`, true},
		{"empty", ``, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := tr.DecodeCustomer(json.RawMessage(tt.raw))
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, domain.ErrValidation))
				assert.Nil(t, c)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, int64(1), c.ID)
		})
	}
}

func TestTransformCustomer_EncryptsPII(t *testing.T) {
	tr := New(prefixEncrypt)
	c, err := tr.DecodeCustomer(json.RawMessage(`{
		"id": 42, "email": "jane@example.com", "first_name": "Jane", "last_name": "Doe",
		"phone": "+15550100", "orders_count": 3, "total_spent": "199.99", "currency": "USD",
		"addresses": [{"address1": "1 Main St", "city": "Springfield"}]
	}`))
	require.NoError(t, err)

	out, err := tr.TransformCustomer(c, "tenant-1")
	require.NoError(t, err)

	assert.Equal(t, "42", out.ExternalID)
	assert.Equal(t, "tenant-1", out.TenantID)
	assert.Equal(t, "enc:jane@example.com", out.EmailEncrypted)
	assert.Equal(t, "enc:Jane", out.FirstNameEncrypted)
	assert.Equal(t, "enc:Doe", out.LastNameEncrypted)
	assert.Equal(t, "enc:+15550100", out.PhoneEncrypted)
	assert.True(t, strings.HasPrefix(out.AddressesEncrypted, "enc:["))
	assert.Equal(t, 3, out.OrdersCount)
	assert.True(t, decimal.RequireFromString("199.99").Equal(out.TotalSpent))
}

func TestTransformCustomer_EncryptionFailure(t *testing.T) {
	tr := New(func(string) (string, error) { return "", errors.New("kms down") })
	c, err := tr.DecodeCustomer(json.RawMessage(`{"id":1,"email":"a@example.com"}`))
	require.NoError(t, err)

	_, err = tr.TransformCustomer(c, "t")
	require.Error(t, err)
	assert.False(t, errors.Is(err, domain.ErrValidation))
	assert.Contains(t, err.Error(), "email")
}

func TestTransformProduct_DerivesAggregates(t *testing.T) {
	tr := New(prefixEncrypt)
	p, err := tr.DecodeProduct(json.RawMessage(`{
		"id": 7, "title": "Shirt",
		"variants": [
			{"id": 1, "price": "19.99", "inventory_quantity": 5},
			{"id": 2, "price": "9.50", "inventory_quantity": 10},
			{"id": 3, "price": "24.00", "inventory_quantity": -2}
		]
	}`))
	require.NoError(t, err)

	out, err := tr.TransformProduct(p, "t1")
	require.NoError(t, err)

	assert.Equal(t, "7", out.ExternalID)
	assert.Equal(t, 3, out.VariantCount)
	assert.Equal(t, 13, out.TotalInventory)
	assert.Equal(t, "9.5", out.PriceMin.String())
	assert.Equal(t, "24", out.PriceMax.String())
}

func TestDecodeProduct_InvalidVariantPrice(t *testing.T) {
	tr := New(prefixEncrypt)
	_, err := tr.DecodeProduct(json.RawMessage(`{"id":7,"title":"Shirt","variants":[{"id":1,"price":"abc"}]}`))
	require.Error(t, err)
	assert.True(t, errors.Is(err, domain.ErrValidation))
}

func TestTransformOrder(t *testing.T) {
	tr := New(prefixEncrypt)
	o, err := tr.DecodeOrder(json.RawMessage(`{
		"id": 1001, "name": "#1001", "order_number": 1001, "email": "buyer@example.com",
		"total_price": "30.00", "subtotal_price": "27.00", "total_tax": "3.00",
		"financial_status": "paid", "created_at": "2024-01-15T10:00:00Z",
		"customer": {"id": 42},
		"shipping_address": {"address1": "1 Main St"},
		"line_items": [
			{"id": 1, "product_id": 7, "variant_id": 2, "title": "Shirt", "quantity": 2, "price": "9.50"},
			{"id": 2, "product_id": null, "title": "Gift wrap", "quantity": 1, "price": "8.00"}
		]
	}`))
	require.NoError(t, err)

	order, items, event, err := tr.TransformOrder(o, "t1")
	require.NoError(t, err)

	assert.Equal(t, "1001", order.ExternalID)
	assert.Equal(t, "42", order.CustomerExternalID)
	assert.Equal(t, 2, order.LineItemCount)
	assert.Equal(t, "enc:buyer@example.com", order.EmailEncrypted)
	assert.NotEmpty(t, order.ShippingAddressEncrypted)
	assert.Empty(t, order.BillingAddressEncrypted)
	assert.True(t, decimal.RequireFromString("30").Equal(order.TotalPrice))

	require.Len(t, items, 2)
	assert.Equal(t, "1001", items[0].OrderExternalID)
	assert.Equal(t, "7", items[0].ProductExternalID)
	assert.Equal(t, "", items[1].ProductExternalID)

	assert.Equal(t, domain.OrderEventCreated, event.Kind)
	assert.Equal(t, 2024, event.OccurredAt.Year())
}

func TestEventKind(t *testing.T) {
	tr := New(prefixEncrypt)
	tests := []struct {
		name string
		raw  string
		want domain.OrderEventKind
	}{
		{"open", `{"id":1,"total_price":"1"}`, domain.OrderEventCreated},
		{"partially fulfilled", `{"id":1,"total_price":"1","fulfillment_status":"partial"}`, domain.OrderEventCreated},
		{"fulfilled", `{"id":1,"total_price":"1","fulfillment_status":"fulfilled"}`, domain.OrderEventFulfilled},
		{"cancelled", `{"id":1,"total_price":"1","cancelled_at":"2024-02-01T00:00:00Z"}`, domain.OrderEventCancelled},
		{"cancelled after fulfillment", `{"id":1,"total_price":"1","fulfillment_status":"fulfilled","cancelled_at":"2024-02-01T00:00:00Z"}`, domain.OrderEventCancelled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o, err := tr.DecodeOrder(json.RawMessage(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, EventKind(o))
		})
	}
}

func TestTransformOrderBatch(t *testing.T) {
	tr := New(prefixEncrypt)
	var orders []*Order
	for _, raw := range []string{
		`{"id":1,"total_price":"5","line_items":[{"id":10,"price":"5","quantity":1}]}`,
		`{"id":2,"total_price":"7","fulfillment_status":"fulfilled","line_items":[{"id":20,"price":"3","quantity":1},{"id":21,"price":"4","quantity":1}]}`,
	} {
		o, err := tr.DecodeOrder(json.RawMessage(raw))
		require.NoError(t, err)
		orders = append(orders, o)
	}

	batch, err := tr.TransformOrderBatch(orders, "t1")
	require.NoError(t, err)
	assert.Len(t, batch.Orders, 2)
	assert.Len(t, batch.LineItems, 3)
	require.Len(t, batch.Events, 2)
	assert.Equal(t, domain.OrderEventFulfilled, batch.Events[1].Kind)
}

func TestRecordID(t *testing.T) {
	assert.Equal(t, "9007199254740993", RecordID(json.RawMessage(`{"id":9007199254740993}`)))
	assert.Equal(t, "", RecordID(json.RawMessage(`not json`)))
}
