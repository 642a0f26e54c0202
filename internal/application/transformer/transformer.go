// Package transformer maps strict Shopify payloads to tenant-scoped records.
// It performs no I/O; PII goes through the injected EncryptFunc.
package transformer

import (
	"encoding/json"
	"fmt"
	"time"

	"archie-core-shopify-ingestion/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// EncryptFunc encrypts a single PII value
type EncryptFunc func(plaintext string) (string, error)

// Transformer validates and maps external records
type Transformer struct {
	validator *validator.Validate
	encrypt   EncryptFunc
}

// New creates a transformer. A nil encrypt stores values unchanged and is only meant for tests.
func New(encrypt EncryptFunc) *Transformer {
	if encrypt == nil {
		encrypt = func(s string) (string, error) { return s, nil }
	}
	return &Transformer{
		validator: newValidator(),
		encrypt:   encrypt,
	}
}

// OrderBatch is the output of TransformOrderBatch
type OrderBatch struct {
	Orders    []*domain.Order
	LineItems []domain.LineItem
	Events    []domain.OrderEvent
}

// TransformCustomer maps a validated customer
func (t *Transformer) TransformCustomer(c *Customer, tenantID string) (*domain.Customer, error) {
	var err error
	out := &domain.Customer{
		ExternalID:       ExternalID(c.ID),
		TenantID:         tenantID,
		State:            c.State,
		VerifiedEmail:    c.VerifiedEmail,
		AcceptsMarketing: c.AcceptsMarketing,
		OrdersCount:      c.OrdersCount,
		Currency:         c.Currency,
		Tags:             c.Tags,
		SourceCreatedAt:  c.CreatedAt,
		SourceUpdatedAt:  c.UpdatedAt,
	}
	if out.TotalSpent, err = parseDecimal("total_spent", c.TotalSpent); err != nil {
		return nil, err
	}
	if out.EmailEncrypted, err = t.encryptField("email", c.Email); err != nil {
		return nil, err
	}
	if out.FirstNameEncrypted, err = t.encryptField("first_name", c.FirstName); err != nil {
		return nil, err
	}
	if out.LastNameEncrypted, err = t.encryptField("last_name", c.LastName); err != nil {
		return nil, err
	}
	if out.PhoneEncrypted, err = t.encryptField("phone", c.Phone); err != nil {
		return nil, err
	}
	if len(c.Addresses) > 0 {
		if out.AddressesEncrypted, err = t.encryptJSON("addresses", c.Addresses); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// TransformProduct maps a validated product and derives price range and inventory from its variants
func (t *Transformer) TransformProduct(p *Product, tenantID string) (*domain.Product, error) {
	out := &domain.Product{
		ExternalID:      ExternalID(p.ID),
		TenantID:        tenantID,
		Title:           p.Title,
		Handle:          p.Handle,
		Vendor:          p.Vendor,
		ProductType:     p.ProductType,
		Status:          p.Status,
		Tags:            p.Tags,
		VariantCount:    len(p.Variants),
		SourceCreatedAt: p.CreatedAt,
		SourceUpdatedAt: p.UpdatedAt,
	}
	for i, v := range p.Variants {
		price, err := parseDecimal("variants.price", v.Price)
		if err != nil {
			return nil, err
		}
		if i == 0 || price.LessThan(out.PriceMin) {
			out.PriceMin = price
		}
		if i == 0 || price.GreaterThan(out.PriceMax) {
			out.PriceMax = price
		}
		out.TotalInventory += v.InventoryQuantity
	}
	return out, nil
}

// TransformOrder maps a validated order into the parent record, its line items and one lifecycle event
func (t *Transformer) TransformOrder(o *Order, tenantID string) (*domain.Order, []domain.LineItem, domain.OrderEvent, error) {
	var err error
	orderID := ExternalID(o.ID)
	out := &domain.Order{
		ExternalID:        orderID,
		TenantID:          tenantID,
		Name:              o.Name,
		OrderNumber:       o.OrderNumber,
		FinancialStatus:   o.FinancialStatus,
		FulfillmentStatus: o.FulfillmentStatus,
		Currency:          o.Currency,
		LineItemCount:     len(o.LineItems),
		CancelledAt:       o.CancelledAt,
		ProcessedAt:       o.ProcessedAt,
		SourceCreatedAt:   o.CreatedAt,
		SourceUpdatedAt:   o.UpdatedAt,
	}
	if o.Customer != nil && o.Customer.ID > 0 {
		out.CustomerExternalID = ExternalID(o.Customer.ID)
	}
	if out.TotalPrice, err = parseDecimal("total_price", o.TotalPrice); err != nil {
		return nil, nil, domain.OrderEvent{}, err
	}
	if out.SubtotalPrice, err = parseDecimal("subtotal_price", o.SubtotalPrice); err != nil {
		return nil, nil, domain.OrderEvent{}, err
	}
	if out.TotalTax, err = parseDecimal("total_tax", o.TotalTax); err != nil {
		return nil, nil, domain.OrderEvent{}, err
	}
	if out.TotalDiscounts, err = parseDecimal("total_discounts", o.TotalDiscounts); err != nil {
		return nil, nil, domain.OrderEvent{}, err
	}
	if out.EmailEncrypted, err = t.encryptField("email", o.Email); err != nil {
		return nil, nil, domain.OrderEvent{}, err
	}
	if o.ShippingAddress != nil {
		if out.ShippingAddressEncrypted, err = t.encryptJSON("shipping_address", o.ShippingAddress); err != nil {
			return nil, nil, domain.OrderEvent{}, err
		}
	}
	if o.BillingAddress != nil {
		if out.BillingAddressEncrypted, err = t.encryptJSON("billing_address", o.BillingAddress); err != nil {
			return nil, nil, domain.OrderEvent{}, err
		}
	}

	items := make([]domain.LineItem, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		item := domain.LineItem{
			ExternalID:        ExternalID(li.ID),
			OrderExternalID:   orderID,
			TenantID:          tenantID,
			ProductExternalID: optionalID(li.ProductID),
			VariantExternalID: optionalID(li.VariantID),
			Title:             li.Title,
			SKU:               li.SKU,
			Quantity:          li.Quantity,
		}
		if item.Price, err = parseDecimal("line_items.price", li.Price); err != nil {
			return nil, nil, domain.OrderEvent{}, err
		}
		if item.TotalDiscount, err = parseDecimal("line_items.total_discount", li.TotalDiscount); err != nil {
			return nil, nil, domain.OrderEvent{}, err
		}
		items = append(items, item)
	}

	return out, items, lifecycleEvent(o, orderID, tenantID), nil
}

// TransformOrderBatch transforms several orders, flattening children and events.
// The first failing order aborts the batch.
func (t *Transformer) TransformOrderBatch(orders []*Order, tenantID string) (*OrderBatch, error) {
	batch := &OrderBatch{}
	for _, o := range orders {
		order, items, event, err := t.TransformOrder(o, tenantID)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", o.ID, err)
		}
		batch.Orders = append(batch.Orders, order)
		batch.LineItems = append(batch.LineItems, items...)
		batch.Events = append(batch.Events, event)
	}
	return batch, nil
}

// EventKind picks the lifecycle event for an order snapshot; cancellation wins over fulfillment
func EventKind(o *Order) domain.OrderEventKind {
	switch {
	case o.CancelledAt != nil:
		return domain.OrderEventCancelled
	case o.FulfillmentStatus == "fulfilled":
		return domain.OrderEventFulfilled
	default:
		return domain.OrderEventCreated
	}
}

func lifecycleEvent(o *Order, orderID, tenantID string) domain.OrderEvent {
	kind := EventKind(o)
	var at *time.Time
	switch kind {
	case domain.OrderEventCancelled:
		at = o.CancelledAt
	case domain.OrderEventFulfilled:
		at = o.UpdatedAt
	default:
		at = o.CreatedAt
	}
	occurred := time.Now().UTC()
	if at != nil {
		occurred = at.UTC()
	}
	return domain.OrderEvent{
		OrderExternalID: orderID,
		TenantID:        tenantID,
		Kind:            kind,
		OccurredAt:      occurred,
	}
}

func (t *Transformer) encryptField(name, value string) (string, error) {
	if value == "" {
		return "", nil
	}
	enc, err := t.encrypt(value)
	if err != nil {
		return "", fmt.Errorf("failed to encrypt %s: %w", name, err)
	}
	return enc, nil
}

func (t *Transformer) encryptJSON(name string, value any) (string, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return "", fmt.Errorf("failed to marshal %s: %w", name, err)
	}
	return t.encryptField(name, string(b))
}

// parseDecimal parses a money string. Empty means zero; anything unparsable is a validation failure.
func parseDecimal(field, s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %s %q is not a decimal", domain.ErrValidation, field, s)
	}
	return d, nil
}
