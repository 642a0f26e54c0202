package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Customer is the tenant-scoped stored form of a Shopify customer.
// Fields suffixed Encrypted hold ciphertext produced by the injected encryption function.
type Customer struct {
	ExternalID         string
	TenantID           string
	EmailEncrypted     string
	FirstNameEncrypted string
	LastNameEncrypted  string
	PhoneEncrypted     string
	AddressesEncrypted string
	State              string
	VerifiedEmail      bool
	AcceptsMarketing   bool
	OrdersCount        int
	TotalSpent         decimal.Decimal
	Currency           string
	Tags               string
	SourceCreatedAt    *time.Time
	SourceUpdatedAt    *time.Time
}

// Product is the tenant-scoped stored form of a Shopify product with variant aggregates.
type Product struct {
	ExternalID      string
	TenantID        string
	Title           string
	Handle          string
	Vendor          string
	ProductType     string
	Status          string
	Tags            string
	PriceMin        decimal.Decimal
	PriceMax        decimal.Decimal
	TotalInventory  int
	VariantCount    int
	SourceCreatedAt *time.Time
	SourceUpdatedAt *time.Time
}

// Order is the parent of a composite record: it is always written together
// with its line items and lifecycle events.
type Order struct {
	ExternalID               string
	TenantID                 string
	Name                     string
	OrderNumber              int
	EmailEncrypted           string
	CustomerExternalID       string
	ShippingAddressEncrypted string
	BillingAddressEncrypted  string
	FinancialStatus          string
	FulfillmentStatus        string
	Currency                 string
	TotalPrice               decimal.Decimal
	SubtotalPrice            decimal.Decimal
	TotalTax                 decimal.Decimal
	TotalDiscounts           decimal.Decimal
	LineItemCount            int
	CancelledAt              *time.Time
	ProcessedAt              *time.Time
	SourceCreatedAt          *time.Time
	SourceUpdatedAt          *time.Time
}

// LineItem is a child of Order.
type LineItem struct {
	ExternalID        string
	OrderExternalID   string
	TenantID          string
	ProductExternalID string
	VariantExternalID string
	Title             string
	SKU               string
	Quantity          int
	Price             decimal.Decimal
	TotalDiscount     decimal.Decimal
}

// OrderEventKind is the synthetic lifecycle event derived from an order snapshot.
type OrderEventKind string

const (
	OrderEventCreated   OrderEventKind = "created"
	OrderEventFulfilled OrderEventKind = "fulfilled"
	OrderEventCancelled OrderEventKind = "cancelled"
)

// OrderEvent is a child of Order.
type OrderEvent struct {
	OrderExternalID string
	TenantID        string
	Kind            OrderEventKind
	OccurredAt      time.Time
}
