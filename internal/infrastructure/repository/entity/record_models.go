package entity

import (
	"time"

	"archie-core-shopify-ingestion/internal/domain"

	"github.com/shopspring/decimal"
)

// CustomerModel is the relational row for a customer
type CustomerModel struct {
	ID                 uint   `gorm:"primaryKey"`
	ExternalID         string `gorm:"size:64;not null;uniqueIndex:idx_customers_external_tenant"`
	TenantID           string `gorm:"size:64;not null;uniqueIndex:idx_customers_external_tenant;index"`
	EmailEncrypted     string `gorm:"type:text"`
	FirstNameEncrypted string `gorm:"type:text"`
	LastNameEncrypted  string `gorm:"type:text"`
	PhoneEncrypted     string `gorm:"type:text"`
	AddressesEncrypted string `gorm:"type:text"`
	State              string `gorm:"size:32"`
	VerifiedEmail      bool
	AcceptsMarketing   bool
	OrdersCount        int
	TotalSpent         decimal.Decimal `gorm:"type:decimal(18,4)"`
	Currency           string          `gorm:"size:8"`
	Tags               string          `gorm:"type:text"`
	SourceCreatedAt    *time.Time
	SourceUpdatedAt    *time.Time
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

func (CustomerModel) TableName() string { return "customers" }

// CustomerUpdateColumns are overwritten when an existing customer is upserted
var CustomerUpdateColumns = []string{
	"email_encrypted", "first_name_encrypted", "last_name_encrypted", "phone_encrypted",
	"addresses_encrypted", "state", "verified_email", "accepts_marketing", "orders_count",
	"total_spent", "currency", "tags", "source_created_at", "source_updated_at", "updated_at",
}

// CustomerModelFromDomain converts a domain customer to a row
func CustomerModelFromDomain(c *domain.Customer) *CustomerModel {
	return &CustomerModel{
		ExternalID:         c.ExternalID,
		TenantID:           c.TenantID,
		EmailEncrypted:     c.EmailEncrypted,
		FirstNameEncrypted: c.FirstNameEncrypted,
		LastNameEncrypted:  c.LastNameEncrypted,
		PhoneEncrypted:     c.PhoneEncrypted,
		AddressesEncrypted: c.AddressesEncrypted,
		State:              c.State,
		VerifiedEmail:      c.VerifiedEmail,
		AcceptsMarketing:   c.AcceptsMarketing,
		OrdersCount:        c.OrdersCount,
		TotalSpent:         c.TotalSpent,
		Currency:           c.Currency,
		Tags:               c.Tags,
		SourceCreatedAt:    c.SourceCreatedAt,
		SourceUpdatedAt:    c.SourceUpdatedAt,
	}
}

// ToDomain converts the row to a domain customer
func (m *CustomerModel) ToDomain() *domain.Customer {
	return &domain.Customer{
		ExternalID:         m.ExternalID,
		TenantID:           m.TenantID,
		EmailEncrypted:     m.EmailEncrypted,
		FirstNameEncrypted: m.FirstNameEncrypted,
		LastNameEncrypted:  m.LastNameEncrypted,
		PhoneEncrypted:     m.PhoneEncrypted,
		AddressesEncrypted: m.AddressesEncrypted,
		State:              m.State,
		VerifiedEmail:      m.VerifiedEmail,
		AcceptsMarketing:   m.AcceptsMarketing,
		OrdersCount:        m.OrdersCount,
		TotalSpent:         m.TotalSpent,
		Currency:           m.Currency,
		Tags:               m.Tags,
		SourceCreatedAt:    m.SourceCreatedAt,
		SourceUpdatedAt:    m.SourceUpdatedAt,
	}
}

// ProductModel is the relational row for a product
type ProductModel struct {
	ID              uint            `gorm:"primaryKey"`
	ExternalID      string          `gorm:"size:64;not null;uniqueIndex:idx_products_external_tenant"`
	TenantID        string          `gorm:"size:64;not null;uniqueIndex:idx_products_external_tenant;index"`
	Title           string          `gorm:"size:512"`
	Handle          string          `gorm:"size:255"`
	Vendor          string          `gorm:"size:255"`
	ProductType     string          `gorm:"size:255"`
	Status          string          `gorm:"size:32"`
	Tags            string          `gorm:"type:text"`
	PriceMin        decimal.Decimal `gorm:"type:decimal(18,4)"`
	PriceMax        decimal.Decimal `gorm:"type:decimal(18,4)"`
	TotalInventory  int
	VariantCount    int
	SourceCreatedAt *time.Time
	SourceUpdatedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (ProductModel) TableName() string { return "products" }

// ProductUpdateColumns are overwritten when an existing product is upserted
var ProductUpdateColumns = []string{
	"title", "handle", "vendor", "product_type", "status", "tags", "price_min", "price_max",
	"total_inventory", "variant_count", "source_created_at", "source_updated_at", "updated_at",
}

// ProductModelFromDomain converts a domain product to a row
func ProductModelFromDomain(p *domain.Product) *ProductModel {
	return &ProductModel{
		ExternalID:      p.ExternalID,
		TenantID:        p.TenantID,
		Title:           p.Title,
		Handle:          p.Handle,
		Vendor:          p.Vendor,
		ProductType:     p.ProductType,
		Status:          p.Status,
		Tags:            p.Tags,
		PriceMin:        p.PriceMin,
		PriceMax:        p.PriceMax,
		TotalInventory:  p.TotalInventory,
		VariantCount:    p.VariantCount,
		SourceCreatedAt: p.SourceCreatedAt,
		SourceUpdatedAt: p.SourceUpdatedAt,
	}
}

// ToDomain converts the row to a domain product
func (m *ProductModel) ToDomain() *domain.Product {
	return &domain.Product{
		ExternalID:      m.ExternalID,
		TenantID:        m.TenantID,
		Title:           m.Title,
		Handle:          m.Handle,
		Vendor:          m.Vendor,
		ProductType:     m.ProductType,
		Status:          m.Status,
		Tags:            m.Tags,
		PriceMin:        m.PriceMin,
		PriceMax:        m.PriceMax,
		TotalInventory:  m.TotalInventory,
		VariantCount:    m.VariantCount,
		SourceCreatedAt: m.SourceCreatedAt,
		SourceUpdatedAt: m.SourceUpdatedAt,
	}
}

// OrderModel is the relational row for an order
type OrderModel struct {
	ID                       uint   `gorm:"primaryKey"`
	ExternalID               string `gorm:"size:64;not null;uniqueIndex:idx_orders_external_tenant"`
	TenantID                 string `gorm:"size:64;not null;uniqueIndex:idx_orders_external_tenant;index"`
	Name                     string `gorm:"size:64"`
	OrderNumber              int
	EmailEncrypted           string          `gorm:"type:text"`
	CustomerExternalID       string          `gorm:"size:64;index"`
	ShippingAddressEncrypted string          `gorm:"type:text"`
	BillingAddressEncrypted  string          `gorm:"type:text"`
	FinancialStatus          string          `gorm:"size:32"`
	FulfillmentStatus        string          `gorm:"size:32"`
	Currency                 string          `gorm:"size:8"`
	TotalPrice               decimal.Decimal `gorm:"type:decimal(18,4)"`
	SubtotalPrice            decimal.Decimal `gorm:"type:decimal(18,4)"`
	TotalTax                 decimal.Decimal `gorm:"type:decimal(18,4)"`
	TotalDiscounts           decimal.Decimal `gorm:"type:decimal(18,4)"`
	LineItemCount            int
	CancelledAt              *time.Time
	ProcessedAt              *time.Time
	SourceCreatedAt          *time.Time
	SourceUpdatedAt          *time.Time
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

func (OrderModel) TableName() string { return "orders" }

// OrderUpdateColumns are overwritten when an existing order is upserted
var OrderUpdateColumns = []string{
	"name", "order_number", "email_encrypted", "customer_external_id", "shipping_address_encrypted",
	"billing_address_encrypted", "financial_status", "fulfillment_status", "currency", "total_price",
	"subtotal_price", "total_tax", "total_discounts", "line_item_count", "cancelled_at",
	"processed_at", "source_created_at", "source_updated_at", "updated_at",
}

// OrderModelFromDomain converts a domain order to a row
func OrderModelFromDomain(o *domain.Order) *OrderModel {
	return &OrderModel{
		ExternalID:               o.ExternalID,
		TenantID:                 o.TenantID,
		Name:                     o.Name,
		OrderNumber:              o.OrderNumber,
		EmailEncrypted:           o.EmailEncrypted,
		CustomerExternalID:       o.CustomerExternalID,
		ShippingAddressEncrypted: o.ShippingAddressEncrypted,
		BillingAddressEncrypted:  o.BillingAddressEncrypted,
		FinancialStatus:          o.FinancialStatus,
		FulfillmentStatus:        o.FulfillmentStatus,
		Currency:                 o.Currency,
		TotalPrice:               o.TotalPrice,
		SubtotalPrice:            o.SubtotalPrice,
		TotalTax:                 o.TotalTax,
		TotalDiscounts:           o.TotalDiscounts,
		LineItemCount:            o.LineItemCount,
		CancelledAt:              o.CancelledAt,
		ProcessedAt:              o.ProcessedAt,
		SourceCreatedAt:          o.SourceCreatedAt,
		SourceUpdatedAt:          o.SourceUpdatedAt,
	}
}

// ToDomain converts the row to a domain order
func (m *OrderModel) ToDomain() *domain.Order {
	return &domain.Order{
		ExternalID:               m.ExternalID,
		TenantID:                 m.TenantID,
		Name:                     m.Name,
		OrderNumber:              m.OrderNumber,
		EmailEncrypted:           m.EmailEncrypted,
		CustomerExternalID:       m.CustomerExternalID,
		ShippingAddressEncrypted: m.ShippingAddressEncrypted,
		BillingAddressEncrypted:  m.BillingAddressEncrypted,
		FinancialStatus:          m.FinancialStatus,
		FulfillmentStatus:        m.FulfillmentStatus,
		Currency:                 m.Currency,
		TotalPrice:               m.TotalPrice,
		SubtotalPrice:            m.SubtotalPrice,
		TotalTax:                 m.TotalTax,
		TotalDiscounts:           m.TotalDiscounts,
		LineItemCount:            m.LineItemCount,
		CancelledAt:              m.CancelledAt,
		ProcessedAt:              m.ProcessedAt,
		SourceCreatedAt:          m.SourceCreatedAt,
		SourceUpdatedAt:          m.SourceUpdatedAt,
	}
}

// LineItemModel is a child row of OrderModel
type LineItemModel struct {
	ID                uint   `gorm:"primaryKey"`
	ExternalID        string `gorm:"size:64;not null"`
	OrderExternalID   string `gorm:"size:64;not null;index:idx_line_items_order"`
	TenantID          string `gorm:"size:64;not null;index:idx_line_items_order"`
	ProductExternalID string `gorm:"size:64;index"`
	VariantExternalID string `gorm:"size:64"`
	Title             string `gorm:"size:512"`
	SKU               string `gorm:"size:255"`
	Quantity          int
	Price             decimal.Decimal `gorm:"type:decimal(18,4)"`
	TotalDiscount     decimal.Decimal `gorm:"type:decimal(18,4)"`
	CreatedAt         time.Time
}

func (LineItemModel) TableName() string { return "order_line_items" }

// LineItemModelFromDomain converts a domain line item to a row
func LineItemModelFromDomain(li domain.LineItem) LineItemModel {
	return LineItemModel{
		ExternalID:        li.ExternalID,
		OrderExternalID:   li.OrderExternalID,
		TenantID:          li.TenantID,
		ProductExternalID: li.ProductExternalID,
		VariantExternalID: li.VariantExternalID,
		Title:             li.Title,
		SKU:               li.SKU,
		Quantity:          li.Quantity,
		Price:             li.Price,
		TotalDiscount:     li.TotalDiscount,
	}
}

// ToDomain converts the row to a domain line item
func (m *LineItemModel) ToDomain() domain.LineItem {
	return domain.LineItem{
		ExternalID:        m.ExternalID,
		OrderExternalID:   m.OrderExternalID,
		TenantID:          m.TenantID,
		ProductExternalID: m.ProductExternalID,
		VariantExternalID: m.VariantExternalID,
		Title:             m.Title,
		SKU:               m.SKU,
		Quantity:          m.Quantity,
		Price:             m.Price,
		TotalDiscount:     m.TotalDiscount,
	}
}

// OrderEventModel is a child row of OrderModel
type OrderEventModel struct {
	ID              uint      `gorm:"primaryKey"`
	OrderExternalID string    `gorm:"size:64;not null;index:idx_order_events_order"`
	TenantID        string    `gorm:"size:64;not null;index:idx_order_events_order"`
	Kind            string    `gorm:"size:16;not null"`
	OccurredAt      time.Time `gorm:"not null"`
	CreatedAt       time.Time
}

func (OrderEventModel) TableName() string { return "order_events" }

// OrderEventModelFromDomain converts a domain event to a row
func OrderEventModelFromDomain(e domain.OrderEvent) OrderEventModel {
	return OrderEventModel{
		OrderExternalID: e.OrderExternalID,
		TenantID:        e.TenantID,
		Kind:            string(e.Kind),
		OccurredAt:      e.OccurredAt,
	}
}

// ToDomain converts the row to a domain event
func (m *OrderEventModel) ToDomain() domain.OrderEvent {
	return domain.OrderEvent{
		OrderExternalID: m.OrderExternalID,
		TenantID:        m.TenantID,
		Kind:            domain.OrderEventKind(m.Kind),
		OccurredAt:      m.OccurredAt,
	}
}

// AllRecordModels lists every table owned by the record store, for migrations
func AllRecordModels() []any {
	return []any{&CustomerModel{}, &ProductModel{}, &OrderModel{}, &LineItemModel{}, &OrderEventModel{}}
}
