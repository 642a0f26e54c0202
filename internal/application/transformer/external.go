package transformer

import (
	"encoding/json"
	"strconv"
	"time"
)

// Customer is the strict shape of a Shopify customer payload
type Customer struct {
	ID               int64      `json:"id" validate:"required,gt=0"`
	Email            string     `json:"email" validate:"required,email"`
	FirstName        string     `json:"first_name"`
	LastName         string     `json:"last_name"`
	Phone            string     `json:"phone"`
	State            string     `json:"state"`
	VerifiedEmail    bool       `json:"verified_email"`
	AcceptsMarketing bool       `json:"accepts_marketing"`
	OrdersCount      int        `json:"orders_count" validate:"gte=0"`
	TotalSpent       string     `json:"total_spent" validate:"omitempty,decimal"`
	Currency         string     `json:"currency"`
	Tags             string     `json:"tags"`
	Addresses        []Address  `json:"addresses" validate:"dive"`
	CreatedAt        *time.Time `json:"created_at"`
	UpdatedAt        *time.Time `json:"updated_at"`
}

// Address is a postal address; every field is PII
type Address struct {
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Company   string `json:"company,omitempty"`
	Address1  string `json:"address1,omitempty"`
	Address2  string `json:"address2,omitempty"`
	City      string `json:"city,omitempty"`
	Province  string `json:"province,omitempty"`
	Country   string `json:"country,omitempty"`
	Zip       string `json:"zip,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// Product is the strict shape of a Shopify product payload
type Product struct {
	ID          int64      `json:"id" validate:"required,gt=0"`
	Title       string     `json:"title" validate:"required"`
	Handle      string     `json:"handle"`
	Vendor      string     `json:"vendor"`
	ProductType string     `json:"product_type"`
	Status      string     `json:"status"`
	Tags        string     `json:"tags"`
	Variants    []Variant  `json:"variants" validate:"dive"`
	CreatedAt   *time.Time `json:"created_at"`
	UpdatedAt   *time.Time `json:"updated_at"`
}

// Variant is a product variant
type Variant struct {
	ID                int64  `json:"id" validate:"required,gt=0"`
	Title             string `json:"title"`
	SKU               string `json:"sku"`
	Price             string `json:"price" validate:"required,decimal"`
	CompareAtPrice    string `json:"compare_at_price" validate:"omitempty,decimal"`
	InventoryQuantity int    `json:"inventory_quantity"`
}

// Order is the strict shape of a Shopify order payload
type Order struct {
	ID                int64          `json:"id" validate:"required,gt=0"`
	Name              string         `json:"name"`
	OrderNumber       int            `json:"order_number"`
	Email             string         `json:"email" validate:"omitempty,email"`
	Currency          string         `json:"currency"`
	TotalPrice        string         `json:"total_price" validate:"required,decimal"`
	SubtotalPrice     string         `json:"subtotal_price" validate:"omitempty,decimal"`
	TotalTax          string         `json:"total_tax" validate:"omitempty,decimal"`
	TotalDiscounts    string         `json:"total_discounts" validate:"omitempty,decimal"`
	FinancialStatus   string         `json:"financial_status"`
	FulfillmentStatus string         `json:"fulfillment_status"`
	CancelledAt       *time.Time     `json:"cancelled_at"`
	ProcessedAt       *time.Time     `json:"processed_at"`
	CreatedAt         *time.Time     `json:"created_at"`
	UpdatedAt         *time.Time     `json:"updated_at"`
	Customer          *OrderCustomer `json:"customer"`
	ShippingAddress   *Address       `json:"shipping_address"`
	BillingAddress    *Address       `json:"billing_address"`
	LineItems         []LineItem     `json:"line_items" validate:"dive"`
}

// OrderCustomer is the customer reference embedded in an order
type OrderCustomer struct {
	ID int64 `json:"id"`
}

// LineItem is an order line
type LineItem struct {
	ID            int64  `json:"id" validate:"required,gt=0"`
	ProductID     *int64 `json:"product_id"`
	VariantID     *int64 `json:"variant_id"`
	Title         string `json:"title"`
	SKU           string `json:"sku"`
	Quantity      int    `json:"quantity" validate:"gte=0"`
	Price         string `json:"price" validate:"required,decimal"`
	TotalDiscount string `json:"total_discount" validate:"omitempty,decimal"`
}

// DeletedRecord is the payload of */delete webhooks, which only carry the id
type DeletedRecord struct {
	ID int64 `json:"id" validate:"required,gt=0"`
}

// ExternalID formats a Shopify numeric id as the stored identifier
func ExternalID(id int64) string {
	return strconv.FormatInt(id, 10)
}

func optionalID(id *int64) string {
	if id == nil || *id == 0 {
		return ""
	}
	return ExternalID(*id)
}

// RecordID extracts the id of a raw record without decoding the rest of it
func RecordID(raw json.RawMessage) string {
	var head struct {
		ID json.Number `json:"id"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return ""
	}
	return head.ID.String()
}
