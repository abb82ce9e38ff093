package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Money is an amount with its source currency code
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// OrderStatus is the internal order vocabulary
type OrderStatus string

const (
	OrderStatusPending            OrderStatus = "pending"
	OrderStatusPaid               OrderStatus = "paid"
	OrderStatusPartiallyFulfilled OrderStatus = "partially_fulfilled"
	OrderStatusFulfilled          OrderStatus = "fulfilled"
	OrderStatusCancelled          OrderStatus = "cancelled"
	OrderStatusRefunded           OrderStatus = "refunded"
	OrderStatusUnknown            OrderStatus = "unknown"
)

// ProductStatus is the internal product vocabulary
type ProductStatus string

const (
	ProductStatusActive   ProductStatus = "active"
	ProductStatusDraft    ProductStatus = "draft"
	ProductStatusArchived ProductStatus = "archived"
	ProductStatusUnknown  ProductStatus = "unknown"
)

// Order is an order pulled from a sales channel
type Order struct {
	ID                string
	StoreID           string
	ChannelID         string
	Platform          string
	ExternalID        string
	Name              string
	Email             string
	Status            OrderStatus
	Total             Money
	ShippingRegion    string
	ShippingCountry   string
	Lines             []OrderLine
	TotalWeightGrams  decimal.Decimal
	WarehouseID       string
	PlacedAt          time.Time
	ExternalUpdatedAt time.Time
	CreatedAt         time.Time
}

// OrderLine is one line of an order
type OrderLine struct {
	ExternalID  string
	SKU         string
	Title       string
	Quantity    int
	UnitPrice   Money
	WeightGrams decimal.Decimal
}

// Product is a catalog entry pulled from a sales channel
type Product struct {
	ID                      string
	StoreID                 string
	ChannelID               string
	Platform                string
	ExternalID              string
	Title                   string
	Vendor                  string
	ProductType             string
	Handle                  string
	Status                  ProductStatus
	Variants                []Variant
	DestinationWarehouseIDs []string
	IsActive                bool
	ExternalUpdatedAt       time.Time
	CreatedAt               time.Time
}

// Variant is a sellable variant of a product
type Variant struct {
	ExternalID        string
	SKU               string
	Title             string
	Price             Money
	WeightGrams       decimal.Decimal
	InventoryQuantity int
}

// ShippingService is a carrier service offered to a warehouse operator
type ShippingService struct {
	ID            string
	ChannelID     string
	Carrier       string
	ServiceCode   string
	Name          string
	Domestic      bool
	International bool
	IsActive      bool
	CreatedAt     time.Time
}

// ShippingBox is a carrier package type
type ShippingBox struct {
	ID            string
	ChannelID     string
	Carrier       string
	PackageCode   string
	Name          string
	Domestic      bool
	International bool
	IsActive      bool
	CreatedAt     time.Time
}

// ExternalRecord is one record of a fetched page, before transformation.
// Exactly one of Order and Product is set.
type ExternalRecord struct {
	ExternalID string
	Platform   string
	StoreID    string
	UpdatedAt  time.Time
	Order      *ExternalOrder
	Product    *ExternalProduct
}

// ExternalOrder carries platform order fields as the platform sent them
type ExternalOrder struct {
	Name              string
	Email             string
	FinancialStatus   string
	FulfillmentStatus string
	Cancelled         bool
	TotalAmount       string
	CurrencyCode      string
	RegionCode        string
	CountryCode       string
	Lines             []ExternalOrderLine
	CreatedAt         time.Time
}

// ExternalOrderLine is an order line as the platform sent it
type ExternalOrderLine struct {
	ExternalID   string
	SKU          string
	Title        string
	Quantity     int
	UnitAmount   string
	CurrencyCode string
	WeightValue  string
	WeightUnit   string
}

// ExternalProduct carries platform product fields as the platform sent them
type ExternalProduct struct {
	Title       string
	Status      string
	Vendor      string
	ProductType string
	Handle      string
	Variants    []ExternalVariant
}

// ExternalVariant is a product variant as the platform sent it
type ExternalVariant struct {
	ExternalID        string
	SKU               string
	Title             string
	Price             string
	CurrencyCode      string
	WeightValue       string
	WeightUnit        string
	InventoryQuantity int
}
