package entity

import (
	"time"

	"warehouse-channel-sync/internal/domain"

	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MongoMoneyDoc stores an amount as Decimal128 so totals never pass through float64
type MongoMoneyDoc struct {
	Amount   primitive.Decimal128 `bson:"amount"`
	Currency string               `bson:"currency,omitempty"`
}

// MongoOrderLineDoc is one order line
type MongoOrderLineDoc struct {
	ExternalID  string               `bson:"externalId"`
	SKU         string               `bson:"sku,omitempty"`
	Title       string               `bson:"title"`
	Quantity    int                  `bson:"quantity"`
	UnitPrice   MongoMoneyDoc        `bson:"unitPrice"`
	WeightGrams primitive.Decimal128 `bson:"weightGrams"`
}

// MongoOrderDoc represents an imported order
type MongoOrderDoc struct {
	ID                string               `bson:"_id"`
	StoreID           string               `bson:"storeId"`
	ChannelID         string               `bson:"channelId"`
	Platform          string               `bson:"platform"`
	ExternalID        string               `bson:"externalId"`
	Name              string               `bson:"name"`
	Email             string               `bson:"email,omitempty"`
	Status            string               `bson:"status"`
	Total             MongoMoneyDoc        `bson:"total"`
	ShippingRegion    string               `bson:"shippingRegion,omitempty"`
	ShippingCountry   string               `bson:"shippingCountry,omitempty"`
	Lines             []MongoOrderLineDoc  `bson:"lines"`
	TotalWeightGrams  primitive.Decimal128 `bson:"totalWeightGrams"`
	WarehouseID       string               `bson:"warehouseId,omitempty"`
	PlacedAt          time.Time            `bson:"placedAt"`
	ExternalUpdatedAt time.Time            `bson:"externalUpdatedAt"`
	CreatedAt         time.Time            `bson:"createdAt"`
	UpdatedAt         time.Time            `bson:"updatedAt"`
}

// MongoVariantDoc is one product variant
type MongoVariantDoc struct {
	ExternalID        string               `bson:"externalId"`
	SKU               string               `bson:"sku,omitempty"`
	Title             string               `bson:"title"`
	Price             MongoMoneyDoc        `bson:"price"`
	WeightGrams       primitive.Decimal128 `bson:"weightGrams"`
	InventoryQuantity int                  `bson:"inventoryQuantity"`
}

// MongoProductDoc represents an imported product
type MongoProductDoc struct {
	ID                      string            `bson:"_id"`
	StoreID                 string            `bson:"storeId"`
	ChannelID               string            `bson:"channelId"`
	Platform                string            `bson:"platform"`
	ExternalID              string            `bson:"externalId"`
	Title                   string            `bson:"title"`
	Vendor                  string            `bson:"vendor,omitempty"`
	ProductType             string            `bson:"productType,omitempty"`
	Handle                  string            `bson:"handle,omitempty"`
	Status                  string            `bson:"status"`
	Variants                []MongoVariantDoc `bson:"variants"`
	DestinationWarehouseIDs []string          `bson:"destinationWarehouseIds"`
	IsActive                bool              `bson:"isActive"`
	ExternalUpdatedAt       time.Time         `bson:"externalUpdatedAt"`
	CreatedAt               time.Time         `bson:"createdAt"`
	UpdatedAt               time.Time         `bson:"updatedAt"`
}

// MongoShippingServiceDoc represents a carrier service
type MongoShippingServiceDoc struct {
	ID            string    `bson:"_id"`
	ChannelID     string    `bson:"channelId"`
	Carrier       string    `bson:"carrier"`
	ServiceCode   string    `bson:"serviceCode"`
	Name          string    `bson:"name"`
	Domestic      bool      `bson:"domestic"`
	International bool      `bson:"international"`
	IsActive      bool      `bson:"isActive"`
	CreatedAt     time.Time `bson:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

// MongoShippingBoxDoc represents a carrier package type
type MongoShippingBoxDoc struct {
	ID            string    `bson:"_id"`
	ChannelID     string    `bson:"channelId"`
	Carrier       string    `bson:"carrier"`
	PackageCode   string    `bson:"packageCode"`
	Name          string    `bson:"name"`
	Domestic      bool      `bson:"domestic"`
	International bool      `bson:"international"`
	IsActive      bool      `bson:"isActive"`
	CreatedAt     time.Time `bson:"createdAt"`
	UpdatedAt     time.Time `bson:"updatedAt"`
}

// ToDecimal128 converts a decimal for storage
func ToDecimal128(d decimal.Decimal) primitive.Decimal128 {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.NewDecimal128(0, 0)
	}
	return v
}

// FromDecimal128 converts a stored decimal. Unparseable values read as zero.
func FromDecimal128(v primitive.Decimal128) decimal.Decimal {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero
	}
	return d
}

func moneyToDoc(m domain.Money) MongoMoneyDoc {
	return MongoMoneyDoc{Amount: ToDecimal128(m.Amount), Currency: m.Currency}
}

func (d MongoMoneyDoc) toDomain() domain.Money {
	return domain.Money{Amount: FromDecimal128(d.Amount), Currency: d.Currency}
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoOrderDoc) ToDomain() domain.Order {
	o := domain.Order{
		ID:                d.ID,
		StoreID:           d.StoreID,
		ChannelID:         d.ChannelID,
		Platform:          d.Platform,
		ExternalID:        d.ExternalID,
		Name:              d.Name,
		Email:             d.Email,
		Status:            domain.OrderStatus(d.Status),
		Total:             d.Total.toDomain(),
		ShippingRegion:    d.ShippingRegion,
		ShippingCountry:   d.ShippingCountry,
		TotalWeightGrams:  FromDecimal128(d.TotalWeightGrams),
		WarehouseID:       d.WarehouseID,
		PlacedAt:          d.PlacedAt,
		ExternalUpdatedAt: d.ExternalUpdatedAt,
		CreatedAt:         d.CreatedAt,
	}
	for _, l := range d.Lines {
		o.Lines = append(o.Lines, domain.OrderLine{
			ExternalID:  l.ExternalID,
			SKU:         l.SKU,
			Title:       l.Title,
			Quantity:    l.Quantity,
			UnitPrice:   l.UnitPrice.toDomain(),
			WeightGrams: FromDecimal128(l.WeightGrams),
		})
	}
	return o
}

// MongoOrderDocFromDomain converts a domain order for storage
func MongoOrderDocFromDomain(o domain.Order) *MongoOrderDoc {
	doc := &MongoOrderDoc{
		ID:                o.ID,
		StoreID:           o.StoreID,
		ChannelID:         o.ChannelID,
		Platform:          o.Platform,
		ExternalID:        o.ExternalID,
		Name:              o.Name,
		Email:             o.Email,
		Status:            string(o.Status),
		Total:             moneyToDoc(o.Total),
		ShippingRegion:    o.ShippingRegion,
		ShippingCountry:   o.ShippingCountry,
		Lines:             make([]MongoOrderLineDoc, 0, len(o.Lines)),
		TotalWeightGrams:  ToDecimal128(o.TotalWeightGrams),
		WarehouseID:       o.WarehouseID,
		PlacedAt:          o.PlacedAt,
		ExternalUpdatedAt: o.ExternalUpdatedAt,
		CreatedAt:         o.CreatedAt,
	}
	for _, l := range o.Lines {
		doc.Lines = append(doc.Lines, MongoOrderLineDoc{
			ExternalID:  l.ExternalID,
			SKU:         l.SKU,
			Title:       l.Title,
			Quantity:    l.Quantity,
			UnitPrice:   moneyToDoc(l.UnitPrice),
			WeightGrams: ToDecimal128(l.WeightGrams),
		})
	}
	return doc
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoProductDoc) ToDomain() domain.Product {
	p := domain.Product{
		ID:                      d.ID,
		StoreID:                 d.StoreID,
		ChannelID:               d.ChannelID,
		Platform:                d.Platform,
		ExternalID:              d.ExternalID,
		Title:                   d.Title,
		Vendor:                  d.Vendor,
		ProductType:             d.ProductType,
		Handle:                  d.Handle,
		Status:                  domain.ProductStatus(d.Status),
		DestinationWarehouseIDs: d.DestinationWarehouseIDs,
		IsActive:                d.IsActive,
		ExternalUpdatedAt:       d.ExternalUpdatedAt,
		CreatedAt:               d.CreatedAt,
	}
	for _, v := range d.Variants {
		p.Variants = append(p.Variants, domain.Variant{
			ExternalID:        v.ExternalID,
			SKU:               v.SKU,
			Title:             v.Title,
			Price:             v.Price.toDomain(),
			WeightGrams:       FromDecimal128(v.WeightGrams),
			InventoryQuantity: v.InventoryQuantity,
		})
	}
	return p
}

// MongoProductDocFromDomain converts a domain product for storage
func MongoProductDocFromDomain(p domain.Product) *MongoProductDoc {
	doc := &MongoProductDoc{
		ID:                      p.ID,
		StoreID:                 p.StoreID,
		ChannelID:               p.ChannelID,
		Platform:                p.Platform,
		ExternalID:              p.ExternalID,
		Title:                   p.Title,
		Vendor:                  p.Vendor,
		ProductType:             p.ProductType,
		Handle:                  p.Handle,
		Status:                  string(p.Status),
		Variants:                make([]MongoVariantDoc, 0, len(p.Variants)),
		DestinationWarehouseIDs: p.DestinationWarehouseIDs,
		IsActive:                p.IsActive,
		ExternalUpdatedAt:       p.ExternalUpdatedAt,
		CreatedAt:               p.CreatedAt,
	}
	if doc.DestinationWarehouseIDs == nil {
		doc.DestinationWarehouseIDs = []string{}
	}
	for _, v := range p.Variants {
		doc.Variants = append(doc.Variants, MongoVariantDoc{
			ExternalID:        v.ExternalID,
			SKU:               v.SKU,
			Title:             v.Title,
			Price:             moneyToDoc(v.Price),
			WeightGrams:       ToDecimal128(v.WeightGrams),
			InventoryQuantity: v.InventoryQuantity,
		})
	}
	return doc
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoShippingServiceDoc) ToDomain() domain.ShippingService {
	return domain.ShippingService{
		ID:            d.ID,
		ChannelID:     d.ChannelID,
		Carrier:       d.Carrier,
		ServiceCode:   d.ServiceCode,
		Name:          d.Name,
		Domestic:      d.Domestic,
		International: d.International,
		IsActive:      d.IsActive,
		CreatedAt:     d.CreatedAt,
	}
}

// MongoShippingServiceDocFromDomain converts a service for storage
func MongoShippingServiceDocFromDomain(s domain.ShippingService) *MongoShippingServiceDoc {
	return &MongoShippingServiceDoc{
		ID:            s.ID,
		ChannelID:     s.ChannelID,
		Carrier:       s.Carrier,
		ServiceCode:   s.ServiceCode,
		Name:          s.Name,
		Domestic:      s.Domestic,
		International: s.International,
		IsActive:      s.IsActive,
		CreatedAt:     s.CreatedAt,
	}
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoShippingBoxDoc) ToDomain() domain.ShippingBox {
	return domain.ShippingBox{
		ID:            d.ID,
		ChannelID:     d.ChannelID,
		Carrier:       d.Carrier,
		PackageCode:   d.PackageCode,
		Name:          d.Name,
		Domestic:      d.Domestic,
		International: d.International,
		IsActive:      d.IsActive,
		CreatedAt:     d.CreatedAt,
	}
}

// MongoShippingBoxDocFromDomain converts a box for storage
func MongoShippingBoxDocFromDomain(b domain.ShippingBox) *MongoShippingBoxDoc {
	return &MongoShippingBoxDoc{
		ID:            b.ID,
		ChannelID:     b.ChannelID,
		Carrier:       b.Carrier,
		PackageCode:   b.PackageCode,
		Name:          b.Name,
		Domestic:      b.Domestic,
		International: b.International,
		IsActive:      b.IsActive,
		CreatedAt:     b.CreatedAt,
	}
}
