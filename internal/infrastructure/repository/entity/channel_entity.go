package entity

import (
	"time"

	"warehouse-channel-sync/internal/domain"
)

// MongoPayloadDoc flattens the tagged platform payload. Kind selects the variant.
type MongoPayloadDoc struct {
	Kind       string   `bson:"kind"`
	Platform   string   `bson:"platform,omitempty"`
	ShopDomain string   `bson:"shopDomain,omitempty"`
	Scopes     []string `bson:"scopes,omitempty"`
	Carrier    string   `bson:"carrier,omitempty"`
	AccountRef string   `bson:"accountRef,omitempty"`
}

// MongoAssignmentDoc is a region assignment
type MongoAssignmentDoc struct {
	WarehouseID string   `bson:"warehouseId"`
	Regions     []string `bson:"regions"`
	IsActive    bool     `bson:"isActive"`
}

// MongoRoutingDoc is the routing configuration of a channel
type MongoRoutingDoc struct {
	Mode                string               `bson:"mode"`
	PrimaryWarehouseID  string               `bson:"primaryWarehouseId"`
	FallbackWarehouseID string               `bson:"fallbackWarehouseId,omitempty"`
	Assignments         []MongoAssignmentDoc `bson:"assignments,omitempty"`
}

// MongoProductSyncDoc is the product import configuration of a channel
type MongoProductSyncDoc struct {
	Mode                 string   `bson:"mode"`
	SelectedWarehouseIDs []string `bson:"selectedWarehouseIds,omitempty"`
}

// MongoInventoryDoc holds the inventory sync settings
type MongoInventoryDoc struct {
	Enabled   bool   `bson:"enabled"`
	Direction string `bson:"direction"`
}

// MongoChannelDoc represents a channel integration in MongoDB
type MongoChannelDoc struct {
	ID          string               `bson:"_id"`
	AccountID   string               `bson:"accountId"`
	StoreID     string               `bson:"storeId"`
	Name        string               `bson:"name"`
	Payload     *MongoPayloadDoc     `bson:"payload,omitempty"`
	Status      string               `bson:"status"`
	Enabled     bool                 `bson:"enabled"`
	ConnectedAt *time.Time           `bson:"connectedAt,omitempty"`
	LastSyncAt  *time.Time           `bson:"lastSyncAt,omitempty"`
	Watermarks  map[string]time.Time `bson:"watermarks,omitempty"`
	Credentials []byte               `bson:"credentials,omitempty"`
	Routing     MongoRoutingDoc      `bson:"routing"`
	ProductSync MongoProductSyncDoc  `bson:"productSync"`
	Inventory   MongoInventoryDoc    `bson:"inventory"`
	CreatedAt   time.Time            `bson:"createdAt"`
	UpdatedAt   time.Time            `bson:"updatedAt"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoChannelDoc) ToDomain() *domain.ChannelIntegration {
	ch := &domain.ChannelIntegration{
		ID:          d.ID,
		AccountID:   d.AccountID,
		StoreID:     d.StoreID,
		Name:        d.Name,
		Payload:     d.Payload.ToDomain(),
		Status:      domain.ChannelStatus(d.Status),
		Enabled:     d.Enabled,
		ConnectedAt: d.ConnectedAt,
		LastSyncAt:  d.LastSyncAt,
		Credentials: d.Credentials,
		Routing:     d.Routing.ToDomain(),
		ProductSync: d.ProductSync.ToDomain(),
		Inventory: domain.InventorySettings{
			Enabled:   d.Inventory.Enabled,
			Direction: domain.SyncDirection(d.Inventory.Direction),
		},
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.Watermarks != nil {
		ch.Watermarks = make(map[domain.EntityKind]time.Time, len(d.Watermarks))
		for k, v := range d.Watermarks {
			ch.Watermarks[domain.EntityKind(k)] = v
		}
	}
	return ch
}

// ToDomain converts a stored payload. Unknown kinds yield nil, which every
// payload switch rejects.
func (d *MongoPayloadDoc) ToDomain() domain.PlatformPayload {
	if d == nil {
		return nil
	}
	switch domain.PlatformKind(d.Kind) {
	case domain.PlatformKindEcommerce:
		return domain.EcommercePayload{Platform: d.Platform, ShopDomain: d.ShopDomain, Scopes: d.Scopes}
	case domain.PlatformKindShipping:
		return domain.ShippingPayload{Carrier: d.Carrier, AccountRef: d.AccountRef}
	}
	return nil
}

// ToDomain converts a stored routing config
func (d MongoRoutingDoc) ToDomain() domain.RoutingConfig {
	cfg := domain.RoutingConfig{
		Mode:                domain.RoutingMode(d.Mode),
		PrimaryWarehouseID:  d.PrimaryWarehouseID,
		FallbackWarehouseID: d.FallbackWarehouseID,
	}
	for _, a := range d.Assignments {
		cfg.Assignments = append(cfg.Assignments, domain.RegionAssignment{
			WarehouseID: a.WarehouseID,
			Regions:     a.Regions,
			IsActive:    a.IsActive,
		})
	}
	return cfg
}

// ToDomain converts a stored product sync config
func (d MongoProductSyncDoc) ToDomain() domain.ProductSyncConfig {
	return domain.ProductSyncConfig{
		Mode:                 domain.ProductSyncMode(d.Mode),
		SelectedWarehouseIDs: d.SelectedWarehouseIDs,
	}
}

// MongoPayloadDocFromDomain converts a payload for storage
func MongoPayloadDocFromDomain(p domain.PlatformPayload) *MongoPayloadDoc {
	doc, err := domain.SwitchPayload(p, domain.PayloadCases[*MongoPayloadDoc]{
		Ecommerce: func(e domain.EcommercePayload) (*MongoPayloadDoc, error) {
			return &MongoPayloadDoc{
				Kind:       string(domain.PlatformKindEcommerce),
				Platform:   e.Platform,
				ShopDomain: e.ShopDomain,
				Scopes:     e.Scopes,
			}, nil
		},
		Shipping: func(s domain.ShippingPayload) (*MongoPayloadDoc, error) {
			return &MongoPayloadDoc{
				Kind:       string(domain.PlatformKindShipping),
				Carrier:    s.Carrier,
				AccountRef: s.AccountRef,
			}, nil
		},
	})
	if err != nil {
		return nil
	}
	return doc
}

// MongoRoutingDocFromDomain converts a routing config for storage
func MongoRoutingDocFromDomain(cfg domain.RoutingConfig) MongoRoutingDoc {
	doc := MongoRoutingDoc{
		Mode:                string(cfg.Mode),
		PrimaryWarehouseID:  cfg.PrimaryWarehouseID,
		FallbackWarehouseID: cfg.FallbackWarehouseID,
	}
	for _, a := range cfg.Assignments {
		doc.Assignments = append(doc.Assignments, MongoAssignmentDoc{
			WarehouseID: a.WarehouseID,
			Regions:     a.Regions,
			IsActive:    a.IsActive,
		})
	}
	return doc
}

// MongoProductSyncDocFromDomain converts a product sync config for storage
func MongoProductSyncDocFromDomain(cfg domain.ProductSyncConfig) MongoProductSyncDoc {
	return MongoProductSyncDoc{
		Mode:                 string(cfg.Mode),
		SelectedWarehouseIDs: cfg.SelectedWarehouseIDs,
	}
}

// MongoWarehouseDoc represents a warehouse registry entry
type MongoWarehouseDoc struct {
	ID         string `bson:"_id"`
	StoreID    string `bson:"storeId"`
	Name       string `bson:"name"`
	RegionCode string `bson:"regionCode,omitempty"`
}

// ToDomain converts the MongoDB document to a domain entity
func (d *MongoWarehouseDoc) ToDomain() domain.Warehouse {
	return domain.Warehouse{
		ID:         d.ID,
		StoreID:    d.StoreID,
		Name:       d.Name,
		RegionCode: d.RegionCode,
	}
}
