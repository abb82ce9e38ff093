package ports

import (
	"context"

	"warehouse-channel-sync/internal/domain"
)

// ChannelRepository persists channel integrations. Reads return (nil, nil) when the
// channel does not exist.
type ChannelRepository interface {
	// Save merges a partial update into the stored channel, creating it when absent
	Save(ctx context.Context, channelID string, patch domain.ChannelPatch) error

	// GetByID reads the full channel from the authoritative store
	GetByID(ctx context.Context, channelID string) (*domain.ChannelIntegration, error)

	// ListByAccount returns every channel of an account, connected or not
	ListByAccount(ctx context.Context, accountID string) ([]domain.ChannelIntegration, error)
}

// WarehouseRegistry is the read-only list of warehouses per store
type WarehouseRegistry interface {
	ListWarehouses(ctx context.Context, storeID string) ([]domain.Warehouse, error)
}

// EntityStore persists synchronized entities. Upserts are keyed by natural key and
// must be idempotent under retry of the same page.
type EntityStore interface {
	FindOrders(ctx context.Context, channelID string, externalIDs []string) ([]domain.Order, error)
	UpsertOrders(ctx context.Context, orders []domain.Order) error
	RedactOrders(ctx context.Context, channelID string, externalIDs []string) (int, error)

	FindProducts(ctx context.Context, channelID string, externalIDs []string) ([]domain.Product, error)
	UpsertProducts(ctx context.Context, products []domain.Product) error

	ListShippingServices(ctx context.Context, channelID string) ([]domain.ShippingService, error)
	UpsertShippingServices(ctx context.Context, services []domain.ShippingService) error

	ListShippingBoxes(ctx context.Context, channelID string) ([]domain.ShippingBox, error)
	UpsertShippingBoxes(ctx context.Context, boxes []domain.ShippingBox) error
}
