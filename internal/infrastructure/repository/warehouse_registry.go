package repository

import (
	"context"
	"fmt"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/infrastructure/repository/entity"
	"warehouse-channel-sync/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoWarehouseRegistry reads the warehouses collection owned by the inventory service.
// It never writes.
type MongoWarehouseRegistry struct {
	collection *mongo.Collection
}

// NewMongoWarehouseRegistry creates a new warehouse registry
func NewMongoWarehouseRegistry(db *mongo.Database) *MongoWarehouseRegistry {
	return &MongoWarehouseRegistry{
		collection: db.Collection("warehouses"),
	}
}

// ListWarehouses returns the warehouses of a store ordered by name
func (r *MongoWarehouseRegistry) ListWarehouses(ctx context.Context, storeID string) ([]domain.Warehouse, error) {
	opts := options.Find().SetSort(bson.D{{Key: "name", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"storeId": storeID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list warehouses: %w", err)
	}
	defer cursor.Close(ctx)

	warehouses := []domain.Warehouse{}
	for cursor.Next(ctx) {
		var doc entity.MongoWarehouseDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode warehouse: %w", err)
		}
		warehouses = append(warehouses, doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return warehouses, nil
}

var _ ports.WarehouseRegistry = (*MongoWarehouseRegistry)(nil)
