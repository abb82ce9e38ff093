package repository

import (
	"context"
	"fmt"
	"time"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/infrastructure/repository/entity"
	"warehouse-channel-sync/internal/ports"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoEntityStore implements EntityStore using MongoDB
type MongoEntityStore struct {
	ordersCollection   *mongo.Collection
	productsCollection *mongo.Collection
	servicesCollection *mongo.Collection
	boxesCollection    *mongo.Collection
	now                func() time.Time
}

// NewMongoEntityStore creates a new MongoDB entity store
func NewMongoEntityStore(db *mongo.Database) *MongoEntityStore {
	return &MongoEntityStore{
		ordersCollection:   db.Collection("orders"),
		productsCollection: db.Collection("products"),
		servicesCollection: db.Collection("shipping_services"),
		boxesCollection:    db.Collection("shipping_boxes"),
		now:                time.Now,
	}
}

// EnsureIndexes creates the natural-key unique indexes the upserts rely on
func (s *MongoEntityStore) EnsureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)
	indexes := []struct {
		collection *mongo.Collection
		keys       bson.D
	}{
		{s.ordersCollection, bson.D{{Key: "channelId", Value: 1}, {Key: "externalId", Value: 1}}},
		{s.productsCollection, bson.D{{Key: "channelId", Value: 1}, {Key: "externalId", Value: 1}}},
		{s.servicesCollection, bson.D{{Key: "channelId", Value: 1}, {Key: "carrier", Value: 1}, {Key: "serviceCode", Value: 1}}},
		{s.boxesCollection, bson.D{{Key: "channelId", Value: 1}, {Key: "carrier", Value: 1}, {Key: "packageCode", Value: 1}}},
	}
	for _, idx := range indexes {
		if _, err := idx.collection.Indexes().CreateOne(ctx, mongo.IndexModel{Keys: idx.keys, Options: unique}); err != nil {
			return fmt.Errorf("failed to create index on %s: %w", idx.collection.Name(), err)
		}
	}
	return nil
}

// FindOrders retrieves the stored orders of a channel matching the external IDs
func (s *MongoEntityStore) FindOrders(ctx context.Context, channelID string, externalIDs []string) ([]domain.Order, error) {
	if len(externalIDs) == 0 {
		return []domain.Order{}, nil
	}
	cursor, err := s.ordersCollection.Find(ctx, byExternalIDs(channelID, externalIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to find orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []domain.Order{}
	for cursor.Next(ctx) {
		var doc entity.MongoOrderDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode order: %w", err)
		}
		orders = append(orders, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return orders, nil
}

// UpsertOrders writes orders keyed by channel and external ID
func (s *MongoEntityStore) UpsertOrders(ctx context.Context, orders []domain.Order) error {
	models := make([]mongo.WriteModel, 0, len(orders))
	for _, o := range orders {
		doc := entity.MongoOrderDocFromDomain(o)
		filter := bson.M{"channelId": o.ChannelID, "externalId": o.ExternalID}
		model, err := s.upsertModel(filter, doc, o.ID, o.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to encode order %s: %w", o.ExternalID, err)
		}
		models = append(models, model)
	}
	return s.bulkWrite(ctx, s.ordersCollection, models, "orders")
}

// RedactOrders clears customer contact data and returns the number of orders changed
func (s *MongoEntityStore) RedactOrders(ctx context.Context, channelID string, externalIDs []string) (int, error) {
	if len(externalIDs) == 0 {
		return 0, nil
	}
	update := bson.M{
		"$unset": bson.M{"email": ""},
		"$set":   bson.M{"updatedAt": s.now()},
	}
	filter := byExternalIDs(channelID, externalIDs)
	filter["email"] = bson.M{"$exists": true}

	result, err := s.ordersCollection.UpdateMany(ctx, filter, update)
	if err != nil {
		return 0, fmt.Errorf("failed to redact orders: %w", err)
	}
	return int(result.ModifiedCount), nil
}

// FindProducts retrieves the stored products of a channel matching the external IDs
func (s *MongoEntityStore) FindProducts(ctx context.Context, channelID string, externalIDs []string) ([]domain.Product, error) {
	if len(externalIDs) == 0 {
		return []domain.Product{}, nil
	}
	cursor, err := s.productsCollection.Find(ctx, byExternalIDs(channelID, externalIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to find products: %w", err)
	}
	defer cursor.Close(ctx)

	products := []domain.Product{}
	for cursor.Next(ctx) {
		var doc entity.MongoProductDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode product: %w", err)
		}
		products = append(products, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return products, nil
}

// UpsertProducts writes products keyed by channel and external ID
func (s *MongoEntityStore) UpsertProducts(ctx context.Context, products []domain.Product) error {
	models := make([]mongo.WriteModel, 0, len(products))
	for _, p := range products {
		doc := entity.MongoProductDocFromDomain(p)
		filter := bson.M{"channelId": p.ChannelID, "externalId": p.ExternalID}
		model, err := s.upsertModel(filter, doc, p.ID, p.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to encode product %s: %w", p.ExternalID, err)
		}
		models = append(models, model)
	}
	return s.bulkWrite(ctx, s.productsCollection, models, "products")
}

// ListShippingServices retrieves the carrier services of a channel
func (s *MongoEntityStore) ListShippingServices(ctx context.Context, channelID string) ([]domain.ShippingService, error) {
	cursor, err := s.servicesCollection.Find(ctx, bson.M{"channelId": channelID})
	if err != nil {
		return nil, fmt.Errorf("failed to list shipping services: %w", err)
	}
	defer cursor.Close(ctx)

	services := []domain.ShippingService{}
	for cursor.Next(ctx) {
		var doc entity.MongoShippingServiceDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode shipping service: %w", err)
		}
		services = append(services, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return services, nil
}

// UpsertShippingServices writes services keyed by channel, carrier and service code
func (s *MongoEntityStore) UpsertShippingServices(ctx context.Context, services []domain.ShippingService) error {
	models := make([]mongo.WriteModel, 0, len(services))
	for _, svc := range services {
		doc := entity.MongoShippingServiceDocFromDomain(svc)
		filter := bson.M{"channelId": svc.ChannelID, "carrier": svc.Carrier, "serviceCode": svc.ServiceCode}
		model, err := s.upsertModel(filter, doc, svc.ID, svc.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to encode shipping service %s: %w", svc.ServiceCode, err)
		}
		models = append(models, model)
	}
	return s.bulkWrite(ctx, s.servicesCollection, models, "shipping services")
}

// ListShippingBoxes retrieves the carrier package types of a channel
func (s *MongoEntityStore) ListShippingBoxes(ctx context.Context, channelID string) ([]domain.ShippingBox, error) {
	cursor, err := s.boxesCollection.Find(ctx, bson.M{"channelId": channelID})
	if err != nil {
		return nil, fmt.Errorf("failed to list shipping boxes: %w", err)
	}
	defer cursor.Close(ctx)

	boxes := []domain.ShippingBox{}
	for cursor.Next(ctx) {
		var doc entity.MongoShippingBoxDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode shipping box: %w", err)
		}
		boxes = append(boxes, doc.ToDomain())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}
	return boxes, nil
}

// UpsertShippingBoxes writes boxes keyed by channel, carrier and package code
func (s *MongoEntityStore) UpsertShippingBoxes(ctx context.Context, boxes []domain.ShippingBox) error {
	models := make([]mongo.WriteModel, 0, len(boxes))
	for _, b := range boxes {
		doc := entity.MongoShippingBoxDocFromDomain(b)
		filter := bson.M{"channelId": b.ChannelID, "carrier": b.Carrier, "packageCode": b.PackageCode}
		model, err := s.upsertModel(filter, doc, b.ID, b.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to encode shipping box %s: %w", b.PackageCode, err)
		}
		models = append(models, model)
	}
	return s.bulkWrite(ctx, s.boxesCollection, models, "shipping boxes")
}

// upsertModel sets every field of doc except the identity and creation time, which
// are only written on insert. Replaying the same page leaves one document per key.
func (s *MongoEntityStore) upsertModel(filter bson.M, doc interface{}, id string, createdAt time.Time) (mongo.WriteModel, error) {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var set bson.M
	if err := bson.Unmarshal(raw, &set); err != nil {
		return nil, err
	}
	delete(set, "_id")
	delete(set, "createdAt")

	now := s.now()
	set["updatedAt"] = now
	if id == "" {
		id = uuid.NewString()
	}
	if createdAt.IsZero() {
		createdAt = now
	}

	return mongo.NewUpdateOneModel().
		SetFilter(filter).
		SetUpdate(bson.M{
			"$set":         set,
			"$setOnInsert": bson.M{"_id": id, "createdAt": createdAt},
		}).
		SetUpsert(true), nil
}

func (s *MongoEntityStore) bulkWrite(ctx context.Context, collection *mongo.Collection, models []mongo.WriteModel, what string) error {
	if len(models) == 0 {
		return nil
	}
	_, err := collection.BulkWrite(ctx, models, options.BulkWrite().SetOrdered(false))
	if err != nil {
		return fmt.Errorf("failed to upsert %s: %w", what, err)
	}
	return nil
}

func byExternalIDs(channelID string, externalIDs []string) bson.M {
	return bson.M{
		"channelId":  channelID,
		"externalId": bson.M{"$in": externalIDs},
	}
}

var _ ports.EntityStore = (*MongoEntityStore)(nil)
