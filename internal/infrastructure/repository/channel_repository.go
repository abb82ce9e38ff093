package repository

import (
	"context"
	"fmt"
	"time"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/infrastructure/repository/entity"
	"warehouse-channel-sync/internal/ports"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoChannelRepository implements ChannelRepository using MongoDB
type MongoChannelRepository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewMongoChannelRepository creates a new MongoDB channel repository
func NewMongoChannelRepository(db *mongo.Database) *MongoChannelRepository {
	return &MongoChannelRepository{
		collection: db.Collection("channels"),
		now:        time.Now,
	}
}

// EnsureIndexes creates the lookup indexes used by the repository
func (r *MongoChannelRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "accountId", Value: 1}}},
		{Keys: bson.D{{Key: "payload.shopDomain", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create channel indexes: %w", err)
	}
	return nil
}

// Save merges a partial update into the stored channel, creating it when absent
func (r *MongoChannelRepository) Save(ctx context.Context, channelID string, patch domain.ChannelPatch) error {
	now := r.now()
	set := channelPatchToSet(patch)
	set["updatedAt"] = now

	update := bson.M{
		"$set":         set,
		"$setOnInsert": bson.M{"createdAt": now},
	}
	opts := options.Update().SetUpsert(true)

	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": channelID}, update, opts)
	if err != nil {
		return fmt.Errorf("failed to save channel: %w", err)
	}
	return nil
}

// GetByID retrieves a channel by its ID
func (r *MongoChannelRepository) GetByID(ctx context.Context, channelID string) (*domain.ChannelIntegration, error) {
	var doc entity.MongoChannelDoc
	err := r.collection.FindOne(ctx, bson.M{"_id": channelID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	return doc.ToDomain(), nil
}

// ListByAccount retrieves every channel of an account
func (r *MongoChannelRepository) ListByAccount(ctx context.Context, accountID string) ([]domain.ChannelIntegration, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"accountId": accountID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	defer cursor.Close(ctx)

	channels := []domain.ChannelIntegration{}
	for cursor.Next(ctx) {
		var doc entity.MongoChannelDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode channel: %w", err)
		}
		channels = append(channels, *doc.ToDomain())
	}

	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("cursor error: %w", err)
	}

	return channels, nil
}

// channelPatchToSet builds the $set document of a patch. Watermarks are set per kind
// so a run of one kind never clobbers another kind's watermark.
func channelPatchToSet(p domain.ChannelPatch) bson.M {
	set := bson.M{}
	if p.AccountID != nil {
		set["accountId"] = *p.AccountID
	}
	if p.StoreID != nil {
		set["storeId"] = *p.StoreID
	}
	if p.Name != nil {
		set["name"] = *p.Name
	}
	if p.Payload != nil {
		if doc := entity.MongoPayloadDocFromDomain(p.Payload); doc != nil {
			set["payload"] = doc
		}
	}
	if p.Status != nil {
		set["status"] = string(*p.Status)
	}
	if p.Enabled != nil {
		set["enabled"] = *p.Enabled
	}
	if p.ConnectedAt != nil {
		set["connectedAt"] = *p.ConnectedAt
	}
	if p.LastSyncAt != nil {
		set["lastSyncAt"] = *p.LastSyncAt
	}
	for kind, t := range p.Watermarks {
		set["watermarks."+string(kind)] = t
	}
	if p.Credentials != nil {
		set["credentials"] = *p.Credentials
	}
	if p.Routing != nil {
		set["routing"] = entity.MongoRoutingDocFromDomain(*p.Routing)
	}
	if p.ProductSync != nil {
		set["productSync"] = entity.MongoProductSyncDocFromDomain(*p.ProductSync)
	}
	if p.Inventory != nil {
		inv := p.Inventory.Normalize()
		set["inventory"] = entity.MongoInventoryDoc{Enabled: inv.Enabled, Direction: string(inv.Direction)}
	}
	return set
}

var _ ports.ChannelRepository = (*MongoChannelRepository)(nil)
