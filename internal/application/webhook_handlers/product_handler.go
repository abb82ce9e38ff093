package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"warehouse-channel-sync/internal/application"
	"warehouse-channel-sync/internal/domain"

	"github.com/rs/zerolog"
)

// ProductHandler turns product notifications into an incremental products sync
type ProductHandler struct {
	trigger application.SyncTrigger
	logger  zerolog.Logger
}

// NewProductHandler creates a new product webhook handler
func NewProductHandler(trigger application.SyncTrigger, logger zerolog.Logger) *ProductHandler {
	return &ProductHandler{
		trigger: trigger,
		logger:  logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *ProductHandler) CanHandle(topic string) bool {
	return topic == "products/create" ||
		topic == "products/update" ||
		topic == "products/delete"
}

// Handle processes a product webhook event
func (h *ProductHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var product struct {
		ID    int64  `json:"id"`
		Title string `json:"title"`
	}
	if err := json.Unmarshal(event.Payload, &product); err != nil {
		return fmt.Errorf("failed to parse product webhook payload: %w", err)
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Str("channelId", event.ChannelID).
		Int64("productId", product.ID).
		Str("title", product.Title).
		Msg("Processing product webhook event")

	// Deletions are not propagated: the product record is kept for order history
	if event.Topic == "products/delete" {
		return nil
	}

	h.trigger.Start(ctx, event.ChannelID, domain.EntityProducts)
	return nil
}
