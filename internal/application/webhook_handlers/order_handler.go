package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"warehouse-channel-sync/internal/application"
	"warehouse-channel-sync/internal/domain"

	"github.com/rs/zerolog"
)

// OrderHandler turns order notifications into an incremental orders sync
type OrderHandler struct {
	trigger application.SyncTrigger
	logger  zerolog.Logger
}

// NewOrderHandler creates a new order webhook handler
func NewOrderHandler(trigger application.SyncTrigger, logger zerolog.Logger) *OrderHandler {
	return &OrderHandler{
		trigger: trigger,
		logger:  logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *OrderHandler) CanHandle(topic string) bool {
	return topic == "orders/create" ||
		topic == "orders/updated" ||
		topic == "orders/cancelled" ||
		topic == "orders/paid" ||
		topic == "orders/fulfilled" ||
		topic == "orders/partially_fulfilled"
}

// Handle processes an order webhook event. The payload is not merged directly: the
// incremental run picks the change up through the updated_at watermark, so routing and
// merge rules stay in one place.
func (h *OrderHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var order struct {
		ID              int64  `json:"id"`
		Name            string `json:"name"`
		FinancialStatus string `json:"financial_status"`
	}
	if err := json.Unmarshal(event.Payload, &order); err != nil {
		return fmt.Errorf("failed to parse order webhook payload: %w", err)
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", event.Shop).
		Str("channelId", event.ChannelID).
		Int64("orderId", order.ID).
		Str("orderName", order.Name).
		Str("financialStatus", order.FinancialStatus).
		Msg("Processing order webhook event")

	h.trigger.Start(ctx, event.ChannelID, domain.EntityOrders)
	return nil
}
