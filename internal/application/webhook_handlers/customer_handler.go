package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"warehouse-channel-sync/internal/domain"

	"github.com/rs/zerolog"
)

// OrderRedactor scrubs customer data from stored orders
type OrderRedactor interface {
	RedactOrders(ctx context.Context, channelID string, externalIDs []string) (int, error)
}

// CustomerHandler handles the mandatory customer privacy webhooks
type CustomerHandler struct {
	orders OrderRedactor
	logger zerolog.Logger
}

// NewCustomerHandler creates a new customer webhook handler
func NewCustomerHandler(orders OrderRedactor, logger zerolog.Logger) *CustomerHandler {
	return &CustomerHandler{
		orders: orders,
		logger: logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *CustomerHandler) CanHandle(topic string) bool {
	return topic == "customers/redact" ||
		topic == "customers/data_request" ||
		topic == "shop/redact"
}

// Handle processes a customer privacy webhook event
func (h *CustomerHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var payload struct {
		ShopDomain string `json:"shop_domain"`
		Customer   struct {
			ID int64 `json:"id"`
		} `json:"customer"`
		OrdersToRedact  []int64 `json:"orders_to_redact"`
		OrdersRequested []int64 `json:"orders_requested"`
	}
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return fmt.Errorf("failed to parse customer webhook payload: %w", err)
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", payload.ShopDomain).
		Str("channelId", event.ChannelID).
		Int64("customerId", payload.Customer.ID).
		Msg("Processing customer privacy webhook event")

	switch event.Topic {
	case "customers/redact":
		ids := make([]string, 0, len(payload.OrdersToRedact))
		for _, id := range payload.OrdersToRedact {
			ids = append(ids, OrderGID(id))
		}
		if len(ids) == 0 {
			return nil
		}
		n, err := h.orders.RedactOrders(ctx, event.ChannelID, ids)
		if err != nil {
			return fmt.Errorf("failed to redact orders: %w", err)
		}
		h.logger.Info().Str("channelId", event.ChannelID).Int("orders", n).Msg("Redacted customer data")
	case "customers/data_request":
		h.logger.Info().
			Str("channelId", event.ChannelID).
			Int("orders", len(payload.OrdersRequested)).
			Msg("Customer data request acknowledged")
	case "shop/redact":
		h.logger.Info().Str("channelId", event.ChannelID).Msg("Shop redact acknowledged")
	}
	return nil
}

// OrderGID converts a numeric order id from a webhook payload into the GraphQL id
// stored as the order's external id.
func OrderGID(id int64) string {
	return "gid://shopify/Order/" + strconv.FormatInt(id, 10)
}
