package webhook_handlers

import (
	"context"
	"encoding/json"
	"fmt"

	"warehouse-channel-sync/internal/domain"

	"github.com/rs/zerolog"
)

// ChannelDisconnector logically deletes a channel
type ChannelDisconnector interface {
	Disconnect(ctx context.Context, channelID string) error
}

// AppUninstalledHandler handles app uninstalled webhook events
type AppUninstalledHandler struct {
	channels ChannelDisconnector
	logger   zerolog.Logger
}

// NewAppUninstalledHandler creates a new app uninstalled webhook handler
func NewAppUninstalledHandler(channels ChannelDisconnector, logger zerolog.Logger) *AppUninstalledHandler {
	return &AppUninstalledHandler{
		channels: channels,
		logger:   logger,
	}
}

// CanHandle returns true if this handler can process the given topic
func (h *AppUninstalledHandler) CanHandle(topic string) bool {
	return topic == "app/uninstalled"
}

// Handle disconnects the channel. Its credentials are revoked on the platform side
// already; the channel record stays for the orders that reference it.
func (h *AppUninstalledHandler) Handle(ctx context.Context, event *domain.WebhookEvent) error {
	var shopData struct {
		Domain          string `json:"domain"`
		MyshopifyDomain string `json:"myshopify_domain"`
	}
	if err := json.Unmarshal(event.Payload, &shopData); err != nil {
		return fmt.Errorf("failed to parse app uninstalled webhook payload: %w", err)
	}

	shopDomain := event.Shop
	if shopDomain == "" {
		shopDomain = shopData.MyshopifyDomain
	}
	if shopDomain == "" {
		shopDomain = shopData.Domain
	}

	h.logger.Info().
		Str("topic", event.Topic).
		Str("shop", shopDomain).
		Str("channelId", event.ChannelID).
		Msg("Processing app uninstalled webhook event")

	if err := h.channels.Disconnect(ctx, event.ChannelID); err != nil {
		return fmt.Errorf("failed to disconnect channel: %w", err)
	}

	h.logger.Info().
		Str("shop", shopDomain).
		Str("channelId", event.ChannelID).
		Msg("App uninstalled - channel disconnected")
	return nil
}
