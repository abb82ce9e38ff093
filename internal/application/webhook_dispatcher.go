package application

import (
	"context"
	"fmt"
	"strings"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/ports"

	"github.com/rs/zerolog"
)

// WebhookHandler processes webhook events of the topics it accepts
type WebhookHandler interface {
	CanHandle(topic string) bool
	Handle(ctx context.Context, event *domain.WebhookEvent) error
}

// WebhookDispatcher deduplicates deliveries and routes them to handlers.
// Delivery is at-least-once: a failed event is forgotten so the platform's retry runs again.
type WebhookDispatcher struct {
	channels    ports.ChannelRepository
	handlers    []WebhookHandler
	idempotency ports.IdempotencyStore
	logger      zerolog.Logger
}

// NewWebhookDispatcher creates a new dispatcher
func NewWebhookDispatcher(channels ports.ChannelRepository, idempotency ports.IdempotencyStore, logger zerolog.Logger, handlers ...WebhookHandler) *WebhookDispatcher {
	return &WebhookDispatcher{
		channels:    channels,
		handlers:    handlers,
		idempotency: idempotency,
		logger:      logger,
	}
}

// Register adds handlers after construction
func (d *WebhookDispatcher) Register(handlers ...WebhookHandler) {
	d.handlers = append(d.handlers, handlers...)
}

// Dispatch processes an event once. It returns false when the delivery id was seen before.
// Events whose shop is not the shop connected to the addressed channel are rejected.
func (d *WebhookDispatcher) Dispatch(ctx context.Context, event *domain.WebhookEvent) (bool, error) {
	if err := d.checkShop(ctx, event); err != nil {
		return false, err
	}

	key := "webhook:" + event.ChannelID + ":" + event.ID
	if event.ID != "" {
		first, err := d.idempotency.MarkProcessed(ctx, key)
		if err != nil {
			return false, fmt.Errorf("failed to check webhook delivery: %w", err)
		}
		if !first {
			d.logger.Debug().Str("webhookId", event.ID).Str("topic", event.Topic).Msg("Duplicate webhook delivery ignored")
			return false, nil
		}
	}

	handled := false
	for _, h := range d.handlers {
		if !h.CanHandle(event.Topic) {
			continue
		}
		handled = true
		if err := h.Handle(ctx, event); err != nil {
			d.logger.Error().Err(err).Str("topic", event.Topic).Str("channelId", event.ChannelID).Msg("Webhook handler failed")
			if event.ID != "" {
				if ferr := d.idempotency.Forget(context.WithoutCancel(ctx), key); ferr != nil {
					d.logger.Warn().Err(ferr).Str("webhookId", event.ID).Msg("Failed to forget webhook delivery")
				}
			}
			return true, fmt.Errorf("failed to handle %s webhook: %w", event.Topic, err)
		}
	}

	if !handled {
		d.logger.Info().Str("topic", event.Topic).Str("channelId", event.ChannelID).Msg("No handler for webhook topic")
	}
	return true, nil
}

func (d *WebhookDispatcher) checkShop(ctx context.Context, event *domain.WebhookEvent) error {
	channel, err := d.channels.GetByID(ctx, event.ChannelID)
	if err != nil {
		return fmt.Errorf("failed to read channel: %w", err)
	}
	if channel == nil {
		return fmt.Errorf("channel %s: %w", event.ChannelID, domain.ErrNotFound)
	}
	shopDomain, _ := domain.SwitchPayload(channel.Payload, domain.PayloadCases[string]{
		Ecommerce: func(p domain.EcommercePayload) (string, error) { return p.ShopDomain, nil },
		Shipping:  func(domain.ShippingPayload) (string, error) { return "", nil },
	})
	if shopDomain == "" || !strings.EqualFold(strings.TrimSpace(event.Shop), shopDomain) {
		d.logger.Warn().
			Str("channelId", event.ChannelID).
			Str("shop", event.Shop).
			Str("topic", event.Topic).
			Msg("Webhook shop does not match channel")
		return fmt.Errorf("channel %s shop %q: %w", event.ChannelID, event.Shop, domain.ErrShopMismatch)
	}
	return nil
}
