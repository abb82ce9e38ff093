package api

import (
	"io"
	"net/http"

	"warehouse-channel-sync/internal/domain"

	"github.com/go-chi/chi/v5"
)

// shopifyWebhook verifies and dispatches one delivery. A non-2xx answer makes the
// platform retry, so handler failures return 500 and duplicates return 200.
func (h *Handler) shopifyWebhook(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelId")
	topic := r.Header.Get("X-Shopify-Topic")
	if topic == "" {
		h.logger.Warn().Str("channelId", channelID).Msg("Missing X-Shopify-Topic header")
		http.Error(w, "Missing X-Shopify-Topic header", http.StatusBadRequest)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if !h.deps.Verifier.VerifyWebhook(r) {
		h.logger.Warn().Str("channelId", channelID).Str("topic", topic).Msg("Webhook signature verification failed")
		http.Error(w, "Invalid signature", http.StatusUnauthorized)
		return
	}

	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to read webhook payload")
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	defer r.Body.Close()

	event := &domain.WebhookEvent{
		ID:         r.Header.Get("X-Shopify-Webhook-Id"),
		ChannelID:  channelID,
		Topic:      topic,
		Shop:       r.Header.Get("X-Shopify-Shop-Domain"),
		Payload:    payload,
		ReceivedAt: h.now(),
	}

	first, err := h.deps.Webhooks.Dispatch(r.Context(), event)
	if err != nil {
		status := statusFor(err)
		if status < http.StatusInternalServerError {
			h.logger.Warn().Err(err).Str("topic", topic).Str("channelId", channelID).Msg("Webhook event rejected")
			http.Error(w, http.StatusText(status), status)
			return
		}
		h.logger.Error().
			Err(err).
			Str("topic", topic).
			Str("channelId", channelID).
			Msg("Failed to dispatch webhook event")
		http.Error(w, "Failed to process webhook event", http.StatusInternalServerError)
		return
	}

	received := "true"
	if !first {
		received = "duplicate"
	}
	writeJSON(w, http.StatusOK, map[string]string{"received": received})
}
