package api

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/infrastructure/pubsub"

	"github.com/go-chi/chi/v5"
)

// syncRequest optionally carries the cursor of a failed run to resume from
type syncRequest struct {
	Resume *domain.SyncCursor `json:"resume,omitempty"`
}

// runSync runs the pipeline and waits for the outcome. A run that started but failed
// reports its result with the status of its error so the caller can resume from the
// returned cursor.
func (h *Handler) runSync(w http.ResponseWriter, r *http.Request) {
	kind, err := domain.ParseEntityKind(chi.URLParam(r, "kind"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req syncRequest
	if r.ContentLength > 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, h.logger, err)
			return
		}
	}

	result, err := h.deps.Syncer.Sync(r.Context(), chi.URLParam(r, "channelId"), kind, req.Resume)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if !result.Success && result.Err != nil {
		status = statusFor(result.Err)
	}
	writeJSON(w, status, result)
}

// syncEvents streams progress events of one channel as server-sent events.
// ?kind= narrows the stream to one entity kind.
func (h *Handler) syncEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, h.logger, fmt.Errorf("streaming unsupported"))
		return
	}

	channelID := chi.URLParam(r, "channelId")
	filter := &pubsub.ProgressFilter{ChannelID: channelID}
	for _, k := range strings.Split(r.URL.Query().Get("kind"), ",") {
		if k == "" {
			continue
		}
		kind, err := domain.ParseEntityKind(k)
		if err != nil {
			writeError(w, h.logger, err)
			return
		}
		filter.Kinds = append(filter.Kinds, kind)
	}

	ctx := r.Context()
	sub := h.deps.Progress.Subscribe(ctx, filter)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	writeEvent(w, "connected", "", fmt.Sprintf(`{"channelId":%q,"subscriptionId":%q}`, channelID, sub.ID))
	flusher.Flush()

	h.logger.Debug().Str("channelId", channelID).Str("subscriptionId", sub.ID).Msg("Progress stream opened")

	heartbeat := time.NewTicker(h.deps.Heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			h.logger.Debug().Str("subscriptionId", sub.ID).Msg("Progress stream closed by client")
			return
		case <-sub.Done:
			return
		case <-heartbeat.C:
			writeEvent(w, "heartbeat", "", fmt.Sprintf(`{"at":%q}`, h.now().UTC().Format(time.RFC3339)))
			flusher.Flush()
		case event, ok := <-sub.Events:
			if !ok {
				return
			}
			data, err := json.Marshal(event)
			if err != nil {
				h.logger.Error().Err(err).Msg("Failed to encode progress event")
				continue
			}
			writeEvent(w, "progress", fmt.Sprintf("%d", event.At.UnixNano()), string(data))
			flusher.Flush()
		}
	}
}

func writeEvent(w io.Writer, event, id, data string) {
	if event != "" {
		fmt.Fprintf(w, "event: %s\n", event)
	}
	if id != "" {
		fmt.Fprintf(w, "id: %s\n", id)
	}
	fmt.Fprintf(w, "data: %s\n\n", data)
}
