package api

import (
	"net/http"

	"warehouse-channel-sync/internal/application"
	"warehouse-channel-sync/internal/domain"

	"github.com/go-chi/chi/v5"
)

func (h *Handler) getChannel(w http.ResponseWriter, r *http.Request) {
	channel, err := h.deps.Channels.GetChannel(r.Context(), chi.URLParam(r, "channelId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toChannelView(channel))
}

func (h *Handler) listChannels(w http.ResponseWriter, r *http.Request) {
	channels, err := h.deps.Channels.ListChannels(r.Context(), chi.URLParam(r, "accountId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	views := make([]channelView, 0, len(channels))
	for i := range channels {
		views = append(views, toChannelView(&channels[i]))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"channels": views})
}

func (h *Handler) saveRouting(w http.ResponseWriter, r *http.Request) {
	var input application.RoutingInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, h.logger, err)
		return
	}
	channel, err := h.deps.Channels.SaveRouting(r.Context(), chi.URLParam(r, "channelId"), input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toChannelView(channel))
}

func (h *Handler) saveInventory(w http.ResponseWriter, r *http.Request) {
	var settings domain.InventorySettings
	if err := decodeJSON(w, r, &settings); err != nil {
		writeError(w, h.logger, err)
		return
	}
	warnings, err := h.deps.Channels.SaveInventorySettings(r.Context(), chi.URLParam(r, "channelId"), settings)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toConflictsView(warnings))
}

func (h *Handler) setEnabled(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if body.Enabled == nil {
		writeError(w, h.logger, &domain.ConfigError{Field: "enabled", Reason: "is required"})
		return
	}
	warnings, err := h.deps.Channels.SetEnabled(r.Context(), chi.URLParam(r, "channelId"), *body.Enabled)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toConflictsView(warnings))
}

func (h *Handler) conflicts(w http.ResponseWriter, r *http.Request) {
	warnings, err := h.deps.Channels.Conflicts(r.Context(), chi.URLParam(r, "channelId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, toConflictsView(warnings))
}

func (h *Handler) removeProductDestination(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.deps.Channels.RemoveProductDestination(r.Context(), chi.URLParam(r, "channelId"), chi.URLParam(r, "warehouseId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cfg)
}

func (h *Handler) testConnection(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Channels.TestConnection(r.Context(), chi.URLParam(r, "channelId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) disconnect(w http.ResponseWriter, r *http.Request) {
	channelID := chi.URLParam(r, "channelId")
	if err := h.deps.Channels.Disconnect(r.Context(), channelID); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"channelId": channelID, "status": string(domain.ChannelStatusDisconnected)})
}

func (h *Handler) connectCarrier(w http.ResponseWriter, r *http.Request) {
	var input application.CarrierInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, h.logger, err)
		return
	}
	channel, err := h.deps.Channels.ConnectCarrier(r.Context(), input)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChannelView(channel))
}

func (h *Handler) refreshCatalog(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Catalog.Refresh(r.Context(), chi.URLParam(r, "channelId"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
