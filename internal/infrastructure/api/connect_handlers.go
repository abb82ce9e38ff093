package api

import (
	"net/http"
	"net/url"

	"warehouse-channel-sync/internal/application"

	"github.com/go-chi/chi/v5"
)

// connectResponse is the connect outcome with the error taxonomy fields when it failed
type connectResponse struct {
	*application.ConnectOutcome
	*errorBody
}

func (h *Handler) connect(w http.ResponseWriter, r *http.Request) {
	var input application.ConnectInput
	if err := decodeJSON(w, r, &input); err != nil {
		writeError(w, h.logger, err)
		return
	}
	if channelID := chi.URLParam(r, "channelId"); channelID != "" {
		input.ChannelID = channelID
	}

	out := h.deps.Connector.Connect(r.Context(), input)
	if out.Err != nil {
		body := newErrorBody(out.Err)
		writeJSON(w, statusFor(out.Err), connectResponse{ConnectOutcome: out, errorBody: &body})
		return
	}
	writeJSON(w, http.StatusOK, connectResponse{ConnectOutcome: out})
}

// authCallback completes the platform authorization. With a return URL the user is
// redirected back to the frontend; otherwise the result is returned as JSON.
func (h *Handler) authCallback(w http.ResponseWriter, r *http.Request) {
	result, err := h.deps.Connector.CompleteAuthorization(r.Context(), r.URL)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	if result.ReturnURL == "" {
		writeJSON(w, http.StatusOK, result)
		return
	}
	target, err := url.Parse(result.ReturnURL)
	if err != nil {
		writeJSON(w, http.StatusOK, result)
		return
	}
	q := target.Query()
	q.Set("channel_oauth", "success")
	q.Set("channel_id", result.ChannelID)
	target.RawQuery = q.Encode()

	h.logger.Info().
		Str("channelId", result.ChannelID).
		Str("returnUrl", target.String()).
		Msg("Redirecting to frontend after successful authorization")
	http.Redirect(w, r, target.String(), http.StatusFound)
}
