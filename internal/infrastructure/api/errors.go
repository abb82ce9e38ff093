package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"warehouse-channel-sync/internal/domain"

	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every failed request
type errorBody struct {
	Error  string             `json:"error"`
	Field  string             `json:"field,omitempty"`
	Origin domain.ErrorOrigin `json:"origin"`
	Remedy string             `json:"remedy"`
}

// statusFor maps the error taxonomy onto HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConfigInvalid), errors.Is(err, domain.ErrVerificationFailed):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSyncInProgress), errors.Is(err, domain.ErrChannelNotConnected):
		return http.StatusConflict
	case errors.Is(err, domain.ErrStateInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrShopMismatch):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrPlatformAuth),
		errors.Is(err, domain.ErrPlatformFetch),
		errors.Is(err, domain.ErrPlatformInvalidResponse):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func newErrorBody(err error) errorBody {
	body := errorBody{
		Error:  err.Error(),
		Origin: domain.OriginOf(err),
		Remedy: domain.Remedy(err),
	}
	var cfgErr *domain.ConfigError
	if errors.As(err, &cfgErr) {
		body.Field = cfgErr.Field
	}
	return body
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Int("status", status).Msg("Request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("Request rejected")
	}
	writeJSON(w, status, newErrorBody(err))
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a bounded JSON body. Malformed input is a configuration error.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return &domain.ConfigError{Reason: "request body is required"}
		}
		return &domain.ConfigError{Reason: fmt.Sprintf("malformed request body: %v", err)}
	}
	return nil
}
