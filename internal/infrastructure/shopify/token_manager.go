package shopify

import (
	"fmt"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/infrastructure/encryption"
	"warehouse-channel-sync/internal/ports"

	"github.com/rs/zerolog"
)

// TokenManager opens the access token sealed in a channel's credential blob.
// Shopify offline tokens do not expire unless revoked, so there is nothing to refresh.
type TokenManager struct {
	sealer ports.CredentialSealer
	logger zerolog.Logger
}

// NewTokenManager creates a new token manager
func NewTokenManager(sealer ports.CredentialSealer, logger zerolog.Logger) *TokenManager {
	return &TokenManager{
		sealer: sealer,
		logger: logger,
	}
}

// AccessToken returns the plaintext token or ErrChannelNotConnected when there is none
func (tm *TokenManager) AccessToken(sealed []byte) (string, error) {
	creds, err := encryption.OpenCredentials(tm.sealer, sealed)
	if err != nil {
		return "", err
	}
	if creds.AccessToken == "" {
		tm.logger.Warn().Msg("Credential blob carries no access token")
		return "", fmt.Errorf("access token missing: %w", domain.ErrChannelNotConnected)
	}
	return creds.AccessToken, nil
}
