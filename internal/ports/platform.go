package ports

import (
	"context"
	"net/http"
	"net/url"

	"warehouse-channel-sync/internal/domain"
)

// PlatformClient reads one connected e-commerce platform
type PlatformClient interface {
	// FetchPage requests one cursor page of the given entity kind
	FetchPage(ctx context.Context, kind domain.EntityKind, req domain.PageRequest) (*domain.Page, error)

	// TestConnection checks that the stored credentials are accepted
	TestConnection(ctx context.Context) (*domain.ConnectionTest, error)
}

// PlatformClientFactory builds a client from a channel's payload and sealed credentials
type PlatformClientFactory interface {
	ClientFor(ctx context.Context, channel *domain.ChannelIntegration) (PlatformClient, error)
}

// CarrierCatalog lists the services and package types of a carrier account
type CarrierCatalog interface {
	ListServices(ctx context.Context) ([]domain.ShippingService, error)
	ListPackages(ctx context.Context) ([]domain.ShippingBox, error)
	TestConnection(ctx context.Context) (*domain.ConnectionTest, error)
}

// CarrierCatalogFactory builds a catalog client for a shipping channel
type CarrierCatalogFactory interface {
	CatalogFor(ctx context.Context, channel *domain.ChannelIntegration) (CarrierCatalog, error)
}

// Authorizer builds the outbound OAuth parameters and completes the code exchange
type Authorizer interface {
	AuthorizationURL(shopDomain string, scopes []string, redirectURI, state string) (string, error)
	VerifyCallback(callbackURL *url.URL) (bool, error)
	ExchangeToken(ctx context.Context, shopDomain, code string) (string, error)
}

// WebhookVerifier checks the signature of an inbound platform webhook
type WebhookVerifier interface {
	VerifyWebhook(r *http.Request) bool
}

// CredentialSealer encrypts credential blobs at rest
type CredentialSealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}
