package shopify

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/ports"

	goshopify "github.com/bold-commerce/go-shopify/v4"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Config holds the app credentials and client tuning
type Config struct {
	APIKey            string
	APISecret         string
	APIVersion        string
	RequestsPerSecond float64
	Retries           int
	HTTPClient        *http.Client
}

// Platform builds shop clients, runs the OAuth handshake and verifies webhooks
// for one Shopify app.
type Platform struct {
	app    goshopify.App
	cfg    Config
	tokens *TokenManager
	logger zerolog.Logger

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewPlatform validates the page queries and returns a platform adapter
func NewPlatform(cfg Config, sealer ports.CredentialSealer, logger zerolog.Logger) (*Platform, error) {
	if cfg.APIKey == "" || cfg.APISecret == "" {
		return nil, fmt.Errorf("shopify api key and secret are required")
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if err := checkQueries(pageQueries); err != nil {
		return nil, err
	}

	return &Platform{
		app: goshopify.App{
			ApiKey:    cfg.APIKey,
			ApiSecret: cfg.APISecret,
		},
		cfg:      cfg,
		tokens:   NewTokenManager(sealer, logger),
		logger:   logger,
		limiters: make(map[string]*rate.Limiter),
	}, nil
}

// ClientFor opens the channel's credentials and returns a client for its shop
func (p *Platform) ClientFor(ctx context.Context, channel *domain.ChannelIntegration) (ports.PlatformClient, error) {
	shop, err := domain.SwitchPayload(channel.Payload, domain.PayloadCases[string]{
		Ecommerce: func(e domain.EcommercePayload) (string, error) {
			if e.Platform != domain.PlatformShopify {
				return "", fmt.Errorf("%w: unsupported platform %q", domain.ErrConfigInvalid, e.Platform)
			}
			return e.ShopDomain, nil
		},
		Shipping: func(s domain.ShippingPayload) (string, error) {
			return "", fmt.Errorf("%w: shipping channel has no shop", domain.ErrConfigInvalid)
		},
	})
	if err != nil {
		return nil, err
	}

	token, err := p.tokens.AccessToken(channel.Credentials)
	if err != nil {
		return nil, err
	}

	api, err := p.newAPIClient(shop, token)
	if err != nil {
		return nil, err
	}

	return &client{
		api:     api,
		shop:    shop,
		storeID: channel.StoreID,
		limiter: p.limiterFor(shop),
		logger:  p.logger.With().Str("shop", shop).Logger(),
	}, nil
}

// AuthorizationURL builds the install URL. go-shopify's AuthorizeUrl does not take a
// redirect URI per call, so the URL is assembled here.
func (p *Platform) AuthorizationURL(shopDomain string, scopes []string, redirectURI, state string) (string, error) {
	if shopDomain == "" {
		return "", fmt.Errorf("%w: shop domain is required", domain.ErrConfigInvalid)
	}
	// Shopify expects comma-separated scopes with no spaces
	scopesStr := strings.Join(scopes, ",")

	authURL := fmt.Sprintf(
		"https://%s/admin/oauth/authorize?client_id=%s&scope=%s&redirect_uri=%s&state=%s",
		shopDomain,
		url.QueryEscape(p.cfg.APIKey),
		url.QueryEscape(scopesStr),
		url.QueryEscape(redirectURI),
		url.QueryEscape(state),
	)

	p.logger.Info().
		Str("shop", shopDomain).
		Strs("scopes", scopes).
		Msg("Generated OAuth authorization URL")

	return authURL, nil
}

// VerifyCallback checks the hmac parameter of the OAuth callback
func (p *Platform) VerifyCallback(callbackURL *url.URL) (bool, error) {
	ok, err := p.app.VerifyAuthorizationURL(callbackURL)
	if err != nil {
		return false, fmt.Errorf("failed to verify callback: %w", err)
	}
	return ok, nil
}

// ExchangeToken trades an authorization code for an offline access token
func (p *Platform) ExchangeToken(ctx context.Context, shopDomain, code string) (string, error) {
	api, err := p.newAPIClient(shopDomain, "")
	if err != nil {
		return "", err
	}
	app := p.app
	app.Client = api

	token, err := app.GetAccessToken(ctx, shopDomain, code)
	if err != nil {
		return "", classifyError("exchange token", err)
	}
	if token == "" {
		return "", fmt.Errorf("%w: empty access token", domain.ErrPlatformInvalidResponse)
	}
	return token, nil
}

// VerifyWebhook checks X-Shopify-Hmac-Sha256 against the request body. The body is
// restored for later reads.
func (p *Platform) VerifyWebhook(r *http.Request) bool {
	return p.app.VerifyWebhookRequest(r)
}

func (p *Platform) newAPIClient(shop, token string) (*goshopify.Client, error) {
	opts := []goshopify.Option{goshopify.WithRetry(p.cfg.Retries)}
	if p.cfg.APIVersion != "" {
		opts = append(opts, goshopify.WithVersion(p.cfg.APIVersion))
	}
	if p.cfg.HTTPClient != nil {
		opts = append(opts, goshopify.WithHTTPClient(p.cfg.HTTPClient))
	}

	api, err := goshopify.NewClient(p.app, shop, token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return api, nil
}

// limiterFor returns the shared limiter of a shop so concurrent runs share its budget
func (p *Platform) limiterFor(shop string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	l, ok := p.limiters[shop]
	if !ok {
		l = rate.NewLimiter(rate.Limit(p.cfg.RequestsPerSecond), 1)
		p.limiters[shop] = l
	}
	return l
}

var (
	_ ports.PlatformClientFactory = (*Platform)(nil)
	_ ports.Authorizer            = (*Platform)(nil)
	_ ports.WebhookVerifier       = (*Platform)(nil)
)
