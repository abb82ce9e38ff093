// Package shipstation reads the carrier services and package types of a ShipStation account.
package shipstation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/infrastructure/encryption"
	"warehouse-channel-sync/internal/ports"

	"github.com/rs/zerolog"
)

// DefaultBaseURL is the production API endpoint
const DefaultBaseURL = "https://ssapi.shipstation.com"

// maxResponseSize caps a catalog response (5MB)
const maxResponseSize = 5 * 1024 * 1024

type carrierService struct {
	CarrierCode   string `json:"carrierCode"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Domestic      bool   `json:"domestic"`
	International bool   `json:"international"`
}

type carrierPackage struct {
	CarrierCode   string `json:"carrierCode"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Domestic      bool   `json:"domestic"`
	International bool   `json:"international"`
}

type carrier struct {
	Name      string `json:"name"`
	Code      string `json:"code"`
	AccountNo string `json:"accountNumber"`
}

// Catalog lists one carrier's services and packages
type Catalog struct {
	baseURL    string
	carrier    string
	apiKey     string
	apiSecret  string
	httpClient *http.Client
	logger     zerolog.Logger
}

// ListServices returns the carrier's shipping services
func (c *Catalog) ListServices(ctx context.Context) ([]domain.ShippingService, error) {
	var raw []carrierService
	if err := c.get(ctx, "/carriers/listservices", url.Values{"carrierCode": {c.carrier}}, &raw); err != nil {
		return nil, err
	}

	services := make([]domain.ShippingService, 0, len(raw))
	for _, s := range raw {
		services = append(services, domain.ShippingService{
			Carrier:       firstNonEmpty(s.CarrierCode, c.carrier),
			ServiceCode:   s.Code,
			Name:          s.Name,
			Domestic:      s.Domestic,
			International: s.International,
		})
	}
	return services, nil
}

// ListPackages returns the carrier's package types
func (c *Catalog) ListPackages(ctx context.Context) ([]domain.ShippingBox, error) {
	var raw []carrierPackage
	if err := c.get(ctx, "/carriers/listpackages", url.Values{"carrierCode": {c.carrier}}, &raw); err != nil {
		return nil, err
	}

	boxes := make([]domain.ShippingBox, 0, len(raw))
	for _, p := range raw {
		boxes = append(boxes, domain.ShippingBox{
			Carrier:       firstNonEmpty(p.CarrierCode, c.carrier),
			PackageCode:   p.Code,
			Name:          p.Name,
			Domestic:      p.Domestic,
			International: p.International,
		})
	}
	return boxes, nil
}

// TestConnection lists the account's carriers and checks the configured one is among them
func (c *Catalog) TestConnection(ctx context.Context) (*domain.ConnectionTest, error) {
	var carriers []carrier
	err := c.get(ctx, "/carriers", nil, &carriers)
	if err != nil {
		if errors.Is(err, domain.ErrPlatformAuth) {
			return &domain.ConnectionTest{Success: false, Detail: "api credentials rejected"}, nil
		}
		return nil, err
	}
	for _, cr := range carriers {
		if strings.EqualFold(cr.Code, c.carrier) {
			return &domain.ConnectionTest{Success: true, Detail: fmt.Sprintf("carrier %s available", cr.Name)}, nil
		}
	}
	return &domain.ConnectionTest{Success: false, Detail: fmt.Sprintf("carrier %s is not enabled on this account", c.carrier)}, nil
}

func (c *Catalog) get(ctx context.Context, path string, query url.Values, out interface{}) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("shipstation: failed to create request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, c.apiSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: shipstation: %v", domain.ErrPlatformFetch, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%w: shipstation: failed to read response: %v", domain.ErrPlatformFetch, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: shipstation: HTTP %d", domain.ErrPlatformAuth, resp.StatusCode)
	case resp.StatusCode >= 400:
		return fmt.Errorf("%w: shipstation: HTTP %d", domain.ErrPlatformFetch, resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: shipstation: %v", domain.ErrPlatformInvalidResponse, err)
	}

	c.logger.Debug().Str("path", path).Str("carrier", c.carrier).Msg("ShipStation request completed")
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Factory builds catalogs from shipping channels
type Factory struct {
	baseURL    string
	sealer     ports.CredentialSealer
	httpClient *http.Client
	logger     zerolog.Logger
}

// NewFactory creates a catalog factory. An empty baseURL selects DefaultBaseURL.
func NewFactory(baseURL string, sealer ports.CredentialSealer, httpClient *http.Client, logger zerolog.Logger) *Factory {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Factory{
		baseURL:    strings.TrimRight(baseURL, "/"),
		sealer:     sealer,
		httpClient: httpClient,
		logger:     logger,
	}
}

// CatalogFor opens the channel's API credentials and returns its catalog
func (f *Factory) CatalogFor(ctx context.Context, channel *domain.ChannelIntegration) (ports.CarrierCatalog, error) {
	carrierCode, err := domain.SwitchPayload(channel.Payload, domain.PayloadCases[string]{
		Ecommerce: func(domain.EcommercePayload) (string, error) {
			return "", fmt.Errorf("%w: e-commerce channel has no carrier catalog", domain.ErrConfigInvalid)
		},
		Shipping: func(s domain.ShippingPayload) (string, error) {
			if s.Carrier == "" {
				return "", fmt.Errorf("%w: carrier is required", domain.ErrConfigInvalid)
			}
			return strings.ToLower(s.Carrier), nil
		},
	})
	if err != nil {
		return nil, err
	}

	creds, err := encryption.OpenCredentials(f.sealer, channel.Credentials)
	if err != nil {
		return nil, err
	}
	if creds.APIKey == "" || creds.APISecret == "" {
		return nil, fmt.Errorf("api key and secret missing: %w", domain.ErrChannelNotConnected)
	}

	return &Catalog{
		baseURL:    f.baseURL,
		carrier:    carrierCode,
		apiKey:     creds.APIKey,
		apiSecret:  creds.APISecret,
		httpClient: f.httpClient,
		logger:     f.logger.With().Str("channelId", channel.ID).Logger(),
	}, nil
}

var (
	_ ports.CarrierCatalog        = (*Catalog)(nil)
	_ ports.CarrierCatalogFactory = (*Factory)(nil)
)
