package api

import (
	"time"

	"warehouse-channel-sync/internal/domain"
)

// payloadView is the flattened platform payload
type payloadView struct {
	Kind       domain.PlatformKind `json:"kind"`
	Platform   string              `json:"platform,omitempty"`
	ShopDomain string              `json:"shopDomain,omitempty"`
	Scopes     []string            `json:"scopes,omitempty"`
	Carrier    string              `json:"carrier,omitempty"`
	AccountRef string              `json:"accountRef,omitempty"`
}

// channelView is a channel as returned to clients. Credentials never leave the service;
// only their presence is reported.
type channelView struct {
	ID             string                   `json:"id"`
	AccountID      string                   `json:"accountId"`
	StoreID        string                   `json:"storeId"`
	Name           string                   `json:"name"`
	Payload        *payloadView             `json:"payload,omitempty"`
	Status         domain.ChannelStatus     `json:"status"`
	Enabled        bool                     `json:"enabled"`
	HasCredentials bool                     `json:"hasCredentials"`
	ConnectedAt    *time.Time               `json:"connectedAt,omitempty"`
	LastSyncAt     *time.Time               `json:"lastSyncAt,omitempty"`
	Watermarks     map[string]time.Time     `json:"watermarks,omitempty"`
	Routing        domain.RoutingConfig     `json:"routing"`
	ProductSync    domain.ProductSyncConfig `json:"productSync"`
	Inventory      domain.InventorySettings `json:"inventory"`
	CreatedAt      time.Time                `json:"createdAt"`
	UpdatedAt      time.Time                `json:"updatedAt"`
}

func toChannelView(c *domain.ChannelIntegration) channelView {
	v := channelView{
		ID:             c.ID,
		AccountID:      c.AccountID,
		StoreID:        c.StoreID,
		Name:           c.Name,
		Status:         c.Status,
		Enabled:        c.Enabled,
		HasCredentials: len(c.Credentials) > 0,
		ConnectedAt:    c.ConnectedAt,
		LastSyncAt:     c.LastSyncAt,
		Routing:        c.Routing,
		ProductSync:    c.ProductSync,
		Inventory:      c.Inventory.Normalize(),
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if p, err := domain.SwitchPayload(c.Payload, domain.PayloadCases[*payloadView]{
		Ecommerce: func(e domain.EcommercePayload) (*payloadView, error) {
			return &payloadView{Kind: e.Kind(), Platform: e.Platform, ShopDomain: e.ShopDomain, Scopes: e.Scopes}, nil
		},
		Shipping: func(s domain.ShippingPayload) (*payloadView, error) {
			return &payloadView{Kind: s.Kind(), Carrier: s.Carrier, AccountRef: s.AccountRef}, nil
		},
	}); err == nil {
		v.Payload = p
	}
	if len(c.Watermarks) > 0 {
		v.Watermarks = make(map[string]time.Time, len(c.Watermarks))
		for k, t := range c.Watermarks {
			v.Watermarks[string(k)] = t
		}
	}
	return v
}

// conflictsView wraps warnings so an empty list still encodes as []
type conflictsView struct {
	Conflicts []domain.ConflictWarning `json:"conflicts"`
}

func toConflictsView(warnings []domain.ConflictWarning) conflictsView {
	if warnings == nil {
		warnings = []domain.ConflictWarning{}
	}
	return conflictsView{Conflicts: warnings}
}
