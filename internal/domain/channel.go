package domain

import (
	"fmt"
	"time"
)

// PlatformKind discriminates the platform payload carried by a channel
type PlatformKind string

const (
	PlatformKindEcommerce PlatformKind = "ecommerce"
	PlatformKindShipping  PlatformKind = "shipping"
)

// PlatformShopify is the only e-commerce platform with a bundled client
const PlatformShopify = "shopify"

// IsValid returns true if the kind is known
func (k PlatformKind) IsValid() bool {
	switch k {
	case PlatformKindEcommerce, PlatformKindShipping:
		return true
	default:
		return false
	}
}

// ChannelStatus is the connection lifecycle state of a channel
type ChannelStatus string

const (
	ChannelStatusConnected    ChannelStatus = "connected"
	ChannelStatusDisconnected ChannelStatus = "disconnected"
	ChannelStatusError        ChannelStatus = "error"
)

// SyncDirection is the inventory authority direction of a channel
type SyncDirection string

const (
	SyncDirectionPlatformToWarehouses SyncDirection = "platform_to_warehouses"
	SyncDirectionWarehousesToPlatform SyncDirection = "warehouses_to_platform"
	SyncDirectionManual               SyncDirection = "manual"
)

// IsValid returns true if the direction is known
func (d SyncDirection) IsValid() bool {
	switch d {
	case SyncDirectionPlatformToWarehouses, SyncDirectionWarehousesToPlatform, SyncDirectionManual:
		return true
	default:
		return false
	}
}

// InventorySettings holds the inventory sync switch and its direction
type InventorySettings struct {
	Enabled   bool          `json:"inventorySyncEnabled" bson:"enabled"`
	Direction SyncDirection `json:"syncDirection" bson:"direction" validate:"omitempty,oneof=platform_to_warehouses warehouses_to_platform manual"`
}

// Normalize forces the direction to manual when inventory sync is disabled
func (s InventorySettings) Normalize() InventorySettings {
	if !s.Enabled || s.Direction == "" {
		s.Direction = SyncDirectionManual
	}
	return s
}

// PushesToWarehouses reports whether the channel acts as authoritative inventory writer
func (s InventorySettings) PushesToWarehouses() bool {
	n := s.Normalize()
	return n.Enabled && n.Direction == SyncDirectionPlatformToWarehouses
}

// PlatformPayload is the platform-specific part of a channel.
// The set of implementations is closed; see SwitchPayload.
type PlatformPayload interface {
	Kind() PlatformKind
	isPlatformPayload()
}

// EcommercePayload describes a sales channel connection
type EcommercePayload struct {
	Platform   string   `json:"platform" bson:"platform"`
	ShopDomain string   `json:"shopDomain" bson:"shopDomain"`
	Scopes     []string `json:"scopes,omitempty" bson:"scopes,omitempty"`
}

func (EcommercePayload) Kind() PlatformKind { return PlatformKindEcommerce }
func (EcommercePayload) isPlatformPayload() {}

// ShippingPayload describes a carrier account connection
type ShippingPayload struct {
	Carrier    string `json:"carrier" bson:"carrier"`
	AccountRef string `json:"accountRef" bson:"accountRef"`
}

func (ShippingPayload) Kind() PlatformKind { return PlatformKindShipping }
func (ShippingPayload) isPlatformPayload() {}

// PayloadCases holds one handler per payload variant
type PayloadCases[T any] struct {
	Ecommerce func(EcommercePayload) (T, error)
	Shipping  func(ShippingPayload) (T, error)
}

// SwitchPayload dispatches on the payload variant. Every case must be provided.
func SwitchPayload[T any](p PlatformPayload, cases PayloadCases[T]) (T, error) {
	var zero T
	switch v := p.(type) {
	case EcommercePayload:
		return cases.Ecommerce(v)
	case *EcommercePayload:
		return cases.Ecommerce(*v)
	case ShippingPayload:
		return cases.Shipping(v)
	case *ShippingPayload:
		return cases.Shipping(*v)
	case nil:
		return zero, fmt.Errorf("%w: channel has no platform payload", ErrConfigInvalid)
	default:
		return zero, fmt.Errorf("%w: unsupported platform payload %T", ErrConfigInvalid, p)
	}
}

// ChannelIntegration is one external platform connection for one store
type ChannelIntegration struct {
	ID          string
	AccountID   string
	StoreID     string
	Name        string
	Payload     PlatformPayload
	Status      ChannelStatus
	Enabled     bool
	ConnectedAt *time.Time
	LastSyncAt  *time.Time

	// Watermarks holds the start time of the last completed run per entity kind
	Watermarks map[EntityKind]time.Time

	// Credentials is sealed and never inspected here
	Credentials []byte

	Routing     RoutingConfig
	ProductSync ProductSyncConfig
	Inventory   InventorySettings

	CreatedAt time.Time
	UpdatedAt time.Time
}

// PlatformKind returns the discriminant of the channel payload
func (c *ChannelIntegration) PlatformKind() PlatformKind {
	if c.Payload == nil {
		return ""
	}
	return c.Payload.Kind()
}

// IsEcommerce reports whether the channel is a sales channel
func (c *ChannelIntegration) IsEcommerce() bool {
	return c.PlatformKind() == PlatformKindEcommerce
}

// IsConnected reports whether the channel can be synced
func (c *ChannelIntegration) IsConnected() bool {
	return c.Status == ChannelStatusConnected && c.Enabled
}

// Watermark returns the incremental lower bound for the given kind, if any.
// Channels written before per-kind watermarks existed fall back to LastSyncAt.
func (c *ChannelIntegration) Watermark(kind EntityKind) *time.Time {
	if c.Watermarks == nil {
		if c.LastSyncAt == nil || c.LastSyncAt.IsZero() {
			return nil
		}
		t := *c.LastSyncAt
		return &t
	}
	if t, ok := c.Watermarks[kind]; ok && !t.IsZero() {
		return &t
	}
	return nil
}

// ChannelPatch is a partial update of a channel. Nil fields are left untouched by the store.
type ChannelPatch struct {
	AccountID   *string
	StoreID     *string
	Name        *string
	Payload     PlatformPayload
	Status      *ChannelStatus
	Enabled     *bool
	ConnectedAt *time.Time
	LastSyncAt  *time.Time
	Watermarks  map[EntityKind]time.Time
	Credentials *[]byte
	Routing     *RoutingConfig
	ProductSync *ProductSyncConfig
	Inventory   *InventorySettings
}

// DisconnectPatch clears credentials and marks the channel disconnected.
// Channels are never hard-deleted while orders reference their store.
func DisconnectPatch() ChannelPatch {
	status := ChannelStatusDisconnected
	enabled := false
	empty := []byte{}
	return ChannelPatch{
		Status:      &status,
		Enabled:     &enabled,
		Credentials: &empty,
	}
}
