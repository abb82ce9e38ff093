package application

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/ports"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ChannelService manages channel configuration: routing, product destinations,
// inventory sync settings, carrier credentials and the disconnect lifecycle.
type ChannelService struct {
	channels   ports.ChannelRepository
	warehouses ports.WarehouseRegistry
	clients    ports.PlatformClientFactory
	catalogs   ports.CarrierCatalogFactory
	sealer     ports.CredentialSealer
	recorder   ports.SyncRecorder
	validate   *validator.Validate
	now        func() time.Time
	logger     zerolog.Logger
}

// NewChannelService creates a new channel service
func NewChannelService(
	channels ports.ChannelRepository,
	warehouses ports.WarehouseRegistry,
	clients ports.PlatformClientFactory,
	catalogs ports.CarrierCatalogFactory,
	sealer ports.CredentialSealer,
	recorder ports.SyncRecorder,
	logger zerolog.Logger,
) *ChannelService {
	return &ChannelService{
		channels:   channels,
		warehouses: warehouses,
		clients:    clients,
		catalogs:   catalogs,
		sealer:     sealer,
		recorder:   recorder,
		validate:   newValidator(),
		now:        time.Now,
		logger:     logger,
	}
}

// RoutingInput is a routing and product destination update
type RoutingInput struct {
	Routing     domain.RoutingConfig     `json:"routing"`
	ProductSync domain.ProductSyncConfig `json:"productSync"`
}

// CarrierInput registers a carrier account channel
type CarrierInput struct {
	ChannelID string `json:"channelId"`
	AccountID string `json:"accountId" validate:"required"`
	StoreID   string `json:"storeId" validate:"required"`
	Name      string `json:"name" validate:"required"`
	Carrier   string `json:"carrier" validate:"required"`
	APIKey    string `json:"apiKey" validate:"required"`
	APISecret string `json:"apiSecret" validate:"required"`
}

// GetChannel returns a channel or ErrNotFound
func (s *ChannelService) GetChannel(ctx context.Context, channelID string) (*domain.ChannelIntegration, error) {
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel: %w", err)
	}
	if channel == nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, domain.ErrNotFound)
	}
	return channel, nil
}

// ListChannels returns every channel of an account
func (s *ChannelService) ListChannels(ctx context.Context, accountID string) ([]domain.ChannelIntegration, error) {
	if accountID == "" {
		return nil, &domain.ConfigError{Field: "accountId", Reason: "is required"}
	}
	channels, err := s.channels.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list channels: %w", err)
	}
	return channels, nil
}

// SaveRouting validates routing and product destinations against the store's
// warehouses and persists both. An invalid config is rejected, never saved.
func (s *ChannelService) SaveRouting(ctx context.Context, channelID string, input RoutingInput) (*domain.ChannelIntegration, error) {
	channel, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.validateRouting(ctx, channel.StoreID, input.Routing, input.ProductSync); err != nil {
		return nil, err
	}

	routing := input.Routing
	product := input.ProductSync
	if err := s.channels.Save(ctx, channelID, domain.ChannelPatch{Routing: &routing, ProductSync: &product}); err != nil {
		s.logger.Error().Err(err).Str("channelId", channelID).Msg("Failed to save routing configuration")
		return nil, fmt.Errorf("failed to save routing configuration: %w", err)
	}

	s.logger.Info().
		Str("channelId", channelID).
		Str("mode", string(routing.Mode)).
		Str("primaryWarehouseId", routing.PrimaryWarehouseID).
		Int("assignments", len(routing.Assignments)).
		Str("productSyncMode", string(product.Mode)).
		Msg("Saved routing configuration")

	return s.GetChannel(ctx, channelID)
}

func (s *ChannelService) validateRouting(ctx context.Context, storeID string, routing domain.RoutingConfig, product domain.ProductSyncConfig) error {
	if err := validateStruct(s.validate, routing); err != nil {
		return err
	}
	if err := validateStruct(s.validate, product); err != nil {
		return err
	}
	warehouses, err := s.warehouses.ListWarehouses(ctx, storeID)
	if err != nil {
		return fmt.Errorf("failed to list warehouses: %w", err)
	}
	if err := routing.Validate(warehouses); err != nil {
		return err
	}
	return product.Validate()
}

// SaveInventorySettings persists the inventory sync switch and direction and returns
// the conflict warnings of the new settings. Warnings never block the save.
func (s *ChannelService) SaveInventorySettings(ctx context.Context, channelID string, settings domain.InventorySettings) ([]domain.ConflictWarning, error) {
	if settings.Direction != "" && !settings.Direction.IsValid() {
		return nil, &domain.ConfigError{Field: "syncDirection", Reason: fmt.Sprintf("unknown direction %q", settings.Direction)}
	}
	settings = settings.Normalize()

	channel, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	warnings, err := s.conflictsFor(ctx, channel, &settings)
	if err != nil {
		return nil, err
	}

	if err := s.channels.Save(ctx, channelID, domain.ChannelPatch{Inventory: &settings}); err != nil {
		s.logger.Error().Err(err).Str("channelId", channelID).Msg("Failed to save inventory settings")
		return nil, fmt.Errorf("failed to save inventory settings: %w", err)
	}

	s.logger.Info().
		Str("channelId", channelID).
		Bool("inventorySyncEnabled", settings.Enabled).
		Str("syncDirection", string(settings.Direction)).
		Int("conflicts", len(warnings)).
		Msg("Saved inventory settings")

	return warnings, nil
}

// SetEnabled switches a channel on or off and returns the conflicts that remain
func (s *ChannelService) SetEnabled(ctx context.Context, channelID string, enabled bool) ([]domain.ConflictWarning, error) {
	channel, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if err := s.channels.Save(ctx, channelID, domain.ChannelPatch{Enabled: &enabled}); err != nil {
		return nil, fmt.Errorf("failed to save channel state: %w", err)
	}
	channel.Enabled = enabled

	s.logger.Info().Str("channelId", channelID).Bool("enabled", enabled).Msg("Changed channel state")

	if !enabled {
		return nil, nil
	}
	return s.conflictsFor(ctx, channel, nil)
}

// Conflicts recomputes the sync-direction conflicts of a channel from current configuration
func (s *ChannelService) Conflicts(ctx context.Context, channelID string) ([]domain.ConflictWarning, error) {
	channel, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	return s.conflictsFor(ctx, channel, nil)
}

func (s *ChannelService) conflictsFor(ctx context.Context, channel *domain.ChannelIntegration, proposed *domain.InventorySettings) ([]domain.ConflictWarning, error) {
	channels, err := s.channels.ListByAccount(ctx, channel.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list account channels: %w", err)
	}

	// The subject may have been changed by the caller but not yet persisted
	found := false
	for i := range channels {
		if channels[i].ID == channel.ID {
			channels[i] = *channel
			found = true
		}
	}
	if !found {
		channels = append(channels, *channel)
	}

	warnings := domain.DetectConflicts(channels, channel.ID, proposed)
	if len(warnings) > 0 {
		s.recorder.ConflictsDetected(len(warnings))
		for _, w := range warnings {
			s.logger.Warn().
				Str("channelId", channel.ID).
				Str("otherChannelId", w.OtherChannelID).
				Str("otherChannelName", w.OtherChannelName).
				Msg("Inventory sync direction conflict")
		}
	}
	return warnings, nil
}

// RemoveProductDestination drops one warehouse from a specific_warehouses selection.
// Removing the last destination is rejected.
func (s *ChannelService) RemoveProductDestination(ctx context.Context, channelID, warehouseID string) (*domain.ProductSyncConfig, error) {
	channel, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	updated, err := channel.ProductSync.WithoutWarehouse(warehouseID)
	if err != nil {
		return nil, err
	}
	if err := s.channels.Save(ctx, channelID, domain.ChannelPatch{ProductSync: &updated}); err != nil {
		return nil, fmt.Errorf("failed to save product destinations: %w", err)
	}

	s.logger.Info().
		Str("channelId", channelID).
		Str("warehouseId", warehouseID).
		Int("remaining", len(updated.SelectedWarehouseIDs)).
		Msg("Removed product destination")

	return &updated, nil
}

// Disconnect logically deletes a channel: credentials are cleared and the record
// stays so that historical orders keep their reference.
func (s *ChannelService) Disconnect(ctx context.Context, channelID string) error {
	if _, err := s.GetChannel(ctx, channelID); err != nil {
		return err
	}
	if err := s.channels.Save(ctx, channelID, domain.DisconnectPatch()); err != nil {
		s.logger.Error().Err(err).Str("channelId", channelID).Msg("Failed to disconnect channel")
		return fmt.Errorf("failed to disconnect channel: %w", err)
	}
	s.logger.Info().Str("channelId", channelID).Msg("Disconnected channel")
	return nil
}

// TestConnection checks the stored credentials against the channel's platform
func (s *ChannelService) TestConnection(ctx context.Context, channelID string) (*domain.ConnectionTest, error) {
	channel, err := s.GetChannel(ctx, channelID)
	if err != nil {
		return nil, err
	}
	if len(channel.Credentials) == 0 {
		return nil, fmt.Errorf("channel %s: %w", channelID, domain.ErrChannelNotConnected)
	}

	result, err := domain.SwitchPayload(channel.Payload, domain.PayloadCases[*domain.ConnectionTest]{
		Ecommerce: func(domain.EcommercePayload) (*domain.ConnectionTest, error) {
			client, err := s.clients.ClientFor(ctx, channel)
			if err != nil {
				return nil, err
			}
			return client.TestConnection(ctx)
		},
		Shipping: func(domain.ShippingPayload) (*domain.ConnectionTest, error) {
			catalog, err := s.catalogs.CatalogFor(ctx, channel)
			if err != nil {
				return nil, err
			}
			return catalog.TestConnection(ctx)
		},
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("channelId", channelID).Msg("Connection test failed")
		return nil, err
	}

	s.logger.Info().
		Str("channelId", channelID).
		Bool("success", result.Success).
		Str("detail", result.Detail).
		Msg("Connection test completed")
	return result, nil
}

// ConnectCarrier stores a carrier account channel with sealed API credentials
func (s *ChannelService) ConnectCarrier(ctx context.Context, input CarrierInput) (*domain.ChannelIntegration, error) {
	if err := validateStruct(s.validate, input); err != nil {
		return nil, err
	}
	channelID := input.ChannelID
	if channelID == "" {
		channelID = uuid.NewString()
	}

	plaintext, err := json.Marshal(domain.Credentials{APIKey: input.APIKey, APISecret: input.APISecret})
	if err != nil {
		return nil, fmt.Errorf("failed to encode credentials: %w", err)
	}
	sealed, err := s.sealer.Seal(plaintext)
	if err != nil {
		return nil, fmt.Errorf("failed to seal credentials: %w", err)
	}

	now := s.now()
	status := domain.ChannelStatusConnected
	enabled := true
	patch := domain.ChannelPatch{
		AccountID:   &input.AccountID,
		StoreID:     &input.StoreID,
		Name:        &input.Name,
		Payload:     domain.ShippingPayload{Carrier: input.Carrier, AccountRef: maskKey(input.APIKey)},
		Status:      &status,
		Enabled:     &enabled,
		ConnectedAt: &now,
		Credentials: &sealed,
	}
	if err := s.channels.Save(ctx, channelID, patch); err != nil {
		return nil, fmt.Errorf("failed to save carrier channel: %w", err)
	}

	s.logger.Info().
		Str("channelId", channelID).
		Str("carrier", input.Carrier).
		Str("storeId", input.StoreID).
		Msg("Connected carrier account")

	return s.GetChannel(ctx, channelID)
}

func maskKey(key string) string {
	if len(key) <= 4 {
		return "****"
	}
	return "****" + key[len(key)-4:]
}
