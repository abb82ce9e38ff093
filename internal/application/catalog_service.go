package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// CatalogRefreshResult counts what a refresh wrote
type CatalogRefreshResult struct {
	ChannelID string `json:"channelId"`
	Services  int    `json:"services"`
	Boxes     int    `json:"boxes"`
}

// ServiceCatalogService keeps a shipping channel's services and package types in step
// with the carrier while keeping the operator's activation choices.
type ServiceCatalogService struct {
	channels ports.ChannelRepository
	catalogs ports.CarrierCatalogFactory
	store    ports.EntityStore
	guard    ports.RunGuard
	now      func() time.Time
	logger   zerolog.Logger
}

// NewServiceCatalogService creates a new catalog service
func NewServiceCatalogService(
	channels ports.ChannelRepository,
	catalogs ports.CarrierCatalogFactory,
	store ports.EntityStore,
	guard ports.RunGuard,
	logger zerolog.Logger,
) *ServiceCatalogService {
	return &ServiceCatalogService{
		channels: channels,
		catalogs: catalogs,
		store:    store,
		guard:    guard,
		now:      time.Now,
		logger:   logger,
	}
}

// Refresh fetches services and packages from the carrier and merges them into storage
func (s *ServiceCatalogService) Refresh(ctx context.Context, channelID string) (*CatalogRefreshResult, error) {
	channel, err := s.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel: %w", err)
	}
	if channel == nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, domain.ErrNotFound)
	}
	carrier, err := domain.SwitchPayload(channel.Payload, domain.PayloadCases[string]{
		Ecommerce: func(domain.EcommercePayload) (string, error) {
			return "", fmt.Errorf("%w: channel %s is not a carrier account", domain.ErrConfigInvalid, channelID)
		},
		Shipping: func(p domain.ShippingPayload) (string, error) {
			return strings.ToLower(p.Carrier), nil
		},
	})
	if err != nil {
		return nil, err
	}
	if !channel.IsConnected() {
		return nil, fmt.Errorf("channel %s: %w", channelID, domain.ErrChannelNotConnected)
	}

	// One refresh per carrier account at a time
	lockKey := "catalog:" + channelID
	token, ok, err := s.guard.TryAcquire(ctx, lockKey)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire catalog lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("channel %s catalog: %w", channelID, domain.ErrSyncInProgress)
	}
	defer func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.logger.Warn().Err(err).Str("channelId", channelID).Msg("Failed to release catalog lock")
		}
	}()

	catalog, err := s.catalogs.CatalogFor(ctx, channel)
	if err != nil {
		return nil, fmt.Errorf("failed to create carrier catalog: %w", err)
	}

	var (
		services []domain.ShippingService
		boxes    []domain.ShippingBox
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		services, err = catalog.ListServices(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		boxes, err = catalog.ListPackages(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		s.logger.Error().Err(err).Str("channelId", channelID).Msg("Failed to fetch carrier catalog")
		return nil, fmt.Errorf("failed to fetch carrier catalog: %w", err)
	}

	for i := range services {
		services[i].ChannelID = channelID
		services[i].Carrier = firstNonEmpty(strings.ToLower(services[i].Carrier), carrier)
	}
	for i := range boxes {
		boxes[i].ChannelID = channelID
		boxes[i].Carrier = firstNonEmpty(strings.ToLower(boxes[i].Carrier), carrier)
	}

	now := s.now()

	existingServices, err := s.store.ListShippingServices(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shipping services: %w", err)
	}
	mergedServices := domain.MergeAll(existingServices, services, domain.ShippingServiceMergeRule)
	for i := range mergedServices {
		if mergedServices[i].ID == "" {
			mergedServices[i].ID = uuid.NewString()
			mergedServices[i].CreatedAt = now
			mergedServices[i].IsActive = true
		}
	}
	if err := s.store.UpsertShippingServices(ctx, mergedServices); err != nil {
		return nil, fmt.Errorf("failed to upsert shipping services: %w", err)
	}

	existingBoxes, err := s.store.ListShippingBoxes(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to load shipping boxes: %w", err)
	}
	mergedBoxes := domain.MergeAll(existingBoxes, boxes, domain.ShippingBoxMergeRule)
	for i := range mergedBoxes {
		if mergedBoxes[i].ID == "" {
			mergedBoxes[i].ID = uuid.NewString()
			mergedBoxes[i].CreatedAt = now
			mergedBoxes[i].IsActive = true
		}
	}
	if err := s.store.UpsertShippingBoxes(ctx, mergedBoxes); err != nil {
		return nil, fmt.Errorf("failed to upsert shipping boxes: %w", err)
	}

	s.logger.Info().
		Str("channelId", channelID).
		Str("carrier", carrier).
		Int("services", len(mergedServices)).
		Int("boxes", len(mergedBoxes)).
		Msg("Refreshed carrier catalog")

	return &CatalogRefreshResult{ChannelID: channelID, Services: len(mergedServices), Boxes: len(mergedBoxes)}, nil
}
