package application

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/ports"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DefaultPageSize is the fixed batch requested per page
const DefaultPageSize = 50

// SyncPipeline pulls orders and products from a connected platform page by page,
// transforms them and merges every page into local storage before asking for the next.
type SyncPipeline struct {
	channels   ports.ChannelRepository
	warehouses ports.WarehouseRegistry
	clients    ports.PlatformClientFactory
	store      ports.EntityStore
	guard      ports.RunGuard
	progress   ports.ProgressPublisher
	recorder   ports.SyncRecorder
	pageSize   int
	now        func() time.Time
	logger     zerolog.Logger

	base       context.Context
	stop       context.CancelFunc
	background sync.WaitGroup
}

// NewSyncPipeline creates a new sync pipeline
func NewSyncPipeline(
	channels ports.ChannelRepository,
	warehouses ports.WarehouseRegistry,
	clients ports.PlatformClientFactory,
	store ports.EntityStore,
	guard ports.RunGuard,
	progress ports.ProgressPublisher,
	recorder ports.SyncRecorder,
	pageSize int,
	logger zerolog.Logger,
) *SyncPipeline {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	base, stop := context.WithCancel(context.Background())
	return &SyncPipeline{
		channels:   channels,
		warehouses: warehouses,
		clients:    clients,
		store:      store,
		guard:      guard,
		progress:   progress,
		recorder:   recorder,
		pageSize:   pageSize,
		now:        time.Now,
		logger:     logger,
		base:       base,
		stop:       stop,
	}
}

// run carries the mutable state of one in-flight sync
type run struct {
	channel    *domain.ChannelIntegration
	kind       domain.EntityKind
	client     ports.PlatformClient
	warehouses []domain.Warehouse
	productDst []string
	lockKey    string
	lockToken  string
	cursor     domain.SyncCursor
	status     domain.SyncStatus
	result     *domain.SyncResult
	logger     zerolog.Logger
}

// Sync runs one full or incremental pass for a channel and entity kind.
// A returned error means the run was rejected before it started. Failures during
// the run are reported in the result together with the last committed cursor;
// passing that cursor back in resumes after the last committed page.
func (p *SyncPipeline) Sync(ctx context.Context, channelID string, kind domain.EntityKind, resume *domain.SyncCursor) (*domain.SyncResult, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: unknown entity kind %q", domain.ErrConfigInvalid, kind)
	}

	channel, err := p.channels.GetByID(ctx, channelID)
	if err != nil {
		return nil, fmt.Errorf("failed to read channel: %w", err)
	}
	if channel == nil {
		return nil, fmt.Errorf("channel %s: %w", channelID, domain.ErrNotFound)
	}
	if !channel.IsEcommerce() {
		return nil, fmt.Errorf("%w: channel %s does not sync %s", domain.ErrConfigInvalid, channelID, kind)
	}
	if !channel.IsConnected() {
		return nil, fmt.Errorf("channel %s: %w", channelID, domain.ErrChannelNotConnected)
	}

	lockKey := "sync:" + channelID + ":" + string(kind)
	token, ok, err := p.guard.TryAcquire(ctx, lockKey)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("channel %s %s: %w", channelID, kind, domain.ErrSyncInProgress)
	}
	defer func() {
		if err := p.guard.Release(context.WithoutCancel(ctx), lockKey, token); err != nil {
			p.logger.Warn().Err(err).Str("channelId", channelID).Str("entityKind", string(kind)).Msg("Failed to release run lock")
		}
	}()

	r := &run{
		channel:   channel,
		kind:      kind,
		lockKey:   lockKey,
		lockToken: token,
		status:    domain.SyncIdle,
		result: &domain.SyncResult{
			ChannelID: channelID,
			Kind:      kind,
			StartedAt: p.now(),
		},
		logger: p.logger.With().Str("channelId", channelID).Str("entityKind", string(kind)).Logger(),
	}
	r.cursor = domain.SyncCursor{HasNextPage: true, UpdatedAtMin: channel.Watermark(kind)}
	if resume != nil && resume.HasNextPage {
		r.cursor = *resume
		r.logger.Info().Int("page", resume.PageIndex).Msg("Resuming sync after last committed page")
	}

	return p.execute(ctx, r), nil
}

func (p *SyncPipeline) execute(ctx context.Context, r *run) *domain.SyncResult {
	r.logger.Info().
		Bool("incremental", r.cursor.UpdatedAtMin != nil).
		Int("pageSize", p.pageSize).
		Msg("Sync started")
	p.publish(r, domain.StageStarting, 0, "")

	if err := p.prepare(ctx, r); err != nil {
		return p.fail(r, err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return p.cancel(r, err)
		}
		if err := p.renewLock(ctx, r); err != nil {
			return p.fail(r, err)
		}

		pageIndex := r.cursor.PageIndex + 1
		p.transition(r, domain.SyncFetchingPage)
		p.publish(r, domain.StageFetchingPage, pageIndex, "")

		page, err := r.client.FetchPage(ctx, r.kind, domain.PageRequest{
			After:        r.cursor.EndCursor,
			First:        p.pageSize,
			UpdatedAtMin: r.cursor.UpdatedAtMin,
		})
		if err != nil {
			if ctx.Err() != nil {
				return p.cancel(r, ctx.Err())
			}
			return p.fail(r, fmt.Errorf("failed to fetch page %d: %w", pageIndex, err))
		}
		if len(page.Records) == 0 {
			break
		}
		if page.HasNextPage && (page.EndCursor == "" || page.EndCursor == r.cursor.EndCursor) {
			return p.fail(r, fmt.Errorf("%w: page %d did not advance the cursor", domain.ErrPlatformInvalidResponse, pageIndex))
		}

		committed, err := p.commitPage(ctx, r, pageIndex, page)
		if err != nil {
			if ctx.Err() != nil {
				return p.cancel(r, ctx.Err())
			}
			return p.fail(r, fmt.Errorf("failed to merge page %d: %w", pageIndex, err))
		}

		r.cursor = domain.SyncCursor{
			HasNextPage:  page.HasNextPage,
			EndCursor:    page.EndCursor,
			PageIndex:    pageIndex,
			UpdatedAtMin: r.cursor.UpdatedAtMin,
		}
		r.result.PagesProcessed++
		r.result.RecordsProcessed += committed
		p.recorder.PageCommitted(r.kind, committed)

		r.logger.Debug().Int("page", pageIndex).Int("records", committed).Msg("Page committed")

		if !page.HasNextPage {
			break
		}
	}

	if err := p.renewLock(ctx, r); err != nil {
		return p.fail(r, err)
	}
	return p.done(ctx, r)
}

// renewLock extends the run lease at a page boundary. A lease that expired or
// passed to another run stops this one before it commits anything else.
func (p *SyncPipeline) renewLock(ctx context.Context, r *run) error {
	ok, err := p.guard.Extend(ctx, r.lockKey, r.lockToken)
	if err != nil {
		return fmt.Errorf("failed to renew run lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("page %d: %w", r.cursor.PageIndex, domain.ErrRunLockLost)
	}
	return nil
}

// prepare builds the platform client and resolves routing once per run. Routing that
// cannot produce a destination fails the run before anything is fetched.
func (p *SyncPipeline) prepare(ctx context.Context, r *run) error {
	client, err := p.clients.ClientFor(ctx, r.channel)
	if err != nil {
		return fmt.Errorf("failed to create platform client: %w", err)
	}
	r.client = client

	warehouses, err := p.warehouses.ListWarehouses(ctx, r.channel.StoreID)
	if err != nil {
		return fmt.Errorf("failed to list warehouses: %w", err)
	}
	r.warehouses = warehouses

	switch r.kind {
	case domain.EntityOrders:
		if _, err := domain.ResolveRoutingWarehouses(r.channel.Routing, warehouses, ""); err != nil {
			return err
		}
	case domain.EntityProducts:
		dst, err := domain.ResolveProductDestinations(r.channel.ProductSync, r.channel.Routing, warehouses)
		if err != nil {
			return err
		}
		r.productDst = dst
	}
	return nil
}

func (p *SyncPipeline) commitPage(ctx context.Context, r *run, pageIndex int, page *domain.Page) (int, error) {
	p.transition(r, domain.SyncTransforming)

	switch r.kind {
	case domain.EntityOrders:
		incoming := make([]domain.Order, 0, len(page.Records))
		for _, rec := range page.Records {
			if rec.Order == nil {
				p.warn(r, domain.TransformWarning{ExternalID: rec.ExternalID, Field: "order", Message: "record carries no order payload, skipped"})
				continue
			}
			order, warnings := TransformOrder(r.channel, rec)
			p.warn(r, warnings...)
			warehouseID, err := domain.ResolveOrderWarehouse(r.channel.Routing, r.warehouses, order.ShippingRegion)
			if err != nil {
				return 0, err
			}
			order.WarehouseID = warehouseID
			incoming = append(incoming, order)
		}

		p.transition(r, domain.SyncMerging)
		p.publish(r, domain.StageMergingPage, pageIndex, "")

		existing, err := p.store.FindOrders(ctx, r.channel.ID, orderExternalIDs(incoming))
		if err != nil {
			return 0, fmt.Errorf("failed to load existing orders: %w", err)
		}
		merged := domain.MergeAll(existing, incoming, domain.OrderMergeRule)
		now := p.now()
		for i := range merged {
			if merged[i].ID == "" {
				merged[i].ID = uuid.NewString()
				merged[i].CreatedAt = now
			}
		}
		if err := p.store.UpsertOrders(ctx, merged); err != nil {
			return 0, fmt.Errorf("failed to upsert orders: %w", err)
		}
		return len(merged), nil

	case domain.EntityProducts:
		incoming := make([]domain.Product, 0, len(page.Records))
		for _, rec := range page.Records {
			if rec.Product == nil {
				p.warn(r, domain.TransformWarning{ExternalID: rec.ExternalID, Field: "product", Message: "record carries no product payload, skipped"})
				continue
			}
			product, warnings := TransformProduct(r.channel, rec)
			p.warn(r, warnings...)
			product.DestinationWarehouseIDs = append([]string(nil), r.productDst...)
			incoming = append(incoming, product)
		}

		p.transition(r, domain.SyncMerging)
		p.publish(r, domain.StageMergingPage, pageIndex, "")

		existing, err := p.store.FindProducts(ctx, r.channel.ID, productExternalIDs(incoming))
		if err != nil {
			return 0, fmt.Errorf("failed to load existing products: %w", err)
		}
		merged := domain.MergeAll(existing, incoming, domain.ProductMergeRule)
		now := p.now()
		for i := range merged {
			if merged[i].ID == "" {
				merged[i].ID = uuid.NewString()
				merged[i].CreatedAt = now
			}
		}
		if err := p.store.UpsertProducts(ctx, merged); err != nil {
			return 0, fmt.Errorf("failed to upsert products: %w", err)
		}
		return len(merged), nil
	}

	return 0, fmt.Errorf("%w: unknown entity kind %q", domain.ErrConfigInvalid, r.kind)
}

func (p *SyncPipeline) done(ctx context.Context, r *run) *domain.SyncResult {
	startedAt := r.result.StartedAt
	patch := domain.ChannelPatch{
		LastSyncAt: &startedAt,
		Watermarks: map[domain.EntityKind]time.Time{r.kind: startedAt},
	}
	if err := p.channels.Save(ctx, r.channel.ID, patch); err != nil {
		return p.fail(r, fmt.Errorf("failed to record sync watermark: %w", err))
	}

	p.transition(r, domain.SyncDone)
	r.cursor.HasNextPage = false
	r.result.Status = domain.SyncDone
	r.result.Success = true
	r.result.FinishedAt = p.now()
	p.recorder.RunFinished(r.kind, domain.SyncDone, r.result.FinishedAt.Sub(startedAt))
	p.publish(r, domain.StageDone, r.cursor.PageIndex, "")

	r.logger.Info().
		Int("pages", r.result.PagesProcessed).
		Int("records", r.result.RecordsProcessed).
		Int("warnings", r.result.Warnings).
		Dur("elapsed", r.result.FinishedAt.Sub(startedAt)).
		Msg("Sync completed")
	return r.result
}

func (p *SyncPipeline) fail(r *run, err error) *domain.SyncResult {
	p.transition(r, domain.SyncError)
	r.result.Status = domain.SyncError
	r.result.Error = err.Error()
	r.result.Err = err
	r.result.Origin = domain.OriginOf(err)
	r.result.Remedy = domain.Remedy(err)
	r.result.Cursor = p.resumeCursor(r)
	r.result.FinishedAt = p.now()
	p.recorder.RunFinished(r.kind, domain.SyncError, r.result.FinishedAt.Sub(r.result.StartedAt))
	p.publish(r, domain.StageFailed, r.cursor.PageIndex, err.Error())

	r.logger.Error().
		Err(err).
		Str("origin", string(r.result.Origin)).
		Int("pages", r.result.PagesProcessed).
		Int("records", r.result.RecordsProcessed).
		Msg("Sync failed")
	return r.result
}

func (p *SyncPipeline) cancel(r *run, err error) *domain.SyncResult {
	p.transition(r, domain.SyncCancelled)
	r.result.Status = domain.SyncCancelled
	r.result.Error = err.Error()
	r.result.Err = err
	r.result.Origin = domain.OriginInternal
	r.result.Remedy = domain.Remedy(err)
	r.result.Cursor = p.resumeCursor(r)
	r.result.FinishedAt = p.now()
	p.recorder.RunFinished(r.kind, domain.SyncCancelled, r.result.FinishedAt.Sub(r.result.StartedAt))
	p.publish(r, domain.StageCancelled, r.cursor.PageIndex, err.Error())

	r.logger.Warn().
		Int("pages", r.result.PagesProcessed).
		Int("records", r.result.RecordsProcessed).
		Msg("Sync cancelled at page boundary")
	return r.result
}

func (p *SyncPipeline) resumeCursor(r *run) *domain.SyncCursor {
	c := r.cursor
	return &c
}

func (p *SyncPipeline) transition(r *run, to domain.SyncStatus) {
	r.logger.Debug().Str("from", string(r.status)).Str("to", string(to)).Msg("Sync state transition")
	r.status = to
}

func (p *SyncPipeline) publish(r *run, stage domain.ProgressStage, page int, errMsg string) {
	p.progress.Publish(domain.ProgressEvent{
		ChannelID:        r.channel.ID,
		Kind:             r.kind,
		Stage:            stage,
		Page:             page,
		RecordsProcessed: r.result.RecordsProcessed,
		Error:            errMsg,
		At:               p.now(),
	})
}

func (p *SyncPipeline) warn(r *run, warnings ...domain.TransformWarning) {
	for _, w := range warnings {
		r.result.Warnings++
		r.logger.Warn().
			Str("externalId", w.ExternalID).
			Str("field", w.Field).
			Str("value", w.Value).
			Msg(w.Message)
	}
}

// Start runs a sync in the background, detached from the caller's cancellation.
// Background runs stop at the next page boundary once Shutdown is called.
// A run already in flight for the same channel and kind is skipped.
func (p *SyncPipeline) Start(ctx context.Context, channelID string, kind domain.EntityKind) {
	if p.base.Err() != nil {
		p.logger.Warn().Str("channelId", channelID).Str("entityKind", string(kind)).Msg("Sync pipeline shut down, trigger skipped")
		return
	}
	ctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stop := context.AfterFunc(p.base, cancel)
	p.background.Add(1)
	go func() {
		defer p.background.Done()
		defer stop()
		defer cancel()
		result, err := p.Sync(ctx, channelID, kind, nil)
		switch {
		case errors.Is(err, domain.ErrSyncInProgress):
			p.logger.Info().Str("channelId", channelID).Str("entityKind", string(kind)).Msg("Sync already running, trigger skipped")
		case err != nil:
			p.logger.Error().Err(err).Str("channelId", channelID).Str("entityKind", string(kind)).Msg("Background sync rejected")
		case !result.Success:
			ev := p.logger.Warn().Str("channelId", channelID).Str("entityKind", string(kind)).Str("status", string(result.Status)).Str("error", result.Error)
			if result.Cursor != nil {
				ev = ev.Int("resumePage", result.Cursor.PageIndex)
			}
			ev.Msg("Background sync did not complete")
		}
	}()
}

// Shutdown cancels every background run. Each one ends CANCELLED at its next page
// boundary; call Wait to block until they have returned.
func (p *SyncPipeline) Shutdown() {
	p.stop()
}

// Wait blocks until every background run started with Start has returned
func (p *SyncPipeline) Wait() {
	p.background.Wait()
}

func orderExternalIDs(orders []domain.Order) []string {
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		ids = append(ids, o.ExternalID)
	}
	return ids
}

func productExternalIDs(products []domain.Product) []string {
	ids := make([]string, 0, len(products))
	for _, p := range products {
		ids = append(ids, p.ExternalID)
	}
	return ids
}
