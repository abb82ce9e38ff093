package pubsub

import (
	"context"
	"fmt"
	"sync"

	"warehouse-channel-sync/internal/domain"
	"warehouse-channel-sync/internal/ports"

	"github.com/rs/zerolog"
)

// ProgressSubscription represents a subscription channel
type ProgressSubscription struct {
	ID     string
	Filter *ProgressFilter
	Events chan domain.ProgressEvent
	Done   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
}

// ProgressFilter filters progress events
type ProgressFilter struct {
	ChannelID string              // Filter by channel
	Kinds     []domain.EntityKind // Filter by entity kind
}

// ProgressPubSub fans pipeline progress events out to subscribers
type ProgressPubSub struct {
	mu     sync.RWMutex
	subs   map[string]*ProgressSubscription
	buffer int
	logger zerolog.Logger
	nextID int64
	idMu   sync.Mutex
}

// NewProgressPubSub creates a new progress pub/sub system
func NewProgressPubSub(buffer int, logger zerolog.Logger) *ProgressPubSub {
	if buffer <= 0 {
		buffer = 32
	}
	return &ProgressPubSub{
		subs:   make(map[string]*ProgressSubscription),
		buffer: buffer,
		logger: logger,
	}
}

// Subscribe creates a new subscription that is removed when ctx is cancelled
func (ps *ProgressPubSub) Subscribe(ctx context.Context, filter *ProgressFilter) *ProgressSubscription {
	ps.idMu.Lock()
	id := ps.generateID()
	ps.idMu.Unlock()

	subCtx, cancel := context.WithCancel(ctx)

	sub := &ProgressSubscription{
		ID:     id,
		Filter: filter,
		Events: make(chan domain.ProgressEvent, ps.buffer),
		Done:   make(chan struct{}),
		ctx:    subCtx,
		cancel: cancel,
	}

	ps.mu.Lock()
	ps.subs[id] = sub
	ps.mu.Unlock()

	ps.logger.Debug().
		Str("subscriptionId", id).
		Interface("filter", filter).
		Msg("Progress subscription created")

	go func() {
		<-subCtx.Done()
		ps.Unsubscribe(id)
	}()

	return sub
}

// Unsubscribe removes a subscription
func (ps *ProgressPubSub) Unsubscribe(id string) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	sub, exists := ps.subs[id]
	if !exists {
		return
	}

	close(sub.Events)
	close(sub.Done)
	sub.cancel()
	delete(ps.subs, id)

	ps.logger.Debug().
		Str("subscriptionId", id).
		Msg("Progress subscription removed")
}

// Publish broadcasts an event to all matching subscribers without blocking
func (ps *ProgressPubSub) Publish(event domain.ProgressEvent) {
	ps.mu.RLock()
	defer ps.mu.RUnlock()

	for _, sub := range ps.subs {
		if !matchesFilter(event, sub.Filter) {
			continue
		}
		select {
		case sub.Events <- event:
		case <-sub.ctx.Done():
		default:
			ps.logger.Warn().
				Str("subscriptionId", sub.ID).
				Str("channelId", event.ChannelID).
				Msg("Subscriber buffer full, dropping progress event")
		}
	}
}

// SubscriberCount returns the number of active subscriptions
func (ps *ProgressPubSub) SubscriberCount() int {
	ps.mu.RLock()
	defer ps.mu.RUnlock()
	return len(ps.subs)
}

func matchesFilter(event domain.ProgressEvent, filter *ProgressFilter) bool {
	if filter == nil {
		return true
	}
	if filter.ChannelID != "" && event.ChannelID != filter.ChannelID {
		return false
	}
	if len(filter.Kinds) > 0 {
		for _, kind := range filter.Kinds {
			if event.Kind == kind {
				return true
			}
		}
		return false
	}
	return true
}

func (ps *ProgressPubSub) generateID() string {
	ps.nextID++
	return fmt.Sprintf("sub-%d", ps.nextID)
}

var _ ports.ProgressPublisher = (*ProgressPubSub)(nil)
