package pubsub

import (
	"context"
	"testing"
	"time"

	"warehouse-channel-sync/internal/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func receive(t *testing.T, sub *ProgressSubscription) (domain.ProgressEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-sub.Events:
		return ev, ok
	case <-time.After(100 * time.Millisecond):
		return domain.ProgressEvent{}, false
	}
}

func TestProgressPubSub_FilterByChannel(t *testing.T) {
	ps := NewProgressPubSub(4, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mine := ps.Subscribe(ctx, &ProgressFilter{ChannelID: "ch-1"})
	all := ps.Subscribe(ctx, nil)

	ps.Publish(domain.ProgressEvent{ChannelID: "ch-2", Kind: domain.EntityOrders, Stage: domain.StageStarting})
	ps.Publish(domain.ProgressEvent{ChannelID: "ch-1", Kind: domain.EntityOrders, Stage: domain.StageFetchingPage, Page: 1})

	ev, ok := receive(t, mine)
	require.True(t, ok)
	assert.Equal(t, "ch-1", ev.ChannelID)
	assert.Equal(t, 1, ev.Page)

	_, ok = receive(t, mine)
	assert.False(t, ok, "events for other channels must be filtered")

	first, ok := receive(t, all)
	require.True(t, ok)
	assert.Equal(t, "ch-2", first.ChannelID)
	second, ok := receive(t, all)
	require.True(t, ok)
	assert.Equal(t, "ch-1", second.ChannelID)
}

func TestProgressPubSub_FilterByKind(t *testing.T) {
	ps := NewProgressPubSub(4, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := ps.Subscribe(ctx, &ProgressFilter{Kinds: []domain.EntityKind{domain.EntityProducts}})
	ps.Publish(domain.ProgressEvent{ChannelID: "ch-1", Kind: domain.EntityOrders})
	ps.Publish(domain.ProgressEvent{ChannelID: "ch-1", Kind: domain.EntityProducts})

	ev, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, domain.EntityProducts, ev.Kind)
}

func TestProgressPubSub_PublishNeverBlocks(t *testing.T) {
	ps := NewProgressPubSub(1, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub := ps.Subscribe(ctx, nil)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10; i++ {
			ps.Publish(domain.ProgressEvent{ChannelID: "ch-1", Page: i})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}

	ev, ok := receive(t, sub)
	require.True(t, ok)
	assert.Equal(t, 0, ev.Page, "only the buffered event survives")
}

func TestProgressPubSub_UnsubscribeOnCancel(t *testing.T) {
	ps := NewProgressPubSub(1, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	sub := ps.Subscribe(ctx, nil)
	assert.Equal(t, 1, ps.SubscriberCount())

	cancel()
	select {
	case <-sub.Done:
	case <-time.After(time.Second):
		t.Fatal("subscription not removed after cancel")
	}
	assert.Equal(t, 0, ps.SubscriberCount())

	ps.Unsubscribe(sub.ID)
	ps.Publish(domain.ProgressEvent{ChannelID: "ch-1"})
}
