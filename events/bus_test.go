package events

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/hybridrec/core"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := NewBus(16, zerolog.Nop())
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := bus.SubscribeInteractions(ctx)
	require.NoError(t, err)

	sent := []core.Interaction{
		{UserID: "u1", ItemID: "A", Type: core.InteractionView, Weight: 1},
		{UserID: "u2", ItemID: "B", Type: core.InteractionLike, Weight: 2},
	}
	for _, it := range sent {
		require.NoError(t, bus.PublishInteraction(context.Background(), it))
	}

	for _, want := range sent {
		select {
		case got := <-ch:
			assert.Equal(t, want.UserID, got.Interaction.UserID)
			assert.Equal(t, want.ItemID, got.Interaction.ItemID)
			assert.Equal(t, want.Type, got.Interaction.Type)
			assert.InDelta(t, want.Weight, got.Interaction.Weight, 1e-9)
			assert.False(t, got.RecordedAt.IsZero())
		case <-time.After(2 * time.Second):
			t.Fatal("event not delivered")
		}
	}
}

func TestBus_NoSubscriber(t *testing.T) {
	bus := NewBus(0, zerolog.Nop())
	t.Cleanup(func() { _ = bus.Close() })
	assert.NoError(t, bus.PublishInteraction(context.Background(), core.Interaction{UserID: "u1", ItemID: "A", Type: core.InteractionView}))
}

func TestBus_SubscriptionEndsWithContext(t *testing.T) {
	bus := NewBus(0, zerolog.Nop())
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := bus.SubscribeInteractions(ctx)
	require.NoError(t, err)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not closed")
	}
}
