package snapshot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/hybridrec/core"
)

func TestTrainer_Train(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	items := []core.CatalogItem{
		{ID: "A", Title: "Phone reviews", Category: "tech"},
		{ID: "B", Title: "Phone comparisons", Category: "tech"},
		{ID: "empty"},
	}
	users := []core.UserProfile{{ID: "u9", PreferTags: []string{"phone"}}}
	interactions := []core.Interaction{
		{UserID: "u1", ItemID: "A", Type: core.InteractionView, Timestamp: now.Add(-time.Hour)},
		{UserID: "u1", ItemID: "A", Type: core.InteractionLike, Timestamp: now.Add(-time.Hour)},
		{UserID: "u2", ItemID: "B", Type: core.InteractionLike, Timestamp: now.Add(-90 * 24 * time.Hour)},
		{UserID: "u3", ItemID: "gone", Type: core.InteractionLike, Timestamp: now},
	}

	tr := NewTrainer(TrainConfig{RecentWindow: 30 * 24 * time.Hour, Now: func() time.Time { return now }})
	snap, err := tr.Train(context.Background(), 7, 42, items, users, interactions)
	require.NoError(t, err)

	assert.Equal(t, int64(7), snap.Version)
	assert.Equal(t, uint64(42), snap.TailSeq)
	assert.Equal(t, now, snap.BuiltAt)
	assert.Equal(t, []string{"A", "B"}, snap.ItemIDs)
	_, ok := snap.Item("empty")
	assert.False(t, ok)

	assert.Equal(t, 2, snap.Stats.Items)
	assert.Equal(t, 1, snap.Stats.SkippedItems)
	assert.Equal(t, 1, snap.Stats.DroppedInteractions)
	assert.Equal(t, 3, snap.Stats.Interactions)
	assert.Greater(t, snap.Stats.Vocabulary, 0)

	h := snap.UserHistory("u1")
	assert.Greater(t, h["A"], 0.0)
	assert.Len(t, snap.Recent, 2, "interactions older than the window are not kept")

	assert.True(t, snap.Content.Has("A"))
	assert.True(t, snap.Factors.HasItem("A"))
	assert.True(t, snap.Factors.HasUser("u9"))
	assert.NotNil(t, snap.Profile("u9"))
}

func TestTrainer_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr := NewTrainer(TrainConfig{})
	_, err := tr.Train(ctx, 1, 0,
		[]core.CatalogItem{{ID: "A", Title: "a title"}},
		nil,
		[]core.Interaction{{UserID: "u", ItemID: "A", Type: core.InteractionLike}},
	)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTrainer_NoUsableItems(t *testing.T) {
	tr := NewTrainer(TrainConfig{})
	_, err := tr.Train(context.Background(), 1, 0, []core.CatalogItem{{ID: "x"}}, nil, nil)
	require.Error(t, err)
	assert.True(t, core.IsFeatureBuild(err))
}
