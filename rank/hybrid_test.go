package rank

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/snapshot"
)

func TestCombine(t *testing.T) {
	w := DefaultWeights()
	tests := []struct {
		name    string
		collab  Signal
		content Signal
		w       Weights
		want    float64
	}{
		{"both", Signal{1, true}, Signal{0, true}, w, 0.7},
		{"both mid", Signal{0.5, true}, Signal{1, true}, w, 0.65},
		{"collab only", Signal{0.8, true}, Signal{}, w, 0.8},
		{"content only", Signal{}, Signal{0.4, true}, w, 0.4},
		{"neither", Signal{}, Signal{}, w, 0.5},
		{"zero weights", Signal{1, true}, Signal{1, true}, Weights{}, 0.5},
		{"clamp high", Signal{3, true}, Signal{2, true}, w, 1},
		{"clamp low", Signal{-1, true}, Signal{-2, true}, w, 0},
		{"nan is unavailable", Signal{math.NaN(), true}, Signal{0.2, true}, w, 0.2},
		{"inf is unavailable", Signal{math.Inf(1), true}, Signal{}, w, 0.5},
		{"content weight only", Signal{1, true}, Signal{0.3, true}, Weights{Content: 1}, 0.3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Combine(tt.collab, tt.content, tt.w)
			assert.InDelta(t, tt.want, got, 1e-9)
			assert.False(t, math.IsNaN(got))
		})
	}
}

func abcSnapshot(t *testing.T) *snapshot.Snapshot {
	t.Helper()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	items := []core.CatalogItem{
		{ID: "A", Title: "Phone reviews", Category: "tech"},
		{ID: "B", Title: "Phone comparisons", Category: "tech"},
		{ID: "C", Title: "Beach guide", Category: "travel"},
	}
	var interactions []core.Interaction
	for u := 1; u <= 5; u++ {
		uid := fmt.Sprintf("u%d", u)
		interactions = append(interactions,
			core.Interaction{UserID: uid, ItemID: "A", Type: core.InteractionLike},
			core.Interaction{UserID: uid, ItemID: "B", Type: core.InteractionLike},
		)
	}
	interactions = append(interactions,
		core.Interaction{UserID: "u6", ItemID: "C", Type: core.InteractionLike},
		core.Interaction{UserID: "target", ItemID: "A", Type: core.InteractionView},
	)
	tr := snapshot.NewTrainer(snapshot.TrainConfig{Now: func() time.Time { return now }})
	snap, err := tr.Train(context.Background(), 1, 0, items, nil, interactions)
	require.NoError(t, err)
	return snap
}

func candidates(ids ...string) []*core.Item {
	out := make([]*core.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, core.NewItem(id))
	}
	return out
}

func TestHybridNode_ABC(t *testing.T) {
	snap := abcSnapshot(t)
	ctx := snapshot.NewContext(context.Background(), snap)
	rctx := &core.RecommendContext{UserID: "target", History: snap.UserHistory("target")}

	out, err := NewHybridNode().Process(ctx, rctx, candidates("C", "B"))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "B", out[0].ID)
	assert.Equal(t, "C", out[1].ID)
	for _, it := range out {
		assert.GreaterOrEqual(t, it.Score, 0.0)
		assert.LessOrEqual(t, it.Score, 1.0)
		assert.Equal(t, "collab,content", it.Labels["rank_signals"].Value)
	}
	assert.Greater(t, out[0].Features["content_score"], out[1].Features["content_score"])
}

func TestHybridNode_ColdUser(t *testing.T) {
	snap := abcSnapshot(t)
	ctx := snapshot.NewContext(context.Background(), snap)

	// 完全未知的用户：两路都不可用，全部中性分，按 ID 排序
	out, err := NewHybridNode().Process(ctx, &core.RecommendContext{UserID: "nobody"}, candidates("C", "A", "B"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, []string{out[0].ID, out[1].ID, out[2].ID})
	for _, it := range out {
		assert.Equal(t, 0.5, it.Score)
		assert.Equal(t, "neutral", it.Labels["rank_signals"].Value)
	}

	// 只有偏好标签的新用户：内容画像来自标签文本
	rctx := &core.RecommendContext{UserID: "newbie", User: &core.UserProfile{ID: "newbie", PreferTags: []string{"beach"}}}
	out, err = NewHybridNode().Process(ctx, rctx, candidates("A", "C"))
	require.NoError(t, err)
	assert.Equal(t, "C", out[0].ID)
	assert.Equal(t, "content", out[0].Labels["rank_signals"].Value)
}

func TestHybridNode_ContentOnly(t *testing.T) {
	snap := abcSnapshot(t)
	ctx := snapshot.NewContext(context.Background(), snap)

	in := candidates("C", "B")
	in[0].Features["content"] = 0.1
	in[1].Features["content"] = 0.6
	n := &HybridNode{Weights: DefaultWeights(), UseContent: true}
	out, err := n.Process(ctx, &core.RecommendContext{UserID: "target"}, in)
	require.NoError(t, err)
	assert.Equal(t, "B", out[0].ID)
	assert.InDelta(t, 0.6, out[0].Score, 1e-9)
	assert.InDelta(t, 0.1, out[1].Score, 1e-9)
	_, hasCollab := out[0].Features["collab"]
	assert.False(t, hasCollab)
}

func TestHybridNode_NoSnapshot(t *testing.T) {
	_, err := NewHybridNode().Process(context.Background(), nil, candidates("A"))
	require.Error(t, err)
	assert.True(t, core.IsUnavailable(err))

	out, err := NewHybridNode().Process(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}
