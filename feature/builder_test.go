package feature

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/hybridrec/core"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestBuilder() *Builder {
	b := NewBuilder()
	b.Now = func() time.Time { return fixedNow }
	return b
}

func TestBuilder_Build(t *testing.T) {
	items := []core.CatalogItem{
		{ID: "2", Title: "Phone comparisons", Category: "tech", Tags: []string{"Phone"}},
		{ID: "1", Title: "Phone reviews", Category: "tech", Attributes: map[string]float64{"price": 99}},
		{ID: "3"},
	}
	users := []core.UserProfile{{ID: "u1", PreferTags: []string{"phone"}}}
	interactions := []core.Interaction{
		{UserID: "u1", ItemID: "1", Type: core.InteractionView},
		{UserID: "u1", ItemID: "1", Type: core.InteractionLike},
		{UserID: "u2", ItemID: "2", Type: core.InteractionPurchase},
		{UserID: "u2", ItemID: "3", Type: core.InteractionView},
		{UserID: "u2", ItemID: "2", Type: core.InteractionView, Weight: -3},
	}

	f, err := newTestBuilder().Build(items, users, interactions)
	require.NoError(t, err)

	require.Len(t, f.Items, 2)
	assert.Equal(t, "1", f.Items[0].ID)
	assert.Equal(t, "2", f.Items[1].ID)
	assert.Equal(t, "Phone reviews tech", f.Items[0].Text)
	assert.Equal(t, 1.0, f.Items[0].Attrs["category=tech"])
	assert.InDelta(t, math.Log1p(99), f.Items[0].Attrs["attr:price"], 1e-9)
	assert.Equal(t, 1.0, f.Items[1].Attrs["tag=phone"])
	assert.InDelta(t, math.Log1p(3), f.Items[0].Attrs["popularity"], 1e-9)

	require.Len(t, f.Skipped, 1)
	assert.True(t, core.IsFeatureBuild(f.Skipped[0]))
	assert.Equal(t, 2, f.DroppedInteractions)

	require.Len(t, f.Users, 2)
	assert.Equal(t, "u1", f.Users[0].ID)
	assert.Equal(t, 1.0, f.Users[0].Attrs["tag=phone"])
	assert.Equal(t, "u2", f.Users[1].ID)

	u1, ok := f.Matrix.UserIndex("u1")
	require.True(t, ok)
	i1, ok := f.Matrix.ItemIndex("1")
	require.True(t, ok)
	assert.InDelta(t, 3.0, f.Matrix.Weight(u1, i1), 1e-9)
	assert.Equal(t, 2, f.Matrix.NNZ())

	for _, it := range f.Interactions {
		assert.Equal(t, fixedNow, it.Timestamp)
	}
}

func TestBuilder_Caps(t *testing.T) {
	items := []core.CatalogItem{
		{ID: "a", Title: "alpha"},
		{ID: "b", Title: "beta"},
		{ID: "c", Title: "gamma"},
	}
	var interactions []core.Interaction
	for i := 0; i < 20; i++ {
		interactions = append(interactions, core.Interaction{UserID: "heavy", ItemID: "a", Type: core.InteractionPurchase})
	}
	interactions = append(interactions,
		core.Interaction{UserID: "heavy", ItemID: "b", Type: core.InteractionView, Weight: 8},
		core.Interaction{UserID: "heavy", ItemID: "c", Type: core.InteractionView, Weight: 2},
	)

	b := newTestBuilder()
	b.MaxPairWeight = 10
	b.MaxUserWeight = 10
	f, err := b.Build(items, nil, interactions)
	require.NoError(t, err)

	u, _ := f.Matrix.UserIndex("heavy")
	assert.InDelta(t, 10.0, f.Matrix.RowWeight(u), 1e-9)
	// a 先被封顶为 10，再与 b、c 一起按 10/20 缩放
	ia, _ := f.Matrix.ItemIndex("a")
	ib, _ := f.Matrix.ItemIndex("b")
	assert.InDelta(t, 5.0, f.Matrix.Weight(u, ia), 1e-9)
	assert.InDelta(t, 4.0, f.Matrix.Weight(u, ib), 1e-9)
}

func TestBuilder_Errors(t *testing.T) {
	t.Run("empty catalog is not an error", func(t *testing.T) {
		f, err := newTestBuilder().Build(nil, nil, nil)
		require.NoError(t, err)
		assert.Empty(t, f.Items)
		assert.Equal(t, 0, f.Matrix.NNZ())
	})

	t.Run("all items malformed", func(t *testing.T) {
		_, err := newTestBuilder().Build([]core.CatalogItem{{ID: "x"}, {ID: ""}}, nil, nil)
		require.Error(t, err)
		assert.True(t, core.IsFeatureBuild(err))
	})
}

func TestBuilder_TagBuckets(t *testing.T) {
	b := newTestBuilder()
	b.TagBuckets = 8
	f, err := b.Build([]core.CatalogItem{{ID: "1", Tags: []string{"phone"}}}, nil, nil)
	require.NoError(t, err)
	require.Len(t, f.Items, 1)
	found := false
	for k := range f.Items[0].Attrs {
		if len(k) > len("tag_hash_") && k[:len("tag_hash_")] == "tag_hash_" {
			found = true
		}
	}
	assert.True(t, found)
}
