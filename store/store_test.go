package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/hybridrec/core"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	defer s.Close()

	_, err := s.Get(ctx, "missing")
	assert.True(t, core.IsStoreNotFound(err))

	value := []byte("v1")
	require.NoError(t, s.Set(ctx, "[ns]recommendations:u1:10", value, 60))
	value[0] = 'x'
	got, err := s.Get(ctx, "[ns]recommendations:u1:10")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), got)

	require.NoError(t, s.Set(ctx, "[ns]recommendations:u1:5", []byte("a")))
	require.NoError(t, s.Set(ctx, "[ns]recommendations:u2:10", []byte("b")))
	require.NoError(t, s.Set(ctx, "[ns]trending:global:10", []byte("c")))
	require.NoError(t, s.DeletePrefix(ctx, "[ns]recommendations:u1:"))
	assert.Equal(t, 2, s.Len())

	require.NoError(t, s.Delete(ctx, "[ns]trending:global:10"))
	_, err = s.Get(ctx, "[ns]trending:global:10")
	assert.True(t, core.IsStoreNotFound(err))
}

func TestMemoryStore_TTL(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStoreWithTTL(20*time.Millisecond, time.Minute)
	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	time.Sleep(40 * time.Millisecond)
	_, err := s.Get(ctx, "k")
	assert.True(t, core.IsStoreNotFound(err))
}

func TestEscapeGlob(t *testing.T) {
	assert.Equal(t, `\[hybridrec\]similar:1:`, escapeGlob("[hybridrec]similar:1:"))
	assert.Equal(t, `a\*b\?`, escapeGlob("a*b?"))
}

func TestInteractionLog(t *testing.T) {
	l := NewInteractionLog(0)
	assert.Equal(t, uint64(0), l.LastSeq())

	appendOne := func(it core.Interaction) uint64 { return l.Append(it, it) }
	s1 := appendOne(core.Interaction{UserID: "u1", ItemID: "A"})
	s2 := appendOne(core.Interaction{UserID: "u2", ItemID: "B"})
	s3 := appendOne(core.Interaction{UserID: "u1", ItemID: "C"})
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{s1, s2, s3})
	assert.Equal(t, uint64(3), l.UserSeq("u1"))
	assert.Equal(t, uint64(0), l.UserSeq("u3"))

	assert.Len(t, l.Since(1), 2)
	assert.Len(t, l.Between(0, 2), 2)
	between := l.Between(1, 3)
	require.Len(t, between, 2)
	assert.Equal(t, "B", between[0].ItemID)
	got := l.SinceForUser("u1", 0)
	require.Len(t, got, 2)
	assert.Equal(t, "C", got[1].ItemID)
	assert.Empty(t, l.SinceForUser("u1", 3))

	l.TrimThrough(2)
	assert.Equal(t, 1, l.Len())
	assert.Equal(t, uint64(3), l.UserSeq("u1"))
	assert.Equal(t, uint64(2), l.UserSeq("u2"))
	assert.Empty(t, l.Between(0, 2))
	assert.Equal(t, uint64(3), l.LastSeq())
}

func TestInteractionLog_KeepsRecordedForm(t *testing.T) {
	l := NewInteractionLog(0)
	zero := 0.0
	recorded := core.Interaction{UserID: "u1", ItemID: "A", Type: core.InteractionLike, Rating: &zero}
	effective, err := recorded.Normalize(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	l.Append(recorded, effective)

	got := l.SinceForUser("u1", 0)
	require.Len(t, got, 1)
	assert.Equal(t, 0.0, got[0].Weight)

	raw := l.Between(0, 1)
	require.Len(t, raw, 1)
	require.NotNil(t, raw[0].Rating)
	assert.Equal(t, 0.0, *raw[0].Rating)
	assert.Equal(t, 0.0, raw[0].Weight)
}

func TestInteractionLog_MaxEntries(t *testing.T) {
	l := NewInteractionLog(2)
	for i := 0; i < 5; i++ {
		it := core.Interaction{UserID: "u", ItemID: "A"}
		l.Append(it, it)
	}
	assert.Equal(t, 2, l.Len())
	assert.Equal(t, uint64(3), l.Dropped())
	assert.Len(t, l.Since(3), 2)
}

func TestMemoryInteractionStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryInteractionStore([]core.CatalogItem{{ID: "A"}}, nil, nil)
	s.PutItem(core.CatalogItem{ID: "A", Title: "updated"})
	s.PutItem(core.CatalogItem{ID: "B"})
	s.PutUser(core.UserProfile{ID: "u1"})
	require.NoError(t, s.AppendInteraction(ctx, core.Interaction{UserID: "u1", ItemID: "A"}))

	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "updated", items[0].Title)

	users, _ := s.ListUsers(ctx)
	assert.Len(t, users, 1)
	interactions, _ := s.ListInteractions(ctx)
	assert.Len(t, interactions, 1)
}

func TestFileInteractionStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.yaml")
	data := `
items:
  - id: "1"
    title: Phone reviews
    category: tech
    tags: [phone]
    attributes:
      price: 99
users:
  - id: u1
    prefer_tags: [phone]
interactions:
  - user_id: u1
    item_id: "1"
    type: like
    timestamp: 2026-01-02T03:04:05Z
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	s := NewFileInteractionStore(path)
	items, err := s.ListItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 99.0, items[0].Attributes["price"])

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"phone"}, users[0].PreferTags)

	interactions, err := s.ListInteractions(ctx)
	require.NoError(t, err)
	require.Len(t, interactions, 1)
	assert.Equal(t, core.InteractionLike, interactions[0].Type)
	assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), interactions[0].Timestamp.UTC())

	_, err = NewFileInteractionStore(filepath.Join(t.TempDir(), "none.yaml")).ListItems(ctx)
	assert.True(t, core.IsUnavailable(err))

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("items: [[["), 0o600))
	_, err = NewFileInteractionStore(bad).ListItems(ctx)
	assert.True(t, core.IsInvalidInput(err))
}
