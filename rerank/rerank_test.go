package rerank

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/hybridrec/core"
)

type spec struct {
	id       string
	score    float64
	category string
}

func build(specs ...spec) []*core.Item {
	out := make([]*core.Item, 0, len(specs))
	for _, s := range specs {
		it := core.NewItem(s.id)
		it.Score = s.score
		if s.category != "" {
			it.Meta["category"] = s.category
		}
		out = append(out, it)
	}
	return out
}

func ids(items []*core.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.ID)
	}
	return out
}

func TestTopNNode(t *testing.T) {
	input := func() []*core.Item {
		return build(spec{"C", 0.2, ""}, spec{"item10", 0.9, ""}, spec{"item2", 0.9, ""}, spec{"A", 0.5, ""})
	}
	tests := []struct {
		name  string
		n     int
		limit int
		want  []string
	}{
		{"n", 2, 0, []string{"item2", "item10"}},
		{"limit from rctx", 0, 3, []string{"item2", "item10", "A"}},
		{"n wins", 1, 3, []string{"item2"}},
		{"no limit", 0, 0, []string{"item2", "item10", "A", "C"}},
		{"larger than input", 10, 0, []string{"item2", "item10", "A", "C"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := (&TopNNode{N: tt.n}).Process(context.Background(), &core.RecommendContext{Limit: tt.limit}, input())
			require.NoError(t, err)
			assert.Equal(t, tt.want, ids(out))
		})
	}
}

func TestDiversity(t *testing.T) {
	in := build(
		spec{"A", 0.9, "tech"},
		spec{"B", 0.8, "tech"},
		spec{"C", 0.7, "travel"},
		spec{"D", 0.6, ""},
		spec{"E", 0.5, "tech"},
	)
	out, err := (&Diversity{}).Process(context.Background(), nil, in)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "D", "B", "E"}, ids(out))

	out, err = (&Diversity{MaxPerCategory: 2}).Process(context.Background(), nil, build(
		spec{"A", 0.9, "tech"}, spec{"B", 0.8, "tech"}, spec{"E", 0.5, "tech"}, spec{"C", 0.4, "travel"},
	))
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C", "E"}, ids(out))
}
