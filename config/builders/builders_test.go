package builders

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/hybridrec/config"
	"github.com/rushteam/hybridrec/filter"
	"github.com/rushteam/hybridrec/pipeline"
	"github.com/rushteam/hybridrec/rank"
	"github.com/rushteam/hybridrec/recall"
	"github.com/rushteam/hybridrec/rerank"
)

const testPipelines = `
pipelines:
  recommendations:
    nodes:
      - type: recall.fanout
        config:
          merge_strategy: priority
          timeout: 2s
          sources:
            - type: recall.catalog
            - type: recall.history_content
              per_seed: 5
            - type: trending
      - type: filter
        config:
          filters:
            - type: interacted
            - type: blocklist
              item_ids: [X]
            - type: rule
              expr: item.score < 0
      - type: rank.hybrid
      - type: rerank.topn
`

func TestRegisteredTypes(t *testing.T) {
	types := config.SupportedTypes()
	for _, want := range []string{
		"recall.catalog", "recall.content", "recall.history_content", "recall.trending",
		"recall.fanout", "filter", "rank.hybrid", "rerank.topn", "rerank.diversity",
	} {
		assert.Contains(t, types, want)
	}
}

func TestBuildPipeline(t *testing.T) {
	cfg, err := pipeline.Parse([]byte(testPipelines))
	require.NoError(t, err)
	require.NoError(t, config.ValidatePipelineConfig(cfg))

	cfg.ApplyDefaults(map[string]map[string]any{
		"rank.hybrid":     {"weights": map[string]any{"collab": 0.6, "content": 0.4}},
		"recall.trending": {"half_life": 24 * time.Hour},
	})

	p, err := cfg.BuildPipeline("recommendations", config.DefaultFactory())
	require.NoError(t, err)
	require.Len(t, p.Nodes, 4)

	fanout, ok := p.Nodes[0].(*recall.Fanout)
	require.True(t, ok)
	assert.Equal(t, recall.MergePriority, fanout.MergeStrategy)
	assert.Equal(t, 2*time.Second, fanout.Timeout)
	require.Len(t, fanout.Sources, 3)
	assert.Equal(t, 5, fanout.Sources[1].(*recall.HistoryContent).PerSeed)
	// 短名不会匹配到缺省值，保持内置默认
	assert.Equal(t, recall.DefaultTrendingHalfLife, fanout.Sources[2].(*recall.Trending).HalfLife)

	fn, ok := p.Nodes[1].(*filter.FilterNode)
	require.True(t, ok)
	assert.Len(t, fn.Filters, 3)

	hybrid, ok := p.Nodes[2].(*rank.HybridNode)
	require.True(t, ok)
	assert.Equal(t, rank.Weights{Collab: 0.6, Content: 0.4}, hybrid.Weights)
	assert.True(t, hybrid.UseCollab)

	_, ok = p.Nodes[3].(*rerank.TopNNode)
	assert.True(t, ok)
}

func TestBuilders_Errors(t *testing.T) {
	tests := []struct {
		name    string
		builder pipeline.NodeBuilder
		cfg     map[string]any
	}{
		{"fanout without sources", BuildFanoutNode, map[string]any{}},
		{"fanout unknown source", BuildFanoutNode, map[string]any{"sources": []any{map[string]any{"type": "ann"}}}},
		{"fanout bad strategy", BuildFanoutNode, map[string]any{
			"sources":        []any{map[string]any{"type": "catalog"}},
			"merge_strategy": "random",
		}},
		{"filter without filters", FilterBuilder(nil), map[string]any{}},
		{"filter unknown type", FilterBuilder(nil), map[string]any{"filters": []any{map[string]any{"type": "exposed"}}}},
		{"filter bad rule", FilterBuilder(nil), map[string]any{"filters": []any{map[string]any{"type": "rule", "expr": "item.score >"}}}},
		{"hybrid negative weight", BuildHybridNode, map[string]any{"weights": map[string]any{"collab": -1}}},
		{"hybrid no signals", BuildHybridNode, map[string]any{"collab": false, "content": false}},
		{"topn negative", BuildTopNNode, map[string]any{"n": -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder(tt.cfg)
			assert.Error(t, err)
		})
	}
}

func TestValidatePipelineConfig_Unsupported(t *testing.T) {
	cfg, err := pipeline.Parse([]byte(`
pipelines:
  p:
    nodes:
      - type: rank.lr
`))
	require.NoError(t, err)
	assert.ErrorContains(t, config.ValidatePipelineConfig(cfg), "rank.lr")
}
