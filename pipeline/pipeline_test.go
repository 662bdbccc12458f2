package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/hybridrec/core"
)

type appendNode struct {
	id   string
	kind Kind
	err  error
}

func (n *appendNode) Name() string { return "append." + n.id }
func (n *appendNode) Kind() Kind {
	if n.kind == "" {
		return KindRecall
	}
	return n.kind
}
func (n *appendNode) Process(_ context.Context, _ *core.RecommendContext, items []*core.Item) ([]*core.Item, error) {
	if n.err != nil {
		return nil, n.err
	}
	return append(items, core.NewItem(n.id)), nil
}

func TestPipeline_Run(t *testing.T) {
	p := &Pipeline{Name: "test", Nodes: []Node{&appendNode{id: "1"}, &appendNode{id: "2"}}}
	got, err := p.Run(context.Background(), &core.RecommendContext{}, nil)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "2", got[1].ID)

	boom := errors.New("boom")
	p.Nodes = append(p.Nodes, &appendNode{id: "3", err: boom})
	_, err = p.Run(context.Background(), &core.RecommendContext{}, nil)
	assert.ErrorIs(t, err, boom)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx, &core.RecommendContext{}, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

const testYAML = `
pipelines:
  demo:
    nodes:
      - type: append
        config:
          id: "1"
      - type: fanout
        config:
          sources:
            - type: append
  other:
    nodes: []
`

func testFactory() *NodeFactory {
	f := NewNodeFactory()
	f.Register("append", func(cfg map[string]any) (Node, error) {
		id, _ := cfg["id"].(string)
		return &appendNode{id: id}, nil
	})
	return f
}

func TestConfig_BuildPipeline(t *testing.T) {
	cfg, err := Parse([]byte(testYAML))
	require.NoError(t, err)
	assert.Equal(t, []string{"demo", "other"}, cfg.Names())

	cfg.ApplyDefaults(map[string]map[string]any{"append": {"id": "default", "extra": 1}})
	assert.Equal(t, "1", cfg.Pipelines["demo"].Nodes[0].Config["id"])
	assert.Equal(t, 1, cfg.Pipelines["demo"].Nodes[0].Config["extra"])
	src := cfg.Pipelines["demo"].Nodes[1].Config["sources"].([]any)[0].(map[string]any)
	assert.Equal(t, "default", src["id"])

	_, err = cfg.BuildPipeline("demo", testFactory())
	require.Error(t, err) // fanout 未注册
	_, err = cfg.BuildPipeline("missing", testFactory())
	require.Error(t, err)

	p, err := cfg.BuildPipeline("other", testFactory())
	require.NoError(t, err)
	assert.Equal(t, "other", p.Name)
	assert.Empty(t, p.Nodes)
}

func TestConfig_LoadAndMerge(t *testing.T) {
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "p.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"pipelines":{"demo":{"nodes":[{"type":"append","config":{"id":"j"}}]}}}`), 0o600))

	override, err := Load(jsonPath)
	require.NoError(t, err)

	base, err := Parse([]byte(testYAML))
	require.NoError(t, err)
	base.Merge(override)
	p, err := base.BuildPipeline("demo", testFactory())
	require.NoError(t, err)
	require.Len(t, p.Nodes, 1)
	assert.Equal(t, "append.j", p.Nodes[0].Name())

	_, err = Load(filepath.Join(dir, "none.yaml"))
	assert.Error(t, err)
}

func TestCheckOrder(t *testing.T) {
	tests := []struct {
		name  string
		kinds []Kind
		ok    bool
	}{
		{"empty", nil, true},
		{"full chain", []Kind{KindRecall, KindFilter, KindRank, KindReRank, KindPostProcess}, true},
		{"repeated stage", []Kind{KindRecall, KindRecall, KindFilter, KindFilter, KindReRank}, true},
		{"unknown kind ignored", []Kind{KindRank, Kind("custom"), KindReRank}, true},
		{"filter after rank", []Kind{KindRecall, KindRank, KindFilter}, false},
		{"recall last", []Kind{KindFilter, KindRecall}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nodes := make([]Node, 0, len(tt.kinds))
			for k, kind := range tt.kinds {
				nodes = append(nodes, &appendNode{id: string(rune('a' + k)), kind: kind})
			}
			err := checkOrder(nodes)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConfig_BuildPipeline_RejectsOrder(t *testing.T) {
	cfg, err := Parse([]byte(`
pipelines:
  bad:
    nodes:
      - type: rank
      - type: append
`))
	require.NoError(t, err)
	f := testFactory()
	f.Register("rank", func(map[string]any) (Node, error) {
		return &appendNode{id: "r", kind: KindRank}, nil
	})
	_, err = cfg.BuildPipeline("bad", f)
	assert.ErrorContains(t, err, "placed after")
}
