package builders

import (
	"fmt"
	"strings"

	"github.com/rushteam/hybridrec/config"
	"github.com/rushteam/hybridrec/filter"
	"github.com/rushteam/hybridrec/pipeline"
	"github.com/rushteam/hybridrec/pkg/conv"
	"github.com/rushteam/hybridrec/rank"
	"github.com/rushteam/hybridrec/recall"
	"github.com/rushteam/hybridrec/rerank"
)

func init() {
	config.Register("recall.catalog", BuildCatalogNode)
	config.Register("recall.content", BuildContentNode)
	config.Register("recall.history_content", BuildHistoryContentNode)
	config.Register("recall.trending", BuildTrendingNode)
	config.Register("recall.fanout", BuildFanoutNode)
	config.Register("filter", FilterBuilder(nil))
	config.Register("rank.hybrid", BuildHybridNode)
	config.Register("rerank.topn", BuildTopNNode)
	config.Register("rerank.diversity", BuildDiversityNode)
}

func BuildCatalogNode(map[string]any) (pipeline.Node, error) {
	return &recall.Catalog{}, nil
}

func BuildContentNode(cfg map[string]any) (pipeline.Node, error) {
	return buildContent(cfg), nil
}

func BuildHistoryContentNode(cfg map[string]any) (pipeline.Node, error) {
	return buildHistoryContent(cfg), nil
}

func BuildTrendingNode(cfg map[string]any) (pipeline.Node, error) {
	return buildTrending(cfg), nil
}

func buildContent(cfg map[string]any) *recall.ContentSimilar {
	return &recall.ContentSimilar{TopK: int(conv.ConfigGetInt64(cfg, "top_k", 0))}
}

func buildHistoryContent(cfg map[string]any) *recall.HistoryContent {
	return &recall.HistoryContent{
		MaxSeeds: int(conv.ConfigGetInt64(cfg, "max_seeds", 0)),
		PerSeed:  int(conv.ConfigGetInt64(cfg, "per_seed", 0)),
	}
}

func buildTrending(cfg map[string]any) *recall.Trending {
	return &recall.Trending{
		Window:   conv.ConfigGetDuration(cfg, "window", recall.DefaultTrendingWindow),
		HalfLife: conv.ConfigGetDuration(cfg, "half_life", recall.DefaultTrendingHalfLife),
	}
}

// buildSource 构建 fanout 的召回源，type 可写全名（recall.trending）或短名（trending）。
func buildSource(cfg map[string]any) (recall.Source, error) {
	typ := strings.TrimPrefix(conv.ConfigGet(cfg, "type", ""), "recall.")
	switch typ {
	case "catalog":
		return &recall.Catalog{}, nil
	case "content":
		return buildContent(cfg), nil
	case "history_content":
		return buildHistoryContent(cfg), nil
	case "trending":
		return buildTrending(cfg), nil
	default:
		return nil, fmt.Errorf("unknown source type: %q", typ)
	}
}

func BuildFanoutNode(cfg map[string]any) (pipeline.Node, error) {
	sourcesConfig, ok := cfg["sources"].([]any)
	if !ok || len(sourcesConfig) == 0 {
		return nil, fmt.Errorf("sources not found or invalid")
	}
	sources := make([]recall.Source, 0, len(sourcesConfig))
	for _, sc := range sourcesConfig {
		sourceMap, ok := sc.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("source config must be a map, got %T", sc)
		}
		src, err := buildSource(sourceMap)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	fanout := &recall.Fanout{
		Sources:       sources,
		Dedup:         conv.ConfigGet(cfg, "dedup", true),
		Timeout:       conv.ConfigGetDuration(cfg, "timeout", 0),
		MaxConcurrent: int(conv.ConfigGetInt64(cfg, "max_concurrent", 0)),
	}
	switch s := conv.ConfigGet(cfg, "merge_strategy", ""); s {
	case "", recall.MergeFirst:
		fanout.MergeStrategy = recall.MergeFirst
	case recall.MergePriority, recall.MergeUnion:
		fanout.MergeStrategy = s
	default:
		return nil, fmt.Errorf("unknown merge strategy: %q", s)
	}
	return fanout, nil
}

// FilterBuilder 返回 filter 节点的构建器；store 用于 blocklist 的运行时列表，可为 nil。
func FilterBuilder(store filter.BlocklistStore) pipeline.NodeBuilder {
	return func(cfg map[string]any) (pipeline.Node, error) {
		filtersConfig, ok := cfg["filters"].([]any)
		if !ok {
			return nil, fmt.Errorf("filters not found or invalid")
		}

		filters := make([]filter.Filter, 0, len(filtersConfig))
		for _, fc := range filtersConfig {
			filterMap, ok := fc.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("filter config must be a map, got %T", fc)
			}
			switch filterType := conv.ConfigGet(filterMap, "type", ""); filterType {
			case "interacted":
				filters = append(filters, &filter.InteractedFilter{})

			case "category":
				filters = append(filters, &filter.CategoryFilter{Category: conv.ConfigGet(filterMap, "category", "")})

			case "blocklist":
				ids := conv.SliceAnyToString(filterMap["item_ids"])
				f := filter.NewBlocklistFilter(ids, nil, "")
				if store != nil {
					f.Store = store
					f.Key = conv.ConfigGet(filterMap, "key", "")
					f.UserKeyPrefix = conv.ConfigGet(filterMap, "user_key_prefix", "")
				}
				filters = append(filters, f)

			case "rule":
				expr := conv.ConfigGet(filterMap, "expr", "")
				if expr == "" {
					continue
				}
				f, err := filter.NewRuleFilter(expr)
				if err != nil {
					return nil, err
				}
				filters = append(filters, f)

			default:
				return nil, fmt.Errorf("unknown filter type: %q", filterType)
			}
		}
		return &filter.FilterNode{Filters: filters}, nil
	}
}

func BuildHybridNode(cfg map[string]any) (pipeline.Node, error) {
	n := rank.NewHybridNode()
	n.UseCollab = conv.ConfigGet(cfg, "collab", true)
	n.UseContent = conv.ConfigGet(cfg, "content", true)
	if w, ok := cfg["weights"].(map[string]any); ok {
		n.Weights.Collab = conv.ConfigGetFloat64(w, "collab", n.Weights.Collab)
		n.Weights.Content = conv.ConfigGetFloat64(w, "content", n.Weights.Content)
	}
	if w, ok := cfg["weights"].(rank.Weights); ok {
		n.Weights = w
	}
	if n.Weights.Collab < 0 || n.Weights.Content < 0 {
		return nil, fmt.Errorf("weights must be non-negative, got %+v", n.Weights)
	}
	if !n.UseCollab && !n.UseContent {
		return nil, fmt.Errorf("rank.hybrid needs at least one of collab/content")
	}
	return n, nil
}

func BuildTopNNode(cfg map[string]any) (pipeline.Node, error) {
	n := conv.ConfigGetInt64(cfg, "n", 0)
	if n < 0 {
		return nil, fmt.Errorf("n must be >= 0, got %d", n)
	}
	return &rerank.TopNNode{N: int(n)}, nil
}

func BuildDiversityNode(cfg map[string]any) (pipeline.Node, error) {
	labelKey := conv.ConfigGet(cfg, "label_key", "category")
	if labelKey == "" {
		labelKey = "category"
	}
	return &rerank.Diversity{
		LabelKey:       labelKey,
		MaxPerCategory: int(conv.ConfigGetInt64(cfg, "max_per_category", 1)),
	}, nil
}
