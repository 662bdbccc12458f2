package recall

import (
	"context"
	"sort"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/pipeline"
)

// HistoryContent 以用户历史物品为种子，召回内容相似的物品。
// 用于补充目录召回，让排序阶段看到“与用户历史相近”的候选。
type HistoryContent struct {
	// MaxSeeds 最多使用的历史物品数（按权重从高到低），0 表示全部
	MaxSeeds int
	// PerSeed 每个种子召回的相似物品数，<= 0 时为 10
	PerSeed int
}

func (r *HistoryContent) Name() string        { return "recall.history_content" }
func (r *HistoryContent) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *HistoryContent) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *HistoryContent) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	snap, err := snapshotFrom(ctx)
	if err != nil {
		return nil, err
	}
	if rctx == nil || len(rctx.History) == 0 {
		return nil, nil
	}
	perSeed := r.PerSeed
	if perSeed <= 0 {
		perSeed = 10
	}

	seeds := make([]string, 0, len(rctx.History))
	for id := range rctx.History {
		if snap.Content.Has(id) {
			seeds = append(seeds, id)
		}
	}
	sort.Slice(seeds, func(i, j int) bool {
		wi, wj := rctx.History[seeds[i]], rctx.History[seeds[j]]
		if wi != wj {
			return wi > wj
		}
		return core.CompareIDs(seeds[i], seeds[j]) < 0
	})
	if r.MaxSeeds > 0 && len(seeds) > r.MaxSeeds {
		seeds = seeds[:r.MaxSeeds]
	}

	seen := make(map[string]*core.Item)
	var out []*core.Item
	for _, seed := range seeds {
		neighbors, err := snap.Content.Similar(seed, perSeed)
		if err != nil {
			return nil, err
		}
		for _, n := range neighbors {
			if n.Score <= 0 {
				continue
			}
			if it, ok := seen[n.ItemID]; ok {
				if n.Score > it.Features["history_content"] {
					it.Features["history_content"] = n.Score
				}
				continue
			}
			it := newCandidate(snap, n.ItemID)
			it.Features["history_content"] = n.Score
			seen[n.ItemID] = it
			out = append(out, it)
		}
	}
	return out, nil
}
