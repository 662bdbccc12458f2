package recall

import (
	"context"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/pipeline"
)

// Catalog 召回快照中的全部物品；rctx.Category 非空时只召回该类目。
// 目录规模有限，全量候选交给排序阶段打分。
// 同时实现了 Source 和 Node 接口。
type Catalog struct{}

func (r *Catalog) Name() string        { return "recall.catalog" }
func (r *Catalog) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *Catalog) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *Catalog) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	snap, err := snapshotFrom(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*core.Item, 0, len(snap.ItemIDs))
	for _, id := range snap.ItemIDs {
		if rctx != nil && rctx.Category != "" && snap.Catalog[id].Category != rctx.Category {
			continue
		}
		out = append(out, newCandidate(snap, id))
	}
	return out, nil
}
