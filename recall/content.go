package recall

import (
	"context"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/pipeline"
	"github.com/rushteam/hybridrec/pkg/utils"
)

// ContentSimilar 召回与种子物品（rctx.ItemID）内容最相似的物品。
//   - 相似度写入 Features["content"]，排序阶段直接使用
//   - 种子物品本身不会出现在结果中
//   - 种子不在快照中时返回 NOT_FOUND
type ContentSimilar struct {
	// TopK <= 0 表示返回全部物品
	TopK int
}

func (r *ContentSimilar) Name() string        { return "recall.content" }
func (r *ContentSimilar) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *ContentSimilar) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *ContentSimilar) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	snap, err := snapshotFrom(ctx)
	if err != nil {
		return nil, err
	}
	if rctx == nil || rctx.ItemID == "" {
		return nil, nil
	}
	if !snap.Content.Has(rctx.ItemID) {
		return nil, unknownItem(rctx.ItemID)
	}
	neighbors, err := snap.Content.Similar(rctx.ItemID, r.TopK)
	if err != nil {
		return nil, err
	}
	out := make([]*core.Item, 0, len(neighbors))
	for _, n := range neighbors {
		it := newCandidate(snap, n.ItemID)
		it.Features["content"] = n.Score
		it.PutLabel("similar_to", utils.Label{Value: rctx.ItemID, Source: "recall"})
		out = append(out, it)
	}
	return out, nil
}
