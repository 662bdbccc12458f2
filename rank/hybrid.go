package rank

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/feature"
	"github.com/rushteam/hybridrec/model"
	"github.com/rushteam/hybridrec/pipeline"
	"github.com/rushteam/hybridrec/pkg/utils"
	"github.com/rushteam/hybridrec/snapshot"
)

// Signal 是一路打分信号；OK 为 false 表示该信号不可用（冷启动或模型缺失）。
type Signal struct {
	Value float64
	OK    bool
}

// Weights 是协同与内容两路信号的权重。
type Weights struct {
	Collab  float64 `koanf:"collab" yaml:"collab"`
	Content float64 `koanf:"content" yaml:"content"`
}

// DefaultWeights 协同 0.7，内容 0.3。
func DefaultWeights() Weights {
	return Weights{Collab: 0.7, Content: 0.3}
}

// Combine 融合两路信号：
//   - 信号先截断到 [0,1]，非法值（NaN/Inf）视为不可用
//   - 只有一路可用时权重归一到该路
//   - 都不可用或权重之和为 0 时返回中性分 0.5
func Combine(collab, content Signal, w Weights) float64 {
	sum, total := 0.0, 0.0
	for _, s := range []struct {
		sig Signal
		w   float64
	}{{collab, w.Collab}, {content, w.Content}} {
		if !s.sig.OK || s.w <= 0 || math.IsNaN(s.sig.Value) || math.IsInf(s.sig.Value, 0) {
			continue
		}
		sum += s.w * clamp01(s.sig.Value)
		total += s.w
	}
	if total <= 0 {
		return model.NeutralScore
	}
	return clamp01(sum / total)
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x) || x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}

// HybridNode 是混合排序 Node：对每个候选计算协同分与内容分并按 Weights 融合。
//   - 协同分：快照中的因子模型 Predict(user, item)，用户不在模型中时不可用
//   - 内容分：优先使用召回写入的 Features["content"]；否则用物品向量与用户内容画像的点积
//     （历史物品向量按交互权重加权平均，再并入偏好标签文本）
//   - 写入 Features["collab"] / Features["content_score"]，Label rank_signals
//   - 按分数降序、ID 升序排序
type HybridNode struct {
	Weights    Weights
	UseCollab  bool
	UseContent bool
}

// NewHybridNode 返回两路信号都启用、默认权重的排序节点。
func NewHybridNode() *HybridNode {
	return &HybridNode{Weights: DefaultWeights(), UseCollab: true, UseContent: true}
}

func (n *HybridNode) Name() string        { return "rank.hybrid" }
func (n *HybridNode) Kind() pipeline.Kind { return pipeline.KindRank }

func (n *HybridNode) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}
	snap, ok := snapshot.FromContext(ctx)
	if !ok {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeUnavailable, "rank: no snapshot bound to request")
	}

	var (
		userID  string
		profile model.Vector
	)
	if rctx != nil {
		userID = rctx.UserID
	}
	if n.UseContent {
		profile = profileVector(snap, rctx)
	}
	collabOK := n.UseCollab && userID != "" && snap.Factors.HasUser(userID)

	out := items[:0]
	for _, it := range items {
		if it == nil {
			continue
		}
		var collab, content Signal
		var signals []string

		if collabOK {
			if v, ok := snap.Factors.Predict(userID, it.ID); ok {
				collab = Signal{Value: v, OK: true}
				it.Features["collab"] = v
				signals = append(signals, "collab")
			}
		}
		if n.UseContent {
			if v, ok := it.Features["content"]; ok {
				content = Signal{Value: v, OK: true}
			} else if profile.Len() > 0 {
				if v, ok := snap.Content.Dot(it.ID, profile); ok {
					content = Signal{Value: v, OK: true}
				}
			}
			if content.OK {
				it.Features["content_score"] = content.Value
				signals = append(signals, "content")
			}
		}

		it.Score = Combine(collab, content, n.Weights)
		if len(signals) == 0 {
			signals = append(signals, "neutral")
		}
		it.PutLabel("rank_signals", utils.Label{Value: strings.Join(signals, ","), Source: "rank"})
		out = append(out, it)
	}

	core.SortItems(out)
	return out, nil
}

// profileVector 构造用户的内容画像：历史物品向量按交互权重加权，偏好标签文本权重为 1。
func profileVector(snap *snapshot.Snapshot, rctx *core.RecommendContext) model.Vector {
	if rctx == nil {
		return model.Vector{}
	}
	seeds := make([]string, 0, len(rctx.History))
	for id := range rctx.History {
		seeds = append(seeds, id)
	}
	sort.Strings(seeds)

	vs := make([]model.Vector, 0, len(seeds)+1)
	ws := make([]float64, 0, len(seeds)+1)
	for _, id := range seeds {
		if v, ok := snap.Content.Vector(id); ok {
			vs = append(vs, v)
			ws = append(ws, rctx.History[id])
		}
	}

	user := rctx.User
	if user == nil && rctx.UserID != "" {
		user = snap.Profile(rctx.UserID)
	}
	if text := feature.ProfileText(user); text != "" {
		if v := snap.Content.Transform(text); v.Len() > 0 {
			vs = append(vs, v)
			ws = append(ws, 1)
		}
	}
	return model.Centroid(vs, ws)
}
