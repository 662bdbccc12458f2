package recall

import (
	"context"
	"math"
	"time"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/pipeline"
	"github.com/rushteam/hybridrec/pkg/utils"
)

// 默认值
const (
	DefaultTrendingWindow   = 60 * 24 * time.Hour
	DefaultTrendingHalfLife = 72 * time.Hour
)

// Trending 是热度召回源：窗口内每条交互计数并按 2^(-age/halfLife) 衰减后累加，再除以最大值归一化到 [0,1]。
//   - 输入为快照中的近期交互 + 实时日志（rctx.Recent）
//   - 只返回分数为正且在目录中的物品
//   - 分数写入 Score 与 Features["trending"]
type Trending struct {
	Window   time.Duration
	HalfLife time.Duration
}

func (r *Trending) Name() string        { return "recall.trending" }
func (r *Trending) Kind() pipeline.Kind { return pipeline.KindRecall }

func (r *Trending) Process(
	ctx context.Context,
	rctx *core.RecommendContext,
	_ []*core.Item,
) ([]*core.Item, error) {
	return r.Recall(ctx, rctx)
}

func (r *Trending) Recall(ctx context.Context, rctx *core.RecommendContext) ([]*core.Item, error) {
	snap, err := snapshotFrom(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	var recent []core.Interaction
	if rctx != nil {
		if !rctx.Now.IsZero() {
			now = rctx.Now
		}
		recent = rctx.Recent
	}

	scores := TrendingScores(now, r.Window, r.HalfLife, snap.Recent, recent)
	out := make([]*core.Item, 0, len(scores))
	for _, id := range snap.ItemIDs {
		s, ok := scores[id]
		if !ok || s <= 0 {
			continue
		}
		it := newCandidate(snap, id)
		it.Score = s
		it.Features["trending"] = s
		it.PutLabel("trending_window", utils.Label{Value: r.window().String(), Source: "recall"})
		out = append(out, it)
	}
	core.SortItems(out)
	return out, nil
}

func (r *Trending) window() time.Duration {
	if r.Window <= 0 {
		return DefaultTrendingWindow
	}
	return r.Window
}

// TrendingScores 计算窗口内各物品的衰减热度并归一化到 [0,1]。
// 时间晚于 now 的交互按 age=0 处理。
func TrendingScores(now time.Time, window, halfLife time.Duration, batches ...[]core.Interaction) map[string]float64 {
	if window <= 0 {
		window = DefaultTrendingWindow
	}
	if halfLife <= 0 {
		halfLife = DefaultTrendingHalfLife
	}
	raw := make(map[string]float64)
	for _, batch := range batches {
		for _, it := range batch {
			age := now.Sub(it.Timestamp)
			if age > window {
				continue
			}
			if age < 0 {
				age = 0
			}
			raw[it.ItemID] += math.Exp2(-float64(age) / float64(halfLife))
		}
	}
	top := 0.0
	for _, v := range raw {
		if v > top {
			top = v
		}
	}
	if top <= 0 {
		return map[string]float64{}
	}
	for k, v := range raw {
		raw[k] = v / top
	}
	return raw
}
