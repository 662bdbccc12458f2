package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/logging"
	"github.com/rushteam/hybridrec/metrics"
)

// Pipeline 把推荐逻辑拆成可组合的 Node 链：召回 → 过滤 → 排序 → 重排。
type Pipeline struct {
	Name  string
	Nodes []Node
}

// Run 依次执行各 Node，任一 Node 出错即中止。
func (p *Pipeline) Run(
	ctx context.Context,
	rctx *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	cur := items
	for _, node := range p.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		start := time.Now()
		next, err := node.Process(ctx, rctx, cur)
		elapsed := time.Since(start)
		metrics.NodeDuration.WithLabelValues(p.Name, node.Name()).Observe(elapsed.Seconds())
		if err != nil {
			return nil, fmt.Errorf("pipeline %s: node %s: %w", p.Name, node.Name(), err)
		}
		metrics.NodeItems.WithLabelValues(p.Name, node.Name()).Observe(float64(len(next)))
		logging.Ctx(ctx).Debug().
			Str("pipeline", p.Name).
			Str("node", node.Name()).
			Str("kind", string(node.Kind())).
			Int("in", len(cur)).
			Int("out", len(next)).
			Dur("elapsed", elapsed).
			Msg("node processed")
		cur = next
	}
	return cur, nil
}
