package pipeline

import (
	"context"
	"fmt"

	"github.com/rushteam/hybridrec/core"
)

// Kind 是 Node 所处的阶段，决定它在 Pipeline 中允许出现的位置。
type Kind string

const (
	KindRecall      Kind = "recall"
	KindFilter      Kind = "filter"
	KindRank        Kind = "rank"
	KindReRank      Kind = "rerank"
	KindPostProcess Kind = "postprocess"
)

// stage 返回阶段序号；未知阶段返回 -1，不参与顺序校验。
func (k Kind) stage() int {
	switch k {
	case KindRecall:
		return 0
	case KindFilter:
		return 1
	case KindRank:
		return 2
	case KindReRank:
		return 3
	case KindPostProcess:
		return 4
	default:
		return -1
	}
}

// Node 接收上一个 Node 的候选并返回新的候选列表。
// Process 不应修改 rctx；items 可以原地修改（打分、打标签）后返回。
type Node interface {
	Name() string
	Kind() Kind

	Process(
		ctx context.Context,
		rctx *core.RecommendContext,
		items []*core.Item,
	) ([]*core.Item, error)
}

// NodeBuilder 根据配置构建 Node。
type NodeBuilder func(config map[string]any) (Node, error)

// checkOrder 要求阶段单调不减：召回 → 过滤 → 排序 → 重排 → 后处理，同阶段可以连续出现。
func checkOrder(nodes []Node) error {
	last, lastName := -1, ""
	for _, n := range nodes {
		s := n.Kind().stage()
		if s < 0 {
			continue
		}
		if s < last {
			return fmt.Errorf("node %s (%s) placed after %s", n.Name(), n.Kind(), lastName)
		}
		last, lastName = s, n.Name()
	}
	return nil
}
