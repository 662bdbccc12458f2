package rerank

import (
	"context"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/pipeline"
)

// Diversity 是按类目打散的重排节点：每个类目在前面最多出现 MaxPerCategory 次，
// 超出的物品保持相对顺序移到末尾，不会被丢弃。
// 类目来源优先级：
//   - label[LabelKey].Value
//   - meta[LabelKey] (string)
type Diversity struct {
	LabelKey       string // 默认 "category"
	MaxPerCategory int    // 默认 1
}

func (n *Diversity) Name() string {
	return "rerank.diversity"
}

func (n *Diversity) Kind() pipeline.Kind {
	return pipeline.KindReRank
}

func (n *Diversity) Process(
	_ context.Context,
	_ *core.RecommendContext,
	items []*core.Item,
) ([]*core.Item, error) {
	if len(items) == 0 {
		return items, nil
	}

	key := n.LabelKey
	if key == "" {
		key = "category"
	}
	limit := n.MaxPerCategory
	if limit <= 0 {
		limit = 1
	}

	seen := make(map[string]int, 32)
	head := make([]*core.Item, 0, len(items))
	var tail []*core.Item

	for _, it := range items {
		if it == nil {
			continue
		}

		cate := ""
		if lbl, ok := it.Labels[key]; ok {
			cate = lbl.Value
		}
		if cate == "" {
			if s, ok := it.Meta[key].(string); ok {
				cate = s
			}
		}

		if cate == "" {
			head = append(head, it)
			continue
		}
		if seen[cate] >= limit {
			tail = append(tail, it)
			continue
		}
		seen[cate]++
		head = append(head, it)
	}

	return append(head, tail...), nil
}
