package filter

import (
	"context"

	"github.com/rushteam/hybridrec/core"
)

// InteractedFilter 过滤掉用户交互过的物品。
// 交互历史来自 rctx.History：快照历史与快照之后的实时日志合并而成。
type InteractedFilter struct{}

func (f *InteractedFilter) Name() string {
	return "filter.interacted"
}

func (f *InteractedFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	return rctx.Interacted(item.ID), nil
}
