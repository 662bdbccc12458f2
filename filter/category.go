package filter

import (
	"context"

	"github.com/rushteam/hybridrec/core"
)

// CategoryFilter 只保留指定类目的物品。
// Category 为空时使用 rctx.Category；两者都为空时不过滤。
type CategoryFilter struct {
	Category string
}

func (f *CategoryFilter) Name() string {
	return "filter.category"
}

func (f *CategoryFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	want := f.Category
	if want == "" && rctx != nil {
		want = rctx.Category
	}
	if want == "" {
		return false, nil
	}
	return item.Category() != want, nil
}
