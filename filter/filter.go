// Package filter 提供候选过滤：已交互、类目、屏蔽列表与 CEL 规则。
// FilterNode 组合多个 Filter，任一命中即移除候选。
package filter

import (
	"context"

	"github.com/rushteam/hybridrec/core"
)

// Filter 判断候选是否需要移除，返回 true 表示移除。
// 返回错误时 FilterNode 保留该候选并继续下一个过滤器。
type Filter interface {
	Name() string
	ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

// Func 把一个函数包装成 Filter。
type Func struct {
	ID string
	Fn func(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error)
}

func (f Func) Name() string {
	if f.ID == "" {
		return "func"
	}
	return f.ID
}

func (f Func) ShouldFilter(ctx context.Context, rctx *core.RecommendContext, item *core.Item) (bool, error) {
	return f.Fn(ctx, rctx, item)
}
