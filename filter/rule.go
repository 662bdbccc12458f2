package filter

import (
	"context"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/pkg/dsl"
)

// RuleFilter 用 CEL 表达式过滤：表达式对物品求值为 true 时过滤掉。
// 例如 `item.category == "adult"` 或 `has(label.similar_to) && item.features.content < 0.05`。
type RuleFilter struct {
	Program *dsl.Program
}

// NewRuleFilter 编译表达式并创建过滤器。
func NewRuleFilter(expr string) (*RuleFilter, error) {
	p, err := dsl.Compile(expr)
	if err != nil {
		return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "filter: invalid rule", err)
	}
	return &RuleFilter{Program: p}, nil
}

func (f *RuleFilter) Name() string {
	return "filter.rule"
}

func (f *RuleFilter) ShouldFilter(
	_ context.Context,
	rctx *core.RecommendContext,
	item *core.Item,
) (bool, error) {
	if item == nil {
		return true, nil
	}
	if f.Program == nil || f.Program.String() == "" {
		return false, nil
	}
	return f.Program.Match(item, rctx)
}
