package dsl

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/pkg/utils"
)

var (
	// celEnv 是全局的 CEL 环境，线程安全，可复用
	celEnv     *cel.Env
	celEnvErr  error
	celEnvOnce sync.Once
)

func getCELEnv() (*cel.Env, error) {
	celEnvOnce.Do(func() {
		celEnv, celEnvErr = cel.NewEnv(
			cel.Variable("item", cel.DynType),
			cel.Variable("label", cel.DynType),
			cel.Variable("rctx", cel.DynType),
		)
	})
	return celEnv, celEnvErr
}

// Program 是编译好的候选规则表达式，使用 CEL (Common Expression Language)。
// 编译一次，可在多个请求中并发复用。
//
// 可用变量：
//   - item：id / score / category / features / meta
//   - label：物品 Label 的值，如 label.recall_source
//   - rctx：user_id / item_id / category / scene / limit / params / labels
//
// 示例：
//   - `item.category == "travel" && item.score < 0.2`
//   - `has(label.similar_to)`
//   - `item.features.trending > 0.5`
//   - `"catalog" in label.recall_source`（Label 值以 | 拼接，可用 contains 判断）
type Program struct {
	expr string
	prg  cel.Program
}

// Compile 编译表达式；空表达式永远匹配。
func Compile(expr string) (*Program, error) {
	if expr == "" {
		return &Program{}, nil
	}
	env, err := getCELEnv()
	if err != nil {
		return nil, fmt.Errorf("dsl: cel env: %w", err)
	}
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("dsl: compile %q: %w", expr, issues.Err())
	}
	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("dsl: program %q: %w", expr, err)
	}
	return &Program{expr: expr, prg: prg}, nil
}

// MustCompile 与 Compile 相同，编译失败时 panic，用于测试与静态规则。
func MustCompile(expr string) *Program {
	p, err := Compile(expr)
	if err != nil {
		panic(err)
	}
	return p
}

func (p *Program) String() string { return p.expr }

// Match 对单个候选求值，表达式必须返回 bool。
// 访问不存在的 key 会返回错误，规则里应先用 has() 判断。
func (p *Program) Match(item *core.Item, rctx *core.RecommendContext) (bool, error) {
	if p == nil || p.prg == nil {
		return true, nil
	}
	out, _, err := p.prg.Eval(buildInput(item, rctx))
	if err != nil {
		return false, fmt.Errorf("dsl: eval %q: %w", p.expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("dsl: expression %q must return bool, got %T", p.expr, out.Value())
	}
	return result, nil
}

// Eval 编译并执行一次表达式，适合一次性判断。
func Eval(expr string, item *core.Item, rctx *core.RecommendContext) (bool, error) {
	p, err := Compile(expr)
	if err != nil {
		return false, err
	}
	return p.Match(item, rctx)
}

func buildInput(item *core.Item, rctx *core.RecommendContext) map[string]any {
	itemMap := map[string]any{}
	labels := map[string]any{}
	if item != nil {
		features := make(map[string]any, len(item.Features))
		for k, v := range item.Features {
			features[k] = v
		}
		meta := make(map[string]any, len(item.Meta))
		for k, v := range item.Meta {
			meta[k] = v
		}
		itemMap = map[string]any{
			"id":       item.ID,
			"score":    item.Score,
			"category": item.Category(),
			"features": features,
			"meta":     meta,
		}
		for k, v := range utils.LabelValues(item.Labels) {
			labels[k] = v
		}
	}

	rctxMap := map[string]any{}
	if rctx != nil {
		params := make(map[string]any, len(rctx.Params))
		for k, v := range rctx.Params {
			params[k] = v
		}
		rlabels := make(map[string]any, len(rctx.Labels))
		for k, v := range utils.LabelValues(rctx.Labels) {
			rlabels[k] = v
		}
		rctxMap = map[string]any{
			"user_id":  rctx.UserID,
			"item_id":  rctx.ItemID,
			"category": rctx.Category,
			"scene":    rctx.Scene,
			"limit":    int64(rctx.Limit),
			"params":   params,
			"labels":   rlabels,
		}
	}

	return map[string]any{
		"item":  itemMap,
		"label": labels,
		"rctx":  rctxMap,
	}
}
