package core

import (
	"time"

	"github.com/rushteam/hybridrec/pkg/utils"
)

// RecommendContext 承载一次请求的用户/场景/实时信息，贯穿整个 Pipeline 透传。
type RecommendContext struct {
	UserID   string
	ItemID   string // 相似推荐的种子物品
	Category string // 类目推荐的目标类目
	Scene    string // 操作名：recommendations / similar / trending / category
	Limit    int
	Now      time.Time

	// User 是快照中的用户画像，可能为空（新用户）
	User *UserProfile

	// History 是用户交互过的物品及其累计权重（快照历史 + 实时日志）
	History map[string]float64

	// Recent 是快照之后写入实时日志的交互
	Recent []Interaction

	// Labels 是用户级标签，可驱动整个 Pipeline 行为
	Labels map[string]utils.Label

	// Params 请求级上下文参数，可在规则表达式中通过 rctx.params 访问
	Params map[string]any
}

// Interacted 判断用户是否与物品交互过。
func (rctx *RecommendContext) Interacted(itemID string) bool {
	if rctx == nil || rctx.History == nil {
		return false
	}
	_, ok := rctx.History[itemID]
	return ok
}

// PutLabel 写入用户级 Label。
func (rctx *RecommendContext) PutLabel(key string, lbl utils.Label) {
	if rctx.Labels == nil {
		rctx.Labels = make(map[string]utils.Label)
	}
	if old, ok := rctx.Labels[key]; ok {
		rctx.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	rctx.Labels[key] = lbl
}

// GetLabel 获取用户级 Label。
func (rctx *RecommendContext) GetLabel(key string) (utils.Label, bool) {
	if rctx.Labels == nil {
		return utils.Label{}, false
	}
	lbl, ok := rctx.Labels[key]
	return lbl, ok
}
