package core

import "github.com/rushteam/hybridrec/pkg/utils"

// 算法标记
const (
	AlgorithmHybrid   = "hybrid"
	AlgorithmContent  = "content"
	AlgorithmTrending = "trending"
	AlgorithmCategory = "category"
)

// Recommendation 是对调用方返回的一条推荐结果，按请求生成，不作为持久化事实。
// UserID 为空表示与用户无关（相似物品、热门）。
type Recommendation struct {
	UserID    string                 `json:"user_id,omitempty"`
	ItemID    string                 `json:"item_id"`
	Score     float64                `json:"score"`
	Reason    string                 `json:"reason"`
	Algorithm string                 `json:"algorithm"`
	Labels    map[string]utils.Label `json:"labels,omitempty"`
}
