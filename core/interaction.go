package core

import (
	"fmt"
	"math"
	"time"
)

// InteractionType 是交互行为类型，每种类型有固定的隐式权重。
type InteractionType string

const (
	InteractionView     InteractionType = "view"
	InteractionLike     InteractionType = "like"
	InteractionShare    InteractionType = "share"
	InteractionPurchase InteractionType = "purchase"
)

// MaxRating 是评分的上限，评分按 rating/MaxRating 缩放权重。
const MaxRating = 5.0

var implicitWeights = map[InteractionType]float64{
	InteractionView:     1,
	InteractionLike:     2,
	InteractionShare:    3,
	InteractionPurchase: 4,
}

// ImplicitWeight 返回类型的隐式权重，未知类型返回 false。
func (t InteractionType) ImplicitWeight() (float64, bool) {
	w, ok := implicitWeights[t]
	return w, ok
}

// Valid 判断是否为已知类型。
func (t InteractionType) Valid() bool {
	_, ok := implicitWeights[t]
	return ok
}

// Interaction 是一条用户-物品交互记录，只追加不修改。
type Interaction struct {
	UserID    string          `json:"user_id" yaml:"user_id"`
	ItemID    string          `json:"item_id" yaml:"item_id"`
	Type      InteractionType `json:"type" yaml:"type"`
	Weight    float64         `json:"weight,omitempty" yaml:"weight"`
	Rating    *float64        `json:"rating,omitempty" yaml:"rating"`
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
}

// Normalize 校验并规范化交互记录。
//   - Weight 为 0 时使用类型的隐式权重
//   - Rating 存在时权重乘以 rating/MaxRating
//   - Timestamp 为零值时使用 now
//
// 规范化后 Weight 一定是有限且非负的。
func (it Interaction) Normalize(now time.Time) (Interaction, error) {
	if it.UserID == "" {
		return it, invalidInteraction("user_id is required")
	}
	if it.ItemID == "" {
		return it, invalidInteraction("item_id is required")
	}
	implicit, ok := it.Type.ImplicitWeight()
	if !ok {
		return it, invalidInteraction(fmt.Sprintf("unknown interaction type %q", it.Type))
	}
	if math.IsNaN(it.Weight) || math.IsInf(it.Weight, 0) || it.Weight < 0 {
		return it, invalidInteraction(fmt.Sprintf("weight must be finite and non-negative, got %v", it.Weight))
	}
	if it.Weight == 0 {
		it.Weight = implicit
	}
	if it.Rating != nil {
		r := *it.Rating
		if math.IsNaN(r) || r < 0 || r > MaxRating {
			return it, invalidInteraction(fmt.Sprintf("rating must be within [0,%v], got %v", MaxRating, r))
		}
		it.Weight *= r / MaxRating
	}
	if it.Timestamp.IsZero() {
		it.Timestamp = now
	}
	return it, nil
}

func invalidInteraction(msg string) *DomainError {
	return NewDomainError(ModuleService, ErrorCodeInvalidInput, "interaction: "+msg)
}
