// Package model 提供两个信号模型：内容相似度模型（TF-IDF）与协同因子分解模型。
//
// 两个模型都在重训时离线拟合，拟合完成后只读，可被任意多个请求并发访问。
package model

import (
	"math"
	"sort"

	"github.com/rushteam/hybridrec/core"
)

// NeutralScore 是冷启动用户/物品的中性分数。
const NeutralScore = 0.5

// Neighbor 是相似度查询的一条结果。
type Neighbor struct {
	ItemID string
	Score  float64
}

// sortNeighbors 按分数降序，分数相同时 ID 小的在前。
func sortNeighbors(ns []Neighbor) {
	sort.Slice(ns, func(i, j int) bool {
		if ns[i].Score != ns[j].Score {
			return ns[i].Score > ns[j].Score
		}
		return core.CompareIDs(ns[i].ItemID, ns[j].ItemID) < 0
	})
}

// sigmoid 是数值稳定的 1 / (1 + exp(-x))。
func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

func clamp01(x float64) float64 {
	switch {
	case math.IsNaN(x):
		return 0
	case x < 0:
		return 0
	case x > 1:
		return 1
	}
	return x
}
