package core

import (
	"sort"
	"strconv"
	"strings"

	"github.com/rushteam/hybridrec/pkg/utils"
)

// CatalogItem 是物品目录中的一条记录，是特征构建的输入。
type CatalogItem struct {
	ID          string             `json:"id" yaml:"id"`
	Title       string             `json:"title" yaml:"title"`
	Description string             `json:"description,omitempty" yaml:"description"`
	Category    string             `json:"category,omitempty" yaml:"category"`
	Tags        []string           `json:"tags,omitempty" yaml:"tags"`
	Attributes  map[string]float64 `json:"attributes,omitempty" yaml:"attributes"`
}

// Item 是推荐链路中的统一承载结构：特征、分数、元信息、标签。
// Labels 用于解释与策略驱动；Score 用于排序决策。
type Item struct {
	ID       string
	Score    float64
	Features map[string]float64
	Meta     map[string]any
	Labels   map[string]utils.Label
}

func NewItem(id string) *Item {
	return &Item{
		ID:       id,
		Score:    0,
		Features: make(map[string]float64),
		Meta:     make(map[string]any),
		Labels:   make(map[string]utils.Label),
	}
}

// PutLabel 写入 Label；若已存在同名 key，则按默认 Merge 规则累积。
func (it *Item) PutLabel(key string, lbl utils.Label) {
	if it.Labels == nil {
		it.Labels = make(map[string]utils.Label)
	}
	if old, ok := it.Labels[key]; ok {
		it.Labels[key] = utils.MergeLabel(old, lbl)
		return
	}
	it.Labels[key] = lbl
}

// Category 返回召回阶段写入 Meta 的类目。
func (it *Item) Category() string {
	if it == nil || it.Meta == nil {
		return ""
	}
	c, _ := it.Meta["category"].(string)
	return c
}

// CompareIDs 是 ID 的全序：整数 ID 排在非整数 ID 之前，整数之间按数值比较，
// 数值相同（如 "01" 与 "1"）或都不是整数时按原始字符串比较。
func CompareIDs(a, b string) int {
	ai, errA := strconv.ParseInt(a, 10, 64)
	bi, errB := strconv.ParseInt(b, 10, 64)
	switch {
	case errA == nil && errB != nil:
		return -1
	case errA != nil && errB == nil:
		return 1
	case errA == nil && ai != bi:
		if ai < bi {
			return -1
		}
		return 1
	}
	return strings.Compare(a, b)
}

// SortIDs 按 CompareIDs 升序排列。
func SortIDs(ids []string) {
	sort.Slice(ids, func(i, j int) bool { return CompareIDs(ids[i], ids[j]) < 0 })
}

// SortItems 按分数降序排序，分数相同时按 ID 升序，nil 排在最后。
func SortItems(items []*Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		if a == nil {
			return false
		}
		if b == nil {
			return true
		}
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return CompareIDs(a.ID, b.ID) < 0
	})
}
