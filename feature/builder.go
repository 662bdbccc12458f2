package feature

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/rushteam/hybridrec/core"
)

// 默认值
const (
	DefaultMaxPairWeight = 10.0
	DefaultMaxUserWeight = 200.0
)

// ItemFeatures 是单个物品的特征：文本（内容模型）+ 结构化属性（因子分解）。
type ItemFeatures struct {
	ID    string
	Text  string
	Attrs map[string]float64
}

// UserFeatures 是单个用户的结构化属性。
type UserFeatures struct {
	ID    string
	Attrs map[string]float64
}

// Features 是一次构建的完整输出。
type Features struct {
	Items  []ItemFeatures // 按 ID 升序
	Users  []UserFeatures // 按 ID 升序
	Matrix *InteractionMatrix

	// Interactions 是通过校验且指向有效物品的交互（已规范化），供快照保存历史与近期行为
	Interactions []core.Interaction

	// Skipped 是被排除的物品，错误码均为 FEATURE_BUILD
	Skipped []*core.DomainError

	// DroppedInteractions 是被丢弃的交互数（非法或指向未知物品）
	DroppedInteractions int
}

// ItemAttrs 以 ID 为 key 返回物品属性。
func (f *Features) ItemAttrs() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(f.Items))
	for _, it := range f.Items {
		out[it.ID] = it.Attrs
	}
	return out
}

// UserAttrs 以 ID 为 key 返回用户属性。
func (f *Features) UserAttrs() map[string]map[string]float64 {
	out := make(map[string]map[string]float64, len(f.Users))
	for _, u := range f.Users {
		out[u.ID] = u.Attrs
	}
	return out
}

// Builder 把原始物品/用户/交互记录转换为模型训练所需的特征。
type Builder struct {
	// MaxPairWeight 单个 (用户, 物品) 累计权重上限
	MaxPairWeight float64
	// MaxUserWeight 单个用户的总权重上限，超过时整行按比例缩放
	MaxUserWeight float64
	// TagBuckets > 0 时标签使用 Hash 编码，否则使用 One-Hot
	TagBuckets int
	// Now 用于补全缺失的交互时间
	Now func() time.Time

	categories *CategoricalEncoder
	tags       Encoder
	numeric    Normalizer
}

// NewBuilder 创建使用默认上限的 Builder。
func NewBuilder() *Builder {
	return &Builder{
		MaxPairWeight: DefaultMaxPairWeight,
		MaxUserWeight: DefaultMaxUserWeight,
	}
}

func (b *Builder) init() {
	if b.MaxPairWeight <= 0 {
		b.MaxPairWeight = DefaultMaxPairWeight
	}
	if b.MaxUserWeight <= 0 {
		b.MaxUserWeight = DefaultMaxUserWeight
	}
	if b.Now == nil {
		b.Now = time.Now
	}
	b.categories = NewCategoricalEncoder()
	if b.TagBuckets > 0 {
		b.tags = NewHashEncoder(b.TagBuckets)
	} else {
		b.tags = NewCategoricalEncoder()
	}
	b.numeric = NewLogNormalizer()
}

// Build 构建特征。
//   - 既无文本也无属性的物品会被排除（记录到 Skipped），不影响本批次
//   - 非空目录却没有任何可用物品时返回 FEATURE_BUILD 错误
func (b *Builder) Build(items []core.CatalogItem, users []core.UserProfile, interactions []core.Interaction) (*Features, error) {
	b.init()
	out := &Features{}

	itemByID := make(map[string]int, len(items))
	for _, it := range items {
		if it.ID == "" {
			out.Skipped = append(out.Skipped, buildError("", "item has empty id"))
			continue
		}
		if _, dup := itemByID[it.ID]; dup {
			out.Skipped = append(out.Skipped, buildError(it.ID, "duplicate item id"))
			continue
		}
		text := ItemText(it)
		attrs := b.itemAttrs(it)
		if strings.TrimSpace(text) == "" && len(attrs) == 0 {
			out.Skipped = append(out.Skipped, buildError(it.ID, "item has neither text nor attributes"))
			continue
		}
		itemByID[it.ID] = len(out.Items)
		out.Items = append(out.Items, ItemFeatures{ID: it.ID, Text: text, Attrs: attrs})
	}
	if len(items) > 0 && len(out.Items) == 0 {
		var cause error
		if len(out.Skipped) > 0 {
			cause = out.Skipped[0]
		}
		return nil, core.WrapDomainError(core.ModuleFeature, core.ErrorCodeFeatureBuild,
			fmt.Sprintf("feature: none of %d catalog items is usable", len(items)), cause)
	}

	// 交互：校验、规范化、丢弃未知物品
	now := b.Now()
	itemWeight := make(map[string]float64, len(out.Items))
	userWeight := make(map[string]float64)
	for _, raw := range interactions {
		it, err := raw.Normalize(now)
		if err != nil {
			out.DroppedInteractions++
			continue
		}
		if _, ok := itemByID[it.ItemID]; !ok {
			out.DroppedInteractions++
			continue
		}
		out.Interactions = append(out.Interactions, it)
		itemWeight[it.ItemID] += it.Weight
		userWeight[it.UserID] += it.Weight
	}
	for i := range out.Items {
		if w := itemWeight[out.Items[i].ID]; w > 0 {
			out.Items[i].Attrs["popularity"] = b.numeric.NormalizeValue(w)
		}
	}

	// 用户：声明的画像 + 仅出现在交互中的用户
	userByID := make(map[string]int, len(users))
	for _, u := range users {
		if u.ID == "" {
			continue
		}
		if _, dup := userByID[u.ID]; dup {
			continue
		}
		userByID[u.ID] = len(out.Users)
		out.Users = append(out.Users, UserFeatures{ID: u.ID, Attrs: b.userAttrs(u)})
	}
	for _, it := range out.Interactions {
		if _, ok := userByID[it.UserID]; !ok {
			userByID[it.UserID] = len(out.Users)
			out.Users = append(out.Users, UserFeatures{ID: it.UserID, Attrs: map[string]float64{}})
		}
	}
	for i := range out.Users {
		if w := userWeight[out.Users[i].ID]; w > 0 {
			out.Users[i].Attrs["activity"] = b.numeric.NormalizeValue(w)
		}
	}

	sort.Slice(out.Items, func(i, j int) bool { return core.CompareIDs(out.Items[i].ID, out.Items[j].ID) < 0 })
	sort.Slice(out.Users, func(i, j int) bool { return core.CompareIDs(out.Users[i].ID, out.Users[j].ID) < 0 })

	out.Matrix = b.buildMatrix(out.Users, out.Items, out.Interactions)
	return out, nil
}

func (b *Builder) itemAttrs(it core.CatalogItem) map[string]float64 {
	attrs := make(map[string]float64)
	for k, v := range b.categories.EncodeWithKey("category", it.Category) {
		attrs[k] = v
	}
	for _, tag := range it.Tags {
		for k, v := range b.tags.EncodeWithKey("tag", tag) {
			attrs[k] = v
		}
	}
	b.putNumeric(attrs, it.Attributes)
	return attrs
}

func (b *Builder) userAttrs(u core.UserProfile) map[string]float64 {
	attrs := make(map[string]float64)
	for _, tag := range u.PreferTags {
		for k, v := range b.tags.EncodeWithKey("tag", tag) {
			attrs[k] = v
		}
	}
	b.putNumeric(attrs, u.Attributes)
	return attrs
}

func (b *Builder) putNumeric(attrs map[string]float64, values map[string]float64) {
	for k, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		if nv := b.numeric.NormalizeValue(v); nv > 0 {
			attrs["attr:"+k] = nv
		}
	}
}

// buildMatrix 聚合重复的 (用户, 物品) 对：求和、按对封顶、按用户总量缩放。
func (b *Builder) buildMatrix(users []UserFeatures, items []ItemFeatures, interactions []core.Interaction) *InteractionMatrix {
	userIDs := make([]string, len(users))
	for i, u := range users {
		userIDs[i] = u.ID
	}
	itemIDs := make([]string, len(items))
	for i, it := range items {
		itemIDs[i] = it.ID
	}
	m := newInteractionMatrix(userIDs, itemIDs)

	sums := make([]map[int]float64, len(userIDs))
	for _, it := range interactions {
		u, _ := m.UserIndex(it.UserID)
		i, _ := m.ItemIndex(it.ItemID)
		if sums[u] == nil {
			sums[u] = make(map[int]float64)
		}
		sums[u][i] += it.Weight
	}

	for u, pairs := range sums {
		if len(pairs) == 0 {
			continue
		}
		row := make([]Entry, 0, len(pairs))
		total := 0.0
		for i, w := range pairs {
			w = math.Min(w, b.MaxPairWeight)
			total += w
			row = append(row, Entry{Item: i, Weight: w})
		}
		if total > b.MaxUserWeight {
			scale := b.MaxUserWeight / total
			for k := range row {
				row[k].Weight *= scale
			}
		}
		sort.Slice(row, func(a, c int) bool { return row[a].Item < row[c].Item })
		m.Rows[u] = row
	}
	return m
}

func buildError(itemID, msg string) *core.DomainError {
	if itemID != "" {
		msg = fmt.Sprintf("item %s: %s", itemID, msg)
	}
	return core.NewDomainError(core.ModuleFeature, core.ErrorCodeFeatureBuild, "feature: "+msg)
}
