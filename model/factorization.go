package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/feature"
)

// DefaultEpochs 是 epochs <= 0 时使用的训练轮数。
const DefaultEpochs = 30

// FactorizationConfig 是因子分解模型的超参数。
type FactorizationConfig struct {
	Dim             int
	LearnRate       float64
	Reg             float64
	NegativeSamples int
	Seed            int64
	InitScale       float64
}

// DefaultFactorizationConfig 返回默认超参数。
func DefaultFactorizationConfig() FactorizationConfig {
	return FactorizationConfig{
		Dim:             16,
		LearnRate:       0.05,
		Reg:             0.001,
		NegativeSamples: 3,
		Seed:            42,
		InitScale:       0.1,
	}
}

func (c *FactorizationConfig) withDefaults() FactorizationConfig {
	d := DefaultFactorizationConfig()
	out := *c
	if out.Dim <= 0 {
		out.Dim = d.Dim
	}
	if out.LearnRate <= 0 {
		out.LearnRate = d.LearnRate
	}
	if out.Reg < 0 {
		out.Reg = d.Reg
	}
	if out.NegativeSamples <= 0 {
		out.NegativeSamples = d.NegativeSamples
	}
	if out.InitScale <= 0 {
		out.InitScale = d.InitScale
	}
	return out
}

// FactorizationModel 是带属性特征的隐因子模型（LightFM 风格）。
//
// 实体的因子 = 身份嵌入（仅有交互的实体才有）+ 属性嵌入的加权和，
// 因此没有交互但有属性的用户/物品也能得到非退化的因子。
// Fit 完成后所有向量冻结，Score 是冻结状态上的纯函数。
type FactorizationModel struct {
	cfg FactorizationConfig

	itemIDs   []string
	itemIndex map[string]int
	itemVecs  [][]float64 // nil 表示物品没有任何因子
	itemBias  []float64

	userIDs   []string
	userIndex map[string]int
	userVecs  [][]float64
}

// NewFactorizationModel 创建未训练的模型。
func NewFactorizationModel(cfg FactorizationConfig) *FactorizationModel {
	return &FactorizationModel{cfg: cfg.withDefaults()}
}

type featRef struct {
	idx int
	w   float64
}

// featureTable 把特征名映射为嵌入下标。
type featureTable struct {
	index map[string]int
	names []string
}

func newFeatureTable() *featureTable {
	return &featureTable{index: make(map[string]int)}
}

func (t *featureTable) ref(name string) int {
	if idx, ok := t.index[name]; ok {
		return idx
	}
	idx := len(t.names)
	t.index[name] = idx
	t.names = append(t.names, name)
	return idx
}

// entityFeatures 返回实体的特征引用，权重按 L1 归一化，名称有序以保证确定性。
func entityFeatures(t *featureTable, identity string, hasIdentity bool, attrs map[string]float64) []featRef {
	names := make([]string, 0, len(attrs))
	for k, v := range attrs {
		if v > 0 && !math.IsNaN(v) && !math.IsInf(v, 0) {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	refs := make([]featRef, 0, len(names)+1)
	total := 0.0
	if hasIdentity {
		refs = append(refs, featRef{idx: t.ref("#" + identity), w: 1})
		total++
	}
	for _, k := range names {
		refs = append(refs, featRef{idx: t.ref(k), w: attrs[k]})
		total += attrs[k]
	}
	for k := range refs {
		refs[k].w /= total
	}
	return refs
}

// Fit 训练模型：带负采样的加权逻辑回归 SGD。
//   - 正样本置信度 1+ln(1+w)，负样本置信度 1
//   - 负样本从用户未交互的物品中均匀采样
//   - 每轮检查 ctx，取消时返回错误且不改变模型
//   - epochs <= 0 时使用 DefaultEpochs
func (m *FactorizationModel) Fit(ctx context.Context, matrix *feature.InteractionMatrix, itemAttrs, userAttrs map[string]map[string]float64, epochs int) error {
	if matrix == nil {
		return fmt.Errorf("model: nil interaction matrix")
	}
	if epochs <= 0 {
		epochs = DefaultEpochs
	}
	cfg := m.cfg
	rng := rand.New(rand.NewSource(cfg.Seed))

	// 用户全集：矩阵中的用户 + 仅声明了属性的用户
	userIDs := append([]string(nil), matrix.UserIDs...)
	for id := range userAttrs {
		if _, ok := matrix.UserIndex(id); !ok {
			userIDs = append(userIDs, id)
		}
	}
	core.SortIDs(userIDs)

	itemTable, userTable := newFeatureTable(), newFeatureTable()
	itemHasRows := make([]bool, len(matrix.ItemIDs))
	for _, row := range matrix.Rows {
		for _, e := range row {
			itemHasRows[e.Item] = true
		}
	}
	itemRefs := make([][]featRef, len(matrix.ItemIDs))
	for i, id := range matrix.ItemIDs {
		itemRefs[i] = entityFeatures(itemTable, id, itemHasRows[i], itemAttrs[id])
	}
	userRefs := make([][]featRef, len(userIDs))
	userRow := make([]int, len(userIDs))
	for u, id := range userIDs {
		row, ok := matrix.UserIndex(id)
		if !ok {
			row = -1
		}
		userRow[u] = row
		userRefs[u] = entityFeatures(userTable, id, ok && len(matrix.Rows[row]) > 0, userAttrs[id])
	}

	itemEmb := initEmbeddings(rng, len(itemTable.names), cfg.Dim, cfg.InitScale)
	userEmb := initEmbeddings(rng, len(userTable.names), cfg.Dim, cfg.InitScale)
	itemFeatBias := make([]float64, len(itemTable.names))

	trained := matrix.NNZ() > 0
	if trained {
		candidates := make([]int, 0, len(matrix.ItemIDs))
		for i := range matrix.ItemIDs {
			if len(itemRefs[i]) > 0 {
				candidates = append(candidates, i)
			}
		}
		tr := &trainer{
			cfg:          cfg,
			rng:          rng,
			itemEmb:      itemEmb,
			userEmb:      userEmb,
			itemFeatBias: itemFeatBias,
			uvec:         make([]float64, cfg.Dim),
			ivec:         make([]float64, cfg.Dim),
		}
		for epoch := 0; epoch < epochs; epoch++ {
			if err := ctx.Err(); err != nil {
				return fmt.Errorf("model: factorization fit aborted at epoch %d: %w", epoch, err)
			}
			for _, u := range rng.Perm(len(userIDs)) {
				row := userRow[u]
				if row < 0 || len(matrix.Rows[row]) == 0 {
					continue
				}
				for _, e := range matrix.Rows[row] {
					tr.step(userRefs[u], itemRefs[e.Item], 1, 1+math.Log1p(e.Weight))
					for n := 0; n < cfg.NegativeSamples; n++ {
						j, ok := sampleNegative(rng, candidates, matrix, row)
						if !ok {
							break
						}
						tr.step(userRefs[u], itemRefs[j], 0, 1)
					}
				}
			}
		}
	}

	// 冻结组合向量
	m.itemIDs = append([]string(nil), matrix.ItemIDs...)
	m.itemIndex = make(map[string]int, len(m.itemIDs))
	m.itemVecs = make([][]float64, len(m.itemIDs))
	m.itemBias = make([]float64, len(m.itemIDs))
	for i, id := range m.itemIDs {
		m.itemIndex[id] = i
		if len(itemRefs[i]) == 0 {
			continue
		}
		vec := make([]float64, cfg.Dim)
		if trained {
			compose(vec, itemEmb, itemRefs[i])
			for _, r := range itemRefs[i] {
				m.itemBias[i] += r.w * itemFeatBias[r.idx]
			}
		}
		m.itemVecs[i] = vec
	}
	m.userIDs, m.userVecs = nil, nil
	m.userIndex = make(map[string]int, len(userIDs))
	for u, id := range userIDs {
		if len(userRefs[u]) == 0 {
			continue
		}
		vec := make([]float64, cfg.Dim)
		if trained {
			compose(vec, userEmb, userRefs[u])
		}
		m.userIndex[id] = len(m.userIDs)
		m.userIDs = append(m.userIDs, id)
		m.userVecs = append(m.userVecs, vec)
	}
	return nil
}

func initEmbeddings(rng *rand.Rand, n, dim int, scale float64) [][]float64 {
	emb := make([][]float64, n)
	for k := range emb {
		emb[k] = make([]float64, dim)
		for d := range emb[k] {
			emb[k][d] = (rng.Float64() - 0.5) * scale
		}
	}
	return emb
}

func compose(dst []float64, emb [][]float64, refs []featRef) {
	for d := range dst {
		dst[d] = 0
	}
	for _, r := range refs {
		for d, x := range emb[r.idx] {
			dst[d] += r.w * x
		}
	}
}

func sampleNegative(rng *rand.Rand, candidates []int, matrix *feature.InteractionMatrix, row int) (int, bool) {
	if len(candidates) <= len(matrix.Rows[row]) {
		return 0, false
	}
	for attempt := 0; attempt < 10; attempt++ {
		j := candidates[rng.Intn(len(candidates))]
		if !matrix.Has(row, j) {
			return j, true
		}
	}
	return 0, false
}

type trainer struct {
	cfg          FactorizationConfig
	rng          *rand.Rand
	itemEmb      [][]float64
	userEmb      [][]float64
	itemFeatBias []float64
	uvec, ivec   []float64
}

// step 对一个 (用户, 物品, 标签) 样本做一次梯度更新。
func (t *trainer) step(user, item []featRef, label, confidence float64) {
	if len(user) == 0 || len(item) == 0 {
		return
	}
	compose(t.uvec, t.userEmb, user)
	compose(t.ivec, t.itemEmb, item)
	pred := 0.0
	for d := range t.uvec {
		pred += t.uvec[d] * t.ivec[d]
	}
	for _, r := range item {
		pred += r.w * t.itemFeatBias[r.idx]
	}
	g := confidence * (sigmoid(pred) - label)
	lr, reg := t.cfg.LearnRate, t.cfg.Reg

	for _, r := range user {
		e := t.userEmb[r.idx]
		for d := range e {
			e[d] -= lr * (g*r.w*t.ivec[d] + reg*e[d])
		}
	}
	for _, r := range item {
		e := t.itemEmb[r.idx]
		for d := range e {
			e[d] -= lr * (g*r.w*t.uvec[d] + reg*e[d])
		}
		t.itemFeatBias[r.idx] -= lr * g * r.w
	}
}

// ItemIDs 返回训练时的物品列表，与 ScoreAll 的结果对齐。
func (m *FactorizationModel) ItemIDs() []string {
	if m == nil {
		return nil
	}
	return m.itemIDs
}

// HasUser 判断用户是否有因子（有交互或有属性）。
func (m *FactorizationModel) HasUser(userID string) bool {
	if m == nil {
		return false
	}
	_, ok := m.userIndex[userID]
	return ok
}

// HasItem 判断物品是否有因子。
func (m *FactorizationModel) HasItem(itemID string) bool {
	if m == nil {
		return false
	}
	i, ok := m.itemIndex[itemID]
	return ok && m.itemVecs[i] != nil
}

// Score 返回 sigmoid(u·i + b_i)；冷用户或冷物品返回中性分 0.5。
func (m *FactorizationModel) Score(userID, itemID string) float64 {
	s, ok := m.Predict(userID, itemID)
	if !ok {
		return NeutralScore
	}
	return s
}

// Predict 与 Score 相同，但物品完全没有因子时返回 false。
// 训练中不存在的用户对所有物品都是 (0.5, true)。
func (m *FactorizationModel) Predict(userID, itemID string) (float64, bool) {
	if m == nil {
		return NeutralScore, false
	}
	i, ok := m.itemIndex[itemID]
	if !ok || m.itemVecs[i] == nil {
		return NeutralScore, false
	}
	u, ok := m.userIndex[userID]
	if !ok {
		return NeutralScore, true
	}
	return m.score(u, i), true
}

func (m *FactorizationModel) score(u, i int) float64 {
	uv, iv := m.userVecs[u], m.itemVecs[i]
	x := m.itemBias[i]
	for d := range uv {
		x += uv[d] * iv[d]
	}
	return clamp01(sigmoid(x))
}

// ScoreAll 返回用户对全部物品的分数，顺序与 ItemIDs 一致。
func (m *FactorizationModel) ScoreAll(userID string) []float64 {
	if m == nil {
		return nil
	}
	out := make([]float64, len(m.itemIDs))
	u, known := m.userIndex[userID]
	for i := range out {
		if !known || m.itemVecs[i] == nil {
			out[i] = NeutralScore
			continue
		}
		out[i] = m.score(u, i)
	}
	return out
}

// FactorizationState 是因子模型的可序列化形式。
type FactorizationState struct {
	Dim      int         `json:"dim"`
	UserIDs  []string    `json:"user_ids"`
	UserVecs [][]float64 `json:"user_vecs"`
	ItemIDs  []string    `json:"item_ids"`
	ItemVecs [][]float64 `json:"item_vecs"`
	ItemBias []float64   `json:"item_bias"`
}

// State 导出冻结后的模型状态。
func (m *FactorizationModel) State() FactorizationState {
	return FactorizationState{
		Dim:      m.cfg.Dim,
		UserIDs:  m.userIDs,
		UserVecs: m.userVecs,
		ItemIDs:  m.itemIDs,
		ItemVecs: m.itemVecs,
		ItemBias: m.itemBias,
	}
}

// FactorizationFromState 由状态恢复模型。
func FactorizationFromState(s FactorizationState) (*FactorizationModel, error) {
	if len(s.UserIDs) != len(s.UserVecs) {
		return nil, fmt.Errorf("model: factorization state has %d users but %d vectors", len(s.UserIDs), len(s.UserVecs))
	}
	if len(s.ItemIDs) != len(s.ItemVecs) || len(s.ItemIDs) != len(s.ItemBias) {
		return nil, fmt.Errorf("model: factorization state item arrays differ in length")
	}
	cfg := DefaultFactorizationConfig()
	cfg.Dim = s.Dim
	m := &FactorizationModel{
		cfg:       cfg,
		itemIDs:   s.ItemIDs,
		itemIndex: make(map[string]int, len(s.ItemIDs)),
		itemVecs:  s.ItemVecs,
		itemBias:  s.ItemBias,
		userIDs:   s.UserIDs,
		userIndex: make(map[string]int, len(s.UserIDs)),
		userVecs:  s.UserVecs,
	}
	for i, id := range s.ItemIDs {
		if v := s.ItemVecs[i]; v != nil && len(v) != s.Dim {
			return nil, fmt.Errorf("model: item %s vector has dim %d, want %d", id, len(v), s.Dim)
		}
		m.itemIndex[id] = i
	}
	for u, id := range s.UserIDs {
		if len(s.UserVecs[u]) != s.Dim {
			return nil, fmt.Errorf("model: user %s vector has dim %d, want %d", id, len(s.UserVecs[u]), s.Dim)
		}
		m.userIndex[id] = u
	}
	return m, nil
}
