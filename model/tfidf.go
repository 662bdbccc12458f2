package model

import (
	"fmt"
	"math"
	"sort"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/feature"
)

// Document 是参与内容模型拟合的一篇文本。
type Document struct {
	ID   string
	Text string
}

// ContentModel 是 TF-IDF 内容相似度模型。
//   - idf 使用平滑形式 ln((1+n)/(1+df))+1
//   - 物品向量做 L2 归一化，点积即余弦相似度
//   - 词表在下一次 Fit 前固定
type ContentModel struct {
	vocab   map[string]int
	idf     []float64
	ids     []string
	vectors map[string]Vector
}

// FitContent 在给定文档上拟合内容模型。文档顺序不影响结果。
func FitContent(docs []Document) *ContentModel {
	m := &ContentModel{
		vocab:   make(map[string]int),
		vectors: make(map[string]Vector, len(docs)),
	}

	tokens := make([][]string, len(docs))
	df := make(map[string]int)
	for k, d := range docs {
		tokens[k] = feature.Tokenize(d.Text)
		seen := make(map[string]struct{}, len(tokens[k]))
		for _, t := range tokens[k] {
			if _, ok := seen[t]; ok {
				continue
			}
			seen[t] = struct{}{}
			df[t]++
		}
	}

	terms := make([]string, 0, len(df))
	for t := range df {
		terms = append(terms, t)
	}
	sort.Strings(terms)
	n := float64(len(docs))
	m.idf = make([]float64, len(terms))
	for idx, t := range terms {
		m.vocab[t] = idx
		m.idf[idx] = math.Log((1+n)/(1+float64(df[t]))) + 1
	}

	for k, d := range docs {
		if _, dup := m.vectors[d.ID]; dup || d.ID == "" {
			continue
		}
		m.ids = append(m.ids, d.ID)
		m.vectors[d.ID] = m.weigh(tokens[k])
	}
	core.SortIDs(m.ids)
	return m
}

func (m *ContentModel) weigh(tokens []string) Vector {
	tf := make(map[int]float64, len(tokens))
	for _, t := range tokens {
		if idx, ok := m.vocab[t]; ok {
			tf[idx]++
		}
	}
	for idx, c := range tf {
		tf[idx] = c * m.idf[idx]
	}
	return fromMap(tf)
}

// Transform 用已拟合的词表把文本转换成向量，未登录词被忽略。
func (m *ContentModel) Transform(text string) Vector {
	if m == nil {
		return Vector{}
	}
	return m.weigh(feature.Tokenize(text))
}

// Len 返回模型中的物品数。
func (m *ContentModel) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ids)
}

// ItemIDs 返回按 ID 升序的物品列表。
func (m *ContentModel) ItemIDs() []string {
	if m == nil {
		return nil
	}
	return m.ids
}

// VocabSize 返回词表大小。
func (m *ContentModel) VocabSize() int {
	if m == nil {
		return 0
	}
	return len(m.idf)
}

// Has 判断物品是否在模型中。
func (m *ContentModel) Has(itemID string) bool {
	if m == nil {
		return false
	}
	_, ok := m.vectors[itemID]
	return ok
}

// Vector 返回物品向量。
func (m *ContentModel) Vector(itemID string) (Vector, bool) {
	if m == nil {
		return Vector{}, false
	}
	v, ok := m.vectors[itemID]
	return v, ok
}

// Dot 返回物品向量与 v 的点积，结果截断到 [0,1]。物品不存在时返回 false。
func (m *ContentModel) Dot(itemID string, v Vector) (float64, bool) {
	iv, ok := m.Vector(itemID)
	if !ok {
		return 0, false
	}
	return clamp01(iv.Dot(v)), true
}

// Similar 返回与 itemID 最相似的 k 个物品（不含自身）。
// k <= 0 时返回全部物品，包括相似度为 0 的物品。
func (m *ContentModel) Similar(itemID string, k int) ([]Neighbor, error) {
	q, ok := m.Vector(itemID)
	if !ok {
		return nil, core.NewDomainError(core.ModuleModel, core.ErrorCodeNotFound,
			fmt.Sprintf("model: item %s not in content model", itemID))
	}
	out := make([]Neighbor, 0, len(m.ids))
	for _, id := range m.ids {
		if id == itemID {
			continue
		}
		out = append(out, Neighbor{ItemID: id, Score: clamp01(q.Dot(m.vectors[id]))})
	}
	sortNeighbors(out)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

// ContentState 是内容模型的可序列化形式。
type ContentState struct {
	Terms   []string          `json:"terms"`
	IDF     []float64         `json:"idf"`
	Vectors map[string]Vector `json:"vectors"`
}

// State 导出模型状态。
func (m *ContentModel) State() ContentState {
	terms := make([]string, len(m.idf))
	for t, idx := range m.vocab {
		terms[idx] = t
	}
	return ContentState{Terms: terms, IDF: m.idf, Vectors: m.vectors}
}

// ContentFromState 由状态恢复模型。
func ContentFromState(s ContentState) (*ContentModel, error) {
	if len(s.Terms) != len(s.IDF) {
		return nil, fmt.Errorf("model: content state has %d terms but %d idf values", len(s.Terms), len(s.IDF))
	}
	m := &ContentModel{
		vocab:   make(map[string]int, len(s.Terms)),
		idf:     s.IDF,
		vectors: s.Vectors,
	}
	if m.vectors == nil {
		m.vectors = map[string]Vector{}
	}
	for idx, t := range s.Terms {
		m.vocab[t] = idx
	}
	for id, v := range m.vectors {
		if len(v.Indices) != len(v.Values) {
			return nil, fmt.Errorf("model: content vector %s is malformed", id)
		}
		m.ids = append(m.ids, id)
	}
	core.SortIDs(m.ids)
	return m, nil
}
