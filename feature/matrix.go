package feature

import "sort"

// Entry 是交互矩阵中的一个非零元素。
type Entry struct {
	Item   int
	Weight float64
}

// InteractionMatrix 是稀疏的用户 × 物品矩阵，按行（用户）存储。
// 行内元素按物品下标升序排列。
type InteractionMatrix struct {
	UserIDs []string
	ItemIDs []string
	Rows    [][]Entry

	userIndex map[string]int
	itemIndex map[string]int
}

func newInteractionMatrix(userIDs, itemIDs []string) *InteractionMatrix {
	m := &InteractionMatrix{
		UserIDs:   userIDs,
		ItemIDs:   itemIDs,
		Rows:      make([][]Entry, len(userIDs)),
		userIndex: make(map[string]int, len(userIDs)),
		itemIndex: make(map[string]int, len(itemIDs)),
	}
	for i, id := range userIDs {
		m.userIndex[id] = i
	}
	for i, id := range itemIDs {
		m.itemIndex[id] = i
	}
	return m
}

// UserIndex 返回用户的行号。
func (m *InteractionMatrix) UserIndex(id string) (int, bool) {
	i, ok := m.userIndex[id]
	return i, ok
}

// ItemIndex 返回物品的列号。
func (m *InteractionMatrix) ItemIndex(id string) (int, bool) {
	i, ok := m.itemIndex[id]
	return i, ok
}

// NNZ 返回非零元素个数。
func (m *InteractionMatrix) NNZ() int {
	n := 0
	for _, row := range m.Rows {
		n += len(row)
	}
	return n
}

// Has 判断 (u, i) 是否有交互。
func (m *InteractionMatrix) Has(u, i int) bool {
	row := m.Rows[u]
	k := sort.Search(len(row), func(k int) bool { return row[k].Item >= i })
	return k < len(row) && row[k].Item == i
}

// Weight 返回 (u, i) 的权重，不存在时为 0。
func (m *InteractionMatrix) Weight(u, i int) float64 {
	row := m.Rows[u]
	k := sort.Search(len(row), func(k int) bool { return row[k].Item >= i })
	if k < len(row) && row[k].Item == i {
		return row[k].Weight
	}
	return 0
}

// RowWeight 返回用户行的总权重。
func (m *InteractionMatrix) RowWeight(u int) float64 {
	total := 0.0
	for _, e := range m.Rows[u] {
		total += e.Weight
	}
	return total
}
