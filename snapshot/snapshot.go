// Package snapshot 定义模型快照：一次重训的全部只读产物。
//
// 快照创建后不可变，由 Holder 以单个指针原子发布；
// 一次请求只加载一次快照，并通过 context 透传给 Pipeline 中的各个节点。
package snapshot

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/model"
)

// Stats 是快照构建时的统计信息。
type Stats struct {
	Items               int `json:"items"`
	Users               int `json:"users"`
	Interactions        int `json:"interactions"`
	SkippedItems        int `json:"skipped_items"`
	DroppedInteractions int `json:"dropped_interactions"`
	Vocabulary          int `json:"vocabulary"`
}

// Snapshot 是一次重训的产物。
type Snapshot struct {
	ID      uuid.UUID
	Version int64
	BuiltAt time.Time

	Content *model.ContentModel
	Factors *model.FactorizationModel

	// Catalog 物品目录，ItemIDs 为其按 ID 升序的键
	Catalog map[string]core.CatalogItem
	ItemIDs []string

	Users map[string]core.UserProfile

	// History 用户 -> 物品 -> 累计权重
	History map[string]map[string]float64

	// Recent 是构建时仍在热度窗口内的交互
	Recent []core.Interaction

	// TailSeq 是构建时已并入快照的实时日志序号
	TailSeq uint64

	Stats Stats
}

// Item 返回目录中的物品。
func (s *Snapshot) Item(id string) (core.CatalogItem, bool) {
	it, ok := s.Catalog[id]
	return it, ok
}

// Profile 返回用户画像；不存在时返回 nil。
func (s *Snapshot) Profile(userID string) *core.UserProfile {
	u, ok := s.Users[userID]
	if !ok {
		return nil
	}
	return &u
}

// UserHistory 返回用户历史的副本，调用方可以自由修改。
func (s *Snapshot) UserHistory(userID string) map[string]float64 {
	src := s.History[userID]
	out := make(map[string]float64, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// Holder 保存当前对外服务的快照。
type Holder struct {
	p atomic.Pointer[Snapshot]
}

// Load 返回当前快照，尚未发布时返回 nil。
func (h *Holder) Load() *Snapshot {
	return h.p.Load()
}

// Swap 发布新快照并返回旧快照。
func (h *Holder) Swap(s *Snapshot) *Snapshot {
	return h.p.Swap(s)
}

// Version 返回当前快照版本，尚未发布时为 0。
func (h *Holder) Version() int64 {
	if s := h.p.Load(); s != nil {
		return s.Version
	}
	return 0
}

type ctxKey struct{}

// NewContext 把快照放入 context。
func NewContext(ctx context.Context, s *Snapshot) context.Context {
	return context.WithValue(ctx, ctxKey{}, s)
}

// FromContext 取出 context 中的快照。
func FromContext(ctx context.Context) (*Snapshot, bool) {
	s, ok := ctx.Value(ctxKey{}).(*Snapshot)
	return s, ok && s != nil
}
