package store

import (
	"context"
	"sync"

	"github.com/rushteam/hybridrec/core"
)

// MemoryInteractionStore 是内存实现的交互数据源，用于测试/开发。
// 同时实现 core.InteractionRecorder。
type MemoryInteractionStore struct {
	mu           sync.RWMutex
	items        []core.CatalogItem
	users        []core.UserProfile
	interactions []core.Interaction
}

func NewMemoryInteractionStore(items []core.CatalogItem, users []core.UserProfile, interactions []core.Interaction) *MemoryInteractionStore {
	return &MemoryInteractionStore{
		items:        append([]core.CatalogItem(nil), items...),
		users:        append([]core.UserProfile(nil), users...),
		interactions: append([]core.Interaction(nil), interactions...),
	}
}

func (s *MemoryInteractionStore) Name() string { return "memory" }

func (s *MemoryInteractionStore) ListItems(ctx context.Context) ([]core.CatalogItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.CatalogItem(nil), s.items...), nil
}

func (s *MemoryInteractionStore) ListUsers(ctx context.Context) ([]core.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.UserProfile(nil), s.users...), nil
}

func (s *MemoryInteractionStore) ListInteractions(ctx context.Context) ([]core.Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]core.Interaction(nil), s.interactions...), nil
}

func (s *MemoryInteractionStore) AppendInteraction(ctx context.Context, it core.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interactions = append(s.interactions, it)
	return nil
}

// PutItem 新增或替换物品。
func (s *MemoryInteractionStore) PutItem(it core.CatalogItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.items {
		if s.items[k].ID == it.ID {
			s.items[k] = it
			return
		}
	}
	s.items = append(s.items, it)
}

// PutUser 新增或替换用户画像。
func (s *MemoryInteractionStore) PutUser(u core.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.users {
		if s.users[k].ID == u.ID {
			s.users[k] = u
			return
		}
	}
	s.users = append(s.users, u)
}

var (
	_ core.InteractionStore    = (*MemoryInteractionStore)(nil)
	_ core.InteractionRecorder = (*MemoryInteractionStore)(nil)
)
