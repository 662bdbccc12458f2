package store

import (
	"context"
	"strings"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/rushteam/hybridrec/core"
)

// 默认值
const (
	DefaultMemoryTTL     = time.Hour
	DefaultMemoryCleanup = 10 * time.Minute
)

// MemoryStore 是进程内的缓存实现（go-cache），用于单实例部署与测试。
// 支持 TTL 与按前缀失效，进程重启后数据丢失。
type MemoryStore struct {
	cache *cache.Cache
}

// NewMemoryStore 创建默认过期 1 小时、每 10 分钟清理一次的内存缓存。
func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithTTL(DefaultMemoryTTL, DefaultMemoryCleanup)
}

// NewMemoryStoreWithTTL 指定默认过期时间与清理间隔。
func NewMemoryStoreWithTTL(ttl, cleanup time.Duration) *MemoryStore {
	return &MemoryStore{cache: cache.New(ttl, cleanup)}
}

func (m *MemoryStore) Name() string { return "memory" }

func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, ok := m.cache.Get(key)
	if !ok {
		return nil, core.ErrStoreNotFound
	}
	return v.([]byte), nil
}

func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl ...int) error {
	exp := cache.DefaultExpiration
	if len(ttl) > 0 && ttl[0] > 0 {
		exp = time.Duration(ttl[0]) * time.Second
	}
	// 拷贝一份，调用方之后修改 value 不影响缓存
	m.cache.Set(key, append([]byte(nil), value...), exp)
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, key string) error {
	m.cache.Delete(key)
	return nil
}

func (m *MemoryStore) DeletePrefix(ctx context.Context, prefix string) error {
	for k := range m.cache.Items() {
		if strings.HasPrefix(k, prefix) {
			m.cache.Delete(k)
		}
	}
	return nil
}

// Len 返回未过期的条目数。
func (m *MemoryStore) Len() int {
	return m.cache.ItemCount()
}

func (m *MemoryStore) Close() error {
	m.cache.Flush()
	return nil
}

var _ core.Store = (*MemoryStore)(nil)
