package snapshot

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/model"
)

const currentKey = "snapshot:current"

// record 是快照的持久化形式。
type record struct {
	ID      uuid.UUID                     `json:"id"`
	Version int64                         `json:"version"`
	BuiltAt time.Time                     `json:"built_at"`
	Content model.ContentState            `json:"content"`
	Factors model.FactorizationState      `json:"factors"`
	Catalog []core.CatalogItem            `json:"catalog"`
	Users   []core.UserProfile            `json:"users"`
	History map[string]map[string]float64 `json:"history"`
	Recent  []core.Interaction            `json:"recent"`
	TailSeq uint64                        `json:"tail_seq"`
	Stats   Stats                         `json:"stats"`
}

// BadgerStore 把最近一次快照持久化到 BadgerDB，进程重启后可以直接恢复服务。
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger 打开 BadgerDB；inMemory 为 true 时忽略 path。
func OpenBadger(path string, inMemory bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.Logger = nil
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// NewBadgerStore 包装已打开的 BadgerDB。
func NewBadgerStore(db *badger.DB) *BadgerStore {
	return &BadgerStore{db: db}
}

// Save 覆盖保存快照。
func (s *BadgerStore) Save(ctx context.Context, snap *Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	rec := record{
		ID:      snap.ID,
		Version: snap.Version,
		BuiltAt: snap.BuiltAt,
		History: snap.History,
		Recent:  snap.Recent,
		TailSeq: snap.TailSeq,
		Stats:   snap.Stats,
	}
	if snap.Content != nil {
		rec.Content = snap.Content.State()
	}
	if snap.Factors != nil {
		rec.Factors = snap.Factors.State()
	}
	for _, id := range snap.ItemIDs {
		rec.Catalog = append(rec.Catalog, snap.Catalog[id])
	}
	for _, u := range snap.Users {
		rec.Users = append(rec.Users, u)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(currentKey), data); err != nil {
			return fmt.Errorf("set snapshot: %w", err)
		}
		return nil
	})
}

// Load 读取最近一次保存的快照，不存在时返回 NOT_FOUND。
func (s *BadgerStore) Load(ctx context.Context) (*Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rec record
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(currentKey))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return core.NewDomainError(core.ModuleSnapshot, core.ErrorCodeNotFound, "snapshot: nothing persisted yet")
		}
		if err != nil {
			return fmt.Errorf("get snapshot: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})
	if err != nil {
		return nil, err
	}

	content, err := model.ContentFromState(rec.Content)
	if err != nil {
		return nil, err
	}
	factors, err := model.FactorizationFromState(rec.Factors)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		ID:      rec.ID,
		Version: rec.Version,
		BuiltAt: rec.BuiltAt,
		Content: content,
		Factors: factors,
		Catalog: make(map[string]core.CatalogItem, len(rec.Catalog)),
		Users:   make(map[string]core.UserProfile, len(rec.Users)),
		History: rec.History,
		Recent:  rec.Recent,
		TailSeq: rec.TailSeq,
		Stats:   rec.Stats,
	}
	if snap.History == nil {
		snap.History = map[string]map[string]float64{}
	}
	for _, it := range rec.Catalog {
		snap.Catalog[it.ID] = it
		snap.ItemIDs = append(snap.ItemIDs, it.ID)
	}
	core.SortIDs(snap.ItemIDs)
	for _, u := range rec.Users {
		snap.Users[u.ID] = u
	}
	return snap, nil
}

// Close 关闭底层数据库。
func (s *BadgerStore) Close() error {
	return s.db.Close()
}
