package snapshot

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/feature"
	"github.com/rushteam/hybridrec/model"
)

// TrainConfig 是一次训练的参数。
type TrainConfig struct {
	Factorization model.FactorizationConfig
	Epochs        int
	MaxPairWeight float64
	MaxUserWeight float64
	TagBuckets    int
	// RecentWindow 决定快照保留多久以内的交互供热度计算
	RecentWindow time.Duration
	Now          func() time.Time
}

// Trainer 把原始数据训练成新快照：特征构建后两个模型并行拟合。
type Trainer struct {
	cfg TrainConfig
}

func NewTrainer(cfg TrainConfig) *Trainer {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Trainer{cfg: cfg}
}

// Train 构建版本为 version 的快照。ctx 取消或任一模型失败时返回错误。
func (t *Trainer) Train(
	ctx context.Context,
	version int64,
	tailSeq uint64,
	items []core.CatalogItem,
	users []core.UserProfile,
	interactions []core.Interaction,
) (*Snapshot, error) {
	now := t.cfg.Now()
	b := feature.NewBuilder()
	b.MaxPairWeight = t.cfg.MaxPairWeight
	b.MaxUserWeight = t.cfg.MaxUserWeight
	b.TagBuckets = t.cfg.TagBuckets
	b.Now = func() time.Time { return now }

	f, err := b.Build(items, users, interactions)
	if err != nil {
		return nil, err
	}

	var (
		content *model.ContentModel
		factors = model.NewFactorizationModel(t.cfg.Factorization)
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		docs := make([]model.Document, 0, len(f.Items))
		for _, it := range f.Items {
			docs = append(docs, model.Document{ID: it.ID, Text: it.Text})
		}
		content = model.FitContent(docs)
		return egCtx.Err()
	})
	eg.Go(func() error {
		return factors.Fit(egCtx, f.Matrix, f.ItemAttrs(), f.UserAttrs(), t.cfg.Epochs)
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	return Assemble(Parts{
		Version:      version,
		BuiltAt:      now,
		TailSeq:      tailSeq,
		Items:        items,
		Users:        users,
		Features:     f,
		Content:      content,
		Factors:      factors,
		RecentWindow: t.cfg.RecentWindow,
	}), nil
}

// Parts 是组装快照所需的训练产物。
type Parts struct {
	Version      int64
	BuiltAt      time.Time
	TailSeq      uint64
	Items        []core.CatalogItem
	Users        []core.UserProfile
	Features     *feature.Features
	Content      *model.ContentModel
	Factors      *model.FactorizationModel
	RecentWindow time.Duration
}

// Assemble 组装快照：目录只保留可用物品，历史按用户聚合交互权重。
func Assemble(p Parts) *Snapshot {
	f := p.Features
	s := &Snapshot{
		ID:      uuid.New(),
		Version: p.Version,
		BuiltAt: p.BuiltAt,
		Content: p.Content,
		Factors: p.Factors,
		Catalog: make(map[string]core.CatalogItem, len(f.Items)),
		Users:   make(map[string]core.UserProfile, len(p.Users)),
		History: make(map[string]map[string]float64),
		TailSeq: p.TailSeq,
	}

	usable := make(map[string]struct{}, len(f.Items))
	for _, it := range f.Items {
		usable[it.ID] = struct{}{}
		s.ItemIDs = append(s.ItemIDs, it.ID)
	}
	for _, it := range p.Items {
		if _, ok := usable[it.ID]; ok {
			if _, dup := s.Catalog[it.ID]; !dup {
				s.Catalog[it.ID] = it
			}
		}
	}
	for _, u := range p.Users {
		if u.ID != "" {
			s.Users[u.ID] = u
		}
	}

	var cutoff time.Time
	if p.RecentWindow > 0 {
		cutoff = p.BuiltAt.Add(-p.RecentWindow)
	}
	for _, it := range f.Interactions {
		h := s.History[it.UserID]
		if h == nil {
			h = make(map[string]float64)
			s.History[it.UserID] = h
		}
		h[it.ItemID] += it.Weight
		if p.RecentWindow <= 0 || !it.Timestamp.Before(cutoff) {
			s.Recent = append(s.Recent, it)
		}
	}

	s.Stats = Stats{
		Items:               len(f.Items),
		Users:               len(f.Users),
		Interactions:        len(f.Interactions),
		SkippedItems:        len(f.Skipped),
		DroppedInteractions: f.DroppedInteractions,
		Vocabulary:          p.Content.VocabSize(),
	}
	return s
}
