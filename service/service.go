// Package service 是推荐服务的入口：四个读操作、重训与交互写入。
//
// 读路径只读取一个不可变快照（snapshot.Holder）与快照之后的实时日志，
// 结果按操作写入缓存；重训在旁路构建新快照后一次性替换。
package service

import (
	"context"
	_ "embed"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
	"golang.org/x/sync/singleflight"

	"github.com/rushteam/hybridrec/config"
	"github.com/rushteam/hybridrec/config/builders"
	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/filter"
	"github.com/rushteam/hybridrec/logging"
	"github.com/rushteam/hybridrec/pipeline"
	"github.com/rushteam/hybridrec/snapshot"
	"github.com/rushteam/hybridrec/store"
)

//go:embed pipelines.yaml
var defaultPipelines []byte

// 读操作名，同时是 pipeline 名、缓存 key 的操作段与指标标签。
const (
	OpRecommendations = "recommendations"
	OpSimilar         = "similar"
	OpTrending        = "trending"
	OpCategory        = "category"
)

var operations = []string{OpRecommendations, OpSimilar, OpTrending, OpCategory}

// MaxLimit 是单次读取的最大条数。
const MaxLimit = 50

// SnapshotStore 持久化最近一次快照，snapshot.BadgerStore 实现此接口。
type SnapshotStore interface {
	Save(ctx context.Context, snap *snapshot.Snapshot) error
	Load(ctx context.Context) (*snapshot.Snapshot, error)
}

// Publisher 发布交互事件，events.Bus 实现此接口。
type Publisher interface {
	PublishInteraction(ctx context.Context, it core.Interaction) error
}

// TTLs 是各读操作的缓存时长。
type TTLs struct {
	Recommendations time.Duration
	Similar         time.Duration
	Trending        time.Duration
	Category        time.Duration
}

// DefaultTTLs 个性化 1h，相似 30m，热门 5m，类目 1h。
func DefaultTTLs() TTLs {
	return TTLs{
		Recommendations: time.Hour,
		Similar:         30 * time.Minute,
		Trending:        5 * time.Minute,
		Category:        time.Hour,
	}
}

func (t TTLs) of(op string) time.Duration {
	switch op {
	case OpRecommendations:
		return t.Recommendations
	case OpSimilar:
		return t.Similar
	case OpTrending:
		return t.Trending
	default:
		return t.Category
	}
}

// Options 是 Service 的依赖与参数，只有 Store 是必需的。
type Options struct {
	// Store 是训练数据来源；实现 core.InteractionRecorder 时交互也会写入其中
	Store core.InteractionStore
	// Cache 缓存读结果，nil 时使用进程内 store.MemoryStore
	Cache core.Store
	// Snapshots 持久化快照，可为 nil
	Snapshots SnapshotStore
	// Publisher 发布交互事件，可为 nil
	Publisher Publisher

	// Pipelines 覆盖内置 pipeline（按名称），可为 nil
	Pipelines *pipeline.Config
	// PipelineDefaults 注入到节点配置的缺省值（权重、热度窗口等）
	PipelineDefaults map[string]map[string]any
	// GlobalFilters 追加到每个 filter 节点的过滤器配置
	GlobalFilters []map[string]any
	// Blocklist 为 blocklist 过滤器提供运行时列表，可为 nil
	Blocklist filter.BlocklistStore

	Train          snapshot.TrainConfig
	Namespace      string
	TTL            TTLs
	TailMaxEntries int

	BreakerFailures uint32
	BreakerTimeout  time.Duration

	Logger *zerolog.Logger
	Now    func() time.Time
}

// Service 是推荐服务，所有方法都可以并发调用。
type Service struct {
	opts      Options
	store     core.InteractionStore
	cache     core.Store
	breaker   *gobreaker.CircuitBreaker[[]byte]
	snapshots SnapshotStore
	publisher Publisher
	trainer   *snapshot.Trainer
	pipelines map[string]*pipeline.Pipeline

	holder snapshot.Holder
	log    *store.InteractionLog
	group  singleflight.Group
	logger zerolog.Logger

	retraining atomic.Bool
	// retainMu 保护 retained：存储不可写时，已并入快照的实时交互需要在后续重训中继续使用
	retainMu sync.Mutex
	retained []core.Interaction
}

// New 创建服务并构建 pipeline；此时还没有快照，读操作返回 UNAVAILABLE，
// 直到 Restore 或第一次 Retrain 成功。
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, core.NewDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "service: interaction store is required")
	}
	if opts.Cache == nil {
		opts.Cache = store.NewMemoryStore()
	}
	if opts.Namespace == "" {
		opts.Namespace = "hybridrec"
	}
	def := DefaultTTLs()
	if opts.TTL.Recommendations <= 0 {
		opts.TTL.Recommendations = def.Recommendations
	}
	if opts.TTL.Similar <= 0 {
		opts.TTL.Similar = def.Similar
	}
	if opts.TTL.Trending <= 0 {
		opts.TTL.Trending = def.Trending
	}
	if opts.TTL.Category <= 0 {
		opts.TTL.Category = def.Category
	}
	if opts.BreakerFailures == 0 {
		opts.BreakerFailures = 5
	}
	if opts.BreakerTimeout <= 0 {
		opts.BreakerTimeout = 30 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Train.Now == nil {
		opts.Train.Now = opts.Now
	}

	s := &Service{
		opts:      opts,
		store:     opts.Store,
		cache:     opts.Cache,
		snapshots: opts.Snapshots,
		publisher: opts.Publisher,
		trainer:   snapshot.NewTrainer(opts.Train),
		log:       store.NewInteractionLog(opts.TailMaxEntries),
	}
	if opts.Logger != nil {
		s.logger = opts.Logger.With().Str("component", "service").Logger()
	} else {
		s.logger = logging.WithComponent("service")
	}
	s.breaker = newCacheBreaker(opts.BreakerFailures, opts.BreakerTimeout, s.logger)

	pipelines, err := buildPipelines(opts)
	if err != nil {
		return nil, err
	}
	s.pipelines = pipelines
	return s, nil
}

// buildPipelines 解析内置 pipeline，合并覆盖项、缺省值与全局过滤器后构建。
func buildPipelines(opts Options) (map[string]*pipeline.Pipeline, error) {
	cfg, err := pipeline.Parse(defaultPipelines)
	if err != nil {
		return nil, fmt.Errorf("service: builtin pipelines: %w", err)
	}
	cfg.Merge(opts.Pipelines)
	if err := config.ValidatePipelineConfig(cfg); err != nil {
		return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "service: invalid pipelines", err)
	}
	cfg.ApplyDefaults(opts.PipelineDefaults)
	appendGlobalFilters(cfg, opts.GlobalFilters)

	factory := config.DefaultFactory()
	factory.Register("filter", builders.FilterBuilder(opts.Blocklist))

	out := make(map[string]*pipeline.Pipeline, len(operations))
	for _, op := range operations {
		p, err := cfg.BuildPipeline(op, factory)
		if err != nil {
			return nil, core.WrapDomainError(core.ModuleService, core.ErrorCodeInvalidInput, "service: build pipeline "+op, err)
		}
		out[op] = p
	}
	return out, nil
}

func appendGlobalFilters(cfg *pipeline.Config, filters []map[string]any) {
	if len(filters) == 0 {
		return
	}
	for name, spec := range cfg.Pipelines {
		for k, nc := range spec.Nodes {
			if nc.Type != "filter" {
				continue
			}
			if nc.Config == nil {
				nc.Config = map[string]any{}
			}
			existing, _ := nc.Config["filters"].([]any)
			merged := make([]any, 0, len(existing)+len(filters))
			merged = append(merged, existing...)
			for _, f := range filters {
				merged = append(merged, f)
			}
			nc.Config["filters"] = merged
			spec.Nodes[k] = nc
		}
		cfg.Pipelines[name] = spec
	}
}

// SnapshotInfo 是当前快照的概要，供管理端展示。
type SnapshotInfo struct {
	ID      string         `json:"id"`
	Version int64          `json:"version"`
	BuiltAt time.Time      `json:"built_at"`
	Stats   snapshot.Stats `json:"stats"`
	TailLen int            `json:"tail_len"`
}

// Snapshot 返回当前快照概要；还没有快照时 ok 为 false。
func (s *Service) Snapshot() (SnapshotInfo, bool) {
	snap := s.holder.Load()
	if snap == nil {
		return SnapshotInfo{}, false
	}
	return SnapshotInfo{
		ID:      snap.ID.String(),
		Version: snap.Version,
		BuiltAt: snap.BuiltAt,
		Stats:   snap.Stats,
		TailLen: s.log.Len(),
	}, true
}

// Ready 表示是否已有可服务的快照。
func (s *Service) Ready() bool {
	return s.holder.Load() != nil
}

// Restore 加载持久化的快照，使服务在第一次重训前即可读。
// 没有配置持久化或没有已保存的快照时返回 NOT_FOUND。
func (s *Service) Restore(ctx context.Context) error {
	if s.snapshots == nil {
		return core.NewDomainError(core.ModuleSnapshot, core.ErrorCodeNotFound, "service: snapshot persistence disabled")
	}
	snap, err := s.snapshots.Load(ctx)
	if err != nil {
		return err
	}
	// 实时日志随进程重建，旧序号没有意义
	snap.TailSeq = 0
	if cur := s.holder.Load(); cur != nil && cur.Version >= snap.Version {
		return nil
	}
	s.publish(snap)
	s.logger.Info().Int64("version", snap.Version).Time("built_at", snap.BuiltAt).Msg("snapshot restored")
	return nil
}

// Close 释放缓存。
func (s *Service) Close() error {
	return s.cache.Close()
}
