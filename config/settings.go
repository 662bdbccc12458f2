package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/rushteam/hybridrec/logging"
	"github.com/rushteam/hybridrec/model"
	"github.com/rushteam/hybridrec/rank"
	"github.com/rushteam/hybridrec/recall"
	"github.com/rushteam/hybridrec/snapshot"
)

const (
	// EnvPrefix 是环境变量前缀，嵌套层级用双下划线分隔：
	// HYBRIDREC_CACHE__BACKEND=redis -> cache.backend
	EnvPrefix = "HYBRIDREC_"

	// ConfigPathEnvVar 指定配置文件路径
	ConfigPathEnvVar = "HYBRIDREC_CONFIG"
)

// DefaultConfigPaths 是未指定路径时依次查找的配置文件。
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/hybridrec/config.yaml",
}

// sliceConfigPaths 是可以用逗号分隔字符串（环境变量）提供的列表项。
var sliceConfigPaths = []string{
	"filter.blocked_ids",
}

// Settings 是进程级配置。
type Settings struct {
	Log       logging.Config   `koanf:"log"`
	Cache     CacheSettings    `koanf:"cache"`
	Store     StoreSettings    `koanf:"store"`
	Snapshot  SnapshotSettings `koanf:"snapshot"`
	Model     ModelSettings    `koanf:"model"`
	Hybrid    rank.Weights     `koanf:"hybrid"`
	Trending  TrendingSettings `koanf:"trending"`
	Retrain   RetrainSettings  `koanf:"retrain"`
	Pipelines PipelineSettings `koanf:"pipelines"`
	Filter    FilterSettings   `koanf:"filter"`
	Admin     AdminSettings    `koanf:"admin"`
}

// CacheSettings 推荐结果缓存。
type CacheSettings struct {
	Backend   string `koanf:"backend"` // memory / redis
	Namespace string `koanf:"namespace"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	MemoryCleanup time.Duration `koanf:"memory_cleanup"`

	RecommendationsTTL time.Duration `koanf:"recommendations_ttl"`
	SimilarTTL         time.Duration `koanf:"similar_ttl"`
	TrendingTTL        time.Duration `koanf:"trending_ttl"`
	CategoryTTL        time.Duration `koanf:"category_ttl"`

	// 熔断：连续失败 BreakerFailures 次后打开，BreakerTimeout 后半开
	BreakerFailures uint32        `koanf:"breaker_failures"`
	BreakerTimeout  time.Duration `koanf:"breaker_timeout"`
}

// StoreSettings 交互数据来源。
type StoreSettings struct {
	Backend string `koanf:"backend"` // memory / file / postgres
	Path    string `koanf:"path"`    // file 后端的 YAML/JSON 数据集
	DSN     string `koanf:"dsn"`     // postgres 连接串
	// TailMaxEntries 实时日志最多保留的条目数，0 表示不限
	TailMaxEntries int `koanf:"tail_max_entries"`
}

// SnapshotSettings 快照持久化；Path 与 InMemory 都为空时不持久化。
type SnapshotSettings struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// ModelSettings 特征与模型参数。
type ModelSettings struct {
	Dim             int     `koanf:"dim"`
	Epochs          int     `koanf:"epochs"`
	LearnRate       float64 `koanf:"learn_rate"`
	Reg             float64 `koanf:"reg"`
	NegativeSamples int     `koanf:"neg_samples"`
	Seed            int64   `koanf:"seed"`
	MaxPairWeight   float64 `koanf:"max_pair_weight"`
	MaxUserWeight   float64 `koanf:"max_user_weight"`
	TagBuckets      int     `koanf:"tag_buckets"`
}

// TrendingSettings 热度窗口与半衰期。
type TrendingSettings struct {
	Window   time.Duration `koanf:"window"`
	HalfLife time.Duration `koanf:"half_life"`
}

// RetrainSettings 后台重训。
type RetrainSettings struct {
	// Interval 定时重训间隔，0 表示关闭
	Interval time.Duration `koanf:"interval"`
	OnStart  bool          `koanf:"on_start"`
	// AfterInteractions 累计多少条新交互后触发重训，0 表示关闭
	AfterInteractions int `koanf:"after_interactions"`
	// MinInterval 两次交互触发的重训之间的最小间隔
	MinInterval time.Duration `koanf:"min_interval"`
	Timeout     time.Duration `koanf:"timeout"`
}

// PipelineSettings 为空时使用内置 pipelines.yaml，否则用文件中的同名 pipeline 覆盖。
type PipelineSettings struct {
	Path string `koanf:"path"`
}

// FilterSettings 全局过滤规则，注入到所有 pipeline 的 filter 节点。
type FilterSettings struct {
	BlockedIDs []string `koanf:"blocked_ids"`
	// Rule 是 CEL 表达式，命中的候选被过滤
	Rule string `koanf:"rule"`
	// BlocklistKey 是缓存中全局屏蔽列表的 key
	BlocklistKey string `koanf:"blocklist_key"`
	// UserBlocklistPrefix 是缓存中用户屏蔽列表的 key 前缀
	UserBlocklistPrefix string `koanf:"user_blocklist_prefix"`
}

// AdminSettings 管理端 HTTP，Addr 为空时不启动。
type AdminSettings struct {
	Addr string `koanf:"addr"`
}

// DefaultSettings 返回默认配置。
func DefaultSettings() *Settings {
	fc := model.DefaultFactorizationConfig()
	lc := logging.DefaultConfig()
	lc.Output = nil
	return &Settings{
		Log: lc,
		Cache: CacheSettings{
			Backend:            "memory",
			Namespace:          "hybridrec",
			RedisAddr:          "127.0.0.1:6379",
			MemoryCleanup:      10 * time.Minute,
			RecommendationsTTL: time.Hour,
			SimilarTTL:         30 * time.Minute,
			TrendingTTL:        5 * time.Minute,
			CategoryTTL:        time.Hour,
			BreakerFailures:    5,
			BreakerTimeout:     30 * time.Second,
		},
		Store: StoreSettings{
			Backend:        "memory",
			TailMaxEntries: 100000,
		},
		Model: ModelSettings{
			Dim:             fc.Dim,
			Epochs:          model.DefaultEpochs,
			LearnRate:       fc.LearnRate,
			Reg:             fc.Reg,
			NegativeSamples: fc.NegativeSamples,
			Seed:            fc.Seed,
			MaxPairWeight:   10,
			MaxUserWeight:   200,
		},
		Hybrid: rank.DefaultWeights(),
		Trending: TrendingSettings{
			Window:   recall.DefaultTrendingWindow,
			HalfLife: recall.DefaultTrendingHalfLife,
		},
		Retrain: RetrainSettings{
			Interval:          time.Hour,
			OnStart:           true,
			AfterInteractions: 1000,
			MinInterval:       5 * time.Minute,
			Timeout:           10 * time.Minute,
		},
		Filter: FilterSettings{
			BlocklistKey:        "blocklist",
			UserBlocklistPrefix: "blocklist:user",
		},
		Admin: AdminSettings{
			Addr: ":8080",
		},
	}
}

// Load 按层加载配置：默认值 -> 配置文件 -> 环境变量，然后校验。
// path 为空时依次尝试 HYBRIDREC_CONFIG 与 DefaultConfigPaths，都不存在时只用默认值与环境变量。
func Load(path string) (*Settings, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultSettings(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	s := &Settings{}
	if err := k.Unmarshal("", s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return s, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envTransformFunc: HYBRIDREC_MODEL__LEARN_RATE -> model.learn_rate
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// Validate 校验配置，返回所有问题的合并错误。
func (s *Settings) Validate() error {
	var errs []error
	check := func(ok bool, format string, args ...any) {
		if !ok {
			errs = append(errs, fmt.Errorf(format, args...))
		}
	}

	switch strings.ToLower(s.Log.Level) {
	case "trace", "debug", "info", "warn", "warning", "error", "disabled", "off":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not a known level", s.Log.Level))
	}
	check(s.Log.Format == "json" || s.Log.Format == "console", "log.format must be json or console, got %q", s.Log.Format)

	check(s.Cache.Backend == "memory" || s.Cache.Backend == "redis", "cache.backend must be memory or redis, got %q", s.Cache.Backend)
	check(s.Cache.Namespace != "", "cache.namespace is required")
	check(s.Cache.Backend != "redis" || s.Cache.RedisAddr != "", "cache.redis_addr is required for redis backend")
	check(s.Cache.RecommendationsTTL > 0 && s.Cache.SimilarTTL > 0 && s.Cache.TrendingTTL > 0 && s.Cache.CategoryTTL > 0,
		"cache ttls must be positive")
	check(s.Cache.BreakerFailures > 0, "cache.breaker_failures must be positive")

	switch s.Store.Backend {
	case "memory":
	case "file":
		check(s.Store.Path != "", "store.path is required for file backend")
	case "postgres":
		check(s.Store.DSN != "", "store.dsn is required for postgres backend")
	default:
		errs = append(errs, fmt.Errorf("store.backend must be memory, file or postgres, got %q", s.Store.Backend))
	}
	check(s.Store.TailMaxEntries >= 0, "store.tail_max_entries must be >= 0")

	check(s.Model.Dim > 0, "model.dim must be positive")
	check(s.Model.Epochs > 0, "model.epochs must be positive")
	check(s.Model.LearnRate > 0, "model.learn_rate must be positive")
	check(s.Model.Reg >= 0, "model.reg must be >= 0")
	check(s.Model.NegativeSamples >= 0, "model.neg_samples must be >= 0")
	check(s.Model.MaxPairWeight > 0 && s.Model.MaxUserWeight > 0, "model weight caps must be positive")

	check(s.Hybrid.Collab >= 0 && s.Hybrid.Content >= 0, "hybrid weights must be >= 0")
	check(s.Hybrid.Collab+s.Hybrid.Content > 0, "hybrid weights must not both be zero")

	check(s.Trending.Window > 0, "trending.window must be positive")
	check(s.Trending.HalfLife > 0, "trending.half_life must be positive")

	check(s.Retrain.Interval >= 0, "retrain.interval must be >= 0")
	check(s.Retrain.AfterInteractions >= 0, "retrain.after_interactions must be >= 0")
	check(s.Retrain.MinInterval >= 0, "retrain.min_interval must be >= 0")

	return errors.Join(errs...)
}

// TrainConfig 转换为快照训练参数。
func (s *Settings) TrainConfig() snapshot.TrainConfig {
	return snapshot.TrainConfig{
		Factorization: model.FactorizationConfig{
			Dim:             s.Model.Dim,
			LearnRate:       s.Model.LearnRate,
			Reg:             s.Model.Reg,
			NegativeSamples: s.Model.NegativeSamples,
			Seed:            s.Model.Seed,
		},
		Epochs:        s.Model.Epochs,
		MaxPairWeight: s.Model.MaxPairWeight,
		MaxUserWeight: s.Model.MaxUserWeight,
		TagBuckets:    s.Model.TagBuckets,
		RecentWindow:  s.Trending.Window,
	}
}

// PipelineDefaults 返回注入到 pipeline 节点配置的缺省值，显式配置的 key 优先。
func (s *Settings) PipelineDefaults() map[string]map[string]any {
	return map[string]map[string]any{
		"rank.hybrid": {
			"weights": map[string]any{"collab": s.Hybrid.Collab, "content": s.Hybrid.Content},
		},
		"recall.trending": {
			"window":    s.Trending.Window,
			"half_life": s.Trending.HalfLife,
		},
	}
}

// GlobalFilters 返回追加到每个 filter 节点的过滤器配置。
func (s *Settings) GlobalFilters() []map[string]any {
	var out []map[string]any
	blocklist := map[string]any{"type": "blocklist"}
	if len(s.Filter.BlockedIDs) > 0 {
		ids := make([]any, 0, len(s.Filter.BlockedIDs))
		for _, id := range s.Filter.BlockedIDs {
			ids = append(ids, id)
		}
		blocklist["item_ids"] = ids
	}
	if s.Filter.BlocklistKey != "" {
		blocklist["key"] = s.Filter.BlocklistKey
	}
	if s.Filter.UserBlocklistPrefix != "" {
		blocklist["user_key_prefix"] = s.Filter.UserBlocklistPrefix
	}
	if len(blocklist) > 1 {
		out = append(out, blocklist)
	}
	if s.Filter.Rule != "" {
		out = append(out, map[string]any{"type": "rule", "expr": s.Filter.Rule})
	}
	return out
}
