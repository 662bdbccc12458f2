// hybridrecd 运行推荐服务的后台进程：加载配置与数据源，恢复或训练快照，
// 并在 supervisor 下运行定时重训、按交互量重训与管理端 HTTP。
package main

import (
	"context"
	"flag"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/rushteam/hybridrec/admin"
	"github.com/rushteam/hybridrec/config"
	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/events"
	"github.com/rushteam/hybridrec/filter"
	"github.com/rushteam/hybridrec/logging"
	"github.com/rushteam/hybridrec/pipeline"
	"github.com/rushteam/hybridrec/scheduler"
	"github.com/rushteam/hybridrec/service"
	"github.com/rushteam/hybridrec/snapshot"
	"github.com/rushteam/hybridrec/store"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	settings, err := config.Load(*configPath)
	if err != nil {
		logging.Fatal().Err(err).Msg("load config")
	}
	logging.Init(settings.Log)
	logger := logging.Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, settings, logger); err != nil {
		logger.Error().Err(err).Msg("hybridrecd stopped with error")
		os.Exit(1)
	}
	logger.Info().Msg("hybridrecd stopped")
}

func run(ctx context.Context, settings *config.Settings, logger zerolog.Logger) error {
	interactions, closeStore, err := openInteractionStore(ctx, settings.Store)
	if err != nil {
		return err
	}
	defer closeStore()

	cache, err := openCache(ctx, settings.Cache)
	if err != nil {
		return err
	}

	var snapshots service.SnapshotStore
	if settings.Snapshot.Path != "" || settings.Snapshot.InMemory {
		bs, err := snapshot.OpenBadger(settings.Snapshot.Path, settings.Snapshot.InMemory)
		if err != nil {
			return err
		}
		defer func() { _ = bs.Close() }()
		snapshots = bs
	}

	var overrides *pipeline.Config
	if settings.Pipelines.Path != "" {
		if overrides, err = pipeline.Load(settings.Pipelines.Path); err != nil {
			return err
		}
	}

	bus := events.NewBus(1024, logger)
	defer func() { _ = bus.Close() }()

	svc, err := service.New(service.Options{
		Store:            interactions,
		Cache:            cache,
		Snapshots:        snapshots,
		Publisher:        bus,
		Pipelines:        overrides,
		PipelineDefaults: settings.PipelineDefaults(),
		GlobalFilters:    settings.GlobalFilters(),
		Blocklist:        filter.NewStoreAdapter(cache),
		Train:            settings.TrainConfig(),
		Namespace:        settings.Cache.Namespace,
		TTL: service.TTLs{
			Recommendations: settings.Cache.RecommendationsTTL,
			Similar:         settings.Cache.SimilarTTL,
			Trending:        settings.Cache.TrendingTTL,
			Category:        settings.Cache.CategoryTTL,
		},
		TailMaxEntries:  settings.Store.TailMaxEntries,
		BreakerFailures: settings.Cache.BreakerFailures,
		BreakerTimeout:  settings.Cache.BreakerTimeout,
		Logger:          &logger,
	})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	if err := svc.Restore(ctx); err != nil && !core.IsNotFound(err) {
		logger.Warn().Err(err).Msg("restore snapshot failed")
	}

	sup := scheduler.NewSupervisor("hybridrecd", logger)
	r := settings.Retrain
	if r.Interval > 0 || r.OnStart {
		interval := r.Interval
		if interval <= 0 {
			// 只在启动时训练一次
			interval = time.Duration(math.MaxInt64)
		}
		sup.Add(scheduler.NewPeriodic(svc, interval, r.OnStart, r.Timeout, logger))
	}
	if r.AfterInteractions > 0 {
		sup.Add(scheduler.NewOnInteractions(svc, bus, r.AfterInteractions, r.MinInterval, r.Timeout, logger))
	}
	if settings.Admin.Addr != "" {
		sup.Add(admin.NewServer(settings.Admin.Addr, admin.NewRouter(svc, logger), 0))
	}

	logger.Info().
		Str("store", interactions.Name()).
		Str("cache", cache.Name()).
		Bool("snapshot_persistence", snapshots != nil).
		Str("admin", settings.Admin.Addr).
		Msg("hybridrecd started")

	err = sup.Serve(ctx)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func openInteractionStore(ctx context.Context, s config.StoreSettings) (core.InteractionStore, func(), error) {
	switch s.Backend {
	case "file":
		return store.NewFileInteractionStore(s.Path), func() {}, nil
	case "postgres":
		pg, err := store.NewPostgresInteractionStore(ctx, s.DSN)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		return store.NewMemoryInteractionStore(nil, nil, nil), func() {}, nil
	}
}

func openCache(ctx context.Context, s config.CacheSettings) (core.Store, error) {
	if s.Backend == "redis" {
		return store.NewRedisStore(ctx, s.RedisAddr, s.RedisPassword, s.RedisDB)
	}
	return store.NewMemoryStoreWithTTL(s.RecommendationsTTL, s.MemoryCleanup), nil
}
