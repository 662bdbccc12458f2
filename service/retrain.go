package service

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/metrics"
	"github.com/rushteam/hybridrec/snapshot"
)

// RetrainReport 是一次成功重训的结果。
type RetrainReport struct {
	Version    int64          `json:"version"`
	SnapshotID string         `json:"snapshot_id"`
	BuiltAt    time.Time      `json:"built_at"`
	Duration   time.Duration  `json:"duration"`
	TailMerged int            `json:"tail_merged"`
	Stats      snapshot.Stats `json:"stats"`
}

// Retrain 同步执行一次全量重训：读取训练数据、构建新快照并原子替换。
//   - 已有重训在进行时返回 CONFLICT
//   - 读取或训练失败（包括 ctx 取消）时当前快照保持不变
//   - 读请求在重训期间继续使用当前快照
func (s *Service) Retrain(ctx context.Context) (RetrainReport, error) {
	if !s.retraining.CompareAndSwap(false, true) {
		return RetrainReport{}, core.NewDomainError(core.ModuleService, core.ErrorCodeConflict, "retrain: already in progress")
	}
	defer s.retraining.Store(false)

	start := time.Now()
	report, err := s.retrain(ctx)
	elapsed := time.Since(start)
	metrics.RetrainDuration.Observe(elapsed.Seconds())
	if err != nil {
		metrics.RetrainsTotal.WithLabelValues("error").Inc()
		s.logger.Error().Err(err).Dur("elapsed", elapsed).Msg("retrain failed")
		return RetrainReport{}, err
	}
	metrics.RetrainsTotal.WithLabelValues("ok").Inc()
	report.Duration = elapsed

	s.logger.Info().
		Int64("version", report.Version).
		Str("snapshot_id", report.SnapshotID).
		Int("items", report.Stats.Items).
		Int("users", report.Stats.Users).
		Int("interactions", report.Stats.Interactions).
		Int("skipped_items", report.Stats.SkippedItems).
		Int("tail_merged", report.TailMerged).
		Dur("elapsed", elapsed).
		Msg("retrain finished")
	return report, nil
}

// Retraining 表示是否有重训正在进行。
func (s *Service) Retraining() bool {
	return s.retraining.Load()
}

func (s *Service) retrain(ctx context.Context) (RetrainReport, error) {
	// (prevSeq, seq] 之间的实时交互并入本次快照；prevSeq 之前的已在上一个快照里
	seq := s.log.LastSeq()
	var prevSeq uint64
	if prev := s.holder.Load(); prev != nil {
		prevSeq = prev.TailSeq
	}

	var (
		items        []core.CatalogItem
		users        []core.UserProfile
		interactions []core.Interaction
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		items, err = s.store.ListItems(gctx)
		return err
	})
	g.Go(func() (err error) {
		users, err = s.store.ListUsers(gctx)
		return err
	})
	g.Go(func() (err error) {
		interactions, err = s.store.ListInteractions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if core.IsDomainError(err) {
			return RetrainReport{}, err
		}
		return RetrainReport{}, core.WrapDomainError(core.ModuleStore, core.ErrorCodeUnavailable, "retrain: load training data from "+s.store.Name(), err)
	}

	// 存储不可写时，实时交互只存在于进程内，需要自己并入训练数据
	_, writable := s.store.(core.InteractionRecorder)
	tail := s.log.Between(prevSeq, seq)
	if !writable {
		s.retainMu.Lock()
		interactions = append(interactions, s.retained...)
		s.retainMu.Unlock()
		interactions = append(interactions, tail...)
	}

	snap, err := s.trainer.Train(ctx, s.holder.Version()+1, seq, items, users, interactions)
	if err != nil {
		return RetrainReport{}, err
	}

	old := s.publish(snap)
	if !writable {
		s.retainMu.Lock()
		s.retained = append(s.retained, tail...)
		s.retainMu.Unlock()
	}
	// 只丢弃上一个快照已并入的部分：替换前拿到旧快照的读请求仍要读到旧快照之后的交互
	if old != nil {
		s.log.TrimThrough(old.TailSeq)
	}
	metrics.InteractionTail.Set(float64(s.log.Len()))

	if s.snapshots != nil {
		if err := s.snapshots.Save(ctx, snap); err != nil {
			s.logger.Warn().Err(err).Int64("version", snap.Version).Msg("persist snapshot failed")
		}
	}
	prefixes := make([]string, 0, len(operations))
	for _, op := range operations {
		prefixes = append(prefixes, s.cachePrefix(op, ""))
	}
	s.invalidate(ctx, "retrain", prefixes...)

	return RetrainReport{
		Version:    snap.Version,
		SnapshotID: snap.ID.String(),
		BuiltAt:    snap.BuiltAt,
		TailMerged: len(tail),
		Stats:      snap.Stats,
	}, nil
}

// publish 原子发布快照并更新指标，返回被替换的快照。
func (s *Service) publish(snap *snapshot.Snapshot) *snapshot.Snapshot {
	old := s.holder.Swap(snap)
	metrics.SnapshotVersion.Set(float64(snap.Version))
	metrics.SnapshotSize.WithLabelValues("items").Set(float64(snap.Stats.Items))
	metrics.SnapshotSize.WithLabelValues("users").Set(float64(snap.Stats.Users))
	metrics.SnapshotSize.WithLabelValues("interactions").Set(float64(snap.Stats.Interactions))
	metrics.SnapshotSize.WithLabelValues("vocabulary").Set(float64(snap.Stats.Vocabulary))
	return old
}
