package service

import (
	"context"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/metrics"
)

// RecordInteraction 写入一条交互，不触发重训。
//   - 校验失败返回 INVALID_INPUT
//   - 存储可写时先追加到存储，失败返回 UNAVAILABLE 且不写实时日志
//   - 追加到实时日志后，用户的个性化与类目缓存立即失效
//   - 发布 interactions.recorded 事件（原始记录，评分保留），发布失败只记录日志
func (s *Service) RecordInteraction(ctx context.Context, it core.Interaction) error {
	now := s.opts.Now()
	normalized, err := it.Normalize(now)
	if err != nil {
		return err
	}
	if it.Timestamp.IsZero() {
		it.Timestamp = now
	}

	if rec, ok := s.store.(core.InteractionRecorder); ok {
		if err := rec.AppendInteraction(ctx, it); err != nil {
			return core.WrapDomainError(core.ModuleService, core.ErrorCodeUnavailable, "record: append to "+s.store.Name(), err)
		}
	}

	// 原始记录用于并入训练与事件，折算形式只给读路径用
	s.log.Append(it, normalized)
	metrics.InteractionsRecorded.WithLabelValues(string(normalized.Type)).Inc()
	metrics.InteractionTail.Set(float64(s.log.Len()))

	s.invalidate(ctx, "interaction",
		s.cachePrefix(OpRecommendations, normalized.UserID+":"),
		s.cachePrefix(OpCategory, normalized.UserID+"/"),
	)

	if s.publisher != nil {
		if err := s.publisher.PublishInteraction(ctx, it); err != nil {
			s.logger.Warn().Err(err).Str("user_id", normalized.UserID).Msg("publish interaction failed")
		}
	}
	return nil
}
