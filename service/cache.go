package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/metrics"
)

// cacheEntry 是一次读结果的缓存形式。
// Version 与 Seq 记录计算时的快照版本和用户实时日志序号，任一落后即视为过期。
type cacheEntry struct {
	Version int64                 `json:"version"`
	Seq     uint64                `json:"seq"`
	Items   []core.Recommendation `json:"items"`
}

// newCacheBreaker 创建缓存熔断器：连续 failures 次失败后打开，timeout 后半开探测。
// key 不存在不算失败。
func newCacheBreaker(failures uint32, timeout time.Duration, logger zerolog.Logger) *gobreaker.CircuitBreaker[[]byte] {
	return gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
		Name:        "cache",
		MaxRequests: 1,
		Interval:    time.Minute,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.CacheBreakerState.Set(float64(to))
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("cache breaker state changed")
		},
		IsSuccessful: func(err error) bool {
			return err == nil || core.IsStoreNotFound(err)
		},
	})
}

// cacheKey 的格式为 {namespace}:{operation}:{subject}:{limit}。
func (s *Service) cacheKey(op, subject string, limit int) string {
	return fmt.Sprintf("%s:%s:%s:%d", s.opts.Namespace, op, subject, limit)
}

func (s *Service) cachePrefix(op, subject string) string {
	if subject == "" {
		return fmt.Sprintf("%s:%s:", s.opts.Namespace, op)
	}
	return fmt.Sprintf("%s:%s:%s", s.opts.Namespace, op, subject)
}

// cacheGet 读取缓存；未命中、解码失败或缓存不可用时返回 false。
func (s *Service) cacheGet(ctx context.Context, op, key string) (*cacheEntry, bool) {
	data, err := s.breaker.Execute(func() ([]byte, error) {
		return s.cache.Get(ctx, key)
	})
	switch {
	case err == nil:
	case core.IsStoreNotFound(err):
		metrics.CacheResults.WithLabelValues(op, "miss").Inc()
		return nil, false
	default:
		s.cacheFailed(op, "get", key, err)
		return nil, false
	}
	var e cacheEntry
	if err := json.Unmarshal(data, &e); err != nil {
		s.cacheFailed(op, "decode", key, err)
		return nil, false
	}
	return &e, true
}

// cacheSet 写回缓存，失败只记录日志。
func (s *Service) cacheSet(ctx context.Context, op, key string, e cacheEntry) {
	data, err := json.Marshal(e)
	if err != nil {
		s.cacheFailed(op, "encode", key, err)
		return
	}
	ttl := int(s.opts.TTL.of(op) / time.Second)
	if _, err := s.breaker.Execute(func() ([]byte, error) {
		return nil, s.cache.Set(ctx, key, data, ttl)
	}); err != nil {
		s.cacheFailed(op, "set", key, err)
	}
}

// invalidate 按前缀删除缓存，失败只记录日志，过期的条目在读取时仍会被版本/序号校验淘汰。
func (s *Service) invalidate(ctx context.Context, reason string, prefixes ...string) {
	for _, p := range prefixes {
		_, err := s.breaker.Execute(func() ([]byte, error) {
			return nil, s.cache.DeletePrefix(ctx, p)
		})
		if err != nil {
			s.cacheFailed("invalidate", "delete_prefix", p, err)
			continue
		}
		metrics.CacheInvalidations.WithLabelValues(reason).Inc()
	}
}

func (s *Service) cacheFailed(op, action, key string, err error) {
	metrics.CacheResults.WithLabelValues(op, "error").Inc()
	ev := s.logger.Warn()
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		ev = s.logger.Debug()
	}
	ev.Err(err).Str("operation", op).Str("action", action).Str("key", key).Msg("cache degraded")
}
