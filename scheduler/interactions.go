package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/rushteam/hybridrec/events"
)

// Subscriber 提供交互事件流，events.Bus 实现此接口。
type Subscriber interface {
	SubscribeInteractions(ctx context.Context) (<-chan events.InteractionRecorded, error)
}

// OnInteractions 在累计 Threshold 条新交互后触发重训，
// 两次触发之间至少间隔 MinInterval（令牌桶限流）。
type OnInteractions struct {
	Retrainer Retrainer
	Events    Subscriber
	Threshold int
	Timeout   time.Duration

	limiter *rate.Limiter
	logger  zerolog.Logger
}

// NewOnInteractions 创建按交互量重训的服务；threshold <= 0 时使用 1000。
func NewOnInteractions(r Retrainer, sub Subscriber, threshold int, minInterval, timeout time.Duration, logger zerolog.Logger) *OnInteractions {
	if threshold <= 0 {
		threshold = 1000
	}
	limit := rate.Inf
	if minInterval > 0 {
		limit = rate.Every(minInterval)
	}
	return &OnInteractions{
		Retrainer: r,
		Events:    sub,
		Threshold: threshold,
		Timeout:   timeout,
		limiter:   rate.NewLimiter(limit, 1),
		logger:    logger.With().Str("component", "scheduler.interactions").Logger(),
	}
}

// Serve 实现 suture.Service。事件流关闭时返回，由 supervisor 重启并重新订阅。
func (o *OnInteractions) Serve(ctx context.Context) error {
	ch, err := o.Events.SubscribeInteractions(ctx)
	if err != nil {
		return err
	}
	o.logger.Info().Int("threshold", o.Threshold).Msg("interaction-triggered retrain started")

	pending := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case _, ok := <-ch:
			if !ok {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				return errSubscriptionClosed
			}
			pending++
			if pending < o.Threshold || !o.limiter.Allow() {
				continue
			}
			o.logger.Debug().Int("pending", pending).Msg("interaction threshold reached")
			pending = 0
			run(ctx, o.Retrainer, o.Timeout, "interactions", o.logger)
		}
	}
}

func (o *OnInteractions) String() string { return "interaction-retrain" }
