// Package scheduler 在后台触发重训：定时触发与按交互量触发，均作为 suture 服务运行。
//
// 重训失败只记录日志，不会让服务退出；正在重训时的触发（CONFLICT）直接跳过。
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"github.com/thejerf/suture/v4"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/service"
)

var errSubscriptionClosed = errors.New("scheduler: event subscription closed")

// Retrainer 执行一次重训，service.Service 实现此接口。
type Retrainer interface {
	Retrain(ctx context.Context) (service.RetrainReport, error)
}

// run 在超时内执行一次重训并记录结果。
func run(ctx context.Context, r Retrainer, timeout time.Duration, trigger string, logger zerolog.Logger) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	report, err := r.Retrain(ctx)
	switch {
	case err == nil:
		logger.Info().Str("trigger", trigger).Int64("version", report.Version).Dur("duration", report.Duration).Msg("scheduled retrain done")
	case core.IsConflict(err):
		logger.Debug().Str("trigger", trigger).Msg("retrain already running, skipped")
	case errors.Is(err, context.Canceled):
		logger.Debug().Str("trigger", trigger).Msg("retrain canceled")
	default:
		logger.Warn().Err(err).Str("trigger", trigger).Msg("scheduled retrain failed")
	}
}

// NewSupervisor 创建根 supervisor，事件通过 zerolog 记录。
func NewSupervisor(name string, logger zerolog.Logger) *suture.Supervisor {
	logger = logger.With().Str("component", "supervisor").Logger()
	return suture.New(name, suture.Spec{
		EventHook: func(ev suture.Event) {
			e := logger.Info()
			switch ev.Type() {
			case suture.EventTypeServicePanic, suture.EventTypeServiceTerminate:
				e = logger.Warn()
			case suture.EventTypeStopTimeout:
				e = logger.Error()
			}
			e.Fields(ev.Map()).Msg(ev.String())
		},
		FailureThreshold: 5,
		FailureDecay:     30,
		FailureBackoff:   15 * time.Second,
		Timeout:          10 * time.Second,
	})
}
