package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Periodic 按固定间隔重训；OnStart 为 true 时启动后立即重训一次。
type Periodic struct {
	Retrainer Retrainer
	Interval  time.Duration
	OnStart   bool
	Timeout   time.Duration

	logger zerolog.Logger
}

// NewPeriodic 创建定时重训服务，interval <= 0 时使用 1h。
func NewPeriodic(r Retrainer, interval time.Duration, onStart bool, timeout time.Duration, logger zerolog.Logger) *Periodic {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Periodic{
		Retrainer: r,
		Interval:  interval,
		OnStart:   onStart,
		Timeout:   timeout,
		logger:    logger.With().Str("component", "scheduler.periodic").Logger(),
	}
}

// Serve 实现 suture.Service。
func (p *Periodic) Serve(ctx context.Context) error {
	p.logger.Info().Dur("interval", p.Interval).Bool("on_start", p.OnStart).Msg("periodic retrain started")
	if p.OnStart {
		run(ctx, p.Retrainer, p.Timeout, "start", p.logger)
	}

	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			run(ctx, p.Retrainer, p.Timeout, "interval", p.logger)
		}
	}
}

func (p *Periodic) String() string { return "periodic-retrain" }
