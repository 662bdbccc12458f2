package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/hybridrec/core"
	"github.com/rushteam/hybridrec/events"
	"github.com/rushteam/hybridrec/service"
)

type countingRetrainer struct {
	calls atomic.Int32
	err   error
}

func (c *countingRetrainer) Retrain(context.Context) (service.RetrainReport, error) {
	n := c.calls.Add(1)
	return service.RetrainReport{Version: int64(n)}, c.err
}

func TestPeriodic(t *testing.T) {
	r := &countingRetrainer{}
	p := NewPeriodic(r, 10*time.Millisecond, true, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx) }()

	require.Eventually(t, func() bool { return r.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestPeriodic_FailuresKeepRunning(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"conflict", core.NewDomainError(core.ModuleService, core.ErrorCodeConflict, "busy")},
		{"store down", errors.New("store down")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &countingRetrainer{err: tt.err}
			p := NewPeriodic(r, 5*time.Millisecond, false, 0, zerolog.Nop())
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			go func() { _ = p.Serve(ctx) }()
			require.Eventually(t, func() bool { return r.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
		})
	}
}

func TestNewPeriodic_DefaultInterval(t *testing.T) {
	p := NewPeriodic(&countingRetrainer{}, 0, false, 0, zerolog.Nop())
	assert.Equal(t, time.Hour, p.Interval)
	assert.Equal(t, "periodic-retrain", p.String())
}

func TestOnInteractions(t *testing.T) {
	bus := events.NewBus(64, zerolog.Nop())
	t.Cleanup(func() { _ = bus.Close() })

	r := &countingRetrainer{}
	o := NewOnInteractions(r, bus, 3, 0, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	started := make(chan struct{})
	go func() {
		close(started)
		done <- o.Serve(ctx)
	}()
	<-started

	publish := func(n int) {
		for k := 0; k < n; k++ {
			require.NoError(t, bus.PublishInteraction(ctx, core.Interaction{UserID: "u1", ItemID: "A", Type: core.InteractionView}))
		}
	}
	// 订阅在 Serve 中建立，等它就绪后再发
	require.Eventually(t, func() bool {
		publish(1)
		return r.calls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	before := r.calls.Load()
	publish(3)
	require.Eventually(t, func() bool { return r.calls.Load() >= before+1 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestOnInteractions_RateLimited(t *testing.T) {
	bus := events.NewBus(64, zerolog.Nop())
	t.Cleanup(func() { _ = bus.Close() })

	r := &countingRetrainer{}
	o := NewOnInteractions(r, bus, 1, time.Hour, 0, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = o.Serve(ctx) }()

	require.Eventually(t, func() bool {
		_ = bus.PublishInteraction(ctx, core.Interaction{UserID: "u1", ItemID: "A", Type: core.InteractionView})
		return r.calls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	for k := 0; k < 5; k++ {
		require.NoError(t, bus.PublishInteraction(ctx, core.Interaction{UserID: "u1", ItemID: "A", Type: core.InteractionView}))
	}
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int32(1), r.calls.Load())
}

func TestSupervisor_RunsServices(t *testing.T) {
	r := &countingRetrainer{}
	sup := NewSupervisor("test", zerolog.Nop())
	sup.Add(NewPeriodic(r, time.Hour, true, 0, zerolog.Nop()))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := sup.ServeBackground(ctx)
	require.Eventually(t, func() bool { return r.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	<-errCh
}
