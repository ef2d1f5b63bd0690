// Package capture drives the fixed-cadence frame capture tick. The tick only
// runs while the camera is ready and the channel is connected.
package capture

import (
	"context"
	"sync"
	"time"

	"yogavision/log"
	"yogavision/util/timer"

	"go.uber.org/zap"
)

const DefaultInterval = 33 * time.Millisecond

type Scheduler struct {
	ctx      context.Context
	interval time.Duration
	tick     func()

	mu     sync.Mutex
	ticker timer.Ticker
}

// New returns a stopped scheduler. tick must not block; it runs on the
// ticker goroutine.
func New(ctx context.Context, interval time.Duration, tick func()) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Scheduler{
		ctx:      ctx,
		interval: interval,
		tick:     tick,
	}
}

// Update starts the tick when both conditions hold and stops it as soon as
// either is false. It reports whether the scheduler is running afterwards.
func (s *Scheduler) Update(cameraReady, connected bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	want := cameraReady && connected

	switch {
	case want && s.ticker == nil:
		if s.ctx.Err() != nil {
			return false
		}

		s.ticker = timer.NewTickerContext(s.ctx, s.interval, s.tick)
		log.Debug("CaptureStart", zap.Duration("interval", s.interval))
	case !want && s.ticker != nil:
		s.ticker.Stop()
		s.ticker = nil
		log.Debug("CaptureStop", zap.Bool("camera", cameraReady), zap.Bool("connected", connected))
	}

	return s.ticker != nil
}

func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.ticker != nil
}

func (s *Scheduler) Stop() {
	s.Update(false, false)
}
