// Package playback drives redraws while a video is playing.
package playback

import (
	"context"
	"sync"
	"time"
)

// DefaultInterval is one refresh at 60Hz.
const DefaultInterval = time.Second / 60

// Scheduler runs a task repeatedly between Start and Stop.
type Scheduler interface {
	// Start begins invoking task, once right away and then on every
	// refresh. Starting a running scheduler does nothing.
	Start(task func())
	// Stop ends the schedule. When it returns, task is not running and
	// will not run again. It must not be called from inside task.
	Stop()
}

// TickerScheduler is a Scheduler backed by a time.Ticker. Invocations run
// one at a time on a single goroutine; ticks that arrive while the task is
// still running are dropped.
type TickerScheduler struct {
	interval time.Duration

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewTickerScheduler creates a scheduler ticking every interval.
func NewTickerScheduler(interval time.Duration) *TickerScheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &TickerScheduler{interval: interval}
}

// IntervalForRate converts a refresh rate in Hz to a tick interval.
func IntervalForRate(hz float64) time.Duration {
	if hz <= 0 {
		return DefaultInterval
	}
	return time.Duration(float64(time.Second) / hz)
}

func (s *TickerScheduler) Start(task func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	s.wg.Add(1)
	go s.run(ctx, task)
}

func (s *TickerScheduler) run(ctx context.Context, task func()) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	task()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Both cases may be ready; cancellation wins.
			if ctx.Err() != nil {
				return
			}
			task()
		}
	}
}

func (s *TickerScheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}
