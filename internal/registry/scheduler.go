package registry

import (
	"context"
	"errors"
	"time"
)

// Scheduler drives Update at a fixed cadence, independent of any render
// loop.
type Scheduler interface {
	Ticks() <-chan time.Time
	Stop()
}

// TickerScheduler is a Scheduler backed by time.Ticker.
type TickerScheduler struct {
	ticker *time.Ticker
	period time.Duration
}

// NewTickerScheduler creates a scheduler ticking every d.
func NewTickerScheduler(d time.Duration) *TickerScheduler {
	return &TickerScheduler{ticker: time.NewTicker(d), period: d}
}

// Period returns the tick interval.
func (s *TickerScheduler) Period() time.Duration {
	return s.period
}

// Ticks returns the tick channel.
func (s *TickerScheduler) Ticks() <-chan time.Time {
	return s.ticker.C
}

// Stop stops the ticker.
func (s *TickerScheduler) Stop() {
	s.ticker.Stop()
}

// Run is the surface loop: ticks call Update, remote snapshots are merged as
// they arrive, and cancellation departs. Init must have been called.
// Cancellation is not reported as an error.
func (m *Manager) Run(ctx context.Context, sched Scheduler) error {
	m.mu.Lock()
	initialized := m.initialized
	if p, ok := sched.(interface{ Period() time.Duration }); ok && m.tick == 0 {
		m.tick = max(p.Period(), 0)
	}
	m.mu.Unlock()
	if !initialized {
		return ErrNotInitialized
	}
	defer sched.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Depart()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-sched.Ticks():
			m.Update()
		case raw := <-m.inbox:
			m.onExternalChange(raw)
		}
	}
}
