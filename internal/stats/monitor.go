// Package stats keeps the recent-message ring and message rate history shown
// on the status endpoint.
package stats

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/samber/lo"

	"github.com/Guliveer/livetiming-connector/internal/constants"
	"github.com/Guliveer/livetiming-connector/internal/model"
)

// RatePoint is the number of messages counted in the period starting at At.
type RatePoint struct {
	At    time.Time
	Count int64
}

// Monitor counts messages per second and remembers the last few.
type Monitor struct {
	size   int
	window time.Duration
	now    func() time.Time

	counter atomic.Int64

	mu      sync.Mutex
	recent  []model.LiveTimingMessage
	history []RatePoint
}

// New creates a Monitor keeping size messages and window of rate history.
// Non-positive values take defaults.
func New(size int, window time.Duration) *Monitor {
	if size <= 0 {
		size = constants.DefaultMessageQueueSize
	}
	if window <= 0 {
		window = constants.DefaultRateWindow
	}
	return &Monitor{
		size:   size,
		window: window,
		now:    time.Now,
		recent: make([]model.LiveTimingMessage, 0, size),
	}
}

// Consume records one message.
func (m *Monitor) Consume(msg model.LiveTimingMessage) {
	m.counter.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.recent) == m.size {
		copy(m.recent, m.recent[1:])
		m.recent = m.recent[:m.size-1]
	}
	m.recent = append(m.recent, msg)
}

// Recent returns the retained messages, oldest first.
func (m *Monitor) Recent() []model.LiveTimingMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.recent)
}

// Run samples the counter once a second until ctx is cancelled.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Tick()
		}
	}
}

// Tick closes the current counting period and drops history older than the
// window.
func (m *Monitor) Tick() {
	now := m.now()
	count := m.counter.Swap(0)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.history = append(m.history, RatePoint{At: now, Count: count})

	cutoff := now.Add(-m.window)
	drop := 0
	for drop < len(m.history) && !m.history[drop].At.After(cutoff) {
		drop++
	}
	if drop > 0 {
		m.history = slices.Delete(m.history, 0, drop)
	}
}

// PerSecond returns the per-second history, oldest first.
func (m *Monitor) PerSecond() []RatePoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.history)
}

// PerMinute sums the per-second history into whole minutes, oldest first.
func (m *Monitor) PerMinute() []RatePoint {
	history := m.PerSecond()
	byMinute := lo.GroupBy(history, func(p RatePoint) time.Time {
		return p.At.Truncate(time.Minute)
	})

	minutes := lo.Keys(byMinute)
	slices.SortFunc(minutes, func(a, b time.Time) int { return a.Compare(b) })

	return lo.Map(minutes, func(minute time.Time, _ int) RatePoint {
		return RatePoint{
			At:    minute,
			Count: lo.SumBy(byMinute[minute], func(p RatePoint) int64 { return p.Count }),
		}
	})
}
