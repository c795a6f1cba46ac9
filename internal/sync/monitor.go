package sync

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
)

// HealthChecker probes the backend's health endpoint.
type HealthChecker interface {
	Health(ctx context.Context) error
}

// Monitor tracks backend reachability. It implements Connectivity for the
// engine and fires registered callbacks on the offline-to-online
// transition so queued work gets flushed as soon as the link returns.
//
// State changes come from Check (the background poller) or SetOnline
// (tests and synthetic events); both funnel through the same transition
// logic.
type Monitor struct {
	checker HealthChecker

	online atomic.Bool

	mu       sync.Mutex
	onOnline []func()
}

// NewMonitor creates a Monitor. The initial state is offline until the
// first successful check.
func NewMonitor(checker HealthChecker) *Monitor {
	return &Monitor{checker: checker}
}

// Online reports the last observed reachability state.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// OnOnline registers a callback invoked on each offline-to-online
// transition. Callbacks run synchronously from the goroutine that
// observed the transition.
func (m *Monitor) OnOnline(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onOnline = append(m.onOnline, fn)
}

// Check probes the backend once and updates the state. Returns the new
// online state.
func (m *Monitor) Check(ctx context.Context) bool {
	err := m.checker.Health(ctx)
	m.SetOnline(err == nil)
	return err == nil
}

// SetOnline records a reachability observation, firing callbacks when the
// state flips from offline to online.
func (m *Monitor) SetOnline(online bool) {
	was := m.online.Swap(online)
	if was == online {
		return
	}

	if online {
		slog.Info("connection restored", "component", "sync")
		m.mu.Lock()
		callbacks := make([]func(), len(m.onOnline))
		copy(callbacks, m.onOnline)
		m.mu.Unlock()
		for _, fn := range callbacks {
			fn()
		}
		return
	}

	slog.Info("connection lost, offline mode active", "component", "sync")
}
