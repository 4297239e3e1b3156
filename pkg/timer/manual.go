package timer

import (
	"sync"
	"time"
)

// Manual is a timer that only fires when told to. It records every period
// change so tests and simulations can assert on scheduling.
type Manual struct {
	mu      sync.Mutex
	period  time.Duration
	cb      func()
	running bool
	resets  int
	periods []time.Duration
}

func (m *Manual) Start(period time.Duration, cb func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.period = period
	m.cb = cb
	m.running = true
	m.periods = append(m.periods, period)
}

func (m *Manual) SetPeriod(period time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.period = period
	m.periods = append(m.periods, period)
}

func (m *Manual) Reset() {
	m.mu.Lock()
	m.resets++
	m.mu.Unlock()
}

func (m *Manual) Stop() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
}

// Fire invokes the callback on the calling goroutine if the timer is running.
func (m *Manual) Fire() bool {
	m.mu.Lock()
	cb, running := m.cb, m.running
	m.mu.Unlock()
	if !running || cb == nil {
		return false
	}
	cb()
	return true
}

func (m *Manual) Period() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.period
}

// Resets returns how many times Reset was called.
func (m *Manual) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// Periods returns the period passed to Start followed by every SetPeriod.
func (m *Manual) Periods() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.periods...)
}
