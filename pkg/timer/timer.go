// Package timer provides the periodic wake-up timer that drives the duty cycle.
package timer

import (
	"sync"
	"time"
)

// Periodic calls a callback every period on its own goroutine.
type Periodic struct {
	mu      sync.Mutex
	period  time.Duration
	cb      func()
	t       *time.Timer
	gen     uint64
	running bool
}

// NewPeriodic creates a stopped timer.
func NewPeriodic() *Periodic {
	return &Periodic{}
}

// Start arms the timer. A running timer is restarted.
func (p *Periodic) Start(period time.Duration, cb func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked()
	p.period = period
	p.cb = cb
	p.running = true
	p.armLocked()
}

// SetPeriod changes the period from the next scheduled tick on.
func (p *Periodic) SetPeriod(period time.Duration) {
	p.mu.Lock()
	p.period = period
	p.mu.Unlock()
}

// Reset restarts the countdown now with the current period.
func (p *Periodic) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.running {
		return
	}
	p.stopLocked()
	p.running = true
	p.armLocked()
}

// Stop disarms the timer. Callbacks already running are not waited for.
func (p *Periodic) Stop() {
	p.mu.Lock()
	p.stopLocked()
	p.mu.Unlock()
}

// Period returns the configured period.
func (p *Periodic) Period() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.period
}

// Running reports whether the timer is armed.
func (p *Periodic) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *Periodic) stopLocked() {
	p.running = false
	p.gen++
	if p.t != nil {
		p.t.Stop()
		p.t = nil
	}
}

func (p *Periodic) armLocked() {
	p.gen++
	gen := p.gen
	p.t = time.AfterFunc(p.period, func() { p.fire(gen) })
}

func (p *Periodic) fire(gen uint64) {
	p.mu.Lock()
	if !p.running || gen != p.gen {
		// stale timer superseded by Reset or Stop
		p.mu.Unlock()
		return
	}
	cb := p.cb
	p.armLocked()
	p.mu.Unlock()

	if cb != nil {
		cb()
	}
}
