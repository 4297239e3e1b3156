package dutycycle

import (
	"context"
	"time"
)

var _ WakeSignal = (*Signal)(nil)

// Signal is a binary semaphore. Any number of Give calls before a Take
// release exactly one Take.
type Signal struct {
	ch chan struct{}
}

// NewSignal creates a signal in the taken state.
func NewSignal() *Signal {
	return &Signal{ch: make(chan struct{}, 1)}
}

// Give releases one waiter. It never blocks and is safe from any goroutine.
func (s *Signal) Give() {
	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// Take waits for Give. A non-positive timeout waits until ctx is done.
// It reports whether the signal was taken.
func (s *Signal) Take(ctx context.Context, timeout time.Duration) bool {
	if timeout <= 0 {
		select {
		case <-s.ch:
			return true
		case <-ctx.Done():
			return false
		}
	}

	t := time.NewTimer(timeout)
	defer t.Stop()
	select {
	case <-s.ch:
		return true
	case <-t.C:
		return false
	case <-ctx.Done():
		return false
	}
}
