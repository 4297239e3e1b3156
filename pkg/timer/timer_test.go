package timer

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodic_Fires(t *testing.T) {
	var n atomic.Int32
	p := NewPeriodic()
	p.Start(10*time.Millisecond, func() { n.Add(1) })
	defer p.Stop()

	assert.Eventually(t, func() bool { return n.Load() >= 3 }, time.Second, 5*time.Millisecond)
	assert.True(t, p.Running())
}

func TestPeriodic_Stop(t *testing.T) {
	var n atomic.Int32
	p := NewPeriodic()
	p.Start(10*time.Millisecond, func() { n.Add(1) })
	assert.Eventually(t, func() bool { return n.Load() >= 1 }, time.Second, 5*time.Millisecond)

	p.Stop()
	assert.False(t, p.Running())
	stopped := n.Load()
	time.Sleep(50 * time.Millisecond)
	// at most one callback may have been in flight when Stop ran
	assert.LessOrEqual(t, n.Load(), stopped+1)
}

func TestPeriodic_SetPeriodAndReset(t *testing.T) {
	var n atomic.Int32
	p := NewPeriodic()
	p.Start(time.Hour, func() { n.Add(1) })
	defer p.Stop()

	p.SetPeriod(10 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, p.Period())
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(0), n.Load(), "new period waits for the next scheduled tick")

	p.Reset()
	assert.Eventually(t, func() bool { return n.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestPeriodic_ResetWhenStopped(t *testing.T) {
	p := NewPeriodic()
	p.Reset()
	assert.False(t, p.Running())
}

func TestManual(t *testing.T) {
	var m Manual
	fired := 0
	assert.False(t, m.Fire(), "not started")

	m.Start(time.Minute, func() { fired++ })
	assert.True(t, m.Fire())
	m.SetPeriod(time.Second)
	m.Reset()
	assert.Equal(t, time.Second, m.Period())
	assert.Equal(t, []time.Duration{time.Minute, time.Second}, m.Periods())
	assert.Equal(t, 1, m.Resets())

	m.Stop()
	assert.False(t, m.Fire())
	assert.Equal(t, 1, fired)
}
