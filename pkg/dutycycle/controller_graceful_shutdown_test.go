package dutycycle

import (
	"context"
	"testing"
	"time"

	"github.com/itohio/wisnode/pkg/port"
	"github.com/itohio/wisnode/pkg/radio"
	"github.com/itohio/wisnode/pkg/sensor"
	"github.com/itohio/wisnode/pkg/timer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestController_RunStopsOnCancel drives Run from a real periodic timer and
// checks that cancelling the context ends the loop with sensors powered down.
func TestController_RunStopsOnCancel(t *testing.T) {
	def, _ := port.Lookup(1)
	p := DefaultParams(def)
	p.NormalPeriod = 10 * time.Millisecond
	p.FastPeriod = 5 * time.Millisecond
	p.SettleDelay = 0

	power := &fakePower{}
	link := radio.NewMock(true)
	tm := timer.NewPeriodic()
	c, err := New(p, Deps{
		Radio:   link,
		Sensors: &fixedBank{snap: sensor.Snapshot{Battery: sensor.ValidReading(float32(3700))}},
		Power:   power,
		Timer:   tm,
	})
	require.NoError(t, err)

	reports := make(chan Report, 100)
	c.OnCycle(func(r Report) {
		select {
		case reports <- r:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	c.Start()
	defer c.Stop()
	go func() { done <- c.Run(ctx) }()

	for i := 0; i < 3; i++ {
		select {
		case r := <-reports:
			assert.True(t, r.Sent())
		case <-time.After(5 * time.Second):
			t.Fatal("no cycle report within timeout")
		}
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	calls := power.Calls()
	require.NotEmpty(t, calls)
	assert.Equal(t, "off", calls[len(calls)-1])
	assert.GreaterOrEqual(t, len(link.Uplinks()), 3)
}
