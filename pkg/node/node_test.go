package node

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/wisnode/pkg/config"
	"github.com/itohio/wisnode/pkg/dutycycle"
	"github.com/itohio/wisnode/pkg/logging"
	"github.com/itohio/wisnode/pkg/port"
	"github.com/itohio/wisnode/pkg/radio"
	"github.com/itohio/wisnode/pkg/sensor"
	"github.com/itohio/wisnode/pkg/timer"
)

const (
	testDevAddr = "26011bda"
	testNwkSKey = "000102030405060708090a0b0c0d0e0f"
	testAppSKey = "0f0e0d0c0b0a09080706050403020100"
)

func noSleep(time.Duration) {}

func newTestNode(t *testing.T, cfg *config.Config, opts ...Option) (*Node, *timer.Manual) {
	t.Helper()
	tm := &timer.Manual{}
	opts = append([]Option{WithTimer(tm), WithSleep(noSleep)}, opts...)
	n, err := New(cfg, logging.Discard(), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { n.Close() })
	return n, tm
}

func cycle(t *testing.T, n *Node, tm *timer.Manual) {
	t.Helper()
	require.True(t, tm.Fire())
	n.Controller.Step(context.Background())
}

func TestNew_MockBackend(t *testing.T) {
	cfg := config.Default()
	n, tm := newTestNode(t, cfg)

	assert.Equal(t, uint8(13), n.Port.Number)
	assert.Nil(t, n.Air)
	mock, ok := n.Link.(*radio.Mock)
	require.True(t, ok)

	require.NoError(t, n.Join(context.Background()))
	n.Controller.Start()
	assert.Equal(t, 30*time.Minute, tm.Period())

	cycle(t, n, tm)

	uplinks := mock.Uplinks()
	require.Len(t, uplinks, 1)
	assert.Equal(t, uint8(13), uplinks[0].Port)
	assert.Equal(t, n.Port.Size(), len(uplinks[0].Payload))

	snap, err := port.Decode(port.Frame{Port: uplinks[0].Port, Payload: uplinks[0].Payload})
	require.NoError(t, err)
	assert.InDelta(t, 3900, snap.Battery.Value, 10)
	assert.InDelta(t, 21.5, snap.Temperature.Value, 0.01)
	assert.True(t, snap.Turbidity.Valid)
	assert.Less(t, snap.Turbidity.Value, uint32(30)) // clear water

	points := n.History.Points()
	require.Len(t, points, 1)
	assert.True(t, points[0].Sent)
	assert.Equal(t, radio.Stats{Sent: 1}, n.Radio.Stats())
	assert.True(t, n.Power.On()) // switched off on the next sleep
}

func TestNode_TurbidityTrigger(t *testing.T) {
	cfg := config.Default()
	n, tm := newTestNode(t, cfg)
	n.Controller.Start()

	// below 2.5 V at the sensor reads as saturated muddy water
	n.Sensors.Turbidity.Set(700)
	cycle(t, n, tm)

	st := n.Controller.State()
	assert.True(t, st.Trigger)
	assert.Equal(t, cfg.Schedule.FastPeriod, tm.Period())
	assert.Equal(t, 1, tm.Resets())

	cycle(t, n, tm)
	assert.Equal(t, dutycycle.SwitchToActive, n.Controller.State().Mode)
	cycle(t, n, tm)
	assert.Equal(t, dutycycle.Active, n.Controller.State().Mode)
	assert.Equal(t, 1, n.Controller.State().Cycle)

	episodes := n.History.Episodes()
	require.Len(t, episodes, 1)
	assert.True(t, episodes[0].Open)
	assert.Equal(t, 2, episodes[0].Cycles)
	assert.Equal(t, 3000.0, episodes[0].PeakNTU)
}

func TestNode_SendNow(t *testing.T) {
	n, tm := newTestNode(t, config.Default())
	n.Controller.Start()

	n.SendNow()
	n.Controller.Step(context.Background())

	assert.Len(t, n.History.Points(), 1)
	assert.Equal(t, 0, tm.Resets())
}

func TestNew_ABPBackend(t *testing.T) {
	cfg := config.Default()
	cfg.Radio.Backend = config.BackendABP
	cfg.Radio.ABP = config.ABPConfig{
		DevAddr:  testDevAddr,
		NwkSKey:  testNwkSKey,
		AppSKey:  testAppSKey,
		Region:   "AU915",
		DataRate: 2,
	}
	n, tm := newTestNode(t, cfg)
	require.NotNil(t, n.Air)

	require.NoError(t, n.Join(context.Background()))
	n.Controller.Start()
	cycle(t, n, tm)

	frames := n.Air.Frames()
	require.Len(t, frames, 1)
	require.NoError(t, frames[0].Err)
	assert.Equal(t, uint8(13), frames[0].Port)
	assert.Equal(t, uint32(0), frames[0].FCnt)
	assert.Len(t, frames[0].Payload, n.Port.Size())
}

func TestNew_Errors(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		target error
	}{
		{
			name:   "unknown port",
			modify: func(c *config.Config) { c.Node.Port = 12 },
			target: config.ErrUnknownPort,
		},
		{
			name: "no environmental sensor",
			modify: func(c *config.Config) {
				c.Sensors.UseRAK1901 = false
				c.Sensors.UseRAK1906 = false
			},
			target: sensor.ErrNoEnvironmentalSensor,
		},
		{
			name: "pressure on rak1901",
			modify: func(c *config.Config) {
				c.Node.Port = 7
			},
			target: sensor.ErrUnsupportedField,
		},
		{
			name: "payload too long for data rate",
			modify: func(c *config.Config) {
				c.Node.Port = 59
				c.Sensors.UseRAK1906 = true
				c.Radio.Backend = config.BackendABP
				c.Radio.ABP = config.ABPConfig{
					DevAddr: testDevAddr, NwkSKey: testNwkSKey, AppSKey: testAppSKey,
					Region: "US915", DataRate: 0,
				}
			},
			target: radio.ErrPayloadExceedsDataRate,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.modify(cfg)
			_, err := New(cfg, logging.Discard(), WithTimer(&timer.Manual{}), WithSleep(noSleep))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestNew_WithLink(t *testing.T) {
	link := radio.NewMock(false)
	n, tm := newTestNode(t, config.Default(), WithLink(link))
	n.Controller.Start()

	cycle(t, n, tm)
	assert.Empty(t, link.Uplinks())
	assert.Equal(t, uint32(1), n.Controller.State().Skipped)
	points := n.History.Points()
	require.Len(t, points, 1)
	assert.True(t, points[0].Skipped)

	link.SetConnected(true)
	cycle(t, n, tm)
	assert.Len(t, link.Uplinks(), 1)
}

func TestNode_RunStopsOnCancel(t *testing.T) {
	n, _ := newTestNode(t, config.Default())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- n.Run(ctx) }()

	n.SendNow()
	require.Eventually(t, func() bool { return len(n.History.Points()) == 1 }, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.False(t, n.Power.On())
}
