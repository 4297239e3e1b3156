package main

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/wisnode/pkg/config"
	"github.com/itohio/wisnode/pkg/dutycycle"
	"github.com/itohio/wisnode/pkg/logging"
	"github.com/itohio/wisnode/pkg/node"
	"github.com/itohio/wisnode/pkg/port"
	"github.com/itohio/wisnode/pkg/sensor"
	"github.com/itohio/wisnode/pkg/timer"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestRunHeadless(t *testing.T) {
	var out syncBuffer
	log := logging.New(&out, logging.LevelInfo)
	tm := &timer.Manual{}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- runHeadless(ctx, config.Default(), log, node.WithTimer(tm), node.WithSleep(func(time.Duration) {}))
	}()

	require.Eventually(t, tm.Fire, 5*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "sent 13:")
	}, 5*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runHeadless did not return after cancel")
	}

	logged := out.String()
	assert.Contains(t, logged, "turbidity 0 NTU")
	assert.Contains(t, logged, "stopped: sent 1, failed 0, skipped 0")
}

func TestRunHeadless_SetupError(t *testing.T) {
	cfg := config.Default()
	cfg.Sensors.UseRAK1901 = false

	err := runHeadless(context.Background(), cfg, logging.Discard(), node.WithTimer(&timer.Manual{}))
	assert.ErrorIs(t, err, sensor.ErrNoEnvironmentalSensor)
}

var t0 = time.Date(2022, 11, 1, 23, 13, 14, 0, time.UTC)

func TestDescribeReport(t *testing.T) {
	frame := port.Frame{Port: 13, Payload: []byte{0x0E, 0x74, 0x08, 0x66, 0x00, 0x00}}

	tests := []struct {
		name string
		r    dutycycle.Report
		want string
	}{
		{
			name: "sent",
			r:    dutycycle.Report{Time: t0, Mode: dutycycle.Normal, Frame: frame},
			want: "23:13:14 normal sent " + frame.String(),
		},
		{
			name: "trigger",
			r:    dutycycle.Report{Time: t0, Mode: dutycycle.Normal, Frame: frame, Triggered: true},
			want: "23:13:14 normal sent " + frame.String() + " TRIGGER",
		},
		{
			name: "active",
			r:    dutycycle.Report{Time: t0, Mode: dutycycle.Active, Cycle: 3, Frame: frame},
			want: "23:13:14 active #3 sent " + frame.String(),
		},
		{
			name: "skipped",
			r:    dutycycle.Report{Time: t0, Mode: dutycycle.Normal, Skipped: true},
			want: "23:13:14 normal skipped, not joined",
		},
		{
			name: "failed",
			r:    dutycycle.Report{Time: t0, Mode: dutycycle.Normal, Err: errors.New("busy")},
			want: "23:13:14 normal failed: busy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, describeReport(tt.r))
		})
	}
}

func TestDescribeSnapshot(t *testing.T) {
	assert.Equal(t, "no valid readings", describeSnapshot(sensor.Snapshot{}))

	snap := sensor.Snapshot{
		Battery:     sensor.ValidReading[float32](3700),
		Temperature: sensor.ValidReading[float32](21.5),
		Location:    sensor.Position{Latitude: -27.4698, Longitude: 153.0251, Valid: true},
		Turbidity:   sensor.ValidReading[uint32](42),
	}
	got := describeSnapshot(snap)
	assert.Contains(t, got, "battery 3700 mV")
	assert.Contains(t, got, "temperature 21.50 °C")
	assert.Contains(t, got, "location -27.4698,153.0251")
	assert.Contains(t, got, "turbidity 42 NTU")
	assert.NotContains(t, got, "humidity")
}

func TestDescribeFrame(t *testing.T) {
	got := describeFrame(port.Frame{Port: 13, Payload: []byte{0x0E, 0x74, 0x08, 0x66, 0x00, 0x00}})
	assert.Equal(t, "battery 3700 mV (25%), temperature 21.50 °C, turbidity 0 NTU", got)

	got = describeFrame(port.Frame{Port: 13, Payload: []byte{1}})
	assert.Contains(t, got, "got 1 bytes, want 6")
}
