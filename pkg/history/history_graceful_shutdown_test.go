package history

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/wisnode/pkg/dutycycle"
)

// TestHistory_GracefulShutdown_NoCallbacksAfterClose checks that callbacks
// stop once the input channel is closed while reports are still recorded.
func TestHistory_GracefulShutdown_NoCallbacksAfterClose(t *testing.T) {
	h := New(time.Hour)

	var calls atomic.Int32
	h.OnUpdate(func(points []Point, episodes []Episode) {
		calls.Add(1)
	})

	input := make(chan dutycycle.Report, 10)
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Process(input)
	}()

	for i := 0; i < 3; i++ {
		input <- report(time.Duration(i)*time.Minute, dutycycle.Normal, uint32(i))
	}
	close(input)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Process did not return after input closed")
	}
	assert.Equal(t, int32(3), calls.Load())

	h.Record(report(5*time.Minute, dutycycle.Normal, 9))
	assert.Equal(t, int32(3), calls.Load(), "No callbacks should be sent after channel closes")
	assert.Len(t, h.Points(), 4)
}

// TestHistory_ResetShutdown checks that ResetShutdown allows callbacks again.
func TestHistory_ResetShutdown(t *testing.T) {
	h := New(time.Hour)

	var calls atomic.Int32
	h.OnUpdate(func(points []Point, episodes []Episode) {
		calls.Add(1)
	})

	input := make(chan dutycycle.Report)
	close(input)
	h.Process(input)

	h.Record(report(0, dutycycle.Normal, 1))
	assert.Equal(t, int32(0), calls.Load())

	h.ResetShutdown()
	h.Record(report(time.Minute, dutycycle.Normal, 2))
	assert.Equal(t, int32(1), calls.Load())
}
