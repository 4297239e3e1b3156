package scope

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/itohio/wisnode/pkg/history"
)

var t0 = time.Date(2022, 11, 1, 23, 13, 14, 0, time.UTC)

func TestAutoScale_Empty(t *testing.T) {
	a := autoScale(nil, 30, t0)

	assert.Equal(t, 0.0, a.yMin)
	assert.InDelta(t, 33.0, a.yMax, 1e-9)
	assert.Equal(t, t0, a.xMax)
	assert.Equal(t, t0.Add(-MinWindow), a.xMin)
}

func TestAutoScale_ZeroThreshold(t *testing.T) {
	a := autoScale(nil, 0, t0)
	assert.InDelta(t, 1.1, a.yMax, 1e-9)
}

func TestAutoScale_Points(t *testing.T) {
	points := []history.Point{
		{Time: t0, Turbidity: 10, HasTurbidity: true},
		{Time: t0.Add(30 * time.Minute), Skipped: true},
		{Time: t0.Add(60 * time.Minute), Turbidity: 200, HasTurbidity: true},
	}

	a := autoScale(points, 30, t0.Add(5*time.Hour))

	assert.InDelta(t, 220.0, a.yMax, 1e-9)
	assert.Equal(t, t0, a.xMin)
	assert.Equal(t, t0.Add(time.Hour), a.xMax)
}

func TestAutoScale_ShortSpan(t *testing.T) {
	points := []history.Point{
		{Time: t0, Turbidity: 1, HasTurbidity: true},
		{Time: t0.Add(time.Minute), Turbidity: 2, HasTurbidity: true},
	}

	a := autoScale(points, 30, t0)
	assert.Equal(t, t0.Add(time.Minute), a.xMax)
	assert.Equal(t, a.xMax.Add(-MinWindow), a.xMin)
}

func TestAxes_Mapping(t *testing.T) {
	a := axes{yMin: 0, yMax: 100, xMin: t0, xMax: t0.Add(100 * time.Second)}

	assert.Equal(t, float32(10), a.x(t0, 10, 200))
	assert.Equal(t, float32(110), a.x(t0.Add(50*time.Second), 10, 200))
	assert.Equal(t, float32(210), a.x(a.xMax, 10, 200))

	assert.Equal(t, float32(120), a.y(0, 20, 100))
	assert.Equal(t, float32(20), a.y(100, 20, 100))
	assert.Equal(t, float32(95), a.y(25, 20, 100))

	flat := axes{xMin: t0, xMax: t0}
	assert.Equal(t, float32(10), flat.x(t0.Add(time.Hour), 10, 200))
	assert.Equal(t, float32(120), flat.y(5, 20, 100))
}

func TestFormat(t *testing.T) {
	assert.Equal(t, "30 NTU", formatNTU(30))
	assert.Equal(t, "3000 NTU", formatNTU(2999.6))
	assert.Equal(t, "now", formatAgo(0))
	assert.Equal(t, "-15m", formatAgo(15*time.Minute))
	assert.Equal(t, "-2.5h", formatAgo(150*time.Minute))
}

func TestClamp(t *testing.T) {
	assert.Equal(t, float32(5), clamp(1, 5, 10))
	assert.Equal(t, float32(10), clamp(11, 5, 10))
	assert.Equal(t, float32(7), clamp(7, 5, 10))
}
