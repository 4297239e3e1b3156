package sensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestADCConfig_MVPerLSB(t *testing.T) {
	assert.InDelta(t, 1.73*3000.0/4096.0, BatteryADC.MVPerLSB(), 1e-5)
	assert.InDelta(t, 4*825.0/1024.0, TurbidityADC.MVPerLSB(), 1e-5)
}

func TestADCConfig_RoundTrip(t *testing.T) {
	raw := BatteryADC.FromMV(3700)
	assert.InDelta(t, 3700, BatteryADC.ToMV(raw), float64(BatteryADC.MVPerLSB()))

	assert.Equal(t, uint16(0), BatteryADC.FromMV(-5))
	assert.Equal(t, uint16(4095), BatteryADC.FromMV(1e6))
	assert.Equal(t, uint16(0), ADCConfig{}.FromMV(100))
}

func TestBatterySoC(t *testing.T) {
	tests := []struct {
		name string
		mv   float32
		want float32
	}{
		{"empty", 3300, 0},
		{"below curve", 3000, 0},
		{"ten percent", 3584, 10},
		{"half way 50-60", 3795, 55},
		{"full", 4200, 100},
		{"above curve", 4500, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, BatterySoC(tt.mv), 0.01)
		})
	}
}

func TestTurbidityNTU(t *testing.T) {
	// 500 mV -> 1.61 V, below the curve
	assert.Equal(t, float32(MaxNTU), TurbidityNTU(500))
	// 1500 mV -> 4.84 V, above the curve
	assert.Equal(t, float32(0), TurbidityNTU(1500))

	// Vertex of the parabola gives the peak value.
	vertexMV := float32(turbidityVertexV / turbidityScale * 1000)
	assert.InDelta(t, turbidityPeak, TurbidityNTU(vertexMV), 0.1)

	// Clear water region: 1300 mV -> 4.195 V
	ntu := TurbidityNTU(1300)
	assert.Greater(t, ntu, float32(0))
	assert.Less(t, ntu, float32(1000))

	// Monotonically decreasing over the valid range.
	assert.Greater(t, TurbidityNTU(1000), TurbidityNTU(1200))
}

func TestADCChannel(t *testing.T) {
	raw := uint16(1024)
	ch := NewADCChannel(TurbidityADC, nil, func() uint16 { return raw })

	assert.NoError(t, ch.Init())
	assert.Equal(t, TurbidityADC, ch.Config())
	assert.InDelta(t, 3300, ch.ReadMV(), 1e-3) // full scale, 825 mV x4

	raw = 0
	assert.Equal(t, float32(0), ch.ReadMV())
}

func TestQuantize(t *testing.T) {
	src := NewMockAnalog(1400, 0)
	ch := Quantize(TurbidityADC, src)

	assert.NoError(t, ch.Init())
	mv := ch.ReadMV()
	assert.InDelta(t, 1400, mv, float64(TurbidityADC.MVPerLSB()))
	assert.NotEqual(t, float32(1400), mv) // 1400 is not a whole count
	assert.Equal(t, 1, src.Reads())

	src.FailInit(ErrInitFailed)
	assert.ErrorIs(t, ch.Init(), ErrInitFailed)
}
