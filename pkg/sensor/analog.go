package sensor

import "github.com/chewxy/math32"

// ADCConfig describes how raw ADC counts map to millivolts at the sensor.
type ADCConfig struct {
	ReferenceMV  float32 `yaml:"reference_mv"`
	Resolution   uint8   `yaml:"resolution"`
	Compensation float32 `yaml:"compensation"` // divider ratio in front of the ADC pin
}

// Stock ADC settings for the WisBlock base board.
var (
	// BatteryADC samples the LiPo through the on-board divider against the 3.0 V internal reference.
	BatteryADC = ADCConfig{ReferenceMV: 3000, Resolution: 12, Compensation: 1.73}
	// TurbidityADC samples the turbidity sensor output against VDD/4.
	TurbidityADC = ADCConfig{ReferenceMV: 825, Resolution: 10, Compensation: 4}
)

// MVPerLSB returns millivolts represented by one ADC count.
func (c ADCConfig) MVPerLSB() float32 {
	return c.Compensation * c.ReferenceMV / math32.Pow(2, float32(c.Resolution))
}

// ToMV converts a raw count to millivolts.
func (c ADCConfig) ToMV(raw uint16) float32 {
	return float32(raw) * c.MVPerLSB()
}

// FromMV converts millivolts back to the nearest raw count, clamped to the ADC range.
func (c ADCConfig) FromMV(mv float32) uint16 {
	lsb := c.MVPerLSB()
	if lsb <= 0 {
		return 0
	}
	maxCount := math32.Pow(2, float32(c.Resolution)) - 1
	return uint16(math32.Max(0, math32.Min(maxCount, math32.Round(mv/lsb))))
}

// LiPo 0.2C discharge curve, one entry per 10% step from 0% to 100%.
var socCurveMV = [...]float32{3300, 3584, 3678, 3725, 3748, 3775, 3815, 3873, 3951, 4036, 4200}

// BatterySoC converts a battery voltage to state of charge in percent (0..100).
func BatterySoC(mv float32) float32 {
	n := len(socCurveMV)
	high, low := socCurveMV[n-1], socCurveMV[n-2]
	soc := float32(100)
	for i := 1; i < n; i++ {
		if mv <= socCurveMV[i] {
			high, low = socCurveMV[i], socCurveMV[i-1]
			soc = float32(i-1) * 10
			break
		}
	}
	soc += (mv - low) * 10 / (high - low)
	return math32.Max(0, math32.Min(100, soc))
}

const (
	// MaxNTU is reported for sensor voltages below the curve's valid range.
	MaxNTU = 3000

	turbidityScale   = 3.227 // maps the 0..3 V ADC range back onto the 0..5 V sensor output
	turbidityLowV    = 2.5
	turbidityHighV   = 4.45
	turbidityVertexV = 2.563
	turbidityPeak    = 3004.742
	turbidityCurve   = 843.846
)

// TurbidityNTU converts the sensor's ADC voltage (mV) to turbidity.
func TurbidityNTU(mv float32) float32 {
	v := mv / 1000 * turbidityScale
	switch {
	case v < turbidityLowV:
		return MaxNTU
	case v > turbidityHighV:
		return 0
	}
	d := v - turbidityVertexV
	return -turbidityCurve*d*d + turbidityPeak
}
