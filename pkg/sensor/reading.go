package sensor

// Reading is a single sensor value. Value is meaningless when Valid is false.
type Reading[T any] struct {
	Value T
	Valid bool
}

// ValidReading wraps v as a valid reading.
func ValidReading[T any](v T) Reading[T] {
	return Reading[T]{Value: v, Valid: true}
}

// Position is a latitude/longitude pair in degrees sharing one validity flag.
type Position struct {
	Latitude  float32
	Longitude float32
	Valid     bool
}

// Snapshot holds one cycle's readings. Fields not requested stay invalid.
type Snapshot struct {
	Battery       Reading[float32] // mV
	Temperature   Reading[float32] // °C
	Humidity      Reading[float32] // %RH
	Pressure      Reading[uint32]  // Pa
	GasResistance Reading[uint32]  // Ohm
	Location      Position
	Turbidity     Reading[uint32] // NTU
}
