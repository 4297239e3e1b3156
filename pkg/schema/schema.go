// Package schema describes how each sensor field is scaled and laid out in an
// uplink frame.
package schema

import (
	"errors"
	"fmt"

	"github.com/itohio/wisnode/pkg/sensor"
)

var (
	// ErrNegativeUnsigned reports a negative value encoded into an unsigned
	// field. The raw two's complement bits are still written.
	ErrNegativeUnsigned = errors.New("negative value in unsigned field")
	// ErrInvalidSchema reports a malformed field schema.
	ErrInvalidSchema = errors.New("invalid field schema")
)

// Sentinels written in place of invalid readings, truncated to the field width.
const (
	SignedSentinel   uint32 = 0x7F7F7F7F
	UnsignedSentinel uint32 = 0xFFFFFFFF
)

// FieldSchema is the wire layout of one field.
type FieldSchema struct {
	Name        string
	TotalBytes  uint8 // bytes for all values of the field
	ValueCount  uint8
	ScaleFactor float32
	Signed      bool
}

// Wire layouts. These are part of the uplink contract and must not change.
var (
	Battery       = FieldSchema{Name: "battery", TotalBytes: 2, ValueCount: 1, ScaleFactor: 1}
	Temperature   = FieldSchema{Name: "temperature", TotalBytes: 2, ValueCount: 1, ScaleFactor: 100, Signed: true}
	Humidity      = FieldSchema{Name: "humidity", TotalBytes: 1, ValueCount: 1, ScaleFactor: float32(255 / 100.0)}
	Pressure      = FieldSchema{Name: "pressure", TotalBytes: 4, ValueCount: 1, ScaleFactor: 1}
	GasResistance = FieldSchema{Name: "gas", TotalBytes: 4, ValueCount: 1, ScaleFactor: 1}
	Location      = FieldSchema{Name: "location", TotalBytes: 8, ValueCount: 2, ScaleFactor: 10000, Signed: true}
	Turbidity     = FieldSchema{Name: "turbidity", TotalBytes: 2, ValueCount: 1, ScaleFactor: 1}
)

// For returns the schema of f.
func For(f sensor.Field) FieldSchema {
	switch f {
	case sensor.Battery:
		return Battery
	case sensor.Temperature:
		return Temperature
	case sensor.Humidity:
		return Humidity
	case sensor.Pressure:
		return Pressure
	case sensor.GasResistance:
		return GasResistance
	case sensor.Location:
		return Location
	case sensor.Turbidity:
		return Turbidity
	}
	panic(fmt.Sprintf("schema: unknown field %d", f))
}

// Validate checks the byte split.
func (s FieldSchema) Validate() error {
	switch {
	case s.ValueCount == 0:
		return fmt.Errorf("%s: zero value count: %w", s.Name, ErrInvalidSchema)
	case s.TotalBytes == 0 || s.TotalBytes%s.ValueCount != 0:
		return fmt.Errorf("%s: %d bytes cannot hold %d values: %w", s.Name, s.TotalBytes, s.ValueCount, ErrInvalidSchema)
	case s.Width() > 4:
		return fmt.Errorf("%s: %d-byte values exceed 32 bits: %w", s.Name, s.Width(), ErrInvalidSchema)
	}
	return nil
}

// Width returns the byte width of a single value.
func (s FieldSchema) Width() int {
	return int(s.TotalBytes / s.ValueCount)
}

// Sentinel returns the invalid marker for this schema, truncated to Width.
func (s FieldSchema) Sentinel() uint32 {
	v := UnsignedSentinel
	if s.Signed {
		v = SignedSentinel
	}
	return v & widthMask(s.Width())
}

func widthMask(width int) uint32 {
	if width >= 4 {
		return 0xFFFFFFFF
	}
	return 1<<(8*width) - 1
}

// Append encodes one value big-endian onto dst. Valid values are multiplied
// by the scale factor in single precision, as the node firmware does, and
// truncated toward zero; invalid ones become the sentinel. A negative value
// in an unsigned field is still appended and reported with ErrNegativeUnsigned.
func (s FieldSchema) Append(dst []byte, value float64, valid bool) ([]byte, error) {
	var (
		bits uint32
		err  error
	)
	if valid {
		encoded := int64(float32(value) * s.ScaleFactor)
		if !s.Signed && encoded < 0 {
			err = fmt.Errorf("%s=%v: %w", s.Name, value, ErrNegativeUnsigned)
		}
		bits = uint32(encoded)
	} else {
		bits = s.Sentinel()
	}

	for i := s.Width() - 1; i >= 0; i-- {
		dst = append(dst, byte(bits>>(8*i)))
	}
	return dst, err
}

// Value decodes one value from the first Width bytes of b. The second result
// is false when the bytes hold the sentinel or b is shorter than Width.
// Single byte fields are otherwise always reported valid, because their
// sentinel is also a legal reading.
func (s FieldSchema) Value(b []byte) (float64, bool) {
	w := s.Width()
	if len(b) < w {
		return 0, false
	}
	var bits uint32
	for i := 0; i < w; i++ {
		bits = bits<<8 | uint32(b[i])
	}
	if w > 1 && bits == s.Sentinel() {
		return 0, false
	}

	var raw int64
	if s.Signed {
		shift := 32 - 8*w
		raw = int64(int32(bits<<shift) >> shift)
	} else {
		raw = int64(bits)
	}
	return float64(raw) / float64(s.ScaleFactor), true
}
