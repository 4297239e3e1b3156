package sensor

import "strings"

// Field identifies one measured quantity. The numeric order is the canonical
// order in which fields appear in an uplink frame.
type Field uint8

const (
	Battery Field = iota
	Temperature
	Humidity
	Pressure
	GasResistance
	Location
	Turbidity

	numFields
)

var fieldNames = [numFields]string{
	"battery",
	"temperature",
	"humidity",
	"pressure",
	"gas",
	"location",
	"turbidity",
}

func (f Field) String() string {
	if f >= numFields {
		return "unknown"
	}
	return fieldNames[f]
}

// Environmental reports whether the field comes from the I2C environmental sensor.
func (f Field) Environmental() bool {
	switch f {
	case Temperature, Humidity, Pressure, GasResistance:
		return true
	}
	return false
}

// FieldSet is a set of fields.
type FieldSet uint16

// NewFieldSet returns a set holding the given fields.
func NewFieldSet(fields ...Field) FieldSet {
	var s FieldSet
	for _, f := range fields {
		s = s.With(f)
	}
	return s
}

// AllFields holds every known field.
const AllFields FieldSet = 1<<numFields - 1

func (s FieldSet) Has(f Field) bool         { return f < numFields && s&(1<<f) != 0 }
func (s FieldSet) With(f Field) FieldSet    { return s | 1<<f }
func (s FieldSet) Without(f Field) FieldSet { return s &^ (1 << f) }

// Any reports whether s and o share at least one field.
func (s FieldSet) Any(o FieldSet) bool { return s&o != 0 }

// Fields returns the members in canonical order.
func (s FieldSet) Fields() []Field {
	out := make([]Field, 0, numFields)
	for f := Field(0); f < numFields; f++ {
		if s.Has(f) {
			out = append(out, f)
		}
	}
	return out
}

func (s FieldSet) String() string {
	fields := s.Fields()
	if len(fields) == 0 {
		return "none"
	}
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = f.String()
	}
	return strings.Join(names, "+")
}

// EnvironmentalFields is the subset served by the environmental sensor.
var EnvironmentalFields = NewFieldSet(Temperature, Humidity, Pressure, GasResistance)
