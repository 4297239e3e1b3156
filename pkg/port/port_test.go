package port

import (
	"bytes"
	"testing"

	"github.com/itohio/wisnode/pkg/logging"
	"github.com/itohio/wisnode/pkg/sensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	tests := []struct {
		port uint8
		want sensor.FieldSet
		size int
	}{
		{1, sensor.NewFieldSet(sensor.Battery), 2},
		{2, sensor.NewFieldSet(sensor.Temperature), 2},
		{5, sensor.NewFieldSet(sensor.Battery, sensor.Temperature, sensor.Humidity), 5},
		{9, sensor.NewFieldSet(sensor.Battery, sensor.Temperature, sensor.Humidity, sensor.Pressure, sensor.GasResistance), 13},
		{10, sensor.NewFieldSet(sensor.Turbidity), 2},
		{13, sensor.NewFieldSet(sensor.Battery, sensor.Temperature, sensor.Turbidity), 6},
		{50, sensor.NewFieldSet(sensor.Location), 8},
		{59, sensor.NewFieldSet(sensor.Battery, sensor.Temperature, sensor.Humidity, sensor.Pressure, sensor.GasResistance, sensor.Location), 21},
		{60, sensor.NewFieldSet(sensor.Battery, sensor.Location, sensor.Turbidity), 12},
	}

	for _, tt := range tests {
		def, ok := Lookup(tt.port)
		require.True(t, ok, "port %d", tt.port)
		assert.Equal(t, tt.want, def.Fields, "port %d", tt.port)
		assert.Equal(t, tt.size, def.Size(), "port %d", tt.port)
	}

	_, ok := Lookup(0)
	assert.False(t, ok)
	_, ok = Lookup(12)
	assert.False(t, ok)
}

func TestTable_LocationPortsMirrorBasePorts(t *testing.T) {
	for n := uint8(1); n <= 9; n++ {
		base, ok := Lookup(n)
		require.True(t, ok)
		withLoc, ok := Lookup(50 + n)
		require.True(t, ok)
		assert.Equal(t, base.Fields.With(sensor.Location), withLoc.Fields, "port %d", 50+n)
	}
}

func TestAll(t *testing.T) {
	defs := All()
	assert.Len(t, defs, 23)
	for i := 1; i < len(defs); i++ {
		assert.Less(t, defs[i-1].Number, defs[i].Number)
	}
	for _, d := range defs {
		assert.LessOrEqual(t, d.Size(), MaxPayloadSize, "%s", d)
	}
}

func TestEncode_EndToEnd(t *testing.T) {
	def := Definition{Number: 7, Fields: sensor.NewFieldSet(sensor.Battery, sensor.Temperature, sensor.Pressure)}
	snap := sensor.Snapshot{
		Battery:     sensor.ValidReading(float32(3700)),
		Temperature: sensor.ValidReading(float32(21.5)),
		Pressure:    sensor.ValidReading(uint32(101325)),
	}

	f, err := NewEncoder(nil).Encode(snap, def)
	require.NoError(t, err)
	assert.Equal(t, uint8(7), f.Port)
	assert.Equal(t, []byte{0x0E, 0x74, 0x08, 0x66, 0x00, 0x01, 0x8B, 0xCD}, f.Payload)
	assert.Equal(t, "7:0e74086600018bcd", f.String())
}

func TestEncode_InvalidBecomesSentinel(t *testing.T) {
	def, _ := Lookup(3)
	f, err := NewEncoder(nil).Encode(sensor.Snapshot{}, def)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFF, 0x7F, 0x7F}, f.Payload)
}

func TestEncode_DisabledFieldsOmitted(t *testing.T) {
	snap := sensor.Snapshot{
		Battery:     sensor.ValidReading(float32(3700)),
		Temperature: sensor.ValidReading(float32(21.5)),
		Humidity:    sensor.ValidReading(float32(50)),
	}
	def, _ := Lookup(1)
	f, err := NewEncoder(nil).Encode(snap, def)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x0E, 0x74}, f.Payload)
}

func TestEncode_LocationOrder(t *testing.T) {
	def, _ := Lookup(60)
	snap := sensor.Snapshot{
		Battery:   sensor.ValidReading(float32(4000)),
		Location:  sensor.Position{Latitude: 1, Longitude: -1, Valid: true},
		Turbidity: sensor.ValidReading(uint32(35)),
	}
	f, err := NewEncoder(nil).Encode(snap, def)
	require.NoError(t, err)
	assert.Equal(t, []byte{
		0x0F, 0xA0, // battery
		0x00, 0x00, 0x27, 0x10, // lat 1.0
		0xFF, 0xFF, 0xD8, 0xF0, // lon -1.0
		0x00, 0x23, // turbidity
	}, f.Payload)
}

func TestEncode_TooLarge(t *testing.T) {
	enc := NewEncoder(nil)
	prefix := make([]byte, MaxPayloadSize-1)
	def, _ := Lookup(1)

	_, err := enc.Append(prefix, sensor.Snapshot{}, def)
	assert.ErrorIs(t, err, ErrPayloadTooLarge)
}

func TestEncode_NegativeUnsignedWarns(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(logging.New(&buf, logging.LevelWarn))
	def, _ := Lookup(1)

	f, err := enc.Encode(sensor.Snapshot{Battery: sensor.ValidReading(float32(-2))}, def)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xFF, 0xFE}, f.Payload)
	assert.Contains(t, buf.String(), "WARN: battery=-2")
}

func TestEncode_Idempotent(t *testing.T) {
	enc := NewEncoder(nil)
	def, _ := Lookup(59)
	snap := sensor.Snapshot{
		Temperature: sensor.ValidReading(float32(-3.5)),
		Location:    sensor.Position{Latitude: -27.4698, Longitude: 153.0251, Valid: true},
	}
	a, err := enc.Encode(snap, def)
	require.NoError(t, err)
	b, err := enc.Encode(snap, def)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestDecode_RoundTrip(t *testing.T) {
	enc := NewEncoder(nil)
	snap := sensor.Snapshot{
		Battery:       sensor.ValidReading(float32(3812)),
		Temperature:   sensor.ValidReading(float32(-7.25)),
		Humidity:      sensor.ValidReading(float32(64)),
		Pressure:      sensor.ValidReading(uint32(99870)),
		GasResistance: sensor.ValidReading(uint32(48211)),
		Location:      sensor.Position{Latitude: -27.4698, Longitude: 153.0251, Valid: true},
	}

	for _, def := range All() {
		f, err := enc.Encode(snap, def)
		require.NoError(t, err)

		got, err := Decode(f)
		require.NoError(t, err, "%s", def)

		if def.Fields.Has(sensor.Battery) {
			assert.Equal(t, snap.Battery, got.Battery)
		}
		if def.Fields.Has(sensor.Temperature) {
			assert.True(t, got.Temperature.Valid)
			assert.InDelta(t, -7.25, got.Temperature.Value, 0.01)
		}
		if def.Fields.Has(sensor.Humidity) {
			assert.InDelta(t, 64, got.Humidity.Value, 0.4)
		}
		if def.Fields.Has(sensor.Pressure) {
			assert.Equal(t, snap.Pressure, got.Pressure)
		}
		if def.Fields.Has(sensor.GasResistance) {
			assert.Equal(t, snap.GasResistance, got.GasResistance)
		}
		if def.Fields.Has(sensor.Location) {
			assert.True(t, got.Location.Valid)
			assert.InDelta(t, -27.4698, got.Location.Latitude, 2e-4)
			assert.InDelta(t, 153.0251, got.Location.Longitude, 2e-4)
		}
		if def.Fields.Has(sensor.Turbidity) {
			assert.False(t, got.Turbidity.Valid, "turbidity was invalid")
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	_, err := Decode(Frame{Port: 12, Payload: []byte{1}})
	assert.ErrorIs(t, err, ErrUnknownPort)

	_, err = Decode(Frame{Port: 1, Payload: []byte{1, 2, 3}})
	assert.ErrorIs(t, err, ErrPayloadLength)
}

func TestDecode_Sentinels(t *testing.T) {
	got, err := Decode(Frame{Port: 5, Payload: []byte{0xFF, 0xFF, 0x7F, 0x7F, 0xFF}})
	require.NoError(t, err)
	assert.False(t, got.Battery.Valid)
	assert.False(t, got.Temperature.Valid)
	assert.True(t, got.Humidity.Valid)
}
