package port

import (
	"encoding/hex"
	"fmt"

	"github.com/itohio/wisnode/pkg/logging"
	"github.com/itohio/wisnode/pkg/schema"
	"github.com/itohio/wisnode/pkg/sensor"
)

// Frame is an encoded uplink. Port travels as the LoRaWAN FPort, not in Payload.
type Frame struct {
	Port    uint8
	Payload []byte
}

func (f Frame) Len() int { return len(f.Payload) }

func (f Frame) String() string {
	return fmt.Sprintf("%d:%s", f.Port, hex.EncodeToString(f.Payload))
}

// Encoder builds frames from snapshots.
type Encoder struct {
	log *logging.Logger
}

// NewEncoder creates an encoder. Non-fatal encoding problems go to log.
func NewEncoder(log *logging.Logger) *Encoder {
	return &Encoder{log: log}
}

// Encode packs the snapshot fields selected by def in canonical order.
// A definition larger than MaxPayloadSize is a configuration error and
// nothing is encoded.
func (e *Encoder) Encode(snap sensor.Snapshot, def Definition) (Frame, error) {
	buf, err := e.Append(make([]byte, 0, MaxPayloadSize), snap, def)
	if err != nil {
		return Frame{}, err
	}
	return Frame{Port: def.Number, Payload: buf}, nil
}

// Append encodes onto dst, which may already hold a prefix. The result must
// still fit MaxPayloadSize.
func (e *Encoder) Append(dst []byte, snap sensor.Snapshot, def Definition) ([]byte, error) {
	if size := len(dst) + def.Size(); size > MaxPayloadSize {
		return dst, fmt.Errorf("%s needs %d bytes, buffer holds %d: %w", def, size, MaxPayloadSize, ErrPayloadTooLarge)
	}

	for _, f := range def.Fields.Fields() {
		s := schema.For(f)
		switch f {
		case sensor.Battery:
			dst = e.append(dst, s, float64(snap.Battery.Value), snap.Battery.Valid)
		case sensor.Temperature:
			dst = e.append(dst, s, float64(snap.Temperature.Value), snap.Temperature.Valid)
		case sensor.Humidity:
			dst = e.append(dst, s, float64(snap.Humidity.Value), snap.Humidity.Valid)
		case sensor.Pressure:
			dst = e.append(dst, s, float64(snap.Pressure.Value), snap.Pressure.Valid)
		case sensor.GasResistance:
			dst = e.append(dst, s, float64(snap.GasResistance.Value), snap.GasResistance.Valid)
		case sensor.Location:
			dst = e.append(dst, s, float64(snap.Location.Latitude), snap.Location.Valid)
			dst = e.append(dst, s, float64(snap.Location.Longitude), snap.Location.Valid)
		case sensor.Turbidity:
			dst = e.append(dst, s, float64(snap.Turbidity.Value), snap.Turbidity.Valid)
		}
	}
	return dst, nil
}

func (e *Encoder) append(dst []byte, s schema.FieldSchema, v float64, valid bool) []byte {
	dst, err := s.Append(dst, v, valid)
	if err != nil {
		e.log.Warnf("%v", err)
	}
	return dst
}

// Decode reverses Encode. Sentinel values come back as invalid readings,
// except single byte fields which are always valid.
func Decode(f Frame) (sensor.Snapshot, error) {
	var snap sensor.Snapshot

	def, ok := Lookup(f.Port)
	if !ok {
		return snap, fmt.Errorf("port %d: %w", f.Port, ErrUnknownPort)
	}
	if f.Len() != def.Size() {
		return snap, fmt.Errorf("%s: got %d bytes, want %d: %w", def, f.Len(), def.Size(), ErrPayloadLength)
	}

	b := f.Payload
	next := func(s schema.FieldSchema) (float64, bool) {
		v, ok := s.Value(b)
		b = b[s.Width():]
		return v, ok
	}

	for _, fld := range def.Fields.Fields() {
		s := schema.For(fld)
		switch fld {
		case sensor.Battery:
			v, ok := next(s)
			snap.Battery = sensor.Reading[float32]{Value: float32(v), Valid: ok}
		case sensor.Temperature:
			v, ok := next(s)
			snap.Temperature = sensor.Reading[float32]{Value: float32(v), Valid: ok}
		case sensor.Humidity:
			v, ok := next(s)
			snap.Humidity = sensor.Reading[float32]{Value: float32(v), Valid: ok}
		case sensor.Pressure:
			v, ok := next(s)
			snap.Pressure = sensor.Reading[uint32]{Value: uint32(v), Valid: ok}
		case sensor.GasResistance:
			v, ok := next(s)
			snap.GasResistance = sensor.Reading[uint32]{Value: uint32(v), Valid: ok}
		case sensor.Location:
			lat, latOK := next(s)
			lon, lonOK := next(s)
			snap.Location = sensor.Position{Latitude: float32(lat), Longitude: float32(lon), Valid: latOK && lonOK}
		case sensor.Turbidity:
			v, ok := next(s)
			snap.Turbidity = sensor.Reading[uint32]{Value: uint32(v), Valid: ok}
		}
	}
	return snap, nil
}
