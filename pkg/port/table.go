// Package port maps LoRaWAN FPort numbers to the set of fields their frames carry.
package port

import (
	"fmt"
	"sort"

	"github.com/itohio/wisnode/pkg/schema"
	"github.com/itohio/wisnode/pkg/sensor"
)

// MaxPayloadSize is the capacity of the uplink buffer.
const MaxPayloadSize = 64

// Definition says which fields an uplink on Number carries.
type Definition struct {
	Number uint8
	Fields sensor.FieldSet
}

// Size returns the encoded frame length in bytes.
func (d Definition) Size() int {
	n := 0
	for _, f := range d.Fields.Fields() {
		n += int(schema.For(f).TotalBytes)
	}
	return n
}

func (d Definition) String() string {
	return fmt.Sprintf("port %d (%s)", d.Number, d.Fields)
}

const (
	bat  = 1 << sensor.Battery
	tmp  = 1 << sensor.Temperature
	hum  = 1 << sensor.Humidity
	pres = 1 << sensor.Pressure
	gas  = 1 << sensor.GasResistance
	loc  = 1 << sensor.Location
	turb = 1 << sensor.Turbidity
)

// Ports 1..9 grow the environmental set, 50..59 repeat them with location.
// 10, 11, 13 and 60 carry turbidity.
var table = map[uint8]sensor.FieldSet{
	1:  bat,
	2:  tmp,
	3:  bat | tmp,
	4:  tmp | hum,
	5:  bat | tmp | hum,
	6:  tmp | hum | pres,
	7:  bat | tmp | hum | pres,
	8:  tmp | hum | pres | gas,
	9:  bat | tmp | hum | pres | gas,
	10: turb,
	11: bat | turb,
	13: bat | tmp | turb,
	50: loc,
	51: bat | loc,
	52: tmp | loc,
	53: bat | tmp | loc,
	54: tmp | hum | loc,
	55: bat | tmp | hum | loc,
	56: tmp | hum | pres | loc,
	57: bat | tmp | hum | pres | loc,
	58: tmp | hum | pres | gas | loc,
	59: bat | tmp | hum | pres | gas | loc,
	60: bat | loc | turb,
}

// Lookup returns the definition for an FPort.
func Lookup(number uint8) (Definition, bool) {
	fields, ok := table[number]
	if !ok {
		return Definition{}, false
	}
	return Definition{Number: number, Fields: fields}, true
}

// All returns every known port in ascending order.
func All() []Definition {
	defs := make([]Definition, 0, len(table))
	for n, f := range table {
		defs = append(defs, Definition{Number: n, Fields: f})
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Number < defs[j].Number })
	return defs
}
