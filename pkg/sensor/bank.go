package sensor

import (
	"fmt"
	"time"

	"github.com/itohio/wisnode/pkg/logging"
)

// Analog is an ADC-backed sensor reporting millivolts at the sensor.
type Analog interface {
	Init() error
	ReadMV() float32
}

// Environmental is an I2C temperature/humidity/pressure/gas sensor.
type Environmental interface {
	Init(fields FieldSet) error
	DataReady() bool
	Temperature() float32
	Humidity() float32
	Pressure() uint32
	GasResistance() uint32
}

// Locator provides a position fix.
type Locator interface {
	Init() error
	Fix() (lat, lon float32, ok bool)
}

// Defaults for turbidity averaging.
const (
	DefaultTurbiditySamples  = 100
	DefaultTurbidityInterval = 100 * time.Millisecond
)

// BankConfig wires sensor drivers into a Bank. Nil drivers are treated as absent.
type BankConfig struct {
	Battery   Analog
	Turbidity Analog
	Locator   Locator

	// RAK1901 is the SHTC3 temperature/humidity sensor, RAK1906 the BME680.
	RAK1901    Environmental
	RAK1906    Environmental
	UseRAK1901 bool
	UseRAK1906 bool

	TurbiditySamples  int
	TurbidityInterval time.Duration // zero disables the delay between samples

	// Sleep is used between turbidity samples. Defaults to time.Sleep.
	Sleep func(time.Duration)
	Log   *logging.Logger
}

// Bank reads a Snapshot from the configured sensors.
type Bank struct {
	cfg BankConfig
	env Environmental
	log *logging.Logger
}

// NewBank creates a sensor bank. Sensors are not touched until Init.
func NewBank(cfg BankConfig) *Bank {
	if cfg.TurbiditySamples <= 0 {
		cfg.TurbiditySamples = DefaultTurbiditySamples
	}
	if cfg.TurbidityInterval < 0 {
		cfg.TurbidityInterval = DefaultTurbidityInterval
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	return &Bank{cfg: cfg, log: cfg.Log}
}

// Init selects the environmental sensor and initialises every driver needed
// for fields. Any error is fatal to node setup.
func (b *Bank) Init(fields FieldSet) error {
	b.log.Debugf("Initialising sensors for %s", fields)

	use1901, use1906 := b.cfg.UseRAK1901, b.cfg.UseRAK1906
	if use1901 && use1906 {
		b.log.Warnf("Cannot use both SHTC3(RAK1901) & BME680(RAK1906). The RAK1906 will be used by default.")
		use1901 = false
	}

	if fields.Has(Battery) {
		if err := initAnalog("battery", b.cfg.Battery); err != nil {
			return err
		}
	}

	b.env = nil
	switch {
	case fields.Any(EnvironmentalFields) && use1906:
		if b.cfg.RAK1906 == nil {
			return fmt.Errorf("RAK1906: %w", ErrInitFailed)
		}
		if err := b.cfg.RAK1906.Init(fields & EnvironmentalFields); err != nil {
			return fmt.Errorf("RAK1906: %w: %w", ErrInitFailed, err)
		}
		b.env = b.cfg.RAK1906
	case fields.Any(EnvironmentalFields) && use1901:
		if fields.Has(Pressure) || fields.Has(GasResistance) {
			return fmt.Errorf("RAK1901 cannot provide pressure or gas resistance: %w", ErrUnsupportedField)
		}
		if b.cfg.RAK1901 == nil {
			return fmt.Errorf("RAK1901: %w", ErrInitFailed)
		}
		if err := b.cfg.RAK1901.Init(fields & EnvironmentalFields); err != nil {
			return fmt.Errorf("RAK1901: %w: %w", ErrInitFailed, err)
		}
		b.env = b.cfg.RAK1901
	case fields.Any(EnvironmentalFields):
		return fmt.Errorf("temperature/humidity/pressure/gas requested: %w", ErrNoEnvironmentalSensor)
	case use1901 || use1906:
		b.log.Warnf("Neither a RAK1901 or RAK1906 is required for this port.")
	}

	if fields.Has(Location) {
		if b.cfg.Locator == nil {
			return fmt.Errorf("location: %w", ErrInitFailed)
		}
		if err := b.cfg.Locator.Init(); err != nil {
			return fmt.Errorf("location: %w: %w", ErrInitFailed, err)
		}
	}

	if fields.Has(Turbidity) {
		if err := initAnalog("turbidity", b.cfg.Turbidity); err != nil {
			return err
		}
	}

	return nil
}

func initAnalog(name string, a Analog) error {
	if a == nil {
		return fmt.Errorf("%s: %w", name, ErrInitFailed)
	}
	if err := a.Init(); err != nil {
		return fmt.Errorf("%s: %w: %w", name, ErrInitFailed, err)
	}
	return nil
}

// ReadAll reads every requested field. Fields that were not requested, or
// whose sensor has no data ready, are left invalid. Turbidity averaging
// blocks for TurbiditySamples*TurbidityInterval.
func (b *Bank) ReadAll(fields FieldSet) Snapshot {
	var s Snapshot

	if fields.Has(Battery) && b.cfg.Battery != nil {
		s.Battery = ValidReading(b.cfg.Battery.ReadMV())
	}

	if fields.Any(EnvironmentalFields) && b.env != nil && b.env.DataReady() {
		if fields.Has(Temperature) {
			s.Temperature = ValidReading(b.env.Temperature())
		}
		if fields.Has(Humidity) {
			s.Humidity = ValidReading(b.env.Humidity())
		}
		if fields.Has(Pressure) {
			s.Pressure = ValidReading(b.env.Pressure())
		}
		if fields.Has(GasResistance) {
			s.GasResistance = ValidReading(b.env.GasResistance())
		}
	}

	if fields.Has(Location) && b.cfg.Locator != nil {
		if lat, lon, ok := b.cfg.Locator.Fix(); ok {
			s.Location = Position{Latitude: lat, Longitude: lon, Valid: true}
		}
	}

	if fields.Has(Turbidity) && b.cfg.Turbidity != nil {
		s.Turbidity = ValidReading(b.averageTurbidity())
	}

	return s
}

func (b *Bank) averageTurbidity() uint32 {
	n := b.cfg.TurbiditySamples
	var sum float32
	for i := 0; i < n; i++ {
		sum += TurbidityNTU(b.cfg.Turbidity.ReadMV())
		b.cfg.Sleep(b.cfg.TurbidityInterval)
	}
	avg := sum / float32(n)
	b.log.Debugf("turbidity average of %d samples: %.2f NTU", n, avg)
	return uint32(avg)
}
