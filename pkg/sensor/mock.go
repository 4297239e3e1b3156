package sensor

import (
	"errors"
	"math"
	"sync"
	"time"
)

var (
	_ Analog        = (*MockAnalog)(nil)
	_ Environmental = (*MockEnvironmental)(nil)
	_ Locator       = (*MockLocator)(nil)
)

// MockAnalog simulates an analog sensor with an adjustable level and a small
// deterministic ripple.
type MockAnalog struct {
	mu      sync.RWMutex
	mv      float32
	noise   float32
	start   time.Time
	initErr error
	reads   int
}

// NewMockAnalog creates a mock reporting mv millivolts with ±noise ripple.
func NewMockAnalog(mv, noise float32) *MockAnalog {
	return &MockAnalog{mv: mv, noise: noise, start: time.Now()}
}

// Init returns the error set with FailInit.
func (m *MockAnalog) Init() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initErr
}

// FailInit makes Init return err.
func (m *MockAnalog) FailInit(err error) {
	m.mu.Lock()
	m.initErr = err
	m.mu.Unlock()
}

// Set changes the simulated level.
func (m *MockAnalog) Set(mv float32) {
	m.mu.Lock()
	m.mv = mv
	m.mu.Unlock()
}

// Level returns the simulated level without ripple.
func (m *MockAnalog) Level() float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.mv
}

// Reads returns how many times ReadMV was called.
func (m *MockAnalog) Reads() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.reads
}

func (m *MockAnalog) ReadMV() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.noise == 0 {
		return m.mv
	}
	t := float64(time.Since(m.start).Nanoseconds())
	ripple := (math.Sin(t*0.001) + math.Cos(t*0.0013)) * 0.5
	return m.mv + float32(ripple)*m.noise
}

// MockEnvironmental simulates a RAK1901/RAK1906 style sensor.
type MockEnvironmental struct {
	mu            sync.RWMutex
	supported     FieldSet
	temperature   float32
	humidity      float32
	pressure      uint32
	gasResistance uint32
	ready         bool
	initErr       error
	initialised   FieldSet
}

// NewMockEnvironmental creates a sensor able to measure the supported fields.
func NewMockEnvironmental(supported FieldSet) *MockEnvironmental {
	return &MockEnvironmental{
		supported:     supported & EnvironmentalFields,
		temperature:   21.5,
		humidity:      50,
		pressure:      101325,
		gasResistance: 50000,
		ready:         true,
	}
}

// NewMockRAK1901 simulates the SHTC3 (temperature and humidity only).
func NewMockRAK1901() *MockEnvironmental {
	return NewMockEnvironmental(NewFieldSet(Temperature, Humidity))
}

// NewMockRAK1906 simulates the BME680.
func NewMockRAK1906() *MockEnvironmental {
	return NewMockEnvironmental(EnvironmentalFields)
}

var errMockUnsupported = errors.New("mock sensor cannot measure field")

func (m *MockEnvironmental) Init(fields FieldSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.initErr != nil {
		return m.initErr
	}
	if fields&^m.supported != 0 {
		return errMockUnsupported
	}
	m.initialised = fields
	return nil
}

// FailInit makes Init return err.
func (m *MockEnvironmental) FailInit(err error) {
	m.mu.Lock()
	m.initErr = err
	m.mu.Unlock()
}

// Initialised returns the fields passed to the last successful Init.
func (m *MockEnvironmental) Initialised() FieldSet {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.initialised
}

// SetReady controls DataReady.
func (m *MockEnvironmental) SetReady(ready bool) {
	m.mu.Lock()
	m.ready = ready
	m.mu.Unlock()
}

// Set updates the simulated climate.
func (m *MockEnvironmental) Set(temperature, humidity float32, pressure, gasResistance uint32) {
	m.mu.Lock()
	m.temperature = temperature
	m.humidity = humidity
	m.pressure = pressure
	m.gasResistance = gasResistance
	m.mu.Unlock()
}

func (m *MockEnvironmental) DataReady() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ready
}

func (m *MockEnvironmental) Temperature() float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.temperature
}

func (m *MockEnvironmental) Humidity() float32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.humidity
}

func (m *MockEnvironmental) Pressure() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pressure
}

func (m *MockEnvironmental) GasResistance() uint32 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gasResistance
}

// MockLocator returns a fixed position.
type MockLocator struct {
	mu       sync.RWMutex
	lat, lon float32
	fix      bool
}

// NewMockLocator creates a locator with a fix at lat/lon.
func NewMockLocator(lat, lon float32) *MockLocator {
	return &MockLocator{lat: lat, lon: lon, fix: true}
}

func (m *MockLocator) Init() error { return nil }

// SetFix changes the reported position and fix state.
func (m *MockLocator) SetFix(lat, lon float32, ok bool) {
	m.mu.Lock()
	m.lat, m.lon, m.fix = lat, lon, ok
	m.mu.Unlock()
}

func (m *MockLocator) Fix() (float32, float32, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lat, m.lon, m.fix
}
