package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/itohio/wisnode/pkg/dutycycle"
	"github.com/itohio/wisnode/pkg/logging"
	"github.com/itohio/wisnode/pkg/port"
	"github.com/itohio/wisnode/pkg/radio"
	"github.com/itohio/wisnode/pkg/sensor"
)

// Radio backends.
const (
	BackendMock  = "mock"
	BackendMQTT  = "mqtt"
	BackendModem = "modem"
	BackendABP   = "abp"
)

var (
	// ErrUnknownPort means node.port is not in the port table.
	ErrUnknownPort = errors.New("unknown port")
	// ErrInvalid means a value is out of range.
	ErrInvalid = errors.New("invalid configuration")
)

// Config represents the node configuration.
type Config struct {
	Node     NodeConfig     `yaml:"node"`
	Schedule ScheduleConfig `yaml:"schedule"`
	Trigger  TriggerConfig  `yaml:"trigger"`
	Sensors  SensorsConfig  `yaml:"sensors"`
	Radio    RadioConfig    `yaml:"radio"`
	Log      LogConfig      `yaml:"log"`
	Mock     MockConfig     `yaml:"mock"`
}

// NodeConfig selects what the node sends.
type NodeConfig struct {
	Port      uint8 `yaml:"port"`
	Confirmed bool  `yaml:"confirmed"`
}

// ScheduleConfig contains the duty cycle timing.
type ScheduleConfig struct {
	NormalPeriod time.Duration `yaml:"normal_period"`
	FastPeriod   time.Duration `yaml:"fast_period"`
	ActiveCycles int           `yaml:"active_cycles"`
	SettleDelay  time.Duration `yaml:"settle_delay"`
	MaxSleep     time.Duration `yaml:"max_sleep"` // 0 = wait for the timer indefinitely
}

// TriggerConfig contains the active mode trigger.
type TriggerConfig struct {
	TurbidityNTU uint32 `yaml:"turbidity_ntu"`
}

// SensorsConfig selects and tunes the sensors.
type SensorsConfig struct {
	UseRAK1901        bool             `yaml:"use_rak1901"`
	UseRAK1906        bool             `yaml:"use_rak1906"`
	TurbiditySamples  int              `yaml:"turbidity_samples"`
	TurbidityInterval time.Duration    `yaml:"turbidity_interval"`
	Battery           sensor.ADCConfig `yaml:"battery"`
	Turbidity         sensor.ADCConfig `yaml:"turbidity"`
}

// RadioConfig selects the uplink transport.
type RadioConfig struct {
	Backend string      `yaml:"backend"`
	MQTT    MQTTConfig  `yaml:"mqtt"`
	Modem   ModemConfig `yaml:"modem"`
	ABP     ABPConfig   `yaml:"abp"`
}

// MQTTConfig contains MQTT bridge settings.
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
	QoS      byte   `yaml:"qos"`
}

// ModemConfig contains serial AT modem settings.
type ModemConfig struct {
	Port     string `yaml:"port"`
	BaudRate int    `yaml:"baud_rate"`
}

// ABPConfig contains an ABP session. Keys are hex strings.
type ABPConfig struct {
	DevAddr  string `yaml:"dev_addr"`
	NwkSKey  string `yaml:"nwk_s_key"`
	AppSKey  string `yaml:"app_s_key"`
	Region   string `yaml:"region"`
	DataRate int    `yaml:"data_rate"`
	FCnt     uint32 `yaml:"fcnt"` // first uplink frame counter
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `yaml:"level"`
}

// MockConfig contains simulated sensor values.
type MockConfig struct {
	BatteryMV     float32 `yaml:"battery_mv"`
	Temperature   float32 `yaml:"temperature"`    // °C
	Humidity      float32 `yaml:"humidity"`       // %RH
	Pressure      uint32  `yaml:"pressure"`       // Pa
	GasResistance uint32  `yaml:"gas_resistance"` // Ohm
	Latitude      float32 `yaml:"latitude"`
	Longitude     float32 `yaml:"longitude"`
	TurbidityMV   float32 `yaml:"turbidity_mv"`
	NoiseLevel    float32 `yaml:"noise_level"` // mV ripple on analog sensors
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Node: NodeConfig{
			Port: 13, // battery, temperature, turbidity
		},
		Schedule: ScheduleConfig{
			NormalPeriod: dutycycle.DefaultNormalPeriod,
			FastPeriod:   dutycycle.DefaultFastPeriod,
			ActiveCycles: dutycycle.DefaultActiveCycles,
			SettleDelay:  dutycycle.DefaultSettleDelay,
		},
		Trigger: TriggerConfig{
			TurbidityNTU: dutycycle.DefaultTriggerNTU,
		},
		Sensors: SensorsConfig{
			UseRAK1901:        true,
			TurbiditySamples:  sensor.DefaultTurbiditySamples,
			TurbidityInterval: sensor.DefaultTurbidityInterval,
			Battery:           sensor.BatteryADC,
			Turbidity:         sensor.TurbidityADC,
		},
		Radio: RadioConfig{
			Backend: BackendMock,
			MQTT: MQTTConfig{
				Broker: "tcp://localhost:1883",
				Topic:  "wisnode/node",
			},
			Modem: ModemConfig{
				Port:     "/dev/ttyUSB0",
				BaudRate: 115200,
			},
			ABP: ABPConfig{
				Region: "AU915",
			},
		},
		Log: LogConfig{
			Level: "info",
		},
		Mock: MockConfig{
			BatteryMV:     3900,
			Temperature:   21.5,
			Humidity:      55,
			Pressure:      101325,
			GasResistance: 50000,
			Latitude:      -27.4698,
			Longitude:     153.0251,
			TurbidityMV:   1400, // clear water
			NoiseLevel:    5,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate rejects settings the node cannot run with.
func (c *Config) Validate() error {
	def, ok := port.Lookup(c.Node.Port)
	if !ok {
		return fmt.Errorf("port %d: %w", c.Node.Port, ErrUnknownPort)
	}
	if err := c.Params(def).Validate(); err != nil {
		return err
	}
	if c.Schedule.FastPeriod >= c.Schedule.NormalPeriod {
		return fmt.Errorf("fast period %s must be shorter than normal period %s: %w",
			c.Schedule.FastPeriod, c.Schedule.NormalPeriod, ErrInvalid)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w: %w", ErrInvalid, err)
	}
	switch c.Radio.Backend {
	case BackendMock, BackendMQTT, BackendModem, BackendABP:
	default:
		return fmt.Errorf("radio backend %q: %w", c.Radio.Backend, ErrInvalid)
	}
	return nil
}

// PortDefinition returns the configured port.
func (c *Config) PortDefinition() (port.Definition, error) {
	def, ok := port.Lookup(c.Node.Port)
	if !ok {
		return port.Definition{}, fmt.Errorf("port %d: %w", c.Node.Port, ErrUnknownPort)
	}
	return def, nil
}

// Params converts the schedule for def into controller parameters.
func (c *Config) Params(def port.Definition) dutycycle.Params {
	p := dutycycle.Params{
		Port:         def,
		NormalPeriod: c.Schedule.NormalPeriod,
		FastPeriod:   c.Schedule.FastPeriod,
		ActiveCycles: c.Schedule.ActiveCycles,
		TriggerNTU:   c.Trigger.TurbidityNTU,
		SettleDelay:  c.Schedule.SettleDelay,
		MaxSleep:     c.Schedule.MaxSleep,
	}
	if c.Node.Confirmed {
		p.Confirm = radio.Confirmed
	}
	return p
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Node.Port == 0 {
		c.Node.Port = def.Node.Port
	}

	if c.Schedule.NormalPeriod == 0 {
		c.Schedule.NormalPeriod = def.Schedule.NormalPeriod
	}
	if c.Schedule.FastPeriod == 0 {
		c.Schedule.FastPeriod = def.Schedule.FastPeriod
	}
	if c.Schedule.ActiveCycles == 0 {
		c.Schedule.ActiveCycles = def.Schedule.ActiveCycles
	}

	if c.Trigger.TurbidityNTU == 0 {
		c.Trigger.TurbidityNTU = def.Trigger.TurbidityNTU
	}

	if c.Sensors.TurbiditySamples == 0 {
		c.Sensors.TurbiditySamples = def.Sensors.TurbiditySamples
	}
	if c.Sensors.Battery == (sensor.ADCConfig{}) {
		c.Sensors.Battery = def.Sensors.Battery
	}
	if c.Sensors.Turbidity == (sensor.ADCConfig{}) {
		c.Sensors.Turbidity = def.Sensors.Turbidity
	}

	if c.Radio.Backend == "" {
		c.Radio.Backend = def.Radio.Backend
	}
	if c.Radio.Modem.BaudRate == 0 {
		c.Radio.Modem.BaudRate = def.Radio.Modem.BaudRate
	}
	if c.Radio.ABP.Region == "" {
		c.Radio.ABP.Region = def.Radio.ABP.Region
	}

	if c.Log.Level == "" {
		c.Log.Level = def.Log.Level
	}
}
