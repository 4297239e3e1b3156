// Package node assembles a simulated sensor node from a configuration.
package node

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/itohio/wisnode/pkg/config"
	"github.com/itohio/wisnode/pkg/dutycycle"
	"github.com/itohio/wisnode/pkg/history"
	"github.com/itohio/wisnode/pkg/logging"
	"github.com/itohio/wisnode/pkg/port"
	"github.com/itohio/wisnode/pkg/radio"
	"github.com/itohio/wisnode/pkg/radio/abp"
	"github.com/itohio/wisnode/pkg/radio/host"
	"github.com/itohio/wisnode/pkg/sensor"
	"github.com/itohio/wisnode/pkg/timer"
)

// Sensors are the simulated drivers behind a host node.
type Sensors struct {
	Battery   *sensor.MockAnalog
	Turbidity *sensor.MockAnalog
	RAK1901   *sensor.MockEnvironmental
	RAK1906   *sensor.MockEnvironmental
	Locator   *sensor.MockLocator
}

// NewSensors creates mocks reporting the configured values.
func NewSensors(m config.MockConfig) *Sensors {
	s := &Sensors{
		Battery:   sensor.NewMockAnalog(m.BatteryMV, m.NoiseLevel),
		Turbidity: sensor.NewMockAnalog(m.TurbidityMV, m.NoiseLevel),
		RAK1901:   sensor.NewMockRAK1901(),
		RAK1906:   sensor.NewMockRAK1906(),
		Locator:   sensor.NewMockLocator(m.Latitude, m.Longitude),
	}
	s.RAK1901.Set(m.Temperature, m.Humidity, 0, 0)
	s.RAK1906.Set(m.Temperature, m.Humidity, m.Pressure, m.GasResistance)
	return s
}

// SetEnvironment updates both environmental sensors.
func (s *Sensors) SetEnvironment(temperature, humidity float32, pressure, gasResistance uint32) {
	s.RAK1901.Set(temperature, humidity, 0, 0)
	s.RAK1906.Set(temperature, humidity, pressure, gasResistance)
}

// Option customises New.
type Option func(*options)

type options struct {
	link   radio.Link
	timer  dutycycle.Timer
	sleep  func(time.Duration)
	window time.Duration
}

// WithLink replaces the configured radio backend.
func WithLink(link radio.Link) Option {
	return func(o *options) { o.link = link }
}

// WithTimer replaces the wall clock timer.
func WithTimer(t dutycycle.Timer) Option {
	return func(o *options) { o.timer = t }
}

// WithSleep replaces time.Sleep for settle and sampling delays.
func WithSleep(sleep func(time.Duration)) Option {
	return func(o *options) { o.sleep = sleep }
}

// WithWindow sets how long cycles are kept in History.
func WithWindow(d time.Duration) Option {
	return func(o *options) { o.window = d }
}

// Node is a complete node: sensors, radio, power switch, timer and the duty
// cycle controller, with every cycle recorded in History.
type Node struct {
	Port       port.Definition
	Sensors    *Sensors
	Bank       *sensor.Bank
	Link       radio.Link
	Air        *abp.Air // set for the abp backend
	Radio      *radio.Counting
	Power      *sensor.PowerPin
	Timer      dutycycle.Timer
	Controller *dutycycle.Controller
	History    *history.History

	cfg     *config.Config
	log     *logging.Logger
	closers []io.Closer
}

// New validates cfg and wires a node. Sensor initialisation and radio
// setup errors are returned; the node is not started.
func New(cfg *config.Config, log *logging.Logger, opts ...Option) (*Node, error) {
	o := options{window: history.DefaultWindow}
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	def, err := cfg.PortDefinition()
	if err != nil {
		return nil, err
	}

	n := &Node{Port: def, cfg: cfg, log: log}
	n.Sensors = NewSensors(cfg.Mock)
	n.Bank = sensor.NewBank(sensor.BankConfig{
		Battery:           sensor.Quantize(cfg.Sensors.Battery, n.Sensors.Battery),
		Turbidity:         sensor.Quantize(cfg.Sensors.Turbidity, n.Sensors.Turbidity),
		Locator:           n.Sensors.Locator,
		RAK1901:           n.Sensors.RAK1901,
		RAK1906:           n.Sensors.RAK1906,
		UseRAK1901:        cfg.Sensors.UseRAK1901,
		UseRAK1906:        cfg.Sensors.UseRAK1906,
		TurbiditySamples:  cfg.Sensors.TurbiditySamples,
		TurbidityInterval: cfg.Sensors.TurbidityInterval,
		Sleep:             o.sleep,
		Log:               log,
	})
	if err := n.Bank.Init(def.Fields); err != nil {
		return nil, fmt.Errorf("sensor init: %w", err)
	}

	n.Link = o.link
	if n.Link == nil {
		if n.Link, err = n.openLink(); err != nil {
			return nil, err
		}
	}
	n.Radio = radio.NewCounting(n.Link, log)

	n.Power = sensor.NewPowerPin(func(on bool) {
		log.Debugf("sensor supply pin -> %v", on)
	}, log)

	n.Timer = o.timer
	if n.Timer == nil {
		n.Timer = timer.NewPeriodic()
	}

	n.Controller, err = dutycycle.New(cfg.Params(def), dutycycle.Deps{
		Radio:   n.Radio,
		Sensors: n.Bank,
		Power:   n.Power,
		Timer:   n.Timer,
		Log:     log,
		Sleep:   o.sleep,
	})
	if err != nil {
		n.Close()
		return nil, err
	}

	n.History = history.New(o.window)
	n.Controller.OnCycle(n.History.Record)
	return n, nil
}

// openLink creates the configured radio backend.
func (n *Node) openLink() (radio.Link, error) {
	rc := n.cfg.Radio
	switch rc.Backend {
	case config.BackendMock:
		return radio.NewMock(true), nil

	case config.BackendMQTT:
		m := host.NewMQTT(host.MQTTConfig{
			Broker:   rc.MQTT.Broker,
			Topic:    rc.MQTT.Topic,
			ClientID: rc.MQTT.ClientID,
			QoS:      rc.MQTT.QoS,
		}, n.log)
		n.closers = append(n.closers, m)
		return m, nil

	case config.BackendModem:
		m, err := host.OpenModem(rc.Modem.Port, rc.Modem.BaudRate, n.log)
		if err != nil {
			return nil, err
		}
		n.closers = append(n.closers, m)
		return m, nil

	case config.BackendABP:
		session, err := abp.ParseConfig(rc.ABP.DevAddr, rc.ABP.NwkSKey, rc.ABP.AppSKey, rc.ABP.Region, rc.ABP.DataRate)
		if err != nil {
			return nil, fmt.Errorf("abp: %w", err)
		}
		if err := abp.CheckPayload(session.Region, session.DataRate, n.Port.Size()); err != nil {
			return nil, err
		}
		session.FCnt = rc.ABP.FCnt
		n.Air = abp.NewAir(session, n.log)
		return abp.New(n.Air, session, n.log)
	}
	return nil, fmt.Errorf("radio backend %q: %w", rc.Backend, config.ErrInvalid)
}

// Join connects the radio if its backend needs it.
func (n *Node) Join(ctx context.Context) error {
	if err := n.Radio.Join(ctx); err != nil {
		return fmt.Errorf("join: %w", err)
	}
	n.log.Infof("LoRaWAN joined, sending on %s", n.Port)
	return nil
}

// Run joins, starts the timer and runs the duty cycle until ctx is done.
func (n *Node) Run(ctx context.Context) error {
	if err := n.Join(ctx); err != nil {
		return err
	}
	n.Controller.Start()
	defer n.Controller.Stop()
	return n.Controller.Run(ctx)
}

// SendNow makes the next loop iteration run a cycle as if the timer fired.
func (n *Node) SendNow() {
	n.Controller.OnTimerFired()
}

// Close releases the radio backend.
func (n *Node) Close() error {
	var errs []error
	for _, c := range n.closers {
		errs = append(errs, c.Close())
	}
	n.closers = nil
	return errors.Join(errs...)
}
