// Package dutycycle schedules wake, sample and send cycles and switches to a
// fast sampling period while turbidity is high.
package dutycycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/itohio/wisnode/pkg/logging"
	"github.com/itohio/wisnode/pkg/port"
	"github.com/itohio/wisnode/pkg/radio"
	"github.com/itohio/wisnode/pkg/sensor"
)

// Radio sends encoded frames.
type Radio interface {
	Connected() bool
	Send(port uint8, payload []byte, confirm radio.Confirm) error
}

// SensorBank produces one snapshot per cycle.
type SensorBank interface {
	ReadAll(fields sensor.FieldSet) sensor.Snapshot
}

// PowerSwitch gates the sensor supply. Both calls are idempotent.
type PowerSwitch interface {
	SensorsOn()
	SensorsOff()
}

// Timer is a periodic timer whose callback runs outside the main loop.
type Timer interface {
	Start(period time.Duration, cb func())
	SetPeriod(period time.Duration)
	Reset()
	Stop()
}

// WakeSignal hands control from the timer to the main loop.
type WakeSignal interface {
	Give()
	Take(ctx context.Context, timeout time.Duration) bool
}

// Defaults match the deployed turbidity node.
const (
	DefaultNormalPeriod = 30 * time.Minute
	DefaultFastPeriod   = 2 * time.Minute
	DefaultActiveCycles = 9
	DefaultTriggerNTU   = 30
	DefaultSettleDelay  = time.Second
)

var (
	ErrInvalidParams = errors.New("invalid duty cycle parameters")
	ErrMissingDep    = errors.New("missing dependency")
)

// Params configure the schedule.
type Params struct {
	Port    port.Definition
	Confirm radio.Confirm

	NormalPeriod time.Duration
	FastPeriod   time.Duration
	ActiveCycles int    // cycles counted before returning to Normal
	TriggerNTU   uint32 // turbidity at or above this starts Active mode
	SettleDelay  time.Duration
	MaxSleep     time.Duration // bound on a single wait for the timer; 0 waits forever
}

// DefaultParams returns the stock schedule for def.
func DefaultParams(def port.Definition) Params {
	return Params{
		Port:         def,
		NormalPeriod: DefaultNormalPeriod,
		FastPeriod:   DefaultFastPeriod,
		ActiveCycles: DefaultActiveCycles,
		TriggerNTU:   DefaultTriggerNTU,
		SettleDelay:  DefaultSettleDelay,
	}
}

// Validate checks the schedule and frame size.
func (p Params) Validate() error {
	switch {
	case p.NormalPeriod <= 0 || p.FastPeriod <= 0:
		return fmt.Errorf("periods must be positive: %w", ErrInvalidParams)
	case p.ActiveCycles < 1:
		return fmt.Errorf("active cycles %d: %w", p.ActiveCycles, ErrInvalidParams)
	case p.SettleDelay < 0 || p.MaxSleep < 0:
		return fmt.Errorf("negative delay: %w", ErrInvalidParams)
	case p.Port.Size() > port.MaxPayloadSize:
		return fmt.Errorf("%s: %w", p.Port, port.ErrPayloadTooLarge)
	}
	return nil
}

// Deps are the controller's collaborators.
type Deps struct {
	Radio   Radio
	Sensors SensorBank
	Power   PowerSwitch
	Timer   Timer
	Wake    WakeSignal      // defaults to NewSignal()
	Log     *logging.Logger // may be nil
	Sleep   func(time.Duration)
	Now     func() time.Time
}

// Report describes one SendPayload cycle.
type Report struct {
	Time      time.Time
	Mode      Mode
	Cycle     int
	Snapshot  sensor.Snapshot
	Frame     port.Frame
	Triggered bool // this cycle's reading started Active mode
	Skipped   bool // radio not connected, nothing read or sent
	Err       error
}

// Sent reports whether the frame went out.
func (r Report) Sent() bool { return !r.Skipped && r.Err == nil }

// State is a copy of the controller state.
type State struct {
	Mode    Mode
	Task    Task
	Cycle   int
	Trigger bool
	Period  time.Duration
	Sent    uint32
	Failed  uint32
	Skipped uint32
}

// Controller runs the duty cycle. OnTimerFired is the only method meant to
// be called from the timer; everything else belongs to the main loop.
type Controller struct {
	p       Params
	radio   Radio
	sensors SensorBank
	power   PowerSwitch
	timer   Timer
	wake    WakeSignal
	enc     *port.Encoder
	log     *logging.Logger
	sleep   func(time.Duration)
	now     func() time.Time

	pending atomic.Bool

	mu    sync.RWMutex
	state State

	cbMu      sync.RWMutex
	callbacks []func(Report)
}

// New creates a controller in Normal/Sleeping. The timer is not started.
func New(p Params, d Deps) (*Controller, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	switch {
	case d.Radio == nil:
		return nil, fmt.Errorf("radio: %w", ErrMissingDep)
	case d.Sensors == nil:
		return nil, fmt.Errorf("sensors: %w", ErrMissingDep)
	case d.Power == nil:
		return nil, fmt.Errorf("power switch: %w", ErrMissingDep)
	case d.Timer == nil:
		return nil, fmt.Errorf("timer: %w", ErrMissingDep)
	}
	if d.Wake == nil {
		d.Wake = NewSignal()
	}
	if d.Sleep == nil {
		d.Sleep = time.Sleep
	}
	if d.Now == nil {
		d.Now = time.Now
	}

	return &Controller{
		p:       p,
		radio:   d.Radio,
		sensors: d.Sensors,
		power:   d.Power,
		timer:   d.Timer,
		wake:    d.Wake,
		enc:     port.NewEncoder(d.Log),
		log:     d.Log,
		sleep:   d.Sleep,
		now:     d.Now,
		state:   State{Mode: Normal, Task: Sleeping, Period: p.NormalPeriod},
	}, nil
}

// Params returns the schedule in use.
func (c *Controller) Params() Params { return c.p }

// Start arms the timer with the normal period.
func (c *Controller) Start() {
	c.mu.Lock()
	c.state.Period = c.p.NormalPeriod
	c.mu.Unlock()
	c.timer.Start(c.p.NormalPeriod, c.OnTimerFired)
	c.log.Infof("duty cycle started on %s, period %s", c.p.Port, c.p.NormalPeriod)
}

// Stop disarms the timer.
func (c *Controller) Stop() {
	c.timer.Stop()
}

// OnTimerFired records the tick and wakes the main loop. It does no I/O.
func (c *Controller) OnTimerFired() {
	c.pending.Store(true)
	c.wake.Give()
}

// OnCycle registers a callback run after every SendPayload task.
func (c *Controller) OnCycle(cb func(Report)) {
	c.cbMu.Lock()
	c.callbacks = append(c.callbacks, cb)
	c.cbMu.Unlock()
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Run steps the loop until ctx is done.
func (c *Controller) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			c.power.SensorsOff()
			return err
		}
		c.Step(ctx)
	}
}

// Step services a pending timer tick, then runs one task.
func (c *Controller) Step(ctx context.Context) {
	c.ServiceTimer()
	c.Tick(ctx)
}

// ServiceTimer handles a tick recorded by OnTimerFired: sensors are powered
// and given time to settle, the mode advances and a send is scheduled.
// It reports whether a tick was pending.
func (c *Controller) ServiceTimer() bool {
	if !c.pending.Swap(false) {
		return false
	}

	c.power.SensorsOn()
	c.sleep(c.p.SettleDelay)

	c.mu.Lock()
	defer c.mu.Unlock()
	s := &c.state
	switch s.Mode {
	case Normal:
		if s.Trigger {
			s.Mode = SwitchToActive
			c.log.Infof("turbidity trigger set, switching to active mode")
		}
	case Active:
		s.Cycle++
		if s.Cycle >= c.p.ActiveCycles {
			c.timer.SetPeriod(c.p.NormalPeriod)
			s.Period = c.p.NormalPeriod
			s.Cycle = 0
			s.Mode = Normal
			c.log.Infof("active mode finished, back to normal period %s", c.p.NormalPeriod)
		}
	case SwitchToActive:
		s.Trigger = false
		s.Cycle++
		s.Mode = Active
	}
	s.Task = SendPayload
	return true
}

// Tick runs the current task once. Sleeping blocks until the wake signal,
// MaxSleep or ctx.
func (c *Controller) Tick(ctx context.Context) {
	c.mu.RLock()
	task := c.state.Task
	c.mu.RUnlock()

	switch task {
	case Sleeping:
		c.power.SensorsOff()
		c.wake.Take(ctx, c.p.MaxSleep)
		return
	case SendPayload:
		c.sendPayload()
	default:
		c.log.Warnf("unknown task %s", task)
	}

	c.mu.Lock()
	c.state.Task = Sleeping
	c.mu.Unlock()
}

func (c *Controller) sendPayload() {
	c.mu.RLock()
	r := Report{Time: c.now(), Mode: c.state.Mode, Cycle: c.state.Cycle}
	c.mu.RUnlock()

	if !c.radio.Connected() {
		c.log.Infof("LoRaWAN not connected. Try again later.")
		r.Skipped = true
		c.count(&c.state.Skipped)
		c.notify(r)
		return
	}

	r.Snapshot = c.sensors.ReadAll(c.p.Port.Fields)
	r.Triggered = c.checkTrigger(r.Snapshot)

	frame, err := c.enc.Encode(r.Snapshot, c.p.Port)
	if err != nil {
		c.log.Errorf("encode: %v", err)
		r.Err = err
		c.count(&c.state.Failed)
		c.notify(r)
		return
	}
	r.Frame = frame

	c.log.Debugf("Send payload %s", frame)
	if err := c.radio.Send(frame.Port, frame.Payload, c.p.Confirm); err != nil {
		c.log.Errorf("send on port %d failed: %v", frame.Port, err)
		r.Err = err
		c.count(&c.state.Failed)
	} else {
		c.count(&c.state.Sent)
	}
	c.notify(r)
}

// checkTrigger starts fast sampling when turbidity crosses the threshold in Normal mode.
func (c *Controller) checkTrigger(s sensor.Snapshot) bool {
	if !s.Turbidity.Valid || s.Turbidity.Value < c.p.TriggerNTU {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state.Mode != Normal {
		return false
	}
	c.state.Trigger = true
	c.state.Period = c.p.FastPeriod
	c.timer.SetPeriod(c.p.FastPeriod)
	c.timer.Reset()
	c.log.Infof("turbidity %d NTU >= %d, period %s", s.Turbidity.Value, c.p.TriggerNTU, c.p.FastPeriod)
	return true
}

func (c *Controller) count(n *uint32) {
	c.mu.Lock()
	*n++
	c.mu.Unlock()
}

func (c *Controller) notify(r Report) {
	c.cbMu.RLock()
	callbacks := append([]func(Report){}, c.callbacks...)
	c.cbMu.RUnlock()

	for _, cb := range callbacks {
		cb(r)
	}
}
