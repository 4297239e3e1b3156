package sensor

import (
	"sync"

	"github.com/itohio/wisnode/pkg/logging"
)

// PowerPin switches the sensor supply rail through a GPIO setter.
type PowerPin struct {
	set func(on bool)
	log *logging.Logger

	mu sync.Mutex
	on bool
}

// NewPowerPin creates a switch driving set. The rail is assumed off.
func NewPowerPin(set func(on bool), log *logging.Logger) *PowerPin {
	if set == nil {
		set = func(bool) {}
	}
	return &PowerPin{set: set, log: log}
}

// SensorsOn powers the sensors. Calling it while already on is a no-op.
func (p *PowerPin) SensorsOn() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.on {
		return
	}
	p.set(true)
	p.on = true
	p.log.Infof("Sensor powered on.")
}

// SensorsOff cuts sensor power. Calling it while already off is a no-op.
func (p *PowerPin) SensorsOff() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.on {
		return
	}
	p.set(false)
	p.on = false
	p.log.Infof("Sensor powered off.")
}

// On reports the rail state.
func (p *PowerPin) On() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.on
}
