package dutycycle

import "fmt"

// Mode is the sampling regime.
type Mode uint8

const (
	// Normal sends on the long period and watches turbidity.
	Normal Mode = iota
	// Active sends on the fast period for a fixed number of cycles.
	Active
	// SwitchToActive is the single cycle between a trigger and Active.
	SwitchToActive
)

func (m Mode) String() string {
	switch m {
	case Normal:
		return "normal"
	case Active:
		return "active"
	case SwitchToActive:
		return "switch-to-active"
	}
	return fmt.Sprintf("Mode(%d)", uint8(m))
}

// Task is what the main loop does on its next tick.
type Task uint8

const (
	Sleeping Task = iota
	SendPayload
)

func (t Task) String() string {
	switch t {
	case Sleeping:
		return "sleeping"
	case SendPayload:
		return "send-payload"
	}
	return fmt.Sprintf("Task(%d)", uint8(t))
}
