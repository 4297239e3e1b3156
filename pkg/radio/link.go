// Package radio defines the uplink link a node sends frames through, with
// the counting decorator and a mock. Transports live in subpackages: abp
// builds LoRaWAN frames for a raw radio, host has the serial modem and the
// MQTT bridge.
package radio

import (
	"context"
	"errors"
)

// Confirm selects confirmed or unconfirmed uplinks.
type Confirm uint8

const (
	Unconfirmed Confirm = iota
	Confirmed
)

func (c Confirm) String() string {
	if c == Confirmed {
		return "confirmed"
	}
	return "unconfirmed"
}

// Link is a LoRaWAN uplink. Send must not be called from interrupt context.
type Link interface {
	Connected() bool
	Send(port uint8, payload []byte, confirm Confirm) error
}

// Joiner is implemented by links that need a network join before sending.
type Joiner interface {
	Join(ctx context.Context) error
}

var (
	// ErrNotJoined means the link has no network session.
	ErrNotJoined = errors.New("not joined")
	// ErrPayloadExceedsDataRate means the frame is longer than the regional
	// maximum for the configured data rate.
	ErrPayloadExceedsDataRate = errors.New("payload exceeds data rate maximum")
	// ErrTimeout means the transport did not answer in time.
	ErrTimeout = errors.New("radio timeout")
	// ErrClosed means the link was closed.
	ErrClosed = errors.New("radio closed")
)
