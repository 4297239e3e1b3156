package port

import "errors"

var (
	// ErrPayloadTooLarge means a port's fields do not fit MaxPayloadSize.
	ErrPayloadTooLarge = errors.New("port payload exceeds buffer")
	// ErrUnknownPort means the FPort is not in the port table.
	ErrUnknownPort = errors.New("unknown port")
	// ErrPayloadLength means a received payload does not match its port's size.
	ErrPayloadLength = errors.New("payload length does not match port")
)
