package radio

import (
	"context"
	"sync"
	"time"
)

var (
	_ Link   = (*Mock)(nil)
	_ Joiner = (*Mock)(nil)
)

// Uplink is a frame handed to a Mock link.
type Uplink struct {
	Time    time.Time
	Port    uint8
	Payload []byte
	Confirm Confirm
}

// Mock records uplinks instead of transmitting them.
type Mock struct {
	mu        sync.RWMutex
	connected bool
	sendErr   error
	joinErr   error
	uplinks   []Uplink
}

// NewMock creates a mock link, optionally already joined.
func NewMock(connected bool) *Mock {
	return &Mock{connected: connected}
}

func (m *Mock) Connected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// SetConnected simulates joining or losing the network.
func (m *Mock) SetConnected(connected bool) {
	m.mu.Lock()
	m.connected = connected
	m.mu.Unlock()
}

// FailSends makes every Send return err until called with nil.
func (m *Mock) FailSends(err error) {
	m.mu.Lock()
	m.sendErr = err
	m.mu.Unlock()
}

// FailJoin makes Join return err.
func (m *Mock) FailJoin(err error) {
	m.mu.Lock()
	m.joinErr = err
	m.mu.Unlock()
}

func (m *Mock) Join(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.joinErr != nil {
		return m.joinErr
	}
	m.connected = true
	return nil
}

func (m *Mock) Send(port uint8, payload []byte, confirm Confirm) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotJoined
	}
	if m.sendErr != nil {
		return m.sendErr
	}
	m.uplinks = append(m.uplinks, Uplink{
		Time:    time.Now(),
		Port:    port,
		Payload: append([]byte(nil), payload...),
		Confirm: confirm,
	})
	return nil
}

// Uplinks returns a copy of every recorded uplink.
func (m *Mock) Uplinks() []Uplink {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]Uplink(nil), m.uplinks...)
}
