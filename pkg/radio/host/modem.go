//go:build !tinygo

// Package host holds uplink transports that only exist on a host: a serial
// AT command modem and an MQTT bridge.
package host

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"github.com/itohio/wisnode/pkg/logging"
	"github.com/itohio/wisnode/pkg/radio"
)

const (
	// DefaultModemBaudRate is the RAK3172 factory UART speed.
	DefaultModemBaudRate = 115200
	// DefaultModemTimeout bounds a single AT command round trip.
	DefaultModemTimeout = 5 * time.Second

	modemLineBuffer = 16
)

var (
	_ radio.Link   = (*Modem)(nil)
	_ radio.Joiner = (*Modem)(nil)
)

// Modem drives a RAK3172 style LoRaWAN modem over its AT command interface.
// Responses end with OK or an AT_*_ERROR line. Asynchronous "+EVT:" lines
// are handled out of band.
type Modem struct {
	rw      io.ReadWriteCloser
	log     *logging.Logger
	timeout time.Duration

	cmdMu sync.Mutex // one command in flight
	lines chan string
	joins chan bool // join outcomes from +EVT lines
	done  chan struct{}

	mu      sync.RWMutex
	joined  bool
	confirm radio.Confirm
	cfmSet  bool
	closed  bool
	events  []func(event string)
}

// OpenModem opens a serial port and attaches a Modem to it.
func OpenModem(name string, baudRate int, log *logging.Logger) (*Modem, error) {
	if baudRate == 0 {
		baudRate = DefaultModemBaudRate
	}
	port, err := serial.Open(name, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", name, err)
	}
	return NewModem(port, log), nil
}

// Ports lists serial ports a modem could be attached to.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}
	return ports, nil
}

// NewModem attaches to an already open stream and starts reading it.
func NewModem(rw io.ReadWriteCloser, log *logging.Logger) *Modem {
	m := &Modem{
		rw:      rw,
		log:     log,
		timeout: DefaultModemTimeout,
		lines:   make(chan string, modemLineBuffer),
		joins:   make(chan bool, 1),
		done:    make(chan struct{}),
	}
	go m.readLines()
	return m
}

// SetTimeout changes the per command timeout.
func (m *Modem) SetTimeout(d time.Duration) {
	m.mu.Lock()
	m.timeout = d
	m.mu.Unlock()
}

// OnEvent registers a callback for "+EVT:" lines. The prefix is stripped.
func (m *Modem) OnEvent(cb func(event string)) {
	m.mu.Lock()
	m.events = append(m.events, cb)
	m.mu.Unlock()
}

// Close closes the underlying port.
func (m *Modem) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	if err := m.rw.Close(); err != nil {
		return fmt.Errorf("failed to close modem: %w", err)
	}
	<-m.done
	return nil
}

// Connected reports the join state. Once joined the cached state is used;
// until then the modem is asked with AT+NJS. A send rejected with
// AT_NO_NETWORK_JOINED clears the cache.
func (m *Modem) Connected() bool {
	m.mu.RLock()
	joined := m.joined
	m.mu.RUnlock()
	if joined {
		return true
	}

	ctx, cancel := context.WithTimeout(context.Background(), m.commandTimeout())
	defer cancel()

	joined, err := m.JoinStatus(ctx)
	if err != nil {
		m.log.Warnf("join status: %v", err)
		return false
	}
	return joined
}

// JoinStatus queries AT+NJS.
func (m *Modem) JoinStatus(ctx context.Context) (bool, error) {
	resp, err := m.Command(ctx, "AT+NJS=?")
	if err != nil {
		return false, err
	}
	joined := false
	for _, line := range resp {
		if v := value(line); v == "1" || v == "0" {
			joined = v == "1"
		}
	}
	m.mu.Lock()
	m.joined = joined
	m.mu.Unlock()
	return joined, nil
}

// Join starts an OTAA join and waits for the modem to report the outcome.
// The modem retries up to 8 times, 10 s apart.
func (m *Modem) Join(ctx context.Context) error {
	// forget an outcome left over from an earlier join
	select {
	case <-m.joins:
	default:
	}

	if _, err := m.Command(ctx, "AT+JOIN=1:0:10:8"); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	select {
	case ok := <-m.joins:
		if !ok {
			return fmt.Errorf("join: %w", radio.ErrNotJoined)
		}
		m.log.Infof("Network joined")
		return nil
	case <-m.done:
		return radio.ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Send transmits payload on port.
func (m *Modem) Send(port uint8, payload []byte, confirm radio.Confirm) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.commandTimeout())
	defer cancel()

	m.mu.RLock()
	needCfm := !m.cfmSet || m.confirm != confirm
	m.mu.RUnlock()
	if needCfm {
		if _, err := m.Command(ctx, fmt.Sprintf("AT+CFM=%d", uint8(confirm))); err != nil {
			return fmt.Errorf("set confirm mode: %w", err)
		}
		m.mu.Lock()
		m.confirm, m.cfmSet = confirm, true
		m.mu.Unlock()
	}

	cmd := fmt.Sprintf("AT+SEND=%d:%s", port, strings.ToUpper(hex.EncodeToString(payload)))
	if _, err := m.Command(ctx, cmd); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Command writes one AT command and collects response lines up to OK.
func (m *Modem) Command(ctx context.Context, cmd string) ([]string, error) {
	m.cmdMu.Lock()
	defer m.cmdMu.Unlock()

	m.drain()
	m.log.Debugf("> %s", cmd)
	if _, err := io.WriteString(m.rw, cmd+"\r\n"); err != nil {
		return nil, fmt.Errorf("failed to write %q: %w", cmd, err)
	}

	var resp []string
	for {
		select {
		case line := <-m.lines:
			switch {
			case line == "OK":
				return resp, nil
			case line == "AT_NO_NETWORK_JOINED":
				m.setJoined(false)
				return resp, radio.ErrNotJoined
			case strings.HasPrefix(line, "AT_") && strings.HasSuffix(line, "ERROR"):
				return resp, fmt.Errorf("%s: %s", cmd, line)
			}
			resp = append(resp, line)
		case <-m.done:
			return resp, radio.ErrClosed
		case <-ctx.Done():
			return resp, fmt.Errorf("%s: %w", cmd, radio.ErrTimeout)
		}
	}
}

// drain discards stale lines left over from a timed out command.
func (m *Modem) drain() {
	for {
		select {
		case <-m.lines:
		default:
			return
		}
	}
}

func (m *Modem) commandTimeout() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.timeout
}

// readLines splits the stream into lines until the port is closed.
func (m *Modem) readLines() {
	defer close(m.done)

	scanner := bufio.NewScanner(m.rw)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		m.log.Debugf("< %s", line)

		if ev, ok := strings.CutPrefix(line, "+EVT:"); ok {
			m.handleEvent(ev)
			continue
		}

		select {
		case m.lines <- line:
		default:
			m.log.Warnf("modem response buffer full, dropping %q", line)
		}
	}
	if err := scanner.Err(); err != nil {
		m.mu.RLock()
		closed := m.closed
		m.mu.RUnlock()
		if !closed {
			m.log.Errorf("Error reading from modem: %v", err)
		}
	}
}

func (m *Modem) handleEvent(ev string) {
	switch {
	case ev == "JOINED":
		m.setJoined(true)
		m.joinOutcome(true)
	case strings.HasPrefix(ev, "JOIN_FAILED"):
		m.setJoined(false)
		m.joinOutcome(false)
	}

	m.mu.RLock()
	callbacks := append([]func(string){}, m.events...)
	m.mu.RUnlock()

	m.log.Infof("modem event %s", ev)
	for _, cb := range callbacks {
		cb(ev)
	}
}

func (m *Modem) setJoined(joined bool) {
	m.mu.Lock()
	m.joined = joined
	m.mu.Unlock()
}

// joinOutcome keeps only the latest outcome for a waiting Join.
func (m *Modem) joinOutcome(ok bool) {
	for {
		select {
		case m.joins <- ok:
			return
		default:
		}
		select {
		case <-m.joins:
		default:
		}
	}
}

// value returns the part after '=' of an echoed "AT+X=v" line, or the line.
func value(line string) string {
	if i := strings.LastIndexByte(line, '='); i >= 0 {
		return strings.TrimSpace(line[i+1:])
	}
	return line
}
