//go:build !tinygo

package host

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/itohio/wisnode/pkg/logging"
	"github.com/itohio/wisnode/pkg/radio"
)

// MQTTConfig configures the MQTT uplink bridge.
type MQTTConfig struct {
	Broker   string
	Topic    string // uplinks go to <Topic>/up
	ClientID string // also used as the device name; random when empty
	QoS      byte
	Timeout  time.Duration
}

// UplinkMessage is the JSON document published for each frame.
type UplinkMessage struct {
	ID        string    `json:"id"`
	Device    string    `json:"dev"`
	FCnt      uint32    `json:"fcnt"`
	Port      uint8     `json:"port"`
	Payload   string    `json:"payload"` // hex
	Confirmed bool      `json:"confirmed"`
	Time      time.Time `json:"time"`
}

// mqttClient is the subset of mqtt.Client the bridge uses.
type mqttClient interface {
	Connect() mqtt.Token
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

var (
	_ radio.Link   = (*MQTT)(nil)
	_ radio.Joiner = (*MQTT)(nil)
)

// MQTT publishes uplinks to a broker instead of the air. It stands in for
// the radio when the node runs on a host.
type MQTT struct {
	client mqttClient
	cfg    MQTTConfig
	log    *logging.Logger

	mu   sync.Mutex
	fcnt uint32
}

// NewMQTT creates an MQTT bridge. Call Join to connect.
func NewMQTT(cfg MQTTConfig, log *logging.Logger) *MQTT {
	cfg = cfg.withDefaults()
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(cfg.Timeout).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warnf("MQTT connection lost: %v", err)
		})
	return newMQTT(mqtt.NewClient(opts), cfg, log)
}

func newMQTT(client mqttClient, cfg MQTTConfig, log *logging.Logger) *MQTT {
	return &MQTT{client: client, cfg: cfg.withDefaults(), log: log}
}

func (c MQTTConfig) withDefaults() MQTTConfig {
	if c.ClientID == "" {
		c.ClientID = "wisnode-" + uuid.NewString()
	}
	if c.Topic == "" {
		c.Topic = "wisnode/" + c.ClientID
	}
	if c.Timeout == 0 {
		c.Timeout = 10 * time.Second
	}
	return c
}

// Join connects to the broker.
func (m *MQTT) Join(ctx context.Context) error {
	if err := wait(ctx, m.client.Connect(), m.cfg.Timeout); err != nil {
		return fmt.Errorf("failed to connect to %s: %w", m.cfg.Broker, err)
	}
	m.log.Infof("MQTT connected to %s as %s", m.cfg.Broker, m.cfg.ClientID)
	return nil
}

func (m *MQTT) Connected() bool {
	return m.client.IsConnected()
}

// Send publishes one uplink message.
func (m *MQTT) Send(port uint8, payload []byte, confirm radio.Confirm) error {
	m.mu.Lock()
	fcnt := m.fcnt
	m.fcnt++
	m.mu.Unlock()

	msg := UplinkMessage{
		ID:        uuid.NewString(),
		Device:    m.cfg.ClientID,
		FCnt:      fcnt,
		Port:      port,
		Payload:   hex.EncodeToString(payload),
		Confirmed: confirm == radio.Confirmed,
		Time:      time.Now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal uplink: %w", err)
	}

	qos := m.cfg.QoS
	if confirm == radio.Confirmed && qos == 0 {
		qos = 1
	}
	if err := wait(context.Background(), m.client.Publish(m.cfg.Topic+"/up", qos, false, data), m.cfg.Timeout); err != nil {
		return fmt.Errorf("failed to publish uplink: %w", err)
	}
	return nil
}

// Close disconnects from the broker.
func (m *MQTT) Close() error {
	m.client.Disconnect(250)
	return nil
}

func wait(ctx context.Context, tok mqtt.Token, timeout time.Duration) error {
	done := make(chan bool, 1)
	go func() { done <- tok.WaitTimeout(timeout) }()
	select {
	case ok := <-done:
		if !ok {
			return radio.ErrTimeout
		}
		return tok.Error()
	case <-ctx.Done():
		return ctx.Err()
	}
}
