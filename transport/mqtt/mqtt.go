// Package mqtt provides a gateway transport for controllers reachable
// through a BLE-to-MQTT bridge.
//
// The bridge mirrors GATT traffic onto MQTT: notification chunks arrive
// base64-encoded on "{prefix}/{deviceID}/notify/{characteristic}" and
// writes are published to "{prefix}/{deviceID}/write/{characteristic}".
// The cloud backend speaks the same topic scheme, so a dashboard can run
// against a remote controller with no BLE hardware in reach.
package mqtt

import (
	"context"
	"crypto/tls"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/AlexMihai1804/autowatering-smart-dashboard-sub002/core/wire"
	"github.com/AlexMihai1804/autowatering-smart-dashboard-sub002/transport"
	paho "github.com/eclipse/paho.mqtt.golang"
)

// Compile-time interface check.
var _ transport.Transport = (*Transport)(nil)

const (
	// DefaultTopicPrefix is the default MQTT topic prefix for bridge traffic.
	DefaultTopicPrefix = "autowatering"
)

// Config holds the configuration for an MQTT gateway transport.
type Config struct {
	// Broker is the MQTT broker URL (e.g., "tcp://broker.example.com:1883").
	Broker string
	// Username for MQTT authentication. Leave empty if not required.
	Username string
	// Password for MQTT authentication. Leave empty if not required.
	Password string
	// UseTLS enables TLS for the MQTT connection.
	UseTLS bool
	// ClientID is the MQTT client identifier. If empty, a random one is generated.
	ClientID string
	// TopicPrefix is the MQTT topic prefix (default: "autowatering").
	TopicPrefix string
	// DeviceID identifies the bridged controller. The transport subscribes
	// to "{TopicPrefix}/{DeviceID}/notify/+" and publishes writes to
	// "{TopicPrefix}/{DeviceID}/write/{characteristic}".
	DeviceID string
	// Logger is the logger to use. If nil, slog.Default() is used.
	Logger *slog.Logger
}

// Transport implements transport.Transport over an MQTT bridge.
type Transport struct {
	cfg          Config
	client       paho.Client
	log          *slog.Logger
	mu           sync.RWMutex
	connected    bool
	chunkHandler transport.ChunkHandler
	stateHandler transport.StateHandler
}

// New creates a new MQTT gateway transport with the given configuration.
func New(cfg Config) *Transport {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Transport{
		cfg: cfg,
		log: cfg.Logger.WithGroup("mqtt"),
	}
}

// Start connects to the MQTT broker and begins listening for chunks.
func (t *Transport) Start(ctx context.Context) error {
	if t.cfg.Broker == "" {
		return errors.New("broker URL is required")
	}
	if t.cfg.DeviceID == "" {
		return errors.New("device ID is required")
	}

	clientID := t.cfg.ClientID
	if clientID == "" {
		clientID = "autowatering-" + randomString(16)
	}

	opts := paho.NewClientOptions().
		AddBroker(t.cfg.Broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetMaxReconnectInterval(2 * time.Minute).
		SetKeepAlive(60 * time.Second).
		SetPingTimeout(10 * time.Second).
		SetCleanSession(true).
		SetOrderMatters(true).
		SetOnConnectHandler(t.onConnected).
		SetConnectionLostHandler(t.onConnectionLost).
		SetReconnectingHandler(t.onReconnecting)

	if t.cfg.Username != "" {
		opts.SetUsername(t.cfg.Username)
	}
	if t.cfg.Password != "" {
		opts.SetPassword(t.cfg.Password)
	}
	if t.cfg.UseTLS {
		opts.SetTLSConfig(&tls.Config{
			MinVersion: tls.VersionTLS12,
		})
	}

	t.client = paho.NewClient(opts)

	token := t.client.Connect()
	if !token.WaitTimeout(30 * time.Second) {
		return errors.New("connection timeout")
	}
	if token.Error() != nil {
		return fmt.Errorf("connecting to broker: %w", token.Error())
	}

	return nil
}

// Stop gracefully disconnects from the MQTT broker.
func (t *Transport) Stop() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		t.client.Disconnect(1000)
		t.connected = false
	}
	return nil
}

// IsConnected returns true if the transport is connected to the broker.
func (t *Transport) IsConnected() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.connected && t.client != nil && t.client.IsConnected()
}

// SetChunkHandler sets the callback for inbound notification chunks.
func (t *Transport) SetChunkHandler(fn transport.ChunkHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chunkHandler = fn
}

// SetStateHandler sets the callback for transport state changes.
func (t *Transport) SetStateHandler(fn transport.StateHandler) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stateHandler = fn
}

// WriteChunk publishes one chunk to the characteristic's write topic.
// QoS 1 with ordered delivery preserves the fragmenter's chunk order.
func (t *Transport) WriteChunk(characteristic string, chunk []byte) error {
	if len(chunk) > wire.MaxChunkSize {
		return fmt.Errorf("chunk exceeds %d bytes", wire.MaxChunkSize)
	}
	if !t.IsConnected() {
		return errors.New("not connected")
	}

	payload := base64.StdEncoding.EncodeToString(chunk)
	topic := t.cfg.TopicPrefix + "/" + t.cfg.DeviceID + "/write/" + characteristic

	token := t.client.Publish(topic, 1, false, payload)
	if !token.WaitTimeout(10 * time.Second) {
		return errors.New("timeout publishing to MQTT")
	}
	return token.Error()
}

func (t *Transport) notifyTopic() string {
	return t.cfg.TopicPrefix + "/" + t.cfg.DeviceID + "/notify/+"
}

func (t *Transport) subscribe() {
	topic := t.notifyTopic()
	t.client.Subscribe(topic, 1, t.handleMessage)
	t.log.Debug("subscribed to notify topics", "topic", topic)
}

func (t *Transport) handleMessage(_ paho.Client, message paho.Message) {
	t.mu.RLock()
	handler := t.chunkHandler
	t.mu.RUnlock()

	if handler == nil {
		return
	}

	// The characteristic UUID is the last topic segment.
	topic := message.Topic()
	characteristic := topic[strings.LastIndexByte(topic, '/')+1:]
	if characteristic == "" {
		t.log.Debug("notify message without characteristic segment", "topic", topic)
		return
	}

	chunk, err := base64.StdEncoding.DecodeString(string(message.Payload()))
	if err != nil {
		t.log.Debug("failed to decode base64 chunk", "error", err)
		return
	}

	handler(characteristic, chunk)
}

func (t *Transport) onConnected(_ paho.Client) {
	t.mu.Lock()
	t.connected = true
	handler := t.stateHandler
	t.mu.Unlock()

	t.subscribe()
	t.log.Info("connected to MQTT broker", "broker", t.cfg.Broker)

	if handler != nil {
		handler(t, transport.EventConnected)
	}
}

func (t *Transport) onConnectionLost(_ paho.Client, err error) {
	t.mu.Lock()
	t.connected = false
	handler := t.stateHandler
	t.mu.Unlock()

	t.log.Error("MQTT connection lost", "error", err)

	if handler != nil {
		handler(t, transport.EventDisconnected)
	}
}

func (t *Transport) onReconnecting(_ paho.Client, _ *paho.ClientOptions) {
	t.mu.RLock()
	handler := t.stateHandler
	t.mu.RUnlock()

	t.log.Info("reconnecting to MQTT broker")

	if handler != nil {
		handler(t, transport.EventReconnecting)
	}
}

func randomString(n int) string {
	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	for i := range b {
		b[i] = alphabet[rand.Intn(len(alphabet))]
	}
	return string(b)
}
