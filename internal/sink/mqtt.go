package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/andresmejia3/oculus/internal/types"
)

// MQTTConfig selects the broker and topic layout.
type MQTTConfig struct {
	// Broker is host:port without scheme.
	Broker      string
	ClientID    string
	TopicPrefix string
	// QueueSize bounds the events waiting to be published; further events are dropped.
	QueueSize int
}

type message struct {
	topic   string
	payload []byte
}

// MQTT publishes session events to a broker:
//
//	<prefix>/<session>/status   JSON StatusUpdate
//	<prefix>/<session>/capture  raw JPEG bytes
//	<prefix>/<session>/error    JSON {"session_id", "error"}
//
// Events are queued and published from a background goroutine so the scheduler never waits on the network.
type MQTT struct {
	cfg    MQTTConfig
	log    *slog.Logger
	Client mqtt.Client

	queue chan message
	done  chan struct{}

	mu        sync.RWMutex
	connected bool
	published uint64
	dropped   uint64
	errors    uint64
	started   bool
	closed    bool
}

func NewMQTT(cfg MQTTConfig, logger *slog.Logger) *MQTT {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "oculus"
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	return &MQTT{
		cfg:   cfg,
		log:   logger.With("component", "mqtt", "broker", cfg.Broker),
		queue: make(chan message, cfg.QueueSize),
		done:  make(chan struct{}),
	}
}

// Connect establishes the broker connection and starts the publisher.
func (m *MQTT) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("tcp://%s", m.cfg.Broker))
	opts.SetClientID(m.cfg.ClientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetryInterval(2 * time.Second)
	opts.SetMaxReconnectInterval(30 * time.Second)

	opts.OnConnect = func(c mqtt.Client) {
		m.setConnected(true)
		m.log.Info("mqtt connection established", "client_id", m.cfg.ClientID)
	}
	opts.OnConnectionLost = func(c mqtt.Client, err error) {
		m.setConnected(false)
		m.log.Warn("mqtt connection lost, will auto-reconnect", "error", err)
	}

	m.Client = mqtt.NewClient(opts)

	token := m.Client.Connect()
	timeout := 5 * time.Second
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt connection timeout")
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connection failed: %w", err)
	}
	m.mu.Lock()
	m.connected = true
	m.started = true
	m.mu.Unlock()

	go m.publishLoop()
	return nil
}

func (m *MQTT) Topic(sessionID, kind string) string {
	return fmt.Sprintf("%s/%s/%s", m.cfg.TopicPrefix, sessionID, kind)
}

func (m *MQTT) Status(update types.StatusUpdate) {
	payload, err := json.Marshal(update)
	if err != nil {
		m.countError()
		return
	}
	m.enqueue(message{topic: m.Topic(update.SessionID, "status"), payload: payload})
}

func (m *MQTT) Capture(event types.CaptureEvent) {
	m.enqueue(message{topic: m.Topic(event.SessionID, "capture"), payload: event.Frame.Data})
}

func (m *MQTT) Error(sessionID string, err error) {
	payload, _ := json.Marshal(struct {
		SessionID string `json:"session_id"`
		Error     string `json:"error"`
	}{sessionID, err.Error()})
	m.enqueue(message{topic: m.Topic(sessionID, "error"), payload: payload})
}

func (m *MQTT) enqueue(msg message) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.queue <- msg:
	default:
		m.dropped++
	}
}

func (m *MQTT) publishLoop() {
	defer close(m.done)
	for msg := range m.queue {
		if !m.isConnected() {
			m.countError()
			continue
		}
		token := m.Client.Publish(msg.topic, 1, false, msg.payload)
		if !token.WaitTimeout(2 * time.Second) {
			m.countError()
			m.log.Warn("publish timeout", "topic", msg.topic)
			continue
		}
		if err := token.Error(); err != nil {
			m.countError()
			m.log.Warn("publish failed", "topic", msg.topic, "error", err)
			continue
		}
		m.mu.Lock()
		m.published++
		m.mu.Unlock()
		m.log.Debug("event published", "topic", msg.topic, "size", len(msg.payload))
	}
}

// Close drains queued events and disconnects.
func (m *MQTT) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	close(m.queue)
	started := m.started
	m.mu.Unlock()

	if started {
		<-m.done
	}
	if m.Client != nil {
		if m.Client.IsConnected() {
			m.Client.Disconnect(250)
		}
	}
	m.setConnected(false)
}

// MQTTStats summarizes publisher activity.
type MQTTStats struct {
	Connected bool
	Published uint64
	Dropped   uint64
	Errors    uint64
}

func (m *MQTT) Stats() MQTTStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return MQTTStats{Connected: m.connected, Published: m.published, Dropped: m.dropped, Errors: m.errors}
}

func (m *MQTT) setConnected(v bool) {
	m.mu.Lock()
	m.connected = v
	m.mu.Unlock()
}

func (m *MQTT) isConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

func (m *MQTT) countError() {
	m.mu.Lock()
	m.errors++
	m.mu.Unlock()
}
