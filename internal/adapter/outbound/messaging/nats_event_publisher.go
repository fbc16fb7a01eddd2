// Package messaging publishes lifecycle events to NATS JetStream.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"dgsync/internal/application/common/slogger"
	"dgsync/internal/config"
	"dgsync/internal/port/outbound"

	"github.com/nats-io/nats.go"
)

const (
	natsConnectionTimeout = 5 * time.Second
	streamMaxAge          = 24 * time.Hour

	maxFailures         = 3
	circuitOpenDuration = 30 * time.Second
)

// ErrNotConnected is returned when publishing before Connect.
var ErrNotConnected = errors.New("not connected to NATS")

// ErrCircuitOpen is returned while recent publishes keep failing.
var ErrCircuitOpen = errors.New("circuit breaker open: too many recent failures")

// jetStream is the part of nats.JetStreamContext the publisher uses.
type jetStream interface {
	PublishMsg(m *nats.Msg, opts ...nats.PubOpt) (*nats.PubAck, error)
	AddStream(cfg *nats.StreamConfig, opts ...nats.JSOpt) (*nats.StreamInfo, error)
	StreamInfo(stream string, opts ...nats.JSOpt) (*nats.StreamInfo, error)
}

// PublisherMetrics counts publish outcomes.
type PublisherMetrics struct {
	PublishedCount int64
	FailedCount    int64
	LastPublished  time.Time
}

// NATSEventPublisher implements outbound.EventPublisher on JetStream. Each
// event goes to <subject_prefix>.<event type> with its id as the JetStream
// message id, so redelivered publishes are deduplicated by the server.
type NATSEventPublisher struct {
	config config.NATSConfig
	conn   *nats.Conn
	js     jetStream

	mutex           sync.RWMutex
	metrics         PublisherMetrics
	failureCount    int
	lastFailureTime time.Time
	now             func() time.Time
}

// NewNATSEventPublisher validates cfg and creates an unconnected publisher.
func NewNATSEventPublisher(cfg config.NATSConfig) (*NATSEventPublisher, error) {
	if cfg.URL == "" {
		return nil, errors.New("NATS URL cannot be empty")
	}
	if !strings.HasPrefix(cfg.URL, "nats://") {
		return nil, errors.New("invalid NATS URL scheme")
	}
	if cfg.MaxReconnects < 0 {
		return nil, errors.New("max reconnects cannot be negative")
	}
	if cfg.ReconnectWait < 0 {
		return nil, errors.New("reconnect wait cannot be negative")
	}
	if cfg.Stream == "" {
		cfg.Stream = "DGSYNC_EVENTS"
	}
	if cfg.SubjectPrefix == "" {
		cfg.SubjectPrefix = "dgsync.events"
	}
	return &NATSEventPublisher{config: cfg, now: time.Now}, nil
}

// Connect establishes the connection and the JetStream context.
func (n *NATSEventPublisher) Connect() error {
	opts := []nats.Option{
		nats.Name("dgsync"),
		nats.MaxReconnects(n.config.MaxReconnects),
		nats.ReconnectWait(n.config.ReconnectWait),
		nats.Timeout(natsConnectionTimeout),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slogger.InfoNoCtx("Reconnected to NATS", slogger.Field("url", c.ConnectedUrl()))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slogger.WarnNoCtx("Disconnected from NATS", slogger.Field("error", err.Error()))
			}
		}),
	}

	conn, err := nats.Connect(n.config.URL, opts...)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	n.mutex.Lock()
	n.conn = conn
	n.js = js
	n.mutex.Unlock()
	return nil
}

// EnsureStream creates the event stream unless it already exists.
func (n *NATSEventPublisher) EnsureStream() error {
	js := n.jetStream()
	if js == nil {
		return ErrNotConnected
	}

	_, err := js.AddStream(&nats.StreamConfig{
		Name:      n.config.Stream,
		Subjects:  []string{n.config.SubjectPrefix + ".>"},
		Storage:   nats.FileStorage,
		Retention: nats.LimitsPolicy,
		MaxAge:    streamMaxAge,
		Replicas:  1,
	})
	if err == nil {
		return nil
	}
	if _, infoErr := js.StreamInfo(n.config.Stream); infoErr == nil {
		return nil
	}
	return fmt.Errorf("failed to create stream %s: %w", n.config.Stream, err)
}

// Subject returns the subject an event type is published on.
func (n *NATSEventPublisher) Subject(eventType string) string {
	return n.config.SubjectPrefix + "." + eventType
}

// Publish sends event and waits for the JetStream acknowledgement.
func (n *NATSEventPublisher) Publish(ctx context.Context, event outbound.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.circuitOpen() {
		return ErrCircuitOpen
	}
	js := n.jetStream()
	if js == nil {
		return ErrNotConnected
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	msg := nats.NewMsg(n.Subject(event.Type))
	msg.Data = data
	msg.Header.Set("Content-Type", "application/json")

	_, err = js.PublishMsg(msg, nats.Context(ctx), nats.MsgId(event.ID))
	n.record(err == nil)
	if err != nil {
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	return nil
}

// Ping reports whether the connection is up.
func (n *NATSEventPublisher) Ping(context.Context) error {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	if n.conn == nil || !n.conn.IsConnected() {
		return ErrNotConnected
	}
	return nil
}

// Metrics returns a snapshot of publish outcomes.
func (n *NATSEventPublisher) Metrics() PublisherMetrics {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return n.metrics
}

// Close drains and closes the connection.
func (n *NATSEventPublisher) Close() {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.conn != nil {
		if err := n.conn.Drain(); err != nil {
			n.conn.Close()
		}
		n.conn = nil
	}
	n.js = nil
}

func (n *NATSEventPublisher) jetStream() jetStream {
	n.mutex.RLock()
	defer n.mutex.RUnlock()
	return n.js
}

func (n *NATSEventPublisher) record(success bool) {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if success {
		n.metrics.PublishedCount++
		n.metrics.LastPublished = n.now()
		n.failureCount = 0
		return
	}
	n.metrics.FailedCount++
	n.failureCount++
	n.lastFailureTime = n.now()
}

func (n *NATSEventPublisher) circuitOpen() bool {
	n.mutex.Lock()
	defer n.mutex.Unlock()
	if n.failureCount < maxFailures {
		return false
	}
	if n.now().Sub(n.lastFailureTime) > circuitOpenDuration {
		n.failureCount = 0
		return false
	}
	return true
}
