// Package messaging subscribes to the lifecycle events published by dgsync
// instances and reacts to the ones that affect local state.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"dgsync/internal/application/common/slogger"
	"dgsync/internal/config"
	"dgsync/internal/domain/lease"
	"dgsync/internal/port/outbound"

	"github.com/nats-io/nats.go"
)

const defaultDebounce = 500 * time.Millisecond

// ErrAlreadyRunning is returned by Start on a running consumer.
var ErrAlreadyRunning = errors.New("consumer is already running")

// CacheInvalidator drops memoized lookups.
type CacheInvalidator interface {
	ClearCache(ctx context.Context) error
}

// InvalidationConfig configures an InvalidationConsumer.
type InvalidationConfig struct {
	// Debounce coalesces bursts of events into one invalidation.
	Debounce time.Duration
	// Kinds whose creation invalidates the cache.
	Kinds []string
	// Function whose completed sync runs invalidate the cache.
	Function string
}

// ConsumerStats counts what the consumer has seen.
type ConsumerStats struct {
	Received      int64
	Relevant      int64
	Malformed     int64
	Invalidations int64
	Failures      int64
}

// InvalidationConsumer clears the similar-content cache when new content or
// embeddings are written by any instance. Every instance subscribes without a
// queue group so each one drops its own cache.
type InvalidationConsumer struct {
	natsConfig  config.NATSConfig
	config      InvalidationConfig
	invalidator CacheInvalidator
	kinds       map[string]bool

	mu      sync.Mutex
	conn    *nats.Conn
	subs    []*nats.Subscription
	timer   *time.Timer
	stats   ConsumerStats
	running bool
}

// NewInvalidationConsumer validates the configuration.
func NewInvalidationConsumer(
	natsConfig config.NATSConfig,
	cfg InvalidationConfig,
	invalidator CacheInvalidator,
) (*InvalidationConsumer, error) {
	if natsConfig.URL == "" {
		return nil, errors.New("NATS URL cannot be empty")
	}
	if invalidator == nil {
		return nil, errors.New("cache invalidator is required")
	}
	if cfg.Debounce < 0 {
		return nil, errors.New("debounce cannot be negative")
	}
	if cfg.Debounce == 0 {
		cfg.Debounce = defaultDebounce
	}
	if natsConfig.SubjectPrefix == "" {
		natsConfig.SubjectPrefix = "dgsync.events"
	}
	kinds := make(map[string]bool, len(cfg.Kinds))
	for _, k := range cfg.Kinds {
		kinds[k] = true
	}
	return &InvalidationConsumer{
		natsConfig:  natsConfig,
		config:      cfg,
		invalidator: invalidator,
		kinds:       kinds,
	}, nil
}

// Subjects returns the subjects the consumer listens on.
func (c *InvalidationConsumer) Subjects() []string {
	return []string{
		c.natsConfig.SubjectPrefix + "." + outbound.EventEntityCreated,
		c.natsConfig.SubjectPrefix + "." + outbound.EventLeaseEnded,
	}
}

// Start connects and subscribes. The consumer stops when ctx is done.
func (c *InvalidationConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return ErrAlreadyRunning
	}

	conn, err := nats.Connect(c.natsConfig.URL,
		nats.Name("dgsync-invalidation"),
		nats.MaxReconnects(c.natsConfig.MaxReconnects),
		nats.ReconnectWait(c.natsConfig.ReconnectWait),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	subs := make([]*nats.Subscription, 0, 2)
	for _, subject := range c.Subjects() {
		sub, err := conn.Subscribe(subject, c.HandleMessage)
		if err != nil {
			conn.Close()
			return fmt.Errorf("failed to subscribe to %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}

	c.conn = conn
	c.subs = subs
	c.running = true
	slogger.Info(ctx, "Cache invalidation consumer started", slogger.Field("subjects", c.Subjects()))

	go func() {
		<-ctx.Done()
		c.Stop()
	}()
	return nil
}

// Stop unsubscribes and drains the connection. It is safe to call twice.
func (c *InvalidationConsumer) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.running {
		return
	}
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
	}
	c.conn = nil
	c.subs = nil
	c.running = false
	slogger.InfoNoCtx("Cache invalidation consumer stopped", nil)
}

// IsRunning reports whether the consumer is subscribed.
func (c *InvalidationConsumer) IsRunning() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Stats returns a snapshot of the counters.
func (c *InvalidationConsumer) Stats() ConsumerStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

// HandleMessage decodes one event and schedules an invalidation when it is relevant.
func (c *InvalidationConsumer) HandleMessage(msg *nats.Msg) {
	var event outbound.Event
	err := json.Unmarshal(msg.Data, &event)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.Received++
	if err != nil {
		c.stats.Malformed++
		slogger.WarnNoCtx("Dropping malformed event", slogger.Fields2("subject", msg.Subject, "error", err.Error()))
		return
	}
	if !c.relevant(event) {
		return
	}
	c.stats.Relevant++
	if c.timer == nil {
		c.timer = time.AfterFunc(c.config.Debounce, c.invalidate)
	}
}

func (c *InvalidationConsumer) relevant(event outbound.Event) bool {
	switch event.Type {
	case outbound.EventEntityCreated:
		kind, _ := event.Payload["kind"].(string)
		return c.kinds[kind]
	case outbound.EventLeaseEnded:
		function, _ := event.Payload["function"].(string)
		status, _ := event.Payload["status"].(string)
		return c.config.Function != "" && function == c.config.Function && status == lease.StatusComplete.String()
	default:
		return false
	}
}

func (c *InvalidationConsumer) invalidate() {
	c.mu.Lock()
	c.timer = nil
	c.mu.Unlock()

	err := c.invalidator.ClearCache(context.Background())

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.stats.Failures++
		slogger.ErrorNoCtx("Failed to clear lookup cache", slogger.Field("error", err.Error()))
		return
	}
	c.stats.Invalidations++
	slogger.InfoNoCtx("Lookup cache cleared after remote change", nil)
}
