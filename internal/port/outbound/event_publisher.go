package outbound

import (
	"context"
	"time"
)

// Event types published by the application.
const (
	EventEntityCreated = "entity.created"
	EventLeaseAcquired = "lease.acquired"
	EventLeaseEnded    = "lease.ended"
)

// Event is a lifecycle notification.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OccurredAt time.Time      `json:"occurred_at"`
	Payload    map[string]any `json:"payload"`
}

// EventPublisher publishes lifecycle events. Publishing is best effort:
// callers log failures and carry on.
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
}
