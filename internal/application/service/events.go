package service

import (
	"context"

	"dgsync/internal/application/common/slogger"
	"dgsync/internal/port/outbound"

	"github.com/google/uuid"
)

type noopPublisher struct{}

func (noopPublisher) Publish(context.Context, outbound.Event) error { return nil }

// NewNoopEventPublisher returns a publisher that drops every event.
func NewNoopEventPublisher() outbound.EventPublisher {
	return noopPublisher{}
}

// publishEvent sends a lifecycle event and logs, but otherwise ignores, failures.
func publishEvent(ctx context.Context, publisher outbound.EventPublisher, clock Clock, eventType string, payload map[string]any) {
	if publisher == nil {
		return
	}
	event := outbound.Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		OccurredAt: clock.Now(),
		Payload:    payload,
	}
	if err := publisher.Publish(ctx, event); err != nil {
		slogger.Warn(ctx, "Failed to publish event", slogger.Fields{
			"event_type": eventType,
			"event_id":   event.ID,
			"error":      err.Error(),
		})
	}
}
