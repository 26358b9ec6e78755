package ports

import (
	"context"

	"github.com/nexuscrm/formengine/internal/domain/events"
)

// EventHandler is a function that handles an event
type EventHandler func(ctx context.Context, payload interface{}) error

// EventPublisher provides event publishing capabilities.
type EventPublisher interface {
	// Subscribe registers a handler for a specific event type and returns an unsubscribe func.
	Subscribe(eventType events.EventType, handler EventHandler) func()

	// Publish dispatches an event to all registered handlers in registration order.
	// Returns an error if any handler fails.
	Publish(ctx context.Context, eventType events.EventType, payload interface{}) error
}
