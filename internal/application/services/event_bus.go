package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/nexuscrm/formengine/internal/domain/events"
	"github.com/nexuscrm/formengine/internal/domain/ports"
	"github.com/nexuscrm/formengine/pkg/models"
)

// EventType is an alias to the domain type
type EventType = events.EventType

// EventHandler is the handler type from ports
type EventHandler = ports.EventHandler

// EntitySelectedPayload is published when a dependent selector resolves to an entity
type EntitySelectedPayload struct {
	SessionID string        `json:"session_id"`
	Field     string        `json:"field"`
	Entity    models.Entity `json:"entity"`
	// Populated lists the sibling fields written by auto-population
	Populated []string `json:"populated,omitempty"`
}

// FieldChangedPayload is published after a draft value changes
type FieldChangedPayload struct {
	SessionID string      `json:"session_id"`
	Field     string      `json:"field"`
	Value     interface{} `json:"value"`
}

// FieldConfigSavedPayload is published after a registry batch save succeeds
type FieldConfigSavedPayload struct {
	TenantID   string `json:"tenant_id"`
	EntityType string `json:"entity_type"`
	FieldCount int    `json:"field_count"`
}

// RecordSubmittedPayload is published after a record is persisted
type RecordSubmittedPayload struct {
	SessionID  string `json:"session_id"`
	TenantID   string `json:"tenant_id"`
	EntityType string `json:"entity_type"`
	RecordID   string `json:"record_id"`
}

type subscription struct {
	id      uint64
	handler EventHandler
}

// EventBus is an in-process publish/subscribe bus.
// It implements ports.EventPublisher.
type EventBus struct {
	handlers map[EventType][]subscription
	nextID   uint64
	mu       sync.RWMutex
}

// Ensure EventBus implements ports.EventPublisher at compile time
var _ ports.EventPublisher = (*EventBus)(nil)

// NewEventBus creates a new EventBus instance
func NewEventBus() *EventBus {
	return &EventBus{
		handlers: make(map[EventType][]subscription),
	}
}

// Subscribe registers a handler for a specific event type.
// Returns an unsubscribe function.
func (eb *EventBus) Subscribe(eventType EventType, handler EventHandler) func() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.nextID++
	id := eb.nextID
	eb.handlers[eventType] = append(eb.handlers[eventType], subscription{id: id, handler: handler})

	return func() {
		eb.mu.Lock()
		defer eb.mu.Unlock()

		subs := eb.handlers[eventType]
		for i, s := range subs {
			if s.id == id {
				eb.handlers[eventType] = append(subs[:i:i], subs[i+1:]...)
				break
			}
		}
	}
}

// Publish publishes an event to all registered handlers
func (eb *EventBus) Publish(ctx context.Context, eventType EventType, payload interface{}) error {
	eb.mu.RLock()
	subs := append([]subscription(nil), eb.handlers[eventType]...)
	eb.mu.RUnlock()

	for _, s := range subs {
		if err := s.handler(ctx, payload); err != nil {
			return fmt.Errorf("EventBus handler error for %s: %w", eventType, err)
		}
	}
	return nil
}

// HandlerCount returns the number of handlers registered for an event type
func (eb *EventBus) HandlerCount(eventType EventType) int {
	eb.mu.RLock()
	defer eb.mu.RUnlock()
	return len(eb.handlers[eventType])
}

// Clear removes all handlers (useful for testing)
func (eb *EventBus) Clear() {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.handlers = make(map[EventType][]subscription)
}
