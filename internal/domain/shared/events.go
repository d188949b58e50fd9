package shared

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// DomainEvent is a committed state change of a ledger aggregate
type DomainEvent interface {
	EventID() uuid.UUID
	EventType() string
	OccurredAt() time.Time
	AggregateID() uuid.UUID
	AggregateType() string
	TenantID() uuid.UUID
}

// BaseDomainEvent implements DomainEvent. Ledger events embed it and add
// their own payload fields.
type BaseDomainEvent struct {
	Meta EventMeta `json:"meta"`
}

// EventMeta is the envelope shared by all events
type EventMeta struct {
	ID            uuid.UUID `json:"id"`
	Type          string    `json:"type"`
	OccurredAt    time.Time `json:"occurred_at"`
	AggregateID   uuid.UUID `json:"aggregate_id"`
	AggregateType string    `json:"aggregate_type"`
	TenantID      uuid.UUID `json:"tenant_id"`
}

func (e *BaseDomainEvent) EventID() uuid.UUID     { return e.Meta.ID }
func (e *BaseDomainEvent) EventType() string      { return e.Meta.Type }
func (e *BaseDomainEvent) OccurredAt() time.Time  { return e.Meta.OccurredAt }
func (e *BaseDomainEvent) AggregateID() uuid.UUID { return e.Meta.AggregateID }
func (e *BaseDomainEvent) AggregateType() string  { return e.Meta.AggregateType }
func (e *BaseDomainEvent) TenantID() uuid.UUID    { return e.Meta.TenantID }

// NewBaseDomainEvent stamps a new event id and the current time
func NewBaseDomainEvent(eventType, aggType string, aggID, tenantID uuid.UUID) BaseDomainEvent {
	return BaseDomainEvent{Meta: EventMeta{
		ID:            uuid.New(),
		Type:          eventType,
		OccurredAt:    time.Now(),
		AggregateID:   aggID,
		AggregateType: aggType,
		TenantID:      tenantID,
	}}
}

// EventHandler consumes published events. An empty EventTypes result
// subscribes the handler to every event.
type EventHandler interface {
	Handle(ctx context.Context, event DomainEvent) error
	EventTypes() []string
}

// EventPublisher delivers events after the ledger transaction commits.
// Delivery failures never roll back the change that produced the event.
type EventPublisher interface {
	Publish(ctx context.Context, events ...DomainEvent) error
}

// EventBus routes published events to subscribed handlers
type EventBus interface {
	EventPublisher
	// Subscribe registers handler for eventTypes, or for the handler's own
	// EventTypes when none are given.
	Subscribe(handler EventHandler, eventTypes ...string)
	Unsubscribe(handler EventHandler)
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}
