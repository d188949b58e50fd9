package finance

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
)

// AuditEntry is one row of the ledger audit trail. Entries are append-only.
type AuditEntry struct {
	shared.BaseEntity
	TenantID   uuid.UUID
	EntityType string
	EntityID   uuid.UUID
	Action     string
	ActorID    *uuid.UUID
	OldValue   map[string]any
	NewValue   map[string]any
	EventID    uuid.UUID
}

// NewAuditEntryFromEvent records who moved an aggregate from which status to
// which. The full event payload is kept as the new value.
func NewAuditEntryFromEvent(event AuditableEvent) (*AuditEntry, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	newValue := make(map[string]any)
	if err := json.Unmarshal(payload, &newValue); err != nil {
		return nil, err
	}

	from, to := event.StatusTransition()
	entry := &AuditEntry{
		BaseEntity: shared.BaseEntity{
			ID:        uuid.New(),
			CreatedAt: event.OccurredAt(),
			UpdatedAt: event.OccurredAt(),
		},
		TenantID:   event.TenantID(),
		EntityType: event.AggregateType(),
		EntityID:   event.AggregateID(),
		Action:     event.EventType(),
		ActorID:    event.Actor(),
		NewValue:   newValue,
		EventID:    event.EventID(),
	}
	if from != "" {
		entry.OldValue = map[string]any{"status": from}
	}
	if to != "" {
		entry.NewValue["status"] = to
	}
	return entry, nil
}

// AuditFilter narrows audit trail queries
type AuditFilter struct {
	shared.Filter
	EntityType string
	EntityID   *uuid.UUID
	ActorID    *uuid.UUID
	From       *time.Time
	To         *time.Time
}

// AuditLogRepository persists the audit trail
type AuditLogRepository interface {
	// Append stores an entry. Appending the same event twice is a no-op.
	Append(ctx context.Context, entry *AuditEntry) error

	FindAll(ctx context.Context, tenantID uuid.UUID, filter AuditFilter) ([]AuditEntry, error)
}
