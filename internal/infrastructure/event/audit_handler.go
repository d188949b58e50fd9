package event

import (
	"context"
	"fmt"

	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
)

// AuditLogHandler turns committed ledger events into audit trail rows.
// Errors go back to the bus, which logs them; they never reach the ledger
// operation that produced the event.
type AuditLogHandler struct {
	repo finance.AuditLogRepository
}

// NewAuditLogHandler creates an audit handler writing through repo
func NewAuditLogHandler(repo finance.AuditLogRepository) *AuditLogHandler {
	return &AuditLogHandler{repo: repo}
}

// EventTypes returns every ledger event type
func (h *AuditLogHandler) EventTypes() []string {
	return finance.LedgerEventTypes()
}

// Handle appends one audit entry per event. Events that carry no audit
// information are ignored.
func (h *AuditLogHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	auditable, ok := event.(finance.AuditableEvent)
	if !ok {
		return nil
	}

	entry, err := finance.NewAuditEntryFromEvent(auditable)
	if err != nil {
		return fmt.Errorf("build audit entry for %s: %w", event.EventType(), err)
	}
	if err := h.repo.Append(ctx, entry); err != nil {
		return fmt.Errorf("append audit entry for %s: %w", event.EventType(), err)
	}
	return nil
}

var _ shared.EventHandler = (*AuditLogHandler)(nil)
