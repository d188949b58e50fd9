package models

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"go.uber.org/zap"
)

// AuditLogModel is the persistence model for the ledger audit trail.
// Audit logs are append-only and should not be modified after creation.
type AuditLogModel struct {
	BaseModel
	TenantID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_audit_logs_entity,priority:1"`
	EntityType   string     `gorm:"type:varchar(30);not null;index:idx_audit_logs_entity,priority:2"`
	EntityID     uuid.UUID  `gorm:"type:uuid;not null;index:idx_audit_logs_entity,priority:3"`
	Action       string     `gorm:"type:varchar(50);not null"`
	ActorID      *uuid.UUID `gorm:"type:uuid;index"`
	OldValueJSON string     `gorm:"column:old_value;type:jsonb"`
	NewValueJSON string     `gorm:"column:new_value;type:jsonb"`
	EventID      uuid.UUID  `gorm:"type:uuid;not null;uniqueIndex"`
}

// TableName returns the table name for GORM
func (AuditLogModel) TableName() string {
	return "audit_logs"
}

// ToDomain converts the persistence model to a domain AuditEntry
func (m *AuditLogModel) ToDomain() *finance.AuditEntry {
	entry := &finance.AuditEntry{
		BaseEntity: m.entity(),
		TenantID:   m.TenantID,
		EntityType: m.EntityType,
		EntityID:   m.EntityID,
		Action:     m.Action,
		ActorID:    m.ActorID,
		EventID:    m.EventID,
	}
	entry.OldValue = decodeAuditValue(m.OldValueJSON, m.EntityID)
	entry.NewValue = decodeAuditValue(m.NewValueJSON, m.EntityID)
	return entry
}

// FromDomain populates the persistence model from a domain AuditEntry
func (m *AuditLogModel) FromDomain(e *finance.AuditEntry) {
	m.BaseModel = baseModelOf(e.BaseEntity)
	m.TenantID = e.TenantID
	m.EntityType = e.EntityType
	m.EntityID = e.EntityID
	m.Action = e.Action
	m.ActorID = e.ActorID
	m.EventID = e.EventID
	m.OldValueJSON = encodeAuditValue(e.OldValue)
	m.NewValueJSON = encodeAuditValue(e.NewValue)
}

// AuditLogModelFromDomain creates a new persistence model from a domain AuditEntry
func AuditLogModelFromDomain(e *finance.AuditEntry) *AuditLogModel {
	m := &AuditLogModel{}
	m.FromDomain(e)
	return m
}

func encodeAuditValue(v map[string]any) string {
	if len(v) == 0 {
		return "{}"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(b)
}

func decodeAuditValue(raw string, entityID uuid.UUID) map[string]any {
	if raw == "" || raw == "{}" {
		return nil
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		zap.L().Named("billing.models").Warn("failed to parse audit log JSON",
			zap.String("entity_id", entityID.String()),
			zap.String("raw_json", raw),
			zap.Error(err))
		return nil
	}
	return v
}
