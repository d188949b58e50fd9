package persistence

import (
	"context"

	"github.com/google/uuid"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormAuditLogRepository implements finance.AuditLogRepository using GORM
type GormAuditLogRepository struct {
	db *gorm.DB
}

// NewGormAuditLogRepository creates a new GormAuditLogRepository
func NewGormAuditLogRepository(db *gorm.DB) *GormAuditLogRepository {
	return &GormAuditLogRepository{db: db}
}

// Append inserts an entry, ignoring a replay of the same event
func (r *GormAuditLogRepository) Append(ctx context.Context, entry *finance.AuditEntry) error {
	model := models.AuditLogModelFromDomain(entry)
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(model).Error
}

// FindAll lists audit entries of a tenant
func (r *GormAuditLogRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter finance.AuditFilter) ([]finance.AuditEntry, error) {
	query := r.db.WithContext(ctx).Where("tenant_id = ?", tenantID)
	if filter.EntityType != "" {
		query = query.Where("entity_type = ?", filter.EntityType)
	}
	if filter.EntityID != nil {
		query = query.Where("entity_id = ?", *filter.EntityID)
	}
	if filter.ActorID != nil {
		query = query.Where("actor_id = ?", *filter.ActorID)
	}
	query = applyCreatedRange(query, filter.From, filter.To)

	var logModels []models.AuditLogModel
	if err := query.
		Order(auditLogSortColumns.orderBy(filter.OrderBy, filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.Limit()).
		Find(&logModels).Error; err != nil {
		return nil, err
	}
	entries := make([]finance.AuditEntry, len(logModels))
	for i := range logModels {
		entries[i] = *logModels[i].ToDomain()
	}
	return entries, nil
}

// Ensure GormAuditLogRepository implements finance.AuditLogRepository
var _ finance.AuditLogRepository = (*GormAuditLogRepository)(nil)
