package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormRefundRepository implements finance.RefundRepository using GORM
type GormRefundRepository struct {
	db *gorm.DB
}

// NewGormRefundRepository creates a new GormRefundRepository
func NewGormRefundRepository(db *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormRefundRepository) WithTx(tx *gorm.DB) *GormRefundRepository {
	return &GormRefundRepository{db: tx}
}

// FindByID finds a refund by ID
func (r *GormRefundRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.Refund, error) {
	return r.first(r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByIDForUpdate finds a refund with SELECT ... FOR UPDATE
func (r *GormRefundRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.Refund, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindActiveByPayment finds the PENDING or APPROVED refund of a payment
func (r *GormRefundRepository) FindActiveByPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*finance.Refund, error) {
	return r.first(r.db.WithContext(ctx).
		Where("tenant_id = ? AND payment_id = ? AND status IN ?", tenantID, paymentID,
			[]finance.RefundStatus{finance.RefundStatusPending, finance.RefundStatusApproved}))
}

// FindAll lists refunds matching the filter
func (r *GormRefundRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter finance.RefundFilter) ([]finance.Refund, error) {
	var refundModels []models.RefundModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.RefundModel{}), tenantID, filter).
		Order(refundSortColumns.orderBy(filter.OrderBy, filter.OrderDir)).
		Offset(filter.Offset()).
		Limit(filter.Limit())
	if err := query.Find(&refundModels).Error; err != nil {
		return nil, err
	}
	refunds := make([]finance.Refund, len(refundModels))
	for i := range refundModels {
		refunds[i] = *refundModels[i].ToDomain()
	}
	return refunds, nil
}

// Count counts refunds matching the filter
func (r *GormRefundRepository) Count(ctx context.Context, tenantID uuid.UUID, filter finance.RefundFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.RefundModel{}), tenantID, filter).
		Count(&count).Error
	return count, err
}

type refundStatusRow struct {
	Status finance.RefundStatus
	Count  int64
	Amount decimal.Decimal
}

// SummarizeByStatus groups refunds created in [from, to] by status
func (r *GormRefundRepository) SummarizeByStatus(ctx context.Context, tenantID uuid.UUID, from, to *time.Time) ([]finance.RefundStatusSummary, error) {
	var rows []refundStatusRow
	query := r.db.WithContext(ctx).Model(&models.RefundModel{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(amount), 0) AS amount").
		Where("tenant_id = ?", tenantID)
	query = applyCreatedRange(query, from, to)
	if err := query.Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}

	summaries := make([]finance.RefundStatusSummary, len(rows))
	for i, row := range rows {
		summaries[i] = finance.RefundStatusSummary{
			Status: row.Status,
			Count:  row.Count,
			Amount: row.Amount,
		}
	}
	return summaries, nil
}

// Save creates or updates a refund. The partial unique index on payment_id
// turns a racing second active request into DUPLICATE_REFUND_REQUEST.
func (r *GormRefundRepository) Save(ctx context.Context, refund *finance.Refund) error {
	model := models.RefundModelFromDomain(refund)
	err := r.db.WithContext(ctx).Save(model).Error
	if constraint, ok := uniqueViolation(err); ok {
		if strings.Contains(constraint, "number") {
			return fmt.Errorf("refund number %s already taken: %w", refund.RefundNumber, err)
		}
		return finance.NewDuplicateRefundRequestError(refund.PaymentID, nil)
	}
	return err
}

// Delete removes a refund
func (r *GormRefundRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		Delete(&models.RefundModel{}).Error
}

func (r *GormRefundRepository) first(query *gorm.DB) (*finance.Refund, error) {
	var model models.RefundModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

func (r *GormRefundRepository) applyFilter(query *gorm.DB, tenantID uuid.UUID, filter finance.RefundFilter) *gorm.DB {
	query = query.Where("tenant_id = ?", tenantID)
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.StudentID != nil {
		query = query.Where("student_id = ?", *filter.StudentID)
	}
	if filter.InvoiceID != nil {
		query = query.Where("invoice_id = ?", *filter.InvoiceID)
	}
	if filter.PaymentID != nil {
		query = query.Where("payment_id = ?", *filter.PaymentID)
	}
	return applyCreatedRange(query, filter.FromDate, filter.ToDate)
}

func applyCreatedRange(query *gorm.DB, from, to *time.Time) *gorm.DB {
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}
	return query
}

// Ensure GormRefundRepository implements finance.RefundRepository
var _ finance.RefundRepository = (*GormRefundRepository)(nil)
