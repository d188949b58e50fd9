package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPaymentRepository implements finance.PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

// WithTx returns a new repository instance bound to the given transaction
func (r *GormPaymentRepository) WithTx(tx *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: tx}
}

// FindByID finds a payment by ID
func (r *GormPaymentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*finance.Payment, error) {
	return r.first(r.db.WithContext(ctx).Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByIDForUpdate finds a payment with SELECT ... FOR UPDATE
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*finance.Payment, error) {
	return r.first(r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id = ?", tenantID, id))
}

// FindByExternalRef finds the applied payment for a gateway reference
func (r *GormPaymentRepository) FindByExternalRef(ctx context.Context, tenantID uuid.UUID, method finance.PaymentMethod, externalRef string) (*finance.Payment, error) {
	if externalRef == "" {
		return nil, nil
	}
	return r.first(r.db.WithContext(ctx).
		Where("tenant_id = ? AND method = ? AND external_ref = ? AND status IN ?", tenantID, method, externalRef,
			[]finance.PaymentStatus{finance.PaymentStatusCompleted, finance.PaymentStatusRefunded}))
}

// FindByInvoice lists payments of an invoice, oldest first
func (r *GormPaymentRepository) FindByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]finance.Payment, error) {
	var paymentModels []models.PaymentModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("created_at ASC").
		Find(&paymentModels).Error; err != nil {
		return nil, err
	}
	payments := make([]finance.Payment, len(paymentModels))
	for i := range paymentModels {
		payments[i] = *paymentModels[i].ToDomain()
	}
	return payments, nil
}

// Save creates or updates a payment. A second applied payment for the same
// gateway reference is reported as ALREADY_EXISTS.
func (r *GormPaymentRepository) Save(ctx context.Context, p *finance.Payment) error {
	model := models.PaymentModelFromDomain(p)
	err := r.db.WithContext(ctx).Save(model).Error
	if _, ok := uniqueViolation(err); ok {
		return shared.ErrAlreadyExists.
			WithDetail("method", p.Method.String()).
			WithDetail("external_ref", p.ExternalRef)
	}
	return err
}

func (r *GormPaymentRepository) first(query *gorm.DB) (*finance.Payment, error) {
	var model models.PaymentModel
	if err := query.First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Ensure GormPaymentRepository implements finance.PaymentRepository
var _ finance.PaymentRepository = (*GormPaymentRepository)(nil)
