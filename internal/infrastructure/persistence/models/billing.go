package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
)

// InvoiceModel is the persistence model for the Invoice aggregate root
type InvoiceModel struct {
	AggregateModel
	TenantID               uuid.UUID                      `gorm:"type:uuid;not null;uniqueIndex:idx_invoices_tenant_number,priority:1;index:idx_invoices_tenant_student,priority:1"`
	InvoiceNumber          string                         `gorm:"type:varchar(50);not null;uniqueIndex:idx_invoices_tenant_number,priority:2"`
	StudentID              uuid.UUID                      `gorm:"type:uuid;not null;index:idx_invoices_tenant_student,priority:2"`
	FeeStructureID         uuid.UUID                      `gorm:"type:uuid;not null"`
	AcademicYearID         uuid.UUID                      `gorm:"type:uuid;not null;index"`
	Subtotal               decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	Discount               decimal.Decimal                `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount            decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	PaidAmount             decimal.Decimal                `gorm:"type:decimal(18,4);not null;default:0"`
	Balance                decimal.Decimal                `gorm:"type:decimal(18,4);not null"`
	Status                 finance.InvoiceStatus          `gorm:"type:varchar(20);not null;default:'PENDING';index:idx_invoices_status_due,priority:1"`
	DiscountApprovalStatus finance.DiscountApprovalStatus `gorm:"type:varchar(20);not null;default:'NONE'"`
	DiscountReason         string                         `gorm:"type:varchar(500)"`
	DiscountReviewedBy     *uuid.UUID                     `gorm:"type:uuid"`
	DiscountReviewedAt     *time.Time
	DueDate                time.Time  `gorm:"not null;index:idx_invoices_status_due,priority:2"`
	GeneratedAt            time.Time  `gorm:"not null"`
	CancelledAt            *time.Time
	CancelledBy            *uuid.UUID `gorm:"type:uuid"`
	CancelReason           string     `gorm:"type:varchar(500)"`
	DeletedAt              *time.Time `gorm:"index"`
	Remark                 string     `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *finance.Invoice {
	inv := &finance.Invoice{
		InvoiceNumber:          m.InvoiceNumber,
		StudentID:              m.StudentID,
		FeeStructureID:         m.FeeStructureID,
		AcademicYearID:         m.AcademicYearID,
		Subtotal:               m.Subtotal,
		Discount:               m.Discount,
		TotalAmount:            m.TotalAmount,
		PaidAmount:             m.PaidAmount,
		Balance:                m.Balance,
		Status:                 m.Status,
		DiscountApprovalStatus: m.DiscountApprovalStatus,
		DiscountReason:         m.DiscountReason,
		DiscountReviewedBy:     m.DiscountReviewedBy,
		DiscountReviewedAt:     m.DiscountReviewedAt,
		DueDate:                m.DueDate,
		GeneratedAt:            m.GeneratedAt,
		CancelledAt:            m.CancelledAt,
		CancelledBy:            m.CancelledBy,
		CancelReason:           m.CancelReason,
		DeletedAt:              m.DeletedAt,
		Remark:                 m.Remark,
	}
	inv.TenantAggregateRoot = m.tenantRoot(m.TenantID)
	return inv
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *finance.Invoice) {
	m.AggregateModel = aggregateModelOf(inv.BaseAggregateRoot)
	m.TenantID = inv.TenantID
	m.InvoiceNumber = inv.InvoiceNumber
	m.StudentID = inv.StudentID
	m.FeeStructureID = inv.FeeStructureID
	m.AcademicYearID = inv.AcademicYearID
	m.Subtotal = inv.Subtotal
	m.Discount = inv.Discount
	m.TotalAmount = inv.TotalAmount
	m.PaidAmount = inv.PaidAmount
	m.Balance = inv.Balance
	m.Status = inv.Status
	m.DiscountApprovalStatus = inv.DiscountApprovalStatus
	m.DiscountReason = inv.DiscountReason
	m.DiscountReviewedBy = inv.DiscountReviewedBy
	m.DiscountReviewedAt = inv.DiscountReviewedAt
	m.DueDate = inv.DueDate
	m.GeneratedAt = inv.GeneratedAt
	m.CancelledAt = inv.CancelledAt
	m.CancelledBy = inv.CancelledBy
	m.CancelReason = inv.CancelReason
	m.DeletedAt = inv.DeletedAt
	m.Remark = inv.Remark
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *finance.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// PaymentModel is the persistence model for payments.
// Only applied payments (COMPLETED, REFUNDED) take part in the external
// reference unique index, so failed gateway attempts can be retried.
type PaymentModel struct {
	AggregateModel
	TenantID      uuid.UUID             `gorm:"type:uuid;not null;uniqueIndex:idx_payments_applied_ref,priority:1,where:external_ref <> '' AND status <> 'FAILED' AND status <> 'PENDING'"`
	InvoiceID     uuid.UUID             `gorm:"type:uuid;not null;index"`
	StudentID     uuid.UUID             `gorm:"type:uuid;not null;index"`
	Amount        decimal.Decimal       `gorm:"type:decimal(18,4);not null"`
	Method        finance.PaymentMethod `gorm:"type:varchar(30);not null;uniqueIndex:idx_payments_applied_ref,priority:2"`
	ExternalRef   string                `gorm:"type:varchar(100);not null;default:'';uniqueIndex:idx_payments_applied_ref,priority:3"`
	Status        finance.PaymentStatus `gorm:"type:varchar(20);not null"`
	FailureReason string                `gorm:"type:varchar(500)"`
	ReceivedBy    *uuid.UUID            `gorm:"type:uuid"`
	PaidAt        *time.Time
	RefundedAt    *time.Time
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *finance.Payment {
	p := &finance.Payment{
		InvoiceID:     m.InvoiceID,
		StudentID:     m.StudentID,
		Amount:        m.Amount,
		Method:        m.Method,
		ExternalRef:   m.ExternalRef,
		Status:        m.Status,
		FailureReason: m.FailureReason,
		ReceivedBy:    m.ReceivedBy,
		PaidAt:        m.PaidAt,
		RefundedAt:    m.RefundedAt,
	}
	p.TenantAggregateRoot = m.tenantRoot(m.TenantID)
	return p
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *finance.Payment) {
	m.AggregateModel = aggregateModelOf(p.BaseAggregateRoot)
	m.TenantID = p.TenantID
	m.InvoiceID = p.InvoiceID
	m.StudentID = p.StudentID
	m.Amount = p.Amount
	m.Method = p.Method
	m.ExternalRef = p.ExternalRef
	m.Status = p.Status
	m.FailureReason = p.FailureReason
	m.ReceivedBy = p.ReceivedBy
	m.PaidAt = p.PaidAt
	m.RefundedAt = p.RefundedAt
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *finance.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// RefundModel is the persistence model for refunds. A payment has at most one
// active (PENDING or APPROVED) refund, enforced by a partial unique index.
type RefundModel struct {
	AggregateModel
	TenantID        uuid.UUID            `gorm:"type:uuid;not null;uniqueIndex:idx_refunds_tenant_number,priority:1;index:idx_refunds_tenant_status,priority:1"`
	RefundNumber    string               `gorm:"type:varchar(50);not null;uniqueIndex:idx_refunds_tenant_number,priority:2"`
	PaymentID       uuid.UUID            `gorm:"type:uuid;not null;index;uniqueIndex:idx_refunds_active_payment,where:status = 'PENDING' OR status = 'APPROVED'"`
	InvoiceID       uuid.UUID            `gorm:"type:uuid;not null;index"`
	StudentID       uuid.UUID            `gorm:"type:uuid;not null;index"`
	Amount          decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Reason          string               `gorm:"type:varchar(500);not null"`
	RequestedBy     uuid.UUID            `gorm:"type:uuid;not null"`
	Remarks         string               `gorm:"type:varchar(500)"`
	Status          finance.RefundStatus `gorm:"type:varchar(20);not null;index:idx_refunds_tenant_status,priority:2"`
	ApprovedBy      *uuid.UUID           `gorm:"type:uuid"`
	ApprovedAt      *time.Time
	RejectedBy      *uuid.UUID `gorm:"type:uuid"`
	RejectedAt      *time.Time
	RejectionReason string     `gorm:"type:varchar(500)"`
	ProcessedBy     *uuid.UUID `gorm:"type:uuid"`
	ProcessedAt     *time.Time
}

// TableName returns the table name for GORM
func (RefundModel) TableName() string {
	return "refunds"
}

// ToDomain converts the persistence model to a domain Refund
func (m *RefundModel) ToDomain() *finance.Refund {
	r := &finance.Refund{
		RefundNumber:    m.RefundNumber,
		PaymentID:       m.PaymentID,
		InvoiceID:       m.InvoiceID,
		StudentID:       m.StudentID,
		Amount:          m.Amount,
		Reason:          m.Reason,
		RequestedBy:     m.RequestedBy,
		Remarks:         m.Remarks,
		Status:          m.Status,
		ApprovedBy:      m.ApprovedBy,
		ApprovedAt:      m.ApprovedAt,
		RejectedBy:      m.RejectedBy,
		RejectedAt:      m.RejectedAt,
		RejectionReason: m.RejectionReason,
		ProcessedBy:     m.ProcessedBy,
		ProcessedAt:     m.ProcessedAt,
	}
	r.TenantAggregateRoot = m.tenantRoot(m.TenantID)
	return r
}

// FromDomain populates the persistence model from a domain Refund
func (m *RefundModel) FromDomain(r *finance.Refund) {
	m.AggregateModel = aggregateModelOf(r.BaseAggregateRoot)
	m.TenantID = r.TenantID
	m.RefundNumber = r.RefundNumber
	m.PaymentID = r.PaymentID
	m.InvoiceID = r.InvoiceID
	m.StudentID = r.StudentID
	m.Amount = r.Amount
	m.Reason = r.Reason
	m.RequestedBy = r.RequestedBy
	m.Remarks = r.Remarks
	m.Status = r.Status
	m.ApprovedBy = r.ApprovedBy
	m.ApprovedAt = r.ApprovedAt
	m.RejectedBy = r.RejectedBy
	m.RejectedAt = r.RejectedAt
	m.RejectionReason = r.RejectionReason
	m.ProcessedBy = r.ProcessedBy
	m.ProcessedAt = r.ProcessedAt
}

// RefundModelFromDomain creates a new persistence model from a domain Refund
func RefundModelFromDomain(r *finance.Refund) *RefundModel {
	m := &RefundModel{}
	m.FromDomain(r)
	return m
}
