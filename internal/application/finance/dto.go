package finance

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
)

// CreateInvoiceRequest carries an already computed fee total from the fee module
type CreateInvoiceRequest struct {
	InvoiceNumber  string          `json:"invoice_number" binding:"omitempty,max=50"`
	StudentID      uuid.UUID       `json:"student_id" binding:"required"`
	FeeStructureID uuid.UUID       `json:"fee_structure_id" binding:"required"`
	AcademicYearID uuid.UUID       `json:"academic_year_id" binding:"required"`
	Subtotal       decimal.Decimal `json:"subtotal" binding:"decimal_gt0"`
	Discount       decimal.Decimal `json:"discount" binding:"decimal_gte0"`
	DueDate        time.Time       `json:"due_date" binding:"required"`
	Remark         string          `json:"remark" binding:"max=500"`
}

// InvoiceResponse represents an invoice in API responses
type InvoiceResponse struct {
	ID                     uuid.UUID       `json:"id"`
	TenantID               uuid.UUID       `json:"tenant_id"`
	InvoiceNumber          string          `json:"invoice_number"`
	StudentID              uuid.UUID       `json:"student_id"`
	FeeStructureID         uuid.UUID       `json:"fee_structure_id"`
	AcademicYearID         uuid.UUID       `json:"academic_year_id"`
	Subtotal               decimal.Decimal `json:"subtotal"`
	Discount               decimal.Decimal `json:"discount"`
	TotalAmount            decimal.Decimal `json:"total_amount"`
	PaidAmount             decimal.Decimal `json:"paid_amount"`
	Balance                decimal.Decimal `json:"balance"`
	Status                 string          `json:"status"`
	DiscountApprovalStatus string          `json:"discount_approval_status"`
	DiscountReason         string          `json:"discount_reason,omitempty"`
	DueDate                time.Time       `json:"due_date"`
	GeneratedAt            time.Time       `json:"generated_at"`
	CancelledAt            *time.Time      `json:"cancelled_at,omitempty"`
	CancelReason           string          `json:"cancel_reason,omitempty"`
	DeletedAt              *time.Time      `json:"deleted_at,omitempty"`
	Remark                 string          `json:"remark,omitempty"`
	CreatedAt              time.Time       `json:"created_at"`
	UpdatedAt              time.Time       `json:"updated_at"`
	Version                int             `json:"version"`
}

// InvoiceListFilter represents filter options for invoice lists
type InvoiceListFilter struct {
	StudentID      *uuid.UUID `form:"student_id"`
	AcademicYearID *uuid.UUID `form:"academic_year_id"`
	Status         string     `form:"status" binding:"omitempty,oneof=PENDING PARTIAL PAID OVERDUE CANCELLED"`
	IncludeDeleted bool       `form:"include_deleted"`
	Page           int        `form:"page" binding:"omitempty,min=1"`
	PageSize       int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// ToInvoiceResponse converts a domain Invoice to InvoiceResponse
func ToInvoiceResponse(inv *finance.Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:                     inv.ID,
		TenantID:               inv.TenantID,
		InvoiceNumber:          inv.InvoiceNumber,
		StudentID:              inv.StudentID,
		FeeStructureID:         inv.FeeStructureID,
		AcademicYearID:         inv.AcademicYearID,
		Subtotal:               inv.Subtotal,
		Discount:               inv.Discount,
		TotalAmount:            inv.TotalAmount,
		PaidAmount:             inv.PaidAmount,
		Balance:                inv.Balance,
		Status:                 inv.Status.String(),
		DiscountApprovalStatus: inv.DiscountApprovalStatus.String(),
		DiscountReason:         inv.DiscountReason,
		DueDate:                inv.DueDate,
		GeneratedAt:            inv.GeneratedAt,
		CancelledAt:            inv.CancelledAt,
		CancelReason:           inv.CancelReason,
		DeletedAt:              inv.DeletedAt,
		Remark:                 inv.Remark,
		CreatedAt:              inv.CreatedAt,
		UpdatedAt:              inv.UpdatedAt,
		Version:                inv.Version,
	}
}

// ToInvoiceResponses converts a slice of invoices
func ToInvoiceResponses(invoices []finance.Invoice) []InvoiceResponse {
	responses := make([]InvoiceResponse, len(invoices))
	for i := range invoices {
		responses[i] = ToInvoiceResponse(&invoices[i])
	}
	return responses
}

// RecordPaymentRequest is the gateway or cash confirmation signal
type RecordPaymentRequest struct {
	InvoiceID   uuid.UUID       `json:"-"`
	Amount      decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	Method      string          `json:"method" binding:"required,oneof=CASH BANK_TRANSFER CHEQUE ESEWA KHALTI FONEPAY CONNECT_IPS OTHER"`
	ExternalRef string          `json:"external_ref" binding:"max=100"`
	ReceivedBy  *uuid.UUID      `json:"-"`
}

// PaymentResponse represents a payment in API responses
type PaymentResponse struct {
	ID            uuid.UUID       `json:"id"`
	TenantID      uuid.UUID       `json:"tenant_id"`
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	StudentID     uuid.UUID       `json:"student_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        string          `json:"method"`
	ExternalRef   string          `json:"external_ref,omitempty"`
	Status        string          `json:"status"`
	FailureReason string          `json:"failure_reason,omitempty"`
	ReceivedBy    *uuid.UUID      `json:"received_by,omitempty"`
	PaidAt        *time.Time      `json:"paid_at,omitempty"`
	RefundedAt    *time.Time      `json:"refunded_at,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Version       int             `json:"version"`
	// Duplicate is set when the confirmation was already recorded earlier
	Duplicate bool `json:"duplicate,omitempty"`
}

// ToPaymentResponse converts a domain Payment to PaymentResponse
func ToPaymentResponse(p *finance.Payment) PaymentResponse {
	return PaymentResponse{
		ID:            p.ID,
		TenantID:      p.TenantID,
		InvoiceID:     p.InvoiceID,
		StudentID:     p.StudentID,
		Amount:        p.Amount,
		Method:        p.Method.String(),
		ExternalRef:   p.ExternalRef,
		Status:        p.Status.String(),
		FailureReason: p.FailureReason,
		ReceivedBy:    p.ReceivedBy,
		PaidAt:        p.PaidAt,
		RefundedAt:    p.RefundedAt,
		CreatedAt:     p.CreatedAt,
		UpdatedAt:     p.UpdatedAt,
		Version:       p.Version,
	}
}

// ToPaymentResponses converts a slice of payments
func ToPaymentResponses(payments []finance.Payment) []PaymentResponse {
	responses := make([]PaymentResponse, len(payments))
	for i := range payments {
		responses[i] = ToPaymentResponse(&payments[i])
	}
	return responses
}

// CreateRefundRequest asks for a whole-payment refund
type CreateRefundRequest struct {
	PaymentID uuid.UUID `json:"payment_id" binding:"required"`
	Reason    string    `json:"reason" binding:"required,min=1,max=500"`
}

// ApproveRefundRequest carries optional reviewer remarks
type ApproveRefundRequest struct {
	Remarks string `json:"remarks" binding:"max=500"`
}

// RejectRefundRequest carries the mandatory rejection reason
type RejectRefundRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// RefundResponse represents a refund in API responses
type RefundResponse struct {
	ID              uuid.UUID       `json:"id"`
	TenantID        uuid.UUID       `json:"tenant_id"`
	RefundNumber    string          `json:"refund_number"`
	PaymentID       uuid.UUID       `json:"payment_id"`
	InvoiceID       uuid.UUID       `json:"invoice_id"`
	StudentID       uuid.UUID       `json:"student_id"`
	Amount          decimal.Decimal `json:"amount"`
	Reason          string          `json:"reason"`
	RequestedBy     uuid.UUID       `json:"requested_by"`
	Remarks         string          `json:"remarks,omitempty"`
	Status          string          `json:"status"`
	ApprovedBy      *uuid.UUID      `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	RejectedBy      *uuid.UUID      `json:"rejected_by,omitempty"`
	RejectedAt      *time.Time      `json:"rejected_at,omitempty"`
	RejectionReason string          `json:"rejection_reason,omitempty"`
	ProcessedBy     *uuid.UUID      `json:"processed_by,omitempty"`
	ProcessedAt     *time.Time      `json:"processed_at,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	Version         int             `json:"version"`
}

// ToRefundResponse converts a domain Refund to RefundResponse
func ToRefundResponse(r *finance.Refund) RefundResponse {
	return RefundResponse{
		ID:              r.ID,
		TenantID:        r.TenantID,
		RefundNumber:    r.RefundNumber,
		PaymentID:       r.PaymentID,
		InvoiceID:       r.InvoiceID,
		StudentID:       r.StudentID,
		Amount:          r.Amount,
		Reason:          r.Reason,
		RequestedBy:     r.RequestedBy,
		Remarks:         r.Remarks,
		Status:          r.Status.String(),
		ApprovedBy:      r.ApprovedBy,
		ApprovedAt:      r.ApprovedAt,
		RejectedBy:      r.RejectedBy,
		RejectedAt:      r.RejectedAt,
		RejectionReason: r.RejectionReason,
		ProcessedBy:     r.ProcessedBy,
		ProcessedAt:     r.ProcessedAt,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
		Version:         r.Version,
	}
}

// ToRefundResponses converts a slice of refunds
func ToRefundResponses(refunds []finance.Refund) []RefundResponse {
	responses := make([]RefundResponse, len(refunds))
	for i := range refunds {
		responses[i] = ToRefundResponse(&refunds[i])
	}
	return responses
}

// RefundListFilter represents filter options for refund lists
type RefundListFilter struct {
	Status    string     `form:"status" binding:"omitempty,oneof=PENDING APPROVED REJECTED COMPLETED"`
	StudentID *uuid.UUID `form:"student_id"`
	InvoiceID *uuid.UUID `form:"invoice_id"`
	PaymentID *uuid.UUID `form:"payment_id"`
	FromDate  *time.Time `form:"from" time_format:"2006-01-02"`
	ToDate    *time.Time `form:"to" time_format:"2006-01-02"`
	Page      int        `form:"page" binding:"omitempty,min=1"`
	PageSize  int        `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// RefundStatisticsResponse summarises refunds over a date range
type RefundStatisticsResponse struct {
	From              *time.Time      `json:"from,omitempty"`
	To                *time.Time      `json:"to,omitempty"`
	TotalCount        int64           `json:"total_count"`
	PendingCount      int64           `json:"pending_count"`
	ApprovedCount     int64           `json:"approved_count"`
	RejectedCount     int64           `json:"rejected_count"`
	CompletedCount    int64           `json:"completed_count"`
	RequestedAmount   decimal.Decimal `json:"requested_amount"`
	RefundedAmount    decimal.Decimal `json:"refunded_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
}

// ToRefundStatisticsResponse converts domain statistics
func ToRefundStatisticsResponse(s *finance.RefundStatistics) RefundStatisticsResponse {
	return RefundStatisticsResponse{
		From:              s.From,
		To:                s.To,
		TotalCount:        s.TotalCount,
		PendingCount:      s.PendingCount,
		ApprovedCount:     s.ApprovedCount,
		RejectedCount:     s.RejectedCount,
		CompletedCount:    s.CompletedCount,
		RequestedAmount:   s.RequestedAmount,
		RefundedAmount:    s.RefundedAmount,
		OutstandingAmount: s.OutstandingAmount,
	}
}
