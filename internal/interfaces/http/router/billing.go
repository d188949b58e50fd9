package router

import (
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/interfaces/http/handler"
)

// BillingHandlers are the handlers mounted under /billing
type BillingHandlers struct {
	Invoice *handler.InvoiceHandler
	Payment *handler.PaymentHandler
	Refund  *handler.RefundHandler
}

// NewBillingGroup builds the billing ledger route table
func NewBillingGroup(h BillingHandlers) *DomainGroup {
	billing := NewDomainGroup("/billing")

	billing.Group("/invoices").
		POST("", h.Invoice.CreateInvoice).
		GET("", h.Invoice.ListInvoices).
		GET("/:id", h.Invoice.GetInvoiceByID).
		DELETE("/:id", h.Invoice.DeleteInvoice).
		POST("/:id/cancel", h.Invoice.CancelInvoice).
		POST("/:id/restore", h.Invoice.RestoreInvoice).
		POST("/:id/discount/approve", h.Invoice.ApproveDiscount).
		POST("/:id/discount/reject", h.Invoice.RejectDiscount).
		POST("/:id/payments", h.Payment.RecordPayment).
		POST("/:id/payments/failed", h.Payment.RecordFailedPayment).
		GET("/:id/payments", h.Payment.ListInvoicePayments).
		GET("/:id/refunds", h.Refund.GetInvoiceRefunds)

	billing.Group("/payments").
		GET("/:id", h.Payment.GetPaymentByID)

	billing.Group("/refunds").
		POST("", h.Refund.CreateRefundRequest).
		GET("", h.Refund.ListRefunds).
		GET("/pending", h.Refund.GetPendingRefunds).
		GET("/statistics", h.Refund.GetRefundStatistics).
		GET("/:id", h.Refund.GetRefundByID).
		DELETE("/:id", h.Refund.CancelRefundRequest).
		POST("/:id/approve", h.Refund.ApproveRefund).
		POST("/:id/reject", h.Refund.RejectRefund).
		POST("/:id/process", h.Refund.ProcessRefund)

	billing.Group("/students").
		GET("/:studentId/invoices", h.Invoice.ListStudentInvoices).
		GET("/:studentId/refunds", h.Refund.GetStudentRefunds)

	return billing
}
