package handler

import (
	"github.com/gin-gonic/gin"
	financeapp "github.com/vidkid7/SchoolManagementSystem-sub013/internal/application/finance"
)

// PaymentHandler serves payment confirmation and lookup endpoints
type PaymentHandler struct {
	BaseHandler
	paymentService *financeapp.PaymentService
}

// NewPaymentHandler creates a new PaymentHandler
func NewPaymentHandler(paymentService *financeapp.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

// RecordFailedPaymentRequest reports a gateway attempt that did not settle
// @Description Request body for recording a failed payment attempt
type RecordFailedPaymentRequest struct {
	financeapp.RecordPaymentRequest
	FailureReason string `json:"failure_reason" binding:"required,min=1,max=500"`
}

// RecordPayment godoc
// @Summary      Record payment
// @Description  Record a confirmed payment against an invoice. Repeating a confirmation
// @Description  with the same method and external reference returns the original payment.
// @Tags         billing-payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body financeapp.RecordPaymentRequest true "Payment confirmation"
// @Success      201 {object} dto.Response{data=financeapp.PaymentResponse}
// @Success      200 {object} dto.Response{data=financeapp.PaymentResponse} "Already recorded"
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/invoices/{id}/payments [post]
func (h *PaymentHandler) RecordPayment(c *gin.Context) {
	tenantID, actorID, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(c, "id", "invoice")
	if !ok {
		return
	}

	var req financeapp.RecordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.InvoiceID = invoiceID
	req.ReceivedBy = &actorID

	payment, err := h.paymentService.RecordPayment(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if payment.Duplicate {
		h.Success(c, payment)
		return
	}
	h.Created(c, payment)
}

// RecordFailedPayment godoc
// @Summary      Record failed payment
// @Description  Record a failed payment attempt. The invoice balance is not touched.
// @Tags         billing-payments
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body RecordFailedPaymentRequest true "Failed attempt"
// @Success      201 {object} dto.Response{data=financeapp.PaymentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/invoices/{id}/payments/failed [post]
func (h *PaymentHandler) RecordFailedPayment(c *gin.Context) {
	tenantID, actorID, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(c, "id", "invoice")
	if !ok {
		return
	}

	var req RecordFailedPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}
	req.InvoiceID = invoiceID
	req.ReceivedBy = &actorID

	payment, err := h.paymentService.RecordFailedPayment(c.Request.Context(), tenantID, req.RecordPaymentRequest, req.FailureReason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, payment)
}

// ListInvoicePayments godoc
// @Summary      List invoice payments
// @Tags         billing-payments
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Response{data=[]financeapp.PaymentResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/invoices/{id}/payments [get]
func (h *PaymentHandler) ListInvoicePayments(c *gin.Context) {
	tenantID, _, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(c, "id", "invoice")
	if !ok {
		return
	}

	payments, err := h.paymentService.ListPaymentsByInvoice(c.Request.Context(), tenantID, invoiceID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payments)
}

// GetPaymentByID godoc
// @Summary      Get payment by ID
// @Tags         billing-payments
// @Produce      json
// @Param        id path string true "Payment ID" format(uuid)
// @Success      200 {object} dto.Response{data=financeapp.PaymentResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/payments/{id} [get]
func (h *PaymentHandler) GetPaymentByID(c *gin.Context) {
	tenantID, _, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	paymentID, ok := h.pathID(c, "id", "payment")
	if !ok {
		return
	}

	payment, err := h.paymentService.GetPaymentByID(c.Request.Context(), tenantID, paymentID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, payment)
}
