package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"
	financeapp "github.com/vidkid7/SchoolManagementSystem-sub013/internal/application/finance"
)

// InvoiceHandler serves the invoice endpoints of the billing API
type InvoiceHandler struct {
	BaseHandler
	invoiceService *financeapp.InvoiceService
}

// NewInvoiceHandler creates a new InvoiceHandler
func NewInvoiceHandler(invoiceService *financeapp.InvoiceService) *InvoiceHandler {
	return &InvoiceHandler{invoiceService: invoiceService}
}

// CancelInvoiceRequest carries the mandatory cancellation reason
// @Description Request body for cancelling an invoice
type CancelInvoiceRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// RejectDiscountRequest carries the mandatory discount rejection reason
// @Description Request body for rejecting an invoice discount
type RejectDiscountRequest struct {
	Reason string `json:"reason" binding:"required,min=1,max=500"`
}

// CreateInvoice godoc
// @Summary      Create invoice
// @Description  Create an invoice from a fee total computed by the fee module
// @Tags         billing-invoices
// @Accept       json
// @Produce      json
// @Param        request body financeapp.CreateInvoiceRequest true "Invoice"
// @Success      201 {object} dto.Response{data=financeapp.InvoiceResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/invoices [post]
func (h *InvoiceHandler) CreateInvoice(c *gin.Context) {
	tenantID, _, ok := h.requireIdentity(c)
	if !ok {
		return
	}

	var req financeapp.CreateInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	invoice, err := h.invoiceService.CreateInvoice(c.Request.Context(), tenantID, req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, invoice)
}

// GetInvoiceByID godoc
// @Summary      Get invoice by ID
// @Tags         billing-invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        include_deleted query boolean false "Return soft deleted invoices too"
// @Success      200 {object} dto.Response{data=financeapp.InvoiceResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/invoices/{id} [get]
func (h *InvoiceHandler) GetInvoiceByID(c *gin.Context) {
	tenantID, _, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(c, "id", "invoice")
	if !ok {
		return
	}
	includeDeleted, _ := strconv.ParseBool(c.Query("include_deleted"))

	invoice, err := h.invoiceService.GetInvoiceByID(c.Request.Context(), tenantID, invoiceID, includeDeleted)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// ListInvoices godoc
// @Summary      List invoices
// @Description  List invoices with optional student, academic year and status filters
// @Tags         billing-invoices
// @Produce      json
// @Param        student_id query string false "Student ID" format(uuid)
// @Param        academic_year_id query string false "Academic year ID" format(uuid)
// @Param        status query string false "Status" Enums(PENDING, PARTIAL, PAID, OVERDUE, CANCELLED)
// @Param        include_deleted query boolean false "Include soft deleted invoices"
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]financeapp.InvoiceResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/invoices [get]
func (h *InvoiceHandler) ListInvoices(c *gin.Context) {
	h.listInvoices(c, nil)
}

// ListStudentInvoices godoc
// @Summary      List a student's invoices
// @Tags         billing-invoices
// @Produce      json
// @Param        studentId path string true "Student ID" format(uuid)
// @Param        status query string false "Status" Enums(PENDING, PARTIAL, PAID, OVERDUE, CANCELLED)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]financeapp.InvoiceResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/students/{studentId}/invoices [get]
func (h *InvoiceHandler) ListStudentInvoices(c *gin.Context) {
	studentID, ok := h.pathID(c, "studentId", "student")
	if !ok {
		return
	}
	h.listInvoices(c, func(f *financeapp.InvoiceListFilter) { f.StudentID = &studentID })
}

func (h *InvoiceHandler) listInvoices(c *gin.Context, scope func(*financeapp.InvoiceListFilter)) {
	tenantID, _, ok := h.requireIdentity(c)
	if !ok {
		return
	}

	var filter financeapp.InvoiceListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}
	if scope != nil {
		scope(&filter)
	}

	result, err := h.invoiceService.ListInvoices(c.Request.Context(), tenantID, filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}

// CancelInvoice godoc
// @Summary      Cancel invoice
// @Description  Cancel an invoice that has not received any payment
// @Tags         billing-invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body CancelInvoiceRequest true "Cancellation reason"
// @Success      200 {object} dto.Response{data=financeapp.InvoiceResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/invoices/{id}/cancel [post]
func (h *InvoiceHandler) CancelInvoice(c *gin.Context) {
	tenantID, actorID, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(c, "id", "invoice")
	if !ok {
		return
	}

	var req CancelInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	invoice, err := h.invoiceService.CancelInvoice(c.Request.Context(), tenantID, invoiceID, actorID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// DeleteInvoice godoc
// @Summary      Delete invoice
// @Description  Soft delete an invoice; it can be restored later
// @Tags         billing-invoices
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      204
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/invoices/{id} [delete]
func (h *InvoiceHandler) DeleteInvoice(c *gin.Context) {
	tenantID, actorID, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(c, "id", "invoice")
	if !ok {
		return
	}

	if err := h.invoiceService.DeleteInvoice(c.Request.Context(), tenantID, invoiceID, actorID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// RestoreInvoice godoc
// @Summary      Restore invoice
// @Tags         billing-invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Response{data=financeapp.InvoiceResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/invoices/{id}/restore [post]
func (h *InvoiceHandler) RestoreInvoice(c *gin.Context) {
	tenantID, actorID, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(c, "id", "invoice")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.RestoreInvoice(c.Request.Context(), tenantID, invoiceID, actorID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// ApproveDiscount godoc
// @Summary      Approve invoice discount
// @Tags         billing-invoices
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Success      200 {object} dto.Response{data=financeapp.InvoiceResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/invoices/{id}/discount/approve [post]
func (h *InvoiceHandler) ApproveDiscount(c *gin.Context) {
	tenantID, reviewerID, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(c, "id", "invoice")
	if !ok {
		return
	}

	invoice, err := h.invoiceService.ApproveDiscount(c.Request.Context(), tenantID, invoiceID, reviewerID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}

// RejectDiscount godoc
// @Summary      Reject invoice discount
// @Description  Reject a pending discount; the invoice total is left unchanged
// @Tags         billing-invoices
// @Accept       json
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        request body RejectDiscountRequest true "Rejection reason"
// @Success      200 {object} dto.Response{data=financeapp.InvoiceResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/invoices/{id}/discount/reject [post]
func (h *InvoiceHandler) RejectDiscount(c *gin.Context) {
	tenantID, reviewerID, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(c, "id", "invoice")
	if !ok {
		return
	}

	var req RejectDiscountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	invoice, err := h.invoiceService.RejectDiscount(c.Request.Context(), tenantID, invoiceID, reviewerID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, invoice)
}
