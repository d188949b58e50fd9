package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	financeapp "github.com/vidkid7/SchoolManagementSystem-sub013/internal/application/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
)

// RefundHandler serves the refund workflow endpoints
type RefundHandler struct {
	BaseHandler
	refundService *financeapp.RefundService
}

// NewRefundHandler creates a new RefundHandler
func NewRefundHandler(refundService *financeapp.RefundService) *RefundHandler {
	return &RefundHandler{refundService: refundService}
}

type pageQuery struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100"`
}

type dateRangeQuery struct {
	From *time.Time `form:"from" time_format:"2006-01-02"`
	To   *time.Time `form:"to" time_format:"2006-01-02"`
}

// CreateRefundRequest godoc
// @Summary      Request refund
// @Description  Open a refund request for a whole completed payment
// @Tags         billing-refunds
// @Accept       json
// @Produce      json
// @Param        request body financeapp.CreateRefundRequest true "Refund request"
// @Success      201 {object} dto.Response{data=financeapp.RefundResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/refunds [post]
func (h *RefundHandler) CreateRefundRequest(c *gin.Context) {
	tenantID, actorID, ok := h.requireIdentity(c)
	if !ok {
		return
	}

	var req financeapp.CreateRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	refund, err := h.refundService.CreateRefundRequest(c.Request.Context(), tenantID, req, actorID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, refund)
}

// ApproveRefund godoc
// @Summary      Approve refund
// @Tags         billing-refunds
// @Accept       json
// @Produce      json
// @Param        id path string true "Refund ID" format(uuid)
// @Param        request body financeapp.ApproveRefundRequest false "Reviewer remarks"
// @Success      200 {object} dto.Response{data=financeapp.RefundResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/refunds/{id}/approve [post]
func (h *RefundHandler) ApproveRefund(c *gin.Context) {
	tenantID, actorID, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	refundID, ok := h.pathID(c, "id", "refund")
	if !ok {
		return
	}

	var req financeapp.ApproveRefundRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			h.BindError(c, err)
			return
		}
	}

	refund, err := h.refundService.ApproveRefund(c.Request.Context(), tenantID, refundID, actorID, req.Remarks)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, refund)
}

// RejectRefund godoc
// @Summary      Reject refund
// @Tags         billing-refunds
// @Accept       json
// @Produce      json
// @Param        id path string true "Refund ID" format(uuid)
// @Param        request body financeapp.RejectRefundRequest true "Rejection reason"
// @Success      200 {object} dto.Response{data=financeapp.RefundResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/refunds/{id}/reject [post]
func (h *RefundHandler) RejectRefund(c *gin.Context) {
	tenantID, actorID, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	refundID, ok := h.pathID(c, "id", "refund")
	if !ok {
		return
	}

	var req financeapp.RejectRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindError(c, err)
		return
	}

	refund, err := h.refundService.RejectRefund(c.Request.Context(), tenantID, refundID, actorID, req.Reason)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, refund)
}

// ProcessRefund godoc
// @Summary      Settle refund
// @Description  Settle an approved refund: the payment is marked refunded and the
// @Description  invoice balance is restored in one transaction
// @Tags         billing-refunds
// @Produce      json
// @Param        id path string true "Refund ID" format(uuid)
// @Success      200 {object} dto.Response{data=financeapp.RefundResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/refunds/{id}/process [post]
func (h *RefundHandler) ProcessRefund(c *gin.Context) {
	tenantID, actorID, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	refundID, ok := h.pathID(c, "id", "refund")
	if !ok {
		return
	}

	refund, err := h.refundService.ProcessRefund(c.Request.Context(), tenantID, refundID, &actorID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, refund)
}

// CancelRefundRequest godoc
// @Summary      Cancel refund request
// @Description  Withdraw a pending refund request. Only the requester may cancel.
// @Tags         billing-refunds
// @Param        id path string true "Refund ID" format(uuid)
// @Success      204
// @Failure      403 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      422 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/refunds/{id} [delete]
func (h *RefundHandler) CancelRefundRequest(c *gin.Context) {
	tenantID, actorID, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	refundID, ok := h.pathID(c, "id", "refund")
	if !ok {
		return
	}

	if err := h.refundService.CancelRefundRequest(c.Request.Context(), tenantID, refundID, actorID); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}

// GetRefundByID godoc
// @Summary      Get refund by ID
// @Tags         billing-refunds
// @Produce      json
// @Param        id path string true "Refund ID" format(uuid)
// @Success      200 {object} dto.Response{data=financeapp.RefundResponse}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/refunds/{id} [get]
func (h *RefundHandler) GetRefundByID(c *gin.Context) {
	tenantID, _, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	refundID, ok := h.pathID(c, "id", "refund")
	if !ok {
		return
	}

	refund, err := h.refundService.GetRefundByID(c.Request.Context(), tenantID, refundID)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, refund)
}

// ListRefunds godoc
// @Summary      List refunds
// @Tags         billing-refunds
// @Produce      json
// @Param        status query string false "Status" Enums(PENDING, APPROVED, REJECTED, COMPLETED)
// @Param        student_id query string false "Student ID" format(uuid)
// @Param        invoice_id query string false "Invoice ID" format(uuid)
// @Param        payment_id query string false "Payment ID" format(uuid)
// @Param        from query string false "Created on or after" format(date)
// @Param        to query string false "Created on or before" format(date)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]financeapp.RefundResponse,meta=dto.Meta}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/refunds [get]
func (h *RefundHandler) ListRefunds(c *gin.Context) {
	tenantID, _, ok := h.requireIdentity(c)
	if !ok {
		return
	}

	var filter financeapp.RefundListFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.refundService.ListRefunds(c.Request.Context(), tenantID, filter)
	h.respondPage(c, result, err)
}

// GetPendingRefunds godoc
// @Summary      List pending refunds
// @Description  Refunds awaiting review, oldest first
// @Tags         billing-refunds
// @Produce      json
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]financeapp.RefundResponse,meta=dto.Meta}
// @Security     BearerAuth
// @Router       /billing/refunds/pending [get]
func (h *RefundHandler) GetPendingRefunds(c *gin.Context) {
	tenantID, _, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.refundService.GetPendingRefunds(c.Request.Context(), tenantID, q.Page, q.PageSize)
	h.respondPage(c, result, err)
}

// GetStudentRefunds godoc
// @Summary      List a student's refunds
// @Tags         billing-refunds
// @Produce      json
// @Param        studentId path string true "Student ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]financeapp.RefundResponse,meta=dto.Meta}
// @Security     BearerAuth
// @Router       /billing/students/{studentId}/refunds [get]
func (h *RefundHandler) GetStudentRefunds(c *gin.Context) {
	tenantID, _, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	studentID, ok := h.pathID(c, "studentId", "student")
	if !ok {
		return
	}
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.refundService.GetRefundsByStudentID(c.Request.Context(), tenantID, studentID, q.Page, q.PageSize)
	h.respondPage(c, result, err)
}

// GetInvoiceRefunds godoc
// @Summary      List an invoice's refunds
// @Tags         billing-refunds
// @Produce      json
// @Param        id path string true "Invoice ID" format(uuid)
// @Param        page query int false "Page number" default(1)
// @Param        page_size query int false "Page size" default(20) maximum(100)
// @Success      200 {object} dto.Response{data=[]financeapp.RefundResponse,meta=dto.Meta}
// @Security     BearerAuth
// @Router       /billing/invoices/{id}/refunds [get]
func (h *RefundHandler) GetInvoiceRefunds(c *gin.Context) {
	tenantID, _, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	invoiceID, ok := h.pathID(c, "id", "invoice")
	if !ok {
		return
	}
	var q pageQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	result, err := h.refundService.GetRefundsByInvoiceID(c.Request.Context(), tenantID, invoiceID, q.Page, q.PageSize)
	h.respondPage(c, result, err)
}

// GetRefundStatistics godoc
// @Summary      Refund statistics
// @Description  Counts and amounts per refund status for refunds created in the range
// @Tags         billing-refunds
// @Produce      json
// @Param        from query string false "Start date" format(date)
// @Param        to query string false "End date, inclusive" format(date)
// @Success      200 {object} dto.Response{data=financeapp.RefundStatisticsResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /billing/refunds/statistics [get]
func (h *RefundHandler) GetRefundStatistics(c *gin.Context) {
	tenantID, _, ok := h.requireIdentity(c)
	if !ok {
		return
	}
	var q dateRangeQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BindError(c, err)
		return
	}

	stats, err := h.refundService.GetRefundStatistics(c.Request.Context(), tenantID, q.From, q.To)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, stats)
}

func (h *RefundHandler) respondPage(c *gin.Context, result *shared.Paginated[financeapp.RefundResponse], err error) {
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Items, result.Total, result.Page, result.PageSize)
}
