package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/finance"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/domain/shared"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/auth"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/logger"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/interfaces/http/dto"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
	middleware.SetupValidator()
}

// serveWith runs fn behind the request id middleware and returns the response
func serveWith(t *testing.T, fn gin.HandlerFunc) (*httptest.ResponseRecorder, dto.Response) {
	t.Helper()
	engine := gin.New()
	engine.Use(logger.GinMiddleware(zap.NewNop()))
	engine.POST("/", fn)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set(logger.RequestIDHeader, "req-123")
	engine.ServeHTTP(w, req)

	var resp dto.Response
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestBaseHandler_SuccessResponses(t *testing.T) {
	h := &BaseHandler{}

	w, resp := serveWith(t, func(c *gin.Context) { h.Success(c, gin.H{"key": "value"}) })
	assert.Equal(t, http.StatusOK, w.Code)
	assert.True(t, resp.Success)

	w, resp = serveWith(t, func(c *gin.Context) { h.Created(c, gin.H{"id": "1"}) })
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, resp.Success)

	w, resp = serveWith(t, func(c *gin.Context) { h.SuccessWithMeta(c, []string{"a", "b"}, 100, 2, 10) })
	assert.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, resp.Meta)
	assert.Equal(t, int64(100), resp.Meta.Total)
	assert.Equal(t, 10, resp.Meta.TotalPages)

	w, _ = serveWith(t, func(c *gin.Context) { h.NoContent(c) })
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Empty(t, w.Body.Bytes())
}

func TestBaseHandler_HandleError(t *testing.T) {
	refundID := uuid.New()
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{name: "not found", err: finance.NewRefundNotFoundError(refundID), wantStatus: http.StatusNotFound, wantCode: finance.CodeRefundNotFound},
		{name: "duplicate request", err: shared.NewDomainError(finance.CodeDuplicateRefundRequest, "dup"), wantStatus: http.StatusConflict, wantCode: finance.CodeDuplicateRefundRequest},
		{name: "inconsistent payment", err: shared.NewDomainError(finance.CodeInconsistentPaymentState, "x"), wantStatus: http.StatusConflict, wantCode: finance.CodeInconsistentPaymentState},
		{name: "invalid refund state", err: shared.NewDomainError(finance.CodeInvalidRefundState, "x"), wantStatus: http.StatusUnprocessableEntity, wantCode: finance.CodeInvalidRefundState},
		{name: "ledger invariant", err: shared.NewDomainError(finance.CodeInvalidLedgerState, "x"), wantStatus: http.StatusUnprocessableEntity, wantCode: finance.CodeInvalidLedgerState},
		{name: "invalid amount", err: finance.ErrInvalidAmount, wantStatus: http.StatusBadRequest, wantCode: finance.CodeInvalidAmount},
		{name: "forbidden", err: shared.ErrForbidden, wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN"},
		{name: "wrapped domain error", err: fmt.Errorf("settle: %w", shared.ErrConcurrencyConflict), wantStatus: http.StatusConflict, wantCode: "CONCURRENCY_CONFLICT"},
		{name: "unknown error", err: errors.New("connection reset by peer"), wantStatus: http.StatusInternalServerError, wantCode: dto.ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := &BaseHandler{}
			w, resp := serveWith(t, func(c *gin.Context) { h.HandleError(c, tt.err) })

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.wantCode, resp.Error.Code)
			assert.Equal(t, "req-123", resp.Error.RequestID)
		})
	}
}

func TestBaseHandler_HandleErrorKeepsDetails(t *testing.T) {
	h := &BaseHandler{}
	err := shared.NewDomainError(finance.CodeInvalidRefundState, "Refund is not approved").
		WithDetail("current_status", "PENDING")

	w, resp := serveWith(t, func(c *gin.Context) { h.HandleError(c, err) })

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "PENDING", resp.Error.Details["current_status"])
}

func TestBaseHandler_HandleErrorHidesInternalMessage(t *testing.T) {
	h := &BaseHandler{}
	_, resp := serveWith(t, func(c *gin.Context) { h.HandleError(c, errors.New("pq: password authentication failed")) })
	assert.NotContains(t, resp.Error.Message, "password")
}

func TestBaseHandler_BindError(t *testing.T) {
	type body struct {
		Reason string `json:"reason" binding:"required"`
	}
	h := &BaseHandler{}

	w, resp := serveWith(t, func(c *gin.Context) {
		var b body
		h.BindError(c, c.ShouldBindJSON(&b))
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	// an empty body is an EOF decode error, not a field error
	assert.Equal(t, dto.ErrCodeBadRequest, resp.Error.Code)

	err := binding(t, `{}`, &body{})
	w, resp = serveWith(t, func(c *gin.Context) { h.BindError(c, err) })
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Fields, 1)
	assert.Equal(t, "reason", resp.Error.Fields[0].Field)
}

// binding runs gin's JSON binding on raw and returns its error
func binding(t *testing.T, raw string, target any) error {
	t.Helper()
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(raw))
	return c.ShouldBindJSON(target)
}

func TestRequireIdentity(t *testing.T) {
	h := &BaseHandler{}

	w, resp := serveWith(t, func(c *gin.Context) {
		if _, _, ok := h.requireIdentity(c); ok {
			c.Status(http.StatusOK)
		}
	})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, dto.ErrCodeUnauthorized, resp.Error.Code)

	tenantID, userID := uuid.New(), uuid.New()
	w, _ = serveWith(t, func(c *gin.Context) {
		c.Set(middleware.IdentityKey, auth.Identity{TenantID: tenantID, UserID: userID})
		gotTenant, gotUser, ok := h.requireIdentity(c)
		require.True(t, ok)
		assert.Equal(t, tenantID, gotTenant)
		assert.Equal(t, userID, gotUser)
		c.Status(http.StatusOK)
	})
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestPathID(t *testing.T) {
	h := &BaseHandler{}
	engine := gin.New()
	engine.GET("/refunds/:id", func(c *gin.Context) {
		if id, ok := h.pathID(c, "id", "refund"); ok {
			c.String(http.StatusOK, id.String())
		}
	})

	id := uuid.New()
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/refunds/"+id.String(), nil))
	assert.Equal(t, id.String(), w.Body.String())

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/refunds/not-a-uuid", nil))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
