package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/interfaces/http/dto"
)

type paymentBody struct {
	Amount   decimal.Decimal `json:"amount" binding:"decimal_gt0"`
	Discount decimal.Decimal `json:"discount" binding:"decimal_gte0"`
	Method   string          `json:"method" binding:"required,oneof=CASH CHEQUE"`
}

func bindEngine() *gin.Engine {
	SetupValidator()

	engine := gin.New()
	engine.POST("/bind", func(c *gin.Context) {
		var body paymentBody
		if err := c.ShouldBindJSON(&body); err != nil {
			c.JSON(http.StatusBadRequest, dto.ValidationFailure("invalid", "", ValidationDetails(err)))
			return
		}
		c.JSON(http.StatusOK, gin.H{"amount": body.Amount.String()})
	})
	return engine
}

func TestDecimalValidation(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{name: "valid", body: `{"amount":"1500.50","discount":"0","method":"CASH"}`, wantStatus: http.StatusOK},
		{name: "numeric amount", body: `{"amount":25,"method":"CHEQUE"}`, wantStatus: http.StatusOK},
		{name: "zero amount", body: `{"amount":"0","method":"CASH"}`, wantStatus: http.StatusBadRequest, wantField: "amount"},
		{name: "missing amount", body: `{"method":"CASH"}`, wantStatus: http.StatusBadRequest, wantField: "amount"},
		{name: "negative discount", body: `{"amount":"10","discount":"-1","method":"CASH"}`, wantStatus: http.StatusBadRequest, wantField: "discount"},
		{name: "bad method", body: `{"amount":"10","method":"BITCOIN"}`, wantStatus: http.StatusBadRequest, wantField: "method"},
	}

	engine := bindEngine()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bind", strings.NewReader(tt.body)))

			require.Equal(t, tt.wantStatus, w.Code, w.Body.String())
			if tt.wantField != "" {
				fields := decodeError(t, w).Fields
				require.Len(t, fields, 1)
				assert.Equal(t, tt.wantField, fields[0].Field)
			}
		})
	}
}

func TestValidationDetails_MalformedJSON(t *testing.T) {
	w := httptest.NewRecorder()
	bindEngine().ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/bind", strings.NewReader(`{"amount":`)))

	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, decodeError(t, w).Fields)
	assert.Nil(t, ValidationDetails(errors.New("unexpected EOF")))
}
