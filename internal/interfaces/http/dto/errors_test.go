package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeValidation, http.StatusBadRequest},
		{"INVALID_AMOUNT", http.StatusBadRequest},
		{"INVALID_REASON", http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{"INVOICE_NOT_FOUND", http.StatusNotFound},
		{"PAYMENT_NOT_FOUND", http.StatusNotFound},
		{"REFUND_NOT_FOUND", http.StatusNotFound},
		{"DUPLICATE_REFUND_REQUEST", http.StatusConflict},
		{"INCONSISTENT_PAYMENT_STATE", http.StatusConflict},
		{"ALREADY_EXISTS", http.StatusConflict},
		{"INVALID_REFUND_STATE", http.StatusUnprocessableEntity},
		{"PAYMENT_NOT_REFUNDABLE", http.StatusUnprocessableEntity},
		{"INVOICE_CANCELLED", http.StatusUnprocessableEntity},
		{"INVALID_LEDGER_STATE", http.StatusUnprocessableEntity},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		{"SOMETHING_NEW", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestPaged(t *testing.T) {
	resp := Paged([]string{"a"}, 41, 2, 20)
	require.NotNil(t, resp.Meta)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.Meta.TotalPages)
	assert.Equal(t, 2, resp.Meta.Page)

	resp = Paged(nil, 0, 1, 0)
	assert.Equal(t, 20, resp.Meta.PageSize)
	assert.Equal(t, 0, resp.Meta.TotalPages)
}

func TestErrorResponseJSON(t *testing.T) {
	resp := Failure("DUPLICATE_REFUND_REQUEST", "An active refund request already exists", "req-1")
	resp.Error.Details = map[string]any{"existing_status": "PENDING"}

	body, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, false, decoded["success"])
	assert.NotContains(t, decoded, "data")

	errObj := decoded["error"].(map[string]any)
	assert.Equal(t, "DUPLICATE_REFUND_REQUEST", errObj["code"])
	assert.Equal(t, "req-1", errObj["request_id"])
	assert.Equal(t, "PENDING", errObj["details"].(map[string]any)["existing_status"])
	assert.NotContains(t, errObj, "fields")
}

func TestValidationFailure(t *testing.T) {
	resp := ValidationFailure("Request validation failed", "req-2", []ValidationDetail{
		{Field: "amount", Message: "Must be greater than zero"},
	})

	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "req-2", resp.Error.RequestID)
	require.Len(t, resp.Error.Fields, 1)
	assert.Equal(t, "amount", resp.Error.Fields[0].Field)
}
