package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthHandler(t *testing.T) {
	ok := func(context.Context) error { return nil }
	down := func(context.Context) error { return errors.New("dial tcp: connection refused") }

	tests := []struct {
		name       string
		checks     map[string]HealthCheck
		wantStatus int
		wantDeps   map[string]string
	}{
		{
			name:       "all healthy",
			checks:     map[string]HealthCheck{"database": ok, "redis": ok},
			wantStatus: http.StatusOK,
			wantDeps:   map[string]string{"database": "ok", "redis": "ok"},
		},
		{
			name:       "database down",
			checks:     map[string]HealthCheck{"database": down, "redis": ok},
			wantStatus: http.StatusServiceUnavailable,
			wantDeps:   map[string]string{"database": "error", "redis": "ok"},
		},
		{
			name:       "no dependencies",
			wantStatus: http.StatusOK,
			wantDeps:   map[string]string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHealthHandler("1.2.3", tt.checks)
			engine := gin.New()
			engine.GET("/health", h.Health)

			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

			require.Equal(t, tt.wantStatus, w.Code)
			var resp HealthResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, "1.2.3", resp.Version)
			assert.Equal(t, tt.wantDeps, resp.Dependencies)
			if tt.wantStatus == http.StatusOK {
				assert.Equal(t, "healthy", resp.Status)
			} else {
				assert.Equal(t, "unhealthy", resp.Status)
			}
		})
	}
}

func TestHealthHandler_ProbeSeesDeadline(t *testing.T) {
	var hasDeadline bool
	h := NewHealthHandler("dev", map[string]HealthCheck{
		"database": func(ctx context.Context) error {
			_, hasDeadline = ctx.Deadline()
			return nil
		},
	})
	engine := gin.New()
	engine.GET("/health", h.Health)
	engine.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.True(t, hasDeadline)
}
