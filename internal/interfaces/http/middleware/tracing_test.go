package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/logger"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func tracedEngine(recorder *tracetest.SpanRecorder) *gin.Engine {
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	engine := gin.New()
	engine.Use(logger.GinMiddleware(zap.NewNop()))
	engine.Use(Tracing("school-billing", provider))
	engine.Use(Authenticate(AuthConfig{AllowHeaderIdentity: true}))
	engine.Use(SpanAttributes())
	engine.GET("/refunds/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	engine.POST("/refunds/:id/process", func(c *gin.Context) {
		c.Set(ErrorCodeKey, "INVALID_REFUND_STATE")
		c.Status(http.StatusUnprocessableEntity)
	})
	return engine
}

func spanAttrs(span sdktrace.ReadOnlySpan) map[attribute.Key]attribute.Value {
	out := make(map[attribute.Key]attribute.Value)
	for _, kv := range span.Attributes() {
		out[kv.Key] = kv.Value
	}
	return out
}

func TestTracing_TagsCallerAndRequest(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tenantID, userID := uuid.New(), uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/refunds/"+uuid.NewString(), nil)
	req.Header.Set(TenantIDHeader, tenantID.String())
	req.Header.Set(UserIDHeader, userID.String())
	req.Header.Set(logger.RequestIDHeader, "req-42")
	w := httptest.NewRecorder()
	tracedEngine(recorder).ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	spans := recorder.Ended()
	require.Len(t, spans, 1)

	attrs := spanAttrs(spans[0])
	assert.Equal(t, "req-42", attrs["request_id"].AsString())
	assert.Equal(t, tenantID.String(), attrs["tenant_id"].AsString())
	assert.Equal(t, userID.String(), attrs["user_id"].AsString())
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestTracing_MarksRejectedRequests(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()

	req := httptest.NewRequest(http.MethodPost, "/refunds/"+uuid.NewString()+"/process", nil)
	req.Header.Set(TenantIDHeader, uuid.NewString())
	req.Header.Set(UserIDHeader, uuid.NewString())
	w := httptest.NewRecorder()
	tracedEngine(recorder).ServeHTTP(w, req)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "INVALID_REFUND_STATE", spanAttrs(spans[0])["error.code"].AsString())
}
