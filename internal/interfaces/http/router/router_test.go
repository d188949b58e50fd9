package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/interfaces/http/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(engine *gin.Engine, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func ok(status int) gin.HandlerFunc {
	return func(c *gin.Context) { c.Status(status) }
}

func TestNewRouter_APIPrefix(t *testing.T) {
	assert.Equal(t, "/api/v1", NewRouter(gin.New(), "").APIPrefix())
	assert.Equal(t, "/api/v2", NewRouter(gin.New(), "v2").APIPrefix())
}

func TestRouter_Setup(t *testing.T) {
	engine := gin.New()
	NewRouter(engine, "v1").
		Register(NewDomainGroup("/test").GET("/ping", func(c *gin.Context) {
			c.String(http.StatusOK, "pong")
		})).
		Setup()

	w := serve(engine, http.MethodGet, "/api/v1/test/ping")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
}

func TestRouter_UseIsScopedToAPI(t *testing.T) {
	engine := gin.New()
	engine.GET("/health", ok(http.StatusOK))

	NewRouter(engine, "").
		Use(func(c *gin.Context) { c.AbortWithStatus(http.StatusUnauthorized) }).
		Register(NewDomainGroup("/test").GET("/x", ok(http.StatusOK))).
		Setup()

	assert.Equal(t, http.StatusUnauthorized, serve(engine, http.MethodGet, "/api/v1/test/x").Code)
	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/health").Code)
}

func TestDomainGroup_Methods(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("/test").
		GET("/items", ok(http.StatusOK)).
		POST("/items", ok(http.StatusCreated)).
		DELETE("/items/:id", ok(http.StatusNoContent)).
		Handle(http.MethodPut, "/items/:id", ok(http.StatusAccepted))
	g.RegisterRoutes(engine.Group("/api/v1"))

	assert.Equal(t, http.StatusOK, serve(engine, http.MethodGet, "/api/v1/test/items").Code)
	assert.Equal(t, http.StatusCreated, serve(engine, http.MethodPost, "/api/v1/test/items").Code)
	assert.Equal(t, http.StatusNoContent, serve(engine, http.MethodDelete, "/api/v1/test/items/1").Code)
	assert.Equal(t, http.StatusAccepted, serve(engine, http.MethodPut, "/api/v1/test/items/1").Code)
}

func TestDomainGroup_MiddlewareReachesSubgroups(t *testing.T) {
	engine := gin.New()
	g := NewDomainGroup("/test").Use(func(c *gin.Context) {
		c.Header("X-Tenant-Checked", "yes")
		c.Next()
	})
	g.Group("/nested").GET("/items", ok(http.StatusOK))
	g.RegisterRoutes(engine.Group("/api/v1"))

	w := serve(engine, http.MethodGet, "/api/v1/test/nested/items")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "yes", w.Header().Get("X-Tenant-Checked"))
}

func TestDomainGroup_Routes(t *testing.T) {
	g := NewDomainGroup("/billing").GET("/ping", ok(http.StatusOK))
	g.Group("/invoices").GET("", ok(http.StatusOK)).POST("/:id/cancel", ok(http.StatusOK))
	g.Group("/refunds").GET("", ok(http.StatusOK))

	assert.Equal(t, []string{
		"GET /billing/ping",
		"GET /billing/invoices",
		"POST /billing/invoices/:id/cancel",
		"GET /billing/refunds",
	}, g.Routes())
}

func TestNewBillingGroup_RouteTable(t *testing.T) {
	engine := gin.New()
	billing := NewBillingGroup(BillingHandlers{
		Invoice: handler.NewInvoiceHandler(nil),
		Payment: handler.NewPaymentHandler(nil),
		Refund:  handler.NewRefundHandler(nil),
	})
	NewRouter(engine, "v1").Register(billing).Setup()

	registered := make(map[string]bool)
	for _, route := range engine.Routes() {
		registered[route.Method+" "+route.Path] = true
	}

	expected := []string{
		"POST /api/v1/billing/invoices",
		"GET /api/v1/billing/invoices",
		"GET /api/v1/billing/invoices/:id",
		"DELETE /api/v1/billing/invoices/:id",
		"POST /api/v1/billing/invoices/:id/cancel",
		"POST /api/v1/billing/invoices/:id/restore",
		"POST /api/v1/billing/invoices/:id/discount/approve",
		"POST /api/v1/billing/invoices/:id/discount/reject",
		"POST /api/v1/billing/invoices/:id/payments",
		"POST /api/v1/billing/invoices/:id/payments/failed",
		"GET /api/v1/billing/invoices/:id/payments",
		"GET /api/v1/billing/invoices/:id/refunds",
		"GET /api/v1/billing/payments/:id",
		"POST /api/v1/billing/refunds",
		"GET /api/v1/billing/refunds",
		"GET /api/v1/billing/refunds/pending",
		"GET /api/v1/billing/refunds/statistics",
		"GET /api/v1/billing/refunds/:id",
		"DELETE /api/v1/billing/refunds/:id",
		"POST /api/v1/billing/refunds/:id/approve",
		"POST /api/v1/billing/refunds/:id/reject",
		"POST /api/v1/billing/refunds/:id/process",
		"GET /api/v1/billing/students/:studentId/invoices",
		"GET /api/v1/billing/students/:studentId/refunds",
	}
	require.Len(t, registered, len(expected))
	for _, route := range expected {
		assert.True(t, registered[route], "missing route %s", route)
	}
	assert.Len(t, billing.Routes(), len(expected))
	assert.Contains(t, billing.Routes(), "POST /billing/refunds/:id/process")
}
