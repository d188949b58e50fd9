package middleware

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/telemetry"
)

// ProfileLabels attaches the matched route and tenant as pprof labels for
// the duration of the request. Place it after Authenticate.
func ProfileLabels() gin.HandlerFunc {
	return func(c *gin.Context) {
		var tenant string
		if identity, ok := GetIdentity(c); ok {
			tenant = identity.TenantID.String()
		}
		operation := c.FullPath()
		if operation != "" {
			operation = c.Request.Method + " " + operation
		}

		telemetry.ProfileLedgerOperation(c.Request.Context(), operation, tenant, func(ctx context.Context) {
			c.Request = c.Request.WithContext(ctx)
			c.Next()
		})
	}
}
