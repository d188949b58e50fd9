package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/vidkid7/SchoolManagementSystem-sub013/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const unmatchedRoute = "unmatched"

type requestInstruments struct {
	served   *telemetry.Counter
	latency  *telemetry.Histogram
	inFlight metric.Int64UpDownCounter
}

// HTTPMetrics counts and times API requests. Requests are keyed by route
// pattern, never by raw path, and counts also carry the tenant and ledger
// error code when the handler set one.
func HTTPMetrics(meter metric.Meter) (gin.HandlerFunc, error) {
	var (
		ri  requestInstruments
		err error
	)
	if ri.served, err = telemetry.NewCounter(meter,
		"billing_http_requests_total", "Billing API requests served", "{request}"); err != nil {
		return nil, err
	}
	if ri.latency, err = telemetry.NewHistogram(meter, telemetry.HistogramOpts{
		Name:        "billing_http_request_duration_seconds",
		Description: "Billing API request latency",
		Unit:        "s",
		Boundaries:  telemetry.HTTPDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if ri.inFlight, err = meter.Int64UpDownCounter("billing_http_requests_in_flight",
		metric.WithDescription("Billing API requests being served"),
		metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	return ri.observe, nil
}

func (ri requestInstruments) observe(c *gin.Context) {
	ctx := c.Request.Context()
	began := time.Now()
	ri.inFlight.Add(ctx, 1)
	defer ri.inFlight.Add(ctx, -1)

	c.Next()

	route := c.FullPath()
	if route == "" {
		route = unmatchedRoute
	}
	timing := []attribute.KeyValue{
		telemetry.AttrHTTPMethod.String(c.Request.Method),
		telemetry.AttrHTTPRoute.String(route),
	}
	ri.latency.RecordDuration(ctx, time.Since(began), timing...)

	counted := append(timing, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))
	if identity, ok := GetIdentity(c); ok {
		counted = append(counted, telemetry.AttrTenantID.String(identity.TenantID.String()))
	}
	if code := c.GetString(ErrorCodeKey); code != "" {
		counted = append(counted, telemetry.AttrErrorCode.String(code))
	}
	ri.served.Inc(ctx, counted...)
}
