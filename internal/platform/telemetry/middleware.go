package telemetry

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/bibresolve/internal/platform/logging"
)

const instrumentationName = "github.com/jsamuelsen/bibresolve/internal/platform/telemetry"

// HeaderTraceID echoes the trace id of every traced response.
const HeaderTraceID = "X-Trace-ID"

// serverMetrics are the HTTP server instruments.
type serverMetrics struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
	inFlight metric.Int64UpDownCounter
}

// loadMetrics creates the instruments once per process, against the meter
// provider installed at that time.
var loadMetrics = sync.OnceValues(func() (*serverMetrics, error) {
	meter := otel.Meter(instrumentationName)

	duration, err := meter.Float64Histogram("http.server.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	requests, err := meter.Int64Counter("http.server.request.total",
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	inFlight, err := meter.Int64UpDownCounter("http.server.active_requests",
		metric.WithDescription("Number of in-flight HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	return &serverMetrics{duration: duration, requests: requests, inFlight: inFlight}, nil
})

// route is the matched route template, or "unmatched" for 404s so unknown
// paths do not explode the label set.
func route(c *gin.Context) string {
	if r := c.FullPath(); r != "" {
		return r
	}

	return "unmatched"
}

// Middleware records server metrics, copies the trace id into the context
// logger and echoes it as X-Trace-ID. Mount it after TracingMiddleware.
func Middleware() gin.HandlerFunc {
	m, err := loadMetrics()
	if err != nil {
		otel.Handle(err)
	}

	return func(c *gin.Context) {
		start := time.Now()
		ctx := c.Request.Context()

		if sc := trace.SpanFromContext(ctx).SpanContext(); sc.HasTraceID() {
			traceID := sc.TraceID().String()
			c.Header(HeaderTraceID, traceID)
			c.Request = c.Request.WithContext(logging.WithTraceID(ctx, traceID))
		}

		if m == nil {
			c.Next()
			return
		}

		base := metric.WithAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route(c)),
		)

		m.inFlight.Add(ctx, 1, base)
		defer m.inFlight.Add(ctx, -1, base)

		c.Next()

		done := metric.WithAttributes(
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route(c)),
			attribute.Int("http.status_code", c.Writer.Status()),
		)

		m.duration.Record(ctx, time.Since(start).Seconds(), done)
		m.requests.Add(ctx, 1, done)
	}
}

// TracingMiddleware starts a server span per request.
func TracingMiddleware(serviceName string) gin.HandlerFunc {
	return otelgin.Middleware(serviceName)
}
