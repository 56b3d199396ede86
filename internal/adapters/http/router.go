package http

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/bibresolve/internal/adapters/http/handlers"
	"github.com/jsamuelsen/bibresolve/internal/adapters/http/middleware"
	"github.com/jsamuelsen/bibresolve/internal/platform/telemetry"
)

// DefaultRequestTimeout bounds every /api/v1 request. Source calls inherit
// the deadline.
const DefaultRequestTimeout = 30 * time.Second

// RouterConfig contains what SetupRouter mounts.
type RouterConfig struct {
	// Logger becomes the context logger of every request.
	Logger *slog.Logger

	// ServiceName names the server spans.
	ServiceName string

	HealthHandler  *handlers.HealthHandler
	ResolveHandler *handlers.ResolveHandler

	// Timeout is the /api/v1 deadline. Zero disables it.
	Timeout time.Duration
}

// SetupRouter installs the middleware chain and the routes on engine.
//
// Middleware order: recovery (which also seeds the context logger), request
// ID, correlation ID, tracing, metrics, logging. The timeout applies to
// /api/v1 only so probes are never cut short.
func SetupRouter(engine *gin.Engine, cfg RouterConfig) {
	engine.Use(
		middleware.Recovery(cfg.Logger),
		middleware.RequestID(),
		middleware.CorrelationID(),
		telemetry.TracingMiddleware(cfg.ServiceName),
		telemetry.Middleware(),
		middleware.Logging(),
	)

	if cfg.HealthHandler != nil {
		cfg.HealthHandler.RegisterHealthRoutesOnEngine(engine)
	}

	api := engine.Group("/api/v1")
	if cfg.Timeout > 0 {
		api.Use(middleware.Timeout(cfg.Timeout))
	}

	if cfg.ResolveHandler != nil {
		cfg.ResolveHandler.RegisterRoutes(api)
	}
}
