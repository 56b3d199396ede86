//go:build integration

package integration

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	bibhttp "github.com/jsamuelsen/bibresolve/internal/adapters/http"
	"github.com/jsamuelsen/bibresolve/internal/adapters/http/handlers"
	"github.com/jsamuelsen/bibresolve/internal/bootstrap"
	"github.com/jsamuelsen/bibresolve/internal/platform/config"
	"github.com/jsamuelsen/bibresolve/internal/platform/logging"
	"github.com/jsamuelsen/bibresolve/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// stackConfig points every source at the fake upstream.
func stackConfig(t testing.TB, upstreamURL string) *config.Config {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.App.Environment = "test"
	cfg.Client.Timeout = 5 * time.Second
	cfg.Client.Retry.MaxAttempts = 1
	cfg.Client.RateLimit.RequestsPerSecond = 0
	cfg.Client.CircuitBreaker.MaxFailures = 100

	for _, svc := range []*config.ServiceEndpointConfig{
		&cfg.Services.MetaCatalog,
		&cfg.Services.BibFormat,
		&cfg.Services.Citoid,
		&cfg.Services.WorldCat,
		&cfg.Services.DOI,
	} {
		svc.BaseURL = upstreamURL
	}

	require.NoError(t, cfg.Validate())

	return cfg
}

// startStack serves the full API over the fake upstream and returns its URL.
func startStack(t testing.TB, upstreamURL string) string {
	t.Helper()

	cfg := stackConfig(t, upstreamURL)
	logger := logging.NewWithWriter(&logging.Config{Level: "error", Format: "json", Service: "bibresolve"}, io.Discard)

	metrics := prometheus.NewRegistry()

	engine, err := bootstrap.Build(cfg, bootstrap.Options{Logger: logger, Registerer: metrics})
	require.NoError(t, err)

	registry := ports.NewHealthRegistry()
	require.NoError(t, engine.RegisterHealth(registry))

	server := bibhttp.New(&cfg.Server, logger)
	bibhttp.SetupRouter(server.Engine(), bibhttp.RouterConfig{
		Logger:        logger,
		ServiceName:   cfg.App.Name,
		HealthHandler: handlers.NewHealthHandler(registry, handlers.NewBuildInfo("test", "none", "now"), handlers.WithGatherer(metrics)),
		ResolveHandler: handlers.NewResolveHandler(engine, handlers.ResolveHandlerConfig{
			MaxBatchSize: cfg.Resolver.MaxBatchSize,
		}),
		Timeout: bibhttp.DefaultRequestTimeout,
	})

	ts := httptest.NewServer(server.Engine())
	t.Cleanup(ts.Close)

	return ts.URL
}
