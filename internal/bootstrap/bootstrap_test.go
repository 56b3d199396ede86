package bootstrap

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/platform/config"
	"github.com/jsamuelsen/bibresolve/internal/ports"
)

// recordingTransport answers every request with 503 and keeps the request
// headers by host.
type recordingTransport struct {
	mu      sync.Mutex
	headers map[string]http.Header
}

func (rt *recordingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	rt.mu.Lock()
	if rt.headers == nil {
		rt.headers = map[string]http.Header{}
	}
	rt.headers[req.URL.Host] = req.Header.Clone()
	rt.mu.Unlock()

	return &http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Header:     http.Header{"Content-Type": []string{"text/plain"}},
		Body:       io.NopCloser(strings.NewReader("down")),
		Request:    req,
	}, nil
}

func (rt *recordingTransport) header(host string) http.Header {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	return rt.headers[host]
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg, err := config.Load("")
	require.NoError(t, err)

	cfg.Client.Retry.MaxAttempts = 1
	cfg.Client.RateLimit.RequestsPerSecond = 0

	return cfg
}

func TestBuild_WiresEveryClient(t *testing.T) {
	e, err := Build(testConfig(t), Options{Transport: &recordingTransport{}})
	require.NoError(t, err)

	names := make([]string, 0, len(e.Clients))
	for _, c := range e.Clients {
		names = append(names, c.Name())
	}

	assert.ElementsMatch(t, []string{"metacatalog", "bibformat", "citoid", "worldcat", "doi", "web"}, names)

	reg := ports.NewHealthRegistry()
	require.NoError(t, e.RegisterHealth(reg))

	result := reg.CheckAll(context.Background())
	assert.Equal(t, ports.HealthStatusHealthy, result.Status)
	assert.Len(t, result.Checks, 6)

	err = e.RegisterHealth(reg)
	require.ErrorIs(t, err, ports.ErrDuplicateChecker)
}

func TestBuild_SourceFailuresBecomeNotFound(t *testing.T) {
	rt := &recordingTransport{}
	reg := prometheus.NewRegistry()

	e, err := Build(testConfig(t), Options{Transport: rt, Registerer: reg})
	require.NoError(t, err)

	_, err = e.ResolveByISBN(context.Background(), "978-1-933771-69-4", true, "")

	var notFound *domain.RecordNotFoundError
	require.ErrorAs(t, err, &notFound)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	assert.Equal(t, "bibresolve_source_outcomes_total", families[0].GetName())
	assert.Len(t, families[0].GetMetric(), 2, "one unavailable series per isbn source")

	bib := rt.header("www.ottobib.com")
	require.NotNil(t, bib)
	assert.Contains(t, bib.Get("User-Agent"), "bibresolve")
	assert.Empty(t, bib.Get("Api-User-Agent"))
}

func TestBuild_RegistersOutcomesTwice(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := testConfig(t)

	_, err := Build(cfg, Options{Registerer: reg})
	require.NoError(t, err)

	_, err = Build(cfg, Options{Registerer: reg})
	require.NoError(t, err)
}
