package http

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/bibresolve/internal/adapters/http/dto"
	"github.com/jsamuelsen/bibresolve/internal/adapters/http/handlers"
	"github.com/jsamuelsen/bibresolve/internal/adapters/http/middleware"
	"github.com/jsamuelsen/bibresolve/internal/app"
	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/mocks"
	"github.com/jsamuelsen/bibresolve/internal/platform/config"
	"github.com/jsamuelsen/bibresolve/internal/ports"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serverConfig(maxBody int64) *config.ServerConfig {
	return &config.ServerConfig{
		Host:           "127.0.0.1",
		Port:           0,
		ReadTimeout:    5 * time.Second,
		WriteTimeout:   10 * time.Second,
		IdleTimeout:    30 * time.Second,
		MaxRequestSize: maxBody,
	}
}

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stack struct {
	meta   *mocks.MockISBNSource
	bib    *mocks.MockISBNSource
	server *Server
}

// newStack wires a server over an engine whose sources are mocks.
func newStack(t *testing.T, maxBody int64) *stack {
	t.Helper()

	s := &stack{
		meta: mocks.NewMockISBNSource(t, "metacatalog"),
		bib:  mocks.NewMockISBNSource(t, "bibformat"),
	}

	engine := app.NewEngine(app.EngineConfig{
		Reconciler: app.NewReconciler(app.ReconcilerConfig{MetaCatalog: s.meta, BibFormat: s.bib}),
		BatchLimit: 2,
	})

	s.server = New(serverConfig(maxBody), discard())

	SetupRouter(s.server.Engine(), RouterConfig{
		Logger:         discard(),
		ServiceName:    "bibresolve-test",
		HealthHandler:  handlers.NewHealthHandler(ports.NewHealthRegistry(), handlers.BuildInfo{Version: "test"}),
		ResolveHandler: handlers.NewResolveHandler(engine, handlers.ResolveHandlerConfig{}),
		Timeout:        DefaultRequestTimeout,
	})

	return s
}

func (s *stack) do(method, target, body string) *httptest.ResponseRecorder {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, r)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	w := httptest.NewRecorder()
	s.server.Engine().ServeHTTP(w, req)

	return w
}

func TestRouter_ResolveISBN(t *testing.T) {
	s := newStack(t, 1<<20)

	const isbn = "978-1-933771-69-4"

	s.meta.On("LookupISBN", mock.Anything, isbn).Return(nil, domain.NewUnavailableError("metacatalog", "503"))
	s.bib.On("LookupISBN", mock.Anything, isbn).Return(&domain.PartialRecord{
		Source: "bibformat",
		Fields: domain.Fields{Type: domain.TypeBook, ISBN: "9781933771694", Title: "Biocentrism"},
	}, nil)

	w := s.do(http.MethodGet, "/api/v1/resolve/isbn?q=Biocentrism+ISBN+"+isbn, "")

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderRequestID))
	assert.NotEmpty(t, w.Header().Get(middleware.HeaderCorrelationID))

	var rec domain.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rec))
	assert.Equal(t, "Biocentrism", rec.Title)
	assert.Equal(t, "%Y-%m-%d", rec.DateFormat)
}

func TestRouter_ErrorEnvelope(t *testing.T) {
	s := newStack(t, 1<<20)

	w := s.do(http.MethodGet, "/api/v1/resolve/isbn?q=no+isbn+here", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrorCodeIdentifierNotFound, resp.Error.Code)

	// No OCLC catalog is wired in this stack.
	w = s.do(http.MethodGet, "/api/v1/resolve/oclc/123", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestRouter_Batch(t *testing.T) {
	s := newStack(t, 1<<20)

	w := s.do(http.MethodPost, "/api/v1/resolve/batch", `{"identifiers":["hello","world"]}`)
	require.Equal(t, http.StatusOK, w.Code)

	var resp dto.BatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Failed)
	assert.Equal(t, "hello", resp.Items[0].Input)
	assert.Equal(t, "world", resp.Items[1].Input)
}

func TestRouter_Authors(t *testing.T) {
	s := newStack(t, 1<<20)

	w := s.do(http.MethodPost, "/api/v1/authors", `<div class="byline">By Jane Doe</div>`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"authors":[{"first":"Jane","last":"Doe"}]}`, w.Body.String())
}

func TestRouter_BodyLimit(t *testing.T) {
	s := newStack(t, 64)

	w := s.do(http.MethodPost, "/api/v1/authors", strings.Repeat("<p>x</p>", 20))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_Health(t *testing.T) {
	s := newStack(t, 1<<20)

	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/-/live", "").Code)
	assert.Equal(t, http.StatusOK, s.do(http.MethodGet, "/-/ready", "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(http.MethodGet, "/api/v1/nothing", "").Code)
	assert.Equal(t, http.StatusMethodNotAllowed, s.do(http.MethodDelete, "/-/live", "").Code)
}

func TestServer_StartShutdown(t *testing.T) {
	srv := newStack(t, 1<<20).server
	assert.Equal(t, "127.0.0.1:0", srv.Addr())

	errCh, err := srv.Start()
	require.NoError(t, err)
	assert.NotEqual(t, "127.0.0.1:0", srv.Addr(), "bound port replaces port zero")

	resp, err := http.Get("http://" + srv.Addr() + "/-/live")
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, srv.Shutdown(ctx))

	_, ok := <-errCh
	assert.False(t, ok, "error channel should be closed")
}

func TestServer_StartAddressInUse(t *testing.T) {
	first := New(serverConfig(1<<20), discard())
	_, err := first.Start()
	require.NoError(t, err)
	t.Cleanup(func() { _ = first.Shutdown(context.Background()) })

	_, port, err := net.SplitHostPort(first.Addr())
	require.NoError(t, err)

	cfg := serverConfig(1 << 20)
	cfg.Port, err = strconv.Atoi(port)
	require.NoError(t, err)

	_, err = New(cfg, discard()).Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "listening on")
}
