package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jsamuelsen/bibresolve/internal/adapters/http/dto"
	"github.com/jsamuelsen/bibresolve/internal/platform/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(router *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	return w
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		header   string
		wantSame bool
	}{
		{name: "propagates caller id", header: "req-123", wantSame: true},
		{name: "generates when missing"},
		{name: "replaces overlong id", header: strings.Repeat("a", maxIDLength+1)},
		{name: "replaces id with spaces", header: "two words"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var fromGin, fromCtx string

			router := gin.New()
			router.Use(RequestID())
			router.GET("/", func(c *gin.Context) {
				fromGin = GetRequestID(c)
				fromCtx = RequestIDFromContext(c.Request.Context())
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(HeaderRequestID, tt.header)
			}

			w := serve(router, req)

			got := w.Header().Get(HeaderRequestID)
			assert.Equal(t, got, fromGin)
			assert.Equal(t, got, fromCtx)

			if tt.wantSame {
				assert.Equal(t, tt.header, got)
				return
			}

			_, err := uuid.Parse(got)
			require.NoError(t, err)
		})
	}
}

func TestCorrelationID(t *testing.T) {
	t.Parallel()

	var fromCtx string

	router := gin.New()
	router.Use(CorrelationID())
	router.GET("/", func(c *gin.Context) {
		fromCtx = CorrelationIDFromContext(c.Request.Context())
		assert.Equal(t, fromCtx, GetCorrelationID(c))
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderCorrelationID, "txn-9")

	w := serve(router, req)

	assert.Equal(t, "txn-9", w.Header().Get(HeaderCorrelationID))
	assert.Equal(t, "txn-9", fromCtx)
}

func TestIDsReachContextLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	router := gin.New()
	router.Use(Recovery(logger), RequestID(), CorrelationID())
	router.GET("/", func(c *gin.Context) {
		logging.FromContext(c.Request.Context()).Info("inside")
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-1")
	req.Header.Set(HeaderCorrelationID, "cor-1")
	serve(router, req)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "cor-1", line["correlation_id"])
}

func TestGetIDFromContext(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Empty(t, GetRequestID(c))

	c.Set(ContextKeyRequestID, 123)
	assert.Empty(t, GetRequestID(c))

	c.Set(ContextKeyCorrelationID, "cor")
	assert.Equal(t, "cor", GetCorrelationID(c))
}

func TestIDFromContext_NotSet(t *testing.T) {
	t.Parallel()

	assert.Empty(t, RequestIDFromContext(t.Context()))
	assert.Empty(t, CorrelationIDFromContext(t.Context()))
	assert.Empty(t, RequestIDFromContext(nil)) //nolint:staticcheck // nil context is handled
}

func TestRecovery(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	router := gin.New()
	router.Use(Recovery(slog.New(slog.NewTextHandler(&buf, nil))))
	router.GET("/boom", func(*gin.Context) { panic("kaboom") })

	w := serve(router, httptest.NewRequest(http.MethodGet, "/boom", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, dto.ErrorCodeInternal, resp.Error.Code)
	assert.NotContains(t, resp.Error.Message, "kaboom")
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), "kaboom")
}

func TestLogging(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		path      string
		status    int
		wantLevel string
	}{
		{name: "success", path: "/api/v1/resolve", status: http.StatusOK, wantLevel: "INFO"},
		{name: "client error", path: "/api/v1/bad", status: http.StatusBadRequest, wantLevel: "WARN"},
		{name: "server error", path: "/api/v1/err", status: http.StatusServiceUnavailable, wantLevel: "ERROR"},
		{name: "health skipped", path: "/-/live", status: http.StatusOK},
		{name: "listed path skipped", path: "/favicon.ico", status: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer

			router := gin.New()
			router.Use(Recovery(slog.New(slog.NewJSONHandler(&buf, nil))), Logging("/favicon.ico"))
			router.GET(tt.path, func(c *gin.Context) { c.Status(tt.status) })

			serve(router, httptest.NewRequest(http.MethodGet, tt.path+"?q=1", nil))

			if tt.wantLevel == "" {
				assert.Empty(t, buf.String())
				return
			}

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tt.wantLevel, line["level"])
			assert.Equal(t, "request completed", line["msg"])
			assert.Equal(t, tt.path, line["path"])
			assert.Equal(t, "q=1", line["query"])
			assert.InDelta(t, float64(tt.status), line["status"], 0)
		})
	}
}

func TestTimeout(t *testing.T) {
	t.Parallel()

	t.Run("sets deadline", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Timeout(time.Second))
		router.GET("/", func(c *gin.Context) {
			_, ok := c.Request.Context().Deadline()
			assert.True(t, ok)
			c.Status(http.StatusOK)
		})

		w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("writes 504 when handler gives up", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Timeout(10 * time.Millisecond))
		router.GET("/", func(c *gin.Context) {
			<-c.Request.Context().Done()
		})

		w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusGatewayTimeout, w.Code)

		var resp dto.ErrorResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, dto.ErrorCodeTimeout, resp.Error.Code)
	})

	t.Run("keeps late response", func(t *testing.T) {
		t.Parallel()

		router := gin.New()
		router.Use(Timeout(10 * time.Millisecond))
		router.GET("/", func(c *gin.Context) {
			<-c.Request.Context().Done()
			c.String(http.StatusServiceUnavailable, "gave up")
		})

		w := serve(router, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Equal(t, "gave up", w.Body.String())
	})
}
