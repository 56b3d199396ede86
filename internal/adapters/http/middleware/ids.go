// Package middleware provides the gin middleware of the HTTP API.
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/jsamuelsen/bibresolve/internal/platform/logging"
)

const (
	// HeaderRequestID identifies a single request.
	HeaderRequestID = "X-Request-ID"

	// HeaderCorrelationID tracks a transaction across services. It is
	// propagated from upstream when present.
	HeaderCorrelationID = "X-Correlation-ID"

	// ContextKeyRequestID is the gin key of the request ID.
	ContextKeyRequestID = "request_id"

	// ContextKeyCorrelationID is the gin key of the correlation ID.
	ContextKeyCorrelationID = "correlation_id"

	// maxIDLength bounds caller-supplied IDs; longer ones are replaced.
	maxIDLength = 128
)

type idKey string

// RequestIDFromContext returns the request ID set by RequestID, or "". The
// source client reads it to forward the header downstream.
func RequestIDFromContext(ctx context.Context) string {
	return idFromContext(ctx, idKey(ContextKeyRequestID))
}

// CorrelationIDFromContext returns the correlation ID set by CorrelationID, or "".
func CorrelationIDFromContext(ctx context.Context) string {
	return idFromContext(ctx, idKey(ContextKeyCorrelationID))
}

// ContextWithRequestID stores a request ID in the context.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey(ContextKeyRequestID), id)
}

// ContextWithCorrelationID stores a correlation ID in the context.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey(ContextKeyCorrelationID), id)
}

func idFromContext(ctx context.Context, key idKey) string {
	if ctx == nil {
		return ""
	}

	id, _ := ctx.Value(key).(string)

	return id
}

type idMiddlewareConfig struct {
	headerName string
	contextKey string
	enrich     []func(ctx context.Context, id string) context.Context
}

// RequestID takes X-Request-ID from the request or generates a UUID, then
// stores it in the gin context, the request context and the context logger,
// and echoes it in the response.
func RequestID() gin.HandlerFunc {
	return idMiddleware(idMiddlewareConfig{
		headerName: HeaderRequestID,
		contextKey: ContextKeyRequestID,
		enrich:     []func(context.Context, string) context.Context{logging.WithRequestID, ContextWithRequestID},
	})
}

// CorrelationID does for X-Correlation-ID what RequestID does for
// X-Request-ID.
func CorrelationID() gin.HandlerFunc {
	return idMiddleware(idMiddlewareConfig{
		headerName: HeaderCorrelationID,
		contextKey: ContextKeyCorrelationID,
		enrich:     []func(context.Context, string) context.Context{logging.WithCorrelationID, ContextWithCorrelationID},
	})
}

func idMiddleware(cfg idMiddlewareConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(cfg.headerName))
		if !validID(id) {
			id = uuid.New().String()
		}

		c.Set(cfg.contextKey, id)
		c.Header(cfg.headerName, id)

		ctx := c.Request.Context()
		for _, enrich := range cfg.enrich {
			ctx = enrich(ctx, id)
		}

		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// validID accepts printable ASCII IDs of bounded length.
func validID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}

	for i := range len(id) {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}

	return true
}

// GetRequestID returns the request ID from the gin context, or "".
func GetRequestID(c *gin.Context) string {
	return getIDFromContext(c, ContextKeyRequestID)
}

// GetCorrelationID returns the correlation ID from the gin context, or "".
func GetCorrelationID(c *gin.Context) string {
	return getIDFromContext(c, ContextKeyCorrelationID)
}

func getIDFromContext(c *gin.Context, key string) string {
	return c.GetString(key)
}
