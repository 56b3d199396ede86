package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/jsamuelsen/bibresolve/internal/adapters/http/dto"
	"github.com/jsamuelsen/bibresolve/internal/platform/logging"
)

// Timeout puts a deadline on the request context. Source calls give up when
// it passes; if the handler returns without writing a response by then, a
// 504 envelope is written.
func Timeout(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()

		c.Request = c.Request.WithContext(ctx)

		c.Next()

		if errors.Is(ctx.Err(), context.DeadlineExceeded) && !c.Writer.Written() {
			logging.FromContext(ctx).WarnContext(ctx, "request timeout",
				slog.String("path", c.Request.URL.Path),
				slog.Duration("timeout", timeout),
			)

			dto.AbortWithCode(c, dto.ErrorCodeTimeout, "request timeout exceeded")
		}
	}
}
