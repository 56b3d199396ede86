// Package dto provides the request and response shapes of the HTTP API.
package dto

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/platform/logging"
)

// ErrorResponse is the error envelope of every failed request.
type ErrorResponse struct {
	Error   ErrorDetail `json:"error"`
	TraceID string      `json:"traceId,omitempty"`
}

// ErrorDetail contains the error information.
type ErrorDetail struct {
	// Code is a machine-readable error code such as "NOT_FOUND".
	Code string `json:"code"`

	// Message is a human-readable error message.
	Message string `json:"message"`

	// Details holds field-level messages for validation errors.
	Details map[string]string `json:"details,omitempty"`

	// Lines is the three-line notice for identifiers a catalog rejected.
	Lines []string `json:"lines,omitempty"`
}

// Error codes.
const (
	ErrorCodeNotFound           = "NOT_FOUND"
	ErrorCodeIdentifierNotFound = "IDENTIFIER_NOT_FOUND"
	ErrorCodeInvalidIdentifier  = "INVALID_IDENTIFIER"
	ErrorCodeValidation         = "VALIDATION_ERROR"
	ErrorCodeUnavailable        = "SERVICE_UNAVAILABLE"
	ErrorCodeInternal           = "INTERNAL_ERROR"
	ErrorCodeTimeout            = "TIMEOUT"
	ErrorCodeBadRequest         = "BAD_REQUEST"
)

// ContextKeyTraceID is the gin key consulted when the request has no span.
const ContextKeyTraceID = "trace_id"

// NewErrorResponse creates an error response with the given code and message.
func NewErrorResponse(code, message string) *ErrorResponse {
	return &ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	}
}

// NewErrorResponseWithDetails creates an error response with field details.
func NewErrorResponseWithDetails(code, message string, details map[string]string) *ErrorResponse {
	resp := NewErrorResponse(code, message)
	resp.Error.Details = details

	return resp
}

// NewMessageResponse renders a catalog notice as an error response.
func NewMessageResponse(msg *domain.UserMessage) *ErrorResponse {
	lines := msg.Lines()

	resp := NewErrorResponse(ErrorCodeInvalidIdentifier, msg.Title)
	resp.Error.Lines = lines[:]

	return resp
}

// WithTraceID adds a trace ID to the error response.
func (e *ErrorResponse) WithTraceID(traceID string) *ErrorResponse {
	e.TraceID = traceID
	return e
}

// HTTPStatusFromCode maps error codes to HTTP status codes.
func HTTPStatusFromCode(code string) int {
	switch code {
	case ErrorCodeNotFound:
		return http.StatusNotFound
	case ErrorCodeValidation, ErrorCodeBadRequest, ErrorCodeIdentifierNotFound:
		return http.StatusBadRequest
	case ErrorCodeInvalidIdentifier:
		return http.StatusUnprocessableEntity
	case ErrorCodeUnavailable:
		return http.StatusServiceUnavailable
	case ErrorCodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// MapDomainError maps a domain error to an HTTP status code and error body.
// Unknown errors become 500 with a generic message.
func MapDomainError(err error) (int, *ErrorResponse) {
	if err == nil {
		return http.StatusOK, nil
	}

	var code string

	switch {
	case domain.IsIdentifierNotFound(err):
		code = ErrorCodeIdentifierNotFound
	case errors.Is(err, domain.ErrRecordNotFound), domain.IsNotFound(err):
		code = ErrorCodeNotFound
	case domain.IsInvalidIdentifier(err):
		code = ErrorCodeInvalidIdentifier
	case domain.IsValidation(err):
		resp := NewErrorResponse(ErrorCodeValidation, err.Error())

		var ve *domain.ValidationError
		if errors.As(err, &ve) && ve.Field != "" {
			resp.Error.Details = map[string]string{ve.Field: ve.Message}
		}

		return http.StatusBadRequest, resp
	case domain.IsUnavailable(err):
		code = ErrorCodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = ErrorCodeTimeout
	default:
		return http.StatusInternalServerError, NewErrorResponse(ErrorCodeInternal, "an internal error occurred")
	}

	return HTTPStatusFromCode(code), NewErrorResponse(code, err.Error())
}

// GetTraceID returns the trace id of the request span, falling back to the
// value stored under ContextKeyTraceID.
func GetTraceID(c *gin.Context) string {
	if sc := trace.SpanFromContext(c.Request.Context()).SpanContext(); sc.HasTraceID() {
		return sc.TraceID().String()
	}

	if v, ok := c.Get(ContextKeyTraceID); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}

	return ""
}

// HandleError writes the error envelope for err. Internal errors are logged
// with full detail since the body hides them.
func HandleError(c *gin.Context, err error) {
	status, resp := MapDomainError(err)
	resp.TraceID = GetTraceID(c)

	if status == http.StatusInternalServerError {
		ctx := c.Request.Context()
		logging.FromContext(ctx).ErrorContext(ctx, "internal error",
			slog.Any("error", err),
			slog.String("trace_id", resp.TraceID),
		)
	}

	c.JSON(status, resp)
}

// AbortWithError writes the error envelope for err and stops the chain.
func AbortWithError(c *gin.Context, err error) {
	status, resp := MapDomainError(err)
	c.AbortWithStatusJSON(status, resp.WithTraceID(GetTraceID(c)))
}

// AbortWithCode stops the chain with an adapter-level error.
func AbortWithCode(c *gin.Context, code, message string) {
	resp := NewErrorResponse(code, message).WithTraceID(GetTraceID(c))

	if c.Writer.Written() {
		c.Abort()
		return
	}

	c.AbortWithStatusJSON(HTTPStatusFromCode(code), resp)
}

// RespondWithValidationErrors writes a 400 with field-level messages.
func RespondWithValidationErrors(c *gin.Context, fields map[string]string) {
	resp := NewErrorResponseWithDetails(ErrorCodeValidation, "request validation failed", fields)
	c.JSON(http.StatusBadRequest, resp.WithTraceID(GetTraceID(c)))
}
