// Package clients provides the instrumented HTTP transport shared by every
// bibliographic source adapter.
package clients

import "errors"

// Transport-layer failures. Source adapters translate them into
// domain.UnavailableError.
var (
	// ErrCircuitOpen is returned without contacting the source while its
	// circuit breaker is open.
	ErrCircuitOpen = errors.New("circuit breaker open")

	// ErrMaxRetriesExceeded wraps the last error after all attempts failed.
	ErrMaxRetriesExceeded = errors.New("max retries exceeded")
)
