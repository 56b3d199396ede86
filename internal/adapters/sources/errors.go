package sources

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jsamuelsen/bibresolve/internal/adapters/clients"
	"github.com/jsamuelsen/bibresolve/internal/domain"
)

// MapHTTPError maps a failed source call to a domain error.
//
// resp may be nil when clientErr is set. id is the identifier being looked
// up and ends up in NotFoundError.
func MapHTTPError(resp *http.Response, clientErr error, source, operation, id string) error {
	if clientErr != nil {
		return mapClientError(clientErr, source, operation)
	}

	if resp == nil {
		return domain.NewUnavailableError(source, "no response received")
	}

	if resp.StatusCode >= http.StatusOK && resp.StatusCode < http.StatusMultipleChoices {
		return nil
	}

	return mapStatusCode(resp.StatusCode, source, operation, id)
}

func mapClientError(err error, source, operation string) error {
	switch {
	case errors.Is(err, clients.ErrCircuitOpen):
		return domain.NewUnavailableError(source,
			fmt.Sprintf("circuit breaker open during %s", operation))

	case errors.Is(err, clients.ErrMaxRetriesExceeded):
		return domain.NewUnavailableError(source,
			fmt.Sprintf("%s: %v", operation, err))

	default:
		return domain.NewUnavailableError(source,
			fmt.Sprintf("%s failed: %v", operation, err))
	}
}

func mapStatusCode(status int, source, operation, id string) error {
	switch status {
	case http.StatusNotFound, http.StatusGone:
		return domain.NewNotFoundError(source, id)

	case http.StatusTooManyRequests:
		return domain.NewUnavailableError(source, "rate limit exceeded")

	case http.StatusForbidden:
		// Catalog sites answer scrapers with 403 when blocked.
		return domain.NewUnavailableError(source, "access denied")

	default:
		return domain.NewUnavailableError(source,
			fmt.Sprintf("%s failed with status %d", operation, status))
	}
}
