package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"golang.org/x/net/html/charset"

	"github.com/jsamuelsen/bibresolve/internal/adapters/clients"
	"github.com/jsamuelsen/bibresolve/internal/domain"
	"github.com/jsamuelsen/bibresolve/internal/platform/logging"
)

// DefaultMaxBodyBytes caps how much of a response body is read.
const DefaultMaxBodyBytes = 4 << 20

// BaseAdapter provides transport and error mapping for source adapters.
type BaseAdapter struct {
	client   *clients.Client
	name     string
	maxBytes int64
}

// NewBaseAdapter creates a base adapter. A non-positive maxBytes selects
// DefaultMaxBodyBytes.
func NewBaseAdapter(client *clients.Client, name string, maxBytes int64) BaseAdapter {
	if client == nil {
		panic("sources: client is required")
	}

	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}

	return BaseAdapter{client: client, name: name, maxBytes: maxBytes}
}

// Name returns the source name used in logs, metrics and Record.Sources.
func (a *BaseAdapter) Name() string {
	return a.name
}

// response is a fully read source response.
type response struct {
	status int
	body   []byte
}

// fetch GETs path and returns the body of a 2xx response. Any other
// outcome is a mapped domain error.
func (a *BaseAdapter) fetch(ctx context.Context, path, operation, id string, opts ...clients.RequestOption) ([]byte, error) {
	resp, err := a.fetchAny(ctx, path, operation, id, opts...)
	if err != nil {
		return nil, err
	}

	if resp.status >= http.StatusBadRequest {
		return nil, mapStatusCode(resp.status, a.name, operation, id)
	}

	return resp.body, nil
}

// fetchAny GETs path and returns the body whatever the status. Only
// transport failures and 5xx after retries are errors.
func (a *BaseAdapter) fetchAny(ctx context.Context, path, operation, id string, opts ...clients.RequestOption) (*response, error) {
	logger := logging.FromContext(ctx)
	logger.Log(ctx, logging.LevelTrace, "source request",
		slog.String("source", a.name),
		slog.String("operation", operation),
		slog.String("path", path),
	)

	resp, err := a.client.Get(ctx, path, opts...)
	if err != nil {
		return nil, MapHTTPError(nil, err, a.name, operation, id)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := a.readBody(resp)
	if err != nil {
		return nil, domain.NewUnavailableError(a.name, fmt.Sprintf("%s: reading body: %v", operation, err))
	}

	logger.Log(ctx, logging.LevelTrace, "source response",
		slog.String("source", a.name),
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
	)

	return &response{status: resp.StatusCode, body: body}, nil
}

// readBody reads at most maxBytes, transcoding HTML to UTF-8 when the
// response declares another charset.
func (a *BaseAdapter) readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = io.LimitReader(resp.Body, a.maxBytes)

	contentType := resp.Header.Get("Content-Type")
	if isHTML(contentType) {
		decoded, err := charset.NewReader(r, contentType)
		if err != nil {
			return nil, fmt.Errorf("decoding charset: %w", err)
		}

		r = decoded
	}

	return io.ReadAll(r)
}

func isHTML(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}

	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// decodeJSON unmarshals a source payload; failures are UnavailableErrors.
func decodeJSON[T any](body []byte, source string) (*T, error) {
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, domain.NewUnavailableError(source, fmt.Sprintf("decoding response: %v", err))
	}

	return &out, nil
}

// splitDate splits "2010", "2010-05" or an RFC 3339 timestamp into parts.
func splitDate(s string) (year, month, day string) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "T "); i > 0 {
		s = s[:i]
	}

	parts := strings.SplitN(s, "-", 3)
	if len(parts[0]) != 4 {
		return "", "", ""
	}

	year = parts[0]
	if len(parts) > 1 {
		month = parts[1]
	}

	if len(parts) > 2 {
		day = parts[2]
	}

	return year, month, day
}
