package clients

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/jsamuelsen/bibresolve/internal/adapters/http/middleware"
	"github.com/jsamuelsen/bibresolve/internal/platform/config"
	"github.com/jsamuelsen/bibresolve/internal/platform/logging"
)

const (
	instrumentationName = "github.com/jsamuelsen/bibresolve/internal/adapters/clients"

	defaultTimeout = 30 * time.Second
)

// Config configures one client per bibliographic source.
type Config struct {
	// BaseURL is prefixed to relative request paths. Absolute URLs passed to
	// Get bypass it.
	BaseURL string

	// ServiceName identifies the source in logs, spans and metrics.
	ServiceName string

	// Timeout is the per-attempt request timeout.
	// Total wall-clock time may exceed this value due to retries and backoff.
	Timeout time.Duration

	Retry   config.RetryConfig
	Circuit config.CircuitBreakerConfig

	// RateLimit throttles requests to the source. Zero disables it.
	RateLimit config.RateLimitConfig

	// Pool sizes the default transport. Ignored when Transport is set.
	Pool config.TransportConfig

	// Transport overrides the round tripper, mainly for tests.
	Transport http.RoundTripper

	// UserAgent is sent on every request when non-empty.
	UserAgent string

	// Headers are static headers added to every request.
	Headers map[string]string

	// Logger is an optional logger. If nil, a default logger is used.
	Logger *slog.Logger
}

// RequestOption customizes a single outgoing request.
type RequestOption func(*http.Request)

// WithQuery merges query parameters into the request URL.
func WithQuery(params url.Values) RequestOption {
	return func(req *http.Request) {
		q := req.URL.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}

		req.URL.RawQuery = q.Encode()
	}
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(req *http.Request) {
		req.Header.Set(key, value)
	}
}

// WithAccept sets the Accept header.
func WithAccept(mediaType string) RequestOption {
	return WithHeader("Accept", mediaType)
}

// Client is the HTTP client of one bibliographic source. It wraps each
// request in rate limiting, retries with jittered backoff and a circuit
// breaker, and forwards the request and correlation IDs from the context.
type Client struct {
	http    *http.Client
	baseURL string
	name    string
	cfg     *Config
	logger  *slog.Logger
	cb      *CircuitBreaker
	limiter *rate.Limiter
	tracer  trace.Tracer
	inst    instruments
}

type instruments struct {
	duration metric.Float64Histogram
	requests metric.Int64Counter
}

func newInstruments() (instruments, error) {
	meter := otel.Meter(instrumentationName)

	duration, err := meter.Float64Histogram("http.client.request.duration",
		metric.WithDescription("Duration of source requests"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("creating duration metric: %w", err)
	}

	requests, err := meter.Int64Counter("http.client.request.total",
		metric.WithDescription("Total number of source requests"),
	)
	if err != nil {
		return instruments{}, fmt.Errorf("creating request counter: %w", err)
	}

	return instruments{duration: duration, requests: requests}, nil
}

// New validates cfg, fills in defaults and builds the client.
func New(cfg *Config) (*Client, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("config is required")
	case cfg.ServiceName == "":
		return nil, errors.New("service name is required")
	}

	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	cfg.Retry.MaxAttempts = max(cfg.Retry.MaxAttempts, 1)

	inst, err := newInstruments()
	if err != nil {
		return nil, err
	}

	base := cfg.Logger
	if base == nil {
		base = slog.Default()
	}

	logger := base.With(slog.String("component", "clients.Client"), slog.String("source", cfg.ServiceName))

	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures:   cfg.Circuit.MaxFailures,
		Timeout:       cfg.Circuit.Timeout,
		HalfOpenLimit: cfg.Circuit.HalfOpenLimit,
	})
	cb.OnStateChange(func(from, to State) {
		logger.Warn("circuit breaker state changed", slog.String("from", from.String()), slog.String("to", to.String()))
	})

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout, Transport: roundTripper(cfg)},
		baseURL: strings.TrimSuffix(cfg.BaseURL, "/"),
		name:    cfg.ServiceName,
		cfg:     cfg,
		logger:  logger,
		cb:      cb,
		limiter: newLimiter(cfg.RateLimit),
		tracer:  otel.Tracer(instrumentationName),
		inst:    inst,
	}, nil
}

// newLimiter returns nil when throttling is disabled.
func newLimiter(cfg config.RateLimitConfig) *rate.Limiter {
	if cfg.RequestsPerSecond <= 0 {
		return nil
	}

	return rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1))
}

func roundTripper(cfg *Config) http.RoundTripper {
	if cfg.Transport != nil {
		return cfg.Transport
	}

	pool := cfg.Pool
	if pool.MaxIdleConns == 0 {
		pool.MaxIdleConns = config.DefaultTransportMaxIdleConns
	}

	if pool.MaxIdleConnsPerHost == 0 {
		pool.MaxIdleConnsPerHost = config.DefaultTransportMaxIdleConnsPerHost
	}

	if pool.IdleConnTimeout == 0 {
		pool.IdleConnTimeout = config.DefaultTransportIdleConnTimeout
	}

	return &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        pool.MaxIdleConns,
		MaxIdleConnsPerHost: pool.MaxIdleConnsPerHost,
		IdleConnTimeout:     pool.IdleConnTimeout,
	}
}

// Name returns the source name. Together with Check it lets a client act as
// a readiness probe.
func (c *Client) Name() string {
	return c.name
}

// Check reports the source as unhealthy while its circuit is open.
func (c *Client) Check(context.Context) error {
	if c.cb.State() == StateOpen {
		return fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
	}

	return nil
}

// Do sends req. Requests with a body are only retried when req.GetBody is
// set. 4xx answers are returned as responses and count as source successes.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	logger := c.logger
	if reqLogger, ok := logging.Lookup(ctx); ok {
		logger = reqLogger.With(slog.String("source", c.name))
	}

	x := &exchange{
		client: c,
		req:    req,
		start:  time.Now(),
		logger: logger.With(slog.String("method", req.Method), slog.String("path", req.URL.Path)),
	}

	if !c.cb.Allow() {
		x.observe(ctx, 0, "circuit_open")
		x.logger.Warn("request blocked by circuit breaker")

		return nil, ErrCircuitOpen
	}

	c.injectHeaders(ctx, req)

	ctx, span := c.tracer.Start(ctx, "HTTP "+req.Method+" "+c.name,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
			attribute.String("peer.service", c.name),
		),
	)
	defer span.End()

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	resp, err := x.run(ctx)
	if err != nil {
		return nil, x.fail(ctx, span, err)
	}

	x.succeed(ctx, span, resp)

	return resp, nil
}

// exchange is one logical request and its attempts.
type exchange struct {
	client *Client
	req    *http.Request
	logger *slog.Logger
	start  time.Time
}

func (x *exchange) run(ctx context.Context) (*http.Response, error) {
	attempts := x.client.cfg.Retry.MaxAttempts

	var (
		lastErr error
		hint    time.Duration
	)

	for attempt := range attempts {
		if attempt > 0 {
			if err := x.pause(ctx, attempt, hint); err != nil {
				return nil, err
			}
		}

		if l := x.client.limiter; l != nil {
			if err := l.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%w: %w", errRateLimitWait, err)
			}
		}

		resp, err := x.client.http.Do(x.req.WithContext(ctx))

		verdict := classify(resp, err, attempt+1 < attempts)
		if !verdict.retry {
			return resp, err
		}

		x.logger.Debug("attempt failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Any("error", verdict.err),
		)

		lastErr, hint = verdict.err, verdict.after
	}

	return nil, lastErr
}

type verdict struct {
	retry bool
	after time.Duration
	err   error
}

// classify decides whether an attempt is retried. Transient network errors
// and 5xx are retried. 429 is retried while attempts remain, honoring
// Retry-After, and otherwise returned to the caller as a response.
func classify(resp *http.Response, err error, more bool) verdict {
	switch {
	case err != nil:
		return verdict{retry: isRetryableError(err), err: err}
	case resp.StatusCode == http.StatusTooManyRequests && more:
		after := retryAfter(resp.Header.Get("Retry-After"))
		_ = resp.Body.Close()

		return verdict{retry: true, after: after, err: fmt.Errorf("throttled: %d", resp.StatusCode)}
	case resp.StatusCode >= http.StatusInternalServerError:
		_ = resp.Body.Close()

		return verdict{retry: true, err: fmt.Errorf("server error: %d", resp.StatusCode)}
	default:
		return verdict{}
	}
}

// retryAfter parses the delay-seconds form of Retry-After. HTTP dates are
// ignored.
func retryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs < 0 {
		return 0
	}

	return time.Duration(secs) * time.Second
}

// pause sleeps before a retry. A server hint longer than the backoff wins,
// capped at the configured max interval.
func (x *exchange) pause(ctx context.Context, attempt int, hint time.Duration) error {
	wait := x.client.calculateBackoff(attempt)
	if hint > wait {
		wait = min(hint, x.client.cfg.Retry.MaxInterval)
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	}

	if x.req.GetBody != nil {
		body, err := x.req.GetBody()
		if err != nil {
			return fmt.Errorf("rewinding request body: %w", err)
		}

		x.req.Body = body
	}

	return nil
}

// errRateLimitWait marks requests that never left because the local
// limiter could not admit them in time.
var errRateLimitWait = errors.New("waiting for rate limiter")

// fail records a failed exchange. Caller cancellation and local throttling
// are not held against the source: the reconciler abandons slow lookups.
func (x *exchange) fail(ctx context.Context, span trace.Span, err error) error {
	span.SetStatus(codes.Error, err.Error())

	if ctx.Err() != nil || errors.Is(err, errRateLimitWait) {
		x.observe(ctx, 0, "context_canceled")
		x.logger.Debug("source request abandoned", slog.Any("error", err))

		return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
	}

	x.client.cb.RecordFailure()
	x.observe(ctx, 0, "error")
	x.logger.Warn("source request failed",
		slog.Duration("duration", time.Since(x.start)),
		slog.Any("error", err),
	)

	return fmt.Errorf("%w: %w", ErrMaxRetriesExceeded, err)
}

func (x *exchange) succeed(ctx context.Context, span trace.Span, resp *http.Response) {
	x.client.cb.RecordSuccess()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	if resp.StatusCode >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
	}

	x.observe(ctx, resp.StatusCode, strconv.Itoa(resp.StatusCode/100)+"xx")
	x.logger.Debug("source request completed",
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", time.Since(x.start)),
	)
}

func (x *exchange) observe(ctx context.Context, status int, result string) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", x.req.Method),
		attribute.String("peer.service", x.client.name),
		attribute.String("result", result),
	}

	if status > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", status))
	}

	opt := metric.WithAttributes(attrs...)
	x.client.inst.duration.Record(ctx, time.Since(x.start).Seconds(), opt)
	x.client.inst.requests.Add(ctx, 1, opt)
}

// Get performs a GET. path is either relative to the base URL or absolute.
func (c *Client) Get(ctx context.Context, path string, opts ...RequestOption) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.buildURL(path), http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	for _, opt := range opts {
		opt(req)
	}

	return c.Do(ctx, req)
}

// Post performs a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body io.Reader, opts ...RequestOption) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.buildURL(path), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	for _, opt := range opts {
		opt(req)
	}

	return c.Do(ctx, req)
}

// CircuitState returns the current state of the circuit breaker.
func (c *Client) CircuitState() State {
	return c.cb.State()
}

func (c *Client) injectHeaders(ctx context.Context, req *http.Request) {
	if requestID := middleware.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(middleware.HeaderRequestID, requestID)
	}

	if correlationID := middleware.CorrelationIDFromContext(ctx); correlationID != "" {
		req.Header.Set(middleware.HeaderCorrelationID, correlationID)
	}

	if c.cfg.UserAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.cfg.UserAgent)
	}

	for k, v := range c.cfg.Headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
}

func (c *Client) buildURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}

	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	return c.baseURL + path
}

// calculateBackoff returns initial * multiplier^attempt, capped at the max
// interval, with symmetric jitter of JitterFactor.
func (c *Client) calculateBackoff(attempt int) time.Duration {
	backoff := float64(c.cfg.Retry.InitialInterval) * math.Pow(c.cfg.Retry.Multiplier, float64(attempt))

	if backoff > float64(c.cfg.Retry.MaxInterval) {
		backoff = float64(c.cfg.Retry.MaxInterval)
	}

	spread := 2*rand.Float64() - 1 //nolint:gosec // jitter only
	backoff += backoff * c.cfg.Retry.JitterFactor * spread

	return time.Duration(backoff)
}

// isRetryableError accepts network timeouts and dial or read failures.
// Context errors are final.
func isRetryableError(err error) bool {
	switch {
	case err == nil, errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	}

	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}

	var op *net.OpError

	return errors.As(err, &op)
}
