package ports

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// DefaultCheckTimeout bounds a single source check.
const DefaultCheckTimeout = 2 * time.Second

var (
	// ErrDuplicateChecker is returned when a source name is registered twice.
	ErrDuplicateChecker = errors.New("duplicate health checker")

	// ErrUnknownChecker is returned by Check for an unregistered name.
	ErrUnknownChecker = errors.New("unknown health checker")
)

// HealthChecker reports the health of one source. Source clients are
// unhealthy while their circuit breaker is open.
type HealthChecker interface {
	Name() string
	Check(ctx context.Context) error
}

// HealthRegistry aggregates the source checks.
type HealthRegistry interface {
	Register(checker HealthChecker) error
	Check(ctx context.Context, name string) (*CheckResult, error)
	CheckAll(ctx context.Context) *HealthResult
}

// HealthStatus is the state of a source or of the whole service.
type HealthStatus string

const (
	HealthStatusHealthy HealthStatus = "healthy"

	// HealthStatusDegraded means some sources fail. Resolution still works
	// from the rest.
	HealthStatusDegraded HealthStatus = "degraded"

	// HealthStatusUnhealthy means every source fails.
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthResult is the outcome of CheckAll.
type HealthResult struct {
	Status    HealthStatus            `json:"status"`
	Healthy   int                     `json:"healthy"`
	Total     int                     `json:"total"`
	Checks    map[string]*CheckResult `json:"checks"`
	Timestamp time.Time               `json:"timestamp"`
}

// CheckResult is the outcome of one source check.
type CheckResult struct {
	Status   HealthStatus  `json:"status"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// RegistryOption configures a DefaultHealthRegistry.
type RegistryOption func(*DefaultHealthRegistry)

// WithCheckTimeout overrides DefaultCheckTimeout. Zero leaves checks bounded
// by the caller's context only.
func WithCheckTimeout(d time.Duration) RegistryOption {
	return func(r *DefaultHealthRegistry) { r.timeout = d }
}

// DefaultHealthRegistry is safe for concurrent use.
type DefaultHealthRegistry struct {
	timeout time.Duration

	mu       sync.RWMutex
	checkers map[string]HealthChecker
}

// NewHealthRegistry creates an empty registry.
func NewHealthRegistry(opts ...RegistryOption) *DefaultHealthRegistry {
	r := &DefaultHealthRegistry{
		timeout:  DefaultCheckTimeout,
		checkers: map[string]HealthChecker{},
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

// Register adds a checker under its name.
func (r *DefaultHealthRegistry) Register(checker HealthChecker) error {
	name := checker.Name()

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.checkers[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateChecker, name)
	}

	r.checkers[name] = checker

	return nil
}

// Check runs the checker registered under name.
func (r *DefaultHealthRegistry) Check(ctx context.Context, name string) (*CheckResult, error) {
	r.mu.RLock()
	checker, ok := r.checkers[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownChecker, name)
	}

	return r.run(ctx, checker), nil
}

// CheckAll runs every checker concurrently.
func (r *DefaultHealthRegistry) CheckAll(ctx context.Context) *HealthResult {
	r.mu.RLock()
	checkers := make([]HealthChecker, 0, len(r.checkers))
	for _, c := range r.checkers {
		checkers = append(checkers, c)
	}
	r.mu.RUnlock()

	results := make([]*CheckResult, len(checkers))

	var wg sync.WaitGroup
	for i, c := range checkers {
		wg.Go(func() { results[i] = r.run(ctx, c) })
	}
	wg.Wait()

	out := &HealthResult{
		Status:    HealthStatusHealthy,
		Total:     len(checkers),
		Checks:    make(map[string]*CheckResult, len(checkers)),
		Timestamp: time.Now(),
	}

	for i, c := range checkers {
		out.Checks[c.Name()] = results[i]
		if results[i].Status == HealthStatusHealthy {
			out.Healthy++
		}
	}

	switch {
	case out.Total > 0 && out.Healthy == 0:
		out.Status = HealthStatusUnhealthy
	case out.Healthy < out.Total:
		out.Status = HealthStatusDegraded
	}

	return out
}

func (r *DefaultHealthRegistry) run(ctx context.Context, c HealthChecker) *CheckResult {
	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	start := time.Now()
	err := c.Check(ctx)

	res := &CheckResult{Status: HealthStatusHealthy, Duration: time.Since(start)}
	if err != nil {
		res.Status = HealthStatusUnhealthy
		res.Message = err.Error()
	}

	return res
}
