package clients

import (
	"sync"
	"time"
)

// State is the circuit breaker state.
type State int

const (
	// StateClosed lets every request through.
	StateClosed State = iota

	// StateOpen blocks requests until the cool-down elapses.
	StateOpen

	// StateHalfOpen lets a limited number of probes through.
	StateHalfOpen
)

var stateNames = [...]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open"}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}

	return stateNames[s]
}

// CircuitBreakerConfig configures the circuit breaker behavior.
type CircuitBreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures int

	// Timeout is the cool-down spent in the open state.
	Timeout time.Duration

	// HalfOpenLimit is both the number of concurrent probes allowed while
	// half-open and the number of consecutive successes needed to close.
	HalfOpenLimit int
}

// Counts is a point-in-time view of the breaker, used by readiness checks.
type Counts struct {
	State       State
	Failures    int
	Successes   int
	InFlight    int
	LastFailure time.Time
}

// CircuitBreaker guards one bibliographic source. Scraped catalogs go down
// for minutes at a time; while open, the reconciler gets ErrCircuitOpen
// immediately and treats the source as having no data.
//
// State transitions:
//   - Closed → Open: After MaxFailures consecutive failures
//   - Open → HalfOpen: After Timeout has passed
//   - HalfOpen → Closed: After HalfOpenLimit consecutive successes
//   - HalfOpen → Open: On any failure
type CircuitBreaker struct {
	mu       sync.Mutex
	cfg      CircuitBreakerConfig
	counts   Counts
	onChange func(from, to State)
	now      func() time.Time
}

// NewCircuitBreaker creates a closed breaker. Non-positive limits are raised to 1.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures < 1 {
		cfg.MaxFailures = 1
	}

	if cfg.HalfOpenLimit < 1 {
		cfg.HalfOpenLimit = 1
	}

	return &CircuitBreaker{
		cfg: cfg,
		now: time.Now,
	}
}

// OnStateChange sets a callback invoked asynchronously on every transition.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to State)) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.onChange = fn
}

// Allow reports whether a request may proceed. An open breaker whose
// cool-down has elapsed moves to half-open and admits the caller as a probe.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.counts.State {
	case StateClosed:
		return true

	case StateOpen:
		if cb.now().Sub(cb.counts.LastFailure) < cb.cfg.Timeout {
			return false
		}

		cb.setState(StateHalfOpen)
		cb.counts.InFlight = 1

		return true

	case StateHalfOpen:
		if cb.counts.InFlight >= cb.cfg.HalfOpenLimit {
			return false
		}

		cb.counts.InFlight++

		return true
	}

	return false
}

// RecordSuccess records a completed request.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.counts.State {
	case StateClosed:
		cb.counts.Failures = 0

	case StateHalfOpen:
		cb.release()
		cb.counts.Successes++

		if cb.counts.Successes >= cb.cfg.HalfOpenLimit {
			cb.setState(StateClosed)
		}
	}
}

// RecordFailure records a failed request. Any failure while half-open
// reopens the circuit.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.counts.LastFailure = cb.now()

	switch cb.counts.State {
	case StateClosed:
		cb.counts.Failures++

		if cb.counts.Failures >= cb.cfg.MaxFailures {
			cb.setState(StateOpen)
		}

	case StateHalfOpen:
		cb.release()
		cb.setState(StateOpen)
	}
}

// State returns the current state.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.counts.State
}

// Snapshot returns a copy of the current counters.
func (cb *CircuitBreaker) Snapshot() Counts {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return cb.counts
}

func (cb *CircuitBreaker) release() {
	if cb.counts.InFlight > 0 {
		cb.counts.InFlight--
	}
}

// setState must be called with the lock held.
func (cb *CircuitBreaker) setState(to State) {
	from := cb.counts.State
	if from == to {
		return
	}

	cb.counts.State = to
	cb.counts.Failures = 0
	cb.counts.Successes = 0

	if to != StateHalfOpen {
		cb.counts.InFlight = 0
	}

	if cb.onChange != nil {
		go cb.onChange(from, to)
	}
}
