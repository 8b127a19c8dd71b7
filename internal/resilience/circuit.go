// Package resilience provides circuit breaker and retry patterns for external
// service calls.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// CircuitState represents the state of a circuit breaker.
type CircuitState int

const (
	// CircuitClosed is the normal operating state; requests flow through.
	CircuitClosed CircuitState = iota
	// CircuitOpen means the recent failure rate crossed the threshold;
	// requests are rejected immediately.
	CircuitOpen
	// CircuitHalfOpen allows a single probe request to test recovery.
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "CLOSED"
	case CircuitOpen:
		return "OPEN"
	case CircuitHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// ErrCircuitOpen is returned when a call is rejected because the circuit is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// CircuitBreakerConfig controls circuit breaker behavior. The breaker
// evaluates the failure rate over a sliding window of recent call outcomes
// rather than counting consecutive failures, so a lone success between
// failures does not mask a degraded dependency.
type CircuitBreakerConfig struct {
	// FailureRateThreshold opens the circuit when the fraction of failed
	// calls in the window reaches it. Default: 0.5.
	FailureRateThreshold float64

	// WindowSize is how many recent call outcomes are evaluated. Default: 5.
	WindowSize int

	// MinimumCalls is the number of recorded outcomes required before the
	// failure rate is evaluated at all. Default: 3.
	MinimumCalls int

	// OpenTimeout is how long the circuit stays open before transitioning to
	// half-open. Default: 2m.
	OpenTimeout time.Duration

	// ShouldTrip optionally overrides which errors count as failures. If nil,
	// every non-nil error counts.
	ShouldTrip func(err error) bool

	// OnStateChange is called when the circuit transitions between states.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig returns the breaker settings used for the
// government market APIs.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureRateThreshold: 0.5,
		WindowSize:           5,
		MinimumCalls:         3,
		OpenTimeout:          2 * time.Minute,
	}
}

// CircuitBreaker gates calls to a single external dependency.
type CircuitBreaker struct {
	cfg   CircuitBreakerConfig
	mu    sync.Mutex
	state CircuitState

	// window holds the most recent call outcomes, true = failure.
	window   []bool
	openedAt time.Time

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given config.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.FailureRateThreshold <= 0 || cfg.FailureRateThreshold > 1 {
		cfg.FailureRateThreshold = 0.5
	}
	if cfg.WindowSize <= 0 {
		cfg.WindowSize = 5
	}
	if cfg.MinimumCalls <= 0 {
		cfg.MinimumCalls = 3
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 2 * time.Minute
	}
	return &CircuitBreaker{
		cfg:     cfg,
		state:   CircuitClosed,
		nowFunc: time.Now,
	}
}

// Execute runs fn through the circuit breaker. Returns ErrCircuitOpen if the
// circuit is open; otherwise records the outcome in the sliding window.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.allowRequest(); err != nil {
		return err
	}

	err := fn(ctx)
	cb.recordResult(err)
	return err
}

// ExecuteVal is like Execute but preserves a return value.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if err := cb.allowRequest(); err != nil {
		return zero, err
	}

	val, err := fn(ctx)
	cb.recordResult(err)
	return val, err
}

// State returns the current circuit state, accounting for open→half-open
// timeout expiry.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == CircuitOpen && cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.OpenTimeout {
		return CircuitHalfOpen
	}
	return cb.state
}

// Reset forces the circuit back to closed and clears the window. Useful for
// manual recovery.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	old := cb.state
	cb.state = CircuitClosed
	cb.window = cb.window[:0]
	if old != CircuitClosed && cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(old, CircuitClosed)
	}
}

// FailureRate returns the current windowed failure rate and sample count.
func (cb *CircuitBreaker) FailureRate() (rate float64, samples int) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failureRateLocked(), len(cb.window)
}

func (cb *CircuitBreaker) failureRateLocked() float64 {
	if len(cb.window) == 0 {
		return 0
	}
	failures := 0
	for _, failed := range cb.window {
		if failed {
			failures++
		}
	}
	return float64(failures) / float64(len(cb.window))
}

func (cb *CircuitBreaker) allowRequest() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == CircuitOpen {
		if cb.nowFunc().Sub(cb.openedAt) >= cb.cfg.OpenTimeout {
			cb.transition(CircuitHalfOpen)
			return nil // allow probe
		}
		return ErrCircuitOpen
	}
	return nil
}

func (cb *CircuitBreaker) recordResult(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	shouldTrip := cb.cfg.ShouldTrip
	if shouldTrip == nil {
		shouldTrip = func(e error) bool { return e != nil }
	}
	failed := err != nil && shouldTrip(err)

	if cb.state == CircuitHalfOpen {
		if failed {
			// Probe failed: reopen and restart the cooldown.
			cb.openedAt = cb.nowFunc()
			cb.transition(CircuitOpen)
		} else {
			cb.window = cb.window[:0]
			cb.transition(CircuitClosed)
		}
		return
	}

	cb.window = append(cb.window, failed)
	if len(cb.window) > cb.cfg.WindowSize {
		cb.window = cb.window[len(cb.window)-cb.cfg.WindowSize:]
	}

	if cb.state == CircuitClosed &&
		len(cb.window) >= cb.cfg.MinimumCalls &&
		cb.failureRateLocked() >= cb.cfg.FailureRateThreshold {
		cb.openedAt = cb.nowFunc()
		cb.transition(CircuitOpen)
	}
}

func (cb *CircuitBreaker) transition(to CircuitState) {
	from := cb.state
	cb.state = to
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
