package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errBoom = errors.New("boom")

func failing(_ context.Context) error { return errBoom }
func succeeding(_ context.Context) error { return nil }

func TestCircuitBreaker_StaysClosedBelowMinimumCalls(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	// Two failures are 100% of the window, but below MinimumCalls=3.
	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), failing)

	if got := cb.State(); got != CircuitClosed {
		t.Errorf("expected CLOSED below minimum calls, got %s", got)
	}
}

func TestCircuitBreaker_OpensAtFailureRate(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	// 3 failures out of 3: rate 1.0 >= 0.5, min calls reached.
	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), failing)
	}

	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("expected OPEN after 3 failures, got %s", got)
	}

	if err := cb.Execute(context.Background(), succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen while open, got %v", err)
	}
}

func TestCircuitBreaker_MixedOutcomesBelowThresholdStaysClosed(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureRateThreshold: 0.5,
		WindowSize:           5,
		MinimumCalls:         3,
		OpenTimeout:          time.Minute,
	})

	// 1 failure in 5 calls: 20% < 50%.
	_ = cb.Execute(context.Background(), failing)
	for i := 0; i < 4; i++ {
		_ = cb.Execute(context.Background(), succeeding)
	}

	if got := cb.State(); got != CircuitClosed {
		t.Errorf("expected CLOSED at 20%% failure rate, got %s", got)
	}
	rate, samples := cb.FailureRate()
	if samples != 5 || rate != 0.2 {
		t.Errorf("expected rate 0.2 over 5 samples, got %.2f over %d", rate, samples)
	}
}

func TestCircuitBreaker_WindowSlides(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())

	// Old failures fall out of the 5-call window.
	_ = cb.Execute(context.Background(), failing)
	_ = cb.Execute(context.Background(), failing)
	for i := 0; i < 5; i++ {
		_ = cb.Execute(context.Background(), succeeding)
	}

	rate, samples := cb.FailureRate()
	if samples != 5 || rate != 0 {
		t.Errorf("expected rate 0 after window slid past failures, got %.2f over %d", rate, samples)
	}
}

func TestCircuitBreaker_HalfOpenAfterTimeout(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	cb.nowFunc = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), failing)
	}
	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("expected OPEN, got %s", got)
	}

	// Advance past the 2 minute cooldown.
	now = now.Add(2*time.Minute + time.Second)
	if got := cb.State(); got != CircuitHalfOpen {
		t.Fatalf("expected HALF_OPEN after cooldown, got %s", got)
	}

	// Successful probe closes the circuit and clears the window.
	if err := cb.Execute(context.Background(), succeeding); err != nil {
		t.Fatalf("probe should pass through: %v", err)
	}
	if got := cb.State(); got != CircuitClosed {
		t.Errorf("expected CLOSED after successful probe, got %s", got)
	}
	if _, samples := cb.FailureRate(); samples != 0 {
		t.Errorf("expected cleared window after close, got %d samples", samples)
	}
}

func TestCircuitBreaker_FailedProbeReopens(t *testing.T) {
	now := time.Now()
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	cb.nowFunc = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), failing)
	}
	now = now.Add(3 * time.Minute)

	// Probe fails: circuit reopens with a fresh cooldown.
	_ = cb.Execute(context.Background(), failing)
	if got := cb.State(); got != CircuitOpen {
		t.Fatalf("expected OPEN after failed probe, got %s", got)
	}
	if err := cb.Execute(context.Background(), succeeding); !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected rejection during renewed cooldown, got %v", err)
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var transitions []string
	cfg := DefaultCircuitBreakerConfig()
	cfg.OnStateChange = func(from, to CircuitState) {
		transitions = append(transitions, from.String()+">"+to.String())
	}
	cb := NewCircuitBreaker(cfg)

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), failing)
	}
	cb.Reset()

	want := []string{"CLOSED>OPEN", "OPEN>CLOSED"}
	if len(transitions) != len(want) {
		t.Fatalf("expected %v, got %v", want, transitions)
	}
	for i := range want {
		if transitions[i] != want[i] {
			t.Errorf("transition %d: expected %s, got %s", i, want[i], transitions[i])
		}
	}
}

func TestExecuteVal_PreservesValue(t *testing.T) {
	cb := NewCircuitBreaker(DefaultCircuitBreakerConfig())
	got, err := ExecuteVal(context.Background(), cb, func(_ context.Context) (int, error) {
		return 42, nil
	})
	if err != nil || got != 42 {
		t.Errorf("expected 42/nil, got %d/%v", got, err)
	}
}
