package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func testBreaker(threshold int, reset time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Now()
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     reset,
	})
	cb.nowFunc = func() time.Time { return now }
	return cb, &now
}

func TestCircuit_OpensAfterThreshold(t *testing.T) {
	cb, _ := testBreaker(3, time.Minute)
	boom := errors.New("boom")

	for i := 0; i < 3; i++ {
		_ = cb.Execute(context.Background(), func(_ context.Context) error { return boom })
	}
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	err := cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuit_SuccessResetsCounter(t *testing.T) {
	cb, _ := testBreaker(3, time.Minute)
	boom := errors.New("boom")

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return boom })
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return boom })
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return nil })
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return boom })

	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want closed", cb.State())
	}
}

func TestCircuit_HalfOpenProbeClosesOnSuccess(t *testing.T) {
	cb, now := testBreaker(1, time.Minute)
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return errors.New("boom") })
	if cb.State() != CircuitOpen {
		t.Fatalf("state = %v, want open", cb.State())
	}

	*now = now.Add(2 * time.Minute)
	if cb.State() != CircuitHalfOpen {
		t.Fatalf("state = %v, want half-open after reset timeout", cb.State())
	}

	if err := cb.Execute(context.Background(), func(_ context.Context) error { return nil }); err != nil {
		t.Fatalf("probe should run: %v", err)
	}
	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, want closed after successful probe", cb.State())
	}
}

func TestCircuit_HalfOpenProbeFailureReopens(t *testing.T) {
	cb, now := testBreaker(1, time.Minute)
	_ = cb.Execute(context.Background(), func(_ context.Context) error { return errors.New("boom") })
	*now = now.Add(2 * time.Minute)

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return errors.New("still down") })
	if cb.State() != CircuitOpen {
		t.Errorf("state = %v, want reopened", cb.State())
	}
}

func TestCircuit_ShouldTripFilter(t *testing.T) {
	ignored := errors.New("client error")
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		ShouldTrip:       func(err error) bool { return !errors.Is(err, ignored) },
	})

	_ = cb.Execute(context.Background(), func(_ context.Context) error { return ignored })
	if cb.State() != CircuitClosed {
		t.Errorf("state = %v, filtered errors must not trip the breaker", cb.State())
	}
}
