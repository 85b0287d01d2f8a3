package resilience

import (
	"testing"
	"time"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(cfg CircuitBreakerConfig) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 1, 14, 12, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker("embed", cfg)
	cb.now = clock.now
	return cb, clock
}

func TestCircuitState_String(t *testing.T) {
	tests := []struct {
		state CircuitState
		want  string
	}{
		{StateClosed, "closed"},
		{StateOpen, "open"},
		{StateHalfOpen, "half-open"},
		{CircuitState(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestCircuitBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 3, Cooldown: time.Second})

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want closed: success should reset the count", cb.State())
	}

	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}
	if cb.Allow() {
		t.Error("Allow() = true while open")
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{
		FailureThreshold: 1, SuccessThreshold: 2, Cooldown: time.Second, HalfOpenMaxRequests: 1,
	})
	cb.RecordFailure()

	clock.advance(999 * time.Millisecond)
	if cb.Allow() {
		t.Fatal("Allow() = true before cooldown elapsed")
	}

	clock.advance(time.Millisecond)
	if !cb.Allow() {
		t.Fatal("Allow() = false after cooldown")
	}
	if cb.State() != StateHalfOpen {
		t.Fatalf("State() = %v, want half-open", cb.State())
	}
	if cb.Allow() {
		t.Error("second concurrent probe should be rejected")
	}

	cb.RecordSuccess()
	if !cb.Allow() {
		t.Fatal("Allow() = false after successful probe")
	}
	cb.RecordSuccess()
	if cb.State() != StateClosed {
		t.Fatalf("State() = %v, want closed", cb.State())
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Second})
	cb.RecordFailure()
	clock.advance(time.Second)

	if !cb.Allow() {
		t.Fatal("expected probe")
	}
	cb.RecordFailure()
	if cb.State() != StateOpen {
		t.Fatalf("State() = %v, want open", cb.State())
	}
	if cb.Allow() {
		t.Error("cooldown should restart on reopen")
	}
}

func TestCircuitBreaker_DisabledWithZeroThreshold(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{})
	for i := 0; i < 100; i++ {
		cb.RecordFailure()
	}
	if !cb.Allow() || cb.State() != StateClosed {
		t.Error("disabled breaker should stay closed")
	}
}

func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	cb, _ := newTestBreaker(CircuitBreakerConfig{FailureThreshold: 1, Cooldown: time.Second})

	var transitions []string
	cb.OnStateChange(func(name string, from, to CircuitState) {
		transitions = append(transitions, name+":"+from.String()+"->"+to.String())
	})
	cb.RecordFailure()

	if len(transitions) != 1 || transitions[0] != "embed:closed->open" {
		t.Errorf("transitions = %v", transitions)
	}
}
