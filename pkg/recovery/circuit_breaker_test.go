package recovery

import (
	"fmt"
	"testing"
	"time"
)

func TestCircuitBreakerNormalOperation(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 3, Cooldown: time.Second})

	for i := 0; i < 5; i++ {
		if err := cb.Call(func() error { return nil }); err != nil {
			t.Fatalf("call %d failed: %v", i, err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v, expected CLOSED", cb.State())
	}
}

func TestCircuitBreakerOpensAfterFailures(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 3, Cooldown: time.Hour})

	for i := 0; i < 3; i++ {
		_ = cb.Call(func() error { return fmt.Errorf("device dead") })
	}
	if cb.State() != StateOpen {
		t.Fatalf("state = %v after %d failures, expected OPEN", cb.State(), cb.Failures())
	}

	// Calls are now rejected without running the function
	ran := false
	err := cb.Call(func() error { ran = true; return nil })
	if err == nil {
		t.Error("open circuit allowed a call")
	}
	if ran {
		t.Error("open circuit executed the function")
	}
}

func TestCircuitBreakerRecovery(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures: 2,
		Cooldown:    10 * time.Millisecond,
		HalfOpenMax: 2,
	})

	_ = cb.Call(func() error { return fmt.Errorf("down") })
	_ = cb.Call(func() error { return fmt.Errorf("down") })
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, expected OPEN", cb.State())
	}

	time.Sleep(15 * time.Millisecond)

	// Half-open probes succeed, circuit closes
	if err := cb.Call(func() error { return nil }); err != nil {
		t.Fatalf("first probe rejected: %v", err)
	}
	if err := cb.Call(func() error { return nil }); err != nil {
		t.Fatalf("second probe rejected: %v", err)
	}
	if cb.State() != StateClosed {
		t.Errorf("state = %v after successful probes, expected CLOSED", cb.State())
	}
}

func TestCircuitBreakerReopensOnProbeFailure(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		MaxFailures: 1,
		Cooldown:    10 * time.Millisecond,
	})

	_ = cb.Call(func() error { return fmt.Errorf("down") })
	time.Sleep(15 * time.Millisecond)

	_ = cb.Call(func() error { return fmt.Errorf("still down") })
	if cb.State() != StateOpen {
		t.Errorf("state = %v after failed probe, expected OPEN", cb.State())
	}
}

func TestCircuitBreakerReset(t *testing.T) {
	cb := NewCircuitBreaker(CircuitBreakerConfig{MaxFailures: 1, Cooldown: time.Hour})

	_ = cb.Call(func() error { return fmt.Errorf("down") })
	if cb.State() != StateOpen {
		t.Fatalf("state = %v, expected OPEN", cb.State())
	}

	cb.Reset()
	if cb.State() != StateClosed || cb.Failures() != 0 {
		t.Errorf("reset left state=%v failures=%d", cb.State(), cb.Failures())
	}
}
