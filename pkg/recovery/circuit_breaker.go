package recovery

import (
	"fmt"
	"sync"
	"time"
)

// CircuitState represents the state of the circuit breaker
type CircuitState int

const (
	// StateClosed - normal operation, poll cycles pass through
	StateClosed CircuitState = iota
	// StateOpen - failing, poll cycles skipped until the cooldown elapses
	StateOpen
	// StateHalfOpen - testing recovery, limited cycles allowed
	StateHalfOpen
)

// String returns the string representation of the circuit state
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreaker keeps the polling scheduler from hammering a device that
// keeps failing whole poll cycles. After MaxFailures consecutive failures
// the circuit opens and cycles are skipped until the cooldown elapses; a
// bounded number of half-open probes then decides between closing again and
// reopening.
type CircuitBreaker struct {
	maxFailures   int
	cooldown      time.Duration
	halfOpenMax   int

	state            CircuitState
	failures         int
	lastFailureTime  time.Time
	halfOpenAttempts int

	mu sync.Mutex
}

// CircuitBreakerConfig holds configuration for a breaker
type CircuitBreakerConfig struct {
	MaxFailures int           // consecutive failures before opening, default 5
	Cooldown    time.Duration // open duration before half-open probes, default 30s
	HalfOpenMax int           // probes allowed while half-open, default 2
}

// NewCircuitBreaker creates a breaker with the given configuration
func NewCircuitBreaker(config CircuitBreakerConfig) *CircuitBreaker {
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.Cooldown == 0 {
		config.Cooldown = 30 * time.Second
	}
	if config.HalfOpenMax == 0 {
		config.HalfOpenMax = 2
	}

	return &CircuitBreaker{
		maxFailures: config.MaxFailures,
		cooldown:    config.Cooldown,
		halfOpenMax: config.HalfOpenMax,
		state:       StateClosed,
	}
}

// Call executes fn if the circuit allows it and records the outcome
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.beforeCall(); err != nil {
		return err
	}

	err := fn()

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.onFailure()
	} else {
		cb.onSuccess()
	}
	return err
}

func (cb *CircuitBreaker) beforeCall() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return nil

	case StateOpen:
		if time.Since(cb.lastFailureTime) > cb.cooldown {
			cb.state = StateHalfOpen
			cb.halfOpenAttempts = 0
			return nil
		}
		return fmt.Errorf("circuit open after %d failures, cooling down %.0fs more",
			cb.failures, time.Until(cb.lastFailureTime.Add(cb.cooldown)).Seconds())

	case StateHalfOpen:
		if cb.halfOpenAttempts >= cb.halfOpenMax {
			return fmt.Errorf("circuit half-open, probe budget exhausted")
		}
		cb.halfOpenAttempts++
		return nil

	default:
		return fmt.Errorf("circuit in unknown state")
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.failures++
	cb.lastFailureTime = time.Now()

	switch cb.state {
	case StateClosed:
		if cb.failures >= cb.maxFailures {
			cb.state = StateOpen
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.halfOpenAttempts = 0
	}
}

func (cb *CircuitBreaker) onSuccess() {
	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		if cb.halfOpenAttempts >= cb.halfOpenMax {
			cb.state = StateClosed
			cb.failures = 0
			cb.halfOpenAttempts = 0
		}
	}
}

// State returns the current circuit state
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Failures returns the current consecutive failure count
func (cb *CircuitBreaker) Failures() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.failures
}

// Reset manually closes the circuit
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenAttempts = 0
}
