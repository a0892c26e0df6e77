// Package reliability implements the resilience primitives that sit in
// front of every provider call: a per-provider circuit breaker and a set
// of retry policies.
package reliability

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/username/llm-orchestrator/internal/domain"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker refuses a call outright.
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrTooManyRequests is returned when a half-open breaker already has a probe in flight.
	ErrTooManyRequests = errors.New("too many requests in half-open state")
)

// DefaultCircuitBreakerConfig mirrors the defaults a gateway-style deployment
// has historically used for a single upstream dependency.
func DefaultCircuitBreakerConfig(name string) domain.CircuitBreakerConfig {
	return domain.CircuitBreakerConfig{
		Enabled:                  true,
		FailureThreshold:         5,
		OpenDuration:             30 * time.Second,
		HalfOpenSuccessThreshold: 3,
	}
}

// CircuitBreaker is a per-dependency Closed/Open/HalfOpen state machine.
//
// Reading State is deliberately stateful: if the breaker has been Open for
// longer than config.OpenDuration, the read itself performs the Open ->
// HalfOpen transition and admits one probe. This keeps allow() and State()
// in agreement on the very first call after the timeout elapses.
type CircuitBreaker struct {
	name   string
	config domain.CircuitBreakerConfig

	mu                  sync.Mutex
	state               domain.CircuitState
	consecutiveFailures int
	halfOpenSuccesses   int
	halfOpenInFlight    bool
	openedAt            time.Time
}

// NewCircuitBreaker constructs a breaker for one named dependency.
func NewCircuitBreaker(name string, config domain.CircuitBreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{
		name:   name,
		config: config,
		state:  domain.StateClosed,
	}
}

// Allow reports whether a call may proceed, performing the Open -> HalfOpen
// transition as a side effect when the open window has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	if !cb.config.Enabled {
		return true
	}

	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case domain.StateClosed:
		return true
	case domain.StateOpen:
		if time.Since(cb.openedAt) < cb.config.OpenDuration {
			return false
		}
		cb.toHalfOpenLocked()
		if cb.halfOpenInFlight {
			return false
		}
		cb.halfOpenInFlight = true
		return true
	case domain.StateHalfOpen:
		if cb.halfOpenInFlight {
			return false
		}
		cb.halfOpenInFlight = true
		return true
	default:
		return true
	}
}

// State returns the current state, performing the same stateful Open ->
// HalfOpen transition Allow does, without consuming a probe slot.
func (cb *CircuitBreaker) State() domain.CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == domain.StateOpen && time.Since(cb.openedAt) >= cb.config.OpenDuration {
		cb.toHalfOpenLocked()
	}
	return cb.state
}

// Execute runs fn under breaker protection. ErrCircuitOpen /
// ErrTooManyRequests are returned without invoking fn at all.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		cb.mu.Lock()
		blockedState := cb.state
		cb.mu.Unlock()
		if blockedState == domain.StateHalfOpen {
			return ErrTooManyRequests
		}
		return ErrCircuitOpen
	}

	err := fn()

	cb.mu.Lock()
	if cb.state == domain.StateHalfOpen {
		cb.halfOpenInFlight = false
	}
	cb.mu.Unlock()

	if err != nil {
		cb.RecordFailure()
	} else {
		cb.RecordSuccess()
	}
	return err
}

// RecordSuccess records a successful call outside of Execute, for callers
// (provider adapters distinguishing cancellation from real failure) that
// need finer control than Execute's blanket err != nil check.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case domain.StateHalfOpen:
		cb.halfOpenInFlight = false
		cb.halfOpenSuccesses++
		if cb.halfOpenSuccesses >= cb.config.HalfOpenSuccessThreshold {
			cb.toClosedLocked()
		}
	case domain.StateClosed:
		cb.consecutiveFailures = 0
	}
}

// RecordFailure records a failed call. Cancellation/timeout must not reach
// this method; the caller decides what counts as a breaker failure.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures++

	switch cb.state {
	case domain.StateClosed:
		if cb.consecutiveFailures >= cb.config.FailureThreshold {
			cb.toOpenLocked()
		}
	case domain.StateHalfOpen:
		cb.toOpenLocked()
	}
}

func (cb *CircuitBreaker) toOpenLocked() {
	if cb.state != domain.StateOpen {
		log.Warn().
			Str("circuit", cb.name).
			Int("consecutive_failures", cb.consecutiveFailures).
			Str("from_state", cb.state.String()).
			Msg("circuit breaker opened")
	}
	cb.state = domain.StateOpen
	cb.openedAt = time.Now()
	cb.halfOpenInFlight = false
	cb.halfOpenSuccesses = 0
}

func (cb *CircuitBreaker) toHalfOpenLocked() {
	log.Info().Str("circuit", cb.name).Msg("circuit breaker entering half-open state")
	cb.state = domain.StateHalfOpen
	cb.halfOpenSuccesses = 0
	cb.halfOpenInFlight = false
}

func (cb *CircuitBreaker) toClosedLocked() {
	log.Info().Str("circuit", cb.name).Msg("circuit breaker closed")
	cb.state = domain.StateClosed
	cb.consecutiveFailures = 0
	cb.halfOpenSuccesses = 0
}

// Reset forces the breaker back to Closed, clearing all counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.state = domain.StateClosed
	cb.consecutiveFailures = 0
	cb.halfOpenSuccesses = 0
	cb.halfOpenInFlight = false
}

// Snapshot returns a point-in-time view suitable for display or telemetry.
func (cb *CircuitBreaker) Snapshot() domain.CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	return domain.CircuitBreakerState{
		State:               cb.state,
		ConsecutiveFailures: cb.consecutiveFailures,
		HalfOpenSuccesses:   cb.halfOpenSuccesses,
		OpenedAt:            cb.openedAt,
		Config:              cb.config,
	}
}

// CircuitBreakerRegistry hands out one breaker per name, creating it with
// DefaultCircuitBreakerConfig on first use.
type CircuitBreakerRegistry struct {
	mu       sync.RWMutex
	breakers map[string]*CircuitBreaker
}

// NewCircuitBreakerRegistry builds an empty registry.
func NewCircuitBreakerRegistry() *CircuitBreakerRegistry {
	return &CircuitBreakerRegistry{breakers: make(map[string]*CircuitBreaker)}
}

// Get returns or lazily creates the breaker for name.
func (r *CircuitBreakerRegistry) Get(name string) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok = r.breakers[name]; ok {
		return cb
	}
	cb = NewCircuitBreaker(name, DefaultCircuitBreakerConfig(name))
	r.breakers[name] = cb
	return cb
}

// GetWithConfig returns or lazily creates the breaker for name using config.
func (r *CircuitBreakerRegistry) GetWithConfig(name string, config domain.CircuitBreakerConfig) *CircuitBreaker {
	r.mu.RLock()
	cb, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return cb
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if cb, ok = r.breakers[name]; ok {
		return cb
	}
	cb = NewCircuitBreaker(name, config)
	r.breakers[name] = cb
	return cb
}

// AllStats returns a snapshot of every breaker in the registry, keyed by name.
func (r *CircuitBreakerRegistry) AllStats() map[string]domain.CircuitBreakerState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]domain.CircuitBreakerState, len(r.breakers))
	for name, cb := range r.breakers {
		out[name] = cb.Snapshot()
	}
	return out
}
