// Package circuitbreaker tracks consecutive transient failures per Zakeke
// endpoint and short-circuits calls to an endpoint that keeps failing.
package circuitbreaker

import (
	"errors"
	"sync"
	"time"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type state int

const (
	stateClosed state = iota
	stateOpen
	stateHalfOpen
)

func (s state) String() string {
	switch s {
	case stateOpen:
		return "open"
	case stateHalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

type endpointState struct {
	state               state
	consecutiveFailures int
	openedAt            time.Time
}

// CircuitBreaker is safe for concurrent use. Keys are endpoint labels.
type CircuitBreaker struct {
	mu        sync.Mutex
	states    map[string]*endpointState
	threshold int
	cooldown  time.Duration
	now       func() time.Time
}

// New returns a breaker that opens after threshold consecutive failures
// and lets a single trial request through once cooldown has elapsed.
func New(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold < 1 {
		threshold = 1
	}
	return &CircuitBreaker{
		states:    make(map[string]*endpointState),
		threshold: threshold,
		cooldown:  cooldown,
		now:       time.Now,
	}
}

// WithClock replaces the time source. Used by tests.
func (cb *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	cb.now = now
	return cb
}

func (cb *CircuitBreaker) Allow(key string) error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[key]
	if !ok {
		return nil
	}

	switch s.state {
	case stateClosed:
		return nil
	case stateOpen:
		if cb.now().Sub(s.openedAt) >= cb.cooldown {
			s.state = stateHalfOpen
			return nil
		}
		return ErrCircuitOpen
	case stateHalfOpen:
		return ErrCircuitOpen
	default:
		return nil
	}
}

func (cb *CircuitBreaker) RecordSuccess(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[key]
	if !ok {
		return
	}
	s.state = stateClosed
	s.consecutiveFailures = 0
}

func (cb *CircuitBreaker) RecordFailure(key string) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	s, ok := cb.states[key]
	if !ok {
		s = &endpointState{}
		cb.states[key] = s
	}

	s.consecutiveFailures++
	if s.state == stateHalfOpen || s.consecutiveFailures >= cb.threshold {
		s.state = stateOpen
		s.openedAt = cb.now()
	}
}

// Snapshot reports the state of every endpoint that has recorded a failure.
func (cb *CircuitBreaker) Snapshot() map[string]string {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	out := make(map[string]string, len(cb.states))
	for key, s := range cb.states {
		out[key] = s.state.String()
	}
	return out
}
