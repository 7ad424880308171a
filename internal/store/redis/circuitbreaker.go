package redis

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen is returned while the breaker rejects writes.
var ErrCircuitOpen = errors.New("redis: circuit breaker is open")

// State represents the circuit breaker state.
type State int

const (
	StateClosed   State = 0 // writes pass through
	StateOpen     State = 1 // writes rejected until the cooldown ends
	StateHalfOpen State = 2 // a single probe write in flight
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker counts consecutive write failures. At maxFailures it opens and
// rejects writes for the cooldown. The first write after that is a probe:
// success closes the breaker, failure reopens it for another cooldown. Writes
// arriving while the probe is outstanding are rejected.
type CircuitBreaker struct {
	mu       sync.Mutex
	state    State
	failures int
	openedAt time.Time
	probing  bool
	trips    int

	maxFailures int
	cooldown    time.Duration
	now         func() time.Time

	// OnStateChange is called after every transition, without the lock held.
	OnStateChange func(from, to State)
}

type transition struct{ from, to State }

// NewCircuitBreaker creates a closed breaker.
func NewCircuitBreaker(maxFailures int, cooldown time.Duration) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
	}
}

// Allow reports whether a write may proceed, returning ErrCircuitOpen if not.
// Every nil return must be followed by Record.
func (cb *CircuitBreaker) Allow() error {
	cb.mu.Lock()
	var t *transition
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		t = cb.set(StateHalfOpen)
		cb.probing = true
	case StateHalfOpen:
		if cb.probing {
			cb.mu.Unlock()
			return ErrCircuitOpen
		}
		cb.probing = true
	}
	cb.mu.Unlock()
	cb.notify(t)
	return nil
}

// Record reports the outcome of a write that Allow let through.
func (cb *CircuitBreaker) Record(err error) {
	cb.mu.Lock()
	var t *transition
	switch {
	case err == nil:
		cb.failures = 0
		if cb.state == StateHalfOpen {
			t = cb.set(StateClosed)
		}
	case cb.state == StateHalfOpen:
		t = cb.trip()
	default:
		cb.failures++
		if cb.state == StateClosed && cb.failures >= cb.maxFailures {
			t = cb.trip()
		}
	}
	cb.probing = false
	cb.mu.Unlock()
	cb.notify(t)
}

// Execute runs fn if the breaker allows it and records the result.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if err := cb.Allow(); err != nil {
		return err
	}
	err := fn()
	cb.Record(err)
	return err
}

// CurrentState returns the breaker state.
func (cb *CircuitBreaker) CurrentState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Trips returns how many times the breaker has opened.
func (cb *CircuitBreaker) Trips() int {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.trips
}

func (cb *CircuitBreaker) trip() *transition {
	cb.openedAt = cb.now()
	cb.trips++
	return cb.set(StateOpen)
}

func (cb *CircuitBreaker) set(to State) *transition {
	if cb.state == to {
		return nil
	}
	t := &transition{from: cb.state, to: to}
	cb.state = to
	if to == StateClosed {
		cb.failures = 0
	}
	return t
}

func (cb *CircuitBreaker) notify(t *transition) {
	if t != nil && cb.OnStateChange != nil {
		cb.OnStateChange(t.from, t.to)
	}
}
