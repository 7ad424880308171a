package redis

import (
	"errors"
	"testing"
	"time"
)

var errDown = errors.New("connection refused")

// fakeClock drives the breaker's cooldown without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(maxFailures int) (*CircuitBreaker, *fakeClock, *[]string) {
	clock := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(maxFailures, 10*time.Second)
	cb.now = clock.now
	var seen []string
	cb.OnStateChange = func(from, to State) {
		// The lock must already be released here.
		_ = cb.CurrentState()
		seen = append(seen, from.String()+">"+to.String())
	}
	return cb, clock, &seen
}

func fail() error { return errDown }
func ok() error   { return nil }

// ────────────────────────────────────────────────────────────
// Closed
// ────────────────────────────────────────────────────────────

func TestBreaker_ClosedPassesResults(t *testing.T) {
	cb, _, _ := newTestBreaker(3)
	if cb.CurrentState() != StateClosed {
		t.Fatalf("expected closed, got %v", cb.CurrentState())
	}
	if err := cb.Execute(ok); err != nil {
		t.Errorf("expected nil, got %v", err)
	}
	if err := cb.Execute(fail); !errors.Is(err, errDown) {
		t.Errorf("expected the write error, got %v", err)
	}
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _, _ := newTestBreaker(3)
	cb.Execute(fail)
	cb.Execute(fail)
	cb.Execute(ok)
	cb.Execute(fail)
	cb.Execute(fail)
	if cb.CurrentState() != StateClosed {
		t.Errorf("failures are consecutive; expected closed, got %v", cb.CurrentState())
	}
}

// ────────────────────────────────────────────────────────────
// Open and probing
// ────────────────────────────────────────────────────────────

func TestBreaker_OpensAndRejectsDuringCooldown(t *testing.T) {
	cb, clock, _ := newTestBreaker(3)
	for i := 0; i < 3; i++ {
		cb.Execute(fail)
	}
	if cb.CurrentState() != StateOpen || cb.Trips() != 1 {
		t.Fatalf("expected open after 3 failures, got %v trips=%d", cb.CurrentState(), cb.Trips())
	}

	called := false
	clock.advance(9 * time.Second)
	if err := cb.Execute(func() error { called = true; return nil }); err != ErrCircuitOpen {
		t.Errorf("expected ErrCircuitOpen, got %v", err)
	}
	if called {
		t.Error("write must not run while open")
	}
}

func TestBreaker_SingleProbe(t *testing.T) {
	cb, clock, _ := newTestBreaker(1)
	cb.Execute(fail)
	clock.advance(10 * time.Second)

	if err := cb.Allow(); err != nil {
		t.Fatalf("probe should be allowed, got %v", err)
	}
	if cb.CurrentState() != StateHalfOpen {
		t.Fatalf("expected half-open, got %v", cb.CurrentState())
	}
	if err := cb.Allow(); err != ErrCircuitOpen {
		t.Errorf("second write during the probe must be rejected, got %v", err)
	}
	cb.Record(nil)
	if cb.CurrentState() != StateClosed {
		t.Errorf("expected closed after a good probe, got %v", cb.CurrentState())
	}
}

func TestBreaker_FailedProbeReopens(t *testing.T) {
	cb, clock, seen := newTestBreaker(2)
	cb.Execute(fail)
	cb.Execute(fail)
	clock.advance(11 * time.Second)

	if err := cb.Execute(fail); !errors.Is(err, errDown) {
		t.Fatalf("probe should run and fail, got %v", err)
	}
	if cb.CurrentState() != StateOpen || cb.Trips() != 2 {
		t.Fatalf("expected reopened with 2 trips, got %v trips=%d", cb.CurrentState(), cb.Trips())
	}

	// The cooldown restarts from the failed probe.
	clock.advance(5 * time.Second)
	if err := cb.Execute(ok); err != ErrCircuitOpen {
		t.Errorf("expected ErrCircuitOpen inside the new cooldown, got %v", err)
	}
	clock.advance(5 * time.Second)
	if err := cb.Execute(ok); err != nil {
		t.Errorf("expected probe to pass, got %v", err)
	}

	want := []string{"closed>open", "open>half-open", "half-open>open", "open>half-open", "half-open>closed"}
	if len(*seen) != len(want) {
		t.Fatalf("transitions: got %v, want %v", *seen, want)
	}
	for i := range want {
		if (*seen)[i] != want[i] {
			t.Errorf("transition %d: got %s, want %s", i, (*seen)[i], want[i])
		}
	}
}

func TestState_String(t *testing.T) {
	for s, want := range map[State]string{StateClosed: "closed", StateOpen: "open", StateHalfOpen: "half-open", State(9): "unknown"} {
		if s.String() != want {
			t.Errorf("State(%d) = %q, want %q", s, s.String(), want)
		}
	}
}
