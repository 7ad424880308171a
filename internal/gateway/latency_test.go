package gateway

import (
	"math"
	"testing"
	"time"
)

func ms(v float64) time.Duration { return time.Duration(v * float64(time.Millisecond)) }

func TestLatencyTracker_Empty(t *testing.T) {
	lt := NewLatencyTracker(100)
	if p := lt.Snapshot(); p != (Percentiles{}) {
		t.Errorf("empty tracker: expected zero value, got %+v", p)
	}
}

func TestLatencyTracker_SingleSample(t *testing.T) {
	lt := NewLatencyTracker(100)
	lt.Record(ms(42.5))

	p := lt.Snapshot()
	if p.P50 != 42.5 || p.P95 != 42.5 || p.P99 != 42.5 || p.Count != 1 {
		t.Errorf("single sample: got %+v", p)
	}
}

func TestLatencyTracker_Percentiles(t *testing.T) {
	lt := NewLatencyTracker(10000)
	for i := 1; i <= 100; i++ {
		lt.Record(ms(float64(i)))
	}

	p := lt.Snapshot()
	// linear interpolation over 1..100
	if math.Abs(p.P50-50.5) > 1e-9 {
		t.Errorf("p50: got %f, want 50.5", p.P50)
	}
	if math.Abs(p.P95-95.05) > 1e-9 {
		t.Errorf("p95: got %f, want 95.05", p.P95)
	}
	if math.Abs(p.P99-99.01) > 1e-9 {
		t.Errorf("p99: got %f, want 99.01", p.P99)
	}
}

func TestLatencyTracker_Wraparound(t *testing.T) {
	lt := NewLatencyTracker(10)
	for i := 1; i <= 20; i++ {
		lt.Record(ms(float64(i)))
	}

	p := lt.Snapshot()
	if p.Count != 10 {
		t.Fatalf("Count = %d, want 10", p.Count)
	}
	// retained samples are 11..20
	if math.Abs(p.P50-15.5) > 1e-9 {
		t.Errorf("p50 after wraparound: got %f, want 15.5", p.P50)
	}
}
