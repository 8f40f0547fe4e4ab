package metrics

import (
	"testing"
	"time"
)

func TestLatencyTrackerPercentiles(t *testing.T) {
	lt := NewLatencyTracker(100)
	for i := 1; i <= 100; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	s := lt.Stats()
	if s.Samples != 100 || s.Count != 100 {
		t.Fatalf("samples/count = %d/%d", s.Samples, s.Count)
	}
	tests := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"min", s.Min, time.Millisecond},
		{"max", s.Max, 100 * time.Millisecond},
		{"p50", s.P50, 50 * time.Millisecond},
		{"p99", s.P99, 99 * time.Millisecond},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestLatencyTrackerWindowDropsOldest(t *testing.T) {
	lt := NewLatencyTracker(3)
	for _, ms := range []int{100, 1, 2, 3} {
		lt.Record(time.Duration(ms) * time.Millisecond)
	}

	s := lt.Stats()
	if s.Samples != 3 || s.Count != 4 {
		t.Fatalf("samples/count = %d/%d, want 3/4", s.Samples, s.Count)
	}
	if s.Max != 3*time.Millisecond {
		t.Errorf("max = %v, oldest sample not evicted", s.Max)
	}
}

func TestLatencyTrackerEmpty(t *testing.T) {
	if s := NewLatencyTracker(0).Stats(); s != (LatencyStats{}) {
		t.Errorf("Stats() = %+v, want zero", s)
	}
}

func TestDispatchMetrics(t *testing.T) {
	m := NewDispatchMetrics()
	m.RecordScan(3, 2, 1, 0, time.Millisecond)
	m.RecordScan(1, 0, 0, 1, time.Millisecond)

	got := m.ToMap()
	want := map[string]int64{"scans": 2, "due": 4, "sent": 2, "skipped": 1, "failed": 1}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %v, want %d", k, got[k], v)
		}
	}
	if _, ok := got["last_scan"]; !ok {
		t.Error("last_scan missing")
	}
}
