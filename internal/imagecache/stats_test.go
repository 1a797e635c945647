package imagecache

import (
	"testing"
	"time"
)

func TestLatencySnapshotPercentiles(t *testing.T) {
	stats := NewLatency(time.Hour)
	for _, ms := range []int{100, 200, 300, 400, 500} {
		stats.Record(time.Duration(ms) * time.Millisecond)
	}

	snap := stats.Snapshot()
	if snap.Count != 5 {
		t.Fatalf("expected count=5, got %d", snap.Count)
	}
	if snap.MinMs != 100 {
		t.Fatalf("expected min=100, got %f", snap.MinMs)
	}
	if snap.MaxMs != 500 {
		t.Fatalf("expected max=500, got %f", snap.MaxMs)
	}
	if snap.AvgMs != 300 {
		t.Fatalf("expected avg=300, got %f", snap.AvgMs)
	}
	if snap.P50Ms != 300 {
		t.Fatalf("expected p50=300, got %f", snap.P50Ms)
	}
	if snap.P95Ms != 480 {
		t.Fatalf("expected p95=480, got %f", snap.P95Ms)
	}
	if snap.P99Ms != 496 {
		t.Fatalf("expected p99=496, got %f", snap.P99Ms)
	}
}

func TestLatencyPrunesExpiredSamples(t *testing.T) {
	stats := NewLatency(10 * time.Millisecond)
	stats.Record(100 * time.Millisecond)
	time.Sleep(25 * time.Millisecond)

	snap := stats.Snapshot()
	if snap.Count != 0 {
		t.Fatalf("expected count=0 after prune, got %d", snap.Count)
	}

	stats.Record(200 * time.Millisecond)
	snap = stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1 for fresh sample, got %d", snap.Count)
	}
	if snap.MinMs != 200 || snap.MaxMs != 200 {
		t.Fatalf("expected min=max=200, got min=%f max=%f", snap.MinMs, snap.MaxMs)
	}
}

func TestLatencyRecordClampsNegativeDuration(t *testing.T) {
	stats := NewLatency(time.Hour)
	stats.Record(-10 * time.Millisecond)
	snap := stats.Snapshot()
	if snap.Count != 1 {
		t.Fatalf("expected count=1, got %d", snap.Count)
	}
	if snap.MinMs != 0 || snap.MaxMs != 0 {
		t.Fatalf("expected clamped duration=0, got min=%f max=%f", snap.MinMs, snap.MaxMs)
	}
}

func TestLatencyKeepsSubMillisecondDurations(t *testing.T) {
	stats := NewLatency(time.Hour)
	stats.Record(250 * time.Microsecond)
	stats.Record(750 * time.Microsecond)

	snap := stats.Snapshot()
	if snap.MinMs != 0.25 || snap.MaxMs != 0.75 {
		t.Fatalf("expected min=0.25 max=0.75, got min=%f max=%f", snap.MinMs, snap.MaxMs)
	}
	if snap.AvgMs != 0.5 {
		t.Fatalf("expected avg=0.5, got %f", snap.AvgMs)
	}
}

func TestStatsAdd(t *testing.T) {
	a := Stats{Requests: 2, Hits: 1, Misses: 1, TasksSpawned: 1, Ready: 1}
	b := Stats{Requests: 3, Misses: 3, TasksSpawned: 2, Failed: 1, Pending: 1}

	sum := a.Add(b)
	if sum.Requests != 5 || sum.Misses != 4 || sum.TasksSpawned != 3 {
		t.Fatalf("unexpected sum %+v", sum)
	}
	if sum.Ready != 1 || sum.Failed != 1 || sum.Pending != 1 {
		t.Fatalf("unexpected status counts %+v", sum)
	}
}
