package imagecache

import (
	"sort"
	"sync"
	"time"
)

type sample struct {
	timestamp  time.Time
	durationUs int64
}

// LatencySnapshot is a point-in-time aggregate of resolution latencies.
type LatencySnapshot struct {
	Count int     `json:"count"`
	MinMs float64 `json:"min_ms"`
	MaxMs float64 `json:"max_ms"`
	AvgMs float64 `json:"avg_ms"`
	P50Ms float64 `json:"p50_ms"`
	P95Ms float64 `json:"p95_ms"`
	P99Ms float64 `json:"p99_ms"`
}

// Latency tracks recent probe durations within a rolling window. It is safe
// for concurrent use and may be shared by several caches.
type Latency struct {
	mu      sync.Mutex
	samples []sample
	maxAge  time.Duration
}

func NewLatency(maxAge time.Duration) *Latency {
	if maxAge <= 0 {
		maxAge = time.Hour
	}
	return &Latency{
		samples: make([]sample, 0, 256),
		maxAge:  maxAge,
	}
}

func (s *Latency) Record(d time.Duration) {
	// Local probes finish well under a millisecond, so keep microseconds.
	durationUs := d.Microseconds()
	if durationUs < 0 {
		durationUs = 0
	}
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	s.samples = append(s.samples, sample{
		timestamp:  now,
		durationUs: durationUs,
	})
}

func (s *Latency) Snapshot() LatencySnapshot {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked(now)
	if len(s.samples) == 0 {
		return LatencySnapshot{}
	}

	values := make([]int64, 0, len(s.samples))
	var sum int64
	for _, sm := range s.samples {
		values = append(values, sm.durationUs)
		sum += sm.durationUs
	}
	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })

	return LatencySnapshot{
		Count: len(values),
		MinMs: usToMs(float64(values[0])),
		MaxMs: usToMs(float64(values[len(values)-1])),
		AvgMs: usToMs(float64(sum) / float64(len(values))),
		P50Ms: usToMs(percentile(values, 50)),
		P95Ms: usToMs(percentile(values, 95)),
		P99Ms: usToMs(percentile(values, 99)),
	}
}

func (s *Latency) pruneLocked(now time.Time) {
	cutoff := now.Add(-s.maxAge)
	writeIdx := 0
	for _, sm := range s.samples {
		if !sm.timestamp.Before(cutoff) {
			s.samples[writeIdx] = sm
			writeIdx++
		}
	}
	s.samples = s.samples[:writeIdx]
}

func usToMs(us float64) float64 { return us / 1000 }

func percentile(sortedValues []int64, pct float64) float64 {
	if len(sortedValues) == 0 {
		return 0
	}
	if pct <= 0 {
		return float64(sortedValues[0])
	}
	if pct >= 100 {
		return float64(sortedValues[len(sortedValues)-1])
	}

	index := (float64(len(sortedValues)-1) * pct) / 100.0
	lower := int(index)
	upper := lower + 1
	if upper >= len(sortedValues) {
		return float64(sortedValues[lower])
	}
	weight := index - float64(lower)
	lo := float64(sortedValues[lower])
	hi := float64(sortedValues[upper])
	return lo + ((hi - lo) * weight)
}

// Stats summarizes one cache's activity.
type Stats struct {
	Requests     int             `json:"requests"`
	Hits         int             `json:"hits"`
	Misses       int             `json:"misses"`
	TasksSpawned int             `json:"tasks_spawned"`
	Ready        int             `json:"ready"`
	Failed       int             `json:"failed"`
	Pending      int             `json:"pending"`
	Latency      LatencySnapshot `json:"latency"`
}

// Add sums the counters of two snapshots. Latency is taken from s.
func (s Stats) Add(o Stats) Stats {
	s.Requests += o.Requests
	s.Hits += o.Hits
	s.Misses += o.Misses
	s.TasksSpawned += o.TasksSpawned
	s.Ready += o.Ready
	s.Failed += o.Failed
	s.Pending += o.Pending
	return s
}
