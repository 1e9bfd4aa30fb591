package loadtest

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Stats accumulates the outcome of every transaction a Runner submits. It
// is safe for concurrent use by worker goroutines.
//
// Grounded on pkg/infra/timekeeper.go's TimeKeepers (per-transaction
// latency slices, sorted once for percentile lookups) and
// pkg/infra/metric.go's MetricInstance (an atomic abort counter).
type Stats struct {
	mu         sync.Mutex
	latencies  []time.Duration
	abortCount int32
	started    time.Time
	finished   time.Time
}

// NewStats returns a Stats ready to record expectedTx outcomes.
func NewStats(expectedTx int) *Stats {
	return &Stats{latencies: make([]time.Duration, 0, expectedTx)}
}

// Start marks the beginning of the run, for the achieved-TPS calculation.
func (s *Stats) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started = timeNow()
}

// Finish marks the end of the run.
func (s *Stats) Finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finished = timeNow()
}

// RecordSuccess records a committed transaction's end-to-end latency.
func (s *Stats) RecordSuccess(latency time.Duration) {
	s.mu.Lock()
	s.latencies = append(s.latencies, latency)
	s.mu.Unlock()
}

// RecordAbort records a transaction that failed at any stage (endorsement,
// submission, or commit).
func (s *Stats) RecordAbort() {
	atomic.AddInt32(&s.abortCount, 1)
}

// Report is the summary Stats produces once a run completes.
type Report struct {
	TotalTx        int
	CommittedTx    int
	AbortCount     int
	AbortRate      float64
	AverageLatency time.Duration
	P50Latency     time.Duration
	P95Latency     time.Duration
	P99Latency     time.Duration
	Duration       time.Duration
	TPS            float64
}

// Summary computes a Report from everything recorded so far.
func (s *Stats) Summary() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	sorted := make([]time.Duration, len(s.latencies))
	copy(sorted, s.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	committed := len(sorted)
	aborted := int(atomic.LoadInt32(&s.abortCount))
	total := committed + aborted

	duration := s.finished.Sub(s.started)

	report := Report{
		TotalTx:     total,
		CommittedTx: committed,
		AbortCount:  aborted,
		Duration:    duration,
	}
	if total > 0 {
		report.AbortRate = float64(aborted) / float64(total)
	}
	if duration > 0 {
		report.TPS = float64(committed) / duration.Seconds()
	}
	if committed > 0 {
		report.AverageLatency = averageDuration(sorted)
		report.P50Latency = percentile(sorted, 50)
		report.P95Latency = percentile(sorted, 95)
		report.P99Latency = percentile(sorted, 99)
	}
	return report
}

func averageDuration(sorted []time.Duration) time.Duration {
	var total time.Duration
	for _, d := range sorted {
		total += d
	}
	return total / time.Duration(len(sorted))
}

// percentile returns the p-th percentile latency from a slice already
// sorted ascending, clamping the index to the slice's bounds.
func percentile(sorted []time.Duration, p int) time.Duration {
	index := int(float64(p) / 100.0 * float64(len(sorted)))
	if index < 0 {
		index = 0
	} else if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

// timeNow is a thin indirection so tests could substitute a fixed clock;
// production always uses the wall clock.
var timeNow = time.Now
