// Package metrics provides latency tracking and Prometheus collectors for the labeler.
package metrics

import (
	"sort"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
)

// LatencyTracker keeps a sliding window of recent latencies for one operation.
type LatencyTracker struct {
	mu      sync.Mutex
	samples []float64 // milliseconds
	window  int
	total   int64
}

// NewLatencyTracker creates a tracker that retains at most window samples.
func NewLatencyTracker(window int) *LatencyTracker {
	if window <= 0 {
		window = 1000
	}
	return &LatencyTracker{
		samples: make([]float64, 0, window),
		window:  window,
	}
}

// Record adds a measurement, evicting the oldest tenth of the window when full.
func (lt *LatencyTracker) Record(d time.Duration) {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if len(lt.samples) >= lt.window {
		evict := lt.window / 10
		if evict < 1 {
			evict = 1
		}
		lt.samples = append(lt.samples[:0], lt.samples[evict:]...)
	}
	lt.samples = append(lt.samples, float64(d.Microseconds())/1000)
	lt.total++
}

// Stats summarizes the current window.
func (lt *LatencyTracker) Stats() LatencyStats {
	lt.mu.Lock()
	data := make(stats.Float64Data, len(lt.samples))
	copy(data, lt.samples)
	total := lt.total
	lt.mu.Unlock()

	if len(data) == 0 {
		return LatencyStats{Count: total}
	}

	lo, _ := data.Min()
	hi, _ := data.Max()
	avg, _ := data.Mean()
	return LatencyStats{
		Count:   total,
		MinMs:   lo,
		MaxMs:   hi,
		AvgMs:   avg,
		P50Ms:   percentile(data, 50),
		P90Ms:   percentile(data, 90),
		P95Ms:   percentile(data, 95),
		P99Ms:   percentile(data, 99),
		Samples: len(data),
	}
}

func percentile(data stats.Float64Data, p float64) float64 {
	v, err := stats.PercentileNearestRank(data, p)
	if err != nil {
		return 0
	}
	return v
}

// Reset clears the window and the running count.
func (lt *LatencyTracker) Reset() {
	lt.mu.Lock()
	defer lt.mu.Unlock()
	lt.samples = lt.samples[:0]
	lt.total = 0
}

// LatencyStats is the JSON summary served on /metrics/latency.
type LatencyStats struct {
	Count   int64   `json:"count"`
	MinMs   float64 `json:"min_ms"`
	MaxMs   float64 `json:"max_ms"`
	AvgMs   float64 `json:"avg_ms"`
	P50Ms   float64 `json:"p50_ms"`
	P90Ms   float64 `json:"p90_ms"`
	P95Ms   float64 `json:"p95_ms"`
	P99Ms   float64 `json:"p99_ms"`
	Samples int     `json:"sample_size"`
}

// LatencyRegistry holds one tracker per operation name.
type LatencyRegistry struct {
	mu       sync.RWMutex
	trackers map[string]*LatencyTracker
	window   int
}

// NewLatencyRegistry creates an empty registry.
func NewLatencyRegistry(window int) *LatencyRegistry {
	return &LatencyRegistry{
		trackers: make(map[string]*LatencyTracker),
		window:   window,
	}
}

// Record adds a latency for op, creating its tracker on first use.
func (r *LatencyRegistry) Record(op string, d time.Duration) {
	r.mu.RLock()
	tracker, ok := r.trackers[op]
	r.mu.RUnlock()

	if !ok {
		r.mu.Lock()
		if tracker, ok = r.trackers[op]; !ok {
			tracker = NewLatencyTracker(r.window)
			r.trackers[op] = tracker
		}
		r.mu.Unlock()
	}
	tracker.Record(d)
}

// Stats returns the summary for op; the zero value when op was never recorded.
func (r *LatencyRegistry) Stats(op string) LatencyStats {
	r.mu.RLock()
	tracker, ok := r.trackers[op]
	r.mu.RUnlock()
	if !ok {
		return LatencyStats{}
	}
	return tracker.Stats()
}

// Operations lists the tracked operation names in order.
func (r *LatencyRegistry) Operations() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ops := make([]string, 0, len(r.trackers))
	for op := range r.trackers {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	return ops
}

// AllStats returns a summary per tracked operation.
func (r *LatencyRegistry) AllStats() map[string]LatencyStats {
	out := make(map[string]LatencyStats)
	for _, op := range r.Operations() {
		out[op] = r.Stats(op)
	}
	return out
}
