package metrics

import (
	"errors"
	"testing"
	"time"

	"labeler_server/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatencyTracker(t *testing.T) {
	lt := NewLatencyTracker(10)
	for i := 1; i <= 10; i++ {
		lt.Record(time.Duration(i) * time.Millisecond)
	}

	s := lt.Stats()
	assert.Equal(t, int64(10), s.Count)
	assert.Equal(t, 10, s.Samples)
	assert.InDelta(t, 1.0, s.MinMs, 1e-9)
	assert.InDelta(t, 10.0, s.MaxMs, 1e-9)
	assert.InDelta(t, 5.5, s.AvgMs, 1e-9)
	assert.InDelta(t, 5.0, s.P50Ms, 1e-9)

	// window full: the oldest sample is evicted
	lt.Record(20 * time.Millisecond)
	s = lt.Stats()
	assert.Equal(t, int64(11), s.Count)
	assert.Equal(t, 10, s.Samples)
	assert.InDelta(t, 2.0, s.MinMs, 1e-9)
	assert.InDelta(t, 20.0, s.MaxMs, 1e-9)

	lt.Reset()
	assert.Equal(t, LatencyStats{}, lt.Stats())
}

func TestLatencyRegistry(t *testing.T) {
	r := NewLatencyRegistry(100)
	r.Record("train", time.Millisecond)
	r.Record("classify", 2*time.Millisecond)
	r.Record("classify", 4*time.Millisecond)

	assert.Equal(t, []string{"classify", "train"}, r.Operations())
	assert.Equal(t, int64(2), r.Stats("classify").Count)
	assert.Equal(t, LatencyStats{}, r.Stats("missing"))
	assert.Len(t, r.AllStats(), 2)
}

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg, nil)

	c.ObserveTrain(domain.TrainStatusPartial, 1, time.Millisecond)
	c.ObserveTrain(domain.TrainStatusSuccess, 2, time.Millisecond)
	c.ObserveClassify(domain.ReasonAccepted, 0.9, time.Millisecond)
	c.ObserveClassify(domain.ReasonLiveness, 0, time.Millisecond)
	c.ObserveEvaluate(0.75, time.Millisecond)
	c.ObservePersist("file", nil, time.Millisecond)
	c.ObservePersist("file", errors.New("disk full"), time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.TrainTotal.WithLabelValues("success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.CorpusSize))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PredictionsTotal.WithLabelValues("liveness")))
	assert.Equal(t, 0.75, testutil.ToFloat64(c.EvalAccuracy))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.PersistTotal.WithLabelValues("file", "error")))
	assert.Equal(t, int64(2), c.Latency().Stats(OpClassify).Count)

	count, err := testutil.GatherAndCount(reg, "labeler_operation_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestAssessDBPoolHealth(t *testing.T) {
	tests := []struct {
		name  string
		stats DBPoolStats
		want  PoolHealthStatus
	}{
		{"unlimited", DBPoolStats{InUse: 50}, PoolHealthy},
		{"normal", DBPoolStats{InUse: 2, MaxOpenConnections: 10}, PoolHealthy},
		{"high", DBPoolStats{InUse: 8, MaxOpenConnections: 10}, PoolDegraded},
		{"exhausted", DBPoolStats{InUse: 10, MaxOpenConnections: 10}, PoolUnhealthy},
		{"waiting", DBPoolStats{InUse: 1, MaxOpenConnections: 10, WaitCount: 3, WaitDuration: 6 * time.Second}, PoolDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, AssessDBPoolHealth(tt.stats).Status)
		})
	}
	assert.Equal(t, DBPoolStats{}, GetDBPoolStats(nil))
}
