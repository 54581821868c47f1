package metrics

import (
	"time"

	"labeler_server/core/domain"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Latency registry keys.
const (
	OpTrain    = "train"
	OpClassify = "classify"
	OpEvaluate = "evaluate"
	OpPersist  = "persist"
)

// Collector records classifier activity as Prometheus metrics and latency windows.
type Collector struct {
	TrainTotal       *prometheus.CounterVec
	CorpusSize       prometheus.Gauge
	PredictionsTotal *prometheus.CounterVec
	Confidence       prometheus.Histogram
	EvalAccuracy     prometheus.Gauge
	PersistTotal     *prometheus.CounterVec
	Duration         *prometheus.HistogramVec

	latency *LatencyRegistry
}

// NewCollector registers the classifier metrics on reg.
func NewCollector(reg prometheus.Registerer, latency *LatencyRegistry) *Collector {
	if latency == nil {
		latency = NewLatencyRegistry(1000)
	}
	factory := promauto.With(reg)

	return &Collector{
		TrainTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "labeler_train_total",
			Help: "Training examples submitted, by outcome",
		}, []string{"status"}),
		CorpusSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "labeler_corpus_examples",
			Help: "Examples currently in the training corpus",
		}),
		PredictionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "labeler_predictions_total",
			Help: "Classification requests, by reason",
		}, []string{"reason"}),
		Confidence: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "labeler_prediction_confidence",
			Help:    "Calibrated confidence of classifications",
			Buckets: []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.85, 0.9, 0.95, 1.0},
		}),
		EvalAccuracy: factory.NewGauge(prometheus.GaugeOpts{
			Name: "labeler_evaluation_accuracy",
			Help: "Held-out accuracy of the last evaluation",
		}),
		PersistTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "labeler_persist_total",
			Help: "Model state saves, by store and result",
		}, []string{"store", "result"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "labeler_operation_duration_seconds",
			Help:    "Time spent per classifier operation",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
		latency: latency,
	}
}

// Latency exposes the sliding-window registry.
func (c *Collector) Latency() *LatencyRegistry {
	return c.latency
}

func (c *Collector) observe(op string, d time.Duration) {
	c.Duration.WithLabelValues(op).Observe(d.Seconds())
	c.latency.Record(op, d)
}

func (c *Collector) ObserveTrain(status domain.TrainStatus, examples int, d time.Duration) {
	c.TrainTotal.WithLabelValues(string(status)).Inc()
	c.CorpusSize.Set(float64(examples))
	c.observe(OpTrain, d)
}

func (c *Collector) ObserveClassify(reason domain.PredictionReason, confidence float64, d time.Duration) {
	c.PredictionsTotal.WithLabelValues(string(reason)).Inc()
	if reason != domain.ReasonLiveness {
		c.Confidence.Observe(confidence)
	}
	c.observe(OpClassify, d)
}

func (c *Collector) ObserveEvaluate(accuracy float64, d time.Duration) {
	c.EvalAccuracy.Set(accuracy)
	c.observe(OpEvaluate, d)
}

func (c *Collector) ObservePersist(store string, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.PersistTotal.WithLabelValues(store, result).Inc()
	c.observe(OpPersist, d)
}
