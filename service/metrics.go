package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics records pipeline operations. A nil *Metrics records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	candidates prometheus.Histogram
	upserted   prometheus.Counter
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "rag_operations_total",
			Help: "Pipeline operations by name and outcome",
		}, []string{"op", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rag_operation_duration_seconds",
			Help:    "Pipeline operation latency",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"op"}),
		candidates: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "rag_retrieval_hits",
			Help:    "Hits kept after re-ranking per question",
			Buckets: prometheus.LinearBuckets(0, 5, 11),
		}),
		upserted: factory.NewCounter(prometheus.CounterOpts{
			Name: "rag_points_upserted_total",
			Help: "Points written to the vector index",
		}),
	}
}

func (m *Metrics) observe(op string, start time.Time, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.operations.WithLabelValues(op, status).Inc()
	m.duration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeHits(n int) {
	if m == nil {
		return
	}
	m.candidates.Observe(float64(n))
}

func (m *Metrics) addUpserted(n int) {
	if m == nil {
		return
	}
	m.upserted.Add(float64(n))
}
