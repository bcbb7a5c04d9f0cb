package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the dispatcher's Prometheus collectors.
//
// Metrics:
//   - docroute_documents_total{source_type,intent,outcome} - processed inputs
//   - docroute_classification_confidence - histogram of classifier confidence
//   - docroute_anomalies_total{source_type} - anomalies recorded on persisted records
//   - docroute_dispatch_duration_seconds{outcome} - end-to-end dispatch time
type Metrics struct {
	DocumentsTotal *prometheus.CounterVec
	Confidence     prometheus.Histogram
	AnomaliesTotal *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
}

// Dispatch outcomes used as metric labels.
const (
	outcomeProcessed     = "processed"
	outcomeLowConfidence = "low_confidence"
	outcomeFailed        = "failed"
)

// NewMetrics registers the collectors with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DocumentsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docroute_documents_total",
				Help: "Total number of dispatched inputs by outcome",
			},
			[]string{"source_type", "intent", "outcome"},
		),
		Confidence: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "docroute_classification_confidence",
				Help:    "Classifier confidence scores",
				Buckets: prometheus.LinearBuckets(0.1, 0.1, 10),
			},
		),
		AnomaliesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docroute_anomalies_total",
				Help: "Total number of anomalies on persisted records",
			},
			[]string{"source_type"},
		),
		Duration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docroute_dispatch_duration_seconds",
				Help:    "Duration of a dispatch in seconds",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
			},
			[]string{"outcome"},
		),
	}
}

func (m *Metrics) recordDispatch(sourceType, intent, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.DocumentsTotal.WithLabelValues(sourceType, intent, outcome).Inc()
	m.Duration.WithLabelValues(outcome).Observe(seconds)
}

func (m *Metrics) recordConfidence(c float64) {
	if m == nil {
		return
	}
	m.Confidence.Observe(c)
}

func (m *Metrics) recordAnomalies(sourceType string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.AnomaliesTotal.WithLabelValues(sourceType).Add(float64(n))
}
