package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	recommendations *prometheus.CounterVec
	outcomes        *prometheus.CounterVec
	messagesSent    *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec
	latency         *prometheus.HistogramVec
}

// New creates a recorder registered on reg, or on the default registry when reg is nil.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Recorder{
		recommendations: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddspulse_recommendations_total",
				Help: "Recommendations produced by line type, side and confidence",
			},
			[]string{"type", "side", "confidence"},
		),
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddspulse_outcomes_total",
				Help: "Resolved record outcomes by line type",
			},
			[]string{"type", "result"},
		),
		messagesSent: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddspulse_messages_sent_total",
				Help: "Total number of record mutations sent to backend",
			},
			[]string{"backend", "event"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oddspulse_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oddspulse_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordRecommendation(handicapType, side, confidence string) {
	r.recommendations.WithLabelValues(handicapType, side, confidence).Inc()
}

func (r *Recorder) RecordOutcome(handicapType, result string) {
	r.outcomes.WithLabelValues(handicapType, result).Inc()
}

// RecordMessageSent records a mutation handed to a backend.
func (r *Recorder) RecordMessageSent(backend, eventType string) {
	r.messagesSent.WithLabelValues(backend, eventType).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

// Nop discards everything. Useful in tests and tools.
type Nop struct{}

func (Nop) RecordRecommendation(string, string, string) {}
func (Nop) RecordOutcome(string, string)                {}
func (Nop) RecordMessageSent(string, string)            {}
func (Nop) RecordError(string)                          {}
func (Nop) RecordLatency(string, float64)               {}
