package monitoring

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector handles Prometheus metrics collection
type MetricsCollector struct {
	evaluationsTotal   *prometheus.CounterVec
	rejectedTotal      *prometheus.CounterVec
	resolutionsTotal   *prometheus.CounterVec
	eventsPublished    *prometheus.CounterVec
	eventResendsTotal  prometheus.Counter
	evaluationDuration prometheus.Histogram
}

// NewMetricsCollector creates the collector and registers it with reg
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	m := &MetricsCollector{
		evaluationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eligibility_evaluations_total",
				Help: "Total number of eligibility evaluations by outcome",
			},
			[]string{"inforce"},
		),
		rejectedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eligibility_rejected_requests_total",
				Help: "Total number of eligibility requests abandoned before evaluation",
			},
			[]string{"reason"},
		),
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fhir_resolutions_total",
				Help: "Total number of FHIR reference resolutions",
			},
			[]string{"kind", "status"},
		),
		eventsPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "eligibility_events_published_total",
				Help: "Total number of eligibility response publish outcomes",
			},
			[]string{"status"},
		),
		eventResendsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "eligibility_event_resends_total",
				Help: "Total number of automatic resends after a closed connection",
			},
		),
		evaluationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "eligibility_evaluation_duration_seconds",
				Help:    "Duration of eligibility checks in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1.0, 2.0, 5.0, 10.0},
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.evaluationsTotal,
			m.rejectedTotal,
			m.resolutionsTotal,
			m.eventsPublished,
			m.eventResendsTotal,
			m.evaluationDuration,
		)
	}

	return m
}

// RecordEvaluation records one completed evaluation
func (m *MetricsCollector) RecordEvaluation(inforce bool, seconds float64) {
	m.evaluationsTotal.WithLabelValues(strconv.FormatBool(inforce)).Inc()
	m.evaluationDuration.Observe(seconds)
}

// RecordRejected records a request abandoned before evaluation
func (m *MetricsCollector) RecordRejected(reason string) {
	m.rejectedTotal.WithLabelValues(reason).Inc()
}

// RecordResolution records one reference resolution
func (m *MetricsCollector) RecordResolution(kind string, success bool) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.resolutionsTotal.WithLabelValues(kind, status).Inc()
}

// RecordPublish records the final status of a publish call
func (m *MetricsCollector) RecordPublish(status string) {
	m.eventsPublished.WithLabelValues(status).Inc()
}

// RecordResend records an automatic resend
func (m *MetricsCollector) RecordResend() {
	m.eventResendsTotal.Inc()
}
