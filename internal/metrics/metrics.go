// Package metrics exposes Prometheus metrics for document extraction.
package metrics

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/a3tai/docfields/internal/extraction"
)

// Status labels of docfields_extract_documents_total.
const (
	StatusMatched    = "matched"
	StatusNotMatched = "not_matched"
	StatusError      = "error"
)

// ExtractionMetrics records per-document extraction outcomes. It satisfies
// extraction.Observer.
type ExtractionMetrics struct {
	registry *prometheus.Registry

	documentsTotal    *prometheus.CounterVec
	documentDuration  *prometheus.HistogramVec
	documentsInFlight prometheus.Gauge
	fieldsTotal       *prometheus.CounterVec
	warningsTotal     *prometheus.CounterVec
	overallConfidence prometheus.Histogram
}

// NewExtractionMetrics registers the metrics on a private registry.
func NewExtractionMetrics(service string) *ExtractionMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docfields",
			Subsystem:   "extract",
			Name:        "documents_total",
			Help:        "Total extracted documents by status.",
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	documentDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   "docfields",
			Subsystem:   "extract",
			Name:        "duration_seconds",
			Help:        "Extraction pipeline duration in seconds by status.",
			Buckets:     []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			ConstLabels: constLabels,
		},
		[]string{"status"},
	)
	documentsInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   "docfields",
			Subsystem:   "extract",
			Name:        "documents_in_flight",
			Help:        "Number of documents being acquired or extracted.",
			ConstLabels: constLabels,
		},
	)
	fieldsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docfields",
			Subsystem:   "extract",
			Name:        "fields_total",
			Help:        "Extracted fields by provenance.",
			ConstLabels: constLabels,
		},
		[]string{"source"},
	)
	warningsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   "docfields",
			Subsystem:   "extract",
			Name:        "warnings_total",
			Help:        "Extraction warnings by kind.",
			ConstLabels: constLabels,
		},
		[]string{"kind"},
	)
	overallConfidence := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace:   "docfields",
			Subsystem:   "extract",
			Name:        "overall_confidence",
			Help:        "Distribution of overall record confidence.",
			Buckets:     prometheus.LinearBuckets(0.1, 0.1, 10),
			ConstLabels: constLabels,
		},
	)

	registry.MustRegister(documentsTotal, documentDuration, documentsInFlight, fieldsTotal, warningsTotal, overallConfidence)

	return &ExtractionMetrics{
		registry:          registry,
		documentsTotal:    documentsTotal,
		documentDuration:  documentDuration,
		documentsInFlight: documentsInFlight,
		fieldsTotal:       fieldsTotal,
		warningsTotal:     warningsTotal,
		overallConfidence: overallConfidence,
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *ExtractionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartDocument marks a document as in flight.
func (m *ExtractionMetrics) StartDocument() {
	m.documentsInFlight.Inc()
}

// FinishDocument clears the in-flight mark and counts documents that
// failed before extraction ran.
func (m *ExtractionMetrics) FinishDocument(err error) {
	m.documentsInFlight.Dec()
	if err != nil && !errors.Is(err, extraction.ErrNotMatched) {
		m.documentsTotal.WithLabelValues(StatusError).Inc()
	}
}

// ObserveExtraction implements extraction.Observer.
func (m *ExtractionMetrics) ObserveExtraction(res *extraction.Result, err error, elapsed time.Duration) {
	status := StatusMatched
	switch {
	case errors.Is(err, extraction.ErrNotMatched):
		status = StatusNotMatched
	case err != nil:
		status = StatusError
	}
	m.documentsTotal.WithLabelValues(status).Inc()
	m.documentDuration.WithLabelValues(status).Observe(elapsed.Seconds())

	if res == nil {
		return
	}
	for _, fv := range res.Fields() {
		m.fieldsTotal.WithLabelValues(fv.Source.String()).Inc()
	}
	for _, w := range res.Warnings() {
		kind, _, _ := strings.Cut(w, ":")
		m.warningsTotal.WithLabelValues(kind).Inc()
	}
	m.overallConfidence.Observe(res.OverallConfidence())
}
