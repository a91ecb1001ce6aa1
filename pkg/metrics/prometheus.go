// Package metrics provides Prometheus metrics for the hero recognition pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes.
const (
	OutcomeOK       = "ok"
	OutcomeCapture  = "capture_error"
	OutcomeCanceled = "canceled"
	OutcomeInternal = "internal_error"
)

// Manager owns every collector exported by the pipeline.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	requests         *prometheus.CounterVec
	requestDuration  prometheus.Histogram
	stageDuration    *prometheus.HistogramVec
	roisGenerated    prometheus.Histogram
	detections       *prometheus.CounterVec
	droppedBatches   prometheus.Counter
	inferenceRetries prometheus.Counter
	heroesRecognized prometheus.Histogram
	localizerHits    prometheus.Histogram
	referenceEntries prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "hero",
		subsystem:        "recognizer",
		histogramBuckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.requests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "requests_total",
		Help:      "Recognition requests by outcome",
	}, []string{"outcome"})

	m.requestDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "request_duration_seconds",
		Help:      "End-to-end recognition latency",
		Buckets:   m.histogramBuckets,
	})

	m.stageDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "stage_duration_seconds",
		Help:      "Latency of each pipeline stage",
		Buckets:   m.histogramBuckets,
	}, []string{"stage"})

	m.roisGenerated = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rois_generated",
		Help:      "Candidate regions produced per request",
		Buckets:   prometheus.LinearBuckets(0, 25, 7),
	})

	m.detections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "detections_total",
		Help:      "Detections above the logging threshold by evidence source",
	}, []string{"source"})

	m.droppedBatches = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dropped_batches_total",
		Help:      "Inference batches dropped after exhausting retries",
	})

	m.inferenceRetries = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "inference_retries_total",
		Help:      "Inference batch retries",
	})

	m.heroesRecognized = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "heroes_recognized",
		Help:      "Heroes in the final result per request",
		Buckets:   prometheus.LinearBuckets(0, 1, 7),
	})

	m.localizerHits = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "localizer_hits",
		Help:      "Heroes detected by the column localizer per request",
		Buckets:   prometheus.LinearBuckets(0, 1, 7),
	})

	m.referenceEntries = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "reference_entries",
		Help:      "Hero identities in the loaded reference library",
	})
}

// RecordRequest records a finished request.
func (m *Manager) RecordRequest(outcome string, d time.Duration) {
	m.requests.WithLabelValues(outcome).Inc()
	m.requestDuration.Observe(d.Seconds())
}

// RecordStage records the latency of one pipeline stage.
func (m *Manager) RecordStage(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordROIs records how many candidate regions a request produced.
func (m *Manager) RecordROIs(n int) { m.roisGenerated.Observe(float64(n)) }

// RecordDetections adds n detections for the given evidence source.
func (m *Manager) RecordDetections(source string, n int) {
	m.detections.WithLabelValues(source).Add(float64(n))
}

// RecordDroppedBatch counts a batch dropped after its retries.
func (m *Manager) RecordDroppedBatch() { m.droppedBatches.Inc() }

// RecordRetry counts one inference retry.
func (m *Manager) RecordRetry() { m.inferenceRetries.Inc() }

// RecordRecognized records the final result size.
func (m *Manager) RecordRecognized(n int) { m.heroesRecognized.Observe(float64(n)) }

// RecordLocalizerHits records how many heroes the localizer found.
func (m *Manager) RecordLocalizerHits(n int) { m.localizerHits.Observe(float64(n)) }

// SetReferenceEntries sets the reference library size.
func (m *Manager) SetReferenceEntries(n int) { m.referenceEntries.Set(float64(n)) }

// Global helpers.

// RecordRequest records a finished request on the global manager.
func RecordRequest(outcome string, d time.Duration) { globalManager.RecordRequest(outcome, d) }

// RecordStage records a stage latency on the global manager.
func RecordStage(stage string, d time.Duration) { globalManager.RecordStage(stage, d) }

// RecordROIs records a ROI count on the global manager.
func RecordROIs(n int) { globalManager.RecordROIs(n) }

// RecordDetections records detections on the global manager.
func RecordDetections(source string, n int) { globalManager.RecordDetections(source, n) }

// RecordDroppedBatch counts a dropped batch on the global manager.
func RecordDroppedBatch() { globalManager.RecordDroppedBatch() }

// RecordRetry counts an inference retry on the global manager.
func RecordRetry() { globalManager.RecordRetry() }

// RecordRecognized records the final result size on the global manager.
func RecordRecognized(n int) { globalManager.RecordRecognized(n) }

// RecordLocalizerHits records localizer hits on the global manager.
func RecordLocalizerHits(n int) { globalManager.RecordLocalizerHits(n) }

// SetReferenceEntries sets the reference library size on the global manager.
func SetReferenceEntries(n int) { globalManager.SetReferenceEntries(n) }

// Default returns the global manager.
func Default() *Manager { return globalManager }

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// Handler serves the global registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(customRegistry, promhttp.HandlerOpts{})
}
