// Package metrics provides Prometheus metrics for the ingestion ledger.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Pipeline
	recordsExtracted  *prometheus.CounterVec
	recordsDropped    *prometheus.CounterVec
	hashesComputed    prometheus.Counter
	ledgerTransitions *prometheus.CounterVec
	ledgerErrors      prometheus.Counter
	ledgerLatency     prometheus.Histogram

	// Batches
	batches         *prometheus.CounterVec
	batchDuration   *prometheus.HistogramVec
	connectorErrors *prometheus.CounterVec
	payloadBytes    *prometheus.HistogramVec

	// Mutation stream
	streamPublished prometheus.Counter
	streamErrors    prometheus.Counter

	// Jobs and workers
	jobQueueSize   prometheus.Gauge
	jobsRejected   prometheus.Counter
	workerCount    prometheus.Gauge
	workerInFlight prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "xsr",
		subsystem:        "ledger",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     m.histogramBuckets,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.recordsExtracted = auto.NewCounterVec(
		m.counterOpts("records_extracted_total", "Records produced by the normalizer per source"),
		[]string{"source", "variant"},
	)
	m.recordsDropped = auto.NewCounterVec(
		m.counterOpts("records_dropped_total", "Records dropped before reaching the ledger, by reason"),
		[]string{"reason"},
	)
	m.hashesComputed = auto.NewCounter(
		m.counterOpts("hashes_computed_total", "Identity and content hashes computed"),
	)
	m.ledgerTransitions = auto.NewCounterVec(
		m.counterOpts("ledger_transitions_total", "Ledger transitions applied, by kind"),
		[]string{"kind"},
	)
	m.ledgerErrors = auto.NewCounter(
		m.counterOpts("ledger_errors_total", "Ledger storage failures"),
	)
	m.ledgerLatency = auto.NewHistogram(
		m.histogramOpts("ledger_ingest_seconds", "Latency of a single ledger transition"),
	)

	m.batches = auto.NewCounterVec(
		m.counterOpts("batches_total", "Completed batches by source and outcome"),
		[]string{"source", "status"},
	)
	m.batchDuration = auto.NewHistogramVec(
		m.histogramOpts("batch_duration_seconds", "Wall time of one source batch"),
		[]string{"source"},
	)
	m.connectorErrors = auto.NewCounterVec(
		m.counterOpts("connector_errors_total", "Connector fetch failures by scheme"),
		[]string{"scheme"},
	)
	m.payloadBytes = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   m.namespace,
			Subsystem:   m.subsystem,
			Name:        "payload_bytes",
			Help:        "Size of fetched source payloads",
			ConstLabels: m.constLabels,
			Buckets:     prometheus.ExponentialBuckets(1024, 4, 10),
		},
		[]string{"source"},
	)

	m.streamPublished = auto.NewCounter(
		m.counterOpts("stream_published_total", "Ledger mutations published downstream"),
	)
	m.streamErrors = auto.NewCounter(
		m.counterOpts("stream_errors_total", "Ledger mutations that failed to publish"),
	)

	m.jobQueueSize = auto.NewGauge(m.gaugeOpts("job_queue_size", "Workflow jobs waiting to run"))
	m.jobsRejected = auto.NewCounter(m.counterOpts("jobs_rejected_total", "Workflow jobs rejected by backpressure"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Record workers per batch"))
	m.workerInFlight = auto.NewGauge(m.gaugeOpts("worker_in_flight", "Records currently being hashed or ingested"))

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_seconds", "HTTP request duration"),
		[]string{"endpoint", "method", "status_code"},
	)
}

// RecordExtracted counts n normalized records for a source.
func RecordExtracted(source, variant string, n int) {
	globalManager.recordsExtracted.WithLabelValues(source, variant).Add(float64(n))
}

// RecordDropped counts one dropped record.
func RecordDropped(reason string) {
	globalManager.recordsDropped.WithLabelValues(reason).Inc()
}

// RecordHashComputed counts one identity/content hash pair.
func RecordHashComputed() {
	globalManager.hashesComputed.Inc()
}

// RecordLedgerTransition counts an applied transition and its latency.
func RecordLedgerTransition(kind string, seconds float64) {
	globalManager.ledgerTransitions.WithLabelValues(kind).Inc()
	globalManager.ledgerLatency.Observe(seconds)
}

// RecordLedgerError counts a storage failure.
func RecordLedgerError() {
	globalManager.ledgerErrors.Inc()
}

// RecordBatch counts a finished batch and observes its duration.
func RecordBatch(source, status string, seconds float64) {
	globalManager.batches.WithLabelValues(source, status).Inc()
	globalManager.batchDuration.WithLabelValues(source).Observe(seconds)
}

// RecordConnectorError counts a failed fetch.
func RecordConnectorError(scheme string) {
	globalManager.connectorErrors.WithLabelValues(scheme).Inc()
}

// RecordPayloadSize observes a fetched payload.
func RecordPayloadSize(source string, n int) {
	globalManager.payloadBytes.WithLabelValues(source).Observe(float64(n))
}

// RecordStreamPublished counts a published mutation.
func RecordStreamPublished() {
	globalManager.streamPublished.Inc()
}

// RecordStreamError counts a mutation that could not be published.
func RecordStreamError() {
	globalManager.streamErrors.Inc()
}

// UpdateJobQueueSize sets the pending job gauge.
func UpdateJobQueueSize(size int) {
	globalManager.jobQueueSize.Set(float64(size))
}

// RecordJobRejected counts a job refused by a full queue.
func RecordJobRejected() {
	globalManager.jobsRejected.Inc()
}

// UpdateWorkerCount sets the worker gauge.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// AddWorkerInFlight moves the in-flight gauge by delta.
func AddWorkerInFlight(delta int) {
	globalManager.workerInFlight.Add(float64(delta))
}

// RecordHTTPRequest counts a served request and observes its duration.
func RecordHTTPRequest(endpoint, method, statusCode string, seconds float64) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(seconds)
}

// GetRegistry returns the custom Prometheus registry.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
