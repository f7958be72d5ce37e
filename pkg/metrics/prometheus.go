// Package metrics provides Prometheus metrics for the rating service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the rating service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Rating engine
	matchesProcessed prometheus.Counter
	matchesSkipped   *prometheus.CounterVec
	matchesDrawn     prometheus.Counter
	engineRunLatency prometheus.Histogram
	teamsRated       prometheus.Gauge

	// Snapshots
	snapshotRequests *prometheus.CounterVec
	snapshotLatency  *prometheus.HistogramVec

	// Cache
	cacheHits   prometheus.Counter
	cacheMisses prometheus.Counter
	cacheErrors prometheus.Counter

	// Recompute pipeline
	recomputeJobs      *prometheus.CounterVec
	recomputeLatency   prometheus.Histogram
	recomputeLastUnix  prometheus.Gauge
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	workerActiveCount  prometheus.Gauge
	workerBusyCount    prometheus.Gauge
	recomputeInflights prometheus.Gauge

	// Storage
	storeQueryLatency *prometheus.HistogramVec
	storeErrors       *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace overrides the "vctrank" namespace.
func WithNamespace(ns string) Option {
	return func(m *Manager) {
		if ns != "" {
			m.namespace = ns
		}
	}
}

// WithSubsystem overrides the "ratings" subsystem.
func WithSubsystem(sub string) Option {
	return func(m *Manager) {
		if sub != "" {
			m.subsystem = sub
		}
	}
}

// WithHistogramBuckets sets the millisecond buckets used by every latency histogram.
func WithHistogramBuckets(buckets []float64) Option {
	return func(m *Manager) {
		if len(buckets) > 0 {
			m.histogramBuckets = buckets
		}
	}
}

// WithConstLabels labels every series, e.g. with the deployment.
func WithConstLabels(labels map[string]string) Option {
	return func(m *Manager) {
		if labels != nil {
			m.constLabels = labels
		}
	}
}

// WithPrometheusRegistry registers into reg instead of the default registerer.
func WithPrometheusRegistry(reg prometheus.Registerer) Option {
	return func(m *Manager) {
		if reg != nil {
			m.registry = reg
		}
	}
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
		namespace:        "vctrank",
		subsystem:        "ratings",
		histogramBuckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	m.matchesProcessed = m.counter("matches_processed_total", "Matches applied to a rating state")
	m.matchesSkipped = m.counterVec("matches_skipped_total", "Matches skipped during rating, by reason", "reason")
	m.matchesDrawn = m.counter("matches_drawn_total", "Matches treated as draws (equal or missing scores)")
	m.engineRunLatency = m.histogram("engine_run_duration_ms", "Duration of a full rating run in milliseconds")
	m.teamsRated = m.gauge("teams_rated", "Teams in the most recent rating run")

	m.snapshotRequests = m.counterVec("snapshot_requests_total", "Snapshot requests by kind, scope kind and source", "kind", "scope", "source")
	m.snapshotLatency = m.histogramVec("snapshot_build_duration_ms", "Snapshot build latency by source", "source")

	m.cacheHits = m.counter("cache_hits_total", "Snapshot cache hits")
	m.cacheMisses = m.counter("cache_misses_total", "Snapshot cache misses")
	m.cacheErrors = m.counter("cache_errors_total", "Snapshot cache backend errors")

	m.recomputeJobs = m.counterVec("recompute_jobs_total", "Recompute jobs by outcome", "status")
	m.recomputeLatency = m.histogram("recompute_duration_ms", "Recompute job duration in milliseconds")
	m.recomputeLastUnix = m.gauge("recompute_last_success_unix", "Unix time of the last successful recompute")
	m.queueSize = m.gauge("recompute_queue_size", "Jobs waiting in the recompute queue")
	m.queueCapacity = m.gauge("recompute_queue_capacity", "Capacity of the recompute queue")
	m.workerActiveCount = m.gauge("worker_active_count", "Recompute workers running")
	m.workerBusyCount = m.gauge("worker_busy_count", "Recompute workers currently processing a job")
	m.recomputeInflights = m.gauge("recompute_inflight", "Scopes with a recompute in flight")

	m.storeQueryLatency = m.histogramVec("store_query_duration_ms", "Storage query latency", "driver", "op")
	m.storeErrors = m.counterVec("store_errors_total", "Storage errors", "driver", "op")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_ms", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by HTTP endpoint", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_ms", "Average GC pause in milliseconds")
}

// RecordMatchProcessed increments the processed matches counter.
func RecordMatchProcessed() {
	globalManager.matchesProcessed.Inc()
}

// RecordMatchSkipped counts a skipped match under reason.
func RecordMatchSkipped(reason string) {
	globalManager.matchesSkipped.WithLabelValues(reason).Inc()
}

// RecordMatchDrawn counts a match scored as a draw.
func RecordMatchDrawn() {
	globalManager.matchesDrawn.Inc()
}

// RecordEngineRun records one full rating run.
func RecordEngineRun(latencyMs float64, teams int) {
	globalManager.engineRunLatency.Observe(latencyMs)
	globalManager.teamsRated.Set(float64(teams))
}

// RecordSnapshotRequest counts a snapshot served.
func RecordSnapshotRequest(kind, scope, source string) {
	globalManager.snapshotRequests.WithLabelValues(kind, scope, source).Inc()
}

// RecordSnapshotLatency records snapshot build latency.
func RecordSnapshotLatency(source string, latencyMs float64) {
	globalManager.snapshotLatency.WithLabelValues(source).Observe(latencyMs)
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// RecordCacheError increments the cache error counter.
func RecordCacheError() {
	globalManager.cacheErrors.Inc()
}

// RecordRecomputeJob counts a recompute job outcome
// (enqueued, duplicate, rejected, done, failed).
func RecordRecomputeJob(status string) {
	globalManager.recomputeJobs.WithLabelValues(status).Inc()
}

// RecordRecomputeLatency records recompute job duration.
func RecordRecomputeLatency(latencyMs float64) {
	globalManager.recomputeLatency.Observe(latencyMs)
}

// UpdateRecomputeLastSuccess sets the last successful recompute time.
func UpdateRecomputeLastSuccess(unix int64) {
	globalManager.recomputeLastUnix.Set(float64(unix))
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// AddWorkerBusy adjusts the busy worker gauge by delta.
func AddWorkerBusy(delta int) {
	globalManager.workerBusyCount.Add(float64(delta))
}

// UpdateRecomputeInflight sets the number of scopes being recomputed.
func UpdateRecomputeInflight(count int64) {
	globalManager.recomputeInflights.Set(float64(count))
}

// RecordStoreQuery records a storage query latency.
func RecordStoreQuery(driver, op string, latencyMs float64) {
	globalManager.storeQueryLatency.WithLabelValues(driver, op).Observe(latencyMs)
}

// RecordStoreError counts a storage error.
func RecordStoreError(driver, op string) {
	globalManager.storeErrors.WithLabelValues(driver, op).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error by type and severity.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error by HTTP endpoint.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets allocated heap bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records average GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom registry for metrics exposure.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
