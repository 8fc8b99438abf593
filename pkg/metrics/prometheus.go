// Package metrics provides Prometheus metrics for the armory overview service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the armory service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Overview Metrics
	overviewsServed prometheus.Counter
	overviewLatency prometheus.Histogram
	overviewErrors  *prometheus.CounterVec
	mergeErrors     prometheus.Counter

	// Upstream Metrics - Blizzard and WarcraftLogs calls
	upstreamRequests *prometheus.CounterVec
	upstreamLatency  *prometheus.HistogramVec
	tokenRefreshes   *prometheus.CounterVec

	// Cache Metrics
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheEntries   prometheus.Gauge
	cacheEvictions prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue Metrics - Batch lookup queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	errorRateByComponent *prometheus.CounterVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "armory",
		subsystem:        "overview",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}
	if !m.enabled {
		m.registry = prometheus.NewRegistry()
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.overviewsServed = m.counter("overviews_served_total", "Total number of character overviews successfully built")
	m.overviewLatency = m.histogram("overview_latency_milliseconds", "Histogram of end-to-end overview latency in milliseconds")
	m.overviewErrors = m.counterVec("overview_errors_total", "Total number of failed overview requests by error kind", "kind")
	m.mergeErrors = m.counter("merge_errors_total", "Total number of upstream documents that could not be merged")

	m.upstreamRequests = m.counterVec("upstream_requests_total", "Total number of upstream API calls by provider and outcome", "provider", "outcome")
	m.upstreamLatency = m.histogramVec("upstream_latency_milliseconds", "Upstream API call latency in milliseconds", "provider")
	m.tokenRefreshes = m.counterVec("token_refreshes_total", "Total number of OAuth token exchanges by provider and outcome", "provider", "outcome")

	m.cacheHits = m.counter("cache_hits_total", "Total number of profile cache hits")
	m.cacheMisses = m.counter("cache_misses_total", "Total number of profile cache misses")
	m.cacheEntries = m.gauge("cache_entries", "Current number of entries held in the profile cache")
	m.cacheEvictions = m.counter("cache_evictions_total", "Total number of cache entries evicted or expired")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.queueSize = m.gauge("queue_size", "Current number of lookups waiting in the batch queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the batch queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Current batch queue utilization ratio (0-1)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of lookups enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of lookups dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of lookups rejected by a full or closed queue")

	m.workerCount = m.gauge("worker_count", "Number of batch workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Number of workers currently resolving a lookup")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Time a worker spends resolving one lookup in milliseconds")
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of lookups that failed inside a worker")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Total number of errors by component and error type", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Current heap allocation in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Current number of goroutines")
}

// Overview Metrics Functions.

// RecordOverviewServed increments the served overviews counter.
func RecordOverviewServed() {
	globalManager.overviewsServed.Inc()
}

// RecordOverviewLatency observes end-to-end overview latency.
func RecordOverviewLatency(latencyMs float64) {
	globalManager.overviewLatency.Observe(latencyMs)
}

// RecordOverviewError counts a failed overview by error kind.
func RecordOverviewError(kind string) {
	globalManager.overviewErrors.WithLabelValues(kind).Inc()
}

// RecordMergeError increments the merge errors counter.
func RecordMergeError() {
	globalManager.mergeErrors.Inc()
}

// Upstream Metrics Functions.

// RecordUpstreamRequest counts an upstream call and its latency.
func RecordUpstreamRequest(provider, outcome string, latencyMs float64) {
	globalManager.upstreamRequests.WithLabelValues(provider, outcome).Inc()
	globalManager.upstreamLatency.WithLabelValues(provider).Observe(latencyMs)
}

// RecordTokenRefresh counts an OAuth token exchange.
func RecordTokenRefresh(provider, outcome string) {
	globalManager.tokenRefreshes.WithLabelValues(provider, outcome).Inc()
}

// Cache Metrics Functions.

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	globalManager.cacheMisses.Inc()
}

// UpdateCacheEntries sets the current number of cache entries.
func UpdateCacheEntries(count int) {
	globalManager.cacheEntries.Set(float64(count))
}

// RecordCacheEvictions adds n evicted entries.
func RecordCacheEvictions(n int) {
	if n > 0 {
		globalManager.cacheEvictions.Add(float64(n))
	}
}

// HTTP Metrics Functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue Metrics Functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

// RecordQueueEnqueue increments the queue enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the queue dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the queue enqueue errors counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions.

// UpdateWorkerCount sets the number of workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of busy workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrorRate.Inc()
}

// RecordErrorByComponent records errors by component and type.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// System Metrics Functions.

// UpdateSystemMemoryUsage sets the system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the system goroutine count.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RefreshInterval is the sampling period for the system gauges.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
