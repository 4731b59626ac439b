// Package metrics provides Prometheus metrics for the Big Game scoreboard.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every scoreboard metric.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Scoreboard
	placements     *prometheus.CounterVec
	resets         prometheus.Counter
	reloads        *prometheus.CounterVec
	duplicates     prometheus.Counter
	teamScore      *prometheus.GaugeVec
	completedGames prometheus.Gauge
	eventComplete  prometheus.Gauge

	// Store mirror
	storeOps      *prometheus.CounterVec
	storeErrors   *prometheus.CounterVec
	storeLatency  *prometheus.HistogramVec
	storeDiscards prometheus.Counter

	// Change queue and mirror workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueue       prometheus.Counter
	queueDequeue       prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	workerCount        prometheus.Gauge
	workerLatency      prometheus.Histogram
	workerErrors       prometheus.Counter
	changesStale       prometheus.Counter
	changesPublished   prometheus.Counter

	// Subscribers
	subscribers *prometheus.GaugeVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "biggame",
		subsystem:        "scoreboard",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
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

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
		Buckets:     buckets,
	}
}

//nolint:funlen // one place for every collector
func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.placements = auto.NewCounterVec(
		m.counterOpts("placements_total", "Placement requests by outcome and place"),
		[]string{"outcome", "place"},
	)
	m.resets = auto.NewCounter(m.counterOpts("resets_total", "Ledger resets"))
	m.reloads = auto.NewCounterVec(
		m.counterOpts("reloads_total", "Ledger reloads from the store by trigger"),
		[]string{"source"},
	)
	m.duplicates = auto.NewCounter(m.counterOpts("placements_duplicate_total", "Retried placement request ids answered from the dedupe window"))
	m.teamScore = auto.NewGaugeVec(
		m.gaugeOpts("team_score", "Current total score per team"),
		[]string{"team"},
	)
	m.completedGames = auto.NewGauge(m.gaugeOpts("completed_games", "Games with all three places taken"))
	m.eventComplete = auto.NewGauge(m.gaugeOpts("event_complete", "1 when every game is complete"))

	m.storeOps = auto.NewCounterVec(
		m.counterOpts("store_operations_total", "Mirror store operations"),
		[]string{"op"},
	)
	m.storeErrors = auto.NewCounterVec(
		m.counterOpts("store_errors_total", "Failed mirror store operations"),
		[]string{"op"},
	)
	m.storeLatency = auto.NewHistogramVec(
		m.histogramOpts("store_latency_milliseconds", "Mirror store operation latency in milliseconds", m.histogramBuckets),
		[]string{"op"},
	)
	m.storeDiscards = auto.NewCounter(m.counterOpts("store_discards_total", "Malformed saved results discarded on load"))

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Changes waiting for the mirror workers"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Change queue capacity"))
	m.queueEnqueue = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Changes enqueued"))
	m.queueDequeue = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Changes dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Changes dropped on a full queue"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Running mirror workers"))
	m.workerLatency = auto.NewHistogram(
		m.histogramOpts("worker_processing_latency_milliseconds", "Time to persist and publish one change", m.histogramBuckets),
	)
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Changes a worker failed to persist"))
	m.changesStale = auto.NewCounter(m.counterOpts("changes_stale_total", "Changes skipped because a newer one was already persisted"))
	m.changesPublished = auto.NewCounter(m.counterOpts("changes_published_total", "Changes delivered to the broker"))

	m.subscribers = auto.NewGaugeVec(
		m.gaugeOpts("subscribers", "Connected live subscribers by transport"),
		[]string{"transport"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorRateByComponent = auto.NewCounterVec(
		m.counterOpts("errors_by_component_total", "Errors by component"),
		[]string{"component", "error_type"},
	)
	m.errorRateByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap memory in use in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(
		m.histogramOpts("system_gc_pause_time_milliseconds", "GC pause time in milliseconds",
			[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}),
	)
}

// RecordPlacement counts a placement request.
func RecordPlacement(outcome, place string) {
	globalManager.placements.WithLabelValues(outcome, place).Inc()
}

// RecordReset counts a ledger reset.
func RecordReset() {
	globalManager.resets.Inc()
}

// RecordReload counts a reload triggered by source ("watcher", "api", "start").
func RecordReload(source string) {
	globalManager.reloads.WithLabelValues(source).Inc()
}

// RecordDuplicatePlacement counts a retried request id.
func RecordDuplicatePlacement() {
	globalManager.duplicates.Inc()
}

// UpdateTeamScore sets the current total of team.
func UpdateTeamScore(team string, score int) {
	globalManager.teamScore.WithLabelValues(team).Set(float64(score))
}

// UpdateCompletion sets the completed games gauge and the event complete flag.
func UpdateCompletion(completedGames int, complete bool) {
	globalManager.completedGames.Set(float64(completedGames))
	if complete {
		globalManager.eventComplete.Set(1)
		return
	}
	globalManager.eventComplete.Set(0)
}

// RecordStoreOperation counts a store operation and its latency.
func RecordStoreOperation(op string, latencyMs float64) {
	globalManager.storeOps.WithLabelValues(op).Inc()
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// RecordStoreDiscard counts a discarded malformed blob.
func RecordStoreDiscard() {
	globalManager.storeDiscards.Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueue.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeue.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// UpdateWorkerCount sets the number of running mirror workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records how long one change took.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordStaleChange counts a change skipped by sequence.
func RecordStaleChange() {
	globalManager.changesStale.Inc()
}

// RecordChangePublished counts a change handed to the broker.
func RecordChangePublished() {
	globalManager.changesPublished.Inc()
}

// UpdateSubscribers sets the number of live subscribers on transport ("sse", "ws").
func UpdateSubscribers(transport string, count int) {
	globalManager.subscribers.WithLabelValues(transport).Set(float64(count))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap memory in use in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
