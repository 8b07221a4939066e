// Package metrics provides Prometheus metrics for the loot rotation service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const defaultRefreshInterval = 10 * time.Second

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Rotation and distribution
	queueBuilds         prometheus.Counter
	queueBuildLatency   prometheus.Histogram
	distributions       *prometheus.CounterVec
	cascadeSkips        prometheus.Counter
	distributionErrors  *prometheus.CounterVec
	distributionLatency prometheus.Histogram
	duplicateRequests   prometheus.Counter

	// Roster and ledger sizes
	playersTotal prometheus.Gauge
	itemsTotal   prometheus.Gauge
	eventsTotal  prometheus.Gauge
	worklistSize prometheus.Gauge

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec

	// Live feed
	liveSubscribers prometheus.Gauge
	liveDropped     prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByType     *prometheus.CounterVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewMetricsManager(WithPrometheusRegistry(customRegistry))
}

// NewMetricsManager creates a new metrics manager and registers its collectors.
func NewMetricsManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "lootrota",
		subsystem:        "rotation",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
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

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)
	labels := prometheus.Labels(m.customLabels)

	m.queueBuilds = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("queue_builds_total"),
		Help: "Total number of priority queues computed",
	})
	m.queueBuildLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("queue_build_latency_milliseconds"),
		Help:    "Time to compute one priority queue in milliseconds",
		Buckets: m.histogramBuckets,
	})
	m.distributions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("distributions_total"),
		Help: "Distribution actions applied by kind",
	}, []string{"kind"})
	m.cascadeSkips = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("cascade_skips_total"),
		Help: "Skipped events generated automatically ahead of a winner",
	})
	m.distributionErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("distribution_errors_total"),
		Help: "Distribution attempts rejected or rolled back, by reason",
	}, []string{"reason"})
	m.distributionLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("distribution_latency_milliseconds"),
		Help:    "End to end distribution latency including the store transaction",
		Buckets: m.histogramBuckets,
	})
	m.duplicateRequests = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("duplicate_requests_total"),
		Help: "Distribution requests ignored because their request id was already seen",
	})

	m.playersTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("players_total"), Help: "Registered players",
	})
	m.itemsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("items_total"), Help: "Registered items",
	})
	m.eventsTotal = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("ledger_events_total"), Help: "Events in the loot ledger",
	})
	m.worklistSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("worklist_size"), Help: "Entries waiting in the distribution worklist",
	})

	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("store_latency_milliseconds"),
		Help:    "Store operation latency in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"op"})
	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("store_errors_total"), Help: "Store operation failures",
	}, []string{"op"})

	m.liveSubscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("live_subscribers"), Help: "Connected live feed subscribers",
	})
	m.liveDropped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("live_dropped_total"), Help: "Change notifications dropped for slow subscribers",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("http_requests_total"),
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("http_request_duration_milliseconds"),
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorRateByType = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("errors_by_type_total"), Help: "Errors by type and severity",
	}, []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("errors_by_endpoint_total"), Help: "Errors by endpoint",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("system_memory_usage_bytes"), Help: "Heap bytes allocated",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name: m.name("system_goroutine_count"), Help: "Number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: labels,
		Name:    m.name("system_gc_pause_time_milliseconds"),
		Help:    "Average GC pause time in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordQueueBuild counts one queue computation and its latency.
func RecordQueueBuild(latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.queueBuilds.Inc()
	globalManager.queueBuildLatency.Observe(latencyMs)
}

// RecordDistribution counts an applied action and its automatic skips.
func RecordDistribution(kind string, skipped int, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.distributions.WithLabelValues(kind).Inc()
	globalManager.cascadeSkips.Add(float64(skipped))
	globalManager.distributionLatency.Observe(latencyMs)
}

// RecordDistributionError counts a rejected or rolled back distribution.
func RecordDistributionError(reason string) {
	globalManager.distributionErrors.WithLabelValues(reason).Inc()
}

// RecordDuplicateRequest counts a request id seen twice.
func RecordDuplicateRequest() {
	globalManager.duplicateRequests.Inc()
}

// UpdateRosterTotals sets the player, item and ledger gauges.
func UpdateRosterTotals(players, items, events int) {
	globalManager.playersTotal.Set(float64(players))
	globalManager.itemsTotal.Set(float64(items))
	globalManager.eventsTotal.Set(float64(events))
}

// UpdateWorklistSize sets the worklist gauge.
func UpdateWorklistSize(size int) {
	globalManager.worklistSize.Set(float64(size))
}

// RecordStoreLatency observes one store operation.
func RecordStoreLatency(op string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordStoreError counts a failed store operation.
func RecordStoreError(op string) {
	globalManager.storeErrors.WithLabelValues(op).Inc()
}

// UpdateLiveSubscribers sets the live feed subscriber gauge.
func UpdateLiveSubscribers(count int) {
	globalManager.liveSubscribers.Set(float64(count))
}

// RecordLiveDropped counts a notification dropped for a slow subscriber.
func RecordLiveDropped() {
	globalManager.liveDropped.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
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

// RefreshInterval returns how often gauges should be refreshed by callers.
func RefreshInterval() time.Duration {
	return globalManager.refreshInterval
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
