package providers

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"iotd/internal/structures"
	"time"
)

type MetricsProviderInterface interface {
	IncRequestsTotal(endpoint string, status int)
	ObserveRequestDuration(endpoint string, duration time.Duration)
	IncCacheHits()
	IncCacheMisses()
	IncMessagesReceived(kind string)
	IncMessagesDropped(reason string)
	IncPublished(result string)
	IncStateTransitions(state string)
	IncAlerts(kind string)
	IncArchivesCreated()
	IncArchiveFailures()
	ObserveCompressionRatio(ratio float64)
	ObserveJobDuration(job string, duration time.Duration)
}

type MetricsProvider struct {
	requestsTotal    *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	cacheHits        prometheus.Counter
	cacheMisses      prometheus.Counter
	messagesReceived *prometheus.CounterVec
	messagesDropped  *prometheus.CounterVec
	published        *prometheus.CounterVec
	stateTransitions *prometheus.CounterVec
	alerts           *prometheus.CounterVec
	archivesCreated  prometheus.Counter
	archiveFailures  prometheus.Counter
	compressionRatio prometheus.Histogram
	jobDuration      *prometheus.HistogramVec
}

func (m *MetricsProvider) IncRequestsTotal(endpoint string, status int) {
	m.requestsTotal.WithLabelValues(endpoint, httpStatusBucket(status)).Inc()
}

func (m *MetricsProvider) ObserveRequestDuration(endpoint string, duration time.Duration) {
	m.requestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

func (m *MetricsProvider) IncCacheHits() {
	m.cacheHits.Inc()
}

func (m *MetricsProvider) IncCacheMisses() {
	m.cacheMisses.Inc()
}

func (m *MetricsProvider) IncMessagesReceived(kind string) {
	m.messagesReceived.WithLabelValues(kind).Inc()
}

func (m *MetricsProvider) IncMessagesDropped(reason string) {
	m.messagesDropped.WithLabelValues(reason).Inc()
}

func (m *MetricsProvider) IncPublished(result string) {
	m.published.WithLabelValues(result).Inc()
}

func (m *MetricsProvider) IncStateTransitions(state string) {
	m.stateTransitions.WithLabelValues(state).Inc()
}

func (m *MetricsProvider) IncAlerts(kind string) {
	m.alerts.WithLabelValues(kind).Inc()
}

func (m *MetricsProvider) IncArchivesCreated() {
	m.archivesCreated.Inc()
}

func (m *MetricsProvider) IncArchiveFailures() {
	m.archiveFailures.Inc()
}

func (m *MetricsProvider) ObserveCompressionRatio(ratio float64) {
	m.compressionRatio.Observe(ratio)
}

func (m *MetricsProvider) ObserveJobDuration(job string, duration time.Duration) {
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

func httpStatusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

func NewMetricsProvider(conf *structures.Config) MetricsProviderInterface {
	if !conf.Metrics.Enabled {
		return &noopMetrics{}
	}

	return &MetricsProvider{
		requestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "iotd_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"endpoint", "status"}),

		requestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iotd_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),

		cacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "iotd_cache_hits_total",
			Help: "Total number of cache hits",
		}),

		cacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Name: "iotd_cache_misses_total",
			Help: "Total number of cache misses",
		}),

		messagesReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "iotd_mqtt_messages_total",
			Help: "Inbound bus messages by kind",
		}, []string{"kind"}),

		messagesDropped: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "iotd_mqtt_messages_dropped_total",
			Help: "Inbound bus messages dropped by reason",
		}, []string{"reason"}),

		published: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "iotd_mqtt_published_total",
			Help: "Outbound publish attempts by result",
		}, []string{"result"}),

		stateTransitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "iotd_device_state_transitions_total",
			Help: "Device connectivity transitions by target state",
		}, []string{"state"}),

		alerts: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "iotd_device_alerts_total",
			Help: "Device alerts raised by kind",
		}, []string{"kind"}),

		archivesCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "iotd_archives_created_total",
			Help: "Daily archive blobs created",
		}),

		archiveFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "iotd_archive_failures_total",
			Help: "Failed device-day archive attempts",
		}),

		compressionRatio: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "iotd_archive_compression_ratio",
			Help:    "Compression ratio of created archive blobs",
			Buckets: prometheus.LinearBuckets(0.05, 0.1, 10),
		}),

		jobDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "iotd_job_duration_seconds",
			Help:    "Duration of scheduled jobs in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"job"}),
	}
}

// noopMetrics is a no-op implementation for when metrics are disabled.
type noopMetrics struct{}

func (n *noopMetrics) IncRequestsTotal(_ string, _ int)                 {}
func (n *noopMetrics) ObserveRequestDuration(_ string, _ time.Duration) {}
func (n *noopMetrics) IncCacheHits()                                    {}
func (n *noopMetrics) IncCacheMisses()                                  {}
func (n *noopMetrics) IncMessagesReceived(_ string)                     {}
func (n *noopMetrics) IncMessagesDropped(_ string)                      {}
func (n *noopMetrics) IncPublished(_ string)                            {}
func (n *noopMetrics) IncStateTransitions(_ string)                     {}
func (n *noopMetrics) IncAlerts(_ string)                               {}
func (n *noopMetrics) IncArchivesCreated()                              {}
func (n *noopMetrics) IncArchiveFailures()                              {}
func (n *noopMetrics) ObserveCompressionRatio(_ float64)                {}
func (n *noopMetrics) ObserveJobDuration(_ string, _ time.Duration)     {}
