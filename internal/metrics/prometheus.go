package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// prometheusMetrics is the Prometheus-backed implementation of NFSMetrics.
type prometheusMetrics struct {
	requests          *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	bytesTransferred  *prometheus.CounterVec
	activeConnections prometheus.Gauge
	connsAccepted     *prometheus.CounterVec
	connsClosed       *prometheus.CounterVec
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	quotaRejections   prometheus.Counter
}

// NewNFSMetrics creates a Prometheus-backed NFSMetrics instance, or returns
// nil if InitRegistry has not been called -- callers pass nil straight
// through to server.New for zero-overhead instrumentation.
func NewNFSMetrics() NFSMetrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()
	return &prometheusMetrics{
		requests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "simplenfsd_requests_total",
				Help: "Total RPC requests by program, procedure, and status",
			},
			[]string{"program", "procedure", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "simplenfsd_request_duration_seconds",
				Help:    "RPC request handling duration",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"program", "procedure"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "simplenfsd_bytes_transferred_total",
				Help: "Bytes moved by READ/WRITE procedures",
			},
			[]string{"direction"},
		),
		activeConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Name: "simplenfsd_active_connections",
				Help: "Currently open TCP connections",
			},
		),
		connsAccepted: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "simplenfsd_connections_accepted_total",
				Help: "Total connections accepted by transport",
			},
			[]string{"transport"},
		),
		connsClosed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "simplenfsd_connections_closed_total",
				Help: "Total connections closed by transport",
			},
			[]string{"transport"},
		),
		cacheHits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "simplenfsd_cache_hits_total",
				Help: "Cache hits by cache type",
			},
			[]string{"cache_type"},
		),
		cacheMisses: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "simplenfsd_cache_misses_total",
				Help: "Cache misses by cache type",
			},
			[]string{"cache_type"},
		),
		quotaRejections: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Name: "simplenfsd_quota_rejections_total",
				Help: "WRITE calls rejected by the quota table",
			},
		),
	}
}

func (m *prometheusMetrics) RecordRequest(program, procedure string, duration time.Duration, status string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(program, procedure, status).Inc()
	m.requestDuration.WithLabelValues(program, procedure).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordBytesTransferred(direction string, bytes uint64) {
	if m == nil {
		return
	}
	m.bytesTransferred.WithLabelValues(direction).Add(float64(bytes))
}

func (m *prometheusMetrics) SetActiveConnections(count int) {
	if m == nil {
		return
	}
	m.activeConnections.Set(float64(count))
}

func (m *prometheusMetrics) RecordConnectionAccepted(transport string) {
	if m == nil {
		return
	}
	m.connsAccepted.WithLabelValues(transport).Inc()
}

func (m *prometheusMetrics) RecordConnectionClosed(transport string) {
	if m == nil {
		return
	}
	m.connsClosed.WithLabelValues(transport).Inc()
}

func (m *prometheusMetrics) RecordCacheHit(cacheType string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(cacheType).Inc()
}

func (m *prometheusMetrics) RecordCacheMiss(cacheType string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(cacheType).Inc()
}

func (m *prometheusMetrics) RecordQuotaRejection() {
	if m == nil {
		return
	}
	m.quotaRejections.Inc()
}
