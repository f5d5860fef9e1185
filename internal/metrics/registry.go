// Package metrics defines the server's observability surface: a single
// NFSMetrics interface (RPC requests, connections, bytes transferred, cache
// hits/misses, quota rejections) and a Prometheus-backed implementation. Every collector method is also a
// nil-receiver no-op, so a server run with metrics disabled pays nothing
// for instrumentation beyond a nil check.
package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	mu       sync.Mutex
	registry *prometheus.Registry
	enabled  atomic.Bool
)

// InitRegistry creates the process-wide Prometheus registry and marks
// metrics as enabled. Must be called before any NewXxxMetrics constructor
// if their output is to be non-nil.
func InitRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	registry = prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))
	enabled.Store(true)
	return registry
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return enabled.Load()
}

// GetRegistry returns the process-wide registry, creating it on first use.
func GetRegistry() *prometheus.Registry {
	mu.Lock()
	defer mu.Unlock()
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	return registry
}

// Handler returns the HTTP handler to mount at the metrics listen address
// (the optional /metrics endpoint).
func Handler() http.Handler {
	return promhttp.HandlerFor(GetRegistry(), promhttp.HandlerOpts{})
}
