package metrics

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hitwire"

// Metrics holds the collectors for client calls and served requests.
// It satisfies both http.Observer and server.Observer.
type Metrics struct {
	registry *prometheus.Registry

	clientCalls    *prometheus.CounterVec
	clientErrors   *prometheus.CounterVec
	clientRetries  *prometheus.CounterVec
	clientDuration *prometheus.HistogramVec

	serverRequests *prometheus.CounterVec
	serverDuration *prometheus.HistogramVec
}

// New creates a Metrics instance backed by its own registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		clientCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "Outgoing HTTP calls by transport, method and status.",
		}, []string{"transport", "method", "status"}),
		clientErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "errors_total",
			Help:      "Outgoing HTTP calls that failed without a response.",
		}, []string{"transport", "method"}),
		clientRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "retried_total",
			Help:      "Outgoing HTTP calls that needed more than one attempt.",
		}, []string{"transport"}),
		clientDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "client",
			Name:      "call_duration_seconds",
			Help:      "Outgoing HTTP call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"transport"}),
		serverRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "requests_total",
			Help:      "Served requests by method, status and kind.",
		}, []string{"method", "status", "kind"}),
		serverDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "request_duration_seconds",
			Help:      "Time spent serving a request, including configured delays.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"kind"}),
	}

	m.registry.MustRegister(
		m.clientCalls,
		m.clientErrors,
		m.clientRetries,
		m.clientDuration,
		m.serverRequests,
		m.serverDuration,
		collectors.NewGoCollector(),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "heap_alloc_bytes",
			Help:      "Bytes of allocated heap objects.",
		}, func() float64 {
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			return float64(ms.HeapAlloc)
		}),
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveCall records one outgoing call.
func (m *Metrics) ObserveCall(transport, method string, status int, d time.Duration, retried bool, err error) {
	if err != nil {
		m.clientErrors.WithLabelValues(transport, method).Inc()
	} else {
		m.clientCalls.WithLabelValues(transport, method, strconv.Itoa(status)).Inc()
	}
	if retried {
		m.clientRetries.WithLabelValues(transport).Inc()
	}
	m.clientDuration.WithLabelValues(transport).Observe(d.Seconds())
}

// ObserveRequest records one served request.
func (m *Metrics) ObserveRequest(method string, status int, d time.Duration, api bool) {
	kind := "page"
	if api {
		kind = "api"
	}
	m.serverRequests.WithLabelValues(method, strconv.Itoa(status), kind).Inc()
	m.serverDuration.WithLabelValues(kind).Observe(d.Seconds())
}

// GaugeFunc registers a gauge whose value is read on every scrape,
// e.g. the number of live sessions.
func (m *Metrics) GaugeFunc(name, help string, fn func() float64) error {
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      name,
		Help:      help,
	}, fn))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
