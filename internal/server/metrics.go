package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"net/http"
)

// metrics holds the Prometheus instruments a router updates as connections
// come and go. Grounded on vango-go-vango's prometheus/client_golang use.
type metrics struct {
	connectedClients prometheus.Gauge
	heartbeatEvicted prometheus.Counter
	requestsTotal    prometheus.Counter
	requestDuration  prometheus.Histogram
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)
	return &metrics{
		connectedClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "doggyhole_connected_clients",
			Help: "Number of currently authenticated client sessions.",
		}),
		heartbeatEvicted: factory.NewCounter(prometheus.CounterOpts{
			Name: "doggyhole_heartbeat_evictions_total",
			Help: "Total sessions evicted for failing to answer a heartbeat.",
		}),
		requestsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "doggyhole_requests_total",
			Help: "Total server-RPC requests dispatched.",
		}),
		requestDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "doggyhole_request_duration_seconds",
			Help:    "Server-RPC handler latency.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// MetricsHandler exposes the Prometheus registry behind /metrics.
func (s *Server) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(s.registerer.(*prometheus.Registry), promhttp.HandlerOpts{})
}
