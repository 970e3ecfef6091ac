package rpc

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for outbound backend calls.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	Requests *prometheus.CounterVec
	Duration *prometheus.HistogramVec
	InFlight *prometheus.GaugeVec
}

// NewMetrics registers the collectors on the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(nil)
}

// NewMetricsWithRegistry registers the collectors on registry.
func NewMetricsWithRegistry(registry prometheus.Registerer) *Metrics {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}
	factory := promauto.With(registry)

	return &Metrics{
		Requests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "zanomcp_backend_requests_total",
			Help: "Outbound backend calls by backend, method and outcome",
		}, []string{"backend", "method", "outcome"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "zanomcp_backend_request_duration_seconds",
			Help:    "Latency of outbound backend calls",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"backend"}),
		InFlight: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "zanomcp_backend_requests_in_flight",
			Help: "Outbound backend calls currently waiting for a response",
		}, []string{"backend"}),
	}
}

func (m *Metrics) begin(backend string) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(backend).Inc()
}

func (m *Metrics) observe(backend, method string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.InFlight.WithLabelValues(backend).Dec()
	m.Requests.WithLabelValues(backend, method, Kind(err)).Inc()
	m.Duration.WithLabelValues(backend).Observe(elapsed.Seconds())
}
