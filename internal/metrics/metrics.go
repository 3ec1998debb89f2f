package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var durationBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// Service holds the per-hop request metrics. Each hop carries its own
// registry so nothing leaks through process-wide default state.
type Service struct {
	registry *prometheus.Registry

	RequestDuration *prometheus.HistogramVec
}

func NewService(serviceName string) *Service {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Service{
		registry: reg,
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   "hopchain",
			Name:        "request_duration_seconds",
			Help:        "Inbound request duration by path and status code.",
			Buckets:     durationBuckets,
			ConstLabels: prometheus.Labels{"service": serviceName},
		}, []string{"path", "code"}),
	}
}

func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}

// Driver holds the load-driver loop metrics.
type Driver struct {
	registry *prometheus.Registry

	Attempts *prometheus.CounterVec
	Latency  prometheus.Histogram
}

func NewDriver() *Driver {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Driver{
		registry: reg,
		Attempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hopchain",
			Name:      "driver_attempts_total",
			Help:      "Driver request attempts by outcome.",
		}, []string{"outcome"}),
		Latency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "hopchain",
			Name:      "driver_request_duration_seconds",
			Help:      "End-to-end latency of driver requests.",
			Buckets:   durationBuckets,
		}),
	}
}

func (d *Driver) Handler() http.Handler {
	return promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{})
}
