// Package metrics exposes Prometheus instrumentation for the HTTP surface
// and the order commands.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type ServerMetrics struct {
	Requests  *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
	Commands  *prometheus.CounterVec
}

func NewServerMetrics(service string) *ServerMetrics {
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oms",
		Subsystem: service,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests.",
	}, []string{"handler", "status"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "oms",
		Subsystem: service,
		Name:      "http_request_duration_ms",
		Help:      "HTTP request latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"handler"})
	commands := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "oms",
		Subsystem: service,
		Name:      "order_commands_total",
		Help:      "Order commands by kind and outcome.",
	}, []string{"command", "outcome"})

	prometheus.MustRegister(requests, latency, commands)
	return &ServerMetrics{Requests: requests, LatencyMS: latency, Commands: commands}
}

func Handler() http.Handler {
	return promhttp.Handler()
}
