package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics groups the collectors exported on /metrics
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	AIRequests      *prometheus.CounterVec
	StoreWrites     *prometheus.CounterVec
}

// New creates and registers every collector on a private registry
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		AIRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "companion_ai_requests_total",
				Help: "Calls made to the generative model",
			},
			[]string{"operation", "outcome"},
		),
		StoreWrites: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "companion_store_writes_total",
				Help: "Writes issued to the remote store",
			},
			[]string{"collection", "operation", "outcome"},
		),
	}

	m.Registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.AIRequests,
		m.StoreWrites,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Outcome labels a call result
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
