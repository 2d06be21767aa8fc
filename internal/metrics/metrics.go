package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector groups the console's Prometheus metrics. A nil *Collector is valid
// and records nothing.
type Collector struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	flows    *prometheus.CounterVec
	scans    *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "maraudr",
			Name:      "backend_requests_total",
			Help:      "Backend requests by backend, operation and outcome.",
		}, []string{"backend", "op", "outcome"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "maraudr",
			Name:      "backend_request_duration_seconds",
			Help:      "Backend request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"backend", "op"}),
		flows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "maraudr",
			Name:      "add_item_submissions_total",
			Help:      "Add-item submissions by entry mode and outcome.",
		}, []string{"mode", "outcome"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "maraudr",
			Name:      "scanner_sessions_total",
			Help:      "Scanner sessions by how they ended.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(c.requests, c.latency, c.flows, c.scans)
	return c
}

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler exposes reg in the Prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// ObserveRequest records one backend call.
func (c *Collector) ObserveRequest(backend, op, outcome string, d time.Duration) {
	if c == nil {
		return
	}
	c.requests.WithLabelValues(backend, op, outcome).Inc()
	c.latency.WithLabelValues(backend, op).Observe(d.Seconds())
}

// FlowSubmitted records one add-item submission.
func (c *Collector) FlowSubmitted(mode, outcome string) {
	if c == nil {
		return
	}
	c.flows.WithLabelValues(mode, outcome).Inc()
}

// ScanFinished records how a scanner session ended.
func (c *Collector) ScanFinished(outcome string) {
	if c == nil {
		return
	}
	c.scans.WithLabelValues(outcome).Inc()
}
