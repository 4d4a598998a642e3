package server

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jrsteele09/go-gate-pass/gatepass"
)

// Metrics holds the gate's Prometheus collectors on a private registry.
type Metrics struct {
	registry   *prometheus.Registry
	admissions *prometheus.CounterVec
	latency    prometheus.Histogram
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		admissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatepass",
			Name:      "admissions_total",
			Help:      "Scan attempts by decision and rejection reason.",
		}, []string{"decision", "reason"}),
		latency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gatepass",
			Name:      "validation_seconds",
			Help:      "Time spent validating a scanned payload.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
	m.registry.MustRegister(
		m.admissions,
		m.latency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Observe records one validation outcome.
func (m *Metrics) Observe(d gatepass.Decision, elapsed time.Duration) {
	decision := "rejected"
	if d.Accepted {
		decision = "accepted"
	}
	reason := string(d.Reason)
	if reason == "" {
		reason = "none"
	}
	m.admissions.WithLabelValues(decision, reason).Inc()
	m.latency.Observe(elapsed.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry so callers can add their own collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
