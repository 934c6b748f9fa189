// Package metrics exposes Prometheus collectors for the relay.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "chat_relay"

	requestsTotalName    = "requests_total"
	rateLimitedTotalName = "rate_limited_total"
	upstreamDurationName = "upstream_duration_seconds"

	requestsTotalDescription    = "Chat requests handled, by HTTP status code"
	rateLimitedTotalDescription = "Chat requests rejected by the rate limiter"
	upstreamDurationDescription = "Latency of completion calls, by outcome"
)

// Upstream call outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
	OutcomeTimeout = "timeout"
)

// Metrics owns its registry so tests and multiple servers never collide.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	rateLimitedTotal prometheus.Counter
	upstreamDuration *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      requestsTotalName,
			Help:      requestsTotalDescription,
		}, []string{"code"}),
		rateLimitedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      rateLimitedTotalName,
			Help:      rateLimitedTotalDescription,
		}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      upstreamDurationName,
			Help:      upstreamDurationDescription,
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}, []string{"outcome"}),
	}

	m.registry.MustRegister(
		m.requestsTotal,
		m.rateLimitedTotal,
		m.upstreamDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) ObserveRequest(status int) {
	if m == nil {
		return
	}
	m.requestsTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitedTotal.Inc()
}

func (m *Metrics) ObserveUpstream(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.upstreamDuration.WithLabelValues(outcome).Observe(took.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
