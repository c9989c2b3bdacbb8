// Package metrics holds the Prometheus collectors of a ledger node
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "harn_ledger"

// Metrics groups every collector on its own registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	submissions *prometheus.CounterVec
	messages    *prometheus.CounterVec
	view        prometheus.Gauge
	sequence    prometheus.Gauge
	pending     prometheus.Gauge
	cache       *prometheus.CounterVec

	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	inflight    prometheus.Gauge
	rateLimited prometheus.Counter
}

// New creates and registers the collectors
func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Submitted records by outcome",
		}, []string{"outcome"}),
		messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "consensus_messages_total",
			Help:      "Consensus messages produced by phase",
		}, []string{"phase"}),
		view: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "view",
			Help:      "Current consensus view",
		}),
		sequence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "global_sequence",
			Help:      "Last assigned global sequence number",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_requests",
			Help:      "Requests waiting for a commit quorum",
		}),
		cache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "verify_cache_total",
			Help:      "Signature verification cache lookups by result",
		}, []string{"result"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total number of API requests",
		}, []string{"method", "route", "code"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		inflight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_requests_inflight",
			Help:      "Number of inflight API requests",
		}),
		rateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_rate_limited_total",
			Help:      "Requests refused by the rate limiter",
		}),
	}

	for _, c := range []prometheus.Collector{
		m.submissions, m.messages, m.view, m.sequence, m.pending, m.cache,
		m.requests, m.duration, m.inflight, m.rateLimited,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := m.registry.Register(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// Registry exposes the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSubmission counts a submission outcome (committed, pending, rejected)
func (m *Metrics) ObserveSubmission(outcome string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(outcome).Inc()
}

// ObserveMessage counts consensus messages for a phase
func (m *Metrics) ObserveMessage(phase string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.messages.WithLabelValues(phase).Add(float64(n))
}

// SetView records the current view
func (m *Metrics) SetView(view uint64) {
	if m == nil {
		return
	}
	m.view.Set(float64(view))
}

// SetSequence records the global sequence number
func (m *Metrics) SetSequence(seq uint64) {
	if m == nil {
		return
	}
	m.sequence.Set(float64(seq))
}

// SetPending records the number of in-flight requests
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}

// ObserveCache counts a verification cache hit or miss
func (m *Metrics) ObserveCache(hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}

// RequestStarted tracks an inflight request; call the returned func when it
// completes
func (m *Metrics) RequestStarted() func() {
	if m == nil {
		return func() {}
	}
	m.inflight.Inc()
	return m.inflight.Dec
}

// ObserveRequest records a finished HTTP request
func (m *Metrics) ObserveRequest(method, route string, code int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.duration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// IncRateLimited counts a throttled request
func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimited.Inc()
}
