// Package metrics holds the Prometheus collectors of the API. All methods
// are safe on a nil *Metrics so callers need not check whether metrics are
// enabled.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the set of application collectors and the registry they live in.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	StatsUpserts        *prometheus.CounterVec
	WorkflowFailures    *prometheus.CounterVec
	TxRollbacks         prometheus.Counter
	SecretDecodeFailure prometheus.Counter
	CacheLookups        *prometheus.CounterVec
}

// New creates and registers the collectors under namespace.
func New(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by route and status",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"method", "route"}),
		StatsUpserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stats_upserts_total",
			Help:      "Player stat upserts by outcome",
		}, []string{"result"}),
		WorkflowFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_failures_total",
			Help:      "Failed workflow operations by operation and error kind",
		}, []string{"operation", "kind"}),
		TxRollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tx_rollbacks_total",
			Help:      "Transactions rolled back by a failing workflow",
		}),
		SecretDecodeFailure: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "secret_decode_failures_total",
			Help:      "Stored secrets that could not be decoded",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Public server cache lookups by result",
		}, []string{"result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests,
		m.HTTPDuration,
		m.StatsUpserts,
		m.WorkflowFailures,
		m.TxRollbacks,
		m.SecretDecodeFailure,
		m.CacheLookups,
	)

	return m
}

// Handler serves the exposition format for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// DecodeFailureCounter returns the counter handed to the secret codec, or
// nil when metrics are disabled.
func (m *Metrics) DecodeFailureCounter() prometheus.Counter {
	if m == nil {
		return nil
	}
	return m.SecretDecodeFailure
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// IncUpsert counts a stats upsert by result.
func (m *Metrics) IncUpsert(result string) {
	if m == nil {
		return
	}
	m.StatsUpserts.WithLabelValues(result).Inc()
}

// IncFailure counts a failed workflow operation.
func (m *Metrics) IncFailure(operation, kind string) {
	if m == nil {
		return
	}
	m.WorkflowFailures.WithLabelValues(operation, kind).Inc()
}

// IncRollback counts a rolled back transaction.
func (m *Metrics) IncRollback() {
	if m == nil {
		return
	}
	m.TxRollbacks.Inc()
}

// IncCache counts a cache lookup as "hit", "miss" or "error".
func (m *Metrics) IncCache(result string) {
	if m == nil {
		return
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
