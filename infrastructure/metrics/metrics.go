// Package metrics exposes the Prometheus collectors of the semantic core.
// Collectors are registered on an injected registry, never the global one.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "yukpo"

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Metrics holds the collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests        *prometheus.CounterVec
	searchLatency   prometheus.Histogram
	searchResults   prometheus.Histogram
	fieldFailures   *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	indexJobs       *prometheus.CounterVec
	gatewayRetries  *prometheus.CounterVec
	gatewayLatency  *prometheus.HistogramVec
	deactivations   prometheus.Counter
	alerts          prometheus.Counter
	admissionDenied prometheus.Counter
	inflight        prometheus.Gauge
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.NewRegistry())
}

// NewWithRegistry registers every collector on reg.
func NewWithRegistry(reg *prometheus.Registry) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "requests_total",
			Help:      "Orchestrated requests by resolved intent and outcome.",
		}, []string{"intent", "outcome"}),
		searchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Latency of service searches.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}),
		searchResults: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search.",
			Buckets:   []float64{0, 1, 2, 5, 10},
		}),
		fieldFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_field_failures_total",
			Help:      "Field-level vector queries that failed and were skipped.",
		}, []string{"field"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Cache lookups by cache name and result.",
		}, []string{"cache", "result"}),
		indexJobs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_jobs_total",
			Help:      "Service indexing jobs by outcome.",
		}, []string{"outcome"}),
		gatewayRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_gateway_retries_total",
			Help:      "Retried calls to the embedding service by operation.",
		}, []string{"operation"}),
		gatewayLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "embedding_gateway_duration_seconds",
			Help:      "Latency of embedding service calls including retries.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 60},
		}, []string{"operation", "outcome"}),
		deactivations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_deactivations_total",
			Help:      "Services deactivated by the lifecycle sweep.",
		}),
		alerts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lifecycle_alerts_total",
			Help:      "Inactive alerts sent to owners.",
		}),
		admissionDenied: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "admission_denied_total",
			Help:      "Requests refused because the admission limit was reached.",
		}),
		inflight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "requests_inflight",
			Help:      "Requests currently admitted.",
		}),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest counts an orchestrated request.
func (m *Metrics) ObserveRequest(intent string, err error) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(intent, outcome(err)).Inc()
}

// ObserveSearch records a search latency and result count.
func (m *Metrics) ObserveSearch(d time.Duration, results int) {
	if m == nil {
		return
	}
	m.searchLatency.Observe(d.Seconds())
	m.searchResults.Observe(float64(results))
}

// ObserveFieldFailure counts a skipped field query.
func (m *Metrics) ObserveFieldFailure(field string) {
	if m == nil {
		return
	}
	m.fieldFailures.WithLabelValues(field).Inc()
}

// ObserveCache counts a cache hit or miss.
func (m *Metrics) ObserveCache(cache string, hit bool) {
	if m == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(cache, result).Inc()
}

// ObserveIndexJob counts a finished indexing job.
func (m *Metrics) ObserveIndexJob(err error) {
	if m == nil {
		return
	}
	m.indexJobs.WithLabelValues(outcome(err)).Inc()
}

// ObserveRetry counts a retried gateway call.
func (m *Metrics) ObserveRetry(operation string) {
	if m == nil {
		return
	}
	m.gatewayRetries.WithLabelValues(operation).Inc()
}

// ObserveGatewayCall records the duration of a gateway call.
func (m *Metrics) ObserveGatewayCall(operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.gatewayLatency.WithLabelValues(operation, outcome(err)).Observe(d.Seconds())
}

// ObserveDeactivation counts a sweep deactivation.
func (m *Metrics) ObserveDeactivation() {
	if m == nil {
		return
	}
	m.deactivations.Inc()
}

// ObserveAlert counts an owner alert.
func (m *Metrics) ObserveAlert() {
	if m == nil {
		return
	}
	m.alerts.Inc()
}

// ObserveAdmissionDenied counts a refused request.
func (m *Metrics) ObserveAdmissionDenied() {
	if m == nil {
		return
	}
	m.admissionDenied.Inc()
}

// Admitted adjusts the in-flight gauge by delta.
func (m *Metrics) Admitted(delta int) {
	if m == nil {
		return
	}
	m.inflight.Add(float64(delta))
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailed
	}
	return OutcomeSuccess
}
