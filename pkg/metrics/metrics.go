// Package metrics exposes Prometheus collectors for expression evaluation.
//
// A nil *Metrics is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors of one evaluator, provider or server.
type Metrics struct {
	// EvaluatorCalls counts evaluator runs by evaluator name.
	EvaluatorCalls *prometheus.CounterVec
	// EvaluatorDuration is the time from first pull to exhaustion.
	EvaluatorDuration *prometheus.HistogramVec
	// EvaluationErrors counts errors by evaluator and error code.
	EvaluationErrors *prometheus.CounterVec
	// ProviderQueries counts record provider queries by provider and status.
	ProviderQueries *prometheus.CounterVec
	// RequestTotal counts HTTP requests by method, path and status.
	RequestTotal *prometheus.CounterVec
	// RequestDuration is the latency of HTTP requests.
	RequestDuration *prometheus.HistogramVec
}

// New registers the collectors with reg. Passing nil uses the default
// registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		EvaluatorCalls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchexpr_evaluator_calls_total",
				Help: "Total number of evaluator runs",
			},
			[]string{"evaluator"},
		),
		EvaluatorDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchexpr_evaluator_duration_seconds",
				Help:    "Evaluator run time in seconds, from first pull to exhaustion",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"evaluator"},
		),
		EvaluationErrors: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchexpr_evaluation_errors_total",
				Help: "Total number of evaluation errors",
			},
			[]string{"evaluator", "code"},
		),
		ProviderQueries: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchexpr_provider_queries_total",
				Help: "Total number of record provider queries",
			},
			[]string{"provider", "status"},
		),
		RequestTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "searchexpr_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "searchexpr_http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// ObserveCall counts one evaluator run.
func (m *Metrics) ObserveCall(evaluator string) {
	if m == nil {
		return
	}
	m.EvaluatorCalls.WithLabelValues(evaluator).Inc()
}

// ObserveDuration records how long an evaluator run took.
func (m *Metrics) ObserveDuration(evaluator string, d time.Duration) {
	if m == nil {
		return
	}
	m.EvaluatorDuration.WithLabelValues(evaluator).Observe(d.Seconds())
}

// ObserveError counts one evaluation error.
func (m *Metrics) ObserveError(evaluator, code string) {
	if m == nil {
		return
	}
	m.EvaluationErrors.WithLabelValues(evaluator, code).Inc()
}

// ObserveQuery counts one provider query.
func (m *Metrics) ObserveQuery(provider string, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.ProviderQueries.WithLabelValues(provider, status).Inc()
}

// ObserveRequest records one HTTP request.
func (m *Metrics) ObserveRequest(method, path, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
