// Package metrics exposes Prometheus instrumentation for function
// executions, spreadsheet calls and ranking calls.
//
// All Observe* methods are nil-safe so components can be built without
// metrics in tests.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storefn"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics groups every collector storefn registers.
type Metrics struct {
	FunctionCalls    *prometheus.CounterVec
	FunctionDuration *prometheus.HistogramVec
	StoreCalls       *prometheus.CounterVec
	StoreDuration    *prometheus.HistogramVec
	RankCalls        *prometheus.CounterVec
	RateLimited      prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		FunctionCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "function_calls_total",
			Help:      "Function executions by function name and outcome kind.",
		}, []string{"function", "outcome"}),
		FunctionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "function_duration_seconds",
			Help:      "Function execution latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"function"}),
		StoreCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_calls_total",
			Help:      "Spreadsheet service calls by operation and outcome.",
		}, []string{"operation", "outcome"}),
		StoreDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_call_duration_seconds",
			Help:      "Spreadsheet service call latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		RankCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rank_calls_total",
			Help:      "Semantic ranking calls by provider and outcome.",
		}, []string{"provider", "outcome"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Inbound requests rejected by the per-store rate limiter.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.FunctionCalls, m.FunctionDuration, m.StoreCalls, m.StoreDuration, m.RankCalls, m.RateLimited)
	}
	return m
}

// ObserveFunction records one function execution. outcome is "success" or a
// failure kind such as "validation".
func (m *Metrics) ObserveFunction(function, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.FunctionCalls.WithLabelValues(function, outcome).Inc()
	m.FunctionDuration.WithLabelValues(function).Observe(d.Seconds())
}

// ObserveStoreCall records one spreadsheet read or append.
func (m *Metrics) ObserveStoreCall(op string, err error, d time.Duration) {
	if m == nil {
		return
	}
	m.StoreCalls.WithLabelValues(op, outcome(err)).Inc()
	m.StoreDuration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveRank records one ranking call.
func (m *Metrics) ObserveRank(provider string, err error) {
	if m == nil {
		return
	}
	m.RankCalls.WithLabelValues(provider, outcome(err)).Inc()
}

// ObserveRateLimited records a rejected inbound request.
func (m *Metrics) ObserveRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// Handler returns the HTTP handler serving the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
