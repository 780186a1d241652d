// Package observability exposes prometheus instrumentation for the engine.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the engine's counters around a private registry so tests
// can construct isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	JobsSubmitted   *prometheus.CounterVec
	JobsSettled     *prometheus.CounterVec
	ProviderErrors  *prometheus.CounterVec
	CreditsGranted  prometheus.Counter
	CreditsConsumed prometheus.Counter
}

// NewMetrics registers all engine collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	m := &Metrics{
		registry: reg,
		JobsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_submitted_total",
			Help: "Jobs accepted for submission, by kind.",
		}, []string{"kind"}),
		JobsSettled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_settled_total",
			Help: "Jobs reaching a terminal state, by outcome.",
		}, []string{"status"}),
		ProviderErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "provider_errors_total",
			Help: "Provider adapter failures, by class.",
		}, []string{"class"}),
		CreditsGranted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credits_granted_total",
			Help: "Credits added to user balances.",
		}),
		CreditsConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "credits_consumed_total",
			Help: "Credits deducted through job settlement.",
		}),
	}
	reg.MustRegister(m.JobsSubmitted, m.JobsSettled, m.ProviderErrors, m.CreditsGranted, m.CreditsConsumed)
	return m
}

// Handler serves the registry in prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
