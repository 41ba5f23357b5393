// Package metrics exposes Prometheus metrics for the verification service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the verification service's instruments. All methods are safe
// on a nil receiver so wiring metrics stays optional in tests.
type Metrics struct {
	flowsTotal          *prometheus.CounterVec
	flowErrors          *prometheus.CounterVec
	webhooksTotal       *prometheus.CounterVec
	providerCallSeconds *prometheus.HistogramVec
	claimsVerified      prometheus.Counter
}

// New registers the verification metrics on the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		flowsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idv_flows_total",
			Help: "Verification flow executions by phase.",
		}, []string{"phase"}),
		flowErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idv_flow_errors_total",
			Help: "Failed verification flow executions by error code.",
		}, []string{"code"}),
		webhooksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "idv_webhooks_total",
			Help: "Webhook deliveries by outcome.",
		}, []string{"outcome"}),
		providerCallSeconds: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "idv_provider_call_seconds",
			Help:    "Latency of outbound provider API calls.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		claimsVerified: factory.NewCounter(prometheus.CounterOpts{
			Name: "idv_claims_verified_total",
			Help: "Claims marked verified by reconciliation.",
		}),
	}
}

// RecordFlow counts one flow execution for a phase.
func (m *Metrics) RecordFlow(phase string) {
	if m == nil {
		return
	}
	m.flowsTotal.WithLabelValues(phase).Inc()
}

// RecordFlowError counts one failed flow execution.
func (m *Metrics) RecordFlowError(code string) {
	if m == nil {
		return
	}
	m.flowErrors.WithLabelValues(code).Inc()
}

// RecordWebhook counts one webhook delivery outcome.
func (m *Metrics) RecordWebhook(outcome string) {
	if m == nil {
		return
	}
	m.webhooksTotal.WithLabelValues(outcome).Inc()
}

// ObserveProviderCall records the latency of one provider API call.
func (m *Metrics) ObserveProviderCall(operation string, seconds float64) {
	if m == nil {
		return
	}
	m.providerCallSeconds.WithLabelValues(operation).Observe(seconds)
}

// RecordClaimsVerified counts claims marked verified.
func (m *Metrics) RecordClaimsVerified(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.claimsVerified.Add(float64(n))
}
