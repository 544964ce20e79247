// Package metrics exposes the saga counters and remote call latencies to
// Prometheus. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "order_saga"

type Metrics struct {
	sagas                *prometheus.CounterVec
	compensations        *prometheus.CounterVec
	compensationFailures *prometheus.CounterVec
	remoteCalls          *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		sagas: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Saga runs by operation and result.",
		}, []string{"operation", "result"}),
		compensations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensations_total",
			Help:      "Compensating calls by step kind and result.",
		}, []string{"kind", "result"}),
		compensationFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compensation_failures_total",
			Help:      "Compensations that exhausted their retries. Each one is residual stock or balance drift that needs an operator.",
		}, []string{"kind"}),
		remoteCalls: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Latency of calls to the product, inventory and wallet services.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"collaborator", "operation", "outcome"}),
	}
}

func (m *Metrics) SagaFinished(operation, result string) {
	if m == nil {
		return
	}
	m.sagas.WithLabelValues(operation, result).Inc()
}

func (m *Metrics) Compensated(kind string, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.compensations.WithLabelValues(kind, "failed").Inc()
		m.compensationFailures.WithLabelValues(kind).Inc()
		return
	}
	m.compensations.WithLabelValues(kind, "ok").Inc()
}

func (m *Metrics) ObserveRemoteCall(collaborator, operation string, d time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.remoteCalls.WithLabelValues(collaborator, operation, outcome).Observe(d.Seconds())
}
