// Package metrics exposes the Prometheus collectors docweave publishes on
// /metrics: generation-run counters, webhook-delivery counters by event
// kind, and a gauge of currently in-flight generations (SPEC_FULL.md §9
// "/metrics endpoint"). Nothing in the teacher tree exercised
// prometheus/client_golang directly; this package gives that indirect
// dependency a home.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics bundles the collectors wired into the Orchestrator, the Webhook
// Receiver, and the Status Reconciler.
type Metrics struct {
	GenerationsStarted    prometheus.Counter
	GenerationsCompleted  prometheus.Counter
	GenerationsFailed     prometheus.Counter
	GenerationsInFlight   prometheus.Gauge
	WebhookDeliveries     *prometheus.CounterVec
	ReconcilerCorrections prometheus.Counter
}

// New registers a fresh Metrics set against reg and returns it. Passing
// prometheus.NewRegistry() keeps tests isolated from the global default
// registry; internal/app also passes a fresh prometheus.NewRegistry() per
// bootstrap.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		GenerationsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "docweave_generations_started_total",
			Help: "Total number of documentation generation runs started.",
		}),
		GenerationsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "docweave_generations_completed_total",
			Help: "Total number of documentation generation runs that completed successfully.",
		}),
		GenerationsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "docweave_generations_failed_total",
			Help: "Total number of documentation generation runs that ended in error.",
		}),
		GenerationsInFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "docweave_generations_in_flight",
			Help: "Number of repository generations currently running.",
		}),
		WebhookDeliveries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "docweave_webhook_deliveries_total",
			Help: "Total number of webhook deliveries received, labeled by event kind and outcome.",
		}, []string{"event", "outcome"}),
		ReconcilerCorrections: factory.NewCounter(prometheus.CounterOpts{
			Name: "docweave_reconciler_corrections_total",
			Help: "Total number of times the Status Reconciler promoted a stale status to complete.",
		}),
	}
}
