package metrics

import (
	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// DeliveryMetrics tracks metrics for the capture and delivery pipeline.
//
// Metrics:
//   - mercator_callisto_captures_total: Captured requests by outcome
//   - mercator_callisto_deliveries_total: Delivery attempts by kind and outcome
//   - mercator_callisto_retry_passes_total: Scheduler passes over due rows
//   - mercator_callisto_drops_total: Rows dropped permanently, by reason
type DeliveryMetrics struct {
	capturesTotal *prometheus.CounterVec

	deliveriesTotal *prometheus.CounterVec

	retryPassesTotal prometheus.Counter

	dropsTotal *prometheus.CounterVec
}

// NewDeliveryMetrics creates and registers delivery metrics with the provided registry.
func NewDeliveryMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *DeliveryMetrics {
	dm := &DeliveryMetrics{
		capturesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "captures_total",
				Help:      "Total number of captured requests by outcome",
			},
			[]string{"outcome"},
		),

		deliveriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "deliveries_total",
				Help:      "Delivery attempts by package kind and outcome",
			},
			[]string{"kind", "outcome"},
		),

		retryPassesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "retry_passes_total",
				Help:      "Total number of scheduler passes over due pending rows",
			},
		),

		dropsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "drops_total",
				Help:      "Pending rows dropped permanently, by reason",
			},
			[]string{"reason"},
		),
	}

	// Register all metrics
	registry.MustRegister(
		dm.capturesTotal,
		dm.deliveriesTotal,
		dm.retryPassesTotal,
		dm.dropsTotal,
	)

	return dm
}

// RecordCapture increments the capture counter for the given outcome.
func (dm *DeliveryMetrics) RecordCapture(outcome string) {
	dm.capturesTotal.WithLabelValues(outcome).Inc()
}

// RecordDelivery increments the delivery counter for a kind/outcome pair.
func (dm *DeliveryMetrics) RecordDelivery(kind, outcome string) {
	dm.deliveriesTotal.WithLabelValues(kind, outcome).Inc()
}

// RecordRetryPass increments the retry pass counter.
func (dm *DeliveryMetrics) RecordRetryPass() {
	dm.retryPassesTotal.Inc()
}

// RecordDrop increments the drop counter for the given reason.
func (dm *DeliveryMetrics) RecordDrop(reason string) {
	dm.dropsTotal.WithLabelValues(reason).Inc()
}
