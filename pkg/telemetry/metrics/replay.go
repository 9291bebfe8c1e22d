package metrics

import (
	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// ReplayMetrics tracks metrics for policy fetching and replay execution.
//
// Metrics:
//   - mercator_callisto_replays_total: Executed replays by outcome
//   - mercator_callisto_policy_fetches_total: Policy fetch attempts by outcome
type ReplayMetrics struct {
	replaysTotal *prometheus.CounterVec

	policyFetchesTotal *prometheus.CounterVec
}

// NewReplayMetrics creates and registers replay metrics with the provided registry.
func NewReplayMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *ReplayMetrics {
	rm := &ReplayMetrics{
		replaysTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "replays_total",
				Help:      "Executed replays by outcome",
			},
			[]string{"outcome"},
		),

		policyFetchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "policy_fetches_total",
				Help:      "Policy fetch attempts by outcome",
			},
			[]string{"outcome"},
		),
	}

	registry.MustRegister(
		rm.replaysTotal,
		rm.policyFetchesTotal,
	)

	return rm
}

// RecordReplay increments the replay counter for the given outcome.
func (rm *ReplayMetrics) RecordReplay(outcome string) {
	rm.replaysTotal.WithLabelValues(outcome).Inc()
}

// RecordPolicyFetch increments the policy fetch counter for the given outcome.
func (rm *ReplayMetrics) RecordPolicyFetch(outcome string) {
	rm.policyFetchesTotal.WithLabelValues(outcome).Inc()
}
