package metrics

import (
	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector is the main orchestrator for all Prometheus metrics in Callisto.
// It manages metric registration and provides a unified interface for
// recording metrics across the capture and delivery pipeline.
//
// All recording methods are cheap no-ops when metrics are disabled, so
// call sites never need to guard their calls.
type Collector struct {
	config   *config.MetricsConfig
	registry *prometheus.Registry

	// Delivery pipeline metrics
	deliveryMetrics *DeliveryMetrics

	// Local storage metrics (retry queue, attachment blobs, replay store)
	storageMetrics *StorageMetrics

	// Replay execution metrics
	replayMetrics *ReplayMetrics
}

// NewCollector creates a new metrics collector with the specified configuration
// and Prometheus registry. If registry is nil, a fresh registry is created.
//
// Example:
//
//	cfg := &config.MetricsConfig{
//		Enabled:   true,
//		Namespace: "mercator",
//		Subsystem: "callisto",
//	}
//	collector := metrics.NewCollector(cfg, nil)
func NewCollector(cfg *config.MetricsConfig, registry *prometheus.Registry) *Collector {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	// Set defaults if not specified
	if cfg.Namespace == "" {
		cfg.Namespace = "mercator"
	}
	if cfg.Subsystem == "" {
		cfg.Subsystem = "callisto"
	}

	c := &Collector{
		config:   cfg,
		registry: registry,
	}

	// Initialize metric subsystems
	c.deliveryMetrics = NewDeliveryMetrics(cfg, registry)
	c.storageMetrics = NewStorageMetrics(cfg, registry)
	c.replayMetrics = NewReplayMetrics(cfg, registry)

	return c
}

// RecordCapture records one captured request outcome.
//
// Parameters:
//   - outcome: "failure" or "success"
func (c *Collector) RecordCapture(outcome string) {
	if c == nil || !c.config.Enabled {
		return
	}

	c.deliveryMetrics.RecordCapture(outcome)
}

// RecordDelivery records one delivery attempt for a single owed package kind.
//
// Parameters:
//   - kind: Package kind ("error", "statistical", "attachment")
//   - outcome: Attempt outcome ("accepted", "rejected", "transport_error")
func (c *Collector) RecordDelivery(kind, outcome string) {
	if c == nil || !c.config.Enabled {
		return
	}

	c.deliveryMetrics.RecordDelivery(kind, outcome)
}

// RecordRetryPass records one scheduler pass over the due rows of the
// retry queue.
func (c *Collector) RecordRetryPass() {
	if c == nil || !c.config.Enabled {
		return
	}

	c.deliveryMetrics.RecordRetryPass()
}

// RecordDrop records one pending row dropped permanently.
//
// Parameters:
//   - reason: Drop reason ("attempts_exhausted", "decode_error")
func (c *Collector) RecordDrop(reason string) {
	if c == nil || !c.config.Enabled {
		return
	}

	c.deliveryMetrics.RecordDrop(reason)
}

// SetPendingRows records the current depth of the durable retry queue.
func (c *Collector) SetPendingRows(n int) {
	if c == nil || !c.config.Enabled {
		return
	}

	c.storageMetrics.SetPendingRows(n)
}

// SetBlobBytes records the total size of encrypted attachment blobs on disk.
func (c *Collector) SetBlobBytes(bytes int64) {
	if c == nil || !c.config.Enabled {
		return
	}

	c.storageMetrics.SetBlobBytes(bytes)
}

// SetReplayRows records the number of events held in the local replay store.
func (c *Collector) SetReplayRows(n int) {
	if c == nil || !c.config.Enabled {
		return
	}

	c.storageMetrics.SetReplayRows(n)
}

// RecordReplay records one executed replay.
//
// Parameters:
//   - outcome: "success", "failure", or "missing_event"
func (c *Collector) RecordReplay(outcome string) {
	if c == nil || !c.config.Enabled {
		return
	}

	c.replayMetrics.RecordReplay(outcome)
}

// RecordPolicyFetch records one policy fetch attempt against the collector.
//
// Parameters:
//   - outcome: "success", "cached", or "defaults"
func (c *Collector) RecordPolicyFetch(outcome string) {
	if c == nil || !c.config.Enabled {
		return
	}

	c.replayMetrics.RecordPolicyFetch(outcome)
}

// Registry returns the Prometheus registry used by this collector.
// This can be used to create an HTTP handler for the /metrics endpoint:
//
//	http.Handle("/metrics", promhttp.HandlerFor(
//		collector.Registry(),
//		promhttp.HandlerOpts{},
//	))
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}
