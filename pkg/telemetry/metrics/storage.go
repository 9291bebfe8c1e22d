package metrics

import (
	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
)

// StorageMetrics tracks gauges for the local durable state: the retry
// queue, the encrypted attachment blob directory, and the replay store.
//
// Metrics:
//   - mercator_callisto_pending_rows: Current retry queue depth
//   - mercator_callisto_blob_bytes: Bytes of encrypted attachment blobs on disk
//   - mercator_callisto_replay_rows: Events held for potential replay
type StorageMetrics struct {
	pendingRows prometheus.Gauge

	blobBytes prometheus.Gauge

	replayRows prometheus.Gauge
}

// NewStorageMetrics creates and registers storage metrics with the provided registry.
func NewStorageMetrics(cfg *config.MetricsConfig, registry *prometheus.Registry) *StorageMetrics {
	sm := &StorageMetrics{
		pendingRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "pending_rows",
				Help:      "Current number of rows in the durable retry queue",
			},
		),

		blobBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "blob_bytes",
				Help:      "Total bytes of encrypted attachment blobs on disk",
			},
		),

		replayRows: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: cfg.Namespace,
				Subsystem: cfg.Subsystem,
				Name:      "replay_rows",
				Help:      "Current number of events held in the local replay store",
			},
		),
	}

	registry.MustRegister(
		sm.pendingRows,
		sm.blobBytes,
		sm.replayRows,
	)

	return sm
}

// SetPendingRows updates the retry queue depth gauge.
func (sm *StorageMetrics) SetPendingRows(n int) {
	sm.pendingRows.Set(float64(n))
}

// SetBlobBytes updates the blob storage gauge.
func (sm *StorageMetrics) SetBlobBytes(bytes int64) {
	sm.blobBytes.Set(float64(bytes))
}

// SetReplayRows updates the replay store gauge.
func (sm *StorageMetrics) SetReplayRows(n int) {
	sm.replayRows.Set(float64(n))
}
