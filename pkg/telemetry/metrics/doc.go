// Package metrics provides Prometheus metrics collection for Callisto.
//
// # Overview
//
// The metrics package implements Prometheus metrics for monitoring the
// capture and delivery pipeline: captured requests, delivery attempts,
// retry scheduling, permanent drops, local storage usage, policy fetches,
// and replay execution.
//
// # Metrics Categories
//
//   - Delivery Metrics: Captures, delivery attempts, retry passes, drops
//   - Storage Metrics: Retry queue depth, attachment blob bytes, replay rows
//   - Replay Metrics: Executed replays and policy fetch outcomes
//
// # Usage
//
//	// Create collector
//	collector := metrics.NewCollector(cfg, registry)
//
//	// Record pipeline metrics
//	collector.RecordCapture("failure")
//	collector.RecordDelivery("error", "accepted")
//	collector.SetPendingRows(3)
//
// # Prometheus Endpoint
//
// Callisto runs inside a host application and does not open a server of
// its own. Hosts that expose an HTTP surface can mount Collector.Handler
// to publish the metrics in standard Prometheus format:
//
//	# HELP mercator_callisto_deliveries_total Delivery attempts by package kind and outcome
//	# TYPE mercator_callisto_deliveries_total counter
//	mercator_callisto_deliveries_total{kind="error",outcome="accepted"} 1234
package metrics
