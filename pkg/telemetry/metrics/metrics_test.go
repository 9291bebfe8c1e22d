package metrics

import (
	"testing"

	"mercator-hq/callisto/pkg/config"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

// Helper function to create test config
func testConfig() *config.MetricsConfig {
	return &config.MetricsConfig{
		Enabled:   true,
		Namespace: "test",
		Subsystem: "callisto",
	}
}

// TestCollector_NewCollector tests collector creation
func TestCollector_NewCollector(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()

	collector := NewCollector(cfg, registry)

	if collector == nil {
		t.Fatal("Expected non-nil collector")
	}
	if collector.config != cfg {
		t.Error("Collector config not set correctly")
	}
	if collector.registry != registry {
		t.Error("Collector registry not set correctly")
	}
}

// TestCollector_Defaults tests namespace and subsystem defaults
func TestCollector_Defaults(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: true}
	collector := NewCollector(cfg, nil)

	if cfg.Namespace != "mercator" {
		t.Errorf("Expected default namespace 'mercator', got %q", cfg.Namespace)
	}
	if cfg.Subsystem != "callisto" {
		t.Errorf("Expected default subsystem 'callisto', got %q", cfg.Subsystem)
	}
	if collector.Registry() == nil {
		t.Error("Expected collector to create a registry when nil is passed")
	}
}

// TestCollector_RecordDelivery tests delivery attempt recording
func TestCollector_RecordDelivery(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()
	collector := NewCollector(cfg, registry)

	collector.RecordDelivery("error", "accepted")
	collector.RecordDelivery("error", "accepted")
	collector.RecordDelivery("attachment", "transport_error")

	accepted := testutil.ToFloat64(
		collector.deliveryMetrics.deliveriesTotal.WithLabelValues("error", "accepted"))
	if accepted != 2 {
		t.Errorf("Expected 2 accepted error deliveries, got %v", accepted)
	}

	failed := testutil.ToFloat64(
		collector.deliveryMetrics.deliveriesTotal.WithLabelValues("attachment", "transport_error"))
	if failed != 1 {
		t.Errorf("Expected 1 failed attachment delivery, got %v", failed)
	}
}

// TestCollector_RecordCapture tests capture outcome recording
func TestCollector_RecordCapture(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()
	collector := NewCollector(cfg, registry)

	collector.RecordCapture("failure")
	collector.RecordCapture("failure")
	collector.RecordCapture("success")

	failures := testutil.ToFloat64(
		collector.deliveryMetrics.capturesTotal.WithLabelValues("failure"))
	if failures != 2 {
		t.Errorf("Expected 2 captured failures, got %v", failures)
	}
}

// TestCollector_StorageGauges tests storage gauge updates
func TestCollector_StorageGauges(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()
	collector := NewCollector(cfg, registry)

	collector.SetPendingRows(7)
	collector.SetBlobBytes(1 << 20)
	collector.SetReplayRows(42)

	if got := testutil.ToFloat64(collector.storageMetrics.pendingRows); got != 7 {
		t.Errorf("Expected pending rows gauge 7, got %v", got)
	}
	if got := testutil.ToFloat64(collector.storageMetrics.blobBytes); got != 1<<20 {
		t.Errorf("Expected blob bytes gauge %d, got %v", 1<<20, got)
	}
	if got := testutil.ToFloat64(collector.storageMetrics.replayRows); got != 42 {
		t.Errorf("Expected replay rows gauge 42, got %v", got)
	}
}

// TestCollector_RecordDrop tests permanent drop recording
func TestCollector_RecordDrop(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()
	collector := NewCollector(cfg, registry)

	collector.RecordDrop("attempts_exhausted")

	got := testutil.ToFloat64(
		collector.deliveryMetrics.dropsTotal.WithLabelValues("attempts_exhausted"))
	if got != 1 {
		t.Errorf("Expected 1 drop, got %v", got)
	}
}

// TestCollector_ReplayOutcomes tests replay and policy fetch recording
func TestCollector_ReplayOutcomes(t *testing.T) {
	cfg := testConfig()
	registry := prometheus.NewRegistry()
	collector := NewCollector(cfg, registry)

	collector.RecordReplay("success")
	collector.RecordPolicyFetch("cached")

	if got := testutil.ToFloat64(collector.replayMetrics.replaysTotal.WithLabelValues("success")); got != 1 {
		t.Errorf("Expected 1 successful replay, got %v", got)
	}
	if got := testutil.ToFloat64(collector.replayMetrics.policyFetchesTotal.WithLabelValues("cached")); got != 1 {
		t.Errorf("Expected 1 cached policy fetch, got %v", got)
	}
}

// TestCollector_Disabled tests that a disabled collector records nothing
func TestCollector_Disabled(t *testing.T) {
	cfg := &config.MetricsConfig{Enabled: false, Namespace: "test", Subsystem: "callisto"}
	registry := prometheus.NewRegistry()
	collector := NewCollector(cfg, registry)

	collector.RecordCapture("failure")
	collector.RecordDelivery("error", "accepted")
	collector.SetPendingRows(5)
	collector.RecordRetryPass()

	if got := testutil.ToFloat64(collector.deliveryMetrics.retryPassesTotal); got != 0 {
		t.Errorf("Expected disabled collector to record nothing, got %v retry passes", got)
	}
	if got := testutil.ToFloat64(collector.storageMetrics.pendingRows); got != 0 {
		t.Errorf("Expected disabled collector to record nothing, got pending rows %v", got)
	}
}

// TestCollector_NilSafe tests that a nil collector is safe to call
func TestCollector_NilSafe(t *testing.T) {
	var collector *Collector

	collector.RecordCapture("failure")
	collector.RecordDelivery("error", "accepted")
	collector.RecordRetryPass()
	collector.RecordDrop("decode_error")
	collector.SetPendingRows(1)
	collector.SetBlobBytes(1)
	collector.SetReplayRows(1)
	collector.RecordReplay("failure")
	collector.RecordPolicyFetch("defaults")
}
