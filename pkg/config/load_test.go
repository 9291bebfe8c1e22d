package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return configPath
}

const validConfigContent = `
collector:
  base_url: "https://collector.example.com"
  api_key: "test-key-123"
  timeout: "10s"

client:
  device_id: "device-42"
  environment: "staging"
  app_version: "2.1.0"
  success_sample_rate: 0.25

encryption:
  key: "0123456789abcdef0123456789abcdef"

redaction:
  header_names: ["x-api-key"]
  body_field_names: ["password", "ssn"]

telemetry:
  logging:
    level: "debug"
    format: "text"
  metrics:
    enabled: true
`

func TestLoadConfig_ValidFile(t *testing.T) {
	configPath := writeConfigFile(t, validConfigContent)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Collector.BaseURL != "https://collector.example.com" {
		t.Errorf("expected base URL %q, got %q", "https://collector.example.com", cfg.Collector.BaseURL)
	}
	if cfg.Collector.APIKey != "test-key-123" {
		t.Errorf("expected API key %q, got %q", "test-key-123", cfg.Collector.APIKey)
	}
	if cfg.Collector.Timeout != 10*time.Second {
		t.Errorf("expected timeout %v, got %v", 10*time.Second, cfg.Collector.Timeout)
	}
	if cfg.Client.DeviceID != "device-42" {
		t.Errorf("expected device ID %q, got %q", "device-42", cfg.Client.DeviceID)
	}
	if cfg.Client.SuccessSampleRate != 0.25 {
		t.Errorf("expected sample rate 0.25, got %v", cfg.Client.SuccessSampleRate)
	}
	if len(cfg.Redaction.BodyFieldNames) != 2 {
		t.Errorf("expected 2 body field names, got %d", len(cfg.Redaction.BodyFieldNames))
	}
	if cfg.Telemetry.Logging.Level != "debug" {
		t.Errorf("expected logging level %q, got %q", "debug", cfg.Telemetry.Logging.Level)
	}
	if !cfg.Telemetry.Metrics.Enabled {
		t.Error("expected metrics to be enabled")
	}
}

func TestLoadConfig_DefaultsApplied(t *testing.T) {
	configPath := writeConfigFile(t, `
collector:
  base_url: "https://collector.example.com"

encryption:
  key: "test-key"
`)

	cfg, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Collector.Timeout != DefaultCollectorTimeout {
		t.Errorf("expected default timeout %v, got %v", DefaultCollectorTimeout, cfg.Collector.Timeout)
	}
	if cfg.Client.Environment != DefaultEnvironment {
		t.Errorf("expected default environment %q, got %q", DefaultEnvironment, cfg.Client.Environment)
	}
	if cfg.Redaction.RedactAuthorization == nil || !*cfg.Redaction.RedactAuthorization {
		t.Error("expected redact_authorization to default to true")
	}
	if cfg.Attachments.MaxPerEvent != DefaultMaxPerEvent {
		t.Errorf("expected default max per event %d, got %d", DefaultMaxPerEvent, cfg.Attachments.MaxPerEvent)
	}
	if cfg.Attachments.MaxFileSize != DefaultMaxFileSize {
		t.Errorf("expected default max file size %d, got %d", DefaultMaxFileSize, cfg.Attachments.MaxFileSize)
	}
	if cfg.Attachments.SweepSchedule != DefaultSweepSchedule {
		t.Errorf("expected default sweep schedule %q, got %q", DefaultSweepSchedule, cfg.Attachments.SweepSchedule)
	}
	if cfg.Delivery.BaseDelay != DefaultBaseDelay {
		t.Errorf("expected default base delay %v, got %v", DefaultBaseDelay, cfg.Delivery.BaseDelay)
	}
	if cfg.Delivery.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("expected default max attempts %d, got %d", DefaultMaxAttempts, cfg.Delivery.MaxAttempts)
	}
	if cfg.Storage.PendingDBPath != DefaultPendingDBPath {
		t.Errorf("expected default pending DB path %q, got %q", DefaultPendingDBPath, cfg.Storage.PendingDBPath)
	}
	if cfg.Storage.ReplayMaxRows != DefaultReplayMaxRows {
		t.Errorf("expected default replay max rows %d, got %d", DefaultReplayMaxRows, cfg.Storage.ReplayMaxRows)
	}
	if cfg.Policy.TTL != DefaultPolicyTTL {
		t.Errorf("expected default policy TTL %v, got %v", DefaultPolicyTTL, cfg.Policy.TTL)
	}
	if cfg.Telemetry.Logging.Level != DefaultLogLevel {
		t.Errorf("expected default log level %q, got %q", DefaultLogLevel, cfg.Telemetry.Logging.Level)
	}
	if cfg.Telemetry.Metrics.Namespace != DefaultMetricsNamespace {
		t.Errorf("expected default namespace %q, got %q", DefaultMetricsNamespace, cfg.Telemetry.Metrics.Namespace)
	}
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	_, err := LoadConfig("/nonexistent/config.yaml")
	if err == nil {
		t.Error("expected error for nonexistent file")
	}
	if !strings.Contains(err.Error(), "no such file or directory") {
		t.Errorf("expected file not found error, got: %v", err)
	}
}

func TestLoadConfig_MalformedYAML(t *testing.T) {
	configPath := writeConfigFile(t, `
collector:
  base_url: "https://collector.example.com"
  invalid yaml here: [
`)

	_, err := LoadConfig(configPath)
	if err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadConfig_ValidationFailure(t *testing.T) {
	// Missing collector base URL and encryption key material.
	configPath := writeConfigFile(t, `
client:
  environment: "staging"
`)

	_, err := LoadConfig(configPath)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !strings.Contains(err.Error(), "collector.base_url") {
		t.Errorf("expected base URL validation error, got: %v", err)
	}
	if !strings.Contains(err.Error(), "encryption") {
		t.Errorf("expected encryption validation error, got: %v", err)
	}
}

func TestLoadConfigWithEnvOverrides(t *testing.T) {
	configPath := writeConfigFile(t, validConfigContent)

	t.Setenv("CALLISTO_COLLECTOR_BASE_URL", "https://override.example.com")
	t.Setenv("CALLISTO_COLLECTOR_API_KEY", "env-key")
	t.Setenv("CALLISTO_CLIENT_ENVIRONMENT", "production")
	t.Setenv("CALLISTO_DELIVERY_BASE_DELAY", "5s")
	t.Setenv("CALLISTO_DELIVERY_MAX_ATTEMPTS", "9")
	t.Setenv("CALLISTO_TELEMETRY_LOGGING_LEVEL", "warn")

	cfg, err := LoadConfigWithEnvOverrides(configPath)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Collector.BaseURL != "https://override.example.com" {
		t.Errorf("expected overridden base URL, got %q", cfg.Collector.BaseURL)
	}
	if cfg.Collector.APIKey != "env-key" {
		t.Errorf("expected overridden API key, got %q", cfg.Collector.APIKey)
	}
	if cfg.Client.Environment != "production" {
		t.Errorf("expected overridden environment, got %q", cfg.Client.Environment)
	}
	if cfg.Delivery.BaseDelay != 5*time.Second {
		t.Errorf("expected overridden base delay, got %v", cfg.Delivery.BaseDelay)
	}
	if cfg.Delivery.MaxAttempts != 9 {
		t.Errorf("expected overridden max attempts, got %d", cfg.Delivery.MaxAttempts)
	}
	if cfg.Telemetry.Logging.Level != "warn" {
		t.Errorf("expected overridden log level, got %q", cfg.Telemetry.Logging.Level)
	}
}

func TestLoadConfigWithEnvOverrides_InvalidOverride(t *testing.T) {
	configPath := writeConfigFile(t, validConfigContent)

	// An override that makes the config invalid must fail validation.
	t.Setenv("CALLISTO_COLLECTOR_BASE_URL", "not-a-url")

	_, err := LoadConfigWithEnvOverrides(configPath)
	if err == nil {
		t.Fatal("expected validation error after override")
	}
	if !strings.Contains(err.Error(), "collector.base_url") {
		t.Errorf("expected base URL validation error, got: %v", err)
	}
}
