package config

import "time"

// Config is the root configuration structure for Callisto. It contains
// all configuration sections for the collector connection, capture
// identity, encryption, redaction, attachments, delivery, local storage,
// policy caching, and telemetry.
type Config struct {
	// Collector contains the remote collector endpoint configuration.
	Collector CollectorConfig `yaml:"collector"`

	// Client contains capture identity and sampling settings.
	Client ClientConfig `yaml:"client"`

	// Encryption contains the key material configuration.
	Encryption EncryptionConfig `yaml:"encryption"`

	// Redaction contains the rules applied to captured requests before
	// anything is persisted or transmitted.
	Redaction RedactionConfig `yaml:"redaction"`

	// Attachments contains binary capture limits and blob retention
	// settings.
	Attachments AttachmentsConfig `yaml:"attachments"`

	// Delivery contains retry and backoff settings.
	Delivery DeliveryConfig `yaml:"delivery"`

	// Storage contains the local SQLite database locations.
	Storage StorageConfig `yaml:"storage"`

	// Policy contains remote policy caching settings.
	Policy PolicyConfig `yaml:"policy"`

	// Telemetry contains logging and metrics configuration.
	Telemetry TelemetryConfig `yaml:"telemetry"`
}

// CollectorConfig contains the remote collector endpoint configuration.
type CollectorConfig struct {
	// BaseURL is the collector endpoint root.
	// Example: "https://collector.example.com/v1"
	BaseURL string `yaml:"base_url"`

	// APIKey authenticates this client to the collector.
	APIKey string `yaml:"api_key"`

	// Timeout bounds each exchange with the collector.
	// Default: 30s
	Timeout time.Duration `yaml:"timeout"`
}

// ClientConfig contains capture identity and sampling settings.
type ClientConfig struct {
	// DeviceID identifies this installation. Generated and persisted on
	// first use when empty.
	DeviceID string `yaml:"device_id"`

	// Environment tags captured events (e.g. "production", "staging").
	// Default: "production"
	Environment string `yaml:"environment"`

	// AppVersion tags captured events with the host application version.
	AppVersion string `yaml:"app_version"`

	// SuccessSampleRate is the fraction of successful requests reported
	// as statistical packages, between 0 and 1. Failures are always
	// captured. Default: 0 (successes not reported).
	SuccessSampleRate float64 `yaml:"success_sample_rate"`
}

// EncryptionConfig contains the key material configuration. Exactly one
// of Key and KeyFile must be set.
type EncryptionConfig struct {
	// Key is the key material. 32 bytes are used verbatim; anything
	// else is hashed to a 32-byte key.
	Key string `yaml:"key"`

	// KeyFile reads the key material from a file instead.
	KeyFile string `yaml:"key_file"`
}

// RedactionConfig contains the capture-time redaction rules.
type RedactionConfig struct {
	// HeaderNames are redacted case-insensitively in request and
	// response headers.
	HeaderNames []string `yaml:"header_names"`

	// BodyFieldNames are redacted case-insensitively at any depth of
	// JSON-shaped bodies. A matching field's value is replaced wholly.
	BodyFieldNames []string `yaml:"body_field_names"`

	// QueryParamNames have their values blanked in captured URLs.
	QueryParamNames []string `yaml:"query_param_names"`

	// RedactAuthorization blanks the Authorization header regardless of
	// HeaderNames. Default: true
	RedactAuthorization *bool `yaml:"redact_authorization"`

	// Patterns are regular expressions applied to every string leaf of
	// a body; matches are replaced with the redaction placeholder.
	// Invalid patterns are skipped.
	Patterns []string `yaml:"patterns"`
}

// AttachmentsConfig contains binary capture limits and blob retention.
type AttachmentsConfig struct {
	// BlobDir is the encrypted blob directory.
	// Default: "data/blobs"
	BlobDir string `yaml:"blob_dir"`

	// MaxPerEvent caps captured binary parts per event; parts beyond it
	// are skipped. Default: 10
	MaxPerEvent int `yaml:"max_per_event"`

	// MaxFileSize caps one part's size in bytes. Oversized parts are
	// skipped and excluded from the cumulative total. Default: 10 MiB
	MaxFileSize int64 `yaml:"max_file_size"`

	// MaxTotalSize caps the cumulative stored bytes per event.
	// Default: 50 MiB
	MaxTotalSize int64 `yaml:"max_total_size"`

	// SweepSchedule is the cron expression for the orphaned-blob sweep.
	// Default: "0 3 * * *"
	SweepSchedule string `yaml:"sweep_schedule"`

	// MaxBlobAge is the age past which a blob is swept.
	// Default: 168h (7 days)
	MaxBlobAge time.Duration `yaml:"max_blob_age"`
}

// DeliveryConfig contains retry and backoff settings.
type DeliveryConfig struct {
	// BaseDelay is the backoff unit: a row that has failed n retry
	// attempts becomes due again after BaseDelay * 2^n.
	// Default: 30s
	BaseDelay time.Duration `yaml:"base_delay"`

	// MaxAttempts is the retry cap; a row reaching it is dropped.
	// Default: 5
	MaxAttempts int `yaml:"max_attempts"`
}

// StorageConfig contains the local SQLite database locations.
type StorageConfig struct {
	// PendingDBPath is the retry queue database file.
	// Default: "data/pending.db"
	PendingDBPath string `yaml:"pending_db_path"`

	// ReplayDBPath is the local replay store database file.
	// Default: "data/replay.db"
	ReplayDBPath string `yaml:"replay_db_path"`

	// ReplayMaxRows caps retained replayable events; storing past the
	// cap evicts the oldest. Default: 100
	ReplayMaxRows int `yaml:"replay_max_rows"`

	// BusyTimeout is how long to wait for SQLite locks.
	// Default: 5s
	BusyTimeout time.Duration `yaml:"busy_timeout"`
}

// PolicyConfig contains remote policy caching settings.
type PolicyConfig struct {
	// CachePath is where the last fetched policy is persisted.
	// Default: "data/policy.json"
	CachePath string `yaml:"cache_path"`

	// TTL is how long a fetched or persisted policy stays usable.
	// Default: 1h
	TTL time.Duration `yaml:"ttl"`
}

// TelemetryConfig contains observability configuration.
type TelemetryConfig struct {
	// Logging contains structured logging configuration.
	Logging LoggingConfig `yaml:"logging"`

	// Metrics contains Prometheus metrics configuration.
	Metrics MetricsConfig `yaml:"metrics"`
}

// LoggingConfig contains structured logging configuration.
type LoggingConfig struct {
	// Level is the minimum log level ("debug", "info", "warn", "error").
	// Default: "info"
	Level string `yaml:"level"`

	// Format is the output format ("json", "text").
	// Default: "json"
	Format string `yaml:"format"`

	// AddSource includes file and line number in logs.
	// Default: false
	AddSource bool `yaml:"add_source"`

	// RedactValues scrubs credentials from log arguments.
	// Default: true
	RedactValues *bool `yaml:"redact_values"`
}

// MetricsConfig contains Prometheus metrics configuration.
type MetricsConfig struct {
	// Enabled controls whether metrics are recorded.
	// Default: false
	Enabled bool `yaml:"enabled"`

	// Namespace is the metric namespace.
	// Default: "mercator"
	Namespace string `yaml:"namespace"`

	// Subsystem is the metric subsystem.
	// Default: "callisto"
	Subsystem string `yaml:"subsystem"`
}
