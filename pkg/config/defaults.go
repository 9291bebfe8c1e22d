package config

import "time"

// Default values for configuration fields.
const (
	// Collector defaults
	DefaultCollectorTimeout = 30 * time.Second

	// Client defaults
	DefaultEnvironment       = "production"
	DefaultSuccessSampleRate = 0.0

	// Redaction defaults
	DefaultRedactAuthorization = true

	// Attachment defaults
	DefaultBlobDir       = "data/blobs"
	DefaultMaxPerEvent   = 10
	DefaultMaxFileSize   = int64(10 * 1024 * 1024)
	DefaultMaxTotalSize  = int64(50 * 1024 * 1024)
	DefaultSweepSchedule = "0 3 * * *"
	DefaultMaxBlobAge    = 7 * 24 * time.Hour

	// Delivery defaults
	DefaultBaseDelay   = 30 * time.Second
	DefaultMaxAttempts = 5

	// Storage defaults
	DefaultPendingDBPath = "data/pending.db"
	DefaultReplayDBPath  = "data/replay.db"
	DefaultReplayMaxRows = 100
	DefaultBusyTimeout   = 5 * time.Second

	// Policy defaults
	DefaultPolicyCachePath = "data/policy.json"
	DefaultPolicyTTL       = time.Hour

	// Telemetry defaults
	DefaultLogLevel         = "info"
	DefaultLogFormat        = "json"
	DefaultRedactLogValues  = true
	DefaultMetricsNamespace = "mercator"
	DefaultMetricsSubsystem = "callisto"
)

// ApplyDefaults fills zero-valued fields with their defaults. It never
// overrides a value the user set explicitly.
func ApplyDefaults(cfg *Config) {
	// Collector
	if cfg.Collector.Timeout <= 0 {
		cfg.Collector.Timeout = DefaultCollectorTimeout
	}

	// Client
	if cfg.Client.Environment == "" {
		cfg.Client.Environment = DefaultEnvironment
	}

	// Redaction
	if cfg.Redaction.RedactAuthorization == nil {
		v := DefaultRedactAuthorization
		cfg.Redaction.RedactAuthorization = &v
	}

	// Attachments
	if cfg.Attachments.BlobDir == "" {
		cfg.Attachments.BlobDir = DefaultBlobDir
	}
	if cfg.Attachments.MaxPerEvent <= 0 {
		cfg.Attachments.MaxPerEvent = DefaultMaxPerEvent
	}
	if cfg.Attachments.MaxFileSize <= 0 {
		cfg.Attachments.MaxFileSize = DefaultMaxFileSize
	}
	if cfg.Attachments.MaxTotalSize <= 0 {
		cfg.Attachments.MaxTotalSize = DefaultMaxTotalSize
	}
	if cfg.Attachments.SweepSchedule == "" {
		cfg.Attachments.SweepSchedule = DefaultSweepSchedule
	}
	if cfg.Attachments.MaxBlobAge <= 0 {
		cfg.Attachments.MaxBlobAge = DefaultMaxBlobAge
	}

	// Delivery
	if cfg.Delivery.BaseDelay <= 0 {
		cfg.Delivery.BaseDelay = DefaultBaseDelay
	}
	if cfg.Delivery.MaxAttempts <= 0 {
		cfg.Delivery.MaxAttempts = DefaultMaxAttempts
	}

	// Storage
	if cfg.Storage.PendingDBPath == "" {
		cfg.Storage.PendingDBPath = DefaultPendingDBPath
	}
	if cfg.Storage.ReplayDBPath == "" {
		cfg.Storage.ReplayDBPath = DefaultReplayDBPath
	}
	if cfg.Storage.ReplayMaxRows <= 0 {
		cfg.Storage.ReplayMaxRows = DefaultReplayMaxRows
	}
	if cfg.Storage.BusyTimeout <= 0 {
		cfg.Storage.BusyTimeout = DefaultBusyTimeout
	}

	// Policy
	if cfg.Policy.CachePath == "" {
		cfg.Policy.CachePath = DefaultPolicyCachePath
	}
	if cfg.Policy.TTL <= 0 {
		cfg.Policy.TTL = DefaultPolicyTTL
	}

	// Telemetry
	if cfg.Telemetry.Logging.Level == "" {
		cfg.Telemetry.Logging.Level = DefaultLogLevel
	}
	if cfg.Telemetry.Logging.Format == "" {
		cfg.Telemetry.Logging.Format = DefaultLogFormat
	}
	if cfg.Telemetry.Logging.RedactValues == nil {
		v := DefaultRedactLogValues
		cfg.Telemetry.Logging.RedactValues = &v
	}
	if cfg.Telemetry.Metrics.Namespace == "" {
		cfg.Telemetry.Metrics.Namespace = DefaultMetricsNamespace
	}
	if cfg.Telemetry.Metrics.Subsystem == "" {
		cfg.Telemetry.Metrics.Subsystem = DefaultMetricsSubsystem
	}
}
