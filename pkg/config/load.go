package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns
// any errors. Environment variables are not consulted; use
// LoadConfigWithEnvOverrides for that.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and
// applies environment variable overrides. Environment variables follow
// the naming convention CALLISTO_SECTION_FIELD
// (e.g., CALLISTO_COLLECTOR_BASE_URL) and always take precedence over
// file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables use the format
// CALLISTO_SECTION_FIELD.
func applyEnvOverrides(cfg *Config) {
	// Collector overrides
	if val := os.Getenv("CALLISTO_COLLECTOR_BASE_URL"); val != "" {
		cfg.Collector.BaseURL = val
	}
	if val := os.Getenv("CALLISTO_COLLECTOR_API_KEY"); val != "" {
		cfg.Collector.APIKey = val
	}
	if val := os.Getenv("CALLISTO_COLLECTOR_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Collector.Timeout = d
		}
	}

	// Client overrides
	if val := os.Getenv("CALLISTO_CLIENT_DEVICE_ID"); val != "" {
		cfg.Client.DeviceID = val
	}
	if val := os.Getenv("CALLISTO_CLIENT_ENVIRONMENT"); val != "" {
		cfg.Client.Environment = val
	}
	if val := os.Getenv("CALLISTO_CLIENT_APP_VERSION"); val != "" {
		cfg.Client.AppVersion = val
	}
	if val := os.Getenv("CALLISTO_CLIENT_SUCCESS_SAMPLE_RATE"); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Client.SuccessSampleRate = f
		}
	}

	// Encryption overrides
	if val := os.Getenv("CALLISTO_ENCRYPTION_KEY"); val != "" {
		cfg.Encryption.Key = val
	}
	if val := os.Getenv("CALLISTO_ENCRYPTION_KEY_FILE"); val != "" {
		cfg.Encryption.KeyFile = val
	}

	// Attachment overrides
	if val := os.Getenv("CALLISTO_ATTACHMENTS_BLOB_DIR"); val != "" {
		cfg.Attachments.BlobDir = val
	}
	if val := os.Getenv("CALLISTO_ATTACHMENTS_MAX_PER_EVENT"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Attachments.MaxPerEvent = i
		}
	}
	if val := os.Getenv("CALLISTO_ATTACHMENTS_MAX_FILE_SIZE"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Attachments.MaxFileSize = i
		}
	}
	if val := os.Getenv("CALLISTO_ATTACHMENTS_MAX_TOTAL_SIZE"); val != "" {
		if i, err := strconv.ParseInt(val, 10, 64); err == nil {
			cfg.Attachments.MaxTotalSize = i
		}
	}
	if val := os.Getenv("CALLISTO_ATTACHMENTS_SWEEP_SCHEDULE"); val != "" {
		cfg.Attachments.SweepSchedule = val
	}
	if val := os.Getenv("CALLISTO_ATTACHMENTS_MAX_BLOB_AGE"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Attachments.MaxBlobAge = d
		}
	}

	// Delivery overrides
	if val := os.Getenv("CALLISTO_DELIVERY_BASE_DELAY"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Delivery.BaseDelay = d
		}
	}
	if val := os.Getenv("CALLISTO_DELIVERY_MAX_ATTEMPTS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Delivery.MaxAttempts = i
		}
	}

	// Storage overrides
	if val := os.Getenv("CALLISTO_STORAGE_PENDING_DB_PATH"); val != "" {
		cfg.Storage.PendingDBPath = val
	}
	if val := os.Getenv("CALLISTO_STORAGE_REPLAY_DB_PATH"); val != "" {
		cfg.Storage.ReplayDBPath = val
	}
	if val := os.Getenv("CALLISTO_STORAGE_REPLAY_MAX_ROWS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			cfg.Storage.ReplayMaxRows = i
		}
	}

	// Policy overrides
	if val := os.Getenv("CALLISTO_POLICY_CACHE_PATH"); val != "" {
		cfg.Policy.CachePath = val
	}
	if val := os.Getenv("CALLISTO_POLICY_TTL"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			cfg.Policy.TTL = d
		}
	}

	// Telemetry overrides
	if val := os.Getenv("CALLISTO_TELEMETRY_LOGGING_LEVEL"); val != "" {
		cfg.Telemetry.Logging.Level = val
	}
	if val := os.Getenv("CALLISTO_TELEMETRY_LOGGING_FORMAT"); val != "" {
		cfg.Telemetry.Logging.Format = val
	}
	if val := os.Getenv("CALLISTO_TELEMETRY_METRICS_ENABLED"); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			cfg.Telemetry.Metrics.Enabled = b
		}
	}
}
