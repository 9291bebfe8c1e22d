// Package config provides configuration management for Mercator Callisto.
//
// This package handles loading, validating, and managing configuration from
// YAML files with environment variable overrides. It provides a type-safe
// configuration system with comprehensive validation and sensible defaults.
//
// # Configuration Loading
//
// Configuration can be loaded in two ways:
//
//  1. From a YAML file only:
//     cfg, err := config.LoadConfig("config.yaml")
//
//  2. From a YAML file with environment variable overrides:
//     cfg, err := config.LoadConfigWithEnvOverrides("config.yaml")
//
// # Environment Variable Overrides
//
// Environment variables follow the naming convention CALLISTO_SECTION_FIELD.
// For example:
//
//   - CALLISTO_COLLECTOR_BASE_URL overrides collector.base_url
//   - CALLISTO_COLLECTOR_API_KEY overrides collector.api_key
//   - CALLISTO_TELEMETRY_LOGGING_LEVEL overrides telemetry.logging.level
//
// Environment variables always take precedence over file-based configuration.
//
// # Configuration Precedence
//
// Configuration values are applied in the following order (later overrides earlier):
//
//  1. Default values (defined in defaults.go)
//  2. Values from YAML file
//  3. Environment variable overrides
//  4. Validation (fails fast if invalid)
//
// # Singleton Pattern
//
// For application-wide configuration access, use the singleton pattern:
//
//	// At application startup
//	if err := config.Initialize("config.yaml"); err != nil {
//	    log.Fatal(err)
//	}
//
//	// Anywhere in the application
//	cfg := config.GetConfig()
//	fmt.Println(cfg.Collector.BaseURL)
//
// For testing, prefer dependency injection with explicit Config instances
// rather than the global singleton.
//
// # Hot Reload
//
// Redaction rules can be reloaded without restarting the client. FileWatcher
// watches the configuration file and triggers a debounced reload on change:
//
//	fw, err := config.NewFileWatcher(&config.FileWatcherConfig{Path: "config.yaml"}, logger)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	go fw.Watch(ctx, func() error {
//	    return config.ReloadConfig("config.yaml")
//	})
//
// # Validation
//
// All configuration is validated automatically during loading. Validation includes:
//
//   - Required field checks (e.g., collector base URL)
//   - Range validation (e.g., sample rates must be 0.0-1.0)
//   - Format validation (e.g., valid URL format, compilable redaction patterns)
//   - Logical validation (e.g., encryption key and key file are mutually exclusive)
//
// Validation errors include field paths and helpful messages:
//
//	configuration validation failed with 2 errors:
//	  - collector.base_url: field is required
//	  - encryption.key: key and key_file are mutually exclusive
//
// # Example Configuration
//
// Here is a minimal configuration file:
//
//	collector:
//	  base_url: "https://collector.example.com"
//	  api_key: "${CALLISTO_API_KEY}"
//
//	client:
//	  device_id: "device-1234"
//
//	encryption:
//	  key: "${CALLISTO_ENCRYPTION_KEY}"
//
//	telemetry:
//	  logging:
//	    level: "info"
//	    format: "json"
//
// # Thread Safety
//
// All configuration access is thread-safe. The singleton pattern uses read-write
// locks to allow concurrent reads while protecting against concurrent writes during
// reload operations.
package config
