package config

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// FieldError represents a validation error for a specific configuration field.
type FieldError struct {
	// Field is the dotted path to the configuration field
	// (e.g., "collector.base_url").
	Field string

	// Message is a human-readable error message.
	Message string
}

// Error returns the error message for this field error.
func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationError represents one or more validation errors in a
// configuration. It implements the error interface and provides access
// to all field errors.
type ValidationError struct {
	// Errors contains all validation errors found in the configuration.
	Errors []FieldError
}

// Error returns a formatted string containing all validation errors.
func (e ValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "configuration validation failed"
	}
	if len(e.Errors) == 1 {
		return fmt.Sprintf("configuration validation failed: %s", e.Errors[0].Error())
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("configuration validation failed with %d errors:\n", len(e.Errors)))
	for _, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  - %s\n", err.Error()))
	}
	return sb.String()
}

// Validate validates the entire configuration and returns a
// ValidationError if any validation rules fail. All validation errors
// are collected and returned together.
func Validate(cfg *Config) error {
	var errs []FieldError

	errs = append(errs, validateCollector(&cfg.Collector)...)
	errs = append(errs, validateClient(&cfg.Client)...)
	errs = append(errs, validateEncryption(&cfg.Encryption)...)
	errs = append(errs, validateRedaction(&cfg.Redaction)...)
	errs = append(errs, validateAttachments(&cfg.Attachments)...)
	errs = append(errs, validateTelemetry(&cfg.Telemetry)...)

	if len(errs) > 0 {
		return ValidationError{Errors: errs}
	}
	return nil
}

func validateCollector(cfg *CollectorConfig) []FieldError {
	var errs []FieldError

	if cfg.BaseURL == "" {
		errs = append(errs, FieldError{
			Field:   "collector.base_url",
			Message: "is required",
		})
		return errs
	}

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		errs = append(errs, FieldError{
			Field:   "collector.base_url",
			Message: fmt.Sprintf("must be an absolute URL, got %q", cfg.BaseURL),
		})
	} else if parsed.Scheme != "http" && parsed.Scheme != "https" {
		errs = append(errs, FieldError{
			Field:   "collector.base_url",
			Message: fmt.Sprintf("scheme must be http or https, got %q", parsed.Scheme),
		})
	}

	return errs
}

func validateClient(cfg *ClientConfig) []FieldError {
	var errs []FieldError

	if cfg.SuccessSampleRate < 0 || cfg.SuccessSampleRate > 1 {
		errs = append(errs, FieldError{
			Field:   "client.success_sample_rate",
			Message: fmt.Sprintf("must be between 0 and 1, got %v", cfg.SuccessSampleRate),
		})
	}

	return errs
}

func validateEncryption(cfg *EncryptionConfig) []FieldError {
	var errs []FieldError

	if cfg.Key == "" && cfg.KeyFile == "" {
		errs = append(errs, FieldError{
			Field:   "encryption",
			Message: "either key or key_file is required",
		})
	}
	if cfg.Key != "" && cfg.KeyFile != "" {
		errs = append(errs, FieldError{
			Field:   "encryption",
			Message: "key and key_file are mutually exclusive",
		})
	}

	return errs
}

func validateRedaction(cfg *RedactionConfig) []FieldError {
	var errs []FieldError

	// Invalid patterns are skipped at capture time, but a typo in the
	// configuration should surface at startup.
	for i, pattern := range cfg.Patterns {
		if _, err := regexp.Compile(pattern); err != nil {
			errs = append(errs, FieldError{
				Field:   fmt.Sprintf("redaction.patterns[%d]", i),
				Message: fmt.Sprintf("invalid regular expression: %v", err),
			})
		}
	}

	return errs
}

func validateAttachments(cfg *AttachmentsConfig) []FieldError {
	var errs []FieldError

	if cfg.MaxFileSize > cfg.MaxTotalSize {
		errs = append(errs, FieldError{
			Field:   "attachments.max_file_size",
			Message: fmt.Sprintf("cannot exceed max_total_size (%d > %d)", cfg.MaxFileSize, cfg.MaxTotalSize),
		})
	}

	return errs
}

func validateTelemetry(cfg *TelemetryConfig) []FieldError {
	var errs []FieldError

	switch cfg.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.level",
			Message: fmt.Sprintf("must be one of debug, info, warn, error; got %q", cfg.Logging.Level),
		})
	}

	switch cfg.Logging.Format {
	case "json", "text":
	default:
		errs = append(errs, FieldError{
			Field:   "telemetry.logging.format",
			Message: fmt.Sprintf("must be json or text, got %q", cfg.Logging.Format),
		})
	}

	return errs
}
