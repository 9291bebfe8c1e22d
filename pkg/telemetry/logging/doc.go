// Package logging provides structured logging with credential redaction.
//
// # Overview
//
// The logging package wraps Go's standard log/slog package to provide:
//   - Structured logging with JSON and text formats
//   - Automatic redaction of credentials (API keys, tokens, passwords)
//   - Context-aware logging with event and device identifiers
//   - Configurable log levels (debug, info, warn, error)
//
// Callisto records failing requests, so its own diagnostics routinely sit
// next to sensitive material. The redactor keeps secrets out of the logs
// even when a call site passes them by accident.
//
// # Usage
//
//	// Create a logger
//	logger, err := logging.New(logging.Config{
//	    Level:        "info",
//	    Format:       "json",
//	    RedactValues: true,
//	})
//
//	// Log structured data
//	logger.Info("delivery accepted",
//	    "event_id", "evt-123",
//	    "api_key", "sk-abc123",  // Automatically redacted
//	    "attempts", 2,
//	)
//
//	// Context-aware logging
//	ctx := logging.WithEventID(ctx, "evt-123")
//	logger.InfoContext(ctx, "queued")  // Includes event_id automatically
//
// # Redaction
//
// When RedactValues is enabled, values under sensitive keys (password,
// token, authorization, encryption_key and similar) are masked, and all
// other string values pass through a pattern set covering sk- API keys,
// Bearer and Basic credentials, password assignments, and email local
// parts.
package logging
