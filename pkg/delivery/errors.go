package delivery

import "fmt"

// TransportError represents a failed exchange with the collector:
// unreachable host, timeout, or a non-2xx status. Transport errors are
// never fatal; the unit converts into a pending delivery and retries.
type TransportError struct {
	Operation  string // collector operation ("submit-error", "fetch-policy", ...)
	StatusCode int    // HTTP status, 0 when the exchange never completed
	Cause      error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport error [operation=%s, status=%d]: %v", e.Operation, e.StatusCode, e.Cause)
	}
	return fmt.Sprintf("transport error [operation=%s]: %v", e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *TransportError) Unwrap() error {
	return e.Cause
}

// NewTransportError creates a new TransportError.
func NewTransportError(operation string, statusCode int, cause error) *TransportError {
	return &TransportError{Operation: operation, StatusCode: statusCode, Cause: cause}
}

// ConfigurationError indicates use before initialization or an invalid
// wiring of the coordinator. It is fatal and raised immediately.
type ConfigurationError struct {
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s", e.Message)
}

// NewConfigurationError creates a new ConfigurationError.
func NewConfigurationError(message string) *ConfigurationError {
	return &ConfigurationError{Message: message}
}
