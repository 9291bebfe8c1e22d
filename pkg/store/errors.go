// Package store defines error types shared by the durable on-device
// stores (pending deliveries and the local replay store).
package store

import "fmt"

// StorageError represents an error from a durable store backend.
// Persistence failures degrade to best-effort drops on the capture path;
// callers log the StorageError rather than crashing the host request.
type StorageError struct {
	Backend   string // storage backend ("pending", "replay")
	Operation string // operation that failed ("enqueue", "get", "evict", ...)
	Cause     error
}

// Error implements the error interface.
func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StorageError) Unwrap() error {
	return e.Cause
}

// NewStorageError creates a new StorageError.
func NewStorageError(backend, operation string, cause error) *StorageError {
	return &StorageError{Backend: backend, Operation: operation, Cause: cause}
}
