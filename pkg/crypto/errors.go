package crypto

import "fmt"

// DecryptionError indicates that a ciphertext could not be decrypted.
// It is raised on truncated input, ciphertext that is not a multiple of
// the cipher block size, or invalid PKCS7 padding. It signals corrupted
// storage or a wrong key and must never be swallowed.
type DecryptionError struct {
	Reason string
	Cause  error
}

// Error implements the error interface.
func (e *DecryptionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("decryption failed: %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("decryption failed: %s", e.Reason)
}

// Unwrap returns the underlying cause error.
func (e *DecryptionError) Unwrap() error {
	return e.Cause
}

// NewDecryptionError creates a new DecryptionError.
func NewDecryptionError(reason string, cause error) *DecryptionError {
	return &DecryptionError{Reason: reason, Cause: cause}
}
