// Package event defines the captured-event data model and the pure
// transforms that derive the three transmissible/persistable package
// forms: statistical (payload-free), encrypted, and unencrypted
// (local-only).
package event

import (
	"time"

	"github.com/google/uuid"
)

// CapturedEvent is one observed outgoing request outcome eligible for
// reporting. Instances are immutable once created: packages are derived
// synchronously at capture time and never reflect later mutation.
//
// Headers and bodies are stored post-redaction. Bodies are JSON-shaped
// values: nil, string, float64, bool, map[string]any, or []any.
type CapturedEvent struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`

	Method     string `json:"method"`
	URL        string `json:"url"`
	StatusCode int    `json:"statusCode"`

	ErrorKind    string `json:"errorKind,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	RequestHeaders  map[string]string `json:"requestHeaders,omitempty"`
	RequestBody     any               `json:"requestBody,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	ResponseBody    any               `json:"responseBody,omitempty"`

	Duration    time.Duration  `json:"duration"`
	Environment string         `json:"environment,omitempty"`
	AppVersion  string         `json:"appVersion,omitempty"`
	DeviceID    string         `json:"deviceId,omitempty"`
	Extras      map[string]any `json:"extras,omitempty"`

	Attachments []FileAttachment  `json:"attachments,omitempty"`
	FormFields  map[string]string `json:"formFields,omitempty"`

	Success bool `json:"success"`
}

// NewID returns a fresh event identifier.
func NewID() string {
	return uuid.New().String()
}

// FileAttachment describes one binary part captured from an outgoing
// multipart body. LocalPath points at the encrypted blob on disk;
// Checksum is the SHA-256 of the plaintext content.
type FileAttachment struct {
	ID          string    `json:"id"`
	EventID     string    `json:"eventId"`
	FieldName   string    `json:"fieldName"`
	Filename    string    `json:"filename"`
	ContentType string    `json:"contentType,omitempty"`
	SizeBytes   int64     `json:"sizeBytes"`
	Checksum    string    `json:"checksumSha256"`
	LocalPath   string    `json:"localPath"`
	CreatedAt   time.Time `json:"createdAt"`
}

// EncryptedFileAttachment mirrors FileAttachment for transmission: the
// name fields are ciphertext while size and checksum stay plaintext,
// needed by the collector for integrity checks and not sensitive.
type EncryptedFileAttachment struct {
	ID          string `json:"id"`
	EventID     string `json:"eventId"`
	FieldName   string `json:"fieldName"`
	Filename    string `json:"filename"`
	ContentType string `json:"contentType,omitempty"`
	SizeBytes   int64  `json:"sizeBytes"`
	Checksum    string `json:"checksumSha256"`
}

// StatisticalPackage carries identity, timing, and outcome only.
// It is payload-free and always safe to transmit.
type StatisticalPackage struct {
	EventID         string        `json:"eventId"`
	Timestamp       time.Time     `json:"timestamp"`
	Method          string        `json:"method"`
	URL             string        `json:"url"`
	StatusCode      int           `json:"statusCode"`
	ErrorKind       string        `json:"errorKind,omitempty"`
	Duration        time.Duration `json:"duration"`
	Environment     string        `json:"environment,omitempty"`
	AppVersion      string        `json:"appVersion,omitempty"`
	DeviceID        string        `json:"deviceId,omitempty"`
	Success         bool          `json:"success"`
	AttachmentCount int           `json:"attachmentCount,omitempty"`
}

// EncryptedPackage carries ciphertext (base64) for headers and bodies.
// It never contains plaintext payload data.
type EncryptedPackage struct {
	EventID      string    `json:"eventId"`
	Timestamp    time.Time `json:"timestamp"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	StatusCode   int       `json:"statusCode"`
	ErrorKind    string    `json:"errorKind,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`

	RequestHeaders  string `json:"requestHeaders,omitempty"`
	RequestBody     string `json:"requestBody,omitempty"`
	ResponseHeaders string `json:"responseHeaders,omitempty"`
	ResponseBody    string `json:"responseBody,omitempty"`

	Attachments []EncryptedFileAttachment `json:"attachments,omitempty"`
}

// UnencryptedPackage retains the full plaintext event plus attachment
// and form-field references. It is persisted only in the local replay
// store, only while remote policy allows replay, and never transmitted.
type UnencryptedPackage struct {
	EventID      string    `json:"eventId"`
	Timestamp    time.Time `json:"timestamp"`
	Method       string    `json:"method"`
	URL          string    `json:"url"`
	StatusCode   int       `json:"statusCode"`
	ErrorKind    string    `json:"errorKind,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`

	RequestHeaders  map[string]string `json:"requestHeaders,omitempty"`
	RequestBody     any               `json:"requestBody,omitempty"`
	ResponseHeaders map[string]string `json:"responseHeaders,omitempty"`
	ResponseBody    any               `json:"responseBody,omitempty"`

	Duration    time.Duration  `json:"duration"`
	Environment string         `json:"environment,omitempty"`
	AppVersion  string         `json:"appVersion,omitempty"`
	DeviceID    string         `json:"deviceId,omitempty"`
	Extras      map[string]any `json:"extras,omitempty"`

	Attachments []FileAttachment  `json:"attachments,omitempty"`
	FormFields  map[string]string `json:"formFields,omitempty"`
}
