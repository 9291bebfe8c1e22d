package attachment

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/textproto"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"mercator-hq/callisto/pkg/crypto"
	"mercator-hq/callisto/pkg/event"
)

// State describes the outcome of one extraction.
type State string

const (
	// StateIdle means extraction has not run.
	StateIdle State = "idle"
	// StateExtracting means extraction is in progress.
	StateExtracting State = "extracting"
	// StateStored means at least one attachment was captured.
	StateStored State = "stored"
	// StateSkipped means all binary parts were skipped by limits.
	StateSkipped State = "skipped"
	// StateFailed means the body could not be parsed at all.
	StateFailed State = "failed"
)

// Config contains configuration for the attachment service.
type Config struct {
	// BlobDir is the directory for encrypted attachment blobs.
	BlobDir string

	// MaxPerEvent caps the number of attachments captured per event.
	// Excess files are dropped. Default: 10.
	MaxPerEvent int

	// MaxFileSize is the per-file size cap in bytes. An oversized file
	// is skipped, non-fatally, and excluded from total accounting.
	// Default: 10 MiB.
	MaxFileSize int64

	// MaxTotalSize is the cumulative size cap in bytes. Once exceeded,
	// further files are skipped. Default: 50 MiB.
	MaxTotalSize int64

	// SweepSchedule is a cron expression for the age-based blob sweep.
	// Empty disables the sweeper. Default: "0 3 * * *".
	SweepSchedule string

	// MaxBlobAge is the age past which the sweep removes blobs.
	// Default: 7 days.
	MaxBlobAge time.Duration
}

// DefaultConfig returns the default attachment configuration.
func DefaultConfig() *Config {
	return &Config{
		BlobDir:       "data/blobs",
		MaxPerEvent:   10,
		MaxFileSize:   10 * 1024 * 1024,
		MaxTotalSize:  50 * 1024 * 1024,
		SweepSchedule: "0 3 * * *",
		MaxBlobAge:    7 * 24 * time.Hour,
	}
}

// SkippedFile records one binary part that was not captured, with the
// reason. Skips are recoverable: siblings proceed and the event is
// still captured.
type SkippedFile struct {
	FieldName string
	Filename  string
	Reason    string
}

// Result is the outcome of extracting one multipart body.
type Result struct {
	State       State
	Attachments []event.FileAttachment
	FormFields  map[string]string
	Skipped     []SkippedFile

	// RebuiltBody replaces the original request body, which is a
	// single-use stream and has been fully consumed by extraction.
	RebuiltBody []byte

	// RebuiltContentType carries the new multipart boundary.
	RebuiltContentType string
}

// Service captures binary multipart parts into encrypted blobs.
type Service struct {
	config *Config
	engine *crypto.Engine
	logger *slog.Logger
}

// NewService creates an attachment service. The blob directory is
// created if it does not exist.
func NewService(config *Config, engine *crypto.Engine) (*Service, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if engine == nil {
		return nil, fmt.Errorf("encryption engine cannot be nil")
	}
	if config.MaxPerEvent <= 0 {
		config.MaxPerEvent = 10
	}
	if config.MaxFileSize <= 0 {
		config.MaxFileSize = 10 * 1024 * 1024
	}
	if config.MaxTotalSize <= 0 {
		config.MaxTotalSize = 50 * 1024 * 1024
	}

	if err := os.MkdirAll(config.BlobDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create blob directory: %w", err)
	}

	return &Service{
		config: config,
		engine: engine,
		logger: slog.Default().With("component", "attachment.service"),
	}, nil
}

// Extract separates scalar form fields from binary parts of a multipart
// body, applies the count, per-file, and cumulative size limits in that
// order, and stores each accepted part as an encrypted blob.
//
// It returns (nil, nil) when the body has no binary parts: callers keep
// the original body in that case. When a Result is returned, its
// RebuiltBody must replace the original before the request proceeds.
func (s *Service) Extract(eventID, contentType string, body io.Reader) (*Result, error) {
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || mediaType != "multipart/form-data" {
		return nil, nil
	}
	boundary, ok := params["boundary"]
	if !ok {
		return nil, nil
	}

	result := &Result{
		State:      StateExtracting,
		FormFields: make(map[string]string),
	}

	// Parts are replayed into the rebuilt body in original order.
	var rebuilt bytes.Buffer
	writer := multipart.NewWriter(&rebuilt)

	var totalSize int64
	reader := multipart.NewReader(body, boundary)

	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			result.State = StateFailed
			return nil, fmt.Errorf("failed to parse multipart body: %w", err)
		}

		if part.FileName() == "" {
			value, err := io.ReadAll(part)
			if err != nil {
				s.logger.Warn("unreadable form field, skipping",
					"field", part.FormName(),
					"error", err,
				)
				continue
			}
			result.FormFields[part.FormName()] = string(value)
			if err := writeField(writer, part.FormName(), string(value)); err != nil {
				return nil, fmt.Errorf("failed to rebuild form field: %w", err)
			}
			continue
		}

		// Binary part: single-use, read fully before deciding.
		content, err := io.ReadAll(part)
		if err != nil {
			result.Skipped = append(result.Skipped, SkippedFile{
				FieldName: part.FormName(),
				Filename:  part.FileName(),
				Reason:    "unreadable stream",
			})
			continue
		}

		// Every binary part is replayed into the rebuilt body, captured
		// or not: skipping capture must not alter the outgoing request.
		if err := writeFile(writer, part, content); err != nil {
			return nil, fmt.Errorf("failed to rebuild file part: %w", err)
		}

		if len(result.Attachments) >= s.config.MaxPerEvent {
			result.Skipped = append(result.Skipped, SkippedFile{
				FieldName: part.FormName(),
				Filename:  part.FileName(),
				Reason:    "attachment count limit",
			})
			continue
		}

		size := int64(len(content))
		if size > s.config.MaxFileSize {
			// Skipped files are excluded from total-size accounting.
			result.Skipped = append(result.Skipped, SkippedFile{
				FieldName: part.FormName(),
				Filename:  part.FileName(),
				Reason:    "file size limit",
			})
			continue
		}
		if totalSize+size > s.config.MaxTotalSize {
			result.Skipped = append(result.Skipped, SkippedFile{
				FieldName: part.FormName(),
				Filename:  part.FileName(),
				Reason:    "total size limit",
			})
			continue
		}

		att, err := s.storeBlob(eventID, part, content)
		if err != nil {
			// Persistence failure degrades to a per-file skip.
			s.logger.Error("failed to store attachment blob",
				"event_id", eventID,
				"field", part.FormName(),
				"error", err,
			)
			result.Skipped = append(result.Skipped, SkippedFile{
				FieldName: part.FormName(),
				Filename:  part.FileName(),
				Reason:    "blob store failure",
			})
			continue
		}

		totalSize += size
		result.Attachments = append(result.Attachments, att)
	}

	if len(result.Attachments) == 0 && len(result.Skipped) == 0 {
		// No binary parts at all.
		return nil, nil
	}

	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize rebuilt body: %w", err)
	}
	result.RebuiltBody = rebuilt.Bytes()
	result.RebuiltContentType = writer.FormDataContentType()

	if len(result.Attachments) > 0 {
		result.State = StateStored
	} else {
		result.State = StateSkipped
	}

	return result, nil
}

// storeBlob checksums, encrypts, and persists one accepted part.
func (s *Service) storeBlob(eventID string, part *multipart.Part, content []byte) (event.FileAttachment, error) {
	checksum := sha256.Sum256(content)

	encrypted, err := s.engine.Encrypt(content)
	if err != nil {
		return event.FileAttachment{}, fmt.Errorf("encrypt blob: %w", err)
	}

	id := uuid.New().String()
	path := filepath.Join(s.config.BlobDir, id+".blob")
	if err := os.WriteFile(path, encrypted, 0o600); err != nil {
		return event.FileAttachment{}, fmt.Errorf("write blob: %w", err)
	}

	return event.FileAttachment{
		ID:          id,
		EventID:     eventID,
		FieldName:   part.FormName(),
		Filename:    part.FileName(),
		ContentType: part.Header.Get("Content-Type"),
		SizeBytes:   int64(len(content)),
		Checksum:    hex.EncodeToString(checksum[:]),
		LocalPath:   path,
		CreatedAt:   time.Now(),
	}, nil
}

// ReadBlob decrypts and returns the plaintext content of a stored blob.
func (s *Service) ReadBlob(att event.FileAttachment) ([]byte, error) {
	encrypted, err := os.ReadFile(att.LocalPath)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", att.ID, err)
	}
	return s.engine.Decrypt(encrypted)
}

// RecreateForReplay rebuilds a multipart body from scalar form fields
// and stored attachment blobs. It returns the body and its content type.
func (s *Service) RecreateForReplay(fields map[string]string, attachments []event.FileAttachment) ([]byte, string, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := writeField(writer, name, value); err != nil {
			return nil, "", fmt.Errorf("rebuild field %s: %w", name, err)
		}
	}

	for _, att := range attachments {
		content, err := s.ReadBlob(att)
		if err != nil {
			return nil, "", fmt.Errorf("rebuild attachment %s: %w", att.ID, err)
		}

		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, att.FieldName, att.Filename))
		if att.ContentType != "" {
			header.Set("Content-Type", att.ContentType)
		}
		part, err := writer.CreatePart(header)
		if err != nil {
			return nil, "", fmt.Errorf("rebuild attachment %s: %w", att.ID, err)
		}
		if _, err := part.Write(content); err != nil {
			return nil, "", fmt.Errorf("rebuild attachment %s: %w", att.ID, err)
		}
	}

	if err := writer.Close(); err != nil {
		return nil, "", fmt.Errorf("finalize replay body: %w", err)
	}

	return buf.Bytes(), writer.FormDataContentType(), nil
}

// Delete removes one attachment blob. A missing file is not an error:
// the blob may already have been uploaded and removed.
func (s *Service) Delete(att event.FileAttachment) error {
	err := os.Remove(att.LocalPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete blob %s: %w", att.ID, err)
	}
	return nil
}

// DeleteAll removes every blob in the list, continuing past individual
// failures and returning the first error encountered.
func (s *Service) DeleteAll(attachments []event.FileAttachment) error {
	var firstErr error
	for _, att := range attachments {
		if err := s.Delete(att); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Cleanup removes blobs older than maxAge and returns how many were
// deleted. It is the backstop for blobs orphaned by evicted or
// cap-exhausted delivery rows.
func (s *Service) Cleanup(maxAge time.Duration) (int, error) {
	entries, err := os.ReadDir(s.config.BlobDir)
	if err != nil {
		return 0, fmt.Errorf("read blob directory: %w", err)
	}

	cutoff := time.Now().Add(-maxAge)
	deleted := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(s.config.BlobDir, entry.Name())); err != nil {
			s.logger.Warn("failed to sweep blob",
				"blob", entry.Name(),
				"error", err,
			)
			continue
		}
		deleted++
	}

	return deleted, nil
}

// Usage reports the total bytes of stored blobs.
func (s *Service) Usage() (int64, error) {
	entries, err := os.ReadDir(s.config.BlobDir)
	if err != nil {
		return 0, fmt.Errorf("read blob directory: %w", err)
	}

	var total int64
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		total += info.Size()
	}
	return total, nil
}

// writeField appends one scalar field to a multipart writer.
func writeField(writer *multipart.Writer, name, value string) error {
	return writer.WriteField(name, value)
}

// writeFile appends one file part to a multipart writer, preserving its
// content type header.
func writeFile(writer *multipart.Writer, part *multipart.Part, content []byte) error {
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, part.FormName(), part.FileName()))
	if ct := part.Header.Get("Content-Type"); ct != "" {
		header.Set("Content-Type", ct)
	}
	w, err := writer.CreatePart(header)
	if err != nil {
		return err
	}
	_, err = w.Write(content)
	return err
}
