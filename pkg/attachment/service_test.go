package attachment

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mercator-hq/callisto/pkg/crypto"
)

func newTestService(t *testing.T, cfg *Config) *Service {
	t.Helper()
	engine, err := crypto.NewEngine([]byte("attachment test key"))
	if err != nil {
		t.Fatalf("NewEngine failed: %v", err)
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.BlobDir == "" {
		cfg.BlobDir = t.TempDir()
	}
	svc, err := NewService(cfg, engine)
	if err != nil {
		t.Fatalf("NewService failed: %v", err)
	}
	return svc
}

// buildMultipart constructs a multipart body with the given scalar
// fields and files (fieldName -> content).
func buildMultipart(t *testing.T, fields map[string]string, files []struct {
	field, filename string
	content         []byte
}) (string, []byte) {
	t.Helper()
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := writer.WriteField(name, value); err != nil {
			t.Fatalf("WriteField failed: %v", err)
		}
	}
	for _, f := range files {
		part, err := writer.CreateFormFile(f.field, f.filename)
		if err != nil {
			t.Fatalf("CreateFormFile failed: %v", err)
		}
		if _, err := part.Write(f.content); err != nil {
			t.Fatalf("part write failed: %v", err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("writer close failed: %v", err)
	}
	return writer.FormDataContentType(), buf.Bytes()
}

type testFile = struct {
	field, filename string
	content         []byte
}

func TestExtract_SeparatesFieldsAndFiles(t *testing.T) {
	svc := newTestService(t, nil)

	contentType, body := buildMultipart(t,
		map[string]string{"caption": "receipt"},
		[]testFile{{"photo", "receipt.jpg", []byte("jpeg-bytes")}},
	)

	result, err := svc.Extract("e1", contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result == nil {
		t.Fatal("Expected result for body with binary parts")
	}

	if result.State != StateStored {
		t.Errorf("Expected state stored, got %s", result.State)
	}
	if result.FormFields["caption"] != "receipt" {
		t.Errorf("Expected scalar field captured, got %v", result.FormFields)
	}
	if len(result.Attachments) != 1 {
		t.Fatalf("Expected 1 attachment, got %d", len(result.Attachments))
	}

	att := result.Attachments[0]
	if att.FieldName != "photo" || att.Filename != "receipt.jpg" {
		t.Errorf("Expected attachment identity captured, got %+v", att)
	}
	if att.SizeBytes != int64(len("jpeg-bytes")) {
		t.Errorf("Expected plaintext size, got %d", att.SizeBytes)
	}
	if att.Checksum == "" || att.EventID != "e1" {
		t.Errorf("Expected checksum and event id set, got %+v", att)
	}

	// Blob on disk must be encrypted, not plaintext.
	blob, err := os.ReadFile(att.LocalPath)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if bytes.Contains(blob, []byte("jpeg-bytes")) {
		t.Error("Expected blob to be encrypted on disk")
	}

	// And it must decrypt back to the original content.
	plaintext, err := svc.ReadBlob(att)
	if err != nil {
		t.Fatalf("ReadBlob failed: %v", err)
	}
	if !bytes.Equal(plaintext, []byte("jpeg-bytes")) {
		t.Error("Expected blob to decrypt to original content")
	}
}

func TestExtract_NoBinaryPartsReturnsNil(t *testing.T) {
	svc := newTestService(t, nil)

	contentType, body := buildMultipart(t, map[string]string{"a": "1"}, nil)

	result, err := svc.Extract("e1", contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result without binary parts, got %+v", result)
	}
}

func TestExtract_NonMultipartReturnsNil(t *testing.T) {
	svc := newTestService(t, nil)

	result, err := svc.Extract("e1", "application/json", bytes.NewReader([]byte(`{}`)))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result != nil {
		t.Errorf("Expected nil result for non-multipart body, got %+v", result)
	}
}

func TestExtract_CountLimit(t *testing.T) {
	svc := newTestService(t, &Config{MaxPerEvent: 10})

	var files []testFile
	for i := 0; i < 12; i++ {
		files = append(files, testFile{
			field:    fmt.Sprintf("file%d", i),
			filename: fmt.Sprintf("f%d.bin", i),
			content:  []byte("data"),
		})
	}
	contentType, body := buildMultipart(t, nil, files)

	result, err := svc.Extract("e1", contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if len(result.Attachments) != 10 {
		t.Errorf("Expected exactly 10 attachments, got %d", len(result.Attachments))
	}
	if len(result.Skipped) != 2 {
		t.Errorf("Expected 2 skipped files, got %d", len(result.Skipped))
	}
}

func TestExtract_OversizedFileSkippedAndExcludedFromTotal(t *testing.T) {
	// Per-file cap 100 bytes, total cap 250 bytes.
	svc := newTestService(t, &Config{MaxFileSize: 100, MaxTotalSize: 250})

	contentType, body := buildMultipart(t, nil, []testFile{
		{"a", "a.bin", bytes.Repeat([]byte{1}, 90)},
		{"big", "big.bin", bytes.Repeat([]byte{2}, 200)}, // over per-file cap
		{"b", "b.bin", bytes.Repeat([]byte{3}, 90)},
		{"c", "c.bin", bytes.Repeat([]byte{4}, 90)}, // would exceed total with a+b
	})

	result, err := svc.Extract("e1", contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	// a and b accepted (180 <= 250); big skipped per-file and excluded
	// from the running total; c pushes the total past 250 and is skipped.
	if len(result.Attachments) != 2 {
		t.Fatalf("Expected 2 attachments, got %d", len(result.Attachments))
	}
	if result.Attachments[0].FieldName != "a" || result.Attachments[1].FieldName != "b" {
		t.Errorf("Expected a and b accepted, got %+v", result.Attachments)
	}

	reasons := make(map[string]string)
	for _, skip := range result.Skipped {
		reasons[skip.FieldName] = skip.Reason
	}
	if reasons["big"] != "file size limit" {
		t.Errorf("Expected big skipped for file size, got %q", reasons["big"])
	}
	if reasons["c"] != "total size limit" {
		t.Errorf("Expected c skipped for total size, got %q", reasons["c"])
	}
}

func TestExtract_RebuiltBodyCarriesAllParts(t *testing.T) {
	// Tight limits: captures nothing, but the outgoing request must
	// still carry every part.
	svc := newTestService(t, &Config{MaxFileSize: 1})

	contentType, body := buildMultipart(t,
		map[string]string{"caption": "hello"},
		[]testFile{{"photo", "p.jpg", []byte("image-data")}},
	)

	result, err := svc.Extract("e1", contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if result.State != StateSkipped {
		t.Errorf("Expected state skipped, got %s", result.State)
	}

	fields, files := parseMultipart(t, result.RebuiltContentType, result.RebuiltBody)
	if fields["caption"] != "hello" {
		t.Errorf("Expected scalar field in rebuilt body, got %v", fields)
	}
	if !bytes.Equal(files["photo"], []byte("image-data")) {
		t.Error("Expected skipped file content preserved in rebuilt body")
	}
}

func TestRecreateForReplay_RoundTrip(t *testing.T) {
	svc := newTestService(t, nil)

	contentType, body := buildMultipart(t,
		map[string]string{"caption": "note"},
		[]testFile{{"doc", "doc.pdf", []byte("pdf-bytes")}},
	)

	result, err := svc.Extract("e1", contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	replayBody, replayType, err := svc.RecreateForReplay(result.FormFields, result.Attachments)
	if err != nil {
		t.Fatalf("RecreateForReplay failed: %v", err)
	}

	fields, files := parseMultipart(t, replayType, replayBody)
	if fields["caption"] != "note" {
		t.Errorf("Expected form field in replay body, got %v", fields)
	}
	if !bytes.Equal(files["doc"], []byte("pdf-bytes")) {
		t.Error("Expected decrypted file content in replay body")
	}
}

func TestDeleteAll_RemovesBlobs(t *testing.T) {
	svc := newTestService(t, nil)

	contentType, body := buildMultipart(t, nil, []testFile{
		{"a", "a.bin", []byte("aaa")},
		{"b", "b.bin", []byte("bbb")},
	})
	result, err := svc.Extract("e1", contentType, bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}

	if err := svc.DeleteAll(result.Attachments); err != nil {
		t.Fatalf("DeleteAll failed: %v", err)
	}
	for _, att := range result.Attachments {
		if _, err := os.Stat(att.LocalPath); !os.IsNotExist(err) {
			t.Errorf("Expected blob %s removed", att.LocalPath)
		}
	}

	// Deleting again is not an error.
	if err := svc.DeleteAll(result.Attachments); err != nil {
		t.Errorf("Expected idempotent delete, got %v", err)
	}
}

func TestCleanup_AgeBasedSweep(t *testing.T) {
	dir := t.TempDir()
	svc := newTestService(t, &Config{BlobDir: dir})

	oldBlob := filepath.Join(dir, "old.blob")
	newBlob := filepath.Join(dir, "new.blob")
	if err := os.WriteFile(oldBlob, []byte("old"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(newBlob, []byte("new"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	past := time.Now().Add(-48 * time.Hour)
	if err := os.Chtimes(oldBlob, past, past); err != nil {
		t.Fatalf("Chtimes failed: %v", err)
	}

	deleted, err := svc.Cleanup(24 * time.Hour)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if deleted != 1 {
		t.Errorf("Expected 1 blob swept, got %d", deleted)
	}
	if _, err := os.Stat(oldBlob); !os.IsNotExist(err) {
		t.Error("Expected old blob removed")
	}
	if _, err := os.Stat(newBlob); err != nil {
		t.Error("Expected new blob retained")
	}
}

func TestUsage_ReportsTotalBytes(t *testing.T) {
	dir := t.TempDir()
	svc := newTestService(t, &Config{BlobDir: dir})

	if err := os.WriteFile(filepath.Join(dir, "a.blob"), make([]byte, 100), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.blob"), make([]byte, 50), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	usage, err := svc.Usage()
	if err != nil {
		t.Fatalf("Usage failed: %v", err)
	}
	if usage != 150 {
		t.Errorf("Expected 150 bytes, got %d", usage)
	}
}

// parseMultipart reads back a multipart body into fields and files.
func parseMultipart(t *testing.T, contentType string, body []byte) (map[string]string, map[string][]byte) {
	t.Helper()
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		t.Fatalf("ParseMediaType failed: %v", err)
	}

	fields := make(map[string]string)
	files := make(map[string][]byte)
	reader := multipart.NewReader(bytes.NewReader(body), params["boundary"])
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("NextPart failed: %v", err)
		}
		content, err := io.ReadAll(part)
		if err != nil {
			t.Fatalf("ReadAll failed: %v", err)
		}
		if part.FileName() == "" {
			fields[part.FormName()] = string(content)
		} else {
			files[part.FormName()] = content
		}
	}
	return fields, files
}
