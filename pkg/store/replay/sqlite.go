// Package replay provides the bounded durable store for plaintext
// packages and their attachment records, used only when remote policy
// allows the device-side replay workflow.
package replay

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"mercator-hq/callisto/pkg/event"
	"mercator-hq/callisto/pkg/store"
)

// Config contains configuration for the replay store.
type Config struct {
	// Path is the database file path.
	Path string

	// MaxRows caps the number of retained events. Storing past the cap
	// evicts the oldest rows. This is irrecoverable eviction, not a
	// delivery guarantee. Default: 100.
	MaxRows int

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultConfig returns the default replay store configuration.
func DefaultConfig() *Config {
	return &Config{
		Path:        "data/replay.db",
		MaxRows:     100,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStore persists plaintext packages for later replay, keyed by
// event id, with attachment records in a related table. All writes go
// through one serialized connection.
type SQLiteStore struct {
	db     *sql.DB
	config *Config
	mu     sync.RWMutex
	logger *slog.Logger
}

// NewSQLiteStore creates a replay store backed by SQLite, initializing
// the schema and enabling WAL mode.
func NewSQLiteStore(config *Config) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.MaxRows <= 0 {
		config.MaxRows = 100
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d",
		config.Path, int(config.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, store.NewStorageError("replay", "open", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteStore{
		db:     db,
		config: config,
		logger: slog.Default().With("component", "store.replay"),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, store.NewStorageError("replay", "init_schema", err)
	}

	return s, nil
}

// initSchema creates tables and records the schema version.
func (s *SQLiteStore) initSchema() error {
	if _, err := s.db.Exec(Schema); err != nil {
		return err
	}
	_, err := s.db.Exec(InsertSchemaVersion, SchemaVersion)
	return err
}

// Store upserts a package by event id, replaces its attachment rows,
// and evicts the oldest rows beyond the configured cap.
func (s *SQLiteStore) Store(ctx context.Context, pkg *event.UnencryptedPackage) error {
	if pkg == nil || pkg.EventID == "" {
		return fmt.Errorf("package event id cannot be empty")
	}

	payload, err := json.Marshal(pkg)
	if err != nil {
		return store.NewStorageError("replay", "marshal", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.NewStorageError("replay", "begin", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO local_events (event_id, timestamp, payload)
		VALUES (?, ?, ?)
		ON CONFLICT (event_id) DO UPDATE SET
			timestamp = excluded.timestamp,
			payload = excluded.payload
	`, pkg.EventID, pkg.Timestamp.UnixMilli(), string(payload))
	if err != nil {
		return store.NewStorageError("replay", "upsert", err)
	}

	// Replace attachment rows for this event.
	if _, err := tx.ExecContext(ctx, `DELETE FROM event_attachments WHERE event_id = ?`, pkg.EventID); err != nil {
		return store.NewStorageError("replay", "replace_attachments", err)
	}
	for _, att := range pkg.Attachments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO event_attachments
				(id, event_id, field_name, filename, content_type, size_bytes, checksum_sha256, local_path, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, att.ID, pkg.EventID, att.FieldName, att.Filename, nullable(att.ContentType),
			att.SizeBytes, att.Checksum, att.LocalPath, att.CreatedAt.UnixMilli())
		if err != nil {
			return store.NewStorageError("replay", "insert_attachment", err)
		}
	}

	// Oldest-first eviction past the row cap, attachments included.
	_, err = tx.ExecContext(ctx, `
		DELETE FROM event_attachments WHERE event_id IN (
			SELECT event_id FROM local_events
			ORDER BY timestamp DESC LIMIT -1 OFFSET ?
		)
	`, s.config.MaxRows)
	if err != nil {
		return store.NewStorageError("replay", "evict", err)
	}
	_, err = tx.ExecContext(ctx, `
		DELETE FROM local_events WHERE event_id IN (
			SELECT event_id FROM local_events
			ORDER BY timestamp DESC LIMIT -1 OFFSET ?
		)
	`, s.config.MaxRows)
	if err != nil {
		return store.NewStorageError("replay", "evict", err)
	}

	if err := tx.Commit(); err != nil {
		return store.NewStorageError("replay", "commit", err)
	}

	return nil
}

// Get returns the stored package for an event id, with attachment rows
// joined in, or nil if none exists.
func (s *SQLiteStore) Get(ctx context.Context, eventID string) (*event.UnencryptedPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM local_events WHERE event_id = ?`, eventID).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewStorageError("replay", "get", err)
	}

	pkg, err := s.decode(ctx, payload)
	if err != nil {
		return nil, err
	}
	return pkg, nil
}

// GetAll returns every stored package, newest first.
func (s *SQLiteStore) GetAll(ctx context.Context) ([]*event.UnencryptedPackage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT payload FROM local_events ORDER BY timestamp DESC`)
	if err != nil {
		return nil, store.NewStorageError("replay", "get_all", err)
	}

	// Drain payloads before decoding: decode issues follow-up queries
	// for attachment rows, and the pool holds a single connection.
	var payloads []string
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			rows.Close()
			return nil, store.NewStorageError("replay", "scan", err)
		}
		payloads = append(payloads, payload)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, store.NewStorageError("replay", "scan", err)
	}
	rows.Close()

	var pkgs []*event.UnencryptedPackage
	for _, payload := range payloads {
		pkg, err := s.decode(ctx, payload)
		if err != nil {
			return nil, err
		}
		pkgs = append(pkgs, pkg)
	}

	return pkgs, nil
}

// Remove deletes an event and its attachment rows in one transaction.
func (s *SQLiteStore) Remove(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return store.NewStorageError("replay", "begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM event_attachments WHERE event_id = ?`, eventID); err != nil {
		return store.NewStorageError("replay", "remove", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM local_events WHERE event_id = ?`, eventID); err != nil {
		return store.NewStorageError("replay", "remove", err)
	}

	if err := tx.Commit(); err != nil {
		return store.NewStorageError("replay", "commit", err)
	}
	return nil
}

// Count returns the number of retained events.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM local_events`).Scan(&count); err != nil {
		return 0, store.NewStorageError("replay", "count", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// decode unmarshals a payload and joins the attachment rows for its
// event id. The attachment table is authoritative over the serialized
// attachment list.
func (s *SQLiteStore) decode(ctx context.Context, payload string) (*event.UnencryptedPackage, error) {
	var pkg event.UnencryptedPackage
	if err := json.Unmarshal([]byte(payload), &pkg); err != nil {
		return nil, store.NewStorageError("replay", "unmarshal", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, field_name, filename, content_type, size_bytes, checksum_sha256, local_path, created_at
		FROM event_attachments
		WHERE event_id = ?
		ORDER BY created_at ASC
	`, pkg.EventID)
	if err != nil {
		return nil, store.NewStorageError("replay", "join_attachments", err)
	}
	defer rows.Close()

	var attachments []event.FileAttachment
	for rows.Next() {
		var (
			att         event.FileAttachment
			contentType sql.NullString
			createdAt   int64
		)
		if err := rows.Scan(&att.ID, &att.FieldName, &att.Filename, &contentType,
			&att.SizeBytes, &att.Checksum, &att.LocalPath, &createdAt); err != nil {
			return nil, store.NewStorageError("replay", "scan_attachment", err)
		}
		att.EventID = pkg.EventID
		att.ContentType = contentType.String
		att.CreatedAt = time.UnixMilli(createdAt)
		attachments = append(attachments, att)
	}
	if err := rows.Err(); err != nil {
		return nil, store.NewStorageError("replay", "scan_attachment", err)
	}

	pkg.Attachments = attachments
	return &pkg, nil
}

// nullable maps an empty string to SQL NULL.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
