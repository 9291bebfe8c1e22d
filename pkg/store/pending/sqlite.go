package pending

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"mercator-hq/callisto/pkg/store"
)

// SQLiteStore implements Store using SQLite for persistence across
// process restarts.
//
// SQLiteStore uses a write-ahead log (WAL) for better concurrent
// performance and periodic checkpointing to balance write performance
// with durability. The connection pool is pinned to a single connection:
// SQLite only supports one writer, and the scheduler and capture path
// must not race on the durable connection.
type SQLiteStore struct {
	db                 *sql.DB
	dbPath             string
	checkpointInterval time.Duration
	done               chan struct{}
	mu                 sync.RWMutex
	closeOnce          sync.Once

	enqueueStmt *sql.Stmt
	dueStmt     *sql.Stmt
	updateStmt  *sql.Stmt
	deleteStmt  *sql.Stmt
	byRetryStmt *sql.Stmt
	countStmt   *sql.Stmt
	allStmt     *sql.Stmt
}

// SQLiteConfig configures the SQLite pending store.
type SQLiteConfig struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// CheckpointInterval is how often to checkpoint the WAL.
	// Default: 5 minutes
	CheckpointInterval time.Duration

	// BusyTimeout is how long to wait for locks before failing.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// NewSQLiteStore creates a pending store with default settings.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	return NewSQLiteStoreWithConfig(SQLiteConfig{DBPath: dbPath})
}

// NewSQLiteStoreWithConfig creates a pending store with custom
// configuration.
func NewSQLiteStoreWithConfig(cfg SQLiteConfig) (*SQLiteStore, error) {
	if cfg.DBPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}
	if cfg.CheckpointInterval == 0 {
		cfg.CheckpointInterval = 5 * time.Minute
	}
	if cfg.BusyTimeout == 0 {
		cfg.BusyTimeout = 5 * time.Second
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		cfg.DBPath, int(cfg.BusyTimeout.Milliseconds()))

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, store.NewStorageError("pending", "open", err)
	}

	// Single serialized connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{
		db:                 db,
		dbPath:             cfg.DBPath,
		checkpointInterval: cfg.CheckpointInterval,
		done:               make(chan struct{}),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, store.NewStorageError("pending", "init_schema", err)
	}
	if err := s.prepareStatements(); err != nil {
		db.Close()
		return nil, store.NewStorageError("pending", "prepare", err)
	}

	go s.checkpointLoop()

	return s, nil
}

// initSchema creates the database schema if it doesn't exist.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS pending_deliveries (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		retry_id TEXT,
		next_retry_at INTEGER NOT NULL,
		payload BLOB NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_pending_next_retry_at ON pending_deliveries(next_retry_at);
	CREATE INDEX IF NOT EXISTS idx_pending_retry_id ON pending_deliveries(retry_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements prepares SQL statements for reuse.
func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.enqueueStmt, err = s.db.Prepare(`
		INSERT INTO pending_deliveries (id, event_id, created_at, attempt_count, retry_id, next_retry_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare enqueue statement: %w", err)
	}

	s.dueStmt, err = s.db.Prepare(`
		SELECT id, event_id, created_at, attempt_count, retry_id, next_retry_at, payload
		FROM pending_deliveries
		WHERE next_retry_at <= ?
		ORDER BY created_at ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare due statement: %w", err)
	}

	s.updateStmt, err = s.db.Prepare(`
		UPDATE pending_deliveries
		SET attempt_count = ?, retry_id = ?, next_retry_at = ?, payload = ?
		WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare update statement: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`
		DELETE FROM pending_deliveries WHERE id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare delete statement: %w", err)
	}

	s.byRetryStmt, err = s.db.Prepare(`
		SELECT id, event_id, created_at, attempt_count, retry_id, next_retry_at, payload
		FROM pending_deliveries
		WHERE retry_id = ?
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare retry lookup statement: %w", err)
	}

	s.countStmt, err = s.db.Prepare(`
		SELECT COUNT(*) FROM pending_deliveries
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare count statement: %w", err)
	}

	s.allStmt, err = s.db.Prepare(`
		SELECT id, event_id, created_at, attempt_count, retry_id, next_retry_at, payload
		FROM pending_deliveries
		ORDER BY created_at ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list statement: %w", err)
	}

	return nil
}

// Enqueue inserts a new delivery row.
func (s *SQLiteStore) Enqueue(ctx context.Context, d *Delivery) error {
	if d == nil {
		return fmt.Errorf("delivery cannot be nil")
	}
	if d.ID == "" || d.EventID == "" {
		return fmt.Errorf("delivery id and event id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.enqueueStmt.ExecContext(ctx,
		d.ID,
		d.EventID,
		d.CreatedAt.UnixMilli(),
		d.AttemptCount,
		nullableString(d.RetryID),
		d.NextRetryAt.UnixMilli(),
		d.Payload,
	)
	if err != nil {
		return store.NewStorageError("pending", "enqueue", err)
	}

	return nil
}

// Due returns all rows with next_retry_at <= now, in creation order.
func (s *SQLiteStore) Due(ctx context.Context, now time.Time) ([]*Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.dueStmt.QueryContext(ctx, now.UnixMilli())
	if err != nil {
		return nil, store.NewStorageError("pending", "due", err)
	}
	defer rows.Close()

	return scanDeliveries(rows)
}

// Update persists attempt count, retry id, next retry time, and payload.
func (s *SQLiteStore) Update(ctx context.Context, d *Delivery) error {
	if d == nil || d.ID == "" {
		return fmt.Errorf("delivery id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.updateStmt.ExecContext(ctx,
		d.AttemptCount,
		nullableString(d.RetryID),
		d.NextRetryAt.UnixMilli(),
		d.Payload,
		d.ID,
	)
	if err != nil {
		return store.NewStorageError("pending", "update", err)
	}

	return nil
}

// Delete removes a row. Deleting an absent row is not an error.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.deleteStmt.ExecContext(ctx, id); err != nil {
		return store.NewStorageError("pending", "delete", err)
	}
	return nil
}

// GetByRetryID returns the row stamped with a server retry id, or nil.
func (s *SQLiteStore) GetByRetryID(ctx context.Context, retryID string) (*Delivery, error) {
	if retryID == "" {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.byRetryStmt.QueryContext(ctx, retryID)
	if err != nil {
		return nil, store.NewStorageError("pending", "get_by_retry_id", err)
	}
	defer rows.Close()

	deliveries, err := scanDeliveries(rows)
	if err != nil {
		return nil, err
	}
	if len(deliveries) == 0 {
		return nil, nil
	}
	return deliveries[0], nil
}

// Count returns the number of rows in the queue.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	if err := s.countStmt.QueryRowContext(ctx).Scan(&count); err != nil {
		return 0, store.NewStorageError("pending", "count", err)
	}
	return count, nil
}

// All returns every row in creation order.
func (s *SQLiteStore) All(ctx context.Context) ([]*Delivery, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.allStmt.QueryContext(ctx)
	if err != nil {
		return nil, store.NewStorageError("pending", "all", err)
	}
	defer rows.Close()

	return scanDeliveries(rows)
}

// Close releases any resources held by the store.
// Close is idempotent and safe to call multiple times.
func (s *SQLiteStore) Close() error {
	var closeErr error

	s.closeOnce.Do(func() {
		close(s.done)

		for _, stmt := range []*sql.Stmt{
			s.enqueueStmt, s.dueStmt, s.updateStmt, s.deleteStmt,
			s.byRetryStmt, s.countStmt, s.allStmt,
		} {
			if stmt != nil {
				stmt.Close()
			}
		}

		if s.db != nil {
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
			closeErr = s.db.Close()
		}
	})

	return closeErr
}

// checkpointLoop runs periodic WAL checkpoints.
func (s *SQLiteStore) checkpointLoop() {
	ticker := time.NewTicker(s.checkpointInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_, _ = s.db.Exec("PRAGMA wal_checkpoint(PASSIVE)")
		case <-s.done:
			return
		}
	}
}

// scanDeliveries reads delivery rows from a result set.
func scanDeliveries(rows *sql.Rows) ([]*Delivery, error) {
	var deliveries []*Delivery

	for rows.Next() {
		var (
			d           Delivery
			createdAt   int64
			retryID     sql.NullString
			nextRetryAt int64
		)

		if err := rows.Scan(&d.ID, &d.EventID, &createdAt, &d.AttemptCount, &retryID, &nextRetryAt, &d.Payload); err != nil {
			return nil, store.NewStorageError("pending", "scan", err)
		}

		d.CreatedAt = time.UnixMilli(createdAt)
		d.NextRetryAt = time.UnixMilli(nextRetryAt)
		if retryID.Valid {
			d.RetryID = retryID.String
		}

		deliveries = append(deliveries, &d)
	}

	if err := rows.Err(); err != nil {
		return nil, store.NewStorageError("pending", "scan", err)
	}

	return deliveries, nil
}

// nullableString maps an empty string to SQL NULL.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
