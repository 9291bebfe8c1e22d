package replay

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the replay store schema.
const Schema = `
-- Locally retained plaintext events, kept only while remote policy
-- allows replay.
CREATE TABLE IF NOT EXISTS local_events (
    event_id TEXT PRIMARY KEY,
    timestamp INTEGER NOT NULL,
    payload TEXT NOT NULL
);

-- Attachment records for locally retained events, joined on read.
CREATE TABLE IF NOT EXISTS event_attachments (
    id TEXT PRIMARY KEY,
    event_id TEXT NOT NULL,
    field_name TEXT NOT NULL,
    filename TEXT NOT NULL,
    content_type TEXT,
    size_bytes INTEGER NOT NULL,
    checksum_sha256 TEXT NOT NULL,
    local_path TEXT NOT NULL,
    created_at INTEGER NOT NULL
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_local_events_timestamp ON local_events(timestamp);
CREATE INDEX IF NOT EXISTS idx_event_attachments_event_id ON event_attachments(event_id);
`

// InsertSchemaVersion inserts the schema version into the schema_version table.
const InsertSchemaVersion = `
INSERT INTO schema_version (version, applied_at)
VALUES (?, datetime('now'))
ON CONFLICT(version) DO NOTHING;
`
