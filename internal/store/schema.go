package store

// SchemaVersion is the current local store schema version. Upgrades are
// additive only: migrations may create tables, columns, and indexes but
// must never drop or rewrite pending_actions rows.
const SchemaVersion = 3

const schema = `
-- Cached server-owned entities. baseline is the payload as of the last
-- confirmed sync, kept for conflict detection. due_date / day_of_week are
-- denormalized from the payload so range queries avoid a full scan.
CREATE TABLE IF NOT EXISTS entities (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    payload JSON NOT NULL,
    baseline JSON,
    version INTEGER NOT NULL DEFAULT 0,
    cached_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    synced INTEGER NOT NULL DEFAULT 0,
    due_date TEXT,
    day_of_week INTEGER
);
CREATE INDEX IF NOT EXISTS idx_entities_kind ON entities(kind);
CREATE INDEX IF NOT EXISTS idx_entities_due_date ON entities(due_date) WHERE due_date IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_entities_day ON entities(day_of_week) WHERE day_of_week IS NOT NULL;

-- Binary attachments, owned by exactly one entity.
CREATE TABLE IF NOT EXISTS attachments (
    id TEXT PRIMARY KEY,
    entity_id TEXT NOT NULL,
    mime_type TEXT NOT NULL DEFAULT 'application/octet-stream',
    file_size INTEGER NOT NULL DEFAULT 0,
    data BLOB NOT NULL,
    thumbnail BLOB,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_attachments_entity ON attachments(entity_id);

-- Durable queue of not-yet-confirmed mutations. id orders the queue and
-- never leaves the device. next_attempt_at implements persistent backoff.
CREATE TABLE IF NOT EXISTS pending_actions (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    action TEXT NOT NULL,
    entity_kind TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    payload JSON NOT NULL,
    base_version INTEGER NOT NULL DEFAULT 0,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    retries INTEGER NOT NULL DEFAULT 0,
    state TEXT NOT NULL DEFAULT 'queued',
    last_error TEXT DEFAULT '',
    next_attempt_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_pending_kind ON pending_actions(entity_kind);
CREATE INDEX IF NOT EXISTS idx_pending_entity ON pending_actions(entity_id);

-- Version conflicts awaiting user resolution, keyed back to the pending
-- action that was rejected.
CREATE TABLE IF NOT EXISTS sync_conflicts (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    action_id INTEGER NOT NULL,
    entity_kind TEXT NOT NULL,
    entity_id TEXT NOT NULL,
    client_version INTEGER NOT NULL,
    server_version INTEGER NOT NULL,
    client_payload JSON NOT NULL,
    server_payload JSON NOT NULL,
    baseline JSON,
    detected_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
    UNIQUE(action_id)
);

-- Small key-value scratch space for sync bookkeeping.
CREATE TABLE IF NOT EXISTS metadata (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);

-- Schema version tracking.
CREATE TABLE IF NOT EXISTS schema_info (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`
