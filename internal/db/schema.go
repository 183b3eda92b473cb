package db

// Uploaded messages keep their raw bytes; parse results are not stored and
// renders live in render_cache until they expire
const schema = `
CREATE TABLE IF NOT EXISTS messages (
    id TEXT PRIMARY KEY,
    subject TEXT,
    sender TEXT,
    snippet TEXT,
    raw BLOB NOT NULL,
    size INTEGER NOT NULL,
    created_at DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS render_cache (
    cache_key TEXT PRIMARY KEY,
    message_id TEXT NOT NULL,
    processed_html TEXT NOT NULL,
    plain_text TEXT NOT NULL,
    has_blocked_images BOOLEAN NOT NULL DEFAULT 0,
    expires_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_messages_created_at ON messages(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_render_cache_message_id ON render_cache(message_id);
CREATE INDEX IF NOT EXISTS idx_render_cache_expires_at ON render_cache(expires_at);
`
