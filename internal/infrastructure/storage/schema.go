package storage

// Schema is portable across SQLite and Postgres. Instants are unix milliseconds.
const Schema = `
CREATE TABLE IF NOT EXISTS items (
    id            TEXT PRIMARY KEY,
    source_ref    TEXT NOT NULL,
    source_name   TEXT NOT NULL DEFAULT '',
    title         TEXT NOT NULL DEFAULT '',
    media_type    TEXT NOT NULL DEFAULT '',
    caption_text  TEXT NOT NULL DEFAULT '',
    hashtags      TEXT NOT NULL DEFAULT '',
    state         TEXT NOT NULL,
    scheduled_at  BIGINT,
    attempt_count INTEGER NOT NULL DEFAULT 0,
    published_ref TEXT NOT NULL DEFAULT '',
    last_error    TEXT NOT NULL DEFAULT '',
    claim_token   TEXT NOT NULL DEFAULT '',
    claim_until   BIGINT NOT NULL DEFAULT 0,
    created_at    BIGINT NOT NULL,
    updated_at    BIGINT NOT NULL,
    CHECK (state IN ('DISCOVERED', 'ENRICHED', 'QUEUED', 'PUBLISHED', 'FAILED')),
    CHECK (state NOT IN ('QUEUED', 'PUBLISHED') OR scheduled_at IS NOT NULL),
    CHECK (state NOT IN ('QUEUED', 'PUBLISHED') OR caption_text <> ''),
    CHECK (published_ref = '' OR state = 'PUBLISHED')
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_items_scheduled_at ON items(scheduled_at) WHERE scheduled_at IS NOT NULL;
CREATE INDEX IF NOT EXISTS idx_items_state_created ON items(state, created_at);

CREATE TABLE IF NOT EXISTS hashtag_pools (
    name       TEXT PRIMARY KEY,
    tags       TEXT NOT NULL DEFAULT '',
    active     INTEGER NOT NULL DEFAULT 1,
    updated_at BIGINT NOT NULL
);
`
