package storage

// SchemaVersion is the current database schema version.
const SchemaVersion = 1

// Schema contains the SQL statements to create the run-store schema.
const Schema = `
-- Write-once run metadata plus the canonical artifact JSON at creation.
CREATE TABLE IF NOT EXISTS runs (
    tenant_id   TEXT NOT NULL,
    user_id     TEXT NOT NULL,
    run_id      TEXT NOT NULL,
    request_id  TEXT NOT NULL,
    strategy_id TEXT NOT NULL,
    created_at  TIMESTAMP NOT NULL,
    artifact    TEXT NOT NULL,
    PRIMARY KEY (tenant_id, user_id, run_id)
);

-- Revisable review state, one row per run.
CREATE TABLE IF NOT EXISTS run_reviews (
    tenant_id      TEXT NOT NULL,
    user_id        TEXT NOT NULL,
    run_id         TEXT NOT NULL,
    agent_review   TEXT NOT NULL,
    trader_review  TEXT NOT NULL,
    final_decision TEXT NOT NULL,
    updated_at     TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, user_id, run_id)
);

-- Checksummed blob references, several rows per run.
CREATE TABLE IF NOT EXISTS run_blob_refs (
    tenant_id TEXT NOT NULL,
    user_id   TEXT NOT NULL,
    run_id    TEXT NOT NULL,
    position  INTEGER NOT NULL,
    kind      TEXT NOT NULL,
    ref       TEXT NOT NULL,
    sha256    TEXT NOT NULL,
    PRIMARY KEY (tenant_id, user_id, run_id, position)
);

CREATE TABLE IF NOT EXISTS baselines (
    tenant_id      TEXT NOT NULL,
    user_id        TEXT NOT NULL,
    baseline_id    TEXT NOT NULL,
    name           TEXT NOT NULL,
    run_id         TEXT NOT NULL,
    final_decision TEXT NOT NULL,
    created_at     TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, user_id, baseline_id)
);

CREATE TABLE IF NOT EXISTS replays (
    tenant_id        TEXT NOT NULL,
    user_id          TEXT NOT NULL,
    replay_id        TEXT NOT NULL,
    baseline_id      TEXT NOT NULL,
    candidate_run_id TEXT NOT NULL,
    outcome          TEXT NOT NULL,
    created_at       TIMESTAMP NOT NULL,
    PRIMARY KEY (tenant_id, user_id, replay_id)
);

-- Schema version table
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY
);
`

// InsertSchemaVersion records the schema version if not already present.
const InsertSchemaVersion = `INSERT OR IGNORE INTO schema_version (version) VALUES (?);`

// GetSchemaVersion reads the recorded schema version.
const GetSchemaVersion = `SELECT version FROM schema_version LIMIT 1;`
