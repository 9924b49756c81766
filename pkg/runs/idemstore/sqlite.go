package idemstore

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS idempotency_records (
    scope       TEXT NOT NULL,
    key         TEXT NOT NULL,
    fingerprint TEXT NOT NULL,
    response    BLOB NOT NULL,
    created_at  INTEGER NOT NULL,
    expires_at  INTEGER NOT NULL,
    PRIMARY KEY (scope, key)
);
CREATE INDEX IF NOT EXISTS idx_idempotency_expiry ON idempotency_records (expires_at);
`

// SQLiteBackend implements Backend using SQLite for persistence. Suitable
// for single-instance deployments where idempotency must survive restarts.
type SQLiteBackend struct {
	db        *sql.DB
	closeOnce sync.Once

	putStmt    *sql.Stmt
	getStmt    *sql.Stmt
	expireStmt *sql.Stmt
}

// NewSQLiteBackend opens (or creates) the idempotency database at dbPath.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_synchronous=NORMAL",
		dbPath, int((5 * time.Second).Milliseconds()))
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	b := &SQLiteBackend{db: db}
	if b.putStmt, err = db.Prepare(`
		INSERT INTO idempotency_records (scope, key, fingerprint, response, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (scope, key) DO UPDATE SET
			fingerprint = excluded.fingerprint,
			response = excluded.response,
			created_at = excluded.created_at,
			expires_at = excluded.expires_at`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare put statement: %w", err)
	}
	if b.getStmt, err = db.Prepare(`
		SELECT fingerprint, response, created_at, expires_at
		FROM idempotency_records WHERE scope = ? AND key = ?`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare get statement: %w", err)
	}
	if b.expireStmt, err = db.Prepare(
		`DELETE FROM idempotency_records WHERE expires_at > 0 AND expires_at <= ?`); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare expire statement: %w", err)
	}
	return b, nil
}

// Put stores or replaces a record.
func (b *SQLiteBackend) Put(ctx context.Context, record *Record) error {
	_, err := b.putStmt.ExecContext(ctx,
		record.Scope, record.Key, record.Fingerprint, record.Response,
		record.CreatedAt.Unix(), record.ExpiresAt.Unix())
	if err != nil {
		return fmt.Errorf("failed to store idempotency record: %w", err)
	}
	return nil
}

// Get returns the record for (scope, key), or nil when absent or expired.
func (b *SQLiteBackend) Get(ctx context.Context, scope, key string) (*Record, error) {
	record := &Record{Scope: scope, Key: key}
	var createdAt, expiresAt int64
	err := b.getStmt.QueryRowContext(ctx, scope, key).Scan(
		&record.Fingerprint, &record.Response, &createdAt, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load idempotency record: %w", err)
	}
	record.CreatedAt = time.Unix(createdAt, 0).UTC()
	record.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	if expiresAt > 0 && !record.ExpiresAt.After(time.Now()) {
		return nil, nil
	}
	return record, nil
}

// DeleteExpired removes expired records.
func (b *SQLiteBackend) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := b.expireStmt.ExecContext(ctx, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired records: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		b.putStmt.Close()
		b.getStmt.Close()
		b.expireStmt.Close()
		err = b.db.Close()
	})
	return err
}
