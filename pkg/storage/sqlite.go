package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"quantgate-hq/ganymede/pkg/artifact"
)

// SQLiteConfig contains configuration for the SQLite store.
type SQLiteConfig struct {
	// Path is the database file path.
	Path string

	// WALMode enables Write-Ahead Logging mode for better concurrency.
	// Default: true
	WALMode bool

	// BusyTimeout is the duration to wait when the database is locked.
	// Default: 5 seconds
	BusyTimeout time.Duration
}

// DefaultSQLiteConfig returns the default SQLite configuration.
func DefaultSQLiteConfig() *SQLiteConfig {
	return &SQLiteConfig{
		Path:        "data/runs.db",
		WALMode:     true,
		BusyTimeout: 5 * time.Second,
	}
}

// SQLiteStore implements Store using SQLite. Writes are serialized under a
// mutex: the upsert path performs multi-row compensating rollback and must
// not interleave with another writer on the same key.
type SQLiteStore struct {
	db     *sql.DB
	config *SQLiteConfig
	logger *slog.Logger
	mu     sync.Mutex

	// writeHook, when set, runs before each write step of UpsertRun.
	// Tests use it to force partial-write failures.
	writeHook func(step string) error
}

// NewSQLiteStore opens (or creates) the run database and initializes the
// schema.
func NewSQLiteStore(config *SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	if config == nil {
		config = DefaultSQLiteConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "storage.sqlite")

	db, err := sql.Open("sqlite3", config.Path)
	if err != nil {
		return nil, &StoreError{Backend: "sqlite", Operation: "open", Cause: err}
	}

	s := &SQLiteStore{db: db, config: config, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("sqlite run store initialized",
		"path", config.Path,
		"wal_mode", config.WALMode,
	)
	return s, nil
}

// initialize sets up the schema and pragmas.
func (s *SQLiteStore) initialize() error {
	if s.config.WALMode {
		if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
			return &StoreError{Backend: "sqlite", Operation: "enable_wal", Cause: err}
		}
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.config.BusyTimeout.Milliseconds())); err != nil {
		return &StoreError{Backend: "sqlite", Operation: "set_busy_timeout", Cause: err}
	}
	if _, err := s.db.Exec(Schema); err != nil {
		return &StoreError{Backend: "sqlite", Operation: "create_schema", Cause: err}
	}
	if _, err := s.db.Exec(InsertSchemaVersion, SchemaVersion); err != nil {
		return &StoreError{Backend: "sqlite", Operation: "insert_schema_version", Cause: err}
	}

	var version int
	if err := s.db.QueryRow(GetSchemaVersion).Scan(&version); err != nil && err != sql.ErrNoRows {
		return &StoreError{Backend: "sqlite", Operation: "get_schema_version", Cause: err}
	}
	if version != SchemaVersion {
		return &StoreError{Backend: "sqlite", Operation: "schema_version_mismatch",
			Cause: fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version)}
	}
	return nil
}

// UpsertRun writes metadata, review state, and blob refs as one logical
// transaction. Rather than relying on a database transaction, the pre-write
// rows are snapshotted and restored exactly on partial failure; if the
// restore itself fails, RollbackError propagates and is fatal.
func (s *SQLiteStore) UpsertRun(ctx context.Context, scope Scope, meta *RunMetadata, review *ReviewState, refs []artifact.BlobRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prior, err := s.readRun(ctx, scope, meta.RunID)
	if err != nil {
		if _, notFound := err.(*NotFoundError); !notFound {
			return err
		}
		prior = nil
	}

	fail := func(step string, cause error) error {
		if rbErr := s.restoreRun(ctx, scope, meta.RunID, prior); rbErr != nil {
			return &RollbackError{Operation: "upsert_run/" + step, WriteCause: cause, RollbackCause: rbErr}
		}
		s.logger.Warn("run write rolled back", "run_id", meta.RunID, "step", step, "error", cause)
		return &StoreError{Backend: "sqlite", Operation: "upsert_run/" + step, Cause: cause}
	}

	// Step 1: run metadata.
	if err := s.step("metadata"); err != nil {
		return fail("metadata", err)
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (tenant_id, user_id, run_id, request_id, strategy_id, created_at, artifact)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, user_id, run_id) DO UPDATE SET
			request_id = excluded.request_id,
			strategy_id = excluded.strategy_id,
			created_at = excluded.created_at,
			artifact = excluded.artifact`,
		scope.TenantID, scope.UserID, meta.RunID, meta.RequestID, meta.StrategyID,
		meta.CreatedAt.UTC(), string(meta.Artifact)); err != nil {
		return fail("metadata", err)
	}

	// Step 2: review state.
	if review != nil {
		agentJSON, err := json.Marshal(review.AgentReview)
		if err != nil {
			return fail("review", err)
		}
		traderJSON, err := json.Marshal(review.TraderReview)
		if err != nil {
			return fail("review", err)
		}
		if err := s.step("review"); err != nil {
			return fail("review", err)
		}
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO run_reviews (tenant_id, user_id, run_id, agent_review, trader_review, final_decision, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (tenant_id, user_id, run_id) DO UPDATE SET
				agent_review = excluded.agent_review,
				trader_review = excluded.trader_review,
				final_decision = excluded.final_decision,
				updated_at = excluded.updated_at`,
			scope.TenantID, scope.UserID, meta.RunID, string(agentJSON), string(traderJSON),
			review.FinalDecision, review.UpdatedAt.UTC()); err != nil {
			return fail("review", err)
		}
	}

	// Step 3: blob references, replaced wholesale.
	if err := s.step("blob_refs"); err != nil {
		return fail("blob_refs", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM run_blob_refs WHERE tenant_id = ? AND user_id = ? AND run_id = ?`,
		scope.TenantID, scope.UserID, meta.RunID); err != nil {
		return fail("blob_refs", err)
	}
	for i, ref := range refs {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO run_blob_refs (tenant_id, user_id, run_id, position, kind, ref, sha256)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			scope.TenantID, scope.UserID, meta.RunID, i, ref.Kind, ref.Ref, ref.SHA256); err != nil {
			return fail("blob_refs", err)
		}
	}
	return nil
}

// step runs the fault-injection hook for a write step when set.
func (s *SQLiteStore) step(name string) error {
	if s.writeHook != nil {
		return s.writeHook(name)
	}
	return nil
}

// restoreRun puts the three row groups of a run back to their snapshotted
// pre-write state. A nil prior means the run did not exist before.
func (s *SQLiteStore) restoreRun(ctx context.Context, scope Scope, runID string, prior *RunRecord) error {
	for _, stmt := range []string{
		`DELETE FROM runs WHERE tenant_id = ? AND user_id = ? AND run_id = ?`,
		`DELETE FROM run_reviews WHERE tenant_id = ? AND user_id = ? AND run_id = ?`,
		`DELETE FROM run_blob_refs WHERE tenant_id = ? AND user_id = ? AND run_id = ?`,
	} {
		if _, err := s.db.ExecContext(ctx, stmt, scope.TenantID, scope.UserID, runID); err != nil {
			return err
		}
	}
	if prior == nil {
		return nil
	}

	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (tenant_id, user_id, run_id, request_id, strategy_id, created_at, artifact)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scope.TenantID, scope.UserID, prior.Meta.RunID, prior.Meta.RequestID,
		prior.Meta.StrategyID, prior.Meta.CreatedAt.UTC(), string(prior.Meta.Artifact)); err != nil {
		return err
	}

	agentJSON, err := json.Marshal(prior.Review.AgentReview)
	if err != nil {
		return err
	}
	traderJSON, err := json.Marshal(prior.Review.TraderReview)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO run_reviews (tenant_id, user_id, run_id, agent_review, trader_review, final_decision, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		scope.TenantID, scope.UserID, prior.Meta.RunID, string(agentJSON), string(traderJSON),
		prior.Review.FinalDecision, prior.Review.UpdatedAt.UTC()); err != nil {
		return err
	}

	for i, ref := range prior.BlobRefs {
		if _, err := s.db.ExecContext(ctx, `
			INSERT INTO run_blob_refs (tenant_id, user_id, run_id, position, kind, ref, sha256)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			scope.TenantID, scope.UserID, prior.Meta.RunID, i, ref.Kind, ref.Ref, ref.SHA256); err != nil {
			return err
		}
	}
	return nil
}

// GetRun reads a full run record.
func (s *SQLiteStore) GetRun(ctx context.Context, scope Scope, runID string) (*RunRecord, error) {
	return s.readRun(ctx, scope, runID)
}

// readRun loads the three row groups of a run.
func (s *SQLiteStore) readRun(ctx context.Context, scope Scope, runID string) (*RunRecord, error) {
	record := &RunRecord{Scope: scope}

	var artifactJSON string
	err := s.db.QueryRowContext(ctx, `
		SELECT run_id, request_id, strategy_id, created_at, artifact
		FROM runs WHERE tenant_id = ? AND user_id = ? AND run_id = ?`,
		scope.TenantID, scope.UserID, runID).Scan(
		&record.Meta.RunID, &record.Meta.RequestID, &record.Meta.StrategyID,
		&record.Meta.CreatedAt, &artifactJSON)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "run", ID: runID}
	}
	if err != nil {
		return nil, &StoreError{Backend: "sqlite", Operation: "get_run", Cause: err}
	}
	record.Meta.Artifact = []byte(artifactJSON)

	var agentJSON, traderJSON string
	err = s.db.QueryRowContext(ctx, `
		SELECT agent_review, trader_review, final_decision, updated_at
		FROM run_reviews WHERE tenant_id = ? AND user_id = ? AND run_id = ?`,
		scope.TenantID, scope.UserID, runID).Scan(
		&agentJSON, &traderJSON, &record.Review.FinalDecision, &record.Review.UpdatedAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, &StoreError{Backend: "sqlite", Operation: "get_run_review", Cause: err}
	}
	if err == nil {
		if err := json.Unmarshal([]byte(agentJSON), &record.Review.AgentReview); err != nil {
			return nil, &StoreError{Backend: "sqlite", Operation: "decode_agent_review", Cause: err}
		}
		if err := json.Unmarshal([]byte(traderJSON), &record.Review.TraderReview); err != nil {
			return nil, &StoreError{Backend: "sqlite", Operation: "decode_trader_review", Cause: err}
		}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, ref, sha256 FROM run_blob_refs
		WHERE tenant_id = ? AND user_id = ? AND run_id = ?
		ORDER BY position`,
		scope.TenantID, scope.UserID, runID)
	if err != nil {
		return nil, &StoreError{Backend: "sqlite", Operation: "get_run_blob_refs", Cause: err}
	}
	defer rows.Close()
	for rows.Next() {
		var ref artifact.BlobRef
		if err := rows.Scan(&ref.Kind, &ref.Ref, &ref.SHA256); err != nil {
			return nil, &StoreError{Backend: "sqlite", Operation: "scan_blob_ref", Cause: err}
		}
		record.BlobRefs = append(record.BlobRefs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Backend: "sqlite", Operation: "iterate_blob_refs", Cause: err}
	}
	return record, nil
}

// UpsertBaseline stores a baseline.
func (s *SQLiteStore) UpsertBaseline(ctx context.Context, scope Scope, baseline *Baseline) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO baselines (tenant_id, user_id, baseline_id, name, run_id, final_decision, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, user_id, baseline_id) DO UPDATE SET
			name = excluded.name,
			run_id = excluded.run_id,
			final_decision = excluded.final_decision`,
		scope.TenantID, scope.UserID, baseline.BaselineID, baseline.Name,
		baseline.RunID, baseline.FinalDecision, baseline.CreatedAt.UTC())
	if err != nil {
		return &StoreError{Backend: "sqlite", Operation: "upsert_baseline", Cause: err}
	}
	return nil
}

// GetBaseline reads a baseline.
func (s *SQLiteStore) GetBaseline(ctx context.Context, scope Scope, baselineID string) (*Baseline, error) {
	baseline := &Baseline{}
	err := s.db.QueryRowContext(ctx, `
		SELECT baseline_id, name, run_id, final_decision, created_at
		FROM baselines WHERE tenant_id = ? AND user_id = ? AND baseline_id = ?`,
		scope.TenantID, scope.UserID, baselineID).Scan(
		&baseline.BaselineID, &baseline.Name, &baseline.RunID,
		&baseline.FinalDecision, &baseline.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "baseline", ID: baselineID}
	}
	if err != nil {
		return nil, &StoreError{Backend: "sqlite", Operation: "get_baseline", Cause: err}
	}
	return baseline, nil
}

// UpsertReplay stores a replay record.
func (s *SQLiteStore) UpsertReplay(ctx context.Context, scope Scope, replay *Replay) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO replays (tenant_id, user_id, replay_id, baseline_id, candidate_run_id, outcome, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (tenant_id, user_id, replay_id) DO UPDATE SET
			baseline_id = excluded.baseline_id,
			candidate_run_id = excluded.candidate_run_id,
			outcome = excluded.outcome`,
		scope.TenantID, scope.UserID, replay.ReplayID, replay.BaselineID,
		replay.CandidateRunID, replay.Outcome, replay.CreatedAt.UTC())
	if err != nil {
		return &StoreError{Backend: "sqlite", Operation: "upsert_replay", Cause: err}
	}
	return nil
}

// GetReplay reads a replay record.
func (s *SQLiteStore) GetReplay(ctx context.Context, scope Scope, replayID string) (*Replay, error) {
	replay := &Replay{}
	err := s.db.QueryRowContext(ctx, `
		SELECT replay_id, baseline_id, candidate_run_id, outcome, created_at
		FROM replays WHERE tenant_id = ? AND user_id = ? AND replay_id = ?`,
		scope.TenantID, scope.UserID, replayID).Scan(
		&replay.ReplayID, &replay.BaselineID, &replay.CandidateRunID,
		&replay.Outcome, &replay.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, &NotFoundError{Kind: "replay", ID: replayID}
	}
	if err != nil {
		return nil, &StoreError{Backend: "sqlite", Operation: "get_replay", Cause: err}
	}
	return replay, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
