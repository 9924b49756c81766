package storage

import (
	"context"
	"time"

	"quantgate-hq/ganymede/pkg/artifact"
)

// Scope identifies the tenant/user ownership of every stored row. All
// operations are scoped; there is no cross-tenant read path.
type Scope struct {
	TenantID string
	UserID   string
}

// RunMetadata is the write-once portion of a stored run: identity plus the
// canonical artifact JSON as it was at creation time.
type RunMetadata struct {
	RunID      string
	RequestID  string
	StrategyID string
	CreatedAt  time.Time
	Artifact   []byte
}

// ReviewState is the revisable portion of a stored run. It is authoritative
// for the agent review, trader review, and final decision; readers overlay
// it onto the stored artifact.
type ReviewState struct {
	AgentReview   artifact.AgentReview
	TraderReview  artifact.TraderReview
	FinalDecision string
	UpdatedAt     time.Time
}

// RunRecord is a full stored run: metadata, review state, and checksummed
// blob references.
type RunRecord struct {
	Scope    Scope
	Meta     RunMetadata
	Review   ReviewState
	BlobRefs []artifact.BlobRef
}

// Baseline pins one completed run's decision as a regression comparison
// point.
type Baseline struct {
	BaselineID    string
	Name          string
	RunID         string
	FinalDecision string
	CreatedAt     time.Time
}

// Replay records one regression replay of a candidate run against a
// baseline.
type Replay struct {
	ReplayID       string
	BaselineID     string
	CandidateRunID string
	Outcome        string
	CreatedAt      time.Time
}

// Store is the persistence contract for validation runs. Implementations
// must be safe for concurrent use.
//
// UpsertRun writes metadata, review state, and blob references as one
// logical transaction; on partial failure the pre-write rows are restored
// exactly, and RollbackError propagates if that restore fails.
type Store interface {
	UpsertRun(ctx context.Context, scope Scope, meta *RunMetadata, review *ReviewState, refs []artifact.BlobRef) error
	GetRun(ctx context.Context, scope Scope, runID string) (*RunRecord, error)

	UpsertBaseline(ctx context.Context, scope Scope, baseline *Baseline) error
	GetBaseline(ctx context.Context, scope Scope, baselineID string) (*Baseline, error)

	UpsertReplay(ctx context.Context, scope Scope, replay *Replay) error
	GetReplay(ctx context.Context, scope Scope, replayID string) (*Replay, error)

	// Close releases any resources held by the backend.
	Close() error
}
