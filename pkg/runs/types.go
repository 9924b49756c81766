package runs

import (
	"context"
	"encoding/json"

	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/engine"
	"quantgate-hq/ganymede/pkg/review"
)

// Actor types recognized in actor contexts.
const (
	ActorUser = "user"
	ActorBot  = "bot"
)

// Reviewer types accepted by SubmitReview.
const (
	ReviewerAgent  = "agent"
	ReviewerTrader = "trader"
)

// Trader decisions accepted by SubmitReview.
const (
	TraderDecisionApproved        = "approved"
	TraderDecisionConditionalPass = "conditional_pass"
	TraderDecisionRejected        = "rejected"
)

// ActorContext is the already-authenticated tenant/user/actor tuple
// supplied by the external identity collaborator. The orchestrator trusts
// it and never re-derives it.
type ActorContext struct {
	TenantID    string `json:"tenantId"`
	OwnerUserID string `json:"ownerUserId"`
	ActorType   string `json:"actorType"`
	ActorID     string `json:"actorId"`
}

// CreateRunRequest is the caller contract for creating a validation run.
// PolicyDocument is the raw external policy payload; it is parsed strictly
// before any evaluation runs.
type CreateRunRequest struct {
	RequestID           string              `json:"requestId"`
	StrategyID          string              `json:"strategyId"`
	Prompt              string              `json:"prompt"`
	RequestedIndicators []string            `json:"requestedIndicators"`
	DatasetIDs          []string            `json:"datasetIds"`
	BacktestReportRef   string              `json:"backtestReportRef"`
	Outputs             artifact.RunOutputs `json:"outputs"`
	PolicyDocument      json.RawMessage     `json:"policy"`

	// ToolPlan optionally overrides the reviewer's deterministic default
	// plan. Nil selects the default.
	ToolPlan []review.ToolCall `json:"-"`
}

// SubmitReviewRequest is the caller contract for agent or trader review
// submissions.
type SubmitReviewRequest struct {
	RunID        string             `json:"runId"`
	ReviewerType string             `json:"reviewerType"`
	Decision     string             `json:"decision"`
	Findings     []artifact.Finding `json:"findings,omitempty"`
	Comments     []string           `json:"comments,omitempty"`
}

// RunAccepted is the response to create_run. Per the caller contract the
// accepted status is queued and the decision pending; the synchronous
// pipeline completes before the response is returned, and GetRun reflects
// the completed state.
type RunAccepted struct {
	RunID         string `json:"runId"`
	Status        string `json:"status"`
	FinalDecision string `json:"finalDecision"`
}

// RunStatus is the response to get_run.
type RunStatus struct {
	RunID         string `json:"runId"`
	Status        string `json:"status"`
	FinalDecision string `json:"finalDecision"`
}

// ReviewAccepted is the response to submit_review.
type ReviewAccepted struct {
	RunID         string `json:"runId"`
	ReviewerType  string `json:"reviewerType"`
	FinalDecision string `json:"finalDecision"`
}

// BaselineCreated is the response to create_baseline.
type BaselineCreated struct {
	BaselineID    string `json:"baselineId"`
	Name          string `json:"name"`
	RunID         string `json:"runId"`
	FinalDecision string `json:"finalDecision"`
}

// ReplayResult is the response to replay_regression.
type ReplayResult struct {
	ReplayID       string `json:"replayId"`
	BaselineID     string `json:"baselineId"`
	CandidateRunID string `json:"candidateRunId"`
	Outcome        string `json:"outcome"`
}

// EvidenceSource resolves a create request into deterministic validation
// evidence. Supplied by the external data/backtest collaborator.
type EvidenceSource interface {
	Resolve(ctx context.Context, req *CreateRunRequest) (*engine.Evidence, error)
}

// ReferenceResolver answers existence checks for strategies and datasets.
// Supplied by the external catalog collaborator.
type ReferenceResolver interface {
	HasStrategy(ctx context.Context, strategyID string) (bool, error)
	HasDataset(ctx context.Context, datasetID string) (bool, error)
}
