package artifact

import (
	"time"

	"quantgate-hq/ganymede/pkg/policy"
)

// Schema identifiers for the frozen artifact shapes.
const (
	SchemaRun      = "validation-run.v1"
	SchemaSnapshot = "validation-llm-snapshot.v1"
)

// Final decision values for a validation run.
const (
	DecisionPending         = "pending"
	DecisionPass            = "pass"
	DecisionConditionalPass = "conditional_pass"
	DecisionFail            = "fail"
)

// Check and review status values.
const (
	StatusPass            = "pass"
	StatusConditionalPass = "conditional_pass"
	StatusFail            = "fail"
	StatusNotExecuted     = "not_executed"
)

// Trader review statuses.
const (
	TraderNotRequested = "not_requested"
	TraderRequested    = "requested"
	TraderApproved     = "approved"
	TraderRejected     = "rejected"
)

// CheckResult is the outcome of one deterministic check. Violations are
// ordered and stable: identical evidence and policy always reproduce the
// same list.
type CheckResult struct {
	Status     string   `json:"status"`
	Violations []string `json:"violations"`
}

// MetricCheckResult extends CheckResult with the observed drift and the
// tolerance the check was resolved against.
type MetricCheckResult struct {
	Status       string   `json:"status"`
	Violations   []string `json:"violations"`
	MaxDriftPct  float64  `json:"maxDriftPct"`
	TolerancePct float64  `json:"tolerancePct"`
}

// CheckResults groups the four deterministic sub-results. Lineage-derived
// violations are additionally folded into TradeCoherence under a "lineage:"
// prefix so a single tradeCoherence status reflects both.
type CheckResults struct {
	IndicatorFidelity   CheckResult       `json:"indicatorFidelity"`
	TradeCoherence      CheckResult       `json:"tradeCoherence"`
	MetricConsistency   MetricCheckResult `json:"metricConsistency"`
	LineageCompleteness CheckResult       `json:"lineageCompleteness"`
}

// RunInputs captures the caller-supplied inputs of a run.
type RunInputs struct {
	Prompt              string   `json:"prompt"`
	RequestedIndicators []string `json:"requestedIndicators"`
	DatasetIDs          []string `json:"datasetIds"`
	BacktestReportRef   string   `json:"backtestReportRef"`
}

// RunOutputs holds the five canonical evidence blob references.
type RunOutputs struct {
	StrategyCode   BlobRef `json:"strategyCode"`
	BacktestReport BlobRef `json:"backtestReport"`
	Trades         BlobRef `json:"trades"`
	ExecutionLogs  BlobRef `json:"executionLogs"`
	ChartPayload   BlobRef `json:"chartPayload"`
}

// Refs returns the outputs as a slice in canonical order.
func (o RunOutputs) Refs() []BlobRef {
	return []BlobRef{o.StrategyCode, o.BacktestReport, o.Trades, o.ExecutionLogs, o.ChartPayload}
}

// Finding is one agent-review finding. Priority 0 is blocking; 3 is the
// lowest advisory priority. EvidenceRefs must be a non-empty subset of the
// snapshot's allow-list.
type Finding struct {
	ID           string   `json:"id"`
	Priority     int      `json:"priority"`
	Confidence   float64  `json:"confidence"`
	Summary      string   `json:"summary"`
	EvidenceRefs []string `json:"evidenceRefs"`
}

// BudgetLimits are the per-profile cost ceilings for the agent-review lane.
type BudgetLimits struct {
	MaxRuntimeSeconds float64 `json:"maxRuntimeSeconds"`
	MaxTokens         int     `json:"maxTokens"`
	MaxToolCalls      int     `json:"maxToolCalls"`
	MaxFindings       int     `json:"maxFindings"`
}

// BudgetUsage is the measured spend of one review.
type BudgetUsage struct {
	RuntimeSeconds float64 `json:"runtimeSeconds"`
	Tokens         int     `json:"tokens"`
	ToolCalls      int     `json:"toolCalls"`
}

// BudgetReport pairs limits with usage. Exactly one of WithinBudget=true or
// a non-empty BreachReason is present, never both.
type BudgetReport struct {
	Limits       BudgetLimits `json:"limits"`
	Usage        BudgetUsage  `json:"usage"`
	WithinBudget bool         `json:"withinBudget"`
	BreachReason string       `json:"breachReason,omitempty"`
}

// AgentReview is the agent-review block of a run artifact. It defaults to
// not_executed and is one of the three fields that may be revised after the
// artifact is first persisted.
type AgentReview struct {
	Status   string       `json:"status"`
	Summary  string       `json:"summary"`
	Findings []Finding    `json:"findings"`
	Budget   BudgetReport `json:"budget"`
}

// TraderReview is the human-review block of a run artifact.
type TraderReview struct {
	Required bool     `json:"required"`
	Status   string   `json:"status"`
	Decision string   `json:"decision,omitempty"`
	Comments []string `json:"comments"`
}

// RunArtifact is the canonical validation-run.v1 shape. Everything except
// AgentReview, TraderReview, and FinalDecision is write-once for a given run
// id.
type RunArtifact struct {
	Schema string `json:"schema"`

	// Identity
	RunID     string `json:"runId"`
	RequestID string `json:"requestId"`
	TenantID  string `json:"tenantId"`
	UserID    string `json:"userId"`
	ActorType string `json:"actorType"`
	ActorID   string `json:"actorId"`

	StrategyID string    `json:"strategyId"`
	CreatedAt  time.Time `json:"createdAt"`

	Inputs  RunInputs  `json:"inputs"`
	Outputs RunOutputs `json:"outputs"`

	Checks       CheckResults `json:"checks"`
	BlockReasons []string     `json:"blockReasons"`

	AgentReview  AgentReview         `json:"agentReview"`
	TraderReview TraderReview        `json:"traderReview"`
	Policy       policy.ReviewPolicy `json:"policy"`

	FinalDecision string `json:"finalDecision"`
}

// EvidenceRef is one allow-listed evidence reference in a reviewer snapshot.
type EvidenceRef struct {
	Kind string `json:"kind"`
	Ref  string `json:"ref"`
}

// SnapshotChecks carries only the three deterministic status flags the
// bounded reviewer is allowed to see (lineage is folded into trade
// coherence), never full violation detail.
type SnapshotChecks struct {
	IndicatorFidelity string `json:"indicatorFidelity"`
	TradeCoherence    string `json:"tradeCoherence"`
	MetricConsistency string `json:"metricConsistency"`
}

// Snapshot is the canonical validation-llm-snapshot.v1 shape: the only input
// the bounded agent-review lane receives. EvidenceRefs is an explicit
// allow-list; the reviewer never sees the full artifact or unrestricted blob
// access.
type Snapshot struct {
	Schema              string              `json:"schema"`
	RunID               string              `json:"runId"`
	StrategyID          string              `json:"strategyId"`
	RequestedIndicators []string            `json:"requestedIndicators"`
	Checks              SnapshotChecks      `json:"checks"`
	Policy              policy.ReviewPolicy `json:"policy"`
	EvidenceRefs        []EvidenceRef       `json:"evidenceRefs"`
}
