package engine

import (
	"time"

	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/policy"
)

// RunContext carries the identity and input references a canonical artifact
// is assembled from. The orchestrator validates these before evaluation
// runs.
type RunContext struct {
	RunID     string
	RequestID string
	TenantID  string
	UserID    string
	ActorType string
	ActorID   string

	StrategyID        string
	Prompt            string
	RequestedDatasets []string
	BacktestReportRef string

	Outputs artifact.RunOutputs
}

// BuildArtifact assembles the canonical validation-run.v1 artifact from a
// deterministic result. The agent review defaults to not_executed, the
// trader review status is derived from the policy, and finalDecision starts
// pending; the orchestrator overwrites those three after the review lanes
// run.
func BuildArtifact(rc RunContext, ev *Evidence, res *Result, pol *policy.ReviewPolicy, createdAt time.Time) *artifact.RunArtifact {
	traderStatus := artifact.TraderNotRequested
	if pol.RequireTraderReview {
		traderStatus = artifact.TraderRequested
	}

	return &artifact.RunArtifact{
		Schema:     artifact.SchemaRun,
		RunID:      rc.RunID,
		RequestID:  rc.RequestID,
		TenantID:   rc.TenantID,
		UserID:     rc.UserID,
		ActorType:  rc.ActorType,
		ActorID:    rc.ActorID,
		StrategyID: rc.StrategyID,
		CreatedAt:  createdAt.UTC(),
		Inputs: artifact.RunInputs{
			Prompt:              rc.Prompt,
			RequestedIndicators: copyStrings(ev.RequestedIndicators),
			DatasetIDs:          copyStrings(rc.RequestedDatasets),
			BacktestReportRef:   rc.BacktestReportRef,
		},
		Outputs:      rc.Outputs,
		Checks:       res.Checks,
		BlockReasons: copyStrings(res.BlockReasons),
		AgentReview: artifact.AgentReview{
			Status:   artifact.StatusNotExecuted,
			Summary:  "agent review not executed",
			Findings: []artifact.Finding{},
		},
		TraderReview: artifact.TraderReview{
			Required: pol.RequireTraderReview,
			Status:   traderStatus,
			Comments: []string{},
		},
		Policy:        *pol,
		FinalDecision: artifact.DecisionPending,
	}
}

// copyStrings detaches a string slice. The copy is never nil; these fields
// serialize as arrays on the wire even when empty.
func copyStrings(in []string) []string {
	out := make([]string, 0, len(in))
	return append(out, in...)
}

// BuildSnapshot derives the restricted validation-llm-snapshot.v1 from a run
// artifact: run and strategy ids, the three deterministic status flags, the
// policy, and the evidence-reference allow-list. Violation detail never
// crosses into the snapshot.
func BuildSnapshot(a *artifact.RunArtifact) *artifact.Snapshot {
	refs := make([]artifact.EvidenceRef, 0, 5)
	for _, ref := range a.Outputs.Refs() {
		refs = append(refs, artifact.EvidenceRef{Kind: ref.Kind, Ref: ref.Ref})
	}
	return &artifact.Snapshot{
		Schema:              artifact.SchemaSnapshot,
		RunID:               a.RunID,
		StrategyID:          a.StrategyID,
		RequestedIndicators: copyStrings(a.Inputs.RequestedIndicators),
		Checks: artifact.SnapshotChecks{
			IndicatorFidelity: a.Checks.IndicatorFidelity.Status,
			TradeCoherence:    a.Checks.TradeCoherence.Status,
			MetricConsistency: a.Checks.MetricConsistency.Status,
		},
		Policy:       a.Policy,
		EvidenceRefs: refs,
	}
}
