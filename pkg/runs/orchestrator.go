package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/engine"
	"quantgate-hq/ganymede/pkg/policy"
	"quantgate-hq/ganymede/pkg/review"
	"quantgate-hq/ganymede/pkg/runs/idemstore"
	"quantgate-hq/ganymede/pkg/storage"
)

// Run lifecycle statuses. Creation is synchronous, so a persisted run is
// always completed; queued appears only in the create_run acceptance
// response.
const (
	RunStatusQueued    = "queued"
	RunStatusCompleted = "completed"
)

// Options configures an Orchestrator. Store, Evidence, and References are
// required; everything else has a working default.
type Options struct {
	Store      storage.Store
	Evidence   EvidenceSource
	References ReferenceResolver

	// Reviewer runs the bounded agent-review lane. Defaults to a reviewer
	// with a no-op tool executor.
	Reviewer *review.Reviewer

	// IdemBackend persists idempotency records. Defaults to in-memory.
	IdemBackend idemstore.Backend

	// IdemTTL is how long completed requests stay replayable. Defaults to
	// DefaultIdempotencyTTL.
	IdemTTL time.Duration

	Metrics *Metrics
	Logger  *slog.Logger
}

// Orchestrator owns the validation run lifecycle. All mutable state lives
// behind it; see the package documentation for the ownership and
// idempotency rules.
type Orchestrator struct {
	store    storage.Store
	evidence EvidenceSource
	refs     ReferenceResolver
	reviewer *review.Reviewer
	idem     *idemManager
	metrics  *Metrics
	logger   *slog.Logger

	now   func() time.Time
	newID func() string
}

// NewOrchestrator creates an orchestrator from options.
func NewOrchestrator(opts Options) (*Orchestrator, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if opts.Evidence == nil {
		return nil, fmt.Errorf("evidence source is required")
	}
	if opts.References == nil {
		return nil, fmt.Errorf("reference resolver is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "runs")

	reviewer := opts.Reviewer
	if reviewer == nil {
		reviewer = review.NewReviewer(nil, logger)
	}

	backend := opts.IdemBackend
	if backend == nil {
		backend = idemstore.NewMemoryBackend()
	}

	return &Orchestrator{
		store:    opts.Store,
		evidence: opts.Evidence,
		refs:     opts.References,
		reviewer: reviewer,
		idem:     newIdemManager(backend, opts.IdemTTL),
		metrics:  opts.Metrics,
		logger:   logger,
		now:      time.Now,
		newID:    uuid.NewString,
	}, nil
}

// CreateRun validates a create request, runs the deterministic engine and
// the bounded agent-review lane synchronously, resolves the final decision,
// and persists the canonical artifact. The acceptance response carries the
// contract values queued/pending; GetRun reflects the completed state.
//
// The whole pipeline runs at most once per (tenant, user, key): repeats
// replay the recorded acceptance, payload mismatches are a ConflictError.
func (o *Orchestrator) CreateRun(ctx context.Context, actor *ActorContext, idempotencyKey string, req *CreateRunRequest) (*RunAccepted, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if req == nil || req.RequestID == "" {
		return nil, &StateError{Kind: "request", ID: ""}
	}
	if idempotencyKey == "" {
		idempotencyKey = "create_run:" + req.RequestID
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request: %w", err)
	}
	fingerprint, err := Fingerprint(payload)
	if err != nil {
		return nil, err
	}

	start := o.now()
	raw, replayed, err := o.idem.execute(ctx, idempotencyScope(actor), idempotencyKey, fingerprint, func() ([]byte, error) {
		accepted, execErr := o.createRun(ctx, actor, req)
		if execErr != nil {
			return nil, execErr
		}
		return json.Marshal(accepted)
	})
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			o.metrics.RecordConflict()
		}
		return nil, err
	}
	if replayed {
		o.metrics.RecordReplay()
	} else {
		o.metrics.RecordPipelineDuration(o.now().Sub(start))
	}

	var accepted RunAccepted
	if err := json.Unmarshal(raw, &accepted); err != nil {
		return nil, fmt.Errorf("failed to decode recorded response: %w", err)
	}
	return &accepted, nil
}

// createRun is the effectful half of CreateRun, running under the per-key
// lock. Validation is strictly before evaluation: a bad policy, unknown
// reference, or malformed blob ref fails fast with no partial state.
func (o *Orchestrator) createRun(ctx context.Context, actor *ActorContext, req *CreateRunRequest) (*RunAccepted, error) {
	pol, err := policy.Parse(req.PolicyDocument)
	if err != nil {
		return nil, err
	}
	if err := o.validateReferences(ctx, req); err != nil {
		return nil, err
	}

	ev, err := o.evidence.Resolve(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve evidence: %w", err)
	}

	runID := o.newID()
	createdAt := o.now()

	result := engine.Evaluate(ev, pol)
	for _, reason := range result.BlockReasons {
		o.metrics.RecordCheckFailure(reason)
	}

	art := engine.BuildArtifact(engine.RunContext{
		RunID:             runID,
		RequestID:         req.RequestID,
		TenantID:          actor.TenantID,
		UserID:            actor.OwnerUserID,
		ActorType:         actor.ActorType,
		ActorID:           actor.ActorID,
		StrategyID:        req.StrategyID,
		Prompt:            req.Prompt,
		RequestedDatasets: req.DatasetIDs,
		BacktestReportRef: req.BacktestReportRef,
		Outputs:           req.Outputs,
	}, ev, result, pol, createdAt)

	agent, err := o.reviewer.Review(ctx, engine.BuildSnapshot(art), req.ToolPlan)
	if err != nil {
		return nil, err
	}
	if !agent.Budget.WithinBudget {
		o.metrics.RecordBudgetBreach(agent.Budget.BreachReason)
	}

	art.AgentReview = *agent
	art.FinalDecision = ResolveDecision(result.FinalDecision, agent, &art.TraderReview, pol)

	data, err := json.Marshal(art)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize artifact: %w", err)
	}
	if err := artifact.ValidateRunDocument(data); err != nil {
		return nil, fmt.Errorf("artifact failed schema validation: %w", err)
	}

	scope := storage.Scope{TenantID: actor.TenantID, UserID: actor.OwnerUserID}
	meta := &storage.RunMetadata{
		RunID:      runID,
		RequestID:  req.RequestID,
		StrategyID: req.StrategyID,
		CreatedAt:  createdAt.UTC(),
		Artifact:   data,
	}
	state := &storage.ReviewState{
		AgentReview:   art.AgentReview,
		TraderReview:  art.TraderReview,
		FinalDecision: art.FinalDecision,
		UpdatedAt:     createdAt.UTC(),
	}
	if err := o.store.UpsertRun(ctx, scope, meta, state, req.Outputs.Refs()); err != nil {
		var rollback *storage.RollbackError
		if errors.As(err, &rollback) {
			o.metrics.RecordRollbackFailure()
		}
		return nil, err
	}

	o.metrics.RecordRunCreated(string(pol.Profile))
	o.metrics.RecordDecision(art.FinalDecision)
	o.logger.Info("validation run created",
		"run_id", runID,
		"tenant_id", actor.TenantID,
		"strategy_id", req.StrategyID,
		"profile", string(pol.Profile),
		"final_decision", art.FinalDecision,
	)

	return &RunAccepted{
		RunID:         runID,
		Status:        RunStatusQueued,
		FinalDecision: artifact.DecisionPending,
	}, nil
}

// validateReferences checks strategy/dataset existence and the blob
// reference grammar before any evaluation runs.
func (o *Orchestrator) validateReferences(ctx context.Context, req *CreateRunRequest) error {
	if req.StrategyID == "" {
		return &StateError{Kind: "strategy", ID: req.StrategyID}
	}
	ok, err := o.refs.HasStrategy(ctx, req.StrategyID)
	if err != nil {
		return fmt.Errorf("failed to resolve strategy %q: %w", req.StrategyID, err)
	}
	if !ok {
		return &StateError{Kind: "strategy", ID: req.StrategyID}
	}

	for _, id := range req.DatasetIDs {
		ok, err := o.refs.HasDataset(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to resolve dataset %q: %w", id, err)
		}
		if !ok {
			return &StateError{Kind: "dataset", ID: id}
		}
	}

	if err := artifact.ValidateRef(req.BacktestReportRef); err != nil {
		return err
	}
	for _, ref := range req.Outputs.Refs() {
		if err := artifact.ValidateRef(ref.Ref); err != nil {
			return err
		}
		if ref.SHA256 == "" {
			return &artifact.RefError{Ref: ref.Ref, Reason: "missing checksum"}
		}
	}
	return nil
}

// SubmitReview records an agent or trader review submission and recomputes
// the run's final decision under the fixed resolution rule. The review
// state fields are the only part of a stored run that is ever revised.
func (o *Orchestrator) SubmitReview(ctx context.Context, actor *ActorContext, idempotencyKey string, req *SubmitReviewRequest) (*ReviewAccepted, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if req == nil || req.RunID == "" {
		return nil, &StateError{Kind: "run", ID: ""}
	}
	if req.ReviewerType != ReviewerAgent && req.ReviewerType != ReviewerTrader {
		return nil, &StateError{Kind: "reviewer_type", ID: req.ReviewerType}
	}
	if idempotencyKey == "" {
		idempotencyKey = "submit_review:" + req.RunID + ":" + req.ReviewerType
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize request: %w", err)
	}
	fingerprint, err := Fingerprint(payload)
	if err != nil {
		return nil, err
	}

	raw, replayed, err := o.idem.execute(ctx, idempotencyScope(actor), idempotencyKey, fingerprint, func() ([]byte, error) {
		accepted, execErr := o.submitReview(ctx, actor, req)
		if execErr != nil {
			return nil, execErr
		}
		return json.Marshal(accepted)
	})
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			o.metrics.RecordConflict()
		}
		return nil, err
	}
	if replayed {
		o.metrics.RecordReplay()
	}

	var accepted ReviewAccepted
	if err := json.Unmarshal(raw, &accepted); err != nil {
		return nil, fmt.Errorf("failed to decode recorded response: %w", err)
	}
	return &accepted, nil
}

func (o *Orchestrator) submitReview(ctx context.Context, actor *ActorContext, req *SubmitReviewRequest) (*ReviewAccepted, error) {
	scope := storage.Scope{TenantID: actor.TenantID, UserID: actor.OwnerUserID}
	record, err := o.loadRun(ctx, scope, req.RunID)
	if err != nil {
		return nil, err
	}

	var art artifact.RunArtifact
	if err := json.Unmarshal(record.Meta.Artifact, &art); err != nil {
		return nil, fmt.Errorf("failed to decode stored artifact: %w", err)
	}
	deterministic := artifact.StatusPass
	if len(art.BlockReasons) > 0 {
		deterministic = artifact.StatusFail
	}

	switch req.ReviewerType {
	case ReviewerAgent:
		switch req.Decision {
		case artifact.StatusPass, artifact.StatusConditionalPass, artifact.StatusFail:
		default:
			return nil, &StateError{Kind: "agent_decision", ID: req.Decision}
		}
		findings := make([]artifact.Finding, 0, len(req.Findings))
		for i, f := range req.Findings {
			if err := validateFinding(i, f); err != nil {
				return nil, err
			}
			if f.ID == "" {
				f.ID = o.newID()
			}
			findings = append(findings, f)
		}
		record.Review.AgentReview.Status = req.Decision
		record.Review.AgentReview.Summary = reviewSubmissionSummary(req)
		record.Review.AgentReview.Findings = findings

	case ReviewerTrader:
		comments := req.Comments
		if comments == nil {
			comments = []string{}
		}
		switch req.Decision {
		case TraderDecisionApproved:
			record.Review.TraderReview.Status = artifact.TraderApproved
			record.Review.TraderReview.Decision = artifact.DecisionPass
		case TraderDecisionConditionalPass:
			record.Review.TraderReview.Status = artifact.TraderApproved
			record.Review.TraderReview.Decision = artifact.DecisionConditionalPass
		case TraderDecisionRejected:
			record.Review.TraderReview.Status = artifact.TraderRejected
			record.Review.TraderReview.Decision = ""
		default:
			return nil, &StateError{Kind: "trader_decision", ID: req.Decision}
		}
		record.Review.TraderReview.Comments = comments
	}

	record.Review.FinalDecision = ResolveDecision(deterministic,
		&record.Review.AgentReview, &record.Review.TraderReview, &art.Policy)
	record.Review.UpdatedAt = o.now().UTC()

	if err := o.store.UpsertRun(ctx, scope, &record.Meta, &record.Review, record.BlobRefs); err != nil {
		var rollback *storage.RollbackError
		if errors.As(err, &rollback) {
			o.metrics.RecordRollbackFailure()
		}
		return nil, err
	}

	o.metrics.RecordDecision(record.Review.FinalDecision)
	o.logger.Info("review submitted",
		"run_id", req.RunID,
		"reviewer_type", req.ReviewerType,
		"final_decision", record.Review.FinalDecision,
	)

	return &ReviewAccepted{
		RunID:         req.RunID,
		ReviewerType:  req.ReviewerType,
		FinalDecision: record.Review.FinalDecision,
	}, nil
}

// validateFinding enforces the artifact finding contract on external
// submissions before they reach storage. Persisting an out-of-contract
// finding would make every later artifact read fail schema validation.
func validateFinding(index int, f artifact.Finding) error {
	if f.Priority < 0 || f.Priority > 3 {
		return &FindingError{Index: index, Reason: fmt.Sprintf("priority %d outside [0,3]", f.Priority)}
	}
	if f.Confidence < 0 || f.Confidence > 1 {
		return &FindingError{Index: index, Reason: fmt.Sprintf("confidence %v outside [0,1]", f.Confidence)}
	}
	if f.Summary == "" {
		return &FindingError{Index: index, Reason: "summary is empty"}
	}
	if len(f.EvidenceRefs) == 0 {
		return &FindingError{Index: index, Reason: "no evidence references"}
	}
	return nil
}

// reviewSubmissionSummary renders the agent review summary for an external
// submission, folding any comments into one line.
func reviewSubmissionSummary(req *SubmitReviewRequest) string {
	summary := fmt.Sprintf("agent review %s with %d finding(s)", req.Decision, len(req.Findings))
	if len(req.Comments) > 0 {
		summary += ": " + req.Comments[0]
	}
	return summary
}

// GetRun returns the lifecycle status and current final decision of a run.
func (o *Orchestrator) GetRun(ctx context.Context, actor *ActorContext, runID string) (*RunStatus, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	scope := storage.Scope{TenantID: actor.TenantID, UserID: actor.OwnerUserID}
	record, err := o.loadRun(ctx, scope, runID)
	if err != nil {
		return nil, err
	}
	return &RunStatus{
		RunID:         record.Meta.RunID,
		Status:        RunStatusCompleted,
		FinalDecision: record.Review.FinalDecision,
	}, nil
}

// GetRunArtifact returns the canonical artifact JSON with the current
// review state overlaid. The result is always schema-valid; the caller
// never observes a partial artifact.
func (o *Orchestrator) GetRunArtifact(ctx context.Context, actor *ActorContext, runID string) ([]byte, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	scope := storage.Scope{TenantID: actor.TenantID, UserID: actor.OwnerUserID}
	record, err := o.loadRun(ctx, scope, runID)
	if err != nil {
		return nil, err
	}

	var art artifact.RunArtifact
	if err := json.Unmarshal(record.Meta.Artifact, &art); err != nil {
		return nil, fmt.Errorf("failed to decode stored artifact: %w", err)
	}
	art.AgentReview = record.Review.AgentReview
	art.TraderReview = record.Review.TraderReview
	art.FinalDecision = record.Review.FinalDecision

	data, err := json.Marshal(&art)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize artifact: %w", err)
	}
	if err := artifact.ValidateRunDocument(data); err != nil {
		return nil, fmt.Errorf("artifact failed schema validation: %w", err)
	}
	return data, nil
}

// CreateBaseline pins a run's current final decision as a regression
// comparison point.
func (o *Orchestrator) CreateBaseline(ctx context.Context, actor *ActorContext, idempotencyKey, name, runID string) (*BaselineCreated, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if runID == "" {
		return nil, &StateError{Kind: "run", ID: runID}
	}
	if name == "" {
		return nil, &StateError{Kind: "baseline", ID: name}
	}
	if idempotencyKey == "" {
		idempotencyKey = "create_baseline:" + runID + ":" + name
	}

	fingerprint, err := Fingerprint([]byte(fmt.Sprintf(`{"name":%q,"runId":%q}`, name, runID)))
	if err != nil {
		return nil, err
	}

	raw, replayed, err := o.idem.execute(ctx, idempotencyScope(actor), idempotencyKey, fingerprint, func() ([]byte, error) {
		created, execErr := o.createBaseline(ctx, actor, name, runID)
		if execErr != nil {
			return nil, execErr
		}
		return json.Marshal(created)
	})
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			o.metrics.RecordConflict()
		}
		return nil, err
	}
	if replayed {
		o.metrics.RecordReplay()
	}

	var created BaselineCreated
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, fmt.Errorf("failed to decode recorded response: %w", err)
	}
	return &created, nil
}

func (o *Orchestrator) createBaseline(ctx context.Context, actor *ActorContext, name, runID string) (*BaselineCreated, error) {
	scope := storage.Scope{TenantID: actor.TenantID, UserID: actor.OwnerUserID}
	record, err := o.loadRun(ctx, scope, runID)
	if err != nil {
		return nil, err
	}

	baseline := &storage.Baseline{
		BaselineID:    o.newID(),
		Name:          name,
		RunID:         runID,
		FinalDecision: record.Review.FinalDecision,
		CreatedAt:     o.now().UTC(),
	}
	if err := o.store.UpsertBaseline(ctx, scope, baseline); err != nil {
		return nil, err
	}

	o.logger.Info("baseline created",
		"baseline_id", baseline.BaselineID,
		"run_id", runID,
		"final_decision", baseline.FinalDecision,
	)
	return &BaselineCreated{
		BaselineID:    baseline.BaselineID,
		Name:          name,
		RunID:         runID,
		FinalDecision: baseline.FinalDecision,
	}, nil
}

// ReplayRegression compares a candidate run's final decision against a
// baseline and records the classified outcome.
func (o *Orchestrator) ReplayRegression(ctx context.Context, actor *ActorContext, idempotencyKey, baselineID, candidateRunID string) (*ReplayResult, error) {
	if err := validateActor(actor); err != nil {
		return nil, err
	}
	if baselineID == "" {
		return nil, &StateError{Kind: "baseline", ID: baselineID}
	}
	if candidateRunID == "" {
		return nil, &StateError{Kind: "run", ID: candidateRunID}
	}
	if idempotencyKey == "" {
		idempotencyKey = "replay_regression:" + baselineID + ":" + candidateRunID
	}

	fingerprint, err := Fingerprint([]byte(fmt.Sprintf(`{"baselineId":%q,"candidateRunId":%q}`, baselineID, candidateRunID)))
	if err != nil {
		return nil, err
	}

	raw, replayed, err := o.idem.execute(ctx, idempotencyScope(actor), idempotencyKey, fingerprint, func() ([]byte, error) {
		result, execErr := o.replayRegression(ctx, actor, baselineID, candidateRunID)
		if execErr != nil {
			return nil, execErr
		}
		return json.Marshal(result)
	})
	if err != nil {
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			o.metrics.RecordConflict()
		}
		return nil, err
	}
	if replayed {
		o.metrics.RecordReplay()
	}

	var result ReplayResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode recorded response: %w", err)
	}
	return &result, nil
}

func (o *Orchestrator) replayRegression(ctx context.Context, actor *ActorContext, baselineID, candidateRunID string) (*ReplayResult, error) {
	scope := storage.Scope{TenantID: actor.TenantID, UserID: actor.OwnerUserID}

	baseline, err := o.store.GetBaseline(ctx, scope, baselineID)
	if err != nil {
		var notFound *storage.NotFoundError
		if errors.As(err, &notFound) {
			return nil, &StateError{Kind: "baseline", ID: baselineID}
		}
		return nil, err
	}
	candidate, err := o.loadRun(ctx, scope, candidateRunID)
	if err != nil {
		return nil, err
	}

	replay := &storage.Replay{
		ReplayID:       o.newID(),
		BaselineID:     baselineID,
		CandidateRunID: candidateRunID,
		Outcome:        ClassifyReplay(baseline.FinalDecision, candidate.Review.FinalDecision),
		CreatedAt:      o.now().UTC(),
	}
	if err := o.store.UpsertReplay(ctx, scope, replay); err != nil {
		return nil, err
	}

	o.logger.Info("regression replay recorded",
		"replay_id", replay.ReplayID,
		"baseline_id", baselineID,
		"candidate_run_id", candidateRunID,
		"outcome", replay.Outcome,
	)
	return &ReplayResult{
		ReplayID:       replay.ReplayID,
		BaselineID:     baselineID,
		CandidateRunID: candidateRunID,
		Outcome:        replay.Outcome,
	}, nil
}

// ClassifyReplay classifies a candidate decision against a baseline
// decision: unresolved decisions are unknown, a match passes, a
// conditional_pass candidate degrades to conditional_pass, anything else
// is a regression fail.
func ClassifyReplay(baseline, candidate string) string {
	if baseline == "" || baseline == artifact.DecisionPending ||
		candidate == "" || candidate == artifact.DecisionPending {
		return "unknown"
	}
	if candidate == baseline {
		return artifact.DecisionPass
	}
	if candidate == artifact.DecisionConditionalPass {
		return artifact.DecisionConditionalPass
	}
	return artifact.DecisionFail
}

// loadRun fetches a run in scope, mapping storage not-found onto the
// caller-facing state error.
func (o *Orchestrator) loadRun(ctx context.Context, scope storage.Scope, runID string) (*storage.RunRecord, error) {
	record, err := o.store.GetRun(ctx, scope, runID)
	if err != nil {
		var notFound *storage.NotFoundError
		if errors.As(err, &notFound) {
			return nil, &StateError{Kind: "run", ID: runID}
		}
		return nil, err
	}
	return record, nil
}

// validateActor rejects incomplete actor contexts before any state is
// touched.
func validateActor(actor *ActorContext) error {
	if actor == nil || actor.TenantID == "" || actor.OwnerUserID == "" {
		return &StateError{Kind: "actor", ID: ""}
	}
	if actor.ActorType != ActorUser && actor.ActorType != ActorBot {
		return &StateError{Kind: "actor", ID: actor.ActorType}
	}
	return nil
}
