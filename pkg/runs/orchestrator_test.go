package runs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/engine"
	"quantgate-hq/ganymede/pkg/policy"
	"quantgate-hq/ganymede/pkg/storage"
)

// stubEvidence resolves every request to a fixed evidence payload.
type stubEvidence struct {
	evidence *engine.Evidence
	err      error
}

func (s *stubEvidence) Resolve(ctx context.Context, req *CreateRunRequest) (*engine.Evidence, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.evidence, nil
}

// stubRefs answers existence checks from fixed sets.
type stubRefs struct {
	strategies map[string]bool
	datasets   map[string]bool
}

func (s *stubRefs) HasStrategy(ctx context.Context, strategyID string) (bool, error) {
	return s.strategies[strategyID], nil
}

func (s *stubRefs) HasDataset(ctx context.Context, datasetID string) (bool, error) {
	return s.datasets[datasetID], nil
}

func testActor() *ActorContext {
	return &ActorContext{
		TenantID:    "tenant-1",
		OwnerUserID: "user-1",
		ActorType:   ActorUser,
		ActorID:     "user-1",
	}
}

// passingEvidence clears all four deterministic checks.
func passingEvidence() *engine.Evidence {
	return &engine.Evidence{
		RequestedIndicators: []string{"sma_20"},
		RenderedIndicators:  []string{"sma_20"},
		Trades: []engine.Trade{
			{TradeID: "t-1", OrderID: "o-1", Symbol: "AAPL", Quantity: 10, Price: 187.5},
		},
		ExecutionLogs: []engine.ExecutionEvent{
			{OrderID: "o-1", State: "created"},
			{OrderID: "o-1", State: "accepted"},
			{OrderID: "o-1", State: "filled"},
		},
		ReportedMetrics:   map[string]any{"sharpe": 1.5},
		RecomputedMetrics: map[string]any{"sharpe": 1.5},
		RequestedDatasets: []string{"ds-1"},
		Lineage: &engine.LineagePayload{
			Datasets: []engine.LineageEntry{{DatasetID: "ds-1", SourceRef: "s3://datasets/ds-1"}},
		},
	}
}

// failingEvidence forces a trade coherence failure.
func failingEvidence() *engine.Evidence {
	ev := passingEvidence()
	ev.ExecutionLogs = []engine.ExecutionEvent{
		{OrderID: "o-1", State: "created"},
		{OrderID: "o-1", State: "filled"},
	}
	return ev
}

func policyDocument(requireTrader bool) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(`{
		"profile": "STANDARD",
		"blockMergeOnFail": true,
		"blockReleaseOnFail": true,
		"blockMergeOnAgentFail": false,
		"blockReleaseOnAgentFail": false,
		"requireTraderReview": %t,
		"hardFailOnMissingIndicators": true,
		"failClosedOnEvidenceUnavailable": true
	}`, requireTrader))
}

func blobRef(kind, path string) artifact.BlobRef {
	return artifact.BlobRef{
		Kind:   kind,
		Ref:    "s3://blobs/" + path,
		SHA256: artifact.Checksum([]byte(path)),
	}
}

func testRequest(requestID string, requireTrader bool) *CreateRunRequest {
	return &CreateRunRequest{
		RequestID:           requestID,
		StrategyID:          "strat-1",
		Prompt:              "momentum crossover",
		RequestedIndicators: []string{"sma_20"},
		DatasetIDs:          []string{"ds-1"},
		BacktestReportRef:   "s3://blobs/report",
		Outputs: artifact.RunOutputs{
			StrategyCode:   blobRef(artifact.KindStrategyCode, "code"),
			BacktestReport: blobRef(artifact.KindBacktestReport, "report"),
			Trades:         blobRef(artifact.KindTrades, "trades"),
			ExecutionLogs:  blobRef(artifact.KindExecutionLogs, "logs"),
			ChartPayload:   blobRef(artifact.KindChartPayload, "chart"),
		},
		PolicyDocument: policyDocument(requireTrader),
	}
}

func testOrchestrator(t *testing.T, ev *engine.Evidence) *Orchestrator {
	t.Helper()
	o, err := NewOrchestrator(Options{
		Store:    storage.NewMemoryStore(),
		Evidence: &stubEvidence{evidence: ev},
		References: &stubRefs{
			strategies: map[string]bool{"strat-1": true},
			datasets:   map[string]bool{"ds-1": true},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}
	return o
}

func TestNewOrchestrator_RequiredPorts(t *testing.T) {
	refs := &stubRefs{}
	ev := &stubEvidence{}
	store := storage.NewMemoryStore()

	tests := []struct {
		name string
		opts Options
	}{
		{"missing store", Options{Evidence: ev, References: refs}},
		{"missing evidence", Options{Store: store, References: refs}},
		{"missing references", Options{Store: store, Evidence: ev}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewOrchestrator(tt.opts); err == nil {
				t.Fatal("expected construction to fail")
			}
		})
	}
}

func TestCreateRun_AcceptanceContract(t *testing.T) {
	o := testOrchestrator(t, passingEvidence())
	ctx := context.Background()

	accepted, err := o.CreateRun(ctx, testActor(), "", testRequest("req-1", false))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if accepted.RunID == "" {
		t.Error("expected a run id")
	}
	if accepted.Status != RunStatusQueued {
		t.Errorf("expected queued acceptance, got %s", accepted.Status)
	}
	if accepted.FinalDecision != artifact.DecisionPending {
		t.Errorf("expected pending acceptance decision, got %s", accepted.FinalDecision)
	}

	status, err := o.GetRun(ctx, testActor(), accepted.RunID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if status.Status != RunStatusCompleted {
		t.Errorf("expected completed, got %s", status.Status)
	}
	if status.FinalDecision != artifact.DecisionPass {
		t.Errorf("expected pass, got %s", status.FinalDecision)
	}
}

func TestCreateRun_DeterministicFailureBlocks(t *testing.T) {
	o := testOrchestrator(t, failingEvidence())
	ctx := context.Background()

	accepted, err := o.CreateRun(ctx, testActor(), "", testRequest("req-1", false))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	status, err := o.GetRun(ctx, testActor(), accepted.RunID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if status.FinalDecision != artifact.DecisionFail {
		t.Errorf("expected fail, got %s", status.FinalDecision)
	}
}

func TestCreateRun_IdempotentReplay(t *testing.T) {
	o := testOrchestrator(t, passingEvidence())
	ctx := context.Background()

	first, err := o.CreateRun(ctx, testActor(), "key-1", testRequest("req-1", false))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	second, err := o.CreateRun(ctx, testActor(), "key-1", testRequest("req-1", false))
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if second.RunID != first.RunID {
		t.Errorf("expected the recorded run id %s, got %s", first.RunID, second.RunID)
	}
}

func TestCreateRun_PayloadMismatchConflicts(t *testing.T) {
	o := testOrchestrator(t, passingEvidence())
	ctx := context.Background()

	if _, err := o.CreateRun(ctx, testActor(), "key-1", testRequest("req-1", false)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	other := testRequest("req-1", false)
	other.Prompt = "mean reversion"
	_, err := o.CreateRun(ctx, testActor(), "key-1", other)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestCreateRun_ValidationFailures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*CreateRunRequest)
		check  func(t *testing.T, err error)
	}{
		{
			name:   "unknown strategy",
			mutate: func(r *CreateRunRequest) { r.StrategyID = "strat-404" },
			check: func(t *testing.T, err error) {
				var state *StateError
				if !errors.As(err, &state) || state.Kind != "strategy" {
					t.Fatalf("expected strategy StateError, got %v", err)
				}
			},
		},
		{
			name:   "unknown dataset",
			mutate: func(r *CreateRunRequest) { r.DatasetIDs = []string{"ds-404"} },
			check: func(t *testing.T, err error) {
				var state *StateError
				if !errors.As(err, &state) || state.Kind != "dataset" {
					t.Fatalf("expected dataset StateError, got %v", err)
				}
			},
		},
		{
			name:   "malformed backtest ref",
			mutate: func(r *CreateRunRequest) { r.BacktestReportRef = "not a ref" },
			check: func(t *testing.T, err error) {
				var refErr *artifact.RefError
				if !errors.As(err, &refErr) {
					t.Fatalf("expected RefError, got %v", err)
				}
			},
		},
		{
			name:   "output missing checksum",
			mutate: func(r *CreateRunRequest) { r.Outputs.Trades.SHA256 = "" },
			check: func(t *testing.T, err error) {
				var refErr *artifact.RefError
				if !errors.As(err, &refErr) {
					t.Fatalf("expected RefError, got %v", err)
				}
			},
		},
		{
			name:   "invalid policy",
			mutate: func(r *CreateRunRequest) { r.PolicyDocument = json.RawMessage(`{"profile": "TURBO"}`) },
			check: func(t *testing.T, err error) {
				var invalid *policy.InvalidError
				if !errors.As(err, &invalid) {
					t.Fatalf("expected policy InvalidError, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := testOrchestrator(t, passingEvidence())
			req := testRequest("req-1", false)
			tt.mutate(req)

			_, err := o.CreateRun(context.Background(), testActor(), "", req)
			if err == nil {
				t.Fatal("expected create to fail")
			}
			tt.check(t, err)
		})
	}
}

func TestCreateRun_RejectsInvalidActor(t *testing.T) {
	o := testOrchestrator(t, passingEvidence())
	ctx := context.Background()
	req := testRequest("req-1", false)

	actors := []*ActorContext{
		nil,
		{OwnerUserID: "user-1", ActorType: ActorUser},
		{TenantID: "tenant-1", ActorType: ActorUser},
		{TenantID: "tenant-1", OwnerUserID: "user-1", ActorType: "service"},
	}
	for _, actor := range actors {
		_, err := o.CreateRun(ctx, actor, "", req)
		var state *StateError
		if !errors.As(err, &state) || state.Kind != "actor" {
			t.Errorf("actor %+v: expected actor StateError, got %v", actor, err)
		}
	}
}

func TestCreateRun_EvidenceResolutionFailureFailsClosed(t *testing.T) {
	o, err := NewOrchestrator(Options{
		Store:    storage.NewMemoryStore(),
		Evidence: &stubEvidence{err: errors.New("backtest service down")},
		References: &stubRefs{
			strategies: map[string]bool{"strat-1": true},
			datasets:   map[string]bool{"ds-1": true},
		},
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err != nil {
		t.Fatalf("failed to build orchestrator: %v", err)
	}

	if _, err := o.CreateRun(context.Background(), testActor(), "", testRequest("req-1", false)); err == nil {
		t.Fatal("expected unresolved evidence to fail the request")
	}
}

func TestSubmitReview_TraderApprovalCompletesRun(t *testing.T) {
	o := testOrchestrator(t, passingEvidence())
	ctx := context.Background()

	accepted, err := o.CreateRun(ctx, testActor(), "", testRequest("req-1", true))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	// A pending required trader review holds the run at conditional_pass.
	status, err := o.GetRun(ctx, testActor(), accepted.RunID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if status.FinalDecision != artifact.DecisionConditionalPass {
		t.Fatalf("expected conditional_pass while pending, got %s", status.FinalDecision)
	}

	result, err := o.SubmitReview(ctx, testActor(), "", &SubmitReviewRequest{
		RunID:        accepted.RunID,
		ReviewerType: ReviewerTrader,
		Decision:     TraderDecisionApproved,
		Comments:     []string{"lifecycle and drift both clean"},
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.FinalDecision != artifact.DecisionPass {
		t.Errorf("expected pass after approval, got %s", result.FinalDecision)
	}
}

func TestSubmitReview_TraderRejectionFails(t *testing.T) {
	o := testOrchestrator(t, passingEvidence())
	ctx := context.Background()

	accepted, err := o.CreateRun(ctx, testActor(), "", testRequest("req-1", true))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	result, err := o.SubmitReview(ctx, testActor(), "", &SubmitReviewRequest{
		RunID:        accepted.RunID,
		ReviewerType: ReviewerTrader,
		Decision:     TraderDecisionRejected,
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if result.FinalDecision != artifact.DecisionFail {
		t.Errorf("expected fail after rejection, got %s", result.FinalDecision)
	}
}

func TestSubmitReview_AgentFailDegradesWhenUngated(t *testing.T) {
	o := testOrchestrator(t, passingEvidence())
	ctx := context.Background()

	accepted, err := o.CreateRun(ctx, testActor(), "", testRequest("req-1", false))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	result, err := o.SubmitReview(ctx, testActor(), "", &SubmitReviewRequest{
		RunID:        accepted.RunID,
		ReviewerType: ReviewerAgent,
		Decision:     artifact.StatusFail,
		Findings: []artifact.Finding{
			{Priority: 1, Confidence: 0.9, Summary: "lookahead bias in signal window", EvidenceRefs: []string{"s3://blobs/code"}},
		},
	})
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	// Agent blocking gates are off, so the fail degrades.
	if result.FinalDecision != artifact.DecisionConditionalPass {
		t.Errorf("expected conditional_pass, got %s", result.FinalDecision)
	}

	// The submitted finding had no id; the overlaid artifact must still be
	// schema-valid, which requires one.
	data, err := o.GetRunArtifact(ctx, testActor(), accepted.RunID)
	if err != nil {
		t.Fatalf("get artifact failed: %v", err)
	}
	var art artifact.RunArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(art.AgentReview.Findings) != 1 || art.AgentReview.Findings[0].ID == "" {
		t.Errorf("expected one finding with an assigned id, got %+v", art.AgentReview.Findings)
	}
}

func TestSubmitReview_Validation(t *testing.T) {
	o := testOrchestrator(t, passingEvidence())
	ctx := context.Background()

	accepted, err := o.CreateRun(ctx, testActor(), "", testRequest("req-1", false))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	tests := []struct {
		name string
		req  *SubmitReviewRequest
		kind string
	}{
		{"unknown run", &SubmitReviewRequest{RunID: "run-404", ReviewerType: ReviewerTrader, Decision: TraderDecisionApproved}, "run"},
		{"bad reviewer type", &SubmitReviewRequest{RunID: accepted.RunID, ReviewerType: "auditor", Decision: "pass"}, "reviewer_type"},
		{"bad trader decision", &SubmitReviewRequest{RunID: accepted.RunID, ReviewerType: ReviewerTrader, Decision: "maybe"}, "trader_decision"},
		{"bad agent decision", &SubmitReviewRequest{RunID: accepted.RunID, ReviewerType: ReviewerAgent, Decision: "not_executed"}, "agent_decision"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.SubmitReview(ctx, testActor(), "", tt.req)
			var state *StateError
			if !errors.As(err, &state) || state.Kind != tt.kind {
				t.Fatalf("expected %s StateError, got %v", tt.kind, err)
			}
		})
	}
}

func TestGetRunArtifact_SchemaValidOverlay(t *testing.T) {
	o := testOrchestrator(t, passingEvidence())
	ctx := context.Background()

	accepted, err := o.CreateRun(ctx, testActor(), "", testRequest("req-1", false))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	data, err := o.GetRunArtifact(ctx, testActor(), accepted.RunID)
	if err != nil {
		t.Fatalf("get artifact failed: %v", err)
	}
	if err := artifact.ValidateRunDocument(data); err != nil {
		t.Fatalf("returned artifact is not schema-valid: %v", err)
	}

	var art artifact.RunArtifact
	if err := json.Unmarshal(data, &art); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if art.RunID != accepted.RunID {
		t.Errorf("unexpected run id %s", art.RunID)
	}
	if art.FinalDecision != artifact.DecisionPass {
		t.Errorf("expected pass overlay, got %s", art.FinalDecision)
	}
}

func TestCreateRun_EmptyCollectionsSerializeAsArrays(t *testing.T) {
	o := testOrchestrator(t, passingEvidence())
	ctx := context.Background()

	// A fully passing run has no block reasons, no violations, and no
	// findings; all of them must still serialize as arrays, not null, or
	// the artifact fails the wire contract at creation time.
	accepted, err := o.CreateRun(ctx, testActor(), "", testRequest("req-1", false))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	data, err := o.GetRunArtifact(ctx, testActor(), accepted.RunID)
	if err != nil {
		t.Fatalf("get artifact failed: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if _, ok := doc["blockReasons"].([]any); !ok {
		t.Errorf("expected blockReasons to be an array, got %T", doc["blockReasons"])
	}
	checks, ok := doc["checks"].(map[string]any)
	if !ok {
		t.Fatalf("expected a checks object, got %T", doc["checks"])
	}
	for _, name := range []string{"indicatorFidelity", "tradeCoherence", "metricConsistency", "lineageCompleteness"} {
		check, ok := checks[name].(map[string]any)
		if !ok {
			t.Fatalf("expected a %s object, got %T", name, checks[name])
		}
		if _, ok := check["violations"].([]any); !ok {
			t.Errorf("expected %s violations to be an array, got %T", name, check["violations"])
		}
	}
	agent, ok := doc["agentReview"].(map[string]any)
	if !ok {
		t.Fatalf("expected an agentReview object, got %T", doc["agentReview"])
	}
	if _, ok := agent["findings"].([]any); !ok {
		t.Errorf("expected findings to be an array, got %T", agent["findings"])
	}
}

func TestSubmitReview_RejectsOutOfContractFindings(t *testing.T) {
	o := testOrchestrator(t, passingEvidence())
	ctx := context.Background()

	accepted, err := o.CreateRun(ctx, testActor(), "", testRequest("req-1", false))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	valid := artifact.Finding{
		Priority:     2,
		Confidence:   0.8,
		Summary:      "drift near tolerance",
		EvidenceRefs: []string{"s3://blobs/report"},
	}
	tests := []struct {
		name   string
		mutate func(*artifact.Finding)
	}{
		{"priority above range", func(f *artifact.Finding) { f.Priority = 4 }},
		{"priority below range", func(f *artifact.Finding) { f.Priority = -1 }},
		{"confidence above range", func(f *artifact.Finding) { f.Confidence = 1.5 }},
		{"confidence below range", func(f *artifact.Finding) { f.Confidence = -0.1 }},
		{"empty summary", func(f *artifact.Finding) { f.Summary = "" }},
		{"no evidence refs", func(f *artifact.Finding) { f.EvidenceRefs = nil }},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := valid
			tt.mutate(&bad)
			_, err := o.SubmitReview(ctx, testActor(), fmt.Sprintf("key-%d", i), &SubmitReviewRequest{
				RunID:        accepted.RunID,
				ReviewerType: ReviewerAgent,
				Decision:     artifact.StatusConditionalPass,
				Findings:     []artifact.Finding{bad},
			})
			var findingErr *FindingError
			if !errors.As(err, &findingErr) {
				t.Fatalf("expected FindingError, got %v", err)
			}
		})
	}

	// Rejected submissions must leave the stored run readable and intact.
	data, err := o.GetRunArtifact(ctx, testActor(), accepted.RunID)
	if err != nil {
		t.Fatalf("get artifact failed: %v", err)
	}
	if err := artifact.ValidateRunDocument(data); err != nil {
		t.Fatalf("stored artifact is no longer schema-valid: %v", err)
	}
}

func TestGetRun_ScopeIsolation(t *testing.T) {
	o := testOrchestrator(t, passingEvidence())
	ctx := context.Background()

	accepted, err := o.CreateRun(ctx, testActor(), "", testRequest("req-1", false))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	other := testActor()
	other.TenantID = "tenant-2"
	_, err = o.GetRun(ctx, other, accepted.RunID)
	var state *StateError
	if !errors.As(err, &state) || state.Kind != "run" {
		t.Fatalf("expected run StateError across tenants, got %v", err)
	}
}

func TestBaselineAndReplay_Flow(t *testing.T) {
	o := testOrchestrator(t, passingEvidence())
	ctx := context.Background()

	accepted, err := o.CreateRun(ctx, testActor(), "", testRequest("req-1", false))
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}

	baseline, err := o.CreateBaseline(ctx, testActor(), "", "v1.4-release", accepted.RunID)
	if err != nil {
		t.Fatalf("create baseline failed: %v", err)
	}
	if baseline.FinalDecision != artifact.DecisionPass {
		t.Errorf("expected the baseline to pin pass, got %s", baseline.FinalDecision)
	}

	// A matching candidate passes the replay.
	result, err := o.ReplayRegression(ctx, testActor(), "", baseline.BaselineID, accepted.RunID)
	if err != nil {
		t.Fatalf("replay failed: %v", err)
	}
	if result.Outcome != artifact.DecisionPass {
		t.Errorf("expected pass outcome, got %s", result.Outcome)
	}

	// Replays are idempotent per (baseline, candidate).
	again, err := o.ReplayRegression(ctx, testActor(), "", baseline.BaselineID, accepted.RunID)
	if err != nil {
		t.Fatalf("replay repeat failed: %v", err)
	}
	if again.ReplayID != result.ReplayID {
		t.Errorf("expected the recorded replay %s, got %s", result.ReplayID, again.ReplayID)
	}

	_, err = o.ReplayRegression(ctx, testActor(), "", "base-404", accepted.RunID)
	var state *StateError
	if !errors.As(err, &state) || state.Kind != "baseline" {
		t.Fatalf("expected baseline StateError, got %v", err)
	}
}

func TestClassifyReplay(t *testing.T) {
	tests := []struct {
		baseline  string
		candidate string
		want      string
	}{
		{"", "pass", "unknown"},
		{"pass", "pending", "unknown"},
		{"pending", "pass", "unknown"},
		{"pass", "pass", "pass"},
		{"fail", "fail", "pass"},
		{"pass", "conditional_pass", "conditional_pass"},
		{"pass", "fail", "fail"},
		{"conditional_pass", "fail", "fail"},
	}
	for _, tt := range tests {
		if got := ClassifyReplay(tt.baseline, tt.candidate); got != tt.want {
			t.Errorf("ClassifyReplay(%q, %q) = %q, want %q", tt.baseline, tt.candidate, got, tt.want)
		}
	}
}
