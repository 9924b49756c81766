package engine

import (
	"encoding/json"
	"strings"
	"testing"

	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/policy"
)

// testPolicy returns a valid policy with an optional tolerance override.
func testPolicy(profile policy.Profile, tolerancePct *float64) *policy.ReviewPolicy {
	return &policy.ReviewPolicy{
		Profile:                         profile,
		BlockMergeOnFail:                true,
		BlockReleaseOnFail:              true,
		HardFailOnMissingIndicators:     true,
		FailClosedOnEvidenceUnavailable: true,
		MetricDriftTolerancePct:         tolerancePct,
	}
}

// passingEvidence returns evidence that clears all four checks.
func passingEvidence() *Evidence {
	return &Evidence{
		RequestedIndicators: []string{"SMA-20", "RSI"},
		RenderedIndicators:  []string{"sma_20", "rsi"},
		Trades: []Trade{
			{TradeID: "t-1", OrderID: "o-1", Symbol: "AAPL", Quantity: 10, Price: 187.5},
		},
		ExecutionLogs: []ExecutionEvent{
			{OrderID: "o-1", State: "created"},
			{OrderID: "o-1", State: "accepted"},
			{OrderID: "o-1", State: "filled"},
		},
		ReportedMetrics:   map[string]any{"sharpe": 1.5, "max_drawdown": -0.12},
		RecomputedMetrics: map[string]any{"sharpe": 1.5, "max_drawdown": -0.12},
		RequestedDatasets: []string{"ds-1"},
		Lineage: &LineagePayload{
			Datasets: []LineageEntry{{DatasetID: "ds-1", SourceRef: "s3://datasets/ds-1"}},
		},
	}
}

func TestEvaluate_AllChecksPass(t *testing.T) {
	res := Evaluate(passingEvidence(), testPolicy(policy.ProfileStandard, nil))

	if res.FinalDecision != artifact.StatusPass {
		t.Fatalf("expected pass, got %s (reasons: %v)", res.FinalDecision, res.BlockReasons)
	}
	if len(res.BlockReasons) != 0 {
		t.Errorf("expected no block reasons, got %v", res.BlockReasons)
	}
}

func TestEvaluate_PassingResultSerializesWithoutNulls(t *testing.T) {
	res := Evaluate(passingEvidence(), testPolicy(policy.ProfileStandard, nil))

	// Empty violation and reason lists must stay arrays on the wire; a
	// null in any of these fields breaks the run document contract.
	data, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if strings.Contains(string(data), "null") {
		t.Errorf("expected no null collections in %s", data)
	}
	if res.BlockReasons == nil {
		t.Error("expected block reasons to be an empty slice, not nil")
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	pol := testPolicy(policy.ProfileStandard, nil)
	ev := passingEvidence()
	ev.RenderedIndicators = nil // force an indicator failure for non-trivial output
	ev.ReportedMetrics["sharpe"] = 1.6

	first, err := json.Marshal(Evaluate(ev, pol))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	second, err := json.Marshal(Evaluate(ev, pol))
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}
	if string(first) != string(second) {
		t.Errorf("expected byte-identical results:\n%s\n%s", first, second)
	}
}

func TestEvaluate_IndicatorFailureIsAbsolute(t *testing.T) {
	ev := passingEvidence()
	ev.RenderedIndicators = []string{"rsi"}
	ev.ChartPayload = nil

	res := Evaluate(ev, testPolicy(policy.ProfileStandard, nil))

	if res.Checks.IndicatorFidelity.Status != artifact.StatusFail {
		t.Fatal("expected indicator fidelity to fail")
	}
	if res.FinalDecision != artifact.StatusFail {
		t.Errorf("expected final fail, got %s", res.FinalDecision)
	}
	if res.Checks.IndicatorFidelity.Violations[0] != "indicator_missing:sma20" {
		t.Errorf("unexpected violation: %v", res.Checks.IndicatorFidelity.Violations)
	}
}

func TestEvaluate_IndicatorNormalization(t *testing.T) {
	ev := passingEvidence()
	ev.RequestedIndicators = []string{"SMA-20"}
	ev.RenderedIndicators = nil
	ev.ChartPayload = &ChartPayload{
		Panes: []ChartPane{{Name: "main", Indicators: []string{"sma_20"}}},
	}

	res := Evaluate(ev, testPolicy(policy.ProfileStandard, nil))
	if res.Checks.IndicatorFidelity.Status != artifact.StatusPass {
		t.Errorf("expected cosmetic name difference to pass, got %v",
			res.Checks.IndicatorFidelity.Violations)
	}
}

func TestEvaluate_ToleranceSensitivity(t *testing.T) {
	// Reported 1.50 vs recomputed 1.49 is ~0.67% drift: inside 1.0%,
	// outside 0.5%.
	ev := passingEvidence()
	ev.ReportedMetrics = map[string]any{"sharpe": 1.50}
	ev.RecomputedMetrics = map[string]any{"sharpe": 1.49}

	loose := 1.0
	res := Evaluate(ev, testPolicy(policy.ProfileStandard, &loose))
	if res.Checks.MetricConsistency.Status != artifact.StatusPass {
		t.Errorf("expected pass under 1.0%% tolerance, got %v",
			res.Checks.MetricConsistency.Violations)
	}

	tight := 0.5
	res = Evaluate(ev, testPolicy(policy.ProfileStandard, &tight))
	if res.Checks.MetricConsistency.Status != artifact.StatusFail {
		t.Error("expected fail under 0.5% tolerance")
	}
	if res.FinalDecision != artifact.StatusFail {
		t.Errorf("expected final fail, got %s", res.FinalDecision)
	}
}

func TestEvaluate_MetricStructuralMismatch(t *testing.T) {
	ev := passingEvidence()
	ev.ReportedMetrics = map[string]any{"sharpe": "high"}
	ev.RecomputedMetrics = map[string]any{"sharpe": 1.5}

	res := Evaluate(ev, testPolicy(policy.ProfileStandard, nil))
	if res.Checks.MetricConsistency.Status != artifact.StatusFail {
		t.Fatal("expected structural mismatch to fail")
	}
	if res.Checks.MetricConsistency.Violations[0] != "metric_structural_mismatch:sharpe" {
		t.Errorf("unexpected violation: %v", res.Checks.MetricConsistency.Violations)
	}
}

func TestEvaluate_MetricDriftUndefined(t *testing.T) {
	ev := passingEvidence()
	ev.ReportedMetrics = map[string]any{"sharpe": 1.5}
	ev.RecomputedMetrics = map[string]any{"sharpe": 0.0}

	res := Evaluate(ev, testPolicy(policy.ProfileStandard, nil))
	if res.Checks.MetricConsistency.Status != artifact.StatusFail {
		t.Fatal("expected zero-recomputed comparison to fail")
	}
	if res.Checks.MetricConsistency.Violations[0] != "metric_drift_undefined:sharpe" {
		t.Errorf("unexpected violation: %v", res.Checks.MetricConsistency.Violations)
	}
}

func TestEvaluate_TradeLifecycle(t *testing.T) {
	tests := []struct {
		name      string
		states    []string
		wantPass  bool
		violation string
	}{
		{
			name:     "created accepted filled",
			states:   []string{"created", "accepted", "filled"},
			wantPass: true,
		},
		{
			name:      "created filled accepted",
			states:    []string{"created", "filled", "accepted"},
			wantPass:  false,
			violation: "invalid_transition:o-1:",
		},
		{
			name:      "starts mid-lifecycle",
			states:    []string{"accepted", "filled"},
			wantPass:  false,
			violation: "invalid_initial_state:o-1:",
		},
		{
			name:      "ambiguous state token",
			states:    []string{"created", "not_filled"},
			wantPass:  false,
			violation: "unknown_state:o-1:",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev := passingEvidence()
			ev.ExecutionLogs = nil
			for _, state := range tt.states {
				ev.ExecutionLogs = append(ev.ExecutionLogs, ExecutionEvent{OrderID: "o-1", State: state})
			}

			res := Evaluate(ev, testPolicy(policy.ProfileStandard, nil))
			got := res.Checks.TradeCoherence

			if tt.wantPass {
				if got.Status != artifact.StatusPass {
					t.Fatalf("expected pass, got violations %v", got.Violations)
				}
				return
			}
			if got.Status != artifact.StatusFail {
				t.Fatal("expected trade coherence to fail")
			}
			found := false
			for _, v := range got.Violations {
				if strings.HasPrefix(v, tt.violation) {
					found = true
				}
			}
			if !found {
				t.Errorf("expected violation prefixed %q, got %v", tt.violation, got.Violations)
			}
		})
	}
}

func TestEvaluate_TradeReconciliation(t *testing.T) {
	ev := passingEvidence()
	// Second order fills with no matching trade.
	ev.ExecutionLogs = append(ev.ExecutionLogs,
		ExecutionEvent{OrderID: "o-2", State: "created"},
		ExecutionEvent{OrderID: "o-2", State: "accepted"},
		ExecutionEvent{OrderID: "o-2", State: "filled"},
	)

	res := Evaluate(ev, testPolicy(policy.ProfileStandard, nil))
	got := res.Checks.TradeCoherence
	if got.Status != artifact.StatusFail {
		t.Fatal("expected unmatched fill to fail")
	}
	if got.Violations[len(got.Violations)-1] != "filled_without_trade:o-2" {
		t.Errorf("unexpected violations: %v", got.Violations)
	}
}

func TestEvaluate_EvidenceUnavailableFailsClosed(t *testing.T) {
	ev := passingEvidence()
	ev.Trades = nil
	ev.ExecutionLogs = nil

	res := Evaluate(ev, testPolicy(policy.ProfileStandard, nil))
	got := res.Checks.TradeCoherence
	if got.Status != artifact.StatusFail {
		t.Fatal("expected missing trade evidence to fail closed")
	}
	if got.Violations[0] != "evidence_unavailable" {
		t.Errorf("unexpected violations: %v", got.Violations)
	}
}

func TestEvaluate_Lineage(t *testing.T) {
	t.Run("source missing", func(t *testing.T) {
		ev := passingEvidence()
		ev.Lineage = &LineagePayload{
			Datasets: []LineageEntry{{DatasetID: "ds-1", SourceRef: ""}},
		}

		res := Evaluate(ev, testPolicy(policy.ProfileStandard, nil))
		got := res.Checks.LineageCompleteness
		if got.Status != artifact.StatusFail {
			t.Fatal("expected missing source to fail")
		}
		if got.Violations[0] != "lineage_source_missing:ds-1" {
			t.Errorf("unexpected violations: %v", got.Violations)
		}
	})

	t.Run("whitespace never spuriously fails", func(t *testing.T) {
		ev := passingEvidence()
		ev.RequestedDatasets = []string{" ds-1 "}

		res := Evaluate(ev, testPolicy(policy.ProfileStandard, nil))
		if res.Checks.LineageCompleteness.Status != artifact.StatusPass {
			t.Errorf("expected trimmed ids to match, got %v",
				res.Checks.LineageCompleteness.Violations)
		}
	})

	t.Run("lineage unavailable fails closed", func(t *testing.T) {
		ev := passingEvidence()
		ev.Lineage = nil

		res := Evaluate(ev, testPolicy(policy.ProfileStandard, nil))
		if res.Checks.LineageCompleteness.Status != artifact.StatusFail {
			t.Fatal("expected nil lineage to fail closed")
		}
	})
}

func TestEvaluate_LineageFoldsIntoTradeCoherence(t *testing.T) {
	ev := passingEvidence()
	ev.Lineage = &LineagePayload{} // ds-1 not covered

	res := Evaluate(ev, testPolicy(policy.ProfileStandard, nil))

	if res.Checks.TradeCoherence.Status != artifact.StatusFail {
		t.Fatal("expected lineage failure to fold into trade coherence")
	}
	found := false
	for _, v := range res.Checks.TradeCoherence.Violations {
		if v == "lineage:lineage_dataset_missing:ds-1" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected folded lineage violation, got %v", res.Checks.TradeCoherence.Violations)
	}

	// Both symbolic reasons appear, in combiner order.
	wantReasons := []string{ReasonTradeCoherence, ReasonLineage}
	if len(res.BlockReasons) != len(wantReasons) {
		t.Fatalf("expected reasons %v, got %v", wantReasons, res.BlockReasons)
	}
	for i, want := range wantReasons {
		if res.BlockReasons[i] != want {
			t.Errorf("expected reason %q at %d, got %q", want, i, res.BlockReasons[i])
		}
	}
}
