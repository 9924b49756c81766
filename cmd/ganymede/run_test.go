package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestBuildEvidence(t *testing.T) {
	doc := &evidenceDocument{
		RequestedIndicators: []string{"sma_20"},
		Chart: &chartDocument{
			Indicators: []string{"sma_20"},
		},
		Trades: []tradeDocument{
			{TradeID: "t-1", OrderID: "o-1", Symbol: "AAPL", Quantity: 10, Price: 187.5},
		},
		ExecutionLogs: []executionDocument{
			{OrderID: "o-1", State: "created"},
		},
		RequestedDatasets: []string{"ds-1"},
		Lineage: []lineageDocument{
			{DatasetID: "ds-1", SourceRef: "s3://datasets/ds-1"},
		},
	}

	ev := buildEvidence(doc)

	if ev.ChartPayload == nil || len(ev.ChartPayload.Indicators) != 1 {
		t.Errorf("unexpected chart payload: %+v", ev.ChartPayload)
	}
	if len(ev.Trades) != 1 || ev.Trades[0].OrderID != "o-1" {
		t.Errorf("unexpected trades: %+v", ev.Trades)
	}
	if ev.Lineage == nil || len(ev.Lineage.Datasets) != 1 {
		t.Errorf("unexpected lineage: %+v", ev.Lineage)
	}
}

func TestBuildEvidence_AbsentSectionsStayNil(t *testing.T) {
	ev := buildEvidence(&evidenceDocument{})

	if ev.ChartPayload != nil {
		t.Error("expected no chart payload")
	}
	// Absent lineage must stay nil so the engine can fail closed on it.
	if ev.Lineage != nil {
		t.Error("expected no lineage payload")
	}
}

func TestBuildEvidence_ExplicitEmptyLineage(t *testing.T) {
	ev := buildEvidence(&evidenceDocument{HasLineage: true})

	if ev.Lineage == nil {
		t.Error("expected an explicitly declared empty lineage payload")
	}
}

func TestValidatePolicyFile(t *testing.T) {
	dir := t.TempDir()

	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, []byte(`
profile: STANDARD
blockMergeOnFail: true
blockReleaseOnFail: true
blockMergeOnAgentFail: false
blockReleaseOnAgentFail: false
requireTraderReview: false
hardFailOnMissingIndicators: true
failClosedOnEvidenceUnavailable: true
`), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	result := validatePolicyFile(good)
	if !result.Valid {
		t.Fatalf("expected a valid result, got: %s", result.Error)
	}
	if result.Profile != "STANDARD" || result.TolerancePct != 1.0 {
		t.Errorf("unexpected result: %+v", result)
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte(`profile: TURBO`), 0o644); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if result := validatePolicyFile(bad); result.Valid {
		t.Error("expected an invalid result")
	}

	if result := validatePolicyFile(filepath.Join(dir, "missing.yaml")); result.Valid {
		t.Error("expected a missing file to be invalid")
	}
}
