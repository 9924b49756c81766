package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"quantgate-hq/ganymede/pkg/artifact"
)

var testScope = Scope{TenantID: "tenant-1", UserID: "user-1"}

func testMetadata(runID string) *RunMetadata {
	return &RunMetadata{
		RunID:      runID,
		RequestID:  "req-1",
		StrategyID: "strat-1",
		CreatedAt:  time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Artifact:   []byte(`{"schema":"validation-run.v1"}`),
	}
}

func testReview(decision string) *ReviewState {
	return &ReviewState{
		AgentReview: artifact.AgentReview{
			Status:   artifact.StatusPass,
			Summary:  "agent review pass with 0 finding(s)",
			Findings: []artifact.Finding{},
		},
		TraderReview: artifact.TraderReview{
			Status:   artifact.TraderNotRequested,
			Comments: []string{},
		},
		FinalDecision: decision,
		UpdatedAt:     time.Date(2026, 3, 14, 9, 0, 1, 0, time.UTC),
	}
}

func TestMemoryStore_UpsertAndGetRun(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	refs := []artifact.BlobRef{
		{Kind: artifact.KindTrades, Ref: "s3://blobs/trades", SHA256: "aa"},
	}
	if err := s.UpsertRun(ctx, testScope, testMetadata("run-1"), testReview("pass"), refs); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	record, err := s.GetRun(ctx, testScope, "run-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if record.Meta.RunID != "run-1" || record.Review.FinalDecision != "pass" {
		t.Errorf("unexpected record: %+v", record)
	}
	if len(record.BlobRefs) != 1 || record.BlobRefs[0].Ref != "s3://blobs/trades" {
		t.Errorf("unexpected blob refs: %+v", record.BlobRefs)
	}

	// Mutating the returned record must not leak back into the store.
	record.Review.FinalDecision = "fail"
	record.Meta.Artifact[0] = 'X'
	again, err := s.GetRun(ctx, testScope, "run-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if again.Review.FinalDecision != "pass" || again.Meta.Artifact[0] == 'X' {
		t.Error("expected the store to hand out detached copies")
	}
}

func TestMemoryStore_GetRunNotFound(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.GetRun(context.Background(), testScope, "missing")
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if notFound.Kind != "run" || notFound.ID != "missing" {
		t.Errorf("unexpected error detail: %+v", notFound)
	}
}

func TestMemoryStore_ScopeIsolation(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.UpsertRun(ctx, testScope, testMetadata("run-1"), testReview("pass"), nil); err != nil {
		t.Fatalf("upsert failed: %v", err)
	}

	other := Scope{TenantID: "tenant-2", UserID: "user-1"}
	if _, err := s.GetRun(ctx, other, "run-1"); err == nil {
		t.Error("expected cross-tenant reads to miss")
	}
}

func TestMemoryStore_PartialWriteRestoresPriorState(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	if err := s.UpsertRun(ctx, testScope, testMetadata("run-1"), testReview("pass"), nil); err != nil {
		t.Fatalf("initial upsert failed: %v", err)
	}

	// Fail the second write step of the update.
	s.writeHook = func(step string) error {
		if step == "review" {
			return errors.New("disk full")
		}
		return nil
	}
	err := s.UpsertRun(ctx, testScope, testMetadata("run-1"), testReview("fail"), nil)
	if err == nil {
		t.Fatal("expected the partial write to fail")
	}
	var storeErr *StoreError
	if !errors.As(err, &storeErr) {
		t.Fatalf("expected StoreError, got %T", err)
	}

	s.writeHook = nil
	record, getErr := s.GetRun(ctx, testScope, "run-1")
	if getErr != nil {
		t.Fatalf("get failed: %v", getErr)
	}
	if record.Review.FinalDecision != "pass" {
		t.Errorf("expected pre-write decision to survive, got %s", record.Review.FinalDecision)
	}
}

func TestMemoryStore_PartialFirstWriteLeavesNoRow(t *testing.T) {
	s := NewMemoryStore()
	s.writeHook = func(step string) error {
		if step == "blob_refs" {
			return errors.New("disk full")
		}
		return nil
	}

	ctx := context.Background()
	if err := s.UpsertRun(ctx, testScope, testMetadata("run-1"), testReview("pass"), nil); err == nil {
		t.Fatal("expected the partial write to fail")
	}

	s.writeHook = nil
	if _, err := s.GetRun(ctx, testScope, "run-1"); err == nil {
		t.Error("expected no row after a rolled-back first write")
	}
}

func TestMemoryStore_BaselineAndReplay(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	baseline := &Baseline{
		BaselineID:    "base-1",
		Name:          "v1.4-release",
		RunID:         "run-1",
		FinalDecision: "pass",
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.UpsertBaseline(ctx, testScope, baseline); err != nil {
		t.Fatalf("upsert baseline failed: %v", err)
	}
	got, err := s.GetBaseline(ctx, testScope, "base-1")
	if err != nil {
		t.Fatalf("get baseline failed: %v", err)
	}
	if got.FinalDecision != "pass" || got.Name != "v1.4-release" {
		t.Errorf("unexpected baseline: %+v", got)
	}

	replay := &Replay{
		ReplayID:       "replay-1",
		BaselineID:     "base-1",
		CandidateRunID: "run-2",
		Outcome:        "fail",
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.UpsertReplay(ctx, testScope, replay); err != nil {
		t.Fatalf("upsert replay failed: %v", err)
	}
	gotReplay, err := s.GetReplay(ctx, testScope, "replay-1")
	if err != nil {
		t.Fatalf("get replay failed: %v", err)
	}
	if gotReplay.Outcome != "fail" {
		t.Errorf("unexpected replay: %+v", gotReplay)
	}

	if _, err := s.GetBaseline(ctx, testScope, "missing"); err == nil {
		t.Error("expected missing baseline lookup to fail")
	}
}
