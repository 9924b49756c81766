package storage

import (
	"context"
	"sync"

	"quantgate-hq/ganymede/pkg/artifact"
)

// MemoryStore implements Store using in-memory maps. It is intended for
// tests and non-production runtime profiles; the factory refuses to hand it
// out under a production profile.
type MemoryStore struct {
	mu        sync.RWMutex
	runs      map[Scope]map[string]*RunRecord
	baselines map[Scope]map[string]*Baseline
	replays   map[Scope]map[string]*Replay

	// writeHook, when set, runs before each write step of UpsertRun.
	// Tests use it to force partial-write failures.
	writeHook func(step string) error
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		runs:      make(map[Scope]map[string]*RunRecord),
		baselines: make(map[Scope]map[string]*Baseline),
		replays:   make(map[Scope]map[string]*Replay),
	}
}

// UpsertRun writes the three row groups of a run as one logical
// transaction. The write steps run individually so a mid-write failure
// exercises the same snapshot-and-restore discipline as the durable
// backend.
func (s *MemoryStore) UpsertRun(ctx context.Context, scope Scope, meta *RunMetadata, review *ReviewState, refs []artifact.BlobRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.runs[scope] == nil {
		s.runs[scope] = make(map[string]*RunRecord)
	}

	// Snapshot the pre-write record for compensating rollback.
	var prior *RunRecord
	if existing, ok := s.runs[scope][meta.RunID]; ok {
		prior = copyRunRecord(existing)
	}

	restore := func() {
		if prior == nil {
			delete(s.runs[scope], meta.RunID)
			return
		}
		s.runs[scope][meta.RunID] = prior
	}

	record := &RunRecord{Scope: scope}
	if prior != nil {
		record = copyRunRecord(prior)
	}

	steps := []struct {
		name  string
		apply func()
	}{
		{"metadata", func() { record.Meta = *meta }},
		{"review", func() {
			if review != nil {
				record.Review = *review
			}
		}},
		{"blob_refs", func() { record.BlobRefs = append([]artifact.BlobRef(nil), refs...) }},
	}
	for _, step := range steps {
		if s.writeHook != nil {
			if err := s.writeHook(step.name); err != nil {
				restore()
				return &StoreError{Backend: "memory", Operation: "upsert_run/" + step.name, Cause: err}
			}
		}
		step.apply()
		s.runs[scope][meta.RunID] = record
	}
	return nil
}

// GetRun returns a deep copy of a stored run.
func (s *MemoryStore) GetRun(ctx context.Context, scope Scope, runID string) (*RunRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.runs[scope][runID]
	if !ok {
		return nil, &NotFoundError{Kind: "run", ID: runID}
	}
	return copyRunRecord(record), nil
}

// UpsertBaseline stores a baseline.
func (s *MemoryStore) UpsertBaseline(ctx context.Context, scope Scope, baseline *Baseline) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.baselines[scope] == nil {
		s.baselines[scope] = make(map[string]*Baseline)
	}
	b := *baseline
	s.baselines[scope][baseline.BaselineID] = &b
	return nil
}

// GetBaseline returns a copy of a stored baseline.
func (s *MemoryStore) GetBaseline(ctx context.Context, scope Scope, baselineID string) (*Baseline, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	baseline, ok := s.baselines[scope][baselineID]
	if !ok {
		return nil, &NotFoundError{Kind: "baseline", ID: baselineID}
	}
	b := *baseline
	return &b, nil
}

// UpsertReplay stores a replay record.
func (s *MemoryStore) UpsertReplay(ctx context.Context, scope Scope, replay *Replay) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.replays[scope] == nil {
		s.replays[scope] = make(map[string]*Replay)
	}
	r := *replay
	s.replays[scope][replay.ReplayID] = &r
	return nil
}

// GetReplay returns a copy of a stored replay record.
func (s *MemoryStore) GetReplay(ctx context.Context, scope Scope, replayID string) (*Replay, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	replay, ok := s.replays[scope][replayID]
	if !ok {
		return nil, &NotFoundError{Kind: "replay", ID: replayID}
	}
	r := *replay
	return &r, nil
}

// Close is a no-op for the memory backend.
func (s *MemoryStore) Close() error {
	return nil
}

// copyRunRecord deep-copies a run record so callers never share mutable
// state with the store. Empty slices stay empty rather than nil; the review
// state is overlaid onto artifacts where these fields must serialize as
// arrays.
func copyRunRecord(record *RunRecord) *RunRecord {
	out := *record
	out.Meta.Artifact = append([]byte(nil), record.Meta.Artifact...)
	out.BlobRefs = append([]artifact.BlobRef(nil), record.BlobRefs...)
	out.Review.AgentReview.Findings = append(make([]artifact.Finding, 0, len(record.Review.AgentReview.Findings)), record.Review.AgentReview.Findings...)
	out.Review.TraderReview.Comments = append(make([]string, 0, len(record.Review.TraderReview.Comments)), record.Review.TraderReview.Comments...)
	return &out
}
