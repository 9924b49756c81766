package review

import (
	"fmt"

	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/policy"
)

// SnapshotError reports a snapshot that failed strict validation. Snapshots
// are produced by the engine, so a malformed one is a caller bug and is
// raised as an error rather than folded into a verdict.
type SnapshotError struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *SnapshotError) Error() string {
	return fmt.Sprintf("invalid reviewer snapshot [field=%s]: %s", e.Field, e.Reason)
}

// validStatus is the closed set a snapshot check flag may take.
func validStatus(s string) bool {
	return s == artifact.StatusPass || s == artifact.StatusFail
}

// validateSnapshot strictly validates every snapshot field. Nothing is
// optional and the profile must be a member of the closed set.
func validateSnapshot(snap *artifact.Snapshot) error {
	if snap == nil {
		return &SnapshotError{Field: "snapshot", Reason: "nil snapshot"}
	}
	if snap.Schema != artifact.SchemaSnapshot {
		return &SnapshotError{Field: "schema", Reason: "expected " + artifact.SchemaSnapshot}
	}
	if snap.RunID == "" {
		return &SnapshotError{Field: "runId", Reason: "required field missing"}
	}
	if snap.StrategyID == "" {
		return &SnapshotError{Field: "strategyId", Reason: "required field missing"}
	}
	if !policy.KnownProfile(snap.Policy.Profile) {
		return &SnapshotError{Field: "policy.profile", Reason: "unknown profile " + string(snap.Policy.Profile)}
	}
	if err := policy.Validate(&snap.Policy); err != nil {
		return &SnapshotError{Field: "policy", Reason: err.Error()}
	}
	if !validStatus(snap.Checks.IndicatorFidelity) {
		return &SnapshotError{Field: "checks.indicatorFidelity", Reason: "invalid status"}
	}
	if !validStatus(snap.Checks.TradeCoherence) {
		return &SnapshotError{Field: "checks.tradeCoherence", Reason: "invalid status"}
	}
	if !validStatus(snap.Checks.MetricConsistency) {
		return &SnapshotError{Field: "checks.metricConsistency", Reason: "invalid status"}
	}
	if len(snap.EvidenceRefs) == 0 {
		return &SnapshotError{Field: "evidenceRefs", Reason: "allow-list must not be empty"}
	}
	for i, ref := range snap.EvidenceRefs {
		if ref.Kind == "" || ref.Ref == "" {
			return &SnapshotError{Field: fmt.Sprintf("evidenceRefs[%d]", i), Reason: "kind and ref are required"}
		}
		if err := artifact.ValidateRef(ref.Ref); err != nil {
			return &SnapshotError{Field: fmt.Sprintf("evidenceRefs[%d]", i), Reason: err.Error()}
		}
	}
	return nil
}
