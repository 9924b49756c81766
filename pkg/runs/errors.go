package runs

import "fmt"

// StateError reports a reference to an unknown strategy, dataset, run, or
// baseline, or an otherwise unusable request state. It carries a stable
// code and is never retried automatically.
type StateError struct {
	Kind string // "strategy", "dataset", "run", "baseline", "actor", ...
	ID   string
}

// Error implements the error interface.
func (e *StateError) Error() string {
	return fmt.Sprintf("invalid state: unknown %s %q", e.Kind, e.ID)
}

// FindingError reports an externally submitted review finding that violates
// the artifact finding contract. The submission is rejected whole; nothing
// is persisted.
type FindingError struct {
	Index  int
	Reason string
}

// Error implements the error interface.
func (e *FindingError) Error() string {
	return fmt.Sprintf("invalid finding at index %d: %s", e.Index, e.Reason)
}

// ConflictError reports an idempotency key reused with a different request
// payload. The original side effect is preserved and the new request is
// rejected.
type ConflictError struct {
	Key string
}

// Error implements the error interface.
func (e *ConflictError) Error() string {
	return fmt.Sprintf("idempotency conflict: key %q was used with a different payload", e.Key)
}
