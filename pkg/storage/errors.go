package storage

import "fmt"

// StoreError represents an error from a storage backend.
type StoreError struct {
	Backend   string // "memory" or "sqlite"
	Operation string // Operation that failed
	Cause     error
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	return fmt.Sprintf("storage error [backend=%s, operation=%s]: %v", e.Backend, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause error.
func (e *StoreError) Unwrap() error {
	return e.Cause
}

// NotFoundError reports a lookup for a run, baseline, or replay that does
// not exist in the caller's scope.
type NotFoundError struct {
	Kind string // "run", "baseline", "replay"
	ID   string
}

// Error implements the error interface.
func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.ID)
}

// FailClosedError reports that a production runtime profile could not
// resolve a durable backing store. It is raised at construction time, before
// any run can be created.
type FailClosedError struct {
	Reason string
}

// Error implements the error interface.
func (e *FailClosedError) Error() string {
	return "storage fail-closed: " + e.Reason
}

// RollbackError reports that compensating rollback after a partial write
// itself failed. Data integrity can no longer be guaranteed, so this error
// is fatal and must propagate.
type RollbackError struct {
	Operation     string
	WriteCause    error // The failure that triggered rollback
	RollbackCause error // The failure during rollback
}

// Error implements the error interface.
func (e *RollbackError) Error() string {
	return fmt.Sprintf("rollback failed [operation=%s]: write error: %v; rollback error: %v",
		e.Operation, e.WriteCause, e.RollbackCause)
}

// Unwrap returns the rollback failure.
func (e *RollbackError) Unwrap() error {
	return e.RollbackCause
}
