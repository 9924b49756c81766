// Package storage provides the persistence boundary for validation runs,
// baselines, and regression replays.
//
// The Store interface is a narrow contract scoped by tenant and user. The
// write path treats run metadata, review state, and blob references as one
// logical transaction: on partial failure the backend restores the
// pre-write rows exactly, and raises RollbackError if the restore itself
// cannot fully succeed. A half-written run is never left behind.
//
// Adapter selection is fail-closed: a production runtime profile without a
// durable backing store configured fails at construction time instead of
// silently degrading to the in-memory backend. The memory backend exists
// for tests and non-production profiles only.
package storage
