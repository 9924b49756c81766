// Package runs orchestrates the validation run lifecycle.
//
// The Orchestrator owns all mutable run state: it validates create requests,
// drives the deterministic engine and the bounded agent-review lane,
// resolves the three review outcomes into one policy-gated final decision,
// and persists canonical artifacts through the storage port. Callers never
// share mutable state with it; reads return copies or freshly-unmarshaled
// artifacts.
//
// Every mutating operation is idempotent. The caller supplies an
// idempotency key (or the orchestrator derives one from the request id);
// the key is scoped to (tenant, user, key) and the request payload is
// fingerprinted as stable JSON. A repeat with the same fingerprint returns
// the original response unchanged; a different fingerprint under the same
// key is a ConflictError; side effects are never silently re-run. Access
// is serialized per key, so two concurrent requests carrying the same key
// never both execute the underlying effect.
//
// Decision ordering is load-bearing: a deterministic failure is absolute
// and cannot be overridden by any later review, and an unresolved trader
// review requirement can only downgrade toward conditional_pass, never
// upgrade.
package runs
