// Package idemstore persists idempotency records: for each
// (tenant, user, key) it stores the request-payload fingerprint and the
// response produced the first time the request executed. A replay with the
// same fingerprint returns the cached response; a different fingerprint
// under the same key is a conflict the orchestrator rejects.
//
// Two backends are provided: an in-memory map for tests and development,
// and a SQLite backend for durable single-instance deployments. Records
// carry an expiry so a scheduled sweeper can prune them.
package idemstore
