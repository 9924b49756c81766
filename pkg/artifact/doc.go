// Package artifact defines the canonical, versioned JSON shapes produced by a
// validation run: the full run artifact (validation-run.v1), the compact
// reviewer snapshot (validation-llm-snapshot.v1), and the blob-reference
// grammar with SHA-256 checksums that ties artifacts to their evidence blobs.
//
// The two artifact shapes are a frozen wire contract. Unknown top-level
// fields are rejected, required fields are enforced, and enums are closed
// sets; ValidateRunDocument and ValidateSnapshotDocument apply the embedded
// JSON Schemas to raw payloads before anything else trusts them.
package artifact
