// Package engine implements the deterministic validation engine for
// machine-generated trading-strategy artifacts.
//
// Evaluate is a pure function of (evidence, policy): no side effects, no
// I/O, no randomness. Identical inputs always reproduce byte-identical
// results, which is what makes validation runs replayable. Four independent
// checks are evaluated (indicator fidelity, trade-order lifecycle
// coherence, metric recomputation drift, and data-lineage completeness)
// and combined into a single pass/fail decision with an ordered list of
// block reasons.
//
// BuildArtifact and BuildSnapshot assemble the canonical run artifact and
// the restricted reviewer snapshot from an evaluation result; the
// orchestrator overwrites the review blocks after the agent lane runs.
package engine
