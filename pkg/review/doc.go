// Package review implements the bounded agent-review lane.
//
// A reviewer evaluates the restricted validation-llm-snapshot.v1 artifact,
// never the full run artifact, under a hard per-profile cost ceiling:
// wall-clock runtime, estimated tokens, tool calls, and finding count. Every
// ceiling is fail-closed: exceeding one produces a breach result (status
// fail, withinBudget false, a symbolic breachReason) rather than an error,
// so a run always completes with a verdict.
//
// Tool access is capability-style: the single allowed tool
// (fetch_evidence_ref) runs through an injected Executor, and every
// reference it touches must be on the snapshot's allow-list. Findings that
// cite references outside the allow-list are themselves a breach.
package review
