package review

import "context"

// ToolFetchEvidenceRef is the only tool a reviewer may call. The allow-list
// is deliberately a single entry.
const ToolFetchEvidenceRef = "fetch_evidence_ref"

// ToolCall is one planned tool invocation.
type ToolCall struct {
	Tool string
	Ref  string
}

// Executor is the injected capability a reviewer uses to fetch evidence
// payloads. It is passed in, never a global; the review lane compiles and
// runs correctly with NoopExecutor for pure unit tests.
type Executor interface {
	// Execute fetches the payload behind an allow-listed evidence
	// reference. An error is normalized into a tool_executor_error breach
	// by the reviewer, never propagated.
	Execute(ctx context.Context, call ToolCall) ([]byte, error)
}

// NoopExecutor satisfies Executor and returns empty payloads. Useful for
// tests and for profiles that plan no tool calls.
type NoopExecutor struct{}

// Execute returns an empty payload.
func (NoopExecutor) Execute(ctx context.Context, call ToolCall) ([]byte, error) {
	return nil, nil
}
