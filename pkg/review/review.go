package review

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/policy"
)

// requiredEvidenceKinds are the kinds a STANDARD or EXPERT review expects on
// the snapshot allow-list; a missing kind becomes an advisory coverage
// finding.
var requiredEvidenceKinds = []string{
	artifact.KindBacktestReport,
	artifact.KindTrades,
	artifact.KindExecutionLogs,
	artifact.KindChartPayload,
}

// Reviewer evaluates reviewer snapshots under hard cost budgets.
type Reviewer struct {
	exec   Executor
	logger *slog.Logger
	now    func() time.Time
}

// NewReviewer creates a reviewer around an injected tool executor. A nil
// executor degrades to NoopExecutor.
func NewReviewer(exec Executor, logger *slog.Logger) *Reviewer {
	if exec == nil {
		exec = NoopExecutor{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reviewer{
		exec:   exec,
		logger: logger.With("component", "review"),
		now:    time.Now,
	}
}

// Review evaluates a snapshot, optionally executing a caller-supplied tool
// plan. A nil plan selects the deterministic per-profile default. The only
// error case is a snapshot that fails strict validation; every budget
// problem is returned as a breach result inside the review block.
func (r *Reviewer) Review(ctx context.Context, snap *artifact.Snapshot, plan []ToolCall) (*artifact.AgentReview, error) {
	if err := validateSnapshot(snap); err != nil {
		return nil, err
	}

	limits, ok := BudgetForProfile(snap.Policy.Profile)
	if !ok {
		return nil, &SnapshotError{Field: "policy.profile", Reason: "no budget for profile " + string(snap.Policy.Profile)}
	}

	start := r.now()
	usage := artifact.BudgetUsage{}

	allowed := make(map[string]bool, len(snap.EvidenceRefs))
	var allowedOrder []string
	for _, ref := range snap.EvidenceRefs {
		if !allowed[ref.Ref] {
			allowedOrder = append(allowedOrder, ref.Ref)
		}
		allowed[ref.Ref] = true
	}

	// The snapshot itself costs tokens before any tool runs.
	serialized, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize snapshot: %w", err)
	}
	usage.Tokens = estimateTokens(serialized)
	if usage.Tokens > limits.MaxTokens {
		return r.breach(snap, limits, usage, start, BreachTokenBudget), nil
	}
	if r.elapsedSeconds(start) > limits.MaxRuntimeSeconds {
		usage.RuntimeSeconds = r.elapsedSeconds(start)
		return r.breach(snap, limits, usage, start, BreachRuntimeBudget), nil
	}

	if plan == nil {
		plan = defaultPlan(snap.Policy.Profile, limits, snap.EvidenceRefs)
	}
	if len(plan) > limits.MaxToolCalls {
		return r.breach(snap, limits, usage, start, BreachToolBudget), nil
	}

	var toolFindings []artifact.Finding
	for _, call := range plan {
		if r.elapsedSeconds(start) > limits.MaxRuntimeSeconds {
			usage.RuntimeSeconds = r.elapsedSeconds(start)
			return r.breach(snap, limits, usage, start, BreachRuntimeBudget), nil
		}
		if call.Tool != ToolFetchEvidenceRef {
			return r.breach(snap, limits, usage, start, BreachToolNotAllowed), nil
		}
		if !allowed[call.Ref] {
			return r.breach(snap, limits, usage, start, BreachToolRefOutOfScope), nil
		}

		payload, execErr := r.exec.Execute(ctx, call)
		usage.ToolCalls++
		if execErr != nil {
			r.logger.Warn("tool executor failed", "ref", call.Ref, "error", execErr)
			return r.breach(snap, limits, usage, start, BreachToolExecutorError), nil
		}

		usage.Tokens += estimateTokens(payload)
		if usage.Tokens > limits.MaxTokens {
			return r.breach(snap, limits, usage, start, BreachTokenBudget), nil
		}

		if f, found := payloadFinding(call.Ref, payload); found {
			toolFindings = append(toolFindings, f)
		}
	}

	findings := r.deterministicFindings(snap, allowedOrder)
	if snap.Policy.Profile != policy.ProfileFast {
		findings = append(findings, coverageFindings(snap, allowedOrder)...)
	}
	findings = append(findings, toolFindings...)

	// Defense in depth: a finding citing anything off the allow-list is a
	// breach even though this package only builds in-scope findings.
	for _, f := range findings {
		if !refsSubset(f.EvidenceRefs, allowed) {
			return r.breach(snap, limits, usage, start, BreachFindingOutOfScope), nil
		}
	}

	findings = dedupeFindings(findings)
	if len(findings) > limits.MaxFindings {
		findings = findings[:limits.MaxFindings]
	}

	usage.RuntimeSeconds = r.elapsedSeconds(start)
	status := resolveStatus(findings)

	return &artifact.AgentReview{
		Status:   status,
		Summary:  reviewSummary(status, findings),
		Findings: findings,
		Budget: artifact.BudgetReport{
			Limits:       limits,
			Usage:        usage,
			WithinBudget: true,
		},
	}, nil
}

// elapsedSeconds measures wall-clock runtime since the review started.
func (r *Reviewer) elapsedSeconds(start time.Time) float64 {
	return r.now().Sub(start).Seconds()
}

// breach produces the fail-closed result for a budget breach: status fail,
// one synthetic blocking finding, withinBudget false with the symbolic
// reason.
func (r *Reviewer) breach(snap *artifact.Snapshot, limits artifact.BudgetLimits, usage artifact.BudgetUsage, start time.Time, reason string) *artifact.AgentReview {
	usage.RuntimeSeconds = r.elapsedSeconds(start)
	finding := newFinding(0, 1.0,
		"review budget breached: "+reason,
		[]string{snap.EvidenceRefs[0].Ref},
	)
	return &artifact.AgentReview{
		Status:   artifact.StatusFail,
		Summary:  "agent review aborted: " + reason,
		Findings: []artifact.Finding{finding},
		Budget: artifact.BudgetReport{
			Limits:       limits,
			Usage:        usage,
			WithinBudget: false,
			BreachReason: reason,
		},
	}
}

// defaultPlan is the deterministic tool plan when the caller supplies none:
// zero calls for FAST, up to two for STANDARD, up to the tool budget for
// EXPERT, one call per evidence ref in snapshot order.
func defaultPlan(profile policy.Profile, limits artifact.BudgetLimits, refs []artifact.EvidenceRef) []ToolCall {
	var budget int
	switch profile {
	case policy.ProfileFast:
		return nil
	case policy.ProfileStandard:
		budget = 2
	default:
		budget = limits.MaxToolCalls
	}
	if budget > len(refs) {
		budget = len(refs)
	}
	plan := make([]ToolCall, 0, budget)
	for _, ref := range refs[:budget] {
		plan = append(plan, ToolCall{Tool: ToolFetchEvidenceRef, Ref: ref.Ref})
	}
	return plan
}

// deterministicFindings emits one finding per failing deterministic check,
// each citing the first one or two allow-listed refs.
func (r *Reviewer) deterministicFindings(snap *artifact.Snapshot, allowedOrder []string) []artifact.Finding {
	cite := allowedOrder
	if len(cite) > 2 {
		cite = cite[:2]
	}

	var findings []artifact.Finding
	checks := []struct {
		name   string
		status string
	}{
		{"indicator_fidelity", snap.Checks.IndicatorFidelity},
		{"trade_coherence", snap.Checks.TradeCoherence},
		{"metric_consistency", snap.Checks.MetricConsistency},
	}
	for _, c := range checks {
		if c.status == artifact.StatusFail {
			findings = append(findings, newFinding(1, 1.0,
				"deterministic check failed: "+c.name,
				append([]string(nil), cite...),
			))
		}
	}
	return findings
}

// coverageFindings reports required evidence kinds absent from the snapshot
// allow-list. STANDARD and EXPERT only; the caller gates on profile.
func coverageFindings(snap *artifact.Snapshot, allowedOrder []string) []artifact.Finding {
	kinds := make(map[string]bool, len(snap.EvidenceRefs))
	for _, ref := range snap.EvidenceRefs {
		kinds[ref.Kind] = true
	}

	cite := allowedOrder[:1]
	var findings []artifact.Finding
	for _, kind := range requiredEvidenceKinds {
		if !kinds[kind] {
			findings = append(findings, newFinding(2, 0.9,
				"required evidence kind missing: "+kind,
				append([]string(nil), cite...),
			))
		}
	}
	return findings
}

// payloadFinding converts error or failure markers in a tool payload into an
// advisory finding citing the fetched ref.
func payloadFinding(ref string, payload []byte) (artifact.Finding, bool) {
	body := strings.ToLower(string(payload))
	for _, marker := range []string{"\"error\"", "\"failed\"", "\"violation\""} {
		if strings.Contains(body, marker) {
			return newFinding(2, 0.8,
				"tool payload reported "+strings.Trim(marker, "\"")+" markers",
				[]string{ref},
			), true
		}
	}
	return artifact.Finding{}, false
}

// reviewSummary renders a one-line summary of the review outcome.
func reviewSummary(status string, findings []artifact.Finding) string {
	return fmt.Sprintf("agent review %s with %d finding(s)", status, len(findings))
}
