package review

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"quantgate-hq/ganymede/pkg/artifact"
)

// newFinding allocates a finding with a fresh id.
func newFinding(priority int, confidence float64, summary string, refs []string) artifact.Finding {
	return artifact.Finding{
		ID:           uuid.NewString(),
		Priority:     priority,
		Confidence:   confidence,
		Summary:      summary,
		EvidenceRefs: refs,
	}
}

// signature identifies a finding by everything except its id, for
// deduplication.
func signature(f artifact.Finding) string {
	return fmt.Sprintf("%d|%.4f|%s|%s", f.Priority, f.Confidence, f.Summary, strings.Join(f.EvidenceRefs, ","))
}

// dedupeFindings drops findings whose full signature was already seen,
// preserving order. The result is never nil; findings serialize as an
// array on the wire even when empty.
func dedupeFindings(findings []artifact.Finding) []artifact.Finding {
	seen := make(map[string]bool, len(findings))
	out := make([]artifact.Finding, 0, len(findings))
	for _, f := range findings {
		sig := signature(f)
		if seen[sig] {
			continue
		}
		seen[sig] = true
		out = append(out, f)
	}
	return out
}

// resolveStatus maps a finding set to a review status: no findings is a
// pass, any finding at priority 0 or 1 is a fail, anything else is a
// conditional pass.
func resolveStatus(findings []artifact.Finding) string {
	if len(findings) == 0 {
		return artifact.StatusPass
	}
	for _, f := range findings {
		if f.Priority <= 1 {
			return artifact.StatusFail
		}
	}
	return artifact.StatusConditionalPass
}

// refsSubset reports whether every ref is on the allow-list. Empty ref
// lists are invalid by contract and fail the subset check.
func refsSubset(refs []string, allowed map[string]bool) bool {
	if len(refs) == 0 {
		return false
	}
	for _, ref := range refs {
		if !allowed[ref] {
			return false
		}
	}
	return true
}
