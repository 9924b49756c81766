package engine

import (
	"strconv"
	"strings"

	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/policy"
)

// checkLineageCompleteness verifies that every requested dataset appears in
// the lineage payload with a non-empty source reference. Dataset ids are
// compared whitespace-trimmed so " ds-1 " and "ds-1" never spuriously
// mismatch.
func checkLineageCompleteness(ev *Evidence, pol *policy.ReviewPolicy) artifact.CheckResult {
	if ev.Lineage == nil {
		if pol.FailClosedOnEvidenceUnavailable {
			return artifact.CheckResult{
				Status:     artifact.StatusFail,
				Violations: []string{"lineage_unavailable"},
			}
		}
		return artifact.CheckResult{Status: artifact.StatusPass, Violations: []string{}}
	}

	violations := []string{}

	sources := make(map[string]string)
	for i, entry := range ev.Lineage.Datasets {
		id := strings.TrimSpace(entry.DatasetID)
		if id == "" {
			violations = append(violations, "lineage_malformed_entry:"+strconv.Itoa(i))
			continue
		}
		sources[id] = strings.TrimSpace(entry.SourceRef)
	}

	seen := make(map[string]bool)
	for _, raw := range ev.RequestedDatasets {
		id := strings.TrimSpace(raw)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		source, present := sources[id]
		if !present {
			violations = append(violations, "lineage_dataset_missing:"+id)
			continue
		}
		if source == "" {
			violations = append(violations, "lineage_source_missing:"+id)
		}
	}

	status := artifact.StatusPass
	if len(violations) > 0 {
		status = artifact.StatusFail
	}
	return artifact.CheckResult{Status: status, Violations: violations}
}
