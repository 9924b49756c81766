package engine

import (
	"strings"

	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/policy"
)

// normalizeIndicator lowercases a name and strips every non-alphanumeric
// rune, so cosmetic mismatches ("SMA-20" vs "sma_20") never count as
// missing.
func normalizeIndicator(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// renderedIndicatorSet collects the union of the flat rendered list and any
// indicators nested in chart-payload panes, keyed by normalized name.
func renderedIndicatorSet(ev *Evidence) map[string]bool {
	rendered := make(map[string]bool)
	add := func(name string) {
		if key := normalizeIndicator(name); key != "" {
			rendered[key] = true
		}
	}
	for _, name := range ev.RenderedIndicators {
		add(name)
	}
	if ev.ChartPayload != nil {
		for _, name := range ev.ChartPayload.Indicators {
			add(name)
		}
		for _, pane := range ev.ChartPayload.Panes {
			for _, name := range pane.Indicators {
				add(name)
			}
		}
	}
	return rendered
}

// checkIndicatorFidelity verifies that every requested indicator was
// actually rendered. hardFailOnMissingIndicators is a constant-true policy
// invariant, so a non-empty missing set always fails.
func checkIndicatorFidelity(ev *Evidence, pol *policy.ReviewPolicy) artifact.CheckResult {
	rendered := renderedIndicatorSet(ev)

	violations := []string{}
	seen := make(map[string]bool)
	for _, name := range ev.RequestedIndicators {
		key := normalizeIndicator(name)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		if !rendered[key] {
			violations = append(violations, "indicator_missing:"+key)
		}
	}

	status := artifact.StatusPass
	if len(violations) > 0 && pol.HardFailOnMissingIndicators {
		status = artifact.StatusFail
	}
	return artifact.CheckResult{Status: status, Violations: violations}
}
