package engine

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/policy"
)

// sentinelDrift is the unrepresentably-large drift assigned to structural
// mismatches and zero-recomputed comparisons. It exceeds every usable
// tolerance, so such keys always fail.
const sentinelDrift = math.MaxFloat64

// metricValue coerces a reported metric into a float64. Only genuinely
// numeric representations qualify; anything else is a structural mismatch.
func metricValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// checkMetricConsistency recomputes drift between reported and recomputed
// metrics over the union of keys. A key missing from either side, or
// non-numeric, forces the sentinel drift; recomputed = 0 with reported != 0
// is defined as the sentinel too, never a division by zero and never a
// silent "equal".
func checkMetricConsistency(ev *Evidence, pol *policy.ReviewPolicy) artifact.MetricCheckResult {
	tolerance := pol.ResolvedDriftTolerancePct()

	if len(ev.ReportedMetrics) == 0 && len(ev.RecomputedMetrics) == 0 {
		if pol.FailClosedOnEvidenceUnavailable {
			return artifact.MetricCheckResult{
				Status:       artifact.StatusFail,
				Violations:   []string{"evidence_unavailable"},
				MaxDriftPct:  sentinelDrift,
				TolerancePct: tolerance,
			}
		}
		return artifact.MetricCheckResult{Status: artifact.StatusPass, Violations: []string{}, TolerancePct: tolerance}
	}

	keySet := make(map[string]bool)
	for k := range ev.ReportedMetrics {
		keySet[k] = true
	}
	for k := range ev.RecomputedMetrics {
		keySet[k] = true
	}
	keys := make([]string, 0, len(keySet))
	for k := range keySet {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	violations := []string{}
	maxDrift := 0.0
	for _, key := range keys {
		rawReported, hasReported := ev.ReportedMetrics[key]
		rawRecomputed, hasRecomputed := ev.RecomputedMetrics[key]

		reported, reportedOK := metricValue(rawReported)
		recomputed, recomputedOK := metricValue(rawRecomputed)

		var drift float64
		switch {
		case !hasReported || !hasRecomputed || !reportedOK || !recomputedOK:
			drift = sentinelDrift
			violations = append(violations, "metric_structural_mismatch:"+key)
		case recomputed == 0 && reported != 0:
			drift = sentinelDrift
			violations = append(violations, "metric_drift_undefined:"+key)
		case recomputed == 0:
			drift = 0
		default:
			drift = math.Abs(reported-recomputed) / math.Abs(recomputed) * 100
			if drift > tolerance {
				violations = append(violations,
					"metric_drift_exceeds_tolerance:"+key+":"+strconv.FormatFloat(drift, 'f', 6, 64))
			}
		}
		if drift > maxDrift {
			maxDrift = drift
		}
	}

	status := artifact.StatusPass
	if maxDrift > tolerance {
		status = artifact.StatusFail
	}
	return artifact.MetricCheckResult{
		Status:       status,
		Violations:   violations,
		MaxDriftPct:  maxDrift,
		TolerancePct: tolerance,
	}
}
