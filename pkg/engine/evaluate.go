package engine

import (
	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/policy"
)

// Symbolic block reasons, one per failing check, in combiner order.
const (
	ReasonIndicatorFidelity = "indicator_fidelity_failed"
	ReasonTradeCoherence    = "trade_coherence_failed"
	ReasonMetricConsistency = "metric_consistency_failed"
	ReasonLineage           = "lineage_incomplete"
)

// Result is a deterministic evaluation outcome: four sub-results, an
// ordered deduplicated list of block reasons, and a pass/fail decision that
// is fail iff any sub-result failed.
type Result struct {
	Checks        artifact.CheckResults
	BlockReasons  []string
	FinalDecision string
}

// Evaluate runs the four deterministic checks against the evidence under
// the given policy. It is pure and referentially transparent.
func Evaluate(ev *Evidence, pol *policy.ReviewPolicy) *Result {
	indicator := checkIndicatorFidelity(ev, pol)
	trade := checkTradeCoherence(ev, pol)
	metric := checkMetricConsistency(ev, pol)
	lineage := checkLineageCompleteness(ev, pol)

	// Lineage violations fold into trade coherence under a "lineage:"
	// prefix so a single tradeCoherence status reflects both.
	if lineage.Status == artifact.StatusFail {
		for _, v := range lineage.Violations {
			trade.Violations = append(trade.Violations, "lineage:"+v)
		}
		trade.Status = artifact.StatusFail
	}

	// Always an array on the wire, never null; the run schema requires it.
	reasons := []string{}
	if indicator.Status == artifact.StatusFail {
		reasons = append(reasons, ReasonIndicatorFidelity)
	}
	if trade.Status == artifact.StatusFail {
		reasons = append(reasons, ReasonTradeCoherence)
	}
	if metric.Status == artifact.StatusFail {
		reasons = append(reasons, ReasonMetricConsistency)
	}
	if lineage.Status == artifact.StatusFail {
		reasons = append(reasons, ReasonLineage)
	}

	decision := artifact.StatusPass
	if len(reasons) > 0 {
		decision = artifact.StatusFail
	}

	return &Result{
		Checks: artifact.CheckResults{
			IndicatorFidelity:   indicator,
			TradeCoherence:      trade,
			MetricConsistency:   metric,
			LineageCompleteness: lineage,
		},
		BlockReasons:  reasons,
		FinalDecision: decision,
	}
}
