package engine

import (
	"sort"
	"strings"

	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/policy"
)

// Canonical order-lifecycle states.
const (
	stateCreated         = "created"
	stateAccepted        = "accepted"
	statePartiallyFilled = "partially_filled"
	stateFilled          = "filled"
	stateCancelled       = "cancelled"
	stateRejected        = "rejected"
)

// stateSynonyms maps producer vocabulary onto canonical states. Matching is
// exact after normalization; substring guessing would let "unfilled" read as
// "filled".
var stateSynonyms = map[string]string{
	"created":          stateCreated,
	"new":              stateCreated,
	"accepted":         stateAccepted,
	"open":             stateAccepted,
	"acknowledged":     stateAccepted,
	"ack":              stateAccepted,
	"partially_filled": statePartiallyFilled,
	"partial_fill":     statePartiallyFilled,
	"partial":          statePartiallyFilled,
	"filled":           stateFilled,
	"fill":             stateFilled,
	"cancelled":        stateCancelled,
	"canceled":         stateCancelled,
	"cancel":           stateCancelled,
	"rejected":         stateRejected,
	"reject":           stateRejected,
}

// ambiguousFragments mark tokens that must never be guessed at: a state
// containing a negation or pending marker is an unknown state, a violation.
var ambiguousFragments = []string{"not", "pending", "never"}

// orderTransitions is the legal lifecycle transition table. Terminal states
// have no successors.
var orderTransitions = map[string]map[string]bool{
	stateCreated:         {stateAccepted: true, stateCancelled: true, stateRejected: true},
	stateAccepted:        {statePartiallyFilled: true, stateFilled: true, stateCancelled: true, stateRejected: true},
	statePartiallyFilled: {statePartiallyFilled: true, stateFilled: true, stateCancelled: true},
	stateFilled:          {},
	stateCancelled:       {},
	stateRejected:        {},
}

// normalizeState maps a raw lifecycle token to a canonical state. The second
// return is false for unknown or ambiguous tokens.
func normalizeState(raw string) (string, bool) {
	token := strings.ToLower(strings.TrimSpace(raw))
	token = strings.ReplaceAll(token, " ", "_")
	token = strings.ReplaceAll(token, "-", "_")
	for _, frag := range ambiguousFragments {
		if strings.Contains(token, frag) {
			return "", false
		}
	}
	state, ok := stateSynonyms[token]
	return state, ok
}

// checkTradeCoherence validates per-order lifecycle sequences and the
// symmetric reconciliation between trades and execution logs. Lineage
// violations from checkLineage are folded in by the caller under a
// "lineage:" prefix so one tradeCoherence status reflects both.
func checkTradeCoherence(ev *Evidence, pol *policy.ReviewPolicy) artifact.CheckResult {
	if len(ev.Trades) == 0 && len(ev.ExecutionLogs) == 0 {
		if pol.FailClosedOnEvidenceUnavailable {
			return artifact.CheckResult{
				Status:     artifact.StatusFail,
				Violations: []string{"evidence_unavailable"},
			}
		}
		return artifact.CheckResult{Status: artifact.StatusPass, Violations: []string{}}
	}

	violations := []string{}

	// Per-order state sequences, in emission order.
	sequences := make(map[string][]string)
	var orderIDs []string
	for _, event := range ev.ExecutionLogs {
		id := strings.TrimSpace(event.OrderID)
		if _, seen := sequences[id]; !seen {
			orderIDs = append(orderIDs, id)
		}
		sequences[id] = append(sequences[id], event.State)
	}

	filled := make(map[string]bool)
	for _, id := range orderIDs {
		prev := ""
		for _, raw := range sequences[id] {
			state, ok := normalizeState(raw)
			if !ok {
				violations = append(violations, "unknown_state:"+id+":"+strings.TrimSpace(raw))
				continue
			}
			if prev == "" {
				if state != stateCreated {
					violations = append(violations, "invalid_initial_state:"+id+":"+state)
				}
			} else if !orderTransitions[prev][state] {
				violations = append(violations, "invalid_transition:"+id+":"+prev+"->"+state)
			}
			if state == stateFilled {
				filled[id] = true
			}
			prev = state
		}
	}

	// Symmetric reconciliation: every trade needs a filled order with logs,
	// every filled order needs a trade.
	traded := make(map[string]bool)
	for _, trade := range ev.Trades {
		id := strings.TrimSpace(trade.OrderID)
		traded[id] = true
		if _, hasLogs := sequences[id]; !hasLogs {
			violations = append(violations, "trade_without_logs:"+id)
			continue
		}
		if !filled[id] {
			violations = append(violations, "trade_not_filled:"+id)
		}
	}
	var unmatched []string
	for id := range filled {
		if !traded[id] {
			unmatched = append(unmatched, id)
		}
	}
	sort.Strings(unmatched)
	for _, id := range unmatched {
		violations = append(violations, "filled_without_trade:"+id)
	}

	status := artifact.StatusPass
	if len(violations) > 0 {
		status = artifact.StatusFail
	}
	return artifact.CheckResult{Status: status, Violations: violations}
}
