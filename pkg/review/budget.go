package review

import (
	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/policy"
)

// Symbolic breach reasons. A breach is data, never a thrown error: it flows
// into the budget report of the agent-review block.
const (
	BreachTokenBudget        = "token_budget_exceeded"
	BreachRuntimeBudget      = "runtime_budget_exceeded"
	BreachToolBudget         = "tool_budget_exceeded"
	BreachToolNotAllowed     = "tool_not_allowed"
	BreachToolRefOutOfScope  = "tool_ref_out_of_scope"
	BreachToolExecutorError  = "tool_executor_error"
	BreachFindingOutOfScope  = "finding_ref_out_of_scope"
)

// profileBudgets maps each policy profile to its review cost ceiling.
var profileBudgets = map[policy.Profile]artifact.BudgetLimits{
	policy.ProfileFast: {
		MaxRuntimeSeconds: 10,
		MaxTokens:         2000,
		MaxToolCalls:      0,
		MaxFindings:       5,
	},
	policy.ProfileStandard: {
		MaxRuntimeSeconds: 30,
		MaxTokens:         8000,
		MaxToolCalls:      2,
		MaxFindings:       10,
	},
	policy.ProfileExpert: {
		MaxRuntimeSeconds: 120,
		MaxTokens:         32000,
		MaxToolCalls:      8,
		MaxFindings:       25,
	},
}

// BudgetForProfile returns the cost ceiling for a profile. The second
// return is false for unknown profiles.
func BudgetForProfile(p policy.Profile) (artifact.BudgetLimits, bool) {
	limits, ok := profileBudgets[p]
	return limits, ok
}

// estimateTokens is the character-based token estimate used for both the
// snapshot itself and tool payloads: serialized size divided by four,
// rounded up, minimum one.
func estimateTokens(payload []byte) int {
	tokens := (len(payload) + 3) / 4
	if tokens < 1 {
		tokens = 1
	}
	return tokens
}
