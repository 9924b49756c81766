package runs

import (
	"quantgate-hq/ganymede/pkg/artifact"
	"quantgate-hq/ganymede/pkg/policy"
)

// ResolveDecision folds the three review outcomes into one final decision.
//
// The rule ordering is load-bearing:
//
//  1. A deterministic fail is absolute. No agent or trader outcome can
//     override it.
//  2. An agent fail becomes a final fail when either agent blocking gate
//     is set; otherwise it degrades to conditional_pass.
//  3. When trader review is required, a rejection is a fail and anything
//     short of an approval holds the run at conditional_pass. An approval
//     carries the trader's own decision, which can itself be
//     conditional_pass.
//  4. An agent conditional_pass caps the result at conditional_pass.
//  5. Only then does the run pass.
//
// An unresolved trader review can therefore only downgrade the outcome,
// never upgrade it.
func ResolveDecision(deterministic string, agent *artifact.AgentReview, trader *artifact.TraderReview, pol *policy.ReviewPolicy) string {
	if deterministic == artifact.StatusFail {
		return artifact.DecisionFail
	}

	if agent.Status == artifact.StatusFail {
		if pol.BlockMergeOnAgentFail || pol.BlockReleaseOnAgentFail {
			return artifact.DecisionFail
		}
		return artifact.DecisionConditionalPass
	}

	if pol.RequireTraderReview {
		switch trader.Status {
		case artifact.TraderRejected:
			return artifact.DecisionFail
		case artifact.TraderApproved:
			if trader.Decision == artifact.DecisionConditionalPass {
				return artifact.DecisionConditionalPass
			}
		default:
			return artifact.DecisionConditionalPass
		}
	}

	if agent.Status == artifact.StatusConditionalPass {
		return artifact.DecisionConditionalPass
	}

	return artifact.DecisionPass
}
