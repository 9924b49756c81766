package policy

// Profile selects a validation depth and its associated cost budget.
type Profile string

const (
	// ProfileFast runs the cheapest validation lane: no tool calls and the
	// loosest review budget.
	ProfileFast Profile = "FAST"

	// ProfileStandard is the default validation lane.
	ProfileStandard Profile = "STANDARD"

	// ProfileExpert runs the deepest validation lane with the tightest
	// metric drift tolerance.
	ProfileExpert Profile = "EXPERT"
)

// defaultDriftTolerance maps each profile to its metric drift tolerance in
// percent. A policy may override this with MetricDriftTolerancePct.
var defaultDriftTolerance = map[Profile]float64{
	ProfileFast:     0.5,
	ProfileStandard: 1.0,
	ProfileExpert:   0.25,
}

// ReviewPolicy is the parsed, immutable policy governing one validation run.
//
// HardFailOnMissingIndicators and FailClosedOnEvidenceUnavailable are
// constant-true invariants: Parse and Validate reject any payload that sets
// them to false.
//
// MetricDriftTolerancePct is caller-controlled even though it changes
// pass/fail outcomes; gating overrides on actor roles is the identity
// collaborator's concern, not this package's.
type ReviewPolicy struct {
	Profile Profile `json:"profile" yaml:"profile"`

	// Blocking gates.
	BlockMergeOnFail        bool `json:"blockMergeOnFail" yaml:"blockMergeOnFail"`
	BlockReleaseOnFail      bool `json:"blockReleaseOnFail" yaml:"blockReleaseOnFail"`
	BlockMergeOnAgentFail   bool `json:"blockMergeOnAgentFail" yaml:"blockMergeOnAgentFail"`
	BlockReleaseOnAgentFail bool `json:"blockReleaseOnAgentFail" yaml:"blockReleaseOnAgentFail"`
	RequireTraderReview     bool `json:"requireTraderReview" yaml:"requireTraderReview"`

	// Constant-true invariants.
	HardFailOnMissingIndicators     bool `json:"hardFailOnMissingIndicators" yaml:"hardFailOnMissingIndicators"`
	FailClosedOnEvidenceUnavailable bool `json:"failClosedOnEvidenceUnavailable" yaml:"failClosedOnEvidenceUnavailable"`

	// MetricDriftTolerancePct overrides the per-profile default when set.
	MetricDriftTolerancePct *float64 `json:"metricDriftTolerancePct,omitempty" yaml:"metricDriftTolerancePct,omitempty"`
}

// KnownProfile reports whether p is one of the closed profile set.
func KnownProfile(p Profile) bool {
	switch p {
	case ProfileFast, ProfileStandard, ProfileExpert:
		return true
	}
	return false
}

// ResolvedDriftTolerancePct returns the effective metric drift tolerance:
// the explicit override when present, otherwise the profile default.
func (p *ReviewPolicy) ResolvedDriftTolerancePct() float64 {
	if p.MetricDriftTolerancePct != nil {
		return *p.MetricDriftTolerancePct
	}
	return defaultDriftTolerance[p.Profile]
}
