package policy

import (
	"bytes"
	"encoding/json"

	"gopkg.in/yaml.v3"
)

// wirePolicy mirrors ReviewPolicy with pointer fields so that missing keys
// are distinguishable from explicit false. Every gate is required on the
// wire.
type wirePolicy struct {
	Profile                         *string  `json:"profile" yaml:"profile"`
	BlockMergeOnFail                *bool    `json:"blockMergeOnFail" yaml:"blockMergeOnFail"`
	BlockReleaseOnFail              *bool    `json:"blockReleaseOnFail" yaml:"blockReleaseOnFail"`
	BlockMergeOnAgentFail           *bool    `json:"blockMergeOnAgentFail" yaml:"blockMergeOnAgentFail"`
	BlockReleaseOnAgentFail         *bool    `json:"blockReleaseOnAgentFail" yaml:"blockReleaseOnAgentFail"`
	RequireTraderReview             *bool    `json:"requireTraderReview" yaml:"requireTraderReview"`
	HardFailOnMissingIndicators     *bool    `json:"hardFailOnMissingIndicators" yaml:"hardFailOnMissingIndicators"`
	FailClosedOnEvidenceUnavailable *bool    `json:"failClosedOnEvidenceUnavailable" yaml:"failClosedOnEvidenceUnavailable"`
	MetricDriftTolerancePct         *float64 `json:"metricDriftTolerancePct" yaml:"metricDriftTolerancePct"`
}

// Parse decodes a policy contract payload from strict JSON. Unknown fields,
// missing gates, unknown profiles, and invariant violations are all
// InvalidError; nothing is coerced.
func Parse(raw []byte) (*ReviewPolicy, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()

	var w wirePolicy
	if err := dec.Decode(&w); err != nil {
		return nil, &InvalidError{Reason: "malformed policy payload", Cause: err}
	}
	return w.resolve()
}

// ParseYAML decodes a policy document from YAML (or JSON, which YAML
// subsumes) with unknown-field rejection. Used by the file watcher and CLI.
func ParseYAML(raw []byte) (*ReviewPolicy, error) {
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)

	var w wirePolicy
	if err := dec.Decode(&w); err != nil {
		return nil, &InvalidError{Reason: "malformed policy document", Cause: err}
	}
	return w.resolve()
}

// resolve converts a wire payload into a validated ReviewPolicy.
func (w *wirePolicy) resolve() (*ReviewPolicy, error) {
	required := []struct {
		name string
		set  bool
	}{
		{"profile", w.Profile != nil},
		{"blockMergeOnFail", w.BlockMergeOnFail != nil},
		{"blockReleaseOnFail", w.BlockReleaseOnFail != nil},
		{"blockMergeOnAgentFail", w.BlockMergeOnAgentFail != nil},
		{"blockReleaseOnAgentFail", w.BlockReleaseOnAgentFail != nil},
		{"requireTraderReview", w.RequireTraderReview != nil},
		{"hardFailOnMissingIndicators", w.HardFailOnMissingIndicators != nil},
		{"failClosedOnEvidenceUnavailable", w.FailClosedOnEvidenceUnavailable != nil},
	}
	for _, r := range required {
		if !r.set {
			return nil, &InvalidError{Field: r.name, Reason: "required field missing"}
		}
	}

	p := &ReviewPolicy{
		Profile:                         Profile(*w.Profile),
		BlockMergeOnFail:                *w.BlockMergeOnFail,
		BlockReleaseOnFail:              *w.BlockReleaseOnFail,
		BlockMergeOnAgentFail:           *w.BlockMergeOnAgentFail,
		BlockReleaseOnAgentFail:         *w.BlockReleaseOnAgentFail,
		RequireTraderReview:             *w.RequireTraderReview,
		HardFailOnMissingIndicators:     *w.HardFailOnMissingIndicators,
		FailClosedOnEvidenceUnavailable: *w.FailClosedOnEvidenceUnavailable,
		MetricDriftTolerancePct:         w.MetricDriftTolerancePct,
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// Validate checks an already-constructed policy against the closed profile
// set and the constant-true invariants.
func Validate(p *ReviewPolicy) error {
	if !KnownProfile(p.Profile) {
		return &InvalidError{Field: "profile", Reason: "unknown profile " + string(p.Profile)}
	}
	if !p.HardFailOnMissingIndicators {
		return &InvalidError{Field: "hardFailOnMissingIndicators", Reason: "must be true"}
	}
	if !p.FailClosedOnEvidenceUnavailable {
		return &InvalidError{Field: "failClosedOnEvidenceUnavailable", Reason: "must be true"}
	}
	if p.MetricDriftTolerancePct != nil && *p.MetricDriftTolerancePct <= 0 {
		return &InvalidError{Field: "metricDriftTolerancePct", Reason: "must be positive when set"}
	}
	return nil
}
