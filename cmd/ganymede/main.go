// Ganymede validates machine-generated trading strategy artifacts.
//
// It combines a deterministic rule engine with a budget-bounded agent
// review lane, producing canonical, schema-frozen validation artifacts:
//   - Indicator fidelity, trade coherence, metric consistency, and
//     lineage completeness checks
//   - Cost-bounded agent review with a restricted tool surface
//   - Policy-gated decision resolution across review lanes
//   - Baselines and regression replay over past decisions
//
// Usage:
//
//	# Lint a review policy file
//	ganymede validate --file policy.yaml
//
//	# Evaluate an evidence document against a policy
//	ganymede run --evidence evidence.yaml --policy policy.yaml
//
//	# Compare two run artifacts
//	ganymede replay --baseline base.json --candidate cand.json
//
//	# Show version information
//	ganymede version
package main

func main() {
	Execute()
}
