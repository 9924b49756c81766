package runs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics tracks orchestrator-level metrics.
//
// Metrics:
//   - ganymede_runs_created_total: Runs created, by profile
//   - ganymede_run_decisions_total: Final decisions, by decision value
//   - ganymede_check_failures_total: Deterministic check failures, by check
//   - ganymede_budget_breaches_total: Agent review budget breaches, by reason
//   - ganymede_idempotent_replays_total: Requests answered from the idempotency store
//   - ganymede_idempotency_conflicts_total: Key reuse with a different payload
//   - ganymede_storage_rollbacks_total: Compensating rollbacks that themselves failed
//   - ganymede_run_pipeline_duration_seconds: End-to-end create_run duration
type Metrics struct {
	runsCreated     *prometheus.CounterVec
	decisions       *prometheus.CounterVec
	checkFailures   *prometheus.CounterVec
	budgetBreaches  *prometheus.CounterVec
	replays         prometheus.Counter
	conflicts       prometheus.Counter
	rollbacks       prometheus.Counter
	pipelineSeconds prometheus.Histogram
}

// NewMetrics creates and registers orchestrator metrics with the provided
// registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		runsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ganymede_runs_created_total",
				Help: "Total number of validation runs created",
			},
			[]string{"profile"},
		),

		decisions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ganymede_run_decisions_total",
				Help: "Total number of final run decisions",
			},
			[]string{"decision"},
		),

		checkFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ganymede_check_failures_total",
				Help: "Total number of deterministic check failures",
			},
			[]string{"check"},
		),

		budgetBreaches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ganymede_budget_breaches_total",
				Help: "Total number of agent review budget breaches",
			},
			[]string{"reason"},
		),

		replays: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ganymede_idempotent_replays_total",
				Help: "Total number of requests answered from the idempotency store",
			},
		),

		conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ganymede_idempotency_conflicts_total",
				Help: "Total number of idempotency key reuses with a different payload",
			},
		),

		rollbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ganymede_storage_rollbacks_total",
				Help: "Total number of compensating rollbacks that themselves failed",
			},
		),

		pipelineSeconds: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ganymede_run_pipeline_duration_seconds",
				Help:    "End-to-end duration of the create_run pipeline in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 16), // 1ms to ~32s
			},
		),
	}

	registry.MustRegister(
		m.runsCreated,
		m.decisions,
		m.checkFailures,
		m.budgetBreaches,
		m.replays,
		m.conflicts,
		m.rollbacks,
		m.pipelineSeconds,
	)

	return m
}

// RecordRunCreated records a created run. Nil receivers are no-ops so the
// orchestrator can run without a registry.
func (m *Metrics) RecordRunCreated(profile string) {
	if m == nil {
		return
	}
	m.runsCreated.WithLabelValues(profile).Inc()
}

// RecordDecision records a final decision.
func (m *Metrics) RecordDecision(decision string) {
	if m == nil {
		return
	}
	m.decisions.WithLabelValues(decision).Inc()
}

// RecordCheckFailure records one failing deterministic check.
func (m *Metrics) RecordCheckFailure(check string) {
	if m == nil {
		return
	}
	m.checkFailures.WithLabelValues(check).Inc()
}

// RecordBudgetBreach records an agent review budget breach.
func (m *Metrics) RecordBudgetBreach(reason string) {
	if m == nil {
		return
	}
	m.budgetBreaches.WithLabelValues(reason).Inc()
}

// RecordReplay records a request answered from the idempotency store.
func (m *Metrics) RecordReplay() {
	if m == nil {
		return
	}
	m.replays.Inc()
}

// RecordConflict records an idempotency conflict.
func (m *Metrics) RecordConflict() {
	if m == nil {
		return
	}
	m.conflicts.Inc()
}

// RecordRollbackFailure records a compensating rollback failure.
func (m *Metrics) RecordRollbackFailure() {
	if m == nil {
		return
	}
	m.rollbacks.Inc()
}

// RecordPipelineDuration records one create_run pipeline duration.
func (m *Metrics) RecordPipelineDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.pipelineSeconds.Observe(d.Seconds())
}
