package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "keycond"
	metricsSubsystem = "planner"

	tableLabelName  = "table"
	reasonLabelName = "reason"
	statusLabelName = "status"

	reasonPartition = "partition"
	reasonKey       = "primary_key"
)

// plannerMetrics are the counters a Planner updates.
type plannerMetrics struct {
	plans         *prometheus.CounterVec
	partsSelected *prometheus.CounterVec
	partsPruned   *prometheus.CounterVec
	marksTotal    *prometheus.CounterVec
	marksSelected *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	planLatency   *prometheus.HistogramVec
}

func newPlannerMetrics(reg prometheus.Registerer) *plannerMetrics {
	m := &plannerMetrics{
		plans: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "plans_total",
				Help:      "planned queries by outcome",
			}, []string{tableLabelName, statusLabelName}),
		partsSelected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "parts_selected_total",
				Help:      "parts with at least one selected mark range",
			}, []string{tableLabelName}),
		partsPruned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "parts_pruned_total",
				Help:      "parts skipped entirely, by the index that excluded them",
			}, []string{tableLabelName, reasonLabelName}),
		marksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "marks_total",
				Help:      "marks of all parts considered by the planner",
			}, []string{tableLabelName}),
		marksSelected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "marks_selected_total",
				Help:      "marks the planner selected for reading",
			}, []string{tableLabelName}),
		cacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "condition_cache_lookups_total",
				Help:      "compiled condition cache lookups by result",
			}, []string{statusLabelName}),
		planLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: metricsSubsystem,
				Name:      "plan_latency_seconds",
				Help:      "time spent planning one query",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			}, []string{tableLabelName}),
	}
	if reg != nil {
		m.plans = register(reg, m.plans)
		m.partsSelected = register(reg, m.partsSelected)
		m.partsPruned = register(reg, m.partsPruned)
		m.marksTotal = register(reg, m.marksTotal)
		m.marksSelected = register(reg, m.marksSelected)
		m.cacheLookups = register(reg, m.cacheLookups)
		m.planLatency = register(reg, m.planLatency)
	}
	return m
}

// register adds c to reg. When an identical collector is already
// registered, for example by another planner sharing the registry, the
// existing one is returned and both planners update it.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}
