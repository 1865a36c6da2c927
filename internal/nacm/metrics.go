package nacm

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics contains decision-engine metrics.
type Metrics struct {
	registerer prometheus.Registerer

	// evaluationTotal counts evaluations by request kind and effect.
	evaluationTotal *prometheus.CounterVec

	// evaluationDuration measures evaluation duration.
	evaluationDuration *prometheus.HistogramVec

	// defaultFallbackTotal counts decisions resolved by a default policy
	// rather than a matching rule.
	defaultFallbackTotal *prometheus.CounterVec

	// loggedDecisionTotal counts decisions carrying a logging obligation.
	loggedDecisionTotal prometheus.Counter

	// ruleCount tracks the number of rules in the active policy.
	ruleCount *prometheus.GaugeVec

	// groupCount tracks the number of groups in the active policy.
	groupCount prometheus.Gauge

	// reloadTotal counts policy snapshot swaps.
	reloadTotal prometheus.Counter
}

// NewMetrics creates decision-engine metrics registered with the default
// prometheus registerer.
func NewMetrics(namespace string) *Metrics {
	return NewMetricsWithRegisterer(namespace, prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer creates a Metrics instance with a custom
// registerer, for exposing the metrics on a host-owned registry.
func NewMetricsWithRegisterer(namespace string, registerer prometheus.Registerer) *Metrics {
	if namespace == "" {
		namespace = "nacm"
	}
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &Metrics{registerer: registerer}

	m.evaluationTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "evaluation_total",
			Help:      "Total number of access request evaluations",
		},
		[]string{"kind", "effect"},
	)

	m.evaluationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "evaluation_duration_seconds",
			Help:      "Access request evaluation duration in seconds",
			Buckets:   []float64{.00001, .0001, .0005, .001, .005, .01, .05},
		},
		[]string{"kind"},
	)

	m.defaultFallbackTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "default_fallback_total",
			Help:      "Decisions resolved by a default policy instead of a rule",
		},
		[]string{"kind"},
	)

	m.loggedDecisionTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "logged_decision_total",
			Help:      "Decisions carrying a logging obligation",
		},
	)

	m.ruleCount = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "rule_count",
			Help:      "Number of rules in the active policy snapshot",
		},
		[]string{"kind"},
	)

	m.groupCount = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "group_count",
			Help:      "Number of groups in the active policy snapshot",
		},
	)

	m.reloadTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "policy",
			Name:      "reload_total",
			Help:      "Total number of policy snapshot swaps",
		},
	)

	m.register()
	return m
}

// register registers all metrics, ignoring duplicate registration so that
// multiple engines can share a registry.
func (m *Metrics) register() {
	collectors := []prometheus.Collector{
		m.evaluationTotal,
		m.evaluationDuration,
		m.defaultFallbackTotal,
		m.loggedDecisionTotal,
		m.ruleCount,
		m.groupCount,
		m.reloadTotal,
	}
	for _, c := range collectors {
		if err := m.registerer.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				// Registration failures other than duplicates are
				// programming errors; surface them loudly.
				panic(err)
			}
		}
	}
}

// RecordEvaluation records one evaluation outcome.
func (m *Metrics) RecordEvaluation(kind string, effect Effect, duration time.Duration) {
	m.evaluationTotal.WithLabelValues(kind, string(effect)).Inc()
	m.evaluationDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordDefaultFallback records a decision resolved by a default policy.
func (m *Metrics) RecordDefaultFallback(kind string) {
	m.defaultFallbackTotal.WithLabelValues(kind).Inc()
}

// RecordLoggedDecision records a decision carrying a logging obligation.
func (m *Metrics) RecordLoggedDecision() {
	m.loggedDecisionTotal.Inc()
}

// RecordPolicySwap records a snapshot swap and updates the policy gauges.
func (m *Metrics) RecordPolicySwap(p *Policy) {
	m.reloadTotal.Inc()
	m.ruleCount.WithLabelValues("data").Set(float64(p.RuleCount()))
	m.ruleCount.WithLabelValues("command").Set(float64(p.CommandRuleCount()))
	m.groupCount.Set(float64(len(p.Groups)))
}
