package xform

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	lblPhase = "phase"
	lblRule  = "rule"
)

// Metrics counts plan search work. A nil *Metrics records nothing.
type Metrics struct {
	TasksExecuted    *prometheus.CounterVec
	RulesApplied     *prometheus.CounterVec
	GroupMerges      prometheus.Counter
	Truncations      prometheus.Counter
	OptimizeDuration prometheus.Histogram
}

// NewMetrics creates the optimizer metrics and registers them with reg, if
// reg is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TasksExecuted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cascades",
			Subsystem: "optimizer",
			Name:      "tasks_executed_total",
			Help:      "Number of optimizer tasks executed, by phase.",
		}, []string{lblPhase}),
		RulesApplied: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "cascades",
			Subsystem: "optimizer",
			Name:      "rules_applied_total",
			Help:      "Number of rule applications that passed their check, by rule.",
		}, []string{lblRule}),
		GroupMerges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cascades",
			Subsystem: "optimizer",
			Name:      "group_merges_total",
			Help:      "Number of memo groups merged into an equivalent group.",
		}),
		Truncations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "cascades",
			Subsystem: "optimizer",
			Name:      "explore_truncations_total",
			Help:      "Number of compilations whose exploration was cut short.",
		}),
		OptimizeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "cascades",
			Subsystem: "optimizer",
			Name:      "optimize_duration_seconds",
			Help:      "Histogram of compilation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16), // 100us ~ 3s
		}),
	}
	if reg != nil {
		reg.MustRegister(m.TasksExecuted, m.RulesApplied, m.GroupMerges, m.Truncations, m.OptimizeDuration)
	}
	return m
}

func (m *Metrics) taskExecuted(p phase) {
	if m != nil {
		m.TasksExecuted.WithLabelValues(p.String()).Inc()
	}
}

func (m *Metrics) ruleApplied(name string) {
	if m != nil {
		m.RulesApplied.WithLabelValues(name).Inc()
	}
}

func (m *Metrics) groupMerged() {
	if m != nil {
		m.GroupMerges.Inc()
	}
}

func (m *Metrics) truncated() {
	if m != nil {
		m.Truncations.Inc()
	}
}

func (m *Metrics) observeDuration(seconds float64) {
	if m != nil {
		m.OptimizeDuration.Observe(seconds)
	}
}
