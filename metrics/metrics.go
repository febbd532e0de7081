// Package metrics defines the prometheus instrumentation for a repo.Repository:
// counters for commit/pull/reset/merge-conflict operations and a histogram
// of hash-tree recompute latency, all under the "folia_" namespace.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every counter and histogram a Repository reports against.
// Safe for concurrent use after construction.
type Metrics struct {
	CommitsTotal         *prometheus.CounterVec
	PullsTotal           *prometheus.CounterVec
	ResetsTotal          prometheus.Counter
	MergeConflictsTotal  prometheus.Counter
	MergeRebasesTotal    prometheus.Counter
	HashRecomputeSeconds prometheus.Histogram
}

// New creates and registers every metric against reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CommitsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folia",
			Name:      "commits_total",
			Help:      "Total commits applied, by outcome.",
		}, []string{"outcome"}),
		PullsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "folia",
			Name:      "pulls_total",
			Help:      "Total pulls attempted, by outcome.",
		}, []string{"outcome"}),
		ResetsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "folia",
			Name:      "resets_total",
			Help:      "Total branch resets performed.",
		}),
		MergeConflictsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "folia",
			Name:      "merge_conflicts_total",
			Help:      "Total local changes dropped whole by the auto-merge protocol (keys trimmed from a surviving update are not counted).",
		}),
		MergeRebasesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "folia",
			Name:      "merge_rebases_total",
			Help:      "Total junior commits rebased onto a senior branch.",
		}),
		HashRecomputeSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "folia",
			Name:      "hash_recompute_seconds",
			Help:      "Latency of a hash-tree root recompute.",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
	}
	reg.MustRegister(
		m.CommitsTotal,
		m.PullsTotal,
		m.ResetsTotal,
		m.MergeConflictsTotal,
		m.MergeRebasesTotal,
		m.HashRecomputeSeconds,
	)
	return m
}

// ObserveHashRecompute records how long a root hash recompute took.
func (m *Metrics) ObserveHashRecompute(d time.Duration) {
	m.HashRecomputeSeconds.Observe(d.Seconds())
}
