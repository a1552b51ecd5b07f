// Package metrics holds the Prometheus collectors shared by the graph store,
// the audit trail, and the snapshot engine.
//
// Collectors register on the default registry at init via promauto, so every
// package records into the same series regardless of how many stores a
// process opens. A long-running host scrapes them through
// prometheus.DefaultGatherer; the CLI dumps them with WriteTextfile.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WriteTextfile writes every collector of the default registry to path in
// the text exposition format, for node_exporter's textfile collector.
func WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, prometheus.DefaultGatherer)
}

var (
	// MutationsTotal counts audited entity lifecycle events.
	MutationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thinkgraph_mutations_total",
		Help: "Total number of audited entity mutations",
	}, []string{"entity", "action"})

	// TxDuration observes the wall time of every unit of work.
	TxDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "thinkgraph_tx_duration_seconds",
		Help:    "Duration of store transactions",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})

	// TxRollbacks counts units of work that were rolled back.
	TxRollbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "thinkgraph_tx_rollbacks_total",
		Help: "Total number of rolled back store transactions",
	})

	// GraphReplacements counts destructive replaces by source (load, import, clear).
	GraphReplacements = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "thinkgraph_graph_replacements_total",
		Help: "Total number of full graph replacements",
	}, []string{"source"})

	// IntegrityIssues reports the issue count of the most recent audit verification.
	IntegrityIssues = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "thinkgraph_audit_integrity_issues",
		Help: "Number of issues found by the last audit integrity check",
	})
)
