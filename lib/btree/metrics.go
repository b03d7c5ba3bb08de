package btree

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// treeMetrics bundles the per-tree counters. Metrics are registered in the
// global set under a tree label, so several trees in one process stay
// distinguishable.
type treeMetrics struct {
	inserts        *metrics.Counter
	deletes        *metrics.Counter
	gets           *metrics.Counter
	browses        *metrics.Counter
	journalRecords *metrics.Counter
	journalErrors  *metrics.Counter
	checkpoints    *metrics.Counter
	reapedTxns     *metrics.Counter
}

func newTreeMetrics(name string) *treeMetrics {
	counter := func(metric string) *metrics.Counter {
		return metrics.GetOrCreateCounter(fmt.Sprintf(`bkv_%s_total{tree=%q}`, metric, name))
	}

	return &treeMetrics{
		inserts:        counter("inserts"),
		deletes:        counter("deletes"),
		gets:           counter("gets"),
		browses:        counter("browses"),
		journalRecords: counter("journal_records"),
		journalErrors:  counter("journal_errors"),
		checkpoints:    counter("checkpoints"),
		reapedTxns:     counter("reaped_transactions"),
	}
}

// WriteMetrics writes all registered tree metrics in Prometheus text
// format to the given writer
func WriteMetrics(w io.Writer) {
	metrics.WritePrometheus(w, false)
}
