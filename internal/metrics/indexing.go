package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Indexing pipeline metrics.
var (
	DocumentsIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "documents_indexed_total",
			Help:      "Indexing runs by outcome",
		},
		[]string{"outcome"}, // completed, partial, failed, aborted
	)

	SegmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "segments_total",
			Help:      "Segments processed by result",
		},
		[]string{"result"}, // indexed, embed_failed, upsert_failed, truncated
	)

	IndexingDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "indexing_duration_seconds",
			Help:      "Wall time of one indexing run",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		},
	)

	RollbackStepsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "rollback_steps_total",
			Help:      "Compensating actions by step and result",
		},
		[]string{"step", "result"},
	)

	DeletionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "deletions_total",
			Help:      "Deletion cascade steps by store and result",
		},
		[]string{"store", "result"},
	)
)

var registerIndexingOnce sync.Once

// RegisterIndexingMetrics registers pipeline collectors. Safe to call more than once.
func RegisterIndexingMetrics() {
	registerIndexingOnce.Do(func() {
		prometheus.MustRegister(
			DocumentsIndexedTotal,
			SegmentsTotal,
			IndexingDuration,
			RollbackStepsTotal,
			DeletionsTotal,
		)
	})
}

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// ResultLabel maps an error to ResultOK or ResultError.
func ResultLabel(err error) string {
	if err != nil {
		return ResultError
	}
	return ResultOK
}
