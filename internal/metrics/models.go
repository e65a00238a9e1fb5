// Package metrics exposes Prometheus collectors for the HTTP API, model providers and the indexing pipeline.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Namespace prefixes every docrag metric.
const Namespace = "docrag"

// Model provider metrics. Kind is "embedding" or "generation".
var (
	ModelRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "model_requests_total",
			Help:      "Total number of model provider requests",
		},
		[]string{"kind", "provider", "model", "status"},
	)

	ModelRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "model_request_duration_seconds",
			Help:      "Model provider request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"kind", "provider", "model"},
	)

	ModelTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "model_tokens_total",
			Help:      "Total tokens consumed",
		},
		[]string{"kind", "provider", "model", "type"},
	)

	ModelErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "model_errors_total",
			Help:      "Total model provider errors",
		},
		[]string{"kind", "provider", "model", "error_type"},
	)

	EmbeddingRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "embedding_retries_total",
			Help:      "Embedding attempts beyond the first",
		},
	)

	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "embedding_cache_total",
			Help:      "Embedding cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

// Kinds of model calls.
const (
	KindEmbedding  = "embedding"
	KindGeneration = "generation"
)

var registerModelOnce sync.Once

// RegisterModelMetrics registers the model provider collectors. Safe to call more than once.
func RegisterModelMetrics() {
	registerModelOnce.Do(func() {
		prometheus.MustRegister(
			ModelRequestsTotal,
			ModelRequestDuration,
			ModelTokensTotal,
			ModelErrorsTotal,
			EmbeddingRetriesTotal,
			EmbeddingCacheTotal,
		)
	})
}
