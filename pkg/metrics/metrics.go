// Package metrics defines the Prometheus collectors for the InfraSage
// pipeline and exposes them via the standard /metrics handler.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RetrievalDuration tracks end-to-end latency of one retrieval call,
	// labelled by retriever (hybrid, dense, sparse).
	RetrievalDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "infrasage_retrieval_duration_seconds",
		Help:    "Latency of retrieval calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"retriever"})

	// RetrievalDegradations counts queries where one retriever failed and
	// fusion fell back to the surviving side.
	RetrievalDegradations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "infrasage_retrieval_degradations_total",
		Help: "Queries answered by a single retriever after the other failed.",
	})

	// FetchCacheHits and FetchCacheMisses track web fetch cache behaviour.
	FetchCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "infrasage_fetch_cache_hits_total",
		Help: "Web fetches served from the in-memory cache.",
	})
	FetchCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "infrasage_fetch_cache_misses_total",
		Help: "Web fetches that went to the network.",
	})

	// FetchFailures counts fetches excluded from fusion, labelled by reason
	// (network, status, quality).
	FetchFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "infrasage_fetch_failures_total",
		Help: "Web fetches that produced no document.",
	}, []string{"reason"})

	// FusionTruncations counts fused contexts cut at the length limit.
	FusionTruncations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "infrasage_fusion_truncations_total",
		Help: "Fused contexts truncated to the configured maximum length.",
	})

	// IngestedChunks counts chunks written to the document store.
	IngestedChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "infrasage_ingested_chunks_total",
		Help: "Chunks indexed into the document store.",
	})
)

// Handler returns the HTTP handler serving the default registry in the
// Prometheus text exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}
