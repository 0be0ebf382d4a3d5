// Package retrieval fuses dense and sparse retrieval into one ranked
// candidate list and optionally reorders it with a pairwise relevance model.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
	"github.com/InfraSageAI/infrasage-mvp/pkg/fn"
	"github.com/InfraSageAI/infrasage-mvp/pkg/metrics"
)

// Retriever is one search variant over the chunk corpus.
type Retriever interface {
	Search(ctx context.Context, query string, k int) ([]domain.CandidateResult, error)
}

// rrfK dampens the contribution of top ranks in reciprocal-rank fusion so a
// single first place cannot dominate the combined ranking.
const rrfK = 60

// Weights are the fixed per-retriever fusion weights. They are configuration
// constants, never derived at runtime.
type Weights struct {
	Dense  float64
	Sparse float64
}

// DefaultWeights favors vector search slightly.
func DefaultWeights() Weights {
	return Weights{Dense: 0.7, Sparse: 0.3}
}

// Validate rejects weight configurations that would disable fusion entirely.
func (w Weights) Validate() error {
	if w.Dense < 0 || w.Sparse < 0 {
		return domain.NewConfigError("retrieval.weights", "weights must be non-negative")
	}
	if w.Dense == 0 && w.Sparse == 0 {
		return domain.NewConfigError("retrieval.weights", "at least one weight must be positive")
	}
	return nil
}

// Hybrid combines a dense and a sparse retriever with weighted-rank fusion.
type Hybrid struct {
	dense  Retriever
	sparse Retriever
	w      Weights
	logger *slog.Logger
}

// NewHybrid creates a Hybrid retriever. Weight errors are configuration
// errors and fail construction.
func NewHybrid(dense, sparse Retriever, w Weights, logger *slog.Logger) (*Hybrid, error) {
	if err := w.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Hybrid{dense: dense, sparse: sparse, w: w, logger: logger}, nil
}

// Retrieve runs both searches independently and merges them: each retriever
// contributes weight/(rrfK+rank+1) per hit, and a chunk appearing in both
// lists accumulates both contributions. If one retriever fails or returns
// nothing, fusion degrades to the other's ranking; only both failing is an
// error.
func (h *Hybrid) Retrieve(ctx context.Context, query string, k int) ([]domain.CandidateResult, error) {
	start := time.Now()
	defer func() {
		metrics.RetrievalDuration.WithLabelValues("hybrid").Observe(time.Since(start).Seconds())
	}()

	results := fn.FanOut(
		func() fn.Result[[]domain.CandidateResult] {
			return fn.FromPair(h.dense.Search(ctx, query, k))
		},
		func() fn.Result[[]domain.CandidateResult] {
			return fn.FromPair(h.sparse.Search(ctx, query, k))
		},
	)
	denseHits, denseErr := results[0].Unwrap()
	sparseHits, sparseErr := results[1].Unwrap()

	if denseErr != nil && sparseErr != nil {
		return nil, fmt.Errorf("retrieval: dense: %w; sparse: %w", denseErr, sparseErr)
	}
	if denseErr != nil {
		h.logger.Warn("retrieval: dense search failed, degrading to sparse only", "err", denseErr)
		metrics.RetrievalDegradations.Inc()
		return truncate(sparseHits, k), nil
	}
	if sparseErr != nil {
		h.logger.Warn("retrieval: sparse search failed, degrading to dense only", "err", sparseErr)
		metrics.RetrievalDegradations.Inc()
		return truncate(denseHits, k), nil
	}

	fused := fuseRanked(denseHits, sparseHits, h.w)
	return truncate(fused, k), nil
}

// fuseRanked performs weighted reciprocal-rank fusion of the two candidate
// lists. The fused score replaces the retriever-specific scores, which are
// not comparable across retrievers.
func fuseRanked(dense, sparse []domain.CandidateResult, w Weights) []domain.CandidateResult {
	type entry struct {
		chunk domain.Chunk
		score float64
		first int // arrival order for stable ties
	}
	byKey := make(map[string]*entry)
	order := 0

	accumulate := func(hits []domain.CandidateResult, weight float64) {
		for rank, hit := range hits {
			contribution := weight / float64(rrfK+rank+1)
			key := hit.Chunk.Key()
			if e, ok := byKey[key]; ok {
				e.score += contribution
				continue
			}
			byKey[key] = &entry{chunk: hit.Chunk, score: contribution, first: order}
			order++
		}
	}
	accumulate(dense, w.Dense)
	accumulate(sparse, w.Sparse)

	merged := make([]*entry, 0, len(byKey))
	for _, e := range byKey {
		merged = append(merged, e)
	}
	sort.Slice(merged, func(i, j int) bool {
		if merged[i].score != merged[j].score {
			return merged[i].score > merged[j].score
		}
		return merged[i].first < merged[j].first
	})

	out := make([]domain.CandidateResult, len(merged))
	for i, e := range merged {
		out[i] = domain.CandidateResult{
			Chunk:  e.chunk,
			Score:  e.score,
			Origin: originOf(e.chunk, dense),
		}
	}
	return out
}

// originOf reports dense when the chunk appeared in the dense list, sparse
// otherwise. A chunk seen by both is credited to dense.
func originOf(c domain.Chunk, dense []domain.CandidateResult) domain.Origin {
	key := c.Key()
	for _, h := range dense {
		if h.Chunk.Key() == key {
			return domain.OriginDense
		}
	}
	return domain.OriginSparse
}

func truncate(hits []domain.CandidateResult, k int) []domain.CandidateResult {
	if k > 0 && len(hits) > k {
		return hits[:k]
	}
	return hits
}
