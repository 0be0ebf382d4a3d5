package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
)

// Scorer is the pairwise relevance capability: higher means more relevant,
// no fixed range guaranteed. Used only for relative ordering.
type Scorer interface {
	Score(ctx context.Context, query, document string) (float64, error)
}

// Reranker reorders a candidate list with a cross-encoder style pairwise
// model. It holds no state between calls.
type Reranker struct {
	scorer Scorer
	logger *slog.Logger
}

// NewReranker creates a Reranker.
func NewReranker(scorer Scorer, logger *slog.Logger) *Reranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{scorer: scorer, logger: logger}
}

// Rerank scores every (query, chunk) pair independently, sorts descending,
// and truncates to topK. An empty candidate list returns immediately without
// touching the scoring model. A scorer failure propagates typed so the
// caller can fall back to the fused ordering.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []domain.CandidateResult, topK int) ([]domain.RankedResult, error) {
	if len(candidates) == 0 {
		return []domain.RankedResult{}, nil
	}

	ranked := make([]domain.RankedResult, len(candidates))
	for i, c := range candidates {
		score, err := r.scorer.Score(ctx, query, c.Chunk.Content)
		if err != nil {
			return nil, fmt.Errorf("retrieval: rerank pair %d: %w: %w", i, domain.ErrModelUnavailable, err)
		}
		ranked[i] = domain.RankedResult{Chunk: c.Chunk, FusedScore: score}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].FusedScore > ranked[j].FusedScore
	})

	if topK > 0 && len(ranked) > topK {
		ranked = ranked[:topK]
	}
	return ranked, nil
}

// PassThrough converts fused candidates to ranked results without model
// scoring. Callers with strict latency budgets use this to skip the rerank
// stage while keeping one downstream type.
func PassThrough(candidates []domain.CandidateResult, topK int) []domain.RankedResult {
	n := len(candidates)
	if topK > 0 && n > topK {
		n = topK
	}
	out := make([]domain.RankedResult, n)
	for i := 0; i < n; i++ {
		out[i] = domain.RankedResult{Chunk: candidates[i].Chunk, FusedScore: candidates[i].Score}
	}
	return out
}
