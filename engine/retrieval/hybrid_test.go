package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
	"github.com/InfraSageAI/infrasage-mvp/engine/store"
)

// stubRetriever serves canned hits or a canned error.
type stubRetriever struct {
	hits []domain.CandidateResult
	err  error
}

func (s *stubRetriever) Search(context.Context, string, int) ([]domain.CandidateResult, error) {
	return s.hits, s.err
}

// bm25Retriever adapts a raw BM25 index for fusion tests.
type bm25Retriever struct{ idx *store.BM25Index }

func (b *bm25Retriever) Search(_ context.Context, query string, k int) ([]domain.CandidateResult, error) {
	return b.idx.Search(query, k), nil
}

func cand(content, source, id string, score float64, origin domain.Origin) domain.CandidateResult {
	return domain.CandidateResult{
		Chunk: domain.Chunk{
			Content: content,
			Metadata: map[string]string{
				domain.MetaSource:  source,
				domain.MetaChunkID: id,
			},
		},
		Score:  score,
		Origin: origin,
	}
}

func TestNewHybrid_RejectsBadWeights(t *testing.T) {
	_, err := NewHybrid(&stubRetriever{}, &stubRetriever{}, Weights{Dense: -1, Sparse: 0.5}, nil)
	var cfgErr *domain.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigError, got %v", err)
	}
	if _, err := NewHybrid(&stubRetriever{}, &stubRetriever{}, Weights{}, nil); err == nil {
		t.Fatal("all-zero weights must be rejected")
	}
}

func TestHybrid_ChunkInBothListsAccumulates(t *testing.T) {
	shared := cand("SELinux enforces mandatory access control.", "doc1", "0", 0.9, domain.OriginDense)
	denseOnly := cand("Routes expose services.", "doc3", "0", 0.8, domain.OriginDense)
	sparseOnly := cand("firewalld is the default.", "doc2", "0", 5.1, domain.OriginSparse)

	dense := &stubRetriever{hits: []domain.CandidateResult{denseOnly, shared}}
	sparse := &stubRetriever{hits: []domain.CandidateResult{shared, sparseOnly}}

	h, err := NewHybrid(dense, sparse, DefaultWeights(), nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := h.Retrieve(context.Background(), "selinux", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 fused results, got %d", len(got))
	}
	// The shared chunk collects dense rank-2 plus sparse rank-1 weight and
	// must outrank the dense-only rank-1 chunk.
	if got[0].Chunk.Source() != "doc1" {
		t.Fatalf("expected shared chunk first, got %s", got[0].Chunk.Source())
	}
	if got[0].Origin != domain.OriginDense {
		t.Fatalf("shared chunk should be credited to dense, got %s", got[0].Origin)
	}
}

func TestHybrid_OneRetrieverEmptyDegrades(t *testing.T) {
	dense := &stubRetriever{hits: nil}
	sparse := &stubRetriever{hits: []domain.CandidateResult{
		cand("firewalld is the default.", "doc2", "0", 4.2, domain.OriginSparse),
	}}

	h, err := NewHybrid(dense, sparse, DefaultWeights(), nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := h.Retrieve(context.Background(), "firewall", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Chunk.Source() != "doc2" {
		t.Fatalf("expected sparse-only result, got %+v", got)
	}
}

func TestHybrid_DenseFailureDegradesToSparse(t *testing.T) {
	dense := &stubRetriever{err: domain.ErrModelUnavailable}
	sparse := &stubRetriever{hits: []domain.CandidateResult{
		cand("dnf installs packages.", "doc4", "0", 3.3, domain.OriginSparse),
	}}

	h, err := NewHybrid(dense, sparse, DefaultWeights(), nil)
	if err != nil {
		t.Fatal(err)
	}
	got, err := h.Retrieve(context.Background(), "dnf install", 5)
	if err != nil {
		t.Fatalf("dense failure must not fail the query: %v", err)
	}
	if len(got) != 1 || got[0].Origin != domain.OriginSparse {
		t.Fatalf("expected sparse results, got %+v", got)
	}
}

func TestHybrid_BothFailuresError(t *testing.T) {
	dense := &stubRetriever{err: errors.New("dense down")}
	sparse := &stubRetriever{err: errors.New("sparse down")}

	h, err := NewHybrid(dense, sparse, DefaultWeights(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := h.Retrieve(context.Background(), "anything", 5); err == nil {
		t.Fatal("expected error when both retrievers fail")
	}
}

// Dense similarity and sparse term overlap both point at the SELinux chunk;
// the fused ranking must keep it above the firewall chunk.
func TestHybrid_SELinuxQueryRanksSELinuxDocFirst(t *testing.T) {
	doc1 := cand("SELinux enforces mandatory access control.", "doc1", "0", 0.91, domain.OriginDense)
	doc2 := cand("The firewall default service is firewalld.", "doc2", "0", 0.42, domain.OriginDense)

	idx := store.NewBM25Index()
	idx.Add([]domain.Chunk{doc1.Chunk, doc2.Chunk})

	dense := &stubRetriever{hits: []domain.CandidateResult{doc1, doc2}}
	h, err := NewHybrid(dense, &bm25Retriever{idx: idx}, DefaultWeights(), nil)
	if err != nil {
		t.Fatal(err)
	}

	got, err := h.Retrieve(context.Background(), "how do I check SELinux status", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) == 0 || got[0].Chunk.Source() != "doc1" {
		t.Fatalf("expected doc1 ranked first, got %+v", got)
	}
}
