// Package store implements the Document Store: chunked text with provenance
// metadata, retrievable through a dense (embedding-similarity) index backed
// by Qdrant and a sparse (BM25) index held in-process with an on-disk
// snapshot.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
	"github.com/google/uuid"
)

// Embedder is the embedding capability: deterministic for identical input,
// fixed dimensionality per model.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// DenseIndex abstracts the vector side of the store. *QdrantIndex is the
// production implementation.
type DenseIndex interface {
	EnsureCollection(ctx context.Context, dims int) error
	Upsert(ctx context.Context, points []DensePoint) error
	Search(ctx context.Context, embedding []float32, k int) ([]domain.CandidateResult, error)
}

// Options configures a Store.
type Options struct {
	// Dir is the index directory holding the sparse snapshot.
	Dir string
	// Dims is the embedding dimensionality used when creating the dense
	// collection.
	Dims int
}

// DefaultOptions returns sensible defaults for all-MiniLM-class embedders.
func DefaultOptions(dir string) Options {
	return Options{Dir: dir, Dims: 384}
}

// Store front-ends the dense and sparse indices under single-writer,
// multiple-reader discipline: Index excludes concurrent searches on the same
// instance, searches run concurrently with each other.
type Store struct {
	mu     sync.RWMutex
	dense  DenseIndex
	sparse *BM25Index
	embed  Embedder
	opts   Options
	logger *slog.Logger
}

// Open creates a Store over the given dense index and embedder, loading any
// existing sparse snapshot from opts.Dir. A missing or corrupt snapshot is
// recovered by starting from an empty sparse index with a logged degradation,
// never by failing the caller.
func Open(ctx context.Context, dense DenseIndex, embed Embedder, opts Options, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if err := dense.EnsureCollection(ctx, opts.Dims); err != nil {
		return nil, fmt.Errorf("store: ensure collection: %w", err)
	}

	sparse, loaded, err := LoadBM25Index(opts.Dir)
	if err != nil {
		logger.Warn("store: sparse snapshot unreadable, rebuilding empty", "dir", opts.Dir, "err", err)
	} else if loaded {
		logger.Info("store: sparse snapshot loaded", "dir", opts.Dir, "chunks", sparse.Len())
	}

	return &Store{
		dense:  dense,
		sparse: sparse,
		embed:  embed,
		opts:   opts,
		logger: logger,
	}, nil
}

// Index adds chunks to both indices. Each chunk's vector is computed exactly
// once, here at insertion time. Re-indexing the same source is the caller's
// cadence to control; no duplicate detection happens here.
func (s *Store) Index(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if err := domain.ValidateChunks(chunks); err != nil {
		return fmt.Errorf("store: index: %w", err)
	}

	points := make([]DensePoint, len(chunks))
	for i, c := range chunks {
		vec, err := s.embed.Embed(ctx, c.Content)
		if err != nil {
			return fmt.Errorf("store: embed chunk %d: %w: %w", i, domain.ErrModelUnavailable, err)
		}
		points[i] = DensePoint{
			ID:        chunkPointID(c),
			Embedding: vec,
			Chunk:     c,
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.dense.Upsert(ctx, points); err != nil {
		return fmt.Errorf("store: index: %w", err)
	}
	s.sparse.Add(chunks)
	if err := s.sparse.Save(s.opts.Dir); err != nil {
		// The in-memory index is already updated; a failed snapshot only
		// costs persistence, not correctness.
		s.logger.Warn("store: sparse snapshot save failed", "err", err)
	}

	s.logger.Info("store: indexed", "chunks", len(chunks), "sparse_total", s.sparse.Len())
	return nil
}

// DenseSearch embeds the query with the same embedding function used at
// indexing time and returns the k nearest chunks by cosine similarity,
// descending. An empty store yields an empty result.
func (s *Store) DenseSearch(ctx context.Context, query string, k int) ([]domain.CandidateResult, error) {
	vec, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: embed query: %w: %w", domain.ErrModelUnavailable, err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dense.Search(ctx, vec, k)
}

// SparseSearch ranks chunks by BM25 over query terms, descending. Purely
// lexical; never touches the embedder.
func (s *Store) SparseSearch(_ context.Context, query string, k int) ([]domain.CandidateResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sparse.Search(query, k), nil
}

// SparseLen reports the number of chunks in the sparse index.
func (s *Store) SparseLen() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sparse.Len()
}

// chunkPointID derives a deterministic UUID for a chunk so re-upserting the
// same chunk overwrites rather than duplicates the dense point.
func chunkPointID(c domain.Chunk) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(c.Key())).String()
}
