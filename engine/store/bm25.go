package store

import (
	"encoding/gob"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
)

// BM25 ranking constants. Standard Okapi values.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// SparseSnapshotFile is the name of the sparse index serialization inside the
// index directory.
const SparseSnapshotFile = "sparse.gob"

// bm25Doc is one indexed chunk with its precomputed term frequencies.
type bm25Doc struct {
	Chunk  domain.Chunk
	Terms  map[string]int
	Length int
}

// BM25Index is a purely lexical term-frequency index over the chunk corpus.
// It is independent of the dense index and holds the whole posting state in
// memory; Save/load snapshots give it close-and-reopen persistence.
//
// BM25Index itself is not goroutine-safe; the Store front type serializes
// access.
type BM25Index struct {
	Docs     []bm25Doc
	DocFreq  map[string]int
	TotalLen int
}

// NewBM25Index creates an empty sparse index.
func NewBM25Index() *BM25Index {
	return &BM25Index{DocFreq: make(map[string]int)}
}

// tokenize lowercases and splits on any non-alphanumeric rune. Purely
// lexical; no stemming or stopword removal.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Add indexes chunks. Duplicate detection is the caller's concern.
func (b *BM25Index) Add(chunks []domain.Chunk) {
	for _, c := range chunks {
		terms := make(map[string]int)
		tokens := tokenize(c.Content)
		for _, t := range tokens {
			terms[t]++
		}
		for t := range terms {
			b.DocFreq[t]++
		}
		b.Docs = append(b.Docs, bm25Doc{Chunk: c, Terms: terms, Length: len(tokens)})
		b.TotalLen += len(tokens)
	}
}

// Len reports the number of indexed chunks.
func (b *BM25Index) Len() int { return len(b.Docs) }

// Search scores every document against the query terms with Okapi BM25 and
// returns the top k in descending score order. An empty index yields an
// empty result, never an error. Ordering is stable: ties keep insertion
// order, so a larger k only ever extends the smaller k's prefix.
func (b *BM25Index) Search(query string, k int) []domain.CandidateResult {
	if len(b.Docs) == 0 || k <= 0 {
		return nil
	}

	queryTerms := tokenize(query)
	if len(queryTerms) == 0 {
		return nil
	}

	n := float64(len(b.Docs))
	avgLen := float64(b.TotalLen) / n

	type scored struct {
		idx   int
		score float64
	}
	var hits []scored

	for i, doc := range b.Docs {
		var score float64
		for _, term := range queryTerms {
			tf := float64(doc.Terms[term])
			if tf == 0 {
				continue
			}
			df := float64(b.DocFreq[term])
			idf := math.Log(1 + (n-df+0.5)/(df+0.5))
			norm := tf * (bm25K1 + 1) / (tf + bm25K1*(1-bm25B+bm25B*float64(doc.Length)/avgLen))
			score += idf * norm
		}
		if score > 0 {
			hits = append(hits, scored{idx: i, score: score})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].score > hits[j].score
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	results := make([]domain.CandidateResult, len(hits))
	for i, h := range hits {
		results[i] = domain.CandidateResult{
			Chunk:  b.Docs[h.idx].Chunk,
			Score:  h.score,
			Origin: domain.OriginSparse,
		}
	}
	return results
}

// Save writes a gob snapshot of the index into dir. The write goes through a
// temp file and rename so a crash never leaves a half-written snapshot.
func (b *BM25Index) Save(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("store: create index dir: %w", err)
	}
	path := filepath.Join(dir, SparseSnapshotFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("store: create snapshot: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(b); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("store: encode snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("store: close snapshot: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("store: commit snapshot: %w", err)
	}
	return nil
}

// LoadBM25Index reads a snapshot from dir. A missing or corrupt snapshot is a
// recoverable condition: the second return value reports whether an existing
// snapshot was loaded, and the caller falls back to the returned empty index.
func LoadBM25Index(dir string) (*BM25Index, bool, error) {
	path := filepath.Join(dir, SparseSnapshotFile)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewBM25Index(), false, nil
		}
		return NewBM25Index(), false, fmt.Errorf("store: open snapshot: %w", err)
	}
	defer f.Close()

	idx := NewBM25Index()
	if err := gob.NewDecoder(f).Decode(idx); err != nil {
		return NewBM25Index(), false, fmt.Errorf("store: decode snapshot: %w", err)
	}
	if idx.DocFreq == nil {
		idx.DocFreq = make(map[string]int)
	}
	return idx, true, nil
}
