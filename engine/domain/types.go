// Package domain defines core domain types, constants, and validation for the
// InfraSage retrieval pipeline. It acts as the validation gate at pipeline
// entry points.
package domain

import "time"

// Chunk is the atomic unit of retrievable text: a bounded span of source text
// plus provenance metadata. Chunks are immutable once indexed; re-ingesting a
// source inserts new chunks rather than mutating stored ones.
type Chunk struct {
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata"`
}

// Well-known metadata keys.
const (
	MetaSource      = "source"
	MetaDirectory   = "directory"
	MetaFileType    = "file_type"
	MetaPage        = "page"
	MetaChunkID     = "chunk_id"
	MetaTotalChunks = "total_chunks"
)

// Source returns the chunk's origin identifier.
func (c Chunk) Source() string { return c.Metadata[MetaSource] }

// Key returns a stable identity for deduplication across retrievers.
// Chunks carrying source and chunk_id metadata get a compact key; anything
// else falls back to the content itself.
func (c Chunk) Key() string {
	src := c.Metadata[MetaSource]
	id := c.Metadata[MetaChunkID]
	if src != "" && id != "" {
		return src + "#" + id
	}
	return c.Content
}

// Origin identifies which retriever produced a candidate.
type Origin string

const (
	OriginDense  Origin = "dense"
	OriginSparse Origin = "sparse"
)

// CandidateResult is an intermediate retrieval hit. Scores are on the
// producing retriever's own scale and are not comparable across retrievers
// until fused.
type CandidateResult struct {
	Chunk  Chunk   `json:"chunk"`
	Score  float64 `json:"score"`
	Origin Origin  `json:"origin"`
}

// RankedResult is a post-fusion or post-rerank candidate. FusedScore is
// comparable across results; higher means more relevant.
type RankedResult struct {
	Chunk      Chunk   `json:"chunk"`
	FusedScore float64 `json:"fused_score"`
}

// LocatorKind distinguishes web URLs from live command identifiers.
type LocatorKind string

const (
	LocatorURL     LocatorKind = "url"
	LocatorCommand LocatorKind = "command"
)

// Locator is an external pointer to a knowledge source, tagged with the
// category that resolved it and, when version-specific, the product version.
type Locator struct {
	Kind     LocatorKind `json:"kind"`
	Value    string      `json:"value"`
	Category string      `json:"category"`
	Version  string      `json:"version,omitempty"`
}

// WebDocument is fetched and cleaned external content. Content carries no
// markup and respects the fetcher's configured length cap.
type WebDocument struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	DocType   string    `json:"doc_type"`
	FetchedAt time.Time `json:"fetched_at"`
}

// SourceType tags the origin of a SourceRecord.
type SourceType string

const (
	SourceLocal SourceType = "local"
	SourceWeb   SourceType = "web"
)

// SourceRecord is one provenance entry in a FusedContext. Resource is a
// filename for local sources and a URL for web sources.
type SourceRecord struct {
	Type     SourceType `json:"type"`
	Title    string     `json:"title"`
	Resource string     `json:"resource"`
	DocType  string     `json:"doc_type,omitempty"`
}

// FusedContext is the final artifact handed to generation: merged context
// text bounded by the fusion engine's length policy, plus one SourceRecord
// per contributing chunk or web document.
type FusedContext struct {
	Text     string         `json:"text"`
	Sources  []SourceRecord `json:"sources"`
	HasLocal bool           `json:"has_local"`
	HasWeb   bool           `json:"has_web"`
}
