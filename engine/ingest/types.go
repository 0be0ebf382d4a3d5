package ingest

import (
	"fmt"
	"strconv"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
)

// ParsedDoc is a document after upstream parsing (PDF, YAML, shell, HTML),
// ready for chunking. It is the wire type on the ingest subject.
type ParsedDoc struct {
	ID        string            `json:"id"`
	Source    string            `json:"source"`
	Title     string            `json:"title"`
	FileType  string            `json:"file_type"`
	Directory string            `json:"directory"`
	Content   string            `json:"content"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// ChunkedDoc is a parsed document split into indexable chunks.
type ChunkedDoc struct {
	ParsedDoc
	Chunks []domain.Chunk
}

func validateDoc(doc ParsedDoc) error {
	if doc.Source == "" {
		return fmt.Errorf("ingest: %w", domain.ErrMissingSource)
	}
	if doc.Content == "" {
		return fmt.Errorf("ingest: %s: %w", doc.Source, domain.ErrEmptyChunk)
	}
	return nil
}

// chunkMetadata builds the per-chunk metadata carried into the indexes.
func chunkMetadata(doc ParsedDoc, index, total int) map[string]string {
	meta := map[string]string{
		domain.MetaSource:      doc.Source,
		domain.MetaChunkID:     strconv.Itoa(index),
		domain.MetaTotalChunks: strconv.Itoa(total),
	}
	if doc.FileType != "" {
		meta[domain.MetaFileType] = doc.FileType
	}
	if doc.Directory != "" {
		meta[domain.MetaDirectory] = doc.Directory
	}
	for k, v := range doc.Metadata {
		if _, taken := meta[k]; !taken {
			meta[k] = v
		}
	}
	return meta
}
