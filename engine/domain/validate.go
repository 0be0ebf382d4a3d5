package domain

import "strings"

// MinQueryLength is the shortest query accepted by the pipeline.
const MinQueryLength = 3

// ValidateQuery checks a user question before retrieval.
func ValidateQuery(query string) error {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return NewValidationError("query", query, ErrEmptyQuery)
	}
	if len(trimmed) < MinQueryLength {
		return NewValidationError("query", query, ErrQueryTooShort)
	}
	return nil
}

// ValidateChunk checks a chunk before indexing. Every indexed chunk must have
// non-empty content and a source identifier in its metadata.
func ValidateChunk(c Chunk) error {
	if strings.TrimSpace(c.Content) == "" {
		return NewValidationError("content", "", ErrEmptyChunk)
	}
	if c.Metadata[MetaSource] == "" {
		return NewValidationError("metadata."+MetaSource, "", ErrMissingSource)
	}
	return nil
}

// ValidateChunks checks a batch, returning the first failure.
func ValidateChunks(chunks []Chunk) error {
	for _, c := range chunks {
		if err := ValidateChunk(c); err != nil {
			return err
		}
	}
	return nil
}
