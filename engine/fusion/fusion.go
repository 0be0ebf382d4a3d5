// Package fusion merges local retrieval output and fetched web documents
// into one bounded context under a weighting policy. Local content always
// precedes web content when both are present.
package fusion

import (
	"strings"
	"unicode/utf8"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
	"github.com/InfraSageAI/infrasage-mvp/pkg/metrics"
)

const (
	// TruncationNotice terminates a context cut at the length cap.
	TruncationNotice = "...\n[Context truncated - prioritizing most relevant information]"

	// previewNotice terminates a web document preview that was cut.
	previewNotice = "...\n[See full documentation at source URL]"

	// truncationLookback is how far before the hard cap a sentence
	// boundary is searched for.
	truncationLookback = 1000
)

// Options carry the fusion weighting and size policy. A weight of zero or
// below omits that side entirely.
type Options struct {
	LocalWeight   float64
	WebWeight     float64
	MaxLength     int
	PreviewLength int
	MaxWebDocs    int
}

// DefaultOptions favors web documentation over local passages, matching the
// trust placed in version-pinned official docs.
func DefaultOptions() Options {
	return Options{
		LocalWeight:   0.4,
		WebWeight:     0.6,
		MaxLength:     64000,
		PreviewLength: 2000,
		MaxWebDocs:    6,
	}
}

// Fuse builds the final context and its source list. Pure function: no
// state survives between calls, and identical inputs produce identical
// output. Sources mirror exactly the content placed in the text.
func Fuse(localAnswer string, localSources []domain.SourceRecord, webDocs []domain.WebDocument, opts Options) domain.FusedContext {
	if opts.MaxLength <= 0 {
		opts.MaxLength = DefaultOptions().MaxLength
	}
	if opts.PreviewLength <= 0 {
		opts.PreviewLength = DefaultOptions().PreviewLength
	}
	if opts.MaxWebDocs <= 0 {
		opts.MaxWebDocs = DefaultOptions().MaxWebDocs
	}

	var parts []string
	var sources []domain.SourceRecord

	hasLocal := false
	if opts.LocalWeight > 0 && localAnswer != "" {
		hasLocal = true
		parts = append(parts, localAnswer)
		sources = append(sources, localSources...)
	}

	hasWeb := false
	if opts.WebWeight > 0 && len(webDocs) > 0 {
		docs := webDocs
		if len(docs) > opts.MaxWebDocs {
			docs = docs[:opts.MaxWebDocs]
		}
		var b strings.Builder
		for _, doc := range docs {
			preview := doc.Content
			if len(preview) > opts.PreviewLength {
				preview = clampToRune(preview, opts.PreviewLength) + previewNotice
			}
			b.WriteString(doc.Title)
			b.WriteString(":\n")
			b.WriteString(preview)
			b.WriteString("\n\n")

			sources = append(sources, domain.SourceRecord{
				Type:     domain.SourceWeb,
				Title:    doc.Title,
				Resource: doc.URL,
				DocType:  doc.DocType,
			})
		}
		hasWeb = true
		parts = append(parts, strings.TrimRight(b.String(), "\n"))
	}

	text := strings.Join(parts, "\n\n")
	if len(text) > opts.MaxLength {
		text = truncateAtSentence(text, opts.MaxLength) + TruncationNotice
		metrics.FusionTruncations.Inc()
	}

	return domain.FusedContext{
		Text:     text,
		Sources:  sources,
		HasLocal: hasLocal,
		HasWeb:   hasWeb,
	}
}

// truncateAtSentence cuts text to at most limit bytes, preferring the last
// sentence boundary within the lookback window so the cut never lands
// mid-sentence when a nearby boundary exists.
func truncateAtSentence(text string, limit int) string {
	if len(text) <= limit {
		return text
	}
	window := clampToRune(text, limit)
	floor := limit - truncationLookback
	if floor < 0 {
		floor = 0
	}
	best := -1
	for _, end := range []string{". ", ".\n", "! ", "? "} {
		if i := strings.LastIndex(window, end); i >= floor && i > best {
			best = i
		}
	}
	if best >= 0 {
		return window[:best+1]
	}
	return window
}

// clampToRune cuts s to at most limit bytes without splitting a multi-byte
// rune at the cut point.
func clampToRune(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	for limit > 0 && !utf8.RuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}
