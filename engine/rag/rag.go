// Package rag orchestrates the question-answering pipeline. A query is
// classified by the source router and retrieved against the local indexes in
// parallel conceptually: local candidates come from the hybrid retriever
// (optionally reranked), external text from the web fetcher for the router's
// locators, and the fusion engine merges both streams into the context handed
// to the generation model.
package rag

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
	"github.com/InfraSageAI/infrasage-mvp/engine/fusion"
	"github.com/InfraSageAI/infrasage-mvp/engine/retrieval"
)

// Retriever pulls local candidates for a query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, k int) ([]domain.CandidateResult, error)
}

// Reranker reorders candidates by pairwise relevance.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []domain.CandidateResult, topK int) ([]domain.RankedResult, error)
}

// SourceRouter resolves a query to categories and external locators.
type SourceRouter interface {
	Route(query string) (categories []string, locators []domain.Locator)
}

// Fetcher turns locators into web documents, absorbing failures.
type Fetcher interface {
	FetchAll(ctx context.Context, locators []domain.Locator) []domain.WebDocument
}

// Generator produces the final answer text from a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Options configures the pipeline behavior.
type Options struct {
	TopK          int
	RerankTopK    int
	UseReranker   bool
	UseWeb        bool
	SearchTimeout time.Duration
	Fusion        fusion.Options
	SystemPrompt  string
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:          10,
		RerankTopK:    5,
		UseReranker:   true,
		UseWeb:        true,
		SearchTimeout: 5 * time.Second,
		Fusion:        fusion.DefaultOptions(),
		SystemPrompt:  defaultSystemPrompt,
	}
}

const defaultSystemPrompt = `You are an expert on Red Hat Enterprise Linux, OpenShift, Kubernetes and Ansible.
Answer the user's question using ONLY the provided context. If the context
does not contain enough information, say so. Cite sources by title or filename.`

// NoContextMessage is returned when neither local nor web retrieval found
// anything usable.
const NoContextMessage = "Sorry, I couldn't find relevant information in the available documentation to answer your question."

// Service wires the pipeline stages together.
type Service struct {
	retriever Retriever
	reranker  Reranker
	router    SourceRouter
	fetcher   Fetcher
	generate  Generator
	opts      Options
	logger    *slog.Logger
}

// New creates the pipeline Service. reranker, router and fetcher may be nil;
// the corresponding stage is then skipped.
func New(retriever Retriever, reranker Reranker, router SourceRouter, fetcher Fetcher, generate Generator, opts Options, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.RerankTopK <= 0 {
		opts.RerankTopK = DefaultOptions().RerankTopK
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	return &Service{
		retriever: retriever,
		reranker:  reranker,
		router:    router,
		fetcher:   fetcher,
		generate:  generate,
		opts:      opts,
		logger:    logger,
	}
}

// Answer is the structured pipeline response.
type Answer struct {
	Text       string                `json:"text"`
	Sources    []domain.SourceRecord `json:"sources"`
	Categories []string              `json:"categories"`
	HasLocal   bool                  `json:"has_local"`
	HasWeb     bool                  `json:"has_web"`
}

// Query runs the full pipeline for one question.
func (s *Service) Query(ctx context.Context, question string) (*Answer, error) {
	if err := domain.ValidateQuery(question); err != nil {
		return nil, err
	}
	s.logger.Info("rag: query start", "question_len", len(question))

	categories, locators := s.route(question)

	ranked, err := s.retrieveLocal(ctx, question)
	if err != nil {
		return nil, err
	}

	var webDocs []domain.WebDocument
	if s.opts.UseWeb && s.fetcher != nil && s.opts.Fusion.WebWeight > 0 {
		webDocs = s.fetcher.FetchAll(ctx, locators)
	}
	s.logger.Info("rag: retrieval done",
		"local", len(ranked),
		"web", len(webDocs),
		"categories", categories)

	localText, localSources := renderLocal(ranked)
	fused := fusion.Fuse(localText, localSources, webDocs, s.opts.Fusion)

	if fused.Text == "" {
		return &Answer{
			Text:       NoContextMessage,
			Categories: categories,
		}, nil
	}

	prompt := buildPrompt(s.opts.SystemPrompt, fused.Text, question)
	text, err := s.generate.Generate(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("rag: generate: %w", err)
	}

	return &Answer{
		Text:       text,
		Sources:    fused.Sources,
		Categories: categories,
		HasLocal:   fused.HasLocal,
		HasWeb:     fused.HasWeb,
	}, nil
}

func (s *Service) route(question string) ([]string, []domain.Locator) {
	if s.router == nil {
		return nil, nil
	}
	return s.router.Route(question)
}

func (s *Service) retrieveLocal(ctx context.Context, question string) ([]domain.RankedResult, error) {
	searchCtx, cancel := context.WithTimeout(ctx, s.searchTimeout())
	defer cancel()

	candidates, err := s.retriever.Retrieve(searchCtx, question, s.opts.TopK)
	if err != nil {
		return nil, fmt.Errorf("rag: retrieve: %w", err)
	}

	if !s.opts.UseReranker || s.reranker == nil {
		return retrieval.PassThrough(candidates, s.opts.RerankTopK), nil
	}

	ranked, err := s.reranker.Rerank(ctx, question, candidates, s.opts.RerankTopK)
	if err != nil {
		// Reranker loss costs ordering quality, not the answer.
		s.logger.Warn("rag: rerank failed, using fused order", "error", err)
		return retrieval.PassThrough(candidates, s.opts.RerankTopK), nil
	}
	return ranked, nil
}

func (s *Service) searchTimeout() time.Duration {
	if s.opts.SearchTimeout > 0 {
		return s.opts.SearchTimeout
	}
	return DefaultOptions().SearchTimeout
}

// renderLocal formats ranked chunks into the local context block and its
// matching source records.
func renderLocal(ranked []domain.RankedResult) (string, []domain.SourceRecord) {
	if len(ranked) == 0 {
		return "", nil
	}
	var b strings.Builder
	var sources []domain.SourceRecord
	seen := make(map[string]bool)

	for _, r := range ranked {
		filename := path.Base(strings.ReplaceAll(r.Chunk.Source(), `\`, "/"))
		fmt.Fprintf(&b, "[%s]\n%s\n\n", filename, r.Chunk.Content)
		if seen[filename] {
			continue
		}
		seen[filename] = true
		sources = append(sources, domain.SourceRecord{
			Type:     domain.SourceLocal,
			Title:    filename,
			Resource: filename,
		})
	}
	return strings.TrimRight(b.String(), "\n"), sources
}

func buildPrompt(system, context, question string) string {
	var b strings.Builder
	b.WriteString(system)
	b.WriteString("\n\nContext:\n")
	b.WriteString(context)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(question)
	b.WriteString("\n\nAnswer:")
	return b.String()
}
