package rag

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
)

// --- mocks ---

type mockRetriever struct {
	hits []domain.CandidateResult
	err  error
}

func (m *mockRetriever) Retrieve(_ context.Context, _ string, _ int) ([]domain.CandidateResult, error) {
	return m.hits, m.err
}

type mockReranker struct {
	out    []domain.RankedResult
	err    error
	called bool
}

func (m *mockReranker) Rerank(_ context.Context, _ string, _ []domain.CandidateResult, _ int) ([]domain.RankedResult, error) {
	m.called = true
	return m.out, m.err
}

type mockRouter struct {
	categories []string
	locators   []domain.Locator
}

func (m *mockRouter) Route(string) ([]string, []domain.Locator) {
	return m.categories, m.locators
}

type mockFetcher struct {
	docs    []domain.WebDocument
	gotLocs []domain.Locator
}

func (m *mockFetcher) FetchAll(_ context.Context, locators []domain.Locator) []domain.WebDocument {
	m.gotLocs = locators
	return m.docs
}

type mockGenerator struct {
	reply      string
	err        error
	lastPrompt string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.lastPrompt = prompt
	return m.reply, m.err
}

func candidate(content, source string) domain.CandidateResult {
	return domain.CandidateResult{
		Chunk: domain.Chunk{
			Content: content,
			Metadata: map[string]string{
				domain.MetaSource:  source,
				domain.MetaChunkID: "0",
			},
		},
		Score:  1,
		Origin: domain.OriginDense,
	}
}

func newTestService(r Retriever, rr Reranker, rt SourceRouter, f Fetcher, g Generator) *Service {
	opts := DefaultOptions()
	opts.UseReranker = rr != nil
	return New(r, rr, rt, f, g, opts, nil)
}

func TestQuery_FullPipeline(t *testing.T) {
	retriever := &mockRetriever{hits: []domain.CandidateResult{
		candidate("SELinux enforces mandatory access control.", "/docs/rhel/selinux.pdf"),
	}}
	router := &mockRouter{
		categories: []string{"rhel"},
		locators:   []domain.Locator{{Kind: domain.LocatorURL, Value: "https://docs.redhat.com/rhel", Category: "rhel"}},
	}
	fetcher := &mockFetcher{docs: []domain.WebDocument{{
		URL:     "https://docs.redhat.com/rhel",
		Title:   "RHEL Security Guide",
		Content: "SELinux modes are enforcing, permissive and disabled.",
		DocType: "Red Hat Enterprise Linux",
	}}}
	gen := &mockGenerator{reply: "Use getenforce to check SELinux status."}

	svc := newTestService(retriever, nil, router, fetcher, gen)
	ans, err := svc.Query(context.Background(), "how do I check SELinux status")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != gen.reply {
		t.Fatalf("unexpected answer: %q", ans.Text)
	}
	if !ans.HasLocal || !ans.HasWeb {
		t.Fatalf("expected both content streams, got local=%v web=%v", ans.HasLocal, ans.HasWeb)
	}
	if len(ans.Sources) != 2 {
		t.Fatalf("expected local + web source, got %d", len(ans.Sources))
	}
	if ans.Categories[0] != "rhel" {
		t.Fatalf("unexpected categories: %v", ans.Categories)
	}
	if len(fetcher.gotLocs) != 1 {
		t.Fatalf("fetcher should receive the router's locators, got %d", len(fetcher.gotLocs))
	}
	if !strings.Contains(gen.lastPrompt, "selinux.pdf") {
		t.Error("prompt missing local context")
	}
	if !strings.Contains(gen.lastPrompt, "RHEL Security Guide") {
		t.Error("prompt missing web context")
	}
	if !strings.Contains(gen.lastPrompt, "how do I check SELinux status") {
		t.Error("prompt missing the question")
	}
}

func TestQuery_RejectsShortQuery(t *testing.T) {
	svc := newTestService(&mockRetriever{}, nil, nil, nil, &mockGenerator{})
	_, err := svc.Query(context.Background(), "hi")
	if !errors.Is(err, domain.ErrQueryTooShort) {
		t.Fatalf("expected ErrQueryTooShort, got %v", err)
	}
}

func TestQuery_NoContextMessage(t *testing.T) {
	gen := &mockGenerator{reply: "should not be called"}
	svc := newTestService(&mockRetriever{}, nil, nil, &mockFetcher{}, gen)

	ans, err := svc.Query(context.Background(), "some unanswerable question")
	if err != nil {
		t.Fatal(err)
	}
	if ans.Text != NoContextMessage {
		t.Fatalf("expected no-context message, got %q", ans.Text)
	}
	if ans.HasLocal || ans.HasWeb {
		t.Fatal("flags must be false with no content")
	}
	if gen.lastPrompt != "" {
		t.Fatal("generator must not run without context")
	}
}

func TestQuery_RerankerFailureFallsBack(t *testing.T) {
	retriever := &mockRetriever{hits: []domain.CandidateResult{
		candidate("firewalld is the default firewall.", "/docs/rhel/firewall.md"),
	}}
	reranker := &mockReranker{err: domain.ErrModelUnavailable}
	gen := &mockGenerator{reply: "answer"}

	svc := newTestService(retriever, reranker, nil, nil, gen)
	ans, err := svc.Query(context.Background(), "what firewall does RHEL use")
	if err != nil {
		t.Fatalf("reranker failure must not fail the query: %v", err)
	}
	if !reranker.called {
		t.Fatal("reranker should have been tried")
	}
	if !ans.HasLocal {
		t.Fatal("local content should survive the fallback")
	}
}

func TestQuery_RerankerOrdersSources(t *testing.T) {
	retriever := &mockRetriever{hits: []domain.CandidateResult{
		candidate("first candidate", "/a.md"),
		candidate("second candidate", "/b.md"),
	}}
	reranker := &mockReranker{out: []domain.RankedResult{
		{Chunk: candidate("second candidate", "/b.md").Chunk, FusedScore: 0.9},
	}}
	gen := &mockGenerator{reply: "answer"}

	svc := newTestService(retriever, reranker, nil, nil, gen)
	ans, err := svc.Query(context.Background(), "which candidate wins")
	if err != nil {
		t.Fatal(err)
	}
	if len(ans.Sources) != 1 || ans.Sources[0].Title != "b.md" {
		t.Fatalf("expected reranked source only, got %+v", ans.Sources)
	}
}

func TestQuery_RetrieverErrorPropagates(t *testing.T) {
	retriever := &mockRetriever{err: errors.New("indexes down")}
	svc := newTestService(retriever, nil, nil, nil, &mockGenerator{})

	_, err := svc.Query(context.Background(), "a perfectly good question")
	if err == nil || !strings.Contains(err.Error(), "indexes down") {
		t.Fatalf("expected retrieval error, got %v", err)
	}
}

func TestQuery_GeneratorErrorPropagates(t *testing.T) {
	retriever := &mockRetriever{hits: []domain.CandidateResult{
		candidate("content", "/doc.md"),
	}}
	gen := &mockGenerator{err: errors.New("model offline")}

	svc := newTestService(retriever, nil, nil, nil, gen)
	_, err := svc.Query(context.Background(), "what is in the doc")
	if err == nil || !strings.Contains(err.Error(), "model offline") {
		t.Fatalf("expected generation error, got %v", err)
	}
}

func TestRenderLocal_DedupsSourcesByFile(t *testing.T) {
	ranked := []domain.RankedResult{
		{Chunk: candidate("part one", "/docs/guide.pdf").Chunk},
		{Chunk: candidate("part two", "/docs/guide.pdf").Chunk},
	}
	text, sources := renderLocal(ranked)
	if !strings.Contains(text, "part one") || !strings.Contains(text, "part two") {
		t.Fatalf("chunks missing from text: %q", text)
	}
	if len(sources) != 1 || sources[0].Title != "guide.pdf" {
		t.Fatalf("expected one deduped source, got %+v", sources)
	}
}
