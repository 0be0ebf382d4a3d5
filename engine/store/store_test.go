package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/InfraSageAI/infrasage-mvp/engine/domain"
)

// fakeEmbedder returns a fixed-dimension vector derived from text length so
// identical input always embeds identically.
type fakeEmbedder struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return []float32{float32(len(text)), 1, 0}, nil
}

// fakeDense records upserts and serves canned search results.
type fakeDense struct {
	mu       sync.Mutex
	points   []DensePoint
	results  []domain.CandidateResult
	ensured  int
	upsertFn func([]DensePoint) error
}

func (f *fakeDense) EnsureCollection(context.Context, int) error {
	f.ensured++
	return nil
}

func (f *fakeDense) Upsert(_ context.Context, pts []DensePoint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.upsertFn != nil {
		if err := f.upsertFn(pts); err != nil {
			return err
		}
	}
	f.points = append(f.points, pts...)
	return nil
}

func (f *fakeDense) Search(context.Context, []float32, int) ([]domain.CandidateResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.results, nil
}

func openTestStore(t *testing.T, dense DenseIndex, embed Embedder) *Store {
	t.Helper()
	s, err := Open(context.Background(), dense, embed, DefaultOptions(t.TempDir()), nil)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	return s
}

func TestStore_IndexEmbedsEachChunkOnce(t *testing.T) {
	emb := &fakeEmbedder{}
	dense := &fakeDense{}
	s := openTestStore(t, dense, emb)

	chunks := testCorpus()
	if err := s.Index(context.Background(), chunks); err != nil {
		t.Fatalf("index: %v", err)
	}

	if len(emb.calls) != len(chunks) {
		t.Fatalf("expected %d embed calls, got %d", len(chunks), len(emb.calls))
	}
	if len(dense.points) != len(chunks) {
		t.Fatalf("expected %d dense points, got %d", len(chunks), len(dense.points))
	}
	if s.SparseLen() != len(chunks) {
		t.Fatalf("expected %d sparse docs, got %d", len(chunks), s.SparseLen())
	}
}

func TestStore_IndexDeterministicPointIDs(t *testing.T) {
	emb := &fakeEmbedder{}
	dense := &fakeDense{}
	s := openTestStore(t, dense, emb)

	chunks := testCorpus()[:1]
	if err := s.Index(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}
	if err := s.Index(context.Background(), chunks); err != nil {
		t.Fatal(err)
	}
	if dense.points[0].ID != dense.points[1].ID {
		t.Fatalf("re-indexing the same chunk must reuse the point ID: %s vs %s",
			dense.points[0].ID, dense.points[1].ID)
	}
}

func TestStore_IndexRejectsInvalidChunk(t *testing.T) {
	s := openTestStore(t, &fakeDense{}, &fakeEmbedder{})
	err := s.Index(context.Background(), []domain.Chunk{{Content: "no source"}})
	if !errors.Is(err, domain.ErrMissingSource) {
		t.Fatalf("expected ErrMissingSource, got %v", err)
	}
}

func TestStore_DenseSearchEmbedderDownIsTyped(t *testing.T) {
	emb := &fakeEmbedder{err: errors.New("connection refused")}
	s := openTestStore(t, &fakeDense{}, emb)

	_, err := s.DenseSearch(context.Background(), "selinux", 3)
	if !errors.Is(err, domain.ErrModelUnavailable) {
		t.Fatalf("expected ErrModelUnavailable, got %v", err)
	}
}

func TestStore_SparseSearchEmptyStore(t *testing.T) {
	s := openTestStore(t, &fakeDense{}, &fakeEmbedder{})
	got, err := s.SparseSearch(context.Background(), "anything", 5)
	if err != nil {
		t.Fatalf("empty store must not error: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty result, got %d", len(got))
	}
}

func TestStore_SparseSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	opts := DefaultOptions(dir)
	ctx := context.Background()

	s1, err := Open(ctx, &fakeDense{}, &fakeEmbedder{}, opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := s1.Index(ctx, testCorpus()); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(ctx, &fakeDense{}, &fakeEmbedder{}, opts, nil)
	if err != nil {
		t.Fatal(err)
	}
	results, err := s2.SparseSearch(ctx, "selinux", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(results) == 0 || !strings.Contains(results[0].Chunk.Content, "SELinux") {
		t.Fatalf("reopened store lost indexed chunks: %+v", results)
	}
}

func TestStore_ConcurrentSearchDuringIndex(t *testing.T) {
	s := openTestStore(t, &fakeDense{}, &fakeEmbedder{})
	ctx := context.Background()
	if err := s.Index(ctx, testCorpus()); err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				if _, err := s.SparseSearch(ctx, "firewall service", 3); err != nil {
					t.Error(err)
					return
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 10; j++ {
			extra := chunk("Ansible playbooks automate configuration.", "ansible.md", "0")
			if err := s.Index(ctx, []domain.Chunk{extra}); err != nil {
				t.Error(err)
				return
			}
		}
	}()
	wg.Wait()
}
