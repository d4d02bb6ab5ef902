package match

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tmengine/internal/store"
)

type fakeSearcher struct {
	calls atomic.Int32
	mu    sync.Mutex
	last  Query
}

func (f *fakeSearcher) Search(_ context.Context, q Query) ([]Candidate, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.last = q
	f.mu.Unlock()
	out := make([]Candidate, 0, 10)
	for range 10 {
		out = append(out, Candidate{Unit: &store.TranslationUnit{SourceText: q.Text}, SimilarityScore: 0.9})
	}
	return out, nil
}

func TestSuggesterDebouncesPerKey(t *testing.T) {
	searcher := &fakeSearcher{}
	s := NewSuggester(searcher, SuggesterOptions{Delay: 30 * time.Millisecond, Threshold: 0.6, MaxResults: 3}, nil)
	defer s.Close()

	delivered := make(chan []Candidate, 4)
	deliver := func(c []Candidate, err error) {
		if err != nil {
			t.Errorf("unexpected error: %v", err)
		}
		delivered <- c
	}
	s.Request(context.Background(), "editor-1", Query{Text: "Hel"}, deliver)
	s.Request(context.Background(), "editor-1", Query{Text: "Hello"}, deliver)

	select {
	case got := <-delivered:
		if len(got) != 3 {
			t.Fatalf("expected results truncated to 3, got %d", len(got))
		}
		if got[0].Unit.SourceText != "Hello" {
			t.Fatalf("expected latest request delivered, got %q", got[0].Unit.SourceText)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for suggestion")
	}

	select {
	case extra := <-delivered:
		t.Fatalf("expected superseded request to stay silent, got %v", extra)
	case <-time.After(100 * time.Millisecond):
	}
	if n := searcher.calls.Load(); n != 1 {
		t.Fatalf("expected one search, got %d", n)
	}
	searcher.mu.Lock()
	floor := searcher.last.SimilarityFloor
	searcher.mu.Unlock()
	if floor != 0.6 {
		t.Fatalf("expected threshold applied as floor, got %.2f", floor)
	}
}

func TestSuggesterKeysAreIndependent(t *testing.T) {
	searcher := &fakeSearcher{}
	s := NewSuggester(searcher, SuggesterOptions{Delay: 10 * time.Millisecond, MaxResults: 1}, nil)
	defer s.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	deliver := func([]Candidate, error) { wg.Done() }
	s.Request(context.Background(), "a", Query{Text: "one"}, deliver)
	s.Request(context.Background(), "b", Query{Text: "two"}, deliver)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for both keys")
	}
}

func TestSuggesterCloseCancelsPending(t *testing.T) {
	searcher := &fakeSearcher{}
	s := NewSuggester(searcher, SuggesterOptions{Delay: time.Hour}, nil)
	s.Request(context.Background(), "a", Query{Text: "one"}, func([]Candidate, error) {
		t.Error("unexpected delivery after close")
	})
	if s.Pending() != 1 {
		t.Fatalf("expected one pending request, got %d", s.Pending())
	}
	s.Close()
	if s.Pending() != 0 {
		t.Fatalf("expected no pending requests after close, got %d", s.Pending())
	}
	s.Request(context.Background(), "a", Query{Text: "two"}, nil)
	if searcher.calls.Load() != 0 {
		t.Fatal("expected no searches")
	}
}
