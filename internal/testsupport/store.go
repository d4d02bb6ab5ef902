package testsupport

import (
	"context"
	"fmt"
	"testing"

	"tmengine/internal/config"
	"tmengine/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg, nil)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st
}

// UnitPair is a compact source/target fixture.
type UnitPair struct {
	Source string
	Target string
}

// SeedUnits inserts en→es units for project and returns them in order.
func SeedUnits(t testing.TB, st *store.Store, project string, pairs ...UnitPair) []*store.TranslationUnit {
	t.Helper()

	units := make([]*store.TranslationUnit, 0, len(pairs))
	for i, p := range pairs {
		units = append(units, &store.TranslationUnit{
			ProjectID:       project,
			ChapterID:       "chapter-1",
			ChunkID:         fmt.Sprintf("chunk-%d", i+1),
			SourceLanguage:  "en",
			SourceText:      p.Source,
			TargetLanguage:  "es",
			TargetText:      p.Target,
			ConfidenceScore: 0.9,
		})
	}
	if len(units) == 0 {
		return units
	}
	if _, err := st.InsertUnits(context.Background(), units); err != nil {
		t.Fatalf("store.InsertUnits: %v", err)
	}
	return units
}

// TermSpec describes a seeded term.
type TermSpec struct {
	Term           string
	Definition     string
	DoNotTranslate bool
}

// SeedTerms inserts terms for project and returns them in order.
func SeedTerms(t testing.TB, st *store.Store, project string, specs ...TermSpec) []*store.Term {
	t.Helper()

	terms := make([]*store.Term, 0, len(specs))
	for _, spec := range specs {
		term := &store.Term{ProjectID: project, Term: spec.Term, DoNotTranslate: spec.DoNotTranslate}
		if spec.Definition != "" {
			def := spec.Definition
			term.Definition = &def
		}
		terms = append(terms, term)
	}
	if len(terms) == 0 {
		return terms
	}
	if _, err := st.InsertTerms(context.Background(), terms); err != nil {
		t.Fatalf("store.InsertTerms: %v", err)
	}
	return terms
}

// SeedChunks inserts sentence chunks for chapter, one per text, positioned in
// argument order.
func SeedChunks(t testing.TB, st *store.Store, project, chapter string, texts ...string) []*store.Chunk {
	t.Helper()

	chunks := make([]*store.Chunk, 0, len(texts))
	for i, text := range texts {
		chunks = append(chunks, &store.Chunk{
			ID:               fmt.Sprintf("%s-c%d", chapter, i),
			ProjectID:        project,
			ChapterID:        chapter,
			OriginalPosition: i,
			ChunkType:        store.ChunkSentence,
			Text:             text,
		})
	}
	if err := st.UpsertChunks(context.Background(), chunks); err != nil {
		t.Fatalf("store.UpsertChunks: %v", err)
	}
	return chunks
}
