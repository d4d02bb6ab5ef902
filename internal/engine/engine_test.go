package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"tmengine/internal/config"
	"tmengine/internal/engine"
	"tmengine/internal/match"
	"tmengine/internal/preflight"
	"tmengine/internal/store"
	"tmengine/internal/testsupport"
	"tmengine/internal/tmerr"
)

func openEngine(t *testing.T, opts ...testsupport.ConfigOption) *engine.Engine {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	e, err := engine.Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func unit(project, source, target string) *store.TranslationUnit {
	return &store.TranslationUnit{
		ProjectID:       project,
		SourceLanguage:  "en",
		TargetLanguage:  "es",
		SourceText:      source,
		TargetText:      target,
		ConfidenceScore: 0.9,
	}
}

func TestOpenRequiresConfig(t *testing.T) {
	if _, err := engine.Open(context.Background(), nil, nil); !errors.Is(err, tmerr.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestAddUnitAndSearch(t *testing.T) {
	e := openEngine(t)
	ctx := context.Background()

	u := unit("p1", "Hello world", "Hola mundo")
	if err := e.AddUnit(ctx, u); err != nil {
		t.Fatalf("AddUnit: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	got, err := e.Search(ctx, match.Query{
		Text:      "Hello world",
		ProjectID: "p1",
		Pair:      store.LanguagePair{Source: "en", Target: "es"},
	})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 1 || got[0].Strategy != match.StrategyExact || got[0].Unit.TargetText != "Hola mundo" {
		t.Fatalf("unexpected candidates %#v", got)
	}

	fetched, err := e.Unit(ctx, u.ID)
	if err != nil || fetched.SourceText != "Hello world" {
		t.Fatalf("Unit: %#v %v", fetched, err)
	}
	if err := e.DeleteUnit(ctx, u.ID); err != nil {
		t.Fatalf("DeleteUnit: %v", err)
	}
	if _, err := e.Unit(ctx, u.ID); !errors.Is(err, tmerr.ErrNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := e.DeleteUnit(ctx, u.ID); !errors.Is(err, tmerr.ErrNotFound) {
		t.Fatalf("expected not found on second delete, got %v", err)
	}
}

func TestAddUnitRejectsInvalid(t *testing.T) {
	e := openEngine(t)
	if err := e.AddUnit(context.Background(), nil); !errors.Is(err, tmerr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err := e.AddUnit(context.Background(), unit("p1", " ", "x")); !errors.Is(err, tmerr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTermWritesRefreshHighlights(t *testing.T) {
	e := openEngine(t)
	ctx := context.Background()

	highlights, err := e.Highlight(ctx, "Restart the server now.", "p1", "en")
	if err != nil {
		t.Fatalf("Highlight: %v", err)
	}
	if len(highlights) != 0 {
		t.Fatalf("expected no highlights before the term exists, got %#v", highlights)
	}

	term := &store.Term{ProjectID: "p1", Term: "server"}
	if err := e.AddTerm(ctx, term); err != nil {
		t.Fatalf("AddTerm: %v", err)
	}
	highlights, err = e.Highlight(ctx, "Restart the server now.", "p1", "en")
	if err != nil {
		t.Fatalf("Highlight: %v", err)
	}
	if len(highlights) != 1 || highlights[0].Start != 12 || highlights[0].End != 18 {
		t.Fatalf("expected cache to be invalidated by the term write, got %#v", highlights)
	}

	if err := e.DeleteTerm(ctx, term.ID); err != nil {
		t.Fatalf("DeleteTerm: %v", err)
	}
	if _, err := e.Term(ctx, term.ID); !errors.Is(err, tmerr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestSuggestDelivers(t *testing.T) {
	e := openEngine(t, testsupport.WithConfig(func(c *config.Config) {
		c.Match.SuggestionDelayMS = 1
	}))
	ctx := context.Background()
	if err := e.AddUnit(ctx, unit("p1", "Good morning", "Buenos días")); err != nil {
		t.Fatalf("AddUnit: %v", err)
	}

	results := make(chan []match.Candidate, 1)
	e.Suggest(ctx, "editor-1", match.Query{
		Text:      "Good morning",
		ProjectID: "p1",
		Pair:      store.LanguagePair{Source: "en", Target: "es"},
	}, func(c []match.Candidate, err error) {
		if err != nil {
			t.Errorf("suggest: %v", err)
		}
		results <- c
	})
	select {
	case got := <-results:
		if len(got) == 0 {
			t.Fatal("expected a suggestion")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("suggestion never delivered")
	}
}

func TestArchiveReceivesAddedUnits(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithArchive())
	cfg.Archive.AppendBatchSize = 1
	e, err := engine.Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	if e.Archive() == nil {
		t.Fatal("expected archive to be wired")
	}
	n, err := e.AddUnits(ctx, []*store.TranslationUnit{
		unit("p1", "One", "Uno"),
		unit("p1", "Two", "Dos"),
	})
	if err != nil || n != 2 {
		t.Fatalf("AddUnits: %d %v", n, err)
	}

	closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	// Close is idempotent.
	if err := e.Close(closeCtx); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	archived, err := e.Archive().ReadUnits(ctx, "p1")
	if err != nil {
		t.Fatalf("ReadUnits: %v", err)
	}
	if len(archived) != 2 {
		t.Fatalf("expected 2 archived units, got %d", len(archived))
	}
}

func TestArchiveCopiesQueuedUnits(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithArchive())
	cfg.Archive.AppendBatchSize = 10
	e, err := engine.Open(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	ctx := context.Background()
	note := "greeting"
	u := unit("p1", "Hello", "Hola")
	u.Context = &note
	if err := e.AddUnit(ctx, u); err != nil {
		t.Fatalf("AddUnit: %v", err)
	}
	u.TargetText = "changed"
	note = "changed"

	closeCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Close(closeCtx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	archived, err := e.Archive().ReadUnits(ctx, "p1")
	if err != nil {
		t.Fatalf("ReadUnits: %v", err)
	}
	if len(archived) != 1 {
		t.Fatalf("expected 1 archived unit, got %d", len(archived))
	}
	got := archived[0]
	if got.TargetText != "Hola" || got.Context == nil || *got.Context != "greeting" {
		t.Fatalf("expected the unit as added, got %#v", got)
	}
}

func TestStatsAndPreflight(t *testing.T) {
	e := openEngine(t)
	ctx := context.Background()
	testsupport.SeedUnits(t, e.Store(), "p1",
		testsupport.UnitPair{Source: "Yes", Target: "Sí"},
		testsupport.UnitPair{Source: "No", Target: "No"},
	)
	stats, err := e.Stats(ctx, "p1")
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Units != 2 {
		t.Fatalf("expected 2 units, got %#v", stats)
	}

	results := e.Preflight(ctx)
	if failed := preflight.Failed(results); len(failed) != 0 {
		t.Fatalf("unexpected preflight failures %#v", failed)
	}
}
