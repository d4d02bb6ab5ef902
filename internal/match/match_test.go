package match_test

import (
	"context"
	"errors"
	"testing"

	"tmengine/internal/cache"
	"tmengine/internal/config"
	"tmengine/internal/match"
	"tmengine/internal/store"
	"tmengine/internal/testsupport"
	"tmengine/internal/tmerr"
)

func newEngine(t *testing.T) (*match.Engine, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	layer := cache.New(cfg.Cache, nil)
	st.AddObserver(layer)
	return match.New(st, layer, cfg.Match, nil), st
}

func insert(t *testing.T, st *store.Store, project, src, tgt string, confidence float64) *store.TranslationUnit {
	t.Helper()
	u := &store.TranslationUnit{
		ProjectID:       project,
		SourceLanguage:  "en",
		SourceText:      src,
		TargetLanguage:  "de",
		TargetText:      tgt,
		ConfidenceScore: confidence,
	}
	if err := st.InsertUnit(context.Background(), u); err != nil {
		t.Fatalf("InsertUnit: %v", err)
	}
	return u
}

var enDe = store.LanguagePair{Source: "en", Target: "de"}

func TestExactMatchRanksFirst(t *testing.T) {
	eng, st := newEngine(t)
	insert(t, st, "p1", "Hello world", "Hallo Welt", 0.9)
	insert(t, st, "p1", "Hello world again", "Hallo Welt nochmal", 0.9)

	got, err := eng.Search(context.Background(), match.Query{Text: "Hello  world", ProjectID: "p1", Pair: enDe})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected results")
	}
	if got[0].Unit.TargetText != "Hallo Welt" || got[0].SimilarityScore != 1.0 || got[0].Strategy != match.StrategyExact {
		t.Fatalf("expected exact match first, got %#v", got[0])
	}
	if want := (0.9 + 1.0) / 2; got[0].RankScore != want {
		t.Fatalf("expected rank score %.3f, got %.3f", want, got[0].RankScore)
	}
}

func TestFuzzyMatchAndFloor(t *testing.T) {
	eng, st := newEngine(t)
	insert(t, st, "p1", "Hello world", "Hallo Welt", 0.8)

	got, err := eng.Search(context.Background(), match.Query{Text: "Hello", ProjectID: "p1", Pair: enDe})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one fuzzy result, got %d", len(got))
	}
	if got[0].SimilarityScore >= 1.0 || got[0].SimilarityScore <= 0 {
		t.Fatalf("expected partial similarity, got %.3f", got[0].SimilarityScore)
	}

	disjoint, err := eng.Search(context.Background(), match.Query{Text: "Quantum flux capacitor", ProjectID: "p1", Pair: enDe, SimilarityFloor: 0.3})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(disjoint) != 0 {
		t.Fatalf("expected no results above floor, got %#v", disjoint)
	}
}

func TestNGramCatchesReordering(t *testing.T) {
	eng, st := newEngine(t)
	insert(t, st, "p1", "configuration settings updated", "Konfiguration aktualisiert", 0.7)

	got, err := eng.Search(context.Background(), match.Query{Text: "updated the configurations", ProjectID: "p1", Pair: enDe, SimilarityFloor: 0.2})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 || got[0].Strategy != match.StrategyNGram {
		t.Fatalf("expected one n-gram result, got %#v", got)
	}
}

func TestSearchDeduplicatesByText(t *testing.T) {
	eng, st := newEngine(t)
	insert(t, st, "p1", "Save file", "Datei speichern", 0.5)
	insert(t, st, "p1", "Save  file", "Datei speichern", 0.9)

	got, err := eng.Search(context.Background(), match.Query{Text: "Save file", ProjectID: "p1", Pair: enDe})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected duplicates merged, got %d", len(got))
	}
}

func TestSearchValidation(t *testing.T) {
	eng, _ := newEngine(t)
	cases := []struct {
		name  string
		query match.Query
		field string
	}{
		{"empty", match.Query{Text: "  "}, "query"},
		{"floor", match.Query{Text: "x", SimilarityFloor: 1.5}, "similarity_floor"},
		{"max", match.Query{Text: "x", MaxResults: -1}, "max_results"},
	}
	for _, tc := range cases {
		_, err := eng.Search(context.Background(), tc.query)
		if !errors.Is(err, tmerr.ErrValidation) {
			t.Fatalf("%s: expected validation error, got %v", tc.name, err)
		}
		if field, _ := tmerr.Field(err); field != tc.field {
			t.Fatalf("%s: expected field %q, got %q", tc.name, tc.field, field)
		}
	}
}

func TestSearchCacheInvalidatedOnWrite(t *testing.T) {
	eng, st := newEngine(t)
	insert(t, st, "p1", "Open the door", "Öffne die Tür", 0.8)
	q := match.Query{Text: "Open the door", ProjectID: "p1", Pair: enDe}

	first, err := eng.Search(context.Background(), q)
	if err != nil || len(first) != 1 {
		t.Fatalf("expected one result, got %d, %v", len(first), err)
	}
	insert(t, st, "p1", "Open the door", "Mach die Tür auf", 0.9)
	second, err := eng.Search(context.Background(), q)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(second) != 2 {
		t.Fatalf("expected write to invalidate cached results, got %d", len(second))
	}
	if second[0].Unit.TargetText != "Mach die Tür auf" {
		t.Fatalf("expected higher confidence first, got %q", second[0].Unit.TargetText)
	}
}

func TestSearchAcrossProjects(t *testing.T) {
	eng, st := newEngine(t)
	insert(t, st, "p1", "Cancel", "Abbrechen", 0.9)
	insert(t, st, "p2", "Cancel", "Stornieren", 0.9)

	scoped, err := eng.Search(context.Background(), match.Query{Text: "Cancel", ProjectID: "p1", Pair: enDe})
	if err != nil || len(scoped) != 1 {
		t.Fatalf("expected project scope to return 1, got %d, %v", len(scoped), err)
	}
	all, err := eng.Search(context.Background(), match.Query{Text: "Cancel", Pair: enDe})
	if err != nil || len(all) != 2 {
		t.Fatalf("expected unscoped search to return 2, got %d, %v", len(all), err)
	}
}

func TestUnscopedSearchSeesNewProjectUnits(t *testing.T) {
	eng, st := newEngine(t)
	insert(t, st, "p1", "Cancel", "Abbrechen", 0.9)
	insert(t, st, "p2", "Cancel", "Stornieren", 0.9)
	q := match.Query{Text: "Cancel", Pair: enDe}

	before, err := eng.Search(context.Background(), q)
	if err != nil || len(before) != 2 {
		t.Fatalf("expected 2 before insert, got %d, %v", len(before), err)
	}
	insert(t, st, "p3", "Cancel", "Absagen", 0.9)
	after, err := eng.Search(context.Background(), q)
	if err != nil || len(after) != 3 {
		t.Fatalf("expected 3 after insert into p3, got %d, %v", len(after), err)
	}
}

func TestConfiguredDefaultsApply(t *testing.T) {
	cfg := config.Default().Match
	cfg.MaxResults = 1
	_, st := newEngine(t)
	eng := match.New(st, nil, cfg, nil)
	insert(t, st, "p1", "Print page", "Seite drucken", 0.9)
	insert(t, st, "p1", "Print pages", "Seiten drucken", 0.9)

	got, err := eng.Search(context.Background(), match.Query{Text: "Print page", ProjectID: "p1", Pair: enDe})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected configured max of 1, got %d", len(got))
	}
}
