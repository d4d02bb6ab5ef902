package store_test

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"tmengine/internal/store"
	"tmengine/internal/testsupport"
	"tmengine/internal/tmerr"
)

func newUnit(project, source, target string) *store.TranslationUnit {
	return &store.TranslationUnit{
		ProjectID:       project,
		SourceLanguage:  "en",
		SourceText:      source,
		TargetLanguage:  "es",
		TargetText:      target,
		ConfidenceScore: 0.8,
	}
}

func TestInsertAndGetUnit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	unit := newUnit("p1", "Hello world", "Hola mundo")
	unit.SourceLanguage = "en-US"
	if err := st.InsertUnit(ctx, unit); err != nil {
		t.Fatalf("InsertUnit failed: %v", err)
	}
	if unit.ID == "" {
		t.Fatal("expected id to be assigned")
	}
	if unit.CreatedAt.IsZero() || unit.UpdatedAt.Before(unit.CreatedAt) {
		t.Fatalf("unexpected timestamps: %v %v", unit.CreatedAt, unit.UpdatedAt)
	}

	got, err := st.GetUnit(ctx, unit.ID)
	if err != nil {
		t.Fatalf("GetUnit failed: %v", err)
	}
	if got == nil || got.SourceText != "Hello world" || got.TargetText != "Hola mundo" {
		t.Fatalf("unexpected unit: %#v", got)
	}
	if got.SourceLanguage != "en" {
		t.Fatalf("expected normalized source language en, got %q", got.SourceLanguage)
	}

	missing, err := st.GetUnit(ctx, "does-not-exist")
	if err != nil || missing != nil {
		t.Fatalf("expected (nil, nil) for missing unit, got %#v, %v", missing, err)
	}
}

func TestInsertUnitValidation(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	cases := []struct {
		name  string
		unit  *store.TranslationUnit
		field string
	}{
		{"empty source", newUnit("p1", "   ", "Hola"), "source_text"},
		{"empty target", newUnit("p1", "Hello", ""), "target_text"},
		{"same language", func() *store.TranslationUnit {
			u := newUnit("p1", "Hello", "Hello")
			u.TargetLanguage = "EN"
			return u
		}(), "target_language"},
		{"confidence range", func() *store.TranslationUnit {
			u := newUnit("p1", "Hello", "Hola")
			u.ConfidenceScore = 1.5
			return u
		}(), "confidence_score"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := st.InsertUnit(ctx, tc.unit)
			if !errors.Is(err, tmerr.ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
			if field, ok := tmerr.Field(err); !ok || field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, field)
			}
		})
	}
}

func TestInsertUnitsIsAtomic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := newUnit("p1", "One", "Uno")
	first.ID = "dup"
	second := newUnit("p1", "Two", "Dos")
	second.ID = "dup"

	n, err := st.InsertUnits(ctx, []*store.TranslationUnit{first, second})
	if !errors.Is(err, tmerr.ErrValidation) {
		t.Fatalf("expected validation error for duplicate id, got %v", err)
	}
	if field, _ := tmerr.Field(err); field != "id" {
		t.Fatalf("expected field id, got %q", field)
	}
	if n != 0 {
		t.Fatalf("expected 0 inserted, got %d", n)
	}
	units, err := st.UnitsByProject(ctx, "p1", 0)
	if err != nil {
		t.Fatalf("UnitsByProject failed: %v", err)
	}
	if len(units) != 0 {
		t.Fatalf("expected rollback to leave no units, got %d", len(units))
	}

	n, err = st.InsertUnits(ctx, []*store.TranslationUnit{newUnit("p1", "One", "Uno"), newUnit("p1", "Two", "Dos")})
	if err != nil || n != 2 {
		t.Fatalf("expected 2 inserted, got %d, %v", n, err)
	}
}

func TestUpdateAndDeleteUnit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	units := testsupport.SeedUnits(t, st, "p1", testsupport.UnitPair{Source: "Good morning", Target: "Buenos días"})
	unit := units[0]
	unit.TargetText = "Buen día"
	if err := st.UpdateUnit(ctx, unit); err != nil {
		t.Fatalf("UpdateUnit failed: %v", err)
	}
	got, _ := st.GetUnit(ctx, unit.ID)
	if got.TargetText != "Buen día" {
		t.Fatalf("expected updated target, got %q", got.TargetText)
	}

	ghost := newUnit("p1", "x", "y")
	ghost.ID = "ghost"
	if err := st.UpdateUnit(ctx, ghost); !errors.Is(err, tmerr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	deleted, err := st.DeleteUnit(ctx, unit.ID)
	if err != nil || !deleted {
		t.Fatalf("expected delete to succeed, got %v, %v", deleted, err)
	}
	deleted, err = st.DeleteUnit(ctx, unit.ID)
	if err != nil || deleted {
		t.Fatalf("expected second delete to report false, got %v, %v", deleted, err)
	}
}

func TestSearchUnitsOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUnits(t, st, "p1",
		testsupport.UnitPair{Source: "Open the file menu please", Target: "a"},
		testsupport.UnitPair{Source: "the file", Target: "b"},
		testsupport.UnitPair{Source: "The file", Target: "c"},
		testsupport.UnitPair{Source: "the file is open", Target: "d"},
	)

	got, err := st.SearchUnits(ctx, store.SearchQuery{ProjectID: "p1", Pattern: "the file"})
	if err != nil {
		t.Fatalf("SearchUnits failed: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 results, got %d", len(got))
	}
	if got[0].SourceText != "the file" && got[0].SourceText != "The file" {
		t.Fatalf("expected exact equality first, got %q", got[0].SourceText)
	}
	if got[2].SourceText != "the file is open" {
		t.Fatalf("expected prefix match third, got %q", got[2].SourceText)
	}
	if got[3].SourceText != "Open the file menu please" {
		t.Fatalf("expected substring match last, got %q", got[3].SourceText)
	}

	exact, err := st.SearchUnits(ctx, store.SearchQuery{ProjectID: "p1", Pattern: "the  file", Exact: true})
	if err != nil {
		t.Fatalf("exact SearchUnits failed: %v", err)
	}
	if len(exact) != 1 || exact[0].SourceText != "the file" {
		t.Fatalf("expected one exact result, got %#v", exact)
	}
}

func TestSearchUnitsEscapesWildcards(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUnits(t, st, "p1",
		testsupport.UnitPair{Source: "Discount 100% today", Target: "a"},
		testsupport.UnitPair{Source: "Discount 1000 today", Target: "b"},
		testsupport.UnitPair{Source: "snake_case name", Target: "c"},
		testsupport.UnitPair{Source: "snakeXcase name", Target: "d"},
	)

	for pattern, want := range map[string]string{"100%": "Discount 100% today", "snake_case": "snake_case name"} {
		got, err := st.SearchUnits(ctx, store.SearchQuery{ProjectID: "p1", Pattern: pattern})
		if err != nil {
			t.Fatalf("SearchUnits(%q) failed: %v", pattern, err)
		}
		if len(got) != 1 || got[0].SourceText != want {
			t.Fatalf("SearchUnits(%q) = %#v, want only %q", pattern, got, want)
		}
	}
}

func TestCandidateUnits(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUnits(t, st, "p1",
		testsupport.UnitPair{Source: "Save the document", Target: "a"},
		testsupport.UnitPair{Source: "Close the window", Target: "b"},
	)

	got, err := st.CandidateUnits(ctx, store.CandidateQuery{
		ProjectID: "p1",
		Pair:      store.LanguagePair{Source: "en", Target: "es"},
		Words:     []string{"the", "document"},
	})
	if err != nil {
		t.Fatalf("CandidateUnits failed: %v", err)
	}
	if len(got) != 1 || got[0].SourceText != "Save the document" {
		t.Fatalf("unexpected candidates: %#v", got)
	}

	fallback, err := st.CandidateUnits(ctx, store.CandidateQuery{
		ProjectID: "p1",
		Pair:      store.LanguagePair{Source: "en", Target: "es"},
		Words:     []string{"a", "the"},
	})
	if err != nil {
		t.Fatalf("CandidateUnits fallback failed: %v", err)
	}
	if len(fallback) != 2 {
		t.Fatalf("expected recent-unit fallback to return 2, got %d", len(fallback))
	}

	other, err := st.CandidateUnits(ctx, store.CandidateQuery{
		ProjectID: "p1",
		Pair:      store.LanguagePair{Source: "en", Target: "fr"},
		Words:     []string{"document"},
	})
	if err != nil {
		t.Fatalf("CandidateUnits other pair failed: %v", err)
	}
	if len(other) != 0 {
		t.Fatalf("expected language filter to exclude units, got %d", len(other))
	}
}

func TestTermUniquenessIgnoresCase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedTerms(t, st, "p1", testsupport.TermSpec{Term: "API", DoNotTranslate: true})

	err := st.InsertTerm(ctx, &store.Term{ProjectID: "p1", Term: "api"})
	if !errors.Is(err, tmerr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if field, _ := tmerr.Field(err); field != "term" {
		t.Fatalf("expected field term, got %q", field)
	}

	if err := st.InsertTerm(ctx, &store.Term{ProjectID: "p2", Term: "api"}); err != nil {
		t.Fatalf("expected same term in another project to succeed: %v", err)
	}

	found, err := st.FindTerm(ctx, "p1", "Api")
	if err != nil {
		t.Fatalf("FindTerm failed: %v", err)
	}
	if found == nil || found.Term != "API" || !found.DoNotTranslate {
		t.Fatalf("unexpected term: %#v", found)
	}
}

func TestTermLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	terms := testsupport.SeedTerms(t, st, "p1",
		testsupport.TermSpec{Term: "JSON", Definition: "data format"},
		testsupport.TermSpec{Term: "endpoint"},
	)

	list, err := st.TermsByProject(ctx, "p1")
	if err != nil || len(list) != 2 {
		t.Fatalf("expected 2 terms, got %d, %v", len(list), err)
	}
	if list[0].Term != "endpoint" {
		t.Fatalf("expected case-insensitive ordering, got %q first", list[0].Term)
	}

	found, err := st.SearchTerms(ctx, "p1", "format", false)
	if err != nil || len(found) != 1 || found[0].Term != "JSON" {
		t.Fatalf("expected definition search to find JSON, got %#v, %v", found, err)
	}

	term := terms[1]
	def := "URL of a service"
	term.Definition = &def
	if err := st.UpdateTerm(ctx, term); err != nil {
		t.Fatalf("UpdateTerm failed: %v", err)
	}
	got, _ := st.GetTerm(ctx, term.ID)
	if got.DefinitionText() != def {
		t.Fatalf("expected updated definition, got %q", got.DefinitionText())
	}

	deleted, err := st.DeleteTerm(ctx, term.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteTerm = %v, %v", deleted, err)
	}
}

func TestObserversNotifiedAfterCommit(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	var (
		mu     sync.Mutex
		events []store.WriteEvent
	)
	st.AddObserver(store.WriteObserverFunc(func(ev store.WriteEvent) {
		mu.Lock()
		events = append(events, ev)
		mu.Unlock()
	}))

	testsupport.SeedTerms(t, st, "p1", testsupport.TermSpec{Term: "API"})
	if err := st.InsertTerm(ctx, &store.Term{ProjectID: "p1", Term: "api"}); err == nil {
		t.Fatal("expected duplicate insert to fail")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(events) != 1 {
		t.Fatalf("expected exactly one committed event, got %d", len(events))
	}
	if events[0].ProjectID != "p1" || events[0].Entity != store.EntityTerm || len(events[0].Terms) != 1 {
		t.Fatalf("unexpected event: %#v", events[0])
	}
}

func TestCancelledContextIsTransient(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := st.InsertUnit(ctx, newUnit("p1", "Hello", "Hola"))
	if !errors.Is(err, tmerr.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}
	if !tmerr.IsRetryable(err) {
		t.Fatal("expected cancelled write to be retryable")
	}
	units, err := st.UnitsByProject(context.Background(), "p1", 0)
	if err != nil || len(units) != 0 {
		t.Fatalf("expected no units after cancelled write, got %d, %v", len(units), err)
	}
}

func TestProjectStats(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUnits(t, st, "p1",
		testsupport.UnitPair{Source: "One", Target: "Uno"},
		testsupport.UnitPair{Source: "Two", Target: "Dos"},
	)
	testsupport.SeedTerms(t, st, "p1",
		testsupport.TermSpec{Term: "API", DoNotTranslate: true},
		testsupport.TermSpec{Term: "widget"},
	)

	stats, err := st.ProjectStats(ctx, "p1")
	if err != nil {
		t.Fatalf("ProjectStats failed: %v", err)
	}
	if stats.Units != 2 || stats.Terms != 2 || stats.DoNotTranslate != 1 {
		t.Fatalf("unexpected counts: %#v", stats)
	}
	if len(stats.LanguagePairs) != 1 || stats.LanguagePairs[0] != (store.LanguagePair{Source: "en", Target: "es"}) {
		t.Fatalf("unexpected language pairs: %#v", stats.LanguagePairs)
	}
	if stats.LastUnitUpdated == nil {
		t.Fatal("expected last update timestamp")
	}

	projects, err := st.Projects(ctx)
	if err != nil || len(projects) != 1 || projects[0] != "p1" {
		t.Fatalf("unexpected projects: %v, %v", projects, err)
	}
}

func TestBackupAndOptimize(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	testsupport.SeedUnits(t, st, "p1", testsupport.UnitPair{Source: "One", Target: "Uno"})

	dest := filepath.Join(t.TempDir(), "backup", "tm.db")
	if err := st.Backup(ctx, dest); err != nil {
		t.Fatalf("Backup failed: %v", err)
	}
	if info, err := os.Stat(dest); err != nil || info.Size() == 0 {
		t.Fatalf("expected non-empty backup, got %v", err)
	}
	if err := st.Backup(ctx, dest); !errors.Is(err, tmerr.ErrConflict) {
		t.Fatalf("expected conflict for existing destination, got %v", err)
	}
	if err := st.Optimize(ctx); err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	health, err := st.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseReadable || !health.IntegrityCheck || len(health.MissingTables) != 0 {
		t.Fatalf("unexpected health: %#v", health)
	}
}

func TestSchemaMismatch(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st, err := store.Open(cfg, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = st.Close()

	db, err := sql.Open("sqlite", cfg.DatabasePath())
	if err != nil {
		t.Fatalf("sql.Open: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 999"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = db.Close()

	_, err = store.Open(cfg, nil)
	if !errors.Is(err, store.ErrSchemaMismatch) || !errors.Is(err, tmerr.ErrConfiguration) {
		t.Fatalf("expected schema mismatch configuration error, got %v", err)
	}
}

func TestPhraseGroupPersistence(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	chunks := testsupport.SeedChunks(t, st, "p1", "ch1", "First", "second")
	group := &store.PhraseGroup{
		ProjectID:  "p1",
		ChunkIDs:   []string{chunks[0].ID, chunks[1].ID},
		MergeOrder: []int{0, 1},
		MergedText: "First second",
		Language:   "en",
		Metadata:   store.DefaultPhraseMetadata(),
	}
	group.ID = "g1"
	for i, c := range chunks {
		gid := group.ID
		c.PhraseGroupID = &gid
		if err := c.LinkWith(chunks[1-i].ID); err != nil {
			t.Fatalf("LinkWith failed: %v", err)
		}
	}
	unit := newUnit("p1", "First second", "Primero segundo")
	if err := st.InsertPhraseGroup(ctx, group, chunks, unit); err != nil {
		t.Fatalf("InsertPhraseGroup failed: %v", err)
	}

	got, err := st.GetPhraseGroup(ctx, "g1")
	if err != nil || got == nil || got.MergedText != "First second" || got.Metadata.Confidence != 1.0 {
		t.Fatalf("unexpected group: %#v, %v", got, err)
	}
	stored, _ := st.GetChunk(ctx, chunks[0].ID)
	if stored.PhraseGroupID == nil || *stored.PhraseGroupID != "g1" || !stored.IsLinkedTo(chunks[1].ID) {
		t.Fatalf("expected chunk linked into group, got %#v", stored)
	}
	if u, _ := st.GetUnit(ctx, unit.ID); u == nil {
		t.Fatal("expected merged phrase unit to be stored")
	}

	for _, c := range chunks {
		c.PhraseGroupID = nil
		c.LinkedChunks = nil
	}
	deleted, err := st.DeletePhraseGroup(ctx, "g1", chunks)
	if err != nil || !deleted {
		t.Fatalf("DeletePhraseGroup = %v, %v", deleted, err)
	}
	stored, _ = st.GetChunk(ctx, chunks[0].ID)
	if stored.PhraseGroupID != nil || len(stored.LinkedChunks) != 0 {
		t.Fatalf("expected chunk restored, got %#v", stored)
	}
}

func TestPhraseGroupClaimsMembers(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	chunks := testsupport.SeedChunks(t, st, "p1", "ch1", "one", "two", "three")
	stale, err := st.GetChunk(ctx, chunks[1].ID)
	if err != nil {
		t.Fatalf("GetChunk failed: %v", err)
	}
	group := func(id string, members ...*store.Chunk) *store.PhraseGroup {
		g := &store.PhraseGroup{ID: id, ProjectID: "p1", MergeOrder: []int{0, 1}, MergedText: id, Language: "en",
			Metadata: store.DefaultPhraseMetadata()}
		for _, c := range members {
			g.ChunkIDs = append(g.ChunkIDs, c.ID)
			gid := id
			c.PhraseGroupID = &gid
		}
		return g
	}

	if err := st.InsertPhraseGroup(ctx, group("g1", chunks[0], chunks[1]), chunks[:2], nil); err != nil {
		t.Fatalf("first InsertPhraseGroup failed: %v", err)
	}
	err = st.InsertPhraseGroup(ctx, group("g2", stale, chunks[2]), []*store.Chunk{stale, chunks[2]}, nil)
	if !errors.Is(err, tmerr.ErrConflict) {
		t.Fatalf("expected conflict for a chunk grouped since it was read, got %v", err)
	}

	if g, _ := st.GetPhraseGroup(ctx, "g2"); g != nil {
		t.Fatalf("expected rejected group to roll back, got %#v", g)
	}
	taken, _ := st.GetChunk(ctx, chunks[1].ID)
	if taken.PhraseGroupID == nil || *taken.PhraseGroupID != "g1" {
		t.Fatalf("expected chunk to stay in g1, got %#v", taken.PhraseGroupID)
	}
	free, _ := st.GetChunk(ctx, chunks[2].ID)
	if free.PhraseGroupID != nil {
		t.Fatalf("expected untouched chunk to stay ungrouped, got %v", *free.PhraseGroupID)
	}
}

func TestAlignmentsAndCorrections(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	a := &store.Alignment{
		ProjectID:      "p1",
		SourceChunkID:  "s",
		TargetChunkID:  "t",
		SourceEnd:      5,
		TargetEnd:      4,
		SourceText:     "Hello",
		TargetText:     "Hola",
		SourceLanguage: "en",
		TargetLanguage: "es",
		Confidence:     0.75,
		Method:         store.MethodPositionBased,
	}
	if err := st.SaveAlignment(ctx, a); err != nil {
		t.Fatalf("SaveAlignment failed: %v", err)
	}
	if a.Status != store.StatusPending {
		t.Fatalf("expected default pending status, got %q", a.Status)
	}
	a.Status = store.StatusValidated
	a.Method = store.MethodUserValidated
	if err := st.SaveAlignment(ctx, a); err != nil {
		t.Fatalf("SaveAlignment update failed: %v", err)
	}
	list, err := st.AlignmentsForChunks(ctx, "s", "t")
	if err != nil || len(list) != 1 || !list[0].UserValidated() {
		t.Fatalf("unexpected alignments: %#v, %v", list, err)
	}

	bad := *a
	bad.ID = ""
	bad.Confidence = 2
	if err := st.SaveAlignment(ctx, &bad); !errors.Is(err, tmerr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	for i := range 3 {
		c := &store.Correction{
			Fingerprint:         "fp",
			SourceLanguage:      "en",
			TargetLanguage:      "es",
			OriginalConfidence:  0.5,
			CorrectedConfidence: 0.9,
			Original:            *a,
			Corrected:           *a,
			Reason:              "manual",
			CreatedAt:           time.Now().Add(time.Duration(i) * time.Second),
		}
		if err := st.AppendCorrection(ctx, c); err != nil {
			t.Fatalf("AppendCorrection failed: %v", err)
		}
		if c.ID == 0 {
			t.Fatal("expected correction id")
		}
	}
	recent, err := st.Corrections(ctx, 2)
	if err != nil || len(recent) != 2 || recent[0].ID < recent[1].ID {
		t.Fatalf("expected newest-first corrections, got %#v, %v", recent, err)
	}
	if recent[0].Original.SourceText != "Hello" {
		t.Fatalf("expected decoded alignment, got %#v", recent[0].Original)
	}

	deleted, err := st.DeleteAlignment(ctx, a.ID)
	if err != nil || !deleted {
		t.Fatalf("DeleteAlignment = %v, %v", deleted, err)
	}
}
