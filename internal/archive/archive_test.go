package archive

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"tmengine/internal/config"
	"tmengine/internal/logging"
	"tmengine/internal/store"
	"tmengine/internal/testsupport"
	"tmengine/internal/tmerr"
)

type recordingSink struct {
	mu   sync.Mutex
	keys []string
}

func (s *recordingSink) Upload(_ context.Context, key, path string) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = append(s.keys, key)
	return nil
}

func newArchive(t *testing.T, sink Sink) (*Archive, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithArchive())
	st := testsupport.MustOpenStore(t, cfg)
	a, err := New(cfg, st, sink, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a, st
}

func seed(t *testing.T, st *store.Store) {
	t.Helper()
	testsupport.SeedUnits(t, st, "p1",
		testsupport.UnitPair{Source: "Hello world", Target: "Hola mundo"},
		testsupport.UnitPair{Source: "Good morning", Target: "Buenos días"},
	)
	testsupport.SeedTerms(t, st, "p1",
		testsupport.TermSpec{Term: "API", DoNotTranslate: true},
		testsupport.TermSpec{Term: "cache", Definition: "fast storage"},
	)
}

func TestRefreshAndRead(t *testing.T) {
	sink := &recordingSink{}
	a, st := newArchive(t, sink)
	seed(t, st)
	ctx := context.Background()

	result, err := a.Refresh(ctx, "p1")
	if err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if result.Units != 2 || result.Terms != 2 {
		t.Fatalf("unexpected refresh result %#v", result)
	}

	units, err := a.ReadUnits(ctx, "p1")
	if err != nil {
		t.Fatalf("ReadUnits failed: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(units))
	}
	byText := make(map[string]*store.TranslationUnit)
	for _, u := range units {
		byText[u.SourceText] = u
	}
	u := byText["Good morning"]
	if u == nil || u.TargetText != "Buenos días" || u.ConfidenceScore != 0.9 || u.CreatedAt.IsZero() {
		t.Fatalf("unexpected archived unit %#v", u)
	}

	terms, err := a.ReadTerms(ctx, "p1")
	if err != nil {
		t.Fatalf("ReadTerms failed: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("expected 2 terms, got %d", len(terms))
	}
	for _, term := range terms {
		if term.Term == "cache" && term.DefinitionText() != "fast storage" {
			t.Fatalf("definition lost: %#v", term)
		}
		if term.Term == "API" && (!term.DoNotTranslate || term.Definition != nil) {
			t.Fatalf("unexpected term %#v", term)
		}
	}

	want := []string{"tmengine/p1/units.parquet", "tmengine/p1/terms.parquet"}
	if len(sink.keys) != len(want) || sink.keys[0] != want[0] || sink.keys[1] != want[1] {
		t.Fatalf("expected uploads %v, got %v", want, sink.keys)
	}
}

func TestCancelledRefreshKeepsPreviousFile(t *testing.T) {
	a, st := newArchive(t, nil)
	seed(t, st)
	if _, err := a.Refresh(context.Background(), "p1"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	testsupport.SeedUnits(t, st, "p1", testsupport.UnitPair{Source: "Later", Target: "Después"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := a.Refresh(ctx, "p1"); err == nil {
		t.Fatal("expected cancelled refresh to fail")
	}
	units, err := a.ReadUnits(context.Background(), "p1")
	if err != nil {
		t.Fatalf("ReadUnits failed: %v", err)
	}
	if len(units) != 2 {
		t.Fatalf("expected previous file with 2 units, got %d", len(units))
	}
	entries, _ := os.ReadDir(a.projectDir("p1"))
	for _, e := range entries {
		if e.Name() != UnitsFile && e.Name() != TermsFile && e.Name() != ".lock" {
			t.Fatalf("unexpected leftover file %s", e.Name())
		}
	}
}

func TestAppendUnitsReplacesByID(t *testing.T) {
	a, st := newArchive(t, nil)
	seed(t, st)
	ctx := context.Background()
	if _, err := a.Refresh(ctx, "p1"); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	units, _ := a.ReadUnits(ctx, "p1")
	changed := *units[0]
	changed.TargetText = "changed"
	fresh := &store.TranslationUnit{
		ID: "u-new", ProjectID: "p1", SourceLanguage: "en", TargetLanguage: "fr",
		SourceText: "Thanks", TargetText: "Merci", ConfidenceScore: 0.6,
	}

	n, err := a.AppendUnits(ctx, "p1", []*store.TranslationUnit{&changed, fresh})
	if err != nil {
		t.Fatalf("AppendUnits failed: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 appended, got %d", n)
	}
	after, _ := a.ReadUnits(ctx, "p1")
	if len(after) != 3 {
		t.Fatalf("expected 3 units, got %d", len(after))
	}
	for _, u := range after {
		if u.ID == changed.ID && u.TargetText != "changed" {
			t.Fatalf("expected replaced unit, got %#v", u)
		}
	}

	stats, err := a.Stats(ctx, "p1")
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Units != 3 || stats.Terms != 2 || stats.DoNotTranslate != 1 || stats.Bytes == 0 {
		t.Fatalf("unexpected stats %#v", stats)
	}
	if len(stats.LanguagePairs) != 2 || stats.LanguagePairs[0].Units != 2 {
		t.Fatalf("unexpected language pairs %#v", stats.LanguagePairs)
	}
	if want := (0.9 + 0.9 + 0.6) / 3; stats.AverageConfidence < want-1e-9 || stats.AverageConfidence > want+1e-9 {
		t.Fatalf("expected average %f, got %f", want, stats.AverageConfidence)
	}
}

func TestReadMissingProject(t *testing.T) {
	a, _ := newArchive(t, nil)
	units, err := a.ReadUnits(context.Background(), "empty")
	if err != nil || len(units) != 0 {
		t.Fatalf("expected no units, got %v %v", units, err)
	}
	for _, bad := range []string{"", "..", "a/b"} {
		if _, err := a.ReadUnits(context.Background(), bad); !errors.Is(err, tmerr.ErrValidation) {
			t.Fatalf("project %q: expected validation error, got %v", bad, err)
		}
	}
}

func TestCodecFor(t *testing.T) {
	for _, name := range []string{"zstd", "snappy", "gzip", "none"} {
		if _, err := codecFor(name); err != nil {
			t.Fatalf("codecFor(%q): %v", name, err)
		}
	}
	if _, err := codecFor("lzma"); !errors.Is(err, tmerr.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

type memoryTarget struct {
	mu    sync.Mutex
	units map[string]int
}

func (m *memoryTarget) AppendUnits(_ context.Context, project string, units []*store.TranslationUnit) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.units[project] += len(units)
	return len(units), nil
}

func TestAppenderDrainsOnClose(t *testing.T) {
	target := &memoryTarget{units: make(map[string]int)}
	cfg := config.Default().Archive
	cfg.AppendBatchSize = 2
	cfg.AppendFlushSeconds = 60
	ap := NewAppender(target, cfg, nil)

	for i := range 5 {
		project := "p1"
		if i%2 == 1 {
			project = "p2"
		}
		if !ap.Enqueue(project, &store.TranslationUnit{ID: string(rune('a' + i))}) {
			t.Fatalf("enqueue %d rejected", i)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ap.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if target.units["p1"] != 3 || target.units["p2"] != 2 || ap.Written() != 5 {
		t.Fatalf("unexpected archived counts %v (written %d)", target.units, ap.Written())
	}
	if ap.Enqueue("p1", &store.TranslationUnit{ID: "late"}) {
		t.Fatal("expected enqueue after close to be rejected")
	}
}

func TestAppenderDropsWhenFull(t *testing.T) {
	ap := &Appender{
		logger: logging.NewNop(),
		items:  make(chan pendingUnit, 1),
		done:   make(chan struct{}),
	}
	if !ap.Enqueue("p1", &store.TranslationUnit{ID: "a"}) {
		t.Fatal("expected first enqueue to fit")
	}
	if ap.Enqueue("p1", &store.TranslationUnit{ID: "b"}) {
		t.Fatal("expected second enqueue to drop")
	}
	if ap.Dropped() != 1 {
		t.Fatalf("expected 1 dropped, got %d", ap.Dropped())
	}
}
