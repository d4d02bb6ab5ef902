package terminology_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"tmengine/internal/cache"
	"tmengine/internal/config"
	"tmengine/internal/store"
	"tmengine/internal/terminology"
	"tmengine/internal/testsupport"
)

func newService(t *testing.T, mutate func(*config.Terminology)) (*terminology.Service, *store.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	if mutate != nil {
		mutate(&cfg.Terminology)
	}
	st := testsupport.MustOpenStore(t, cfg)
	layer := cache.New(cfg.Cache, nil)
	st.AddObserver(layer)
	return terminology.New(st, layer, cfg.Terminology, nil), st
}

func TestHighlightDoNotTranslate(t *testing.T) {
	svc, st := newService(t, nil)
	testsupport.SeedTerms(t, st, "p1", testsupport.TermSpec{Term: "API", DoNotTranslate: true})

	got, err := svc.Highlight(context.Background(), "The API uses JSON.", "p1", "en")
	if err != nil {
		t.Fatalf("Highlight failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 highlight, got %d: %#v", len(got), got)
	}
	h := got[0]
	if h.Start != 4 || h.End != 7 || h.Type != terminology.HighlightDoNotTranslate || h.Confidence != 1.0 {
		t.Fatalf("unexpected highlight %#v", h)
	}
}

func TestHighlightConfidenceRules(t *testing.T) {
	svc, st := newService(t, nil)
	testsupport.SeedTerms(t, st, "p1",
		testsupport.TermSpec{Term: "server"},
		testsupport.TermSpec{Term: "cache"},
	)

	tests := []struct {
		name     string
		text     string
		wantType terminology.HighlightType
		wantConf float64
	}{
		{name: "variant", text: "Servers are down", wantType: terminology.HighlightSuggested, wantConf: 0.8 * 1.1},
		{name: "punctuation", text: "(cache)", wantType: terminology.HighlightValidated, wantConf: 1.0},
		{name: "exact mid sentence", text: "the server restarted", wantType: terminology.HighlightValidated, wantConf: 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Highlight(context.Background(), tt.text, "p1", "en")
			if err != nil {
				t.Fatalf("Highlight failed: %v", err)
			}
			if len(got) != 1 {
				t.Fatalf("expected 1 highlight, got %#v", got)
			}
			if got[0].Type != tt.wantType {
				t.Fatalf("expected type %s, got %s", tt.wantType, got[0].Type)
			}
			if diff := got[0].Confidence - tt.wantConf; diff > 1e-9 || diff < -1e-9 {
				t.Fatalf("expected confidence %.3f, got %.3f", tt.wantConf, got[0].Confidence)
			}
		})
	}
}

func TestHighlightDropsLowConfidence(t *testing.T) {
	svc, st := newService(t, func(c *config.Terminology) { c.MinConfidence = 0.9 })
	testsupport.SeedTerms(t, st, "p1", testsupport.TermSpec{Term: "server"})

	got, err := svc.Highlight(context.Background(), "Servers are down", "p1", "en")
	if err != nil {
		t.Fatalf("Highlight failed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected variant below floor to be dropped, got %#v", got)
	}
}

func TestHighlightRemovesOverlaps(t *testing.T) {
	svc, st := newService(t, nil)
	testsupport.SeedTerms(t, st, "p1",
		testsupport.TermSpec{Term: "machine"},
		testsupport.TermSpec{Term: "machine learning"},
	)

	got, err := svc.Highlight(context.Background(), "machine learning rocks", "p1", "en")
	if err != nil {
		t.Fatalf("Highlight failed: %v", err)
	}
	if len(got) != 1 || got[0].Term != "machine learning" {
		t.Fatalf("expected longest overlapping term to win, got %#v", got)
	}

	overlapping, st2 := newService(t, func(c *config.Terminology) { c.AllowOverlaps = true })
	testsupport.SeedTerms(t, st2, "p1",
		testsupport.TermSpec{Term: "machine"},
		testsupport.TermSpec{Term: "machine learning"},
	)
	got, err = overlapping.Highlight(context.Background(), "machine learning rocks", "p1", "en")
	if err != nil {
		t.Fatalf("Highlight failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected both spans when overlaps are allowed, got %#v", got)
	}
}

func TestHighlightContextEllipsis(t *testing.T) {
	svc, st := newService(t, func(c *config.Terminology) { c.MaxContextLength = 10 })
	testsupport.SeedTerms(t, st, "p1", testsupport.TermSpec{Term: "API", DoNotTranslate: true})

	text := strings.Repeat("a", 30) + " API " + strings.Repeat("b", 30)
	got, err := svc.Highlight(context.Background(), text, "p1", "en")
	if err != nil {
		t.Fatalf("Highlight failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 highlight, got %#v", got)
	}
	if want := "...aaaa API bbbb..."; got[0].Context != want {
		t.Fatalf("expected context %q, got %q", want, got[0].Context)
	}
}

func TestRehighlightScansWindowOnly(t *testing.T) {
	svc, st := newService(t, nil)
	testsupport.SeedTerms(t, st, "p1", testsupport.TermSpec{Term: "API", DoNotTranslate: true})

	text := "API " + strings.Repeat("x", 200) + " the API here"
	changeStart := len(text) - 5
	got, err := svc.Rehighlight(context.Background(), text, changeStart, len(text), "p1", "en")
	if err != nil {
		t.Fatalf("Rehighlight failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected only the nearby highlight, got %#v", got)
	}
	if text[got[0].Start:got[0].End] != "API" || got[0].Start < 200 {
		t.Fatalf("expected document offsets for the trailing term, got %#v", got[0])
	}

	if _, err := svc.Rehighlight(context.Background(), text, 10, 5, "p1", "en"); err == nil {
		t.Fatal("expected invalid range error")
	}
}

func TestRehighlightWindowInsideWord(t *testing.T) {
	svc, st := newService(t, func(c *config.Terminology) { c.RehighlightPadding = 50 })
	testsupport.SeedTerms(t, st, "p1", testsupport.TermSpec{Term: "API", DoNotTranslate: true})
	ctx := context.Background()

	tests := []struct {
		name    string
		text    string
		want    int
		context string
	}{
		{"edge mid word", strings.Repeat("x", 100) + "API and more" + strings.Repeat(" y", 30), 0, ""},
		{"edge before space", strings.Repeat("x", 100) + " API" + strings.Repeat(" y", 40), 1, "..."},
	}
	for _, tt := range tests {
		got, err := svc.Rehighlight(ctx, tt.text, 150, 151, "p1", "en")
		if err != nil {
			t.Fatalf("%s: Rehighlight failed: %v", tt.name, err)
		}
		full, err := svc.Highlight(ctx, tt.text, "p1", "en")
		if err != nil {
			t.Fatalf("%s: Highlight failed: %v", tt.name, err)
		}
		if len(got) != tt.want || len(full) != tt.want {
			t.Fatalf("%s: expected %d highlights, got window %#v full %#v", tt.name, tt.want, got, full)
		}
		for i := range got {
			if got[i].Start != full[i].Start || got[i].End != full[i].End || got[i].Context != full[i].Context {
				t.Fatalf("%s: window highlight %#v differs from full scan %#v", tt.name, got[i], full[i])
			}
			if !strings.HasPrefix(got[i].Context, tt.context) {
				t.Fatalf("%s: expected context to start with %q, got %q", tt.name, tt.context, got[i].Context)
			}
		}
	}
}

func TestCheckConsistency(t *testing.T) {
	svc, st := newService(t, nil)
	testsupport.SeedTerms(t, st, "p1",
		testsupport.TermSpec{Term: "API", DoNotTranslate: true},
		testsupport.TermSpec{Term: "widget"},
	)

	got, err := svc.CheckConsistency(context.Background(), map[string]string{
		"en": "The API works with the widget.",
		"de": "Die api funktioniert mit dem Widget.",
	}, "p1")
	if err != nil {
		t.Fatalf("CheckConsistency failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one inconsistency, got %#v", got)
	}
	inc := got[0]
	if inc.Language != "de" || inc.Expected != "API" || len(inc.Found) != 1 || inc.Found[0] != "api" {
		t.Fatalf("unexpected inconsistency %#v", inc)
	}
	if len(inc.Positions) != 1 || inc.Positions[0] != (terminology.Span{Start: 4, End: 7}) {
		t.Fatalf("unexpected positions %#v", inc.Positions)
	}
	if inc.Severity != terminology.SeverityLow {
		t.Fatalf("expected low severity, got %s", inc.Severity)
	}
}

func TestCheckConsistencySeverityAndCompounds(t *testing.T) {
	svc, st := newService(t, nil)
	testsupport.SeedTerms(t, st, "p1", testsupport.TermSpec{Term: "API", DoNotTranslate: true})

	got, err := svc.CheckConsistency(context.Background(), map[string]string{
		"en": "an api-based design",
		"de": "ohne",
		"es": "sin",
		"fr": "sans",
	}, "p1")
	if err != nil {
		t.Fatalf("CheckConsistency failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one inconsistency, got %#v", got)
	}
	if got[0].Severity != terminology.SeverityCritical {
		t.Fatalf("expected critical severity, got %s", got[0].Severity)
	}
	if span := got[0].Positions[0]; span.Start != 3 || span.End != 12 {
		t.Fatalf("expected compound span, got %#v", span)
	}

	clean, err := svc.CheckConsistency(context.Background(), map[string]string{"en": "an API-based design"}, "p1")
	if err != nil {
		t.Fatalf("CheckConsistency failed: %v", err)
	}
	if len(clean) != 0 {
		t.Fatalf("expected compound with canonical core to pass, got %#v", clean)
	}
}

func TestSuggest(t *testing.T) {
	svc, st := newService(t, nil)
	testsupport.SeedTerms(t, st, "p1", testsupport.TermSpec{Term: "database"})

	got, err := svc.Suggest(context.Background(), "The databse is slow, the database is fine", "p1", "en")
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected one suggestion, got %#v", got)
	}
	s := got[0]
	if s.Word != "databse" || s.SuggestedTerm != "database" || s.Type != terminology.HighlightSuggested {
		t.Fatalf("unexpected suggestion %#v", s)
	}
	if want := "similar to existing term 'database' (88% match)"; s.Reason != want {
		t.Fatalf("expected reason %q, got %q", want, s.Reason)
	}
}

const glossaryCSV = "\ufeffTerm, Definition ,Do_Not_Translate\n" +
	"API,Application programming interface,yes\n" +
	"widget,,\n" +
	"api,duplicate,no\n" +
	",orphan,\n" +
	"flag,bad bool,maybe\n"

func TestImportCSV(t *testing.T) {
	svc, st := newService(t, nil)
	ctx := context.Background()

	res, err := svc.ImportCSV(ctx, "p1", strings.NewReader(glossaryCSV), terminology.ImportOptions{})
	if err != nil {
		t.Fatalf("ImportCSV failed: %v", err)
	}
	if res.Total != 5 || res.Imported != 2 {
		t.Fatalf("unexpected result %#v", res)
	}
	if len(res.Warnings) != 2 {
		t.Fatalf("expected duplicate and empty-term warnings, got %#v", res.Warnings)
	}
	if len(res.Errors) != 1 || res.Errors[0].Field != "do_not_translate" || res.Errors[0].Line != 6 {
		t.Fatalf("expected boolean error on line 6, got %#v", res.Errors)
	}

	again, err := svc.ImportCSV(ctx, "p1", strings.NewReader(glossaryCSV), terminology.ImportOptions{})
	if err != nil {
		t.Fatalf("second ImportCSV failed: %v", err)
	}
	if again.Imported != 0 || again.Skipped != 2 || len(again.Conflicts) != 0 {
		t.Fatalf("expected idempotent import, got %#v", again)
	}
	terms, err := st.TermsByProject(ctx, "p1")
	if err != nil {
		t.Fatalf("TermsByProject: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("expected 2 stored terms, got %d", len(terms))
	}
}

func TestImportConflicts(t *testing.T) {
	svc, st := newService(t, nil)
	ctx := context.Background()
	testsupport.SeedTerms(t, st, "p1", testsupport.TermSpec{Term: "API", Definition: "old", DoNotTranslate: true})

	input := "term,definition,do_not_translate\napi,new,true\n"
	res, err := svc.ImportCSV(ctx, "p1", strings.NewReader(input), terminology.ImportOptions{})
	if err != nil {
		t.Fatalf("ImportCSV failed: %v", err)
	}
	if len(res.Conflicts) != 1 || res.Conflicts[0].Kind != terminology.ConflictDefinition || res.Conflicts[0].Resolved {
		t.Fatalf("expected unresolved definition conflict, got %#v", res.Conflicts)
	}
	got, _ := st.FindTerm(ctx, "p1", "API")
	if got == nil || got.DefinitionText() != "old" {
		t.Fatalf("expected existing definition kept, got %#v", got)
	}

	res, err = svc.ImportCSV(ctx, "p1", strings.NewReader(input), terminology.ImportOptions{Overwrite: true})
	if err != nil {
		t.Fatalf("ImportCSV overwrite failed: %v", err)
	}
	if res.Updated != 1 || !res.Conflicts[0].Resolved {
		t.Fatalf("expected overwrite to update, got %#v", res)
	}
	got, _ = st.FindTerm(ctx, "p1", "API")
	if got == nil || got.DefinitionText() != "new" {
		t.Fatalf("expected definition replaced, got %#v", got)
	}
}

// vanishingStore deletes the named term right after the importer reads the
// glossary, as a concurrent delete would.
type vanishingStore struct {
	*store.Store
	term string
}

func (v vanishingStore) TermsByProject(ctx context.Context, projectID string) ([]*store.Term, error) {
	terms, err := v.Store.TermsByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	for _, term := range terms {
		if term.Term == v.term {
			if _, err := v.Store.DeleteTerm(ctx, term.ID); err != nil {
				return nil, err
			}
		}
	}
	return terms, nil
}

func TestImportOverwriteIsAtomic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	testsupport.SeedTerms(t, st, "p1",
		testsupport.TermSpec{Term: "API", Definition: "old"},
		testsupport.TermSpec{Term: "SDK", Definition: "old"},
	)
	svc := terminology.New(vanishingStore{Store: st, term: "SDK"}, nil, cfg.Terminology, nil)
	ctx := context.Background()

	input := "term,definition
api,new
sdk,new
widget,fresh
"
	if _, err := svc.ImportCSV(ctx, "p1", strings.NewReader(input), terminology.ImportOptions{Overwrite: true}); err == nil {
		t.Fatal("expected import to fail when an overwritten term is gone")
	}

	got, _ := st.FindTerm(ctx, "p1", "API")
	if got == nil || got.DefinitionText() != "old" {
		t.Fatalf("expected earlier overwrite rolled back, got %#v", got)
	}
	if w, _ := st.FindTerm(ctx, "p1", "widget"); w != nil {
		t.Fatalf("expected new term rolled back, got %#v", w)
	}
}

func TestImportLengthLimits(t *testing.T) {
	svc, _ := newService(t, nil)
	input := "term,definition\n" +
		strings.Repeat("w", 150) + ",long but allowed\n" +
		strings.Repeat("x", 201) + ",too long\n" +
		"ok," + strings.Repeat("d", 1001) + "\n"

	res, err := svc.ImportCSV(context.Background(), "p1", strings.NewReader(input), terminology.ImportOptions{})
	if err != nil {
		t.Fatalf("ImportCSV failed: %v", err)
	}
	if res.Imported != 1 || len(res.Warnings) != 1 || len(res.Errors) != 2 {
		t.Fatalf("unexpected result %#v", res)
	}
	if res.Errors[0].Field != "term" || res.Errors[1].Field != "definition" {
		t.Fatalf("unexpected error fields %#v", res.Errors)
	}
}

func TestImportRequiresTermColumn(t *testing.T) {
	svc, _ := newService(t, nil)
	if _, err := svc.ImportCSV(context.Background(), "p1", strings.NewReader("name,definition\nx,y\n"), terminology.ImportOptions{}); err == nil {
		t.Fatal("expected missing term column error")
	}
}

func TestExportCSV(t *testing.T) {
	svc, st := newService(t, nil)
	testsupport.SeedTerms(t, st, "p1",
		testsupport.TermSpec{Term: "zeta"},
		testsupport.TermSpec{Term: "Alpha", Definition: "first", DoNotTranslate: true},
	)

	var buf bytes.Buffer
	stats, err := svc.ExportCSV(context.Background(), "p1", &buf)
	if err != nil {
		t.Fatalf("ExportCSV failed: %v", err)
	}
	want := "term,definition,do_not_translate\nAlpha,first,true\nzeta,,false\n"
	if buf.String() != want {
		t.Fatalf("unexpected export:\n%s", buf.String())
	}
	if stats != (terminology.ExportStats{Total: 2, DoNotTranslate: 1, Translatable: 1, WithDefinition: 1}) {
		t.Fatalf("unexpected stats %#v", stats)
	}
}

func TestImportYAML(t *testing.T) {
	svc, st := newService(t, nil)
	doc := `terms:
  - term: Kubernetes
    do_not_translate: true
  - term: cluster
    definition: group of nodes
  - term: node
    do_not_translate: sometimes
`
	res, err := svc.ImportYAML(context.Background(), "p1", strings.NewReader(doc), terminology.ImportOptions{})
	if err != nil {
		t.Fatalf("ImportYAML failed: %v", err)
	}
	if res.Imported != 2 || len(res.Errors) != 1 || res.Errors[0].Line != 6 {
		t.Fatalf("unexpected result %#v", res)
	}

	var buf bytes.Buffer
	if _, err := svc.ExportYAML(context.Background(), "p1", &buf); err != nil {
		t.Fatalf("ExportYAML failed: %v", err)
	}
	if !strings.Contains(buf.String(), "term: Kubernetes") || !strings.Contains(buf.String(), "definition: group of nodes") {
		t.Fatalf("unexpected yaml export:\n%s", buf.String())
	}
	if terms, _ := st.TermsByProject(context.Background(), "p1"); len(terms) != 2 {
		t.Fatalf("expected 2 stored terms, got %d", len(terms))
	}
}

func TestHighlightSeesNewTermsAfterWrite(t *testing.T) {
	svc, st := newService(t, nil)
	ctx := context.Background()
	if got, _ := svc.Highlight(ctx, "use the API", "p1", "en"); len(got) != 0 {
		t.Fatalf("expected no highlights before terms exist, got %#v", got)
	}
	testsupport.SeedTerms(t, st, "p1", testsupport.TermSpec{Term: "API", DoNotTranslate: true})
	got, err := svc.Highlight(ctx, "use the API", "p1", "en")
	if err != nil {
		t.Fatalf("Highlight failed: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected cache invalidated by term write, got %#v", got)
	}
}
