package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tmengine/internal/alignment"
	"tmengine/internal/archive"
	"tmengine/internal/match"
	"tmengine/internal/store"
	"tmengine/internal/terminology"
	"tmengine/internal/tmerr"
)

func decode[T any](t *testing.T, out string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(out), &v); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	return v
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t, false)

	out := env.mustRun(t, "config", "validate")
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, filepath.Join(env.baseDir, "data"))

	target := filepath.Join(t.TempDir(), "config.toml")
	out, err := runCLI(t, []string{"config", "init", "--path", target})
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}
	if _, err := runCLI(t, []string{"config", "init", "--path", target}); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}
}

func TestConfigShowMasksSecrets(t *testing.T) {
	env := setupCLITestEnv(t, false)
	t.Setenv("TMENGINE_S3_ACCESS_KEY", "AKIAEXAMPLE")
	t.Setenv("TMENGINE_S3_SECRET_KEY", "hunter2-secret")

	out := env.mustRun(t, "config", "show")
	requireContains(t, out, "[archive]")
	requireContains(t, out, "[logging]")
	requireContains(t, out, "****")
	if strings.Contains(out, "hunter2-secret") || strings.Contains(out, "AKIAEXAMPLE") {
		t.Fatalf("expected secrets masked, got %s", out)
	}
}

func TestUnitLifecycle(t *testing.T) {
	env := setupCLITestEnv(t, false)

	added := decode[store.TranslationUnit](t, env.mustRun(t, "--json", "unit", "add",
		"-p", "book", "--src", "en", "--tgt", "es", "Hello world", "Hola mundo"))
	if added.ID == "" || added.TargetText != "Hola mundo" {
		t.Fatalf("unexpected unit %#v", added)
	}
	env.mustRun(t, "unit", "add", "-p", "book", "--src", "en", "--tgt", "es", "Good morning", "Buenos días")

	listed := decode[[]store.TranslationUnit](t, env.mustRun(t, "--json", "unit", "list", "-p", "book"))
	if len(listed) != 2 {
		t.Fatalf("expected 2 units, got %d", len(listed))
	}

	found := decode[[]store.TranslationUnit](t, env.mustRun(t, "--json", "unit", "search", "-p", "book", "morning"))
	if len(found) != 1 || found[0].SourceText != "Good morning" {
		t.Fatalf("unexpected search result %#v", found)
	}

	candidates := decode[[]match.Candidate](t, env.mustRun(t, "--json", "match",
		"-p", "book", "--src", "en", "--tgt", "es", "Hello world"))
	if len(candidates) == 0 || candidates[0].Strategy != match.StrategyExact {
		t.Fatalf("unexpected candidates %#v", candidates)
	}

	out := env.mustRun(t, "unit", "delete", added.ID)
	requireContains(t, out, "Deleted unit "+added.ID)
	if _, err := env.run(t, "unit", "delete", added.ID); !errors.Is(err, tmerr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	table := env.mustRun(t, "unit", "list", "-p", "book")
	requireContains(t, table, "Buenos días")
	if strings.Contains(table, "Hola mundo") {
		t.Fatalf("deleted unit still listed:\n%s", table)
	}
}

func TestUnitAddValidation(t *testing.T) {
	env := setupCLITestEnv(t, false)
	_, err := env.run(t, "unit", "add", "-p", "book", "--src", "en", "--tgt", "es", "Hi", "Hola", "--confidence", "2")
	if !errors.Is(err, tmerr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestTermCommands(t *testing.T) {
	env := setupCLITestEnv(t, false)
	glossary := filepath.Join(env.baseDir, "glossary.csv")
	content := "term,definition,do_not_translate\nAPI,,true\nserver,machine that serves requests,false\n"
	if err := os.WriteFile(glossary, []byte(content), 0o644); err != nil {
		t.Fatalf("write glossary: %v", err)
	}

	result := decode[terminology.ImportResult](t, env.mustRun(t, "--json", "term", "import", "-p", "book", glossary))
	if result.Imported != 2 || len(result.Errors) != 0 {
		t.Fatalf("unexpected import result %#v", result)
	}

	out := env.mustRun(t, "term", "list", "-p", "book")
	requireContains(t, out, "machine that serves requests")

	highlights := decode[[]terminology.TermHighlight](t, env.mustRun(t, "--json", "highlight", "-p", "book", "The API server is up."))
	if len(highlights) != 2 || highlights[0].Term != "API" || highlights[0].Type != terminology.HighlightDoNotTranslate {
		t.Fatalf("unexpected highlights %#v", highlights)
	}

	exported := filepath.Join(env.baseDir, "glossary.yaml")
	out = env.mustRun(t, "term", "export", "-p", "book", "-o", exported)
	requireContains(t, out, "Exported 2 terms")
	data, err := os.ReadFile(exported)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if !strings.Contains(string(data), "server") {
		t.Fatalf("unexpected export:\n%s", data)
	}

	if _, err := env.run(t, "term", "import", "-p", "book", filepath.Join(env.baseDir, "glossary.txt")); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestCheckCommand(t *testing.T) {
	env := setupCLITestEnv(t, false)
	glossary := filepath.Join(env.baseDir, "glossary.yaml")
	if err := os.WriteFile(glossary, []byte("terms:\n  - term: API\n    do_not_translate: \"true\"\n"), 0o644); err != nil {
		t.Fatalf("write glossary: %v", err)
	}
	env.mustRun(t, "term", "import", "-p", "book", glossary)

	out := env.mustRun(t, "check", "-p", "book", "--text", "en=The API works.", "--text", "es=La API funciona.")
	requireContains(t, out, "Terminology is consistent")

	if _, err := env.run(t, "check", "-p", "book", "--text", "no-separator"); err == nil {
		t.Fatal("expected malformed --text to fail")
	}
}

func TestAlignCommand(t *testing.T) {
	env := setupCLITestEnv(t, false)
	src := filepath.Join(env.baseDir, "source.txt")
	tgt := filepath.Join(env.baseDir, "target.txt")
	if err := os.WriteFile(src, []byte("The cat sleeps. The dog barks."), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(tgt, []byte("El gato duerme. El perro ladra."), 0o644); err != nil {
		t.Fatal(err)
	}

	result := decode[alignment.Result](t, env.mustRun(t, "--json", "align", "--src", "en", "--tgt", "es", src, tgt))
	if len(result.Alignments) != 2 || result.Alignments[1].TargetText != "El perro ladra." {
		t.Fatalf("unexpected alignment %#v", result.Alignments)
	}

	out := env.mustRun(t, "align", "--src", "en", "--tgt", "es", src, tgt)
	requireContains(t, out, "El gato duerme.")
	requireContains(t, out, "Quality:")
}

func TestArchiveCommands(t *testing.T) {
	disabled := setupCLITestEnv(t, false)
	if _, err := disabled.run(t, "archive", "refresh", "-p", "book"); !errors.Is(err, errArchiveDisabled) {
		t.Fatalf("expected disabled archive error, got %v", err)
	}

	env := setupCLITestEnv(t, true)
	env.mustRun(t, "unit", "add", "-p", "book", "--src", "en", "--tgt", "fr", "Thanks", "Merci")

	refreshed := decode[archive.RefreshResult](t, env.mustRun(t, "--json", "archive", "refresh", "-p", "book"))
	if refreshed.Units != 1 {
		t.Fatalf("unexpected refresh %#v", refreshed)
	}
	stats := decode[archive.Stats](t, env.mustRun(t, "--json", "archive", "stats", "-p", "book"))
	if stats.Units != 1 || stats.Bytes == 0 {
		t.Fatalf("unexpected archive stats %#v", stats)
	}
}

func TestDatabaseCommands(t *testing.T) {
	env := setupCLITestEnv(t, false)
	env.mustRun(t, "unit", "add", "-p", "book", "--src", "en", "--tgt", "es", "Yes", "Sí")

	backup := filepath.Join(env.baseDir, "backup", "tm.db")
	requireContains(t, env.mustRun(t, "db", "backup", backup), "Backed up database")
	if _, err := os.Stat(backup); err != nil {
		t.Fatalf("expected backup file: %v", err)
	}
	if _, err := env.run(t, "db", "backup", backup); !errors.Is(err, tmerr.ErrConflict) {
		t.Fatalf("expected conflict for existing backup, got %v", err)
	}
	requireContains(t, env.mustRun(t, "db", "optimize"), "Database optimized")

	stats := decode[store.ProjectStats](t, env.mustRun(t, "--json", "stats", "-p", "book"))
	if stats.Units != 1 {
		t.Fatalf("unexpected stats %#v", stats)
	}
	projects := decode[[]string](t, env.mustRun(t, "--json", "stats"))
	if len(projects) != 1 || projects[0] != "book" {
		t.Fatalf("unexpected projects %v", projects)
	}

	out := env.mustRun(t, "status")
	requireContains(t, out, "Database:")
	requireContains(t, out, "[OK]")
}

func TestParseTexts(t *testing.T) {
	got, err := parseTexts([]string{"en=Hello = world", " es =Hola"})
	if err != nil {
		t.Fatalf("parseTexts: %v", err)
	}
	if got["en"] != "Hello = world" || got["es"] != "Hola" {
		t.Fatalf("unexpected map %v", got)
	}
	for _, bad := range [][]string{{"=x"}, {"en"}, {"en=a", "en=b"}} {
		if _, err := parseTexts(bad); err == nil {
			t.Fatalf("expected error for %v", bad)
		}
	}
}

func TestFormatFor(t *testing.T) {
	tests := []struct {
		path, explicit string
		want           glossaryFormat
		wantErr        bool
	}{
		{path: "g.csv", want: formatCSV},
		{path: "g.YML", want: formatYAML},
		{path: "g.txt", explicit: "yaml", want: formatYAML},
		{path: "g.txt", wantErr: true},
	}
	for _, tt := range tests {
		got, err := formatFor(tt.path, tt.explicit)
		if (err != nil) != tt.wantErr || (!tt.wantErr && got != tt.want) {
			t.Fatalf("formatFor(%q, %q) = %v, %v", tt.path, tt.explicit, got, err)
		}
	}
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"A", "B"}, [][]string{{"1"}, {"2", "3"}}, []columnAlignment{alignLeft, alignRight}, false)
	requireContains(t, out, "A")
	requireContains(t, out, "3")
	if renderTable(nil, nil, nil, false) != "" {
		t.Fatal("expected empty render for no headers")
	}
}

func TestPairLabel(t *testing.T) {
	got := pairLabel(store.LanguagePair{Source: "en", Target: "fr"})
	if got != "English → French (en→fr)" {
		t.Fatalf("unexpected pair label %q", got)
	}
}
