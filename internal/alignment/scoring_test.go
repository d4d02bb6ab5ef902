package alignment

import "testing"

func TestRelaxedDetection(t *testing.T) {
	text := "Is it? yes it is."
	if got := detect(text, "en", false); len(got) != 1 {
		t.Fatalf("strict detection: expected 1 sentence, got %#v", got)
	}
	got := detect(text, "en", true)
	if len(got) != 2 || got[0].Text != "Is it?" || got[0].Type != BoundaryQuestion {
		t.Fatalf("relaxed detection: unexpected %#v", got)
	}
}

func TestAbbreviationsDoNotSplit(t *testing.T) {
	got := DetectBoundaries("Use tools, e.g. Hammers. Then rest.", "en")
	if len(got) != 2 || got[0].Text != "Use tools, e.g. Hammers." {
		t.Fatalf("unexpected boundaries %#v", got)
	}
}

func TestStructureSimilarity(t *testing.T) {
	tests := []struct {
		source, target string
		want           float64
	}{
		{"plain", "words", 1},
		{"Hi, there.", "Hola, allí.", 1},
		{"Hi.", "Hola, sí, claro.", 1.0 / 3},
		{"«Quote»", "\"Quote\"", 1},
	}
	for _, tt := range tests {
		if got := structureSimilarity(tt.source, tt.target); got != tt.want {
			t.Fatalf("structureSimilarity(%q, %q) = %f, want %f", tt.source, tt.target, got, tt.want)
		}
	}
}

func TestFingerprint(t *testing.T) {
	langs := Languages{Source: "en", Target: "es"}
	got := Fingerprint("Hello, world.", "Hola, mundo.", langs)
	if got != "en>es|CT|CT|r4" {
		t.Fatalf("unexpected fingerprint %q", got)
	}
	if Fingerprint("a", "b", langs) != "en>es|-|-|r4" {
		t.Fatalf("expected empty class marker, got %q", Fingerprint("a", "b", langs))
	}
	if collapse([]byte("TTTCCT")) != "TCT" {
		t.Fatalf("expected collapsed repeats")
	}
}

func TestModelClampsWeights(t *testing.T) {
	m := newModel(10, 2)
	for range 5 {
		m.update(map[string]float64{"length_ratio": 1}, 1)
	}
	w, n := m.snapshot()
	if w["length_ratio"] != weightBound {
		t.Fatalf("expected weight clamped to %f, got %f", weightBound, w["length_ratio"])
	}
	if n != 2 {
		t.Fatalf("expected history capped at 2, got %d", n)
	}
}
