package terminology

import (
	"cmp"
	"context"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"tmengine/internal/language"
	"tmengine/internal/logging"
	"tmengine/internal/store"
	"tmengine/internal/tmerr"
)

// HighlightType classifies a highlighted span.
type HighlightType string

const (
	HighlightDoNotTranslate HighlightType = "do_not_translate"
	HighlightInconsistent   HighlightType = "inconsistent"
	HighlightSuggested      HighlightType = "suggested"
	HighlightValidated      HighlightType = "validated"
)

const (
	validatedConfidence = 0.9
	variantPenalty      = 0.8
	whitespaceBonus     = 1.1
	punctuationBonus    = 1.05
)

// TermHighlight is one glossary term occurrence. Start and End are byte
// offsets into the highlighted text.
type TermHighlight struct {
	TermID     string        `json:"term_id"`
	Term       string        `json:"term"`
	Matched    string        `json:"matched"`
	Start      int           `json:"start"`
	End        int           `json:"end"`
	Type       HighlightType `json:"type"`
	Definition *string       `json:"definition,omitempty"`
	Confidence float64       `json:"confidence"`
	Context    string        `json:"context"`
}

func (s *Service) patternVariant() string {
	return fmt.Sprintf("cs=%t,wb=%t,var=%t", s.cfg.CaseSensitive, s.cfg.WordBoundariesOnly, s.cfg.IncludeVariations)
}

func (s *Service) pattern(project, lang string, term *store.Term) (*regexp.Regexp, error) {
	variant := s.patternVariant()
	if s.cfg.IncludeVariations {
		variant += ",lang=" + language.Normalize(lang)
	}
	return s.cache.Pattern(project, term.Term, variant, func() (*regexp.Regexp, error) {
		forms := []string{term.Term}
		if s.cfg.IncludeVariations {
			forms = Variations(term.Term, lang)
		}
		expr := "(?:" + alternation(forms) + ")"
		if s.cfg.WordBoundariesOnly {
			expr = `\b` + expr + `\b`
		}
		if !s.cfg.CaseSensitive {
			expr = "(?i)" + expr
		}
		return regexp.Compile(expr)
	})
}

// Highlight returns every glossary term occurrence in text ordered by offset.
func (s *Service) Highlight(ctx context.Context, text, project, lang string) ([]TermHighlight, error) {
	return s.highlightRange(ctx, text, project, lang, 0, len(text))
}

// highlightRange finds the occurrences lying inside text[from:to]. The scan
// reaches one rune past each end so word boundaries at the edges see their
// real neighbours.
func (s *Service) highlightRange(ctx context.Context, text, project, lang string, from, to int) ([]TermHighlight, error) {
	if strings.TrimSpace(project) == "" {
		return nil, tmerr.Invalid("project_id", "must not be empty")
	}
	if from >= to {
		return []TermHighlight{}, nil
	}
	scanFrom, scanTo := from, to
	if scanFrom > 0 {
		_, size := utf8.DecodeLastRuneInString(text[:scanFrom])
		scanFrom -= size
	}
	if scanTo < len(text) {
		_, size := utf8.DecodeRuneInString(text[scanTo:])
		scanTo += size
	}
	terms, err := s.terms(ctx, project)
	if err != nil {
		return nil, err
	}
	var out []TermHighlight
	for _, term := range terms {
		if err := ctx.Err(); err != nil {
			return nil, tmerr.FromContext("terminology", "highlight", err)
		}
		re, err := s.pattern(project, lang, term)
		if err != nil {
			s.logger.Warn("term pattern rejected",
				logging.String("term", term.Term),
				logging.Error(err),
			)
			continue
		}
		for _, loc := range re.FindAllStringIndex(text[scanFrom:scanTo], -1) {
			start, end := loc[0]+scanFrom, loc[1]+scanFrom
			if start < from || end > to {
				continue
			}
			h, ok := s.buildHighlight(text, term, start, end)
			if ok {
				out = append(out, h)
			}
		}
	}
	if !s.cfg.AllowOverlaps {
		out = removeOverlaps(out)
	}
	slices.SortStableFunc(out, func(a, b TermHighlight) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		if c := cmp.Compare(a.End, b.End); c != 0 {
			return c
		}
		return cmp.Compare(a.Term, b.Term)
	})
	if out == nil {
		out = []TermHighlight{}
	}
	return out, nil
}

func (s *Service) buildHighlight(text string, term *store.Term, start, end int) (TermHighlight, bool) {
	matched := text[start:end]
	confidence := matchConfidence(text, matched, term.Term, start, end)
	if confidence < s.cfg.MinConfidence {
		return TermHighlight{}, false
	}
	return TermHighlight{
		TermID:     term.ID,
		Term:       term.Term,
		Matched:    matched,
		Start:      start,
		End:        end,
		Type:       classify(term, confidence),
		Definition: term.Definition,
		Confidence: confidence,
		Context:    extractContext(text, start, end, s.cfg.MaxContextLength),
	}, true
}

func classify(term *store.Term, confidence float64) HighlightType {
	switch {
	case term.DoNotTranslate:
		return HighlightDoNotTranslate
	case confidence >= validatedConfidence:
		return HighlightValidated
	default:
		return HighlightSuggested
	}
}

// matchConfidence starts at 1.0, penalizes non-canonical forms, and rewards
// clean surroundings. Text edges count as whitespace.
func matchConfidence(text, matched, canonical string, start, end int) float64 {
	confidence := 1.0
	if matched != canonical {
		confidence *= variantPenalty
	}
	before, after := ' ', ' '
	if start > 0 {
		before, _ = utf8.DecodeLastRuneInString(text[:start])
	}
	if end < len(text) {
		after, _ = utf8.DecodeRuneInString(text[end:])
	}
	switch {
	case unicode.IsSpace(before) && unicode.IsSpace(after):
		confidence *= whitespaceBonus
	case unicode.IsPunct(before) || unicode.IsPunct(after):
		confidence *= punctuationBonus
	}
	return min(confidence, 1.0)
}

// removeOverlaps keeps the highest-confidence highlight among overlapping
// spans, scanning left to right.
func removeOverlaps(in []TermHighlight) []TermHighlight {
	slices.SortStableFunc(in, func(a, b TermHighlight) int {
		if c := cmp.Compare(a.Start, b.Start); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(b.End-b.Start, a.End-a.Start)
	})
	out := in[:0]
	lastEnd := -1
	for _, h := range in {
		if h.Start < lastEnd {
			continue
		}
		out = append(out, h)
		lastEnd = h.End
	}
	return out
}

// extractContext returns up to maxLen/2 bytes either side of the span,
// snapped to rune boundaries, with "..." marking each cut end.
func extractContext(text string, start, end, maxLen int) string {
	if maxLen <= 0 {
		return text[start:end]
	}
	half := maxLen / 2
	from := max(0, start-half)
	to := min(len(text), end+half)
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	var b strings.Builder
	if from > 0 {
		b.WriteString("...")
	}
	b.WriteString(text[from:to])
	if to < len(text) {
		b.WriteString("...")
	}
	return b.String()
}

// Rehighlight rescans only the padded window around an edit in
// [changeStart, changeEnd) and returns highlights in document offsets.
// Matches are judged against the whole text, so a window edge inside a word
// is not a word boundary.
func (s *Service) Rehighlight(ctx context.Context, text string, changeStart, changeEnd int, project, lang string) ([]TermHighlight, error) {
	if changeStart < 0 || changeEnd < changeStart {
		return nil, tmerr.Invalid("change_range", "invalid range [%d,%d)", changeStart, changeEnd)
	}
	pad := s.cfg.RehighlightPadding
	from := max(0, min(changeStart, len(text))-pad)
	to := min(len(text), changeEnd+pad)
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to++
	}
	return s.highlightRange(ctx, text, project, lang, from, to)
}
