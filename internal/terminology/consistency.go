package terminology

import (
	"context"
	"regexp"
	"slices"
	"strings"

	"tmengine/internal/logging"
	"tmengine/internal/store"
	"tmengine/internal/tmerr"
)

// Severity ranks an inconsistency.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

const (
	consistencyExact   = 1.0
	consistencyVariant = 0.7
	consistencyAbsent  = 0.3
)

// Span is a half-open byte range.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Inconsistency reports non-canonical renderings of a term in one language.
type Inconsistency struct {
	TermID     string        `json:"term_id"`
	Term       string        `json:"term"`
	Language   string        `json:"language"`
	Found      []string      `json:"found"`
	Expected   string        `json:"expected"`
	Positions  []Span        `json:"positions"`
	Severity   Severity      `json:"severity"`
	Confidence float64       `json:"confidence"`
	Type       HighlightType `json:"type"`
}

var importantTokens = []string{"api", "json", "xml", "http", "url", "id", "uuid"}

var tokenSplit = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// highImportance reports whether drift in term is worth flagging even when it
// is translatable.
func highImportance(t *store.Term) bool {
	if t.DoNotTranslate || t.DefinitionText() != "" {
		return true
	}
	if strings.ToUpper(t.Term) == t.Term && strings.ToLower(t.Term) != t.Term {
		return true
	}
	for _, tok := range tokenSplit.Split(strings.ToLower(t.Term), -1) {
		if slices.Contains(importantTokens, tok) {
			return true
		}
	}
	return false
}

type occurrence struct {
	core string
	span Span
}

// occurrences finds the term, its variants, and hyphenated compounds in text.
// The span covers the whole compound; core is the term portion only.
func occurrences(term, lang, text string) ([]occurrence, error) {
	expr := `(?i)(?:[\p{L}\p{N}]+-)?\b(` + alternation(Variations(term, lang)) + `)\b(?:-[\p{L}\p{N}]+)?`
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, err
	}
	var out []occurrence
	for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
		out = append(out, occurrence{
			core: text[m[2]:m[3]],
			span: Span{Start: m[0], End: m[1]},
		})
	}
	return out, nil
}

// CheckConsistency compares do-not-translate and high-importance terms
// across texts keyed by language code.
func (s *Service) CheckConsistency(ctx context.Context, textsByLanguage map[string]string, project string) ([]Inconsistency, error) {
	if strings.TrimSpace(project) == "" {
		return nil, tmerr.Invalid("project_id", "must not be empty")
	}
	terms, err := s.terms(ctx, project)
	if err != nil {
		return nil, err
	}
	langs := make([]string, 0, len(textsByLanguage))
	for lang := range textsByLanguage {
		langs = append(langs, lang)
	}
	slices.Sort(langs)

	out := []Inconsistency{}
	for _, term := range terms {
		if !highImportance(term) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, tmerr.FromContext("terminology", "check consistency", err)
		}
		var (
			total    float64
			findings []Inconsistency
		)
		for _, lang := range langs {
			occs, err := occurrences(term.Term, lang, textsByLanguage[lang])
			if err != nil {
				s.logger.Warn("consistency pattern rejected", logging.String("term", term.Term), logging.Error(err))
				continue
			}
			if len(occs) == 0 {
				total += consistencyAbsent
				continue
			}
			var found []string
			var spans []Span
			for _, o := range occs {
				if o.core == term.Term {
					continue
				}
				if !slices.Contains(found, o.core) {
					found = append(found, o.core)
				}
				spans = append(spans, o.span)
			}
			if len(spans) == 0 {
				total += consistencyExact
				continue
			}
			total += consistencyVariant
			findings = append(findings, Inconsistency{
				TermID:     term.ID,
				Term:       term.Term,
				Language:   lang,
				Found:      found,
				Expected:   term.Term,
				Positions:  spans,
				Confidence: consistencyVariant,
				Type:       HighlightInconsistent,
			})
		}
		if len(findings) == 0 {
			continue
		}
		severity := severityFor(term.DoNotTranslate, len(langs), total/float64(len(langs)))
		for i := range findings {
			findings[i].Severity = severity
		}
		out = append(out, findings...)
	}
	return out, nil
}

func severityFor(doNotTranslate bool, languages int, average float64) Severity {
	switch {
	case doNotTranslate && average < 0.5:
		return SeverityCritical
	case languages > 3 && average < 0.6:
		return SeverityHigh
	case languages > 1 && average < 0.7:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
