package terminology

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"tmengine/internal/textutil"
	"tmengine/internal/tmerr"
)

// TermSuggestion proposes a glossary term for a word in the text.
type TermSuggestion struct {
	Word          string        `json:"word"`
	Start         int           `json:"start"`
	End           int           `json:"end"`
	TermID        string        `json:"term_id"`
	SuggestedTerm string        `json:"suggested_term"`
	Type          HighlightType `json:"type"`
	Confidence    float64       `json:"confidence"`
	Reason        string        `json:"reason"`
}

var significantWord = regexp.MustCompile(`\b[A-Za-z]{3,}\b`)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`the and for are but not you all can had her was one our out
		day get has him his how man new now old see two way who boy did its let put say she too use`) {
		stopwords[w] = struct{}{}
	}
}

// Suggest proposes known terms for words that are similar but not identical
// to them.
func (s *Service) Suggest(ctx context.Context, text, project, lang string) ([]TermSuggestion, error) {
	if strings.TrimSpace(project) == "" {
		return nil, tmerr.Invalid("project_id", "must not be empty")
	}
	key := lang + "|" + text
	if cached, ok := s.cache.Suggestions(project, key); ok {
		if list, ok := cached.([]TermSuggestion); ok {
			return slices.Clone(list), nil
		}
	}
	terms, err := s.terms(ctx, project)
	if err != nil {
		return nil, err
	}

	var out []TermSuggestion
	for _, loc := range significantWord.FindAllStringIndex(text, -1) {
		word := text[loc[0]:loc[1]]
		lower := strings.ToLower(word)
		if _, skip := stopwords[lower]; skip {
			continue
		}
		for _, term := range terms {
			sim := textutil.LevenshteinSimilarity(lower, strings.ToLower(term.Term))
			if sim <= s.cfg.SuggestLow || sim >= s.cfg.SuggestHigh {
				continue
			}
			typ := HighlightSuggested
			if term.DoNotTranslate {
				typ = HighlightDoNotTranslate
			}
			out = append(out, TermSuggestion{
				Word:          word,
				Start:         loc[0],
				End:           loc[1],
				TermID:        term.ID,
				SuggestedTerm: term.Term,
				Type:          typ,
				Confidence:    sim,
				Reason:        fmt.Sprintf("similar to existing term '%s' (%d%% match)", term.Term, int(math.Round(sim*100))),
			})
		}
	}

	slices.SortStableFunc(out, func(a, b TermSuggestion) int {
		if c := cmp.Compare(b.Confidence, a.Confidence); c != 0 {
			return c
		}
		return cmp.Compare(a.Start, b.Start)
	})
	seen := make(map[string]struct{}, len(out))
	deduped := make([]TermSuggestion, 0, len(out))
	for _, sug := range out {
		k := strings.ToLower(sug.Word) + "\x00" + sug.TermID
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		deduped = append(deduped, sug)
	}
	if limit := s.cfg.MaxSuggestions; limit > 0 && len(deduped) > limit {
		deduped = deduped[:limit]
	}
	s.cache.PutSuggestions(project, key, slices.Clone(deduped))
	return deduped, nil
}
