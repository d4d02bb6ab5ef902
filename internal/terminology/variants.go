package terminology

import (
	"regexp"
	"slices"
	"strings"

	"golang.org/x/text/cases"

	"tmengine/internal/language"
)

// Variations returns the canonical term followed by its lower, upper, and
// title case forms and the simple plurals, without duplicates. Title casing
// follows the rules of lang.
func Variations(term, lang string) []string {
	title := cases.Title(language.Tag(lang)).String(term)
	forms := []string{
		term,
		strings.ToLower(term),
		strings.ToUpper(term),
		title,
		term + "s",
		term + "es",
	}
	out := make([]string, 0, len(forms))
	for _, f := range forms {
		if f != "" && !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	return out
}

// alternation joins quoted forms longest first so the regexp prefers the
// longest variant at a position.
func alternation(forms []string) string {
	sorted := slices.Clone(forms)
	slices.SortStableFunc(sorted, func(a, b string) int { return len(b) - len(a) })
	quoted := make([]string, len(sorted))
	for i, f := range sorted {
		quoted[i] = regexp.QuoteMeta(f)
	}
	return strings.Join(quoted, "|")
}
