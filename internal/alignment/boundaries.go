package alignment

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"tmengine/internal/textutil"
)

// BoundaryType is how a sentence ends.
type BoundaryType string

const (
	BoundaryPeriod         BoundaryType = "period"
	BoundaryExclamation    BoundaryType = "exclamation"
	BoundaryQuestion       BoundaryType = "question"
	BoundaryEllipsis       BoundaryType = "ellipsis"
	BoundaryEndOfParagraph BoundaryType = "end_of_paragraph"
)

func (t BoundaryType) baseConfidence() float64 {
	switch t {
	case BoundaryPeriod:
		return 0.8
	case BoundaryExclamation, BoundaryQuestion:
		return 0.9
	case BoundaryEllipsis:
		return 0.7
	case BoundaryEndOfParagraph:
		return 0.9
	default:
		return 0.6
	}
}

// SentenceBoundary is one detected sentence. Start and End are byte offsets
// of the trimmed sentence in the scanned text.
type SentenceBoundary struct {
	Start      int          `json:"start"`
	End        int          `json:"end"`
	Text       string       `json:"text"`
	Type       BoundaryType `json:"type"`
	Confidence float64      `json:"confidence"`
}

var terminatorRun = regexp.MustCompile(`[.!?…]+`)

// DetectBoundaries splits text into sentences. A terminator run ends a
// sentence when it is followed by whitespace and an uppercase letter, or by
// the end of a paragraph. Known abbreviations never end a sentence.
func DetectBoundaries(text, lang string) []SentenceBoundary {
	return detect(text, lang, false)
}

// detect implements DetectBoundaries. relaxed accepts any letter or digit
// after the whitespace, not only an uppercase letter.
func detect(text, lang string, relaxed bool) []SentenceBoundary {
	profile := ProfileFor(lang)
	out := []SentenceBoundary{}
	offset := 0
	for _, para := range strings.SplitAfter(text, "\n") {
		base := offset
		offset += len(para)
		body := strings.TrimRight(para, "\n")
		if strings.TrimSpace(body) == "" {
			continue
		}
		start := 0
		for _, run := range terminatorRun.FindAllStringIndex(body, -1) {
			end := run[1]
			if !endsSentence(body, run[0], end, profile, relaxed) {
				continue
			}
			if b, ok := makeBoundary(text, base+start, base+end, profile); ok {
				out = append(out, b)
			}
			start = end
		}
		if b, ok := makeBoundary(text, base+start, base+len(body), profile); ok {
			out = append(out, b)
		}
	}
	return out
}

func endsSentence(body string, runStart, runEnd int, profile Profile, relaxed bool) bool {
	rest := body[runEnd:]
	trimmed := strings.TrimLeftFunc(rest, unicode.IsSpace)
	if trimmed == "" {
		return true
	}
	if len(trimmed) == len(rest) {
		return false
	}
	next, _ := utf8.DecodeRuneInString(trimmed)
	if relaxed {
		if !unicode.IsLetter(next) && !unicode.IsDigit(next) {
			return false
		}
	} else if !unicode.IsUpper(next) {
		return false
	}
	if body[runStart:runEnd] == "." && isAbbreviation(body[:runStart], profile) {
		return false
	}
	return true
}

func isAbbreviation(before string, profile Profile) bool {
	idx := strings.LastIndexFunc(before, unicode.IsSpace)
	word := strings.ToLower(strings.TrimLeftFunc(before[idx+1:], func(r rune) bool {
		return unicode.IsPunct(r) && r != '.'
	}))
	return word != "" && slices.Contains(profile.Abbreviations, word)
}

func makeBoundary(text string, start, end int, profile Profile) (SentenceBoundary, bool) {
	segment := text[start:end]
	trimmed := strings.TrimSpace(segment)
	if trimmed == "" {
		return SentenceBoundary{}, false
	}
	lead := strings.Index(segment, trimmed)
	typ := boundaryType(trimmed)
	return SentenceBoundary{
		Start:      start + lead,
		End:        start + lead + len(trimmed),
		Text:       trimmed,
		Type:       typ,
		Confidence: boundaryConfidence(trimmed, typ, profile),
	}, true
}

func boundaryType(sentence string) BoundaryType {
	switch {
	case strings.HasSuffix(sentence, "?"):
		return BoundaryQuestion
	case strings.HasSuffix(sentence, "!"):
		return BoundaryExclamation
	case strings.HasSuffix(sentence, "..."), strings.HasSuffix(sentence, "…"):
		return BoundaryEllipsis
	case strings.HasSuffix(sentence, "."):
		return BoundaryPeriod
	default:
		return BoundaryEndOfParagraph
	}
}

// boundaryConfidence blends the type's base confidence with how typical the
// sentence length and word count are for the language.
func boundaryConfidence(sentence string, typ BoundaryType, profile Profile) float64 {
	length := float64(utf8.RuneCountInString(sentence))
	words := float64(len(strings.Fields(sentence)))
	lengthDev := abs(length-profile.AvgChars) / profile.Variance
	lengthScore := 1 - min(lengthDev/3, 1)
	wordDev := abs(words-profile.AvgWords) / (profile.AvgWords * 0.5)
	wordScore := 1 - min(wordDev/2, 1)
	return textutil.Clamp(0.5*typ.baseConfidence()+0.3*lengthScore+0.2*wordScore, 0.1, 1)
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
