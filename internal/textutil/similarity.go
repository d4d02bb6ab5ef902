package textutil

import (
	"strings"
	"unicode/utf8"
)

// Normalize trims text and collapses internal whitespace runs to one space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// Words returns the lowercase whitespace-delimited tokens of text.
func Words(text string) []string {
	return strings.Fields(strings.ToLower(text))
}

// Jaccard returns |a ∩ b| / |a ∪ b| over the two token sets. Two empty sets
// score 0.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, token := range a {
		setA[token] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, token := range b {
		setB[token] = struct{}{}
	}
	var inter int
	for token := range setA {
		if _, ok := setB[token]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// WordSimilarity is the token-set Jaccard similarity of two texts.
func WordSimilarity(a, b string) float64 {
	return Jaccard(Words(a), Words(b))
}

// NGrams returns the lowercase character n-grams of text. Text shorter than n
// yields itself as the single gram.
func NGrams(text string, n int) []string {
	runes := []rune(strings.ToLower(text))
	if len(runes) == 0 {
		return nil
	}
	if n <= 0 || len(runes) < n {
		return []string{string(runes)}
	}
	grams := make([]string, 0, len(runes)-n+1)
	for i := 0; i+n <= len(runes); i++ {
		grams = append(grams, string(runes[i:i+n]))
	}
	return grams
}

// NGramSimilarity is the Jaccard overlap of the two texts' character n-grams.
func NGramSimilarity(a, b string, n int) float64 {
	return Jaccard(NGrams(a, n), NGrams(b, n))
}

// Levenshtein returns the rune edit distance between a and b.
func Levenshtein(a, b string) int {
	if a == b {
		return 0
	}
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// LevenshteinSimilarity returns 1 - distance/max_len. Two empty strings are
// identical.
func LevenshteinSimilarity(a, b string) float64 {
	maxLen := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	if maxLen == 0 {
		return 1
	}
	return Clamp01(1 - float64(Levenshtein(a, b))/float64(maxLen))
}

// Clamp01 bounds v to [0,1].
func Clamp01(v float64) float64 {
	return Clamp(v, 0, 1)
}

// Clamp bounds v to [lo,hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
