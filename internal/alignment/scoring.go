package alignment

import (
	"fmt"
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"tmengine/internal/language"
	"tmengine/internal/textutil"
)

// punctClass buckets punctuation so different scripts' marks compare equal.
func punctClass(r rune) byte {
	switch r {
	case '.', '!', '?', '…', '¡', '¿':
		return 'T'
	case ',', ';', ':', '、', '，':
		return 'C'
	case '"', '\'', '«', '»', '“', '”', '„', '‘', '’':
		return 'Q'
	case '(', ')', '[', ']', '{', '}':
		return 'B'
	case '-', '–', '—':
		return 'D'
	}
	if unicode.IsPunct(r) || unicode.IsSymbol(r) {
		return 'O'
	}
	return 0
}

func punctClasses(text string) []byte {
	var out []byte
	for _, r := range text {
		if c := punctClass(r); c != 0 {
			out = append(out, c)
		}
	}
	return out
}

// structureSimilarity is the multiset overlap of the two texts' punctuation
// classes divided by the larger count. Two texts without punctuation match.
func structureSimilarity(source, target string) float64 {
	sc, tc := punctClasses(source), punctClasses(target)
	if len(sc) == 0 && len(tc) == 0 {
		return 1
	}
	counts := make(map[byte]int, len(tc))
	for _, c := range tc {
		counts[c]++
	}
	common := 0
	for _, c := range sc {
		if counts[c] > 0 {
			counts[c]--
			common++
		}
	}
	return float64(common) / float64(max(len(sc), len(tc)))
}

func lengthRatio(source, target string) float64 {
	return float64(utf8.RuneCountInString(target)) / float64(max(utf8.RuneCountInString(source), 1))
}

// ratioSimilarity compares the observed length ratio to the languages'
// typical ratio.
func ratioSimilarity(source, target string, langs Languages) float64 {
	dev := abs(lengthRatio(source, target)/expectedRatio(langs) - 1)
	return 1 - min(dev/2, 1)
}

func positionSimilarity(i, ns, j, nt int) float64 {
	if ns == 0 || nt == 0 {
		return 0
	}
	return 1 - abs(float64(i)/float64(ns)-float64(j)/float64(nt))
}

// offsetSimilarity approximates position similarity from byte offsets when
// sentence indexes are unknown.
func offsetSimilarity(sourceStart, targetStart int) float64 {
	return 1 - min(abs(float64(sourceStart-targetStart))/1000, 1)
}

// features feeds the learned adjustment. Keys must match the model weights.
func features(source, target string, posSim float64) map[string]float64 {
	return map[string]float64{
		"position_similarity":  posSim,
		"length_ratio":         lengthRatio(source, target),
		"structure_similarity": structureSimilarity(source, target),
	}
}

// Fingerprint is the structural signature used to match corrections with
// future pairs: the language pair, both punctuation class sequences, and a
// bucketed length ratio.
func Fingerprint(source, target string, langs Languages) string {
	bucket := int(math.Round(min(lengthRatio(source, target), 4) * 4))
	return fmt.Sprintf("%s>%s|%s|%s|r%d",
		language.Normalize(langs.Source), language.Normalize(langs.Target),
		collapse(punctClasses(source)), collapse(punctClasses(target)), bucket)
}

// collapse removes consecutive repeats and caps the sequence length.
func collapse(classes []byte) string {
	const maxLen = 8
	var b strings.Builder
	var last byte
	for _, c := range classes {
		if c == last {
			continue
		}
		if b.Len() == maxLen {
			break
		}
		b.WriteByte(c)
		last = c
	}
	if b.Len() == 0 {
		return "-"
	}
	return b.String()
}

// pairConfidence is the weighted blend of position, length ratio, and
// structure similarity.
func (s *Service) pairConfidence(source, target string, posSim float64, langs Languages) float64 {
	return textutil.Clamp01(
		s.cfg.PositionWeight*posSim +
			s.cfg.LengthWeight*ratioSimilarity(source, target, langs) +
			s.cfg.StructureWeight*structureSimilarity(source, target))
}
