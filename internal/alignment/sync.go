package alignment

import (
	"context"
	"math"

	"tmengine/internal/language"
	"tmengine/internal/store"
	"tmengine/internal/textutil"
)

// BoundaryMapping maps the end of one source sentence onto the target text.
type BoundaryMapping struct {
	SourceIndex  int     `json:"source_index"`
	TargetIndex  int     `json:"target_index"`
	SourceOffset int     `json:"source_offset"`
	TargetOffset int     `json:"target_offset"`
	Confidence   float64 `json:"confidence"`
}

// SynchronizeBoundaries projects each source sentence end proportionally
// into the target and snaps it to the nearest target sentence end.
func SynchronizeBoundaries(source, target []SentenceBoundary) []BoundaryMapping {
	if len(source) == 0 || len(target) == 0 {
		return nil
	}
	srcLen := source[len(source)-1].End
	tgtLen := target[len(target)-1].End
	if srcLen == 0 || tgtLen == 0 {
		return nil
	}
	out := make([]BoundaryMapping, 0, len(source))
	for i, sb := range source {
		projected := int(math.Round(float64(sb.End) / float64(srcLen) * float64(tgtLen)))
		best, bestDist := 0, math.MaxInt
		for j, tb := range target {
			d := tb.End - projected
			if d < 0 {
				d = -d
			}
			if d < bestDist {
				best, bestDist = j, d
			}
		}
		out = append(out, BoundaryMapping{
			SourceIndex:  i,
			TargetIndex:  best,
			SourceOffset: sb.End,
			TargetOffset: projected,
			Confidence:   textutil.Clamp01(1 - float64(bestDist)/float64(tgtLen)),
		})
	}
	return out
}

// PairStatistics summarizes the stored alignments for one language pair.
type PairStatistics struct {
	SourceLanguage    string                        `json:"source_language"`
	TargetLanguage    string                        `json:"target_language"`
	Count             int                           `json:"count"`
	AverageConfidence float64                       `json:"average_confidence"`
	ValidatedShare    float64                       `json:"validated_share"`
	Methods           map[store.AlignmentMethod]int `json:"methods"`
}

// Statistics reports counts and confidence for a language pair.
func (s *Service) Statistics(ctx context.Context, langs Languages) (PairStatistics, error) {
	stats := PairStatistics{
		SourceLanguage: language.Normalize(langs.Source),
		TargetLanguage: language.Normalize(langs.Target),
		Methods:        make(map[store.AlignmentMethod]int),
	}
	alignments, err := s.store.AlignmentsByLanguages(ctx, stats.SourceLanguage, stats.TargetLanguage)
	if err != nil {
		return stats, err
	}
	var total float64
	validated := 0
	for _, a := range alignments {
		total += a.Confidence
		if a.Status == store.StatusValidated {
			validated++
		}
		stats.Methods[a.Method]++
	}
	stats.Count = len(alignments)
	if stats.Count > 0 {
		stats.AverageConfidence = total / float64(stats.Count)
		stats.ValidatedShare = float64(validated) / float64(stats.Count)
	}
	return stats, nil
}
