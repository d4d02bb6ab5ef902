package alignment

import (
	"cmp"
	"context"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"tmengine/internal/language"
	"tmengine/internal/logging"
	"tmengine/internal/store"
	"tmengine/internal/textutil"
	"tmengine/internal/tmerr"
)

const (
	skipPenalty       = -0.5
	countTolerance    = 0.2
	learnedScale      = 0.2
	ratioPassBlend    = 0.7
	ratioPassPenalty  = 0.5
	ratioPassDevScale = 0.3
)

// Languages is the source and target language of an alignment.
type Languages struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

func (l Languages) normalized() Languages {
	return Languages{Source: language.Normalize(l.Source), Target: language.Normalize(l.Target)}
}

// RunStatistics summarizes one alignment run.
type RunStatistics struct {
	SourceSentences   int           `json:"source_sentences"`
	TargetSentences   int           `json:"target_sentences"`
	Aligned           int           `json:"aligned"`
	Validated         int           `json:"validated"`
	AverageConfidence float64       `json:"average_confidence"`
	Accuracy          float64       `json:"accuracy"`
	Duration          time.Duration `json:"duration"`
}

// Result is the outcome of aligning two texts.
type Result struct {
	ProjectID        string             `json:"project_id,omitempty"`
	SourceChunkID    string             `json:"source_chunk_id,omitempty"`
	TargetChunkID    string             `json:"target_chunk_id,omitempty"`
	Languages        Languages          `json:"languages"`
	Source           string             `json:"-"`
	Target           string             `json:"-"`
	SourceBoundaries []SentenceBoundary `json:"source_boundaries"`
	TargetBoundaries []SentenceBoundary `json:"target_boundaries"`
	Alignments       []*store.Alignment `json:"alignments"`
	Problems         []Problem          `json:"problems"`
	Quality          Quality            `json:"quality"`
	Health           Health             `json:"health"`
	Statistics       RunStatistics      `json:"statistics"`
}

type pair struct {
	src, tgt int
	posSim   float64
}

// Align detects sentences in both texts, pairs them, and scores each pair.
// Nothing is persisted; see AlignChunks.
func (s *Service) Align(ctx context.Context, source, target string, langs Languages) (*Result, error) {
	started := time.Now()
	langs = langs.normalized()
	if langs.Source == "" {
		return nil, tmerr.Invalid("source_language", "must not be empty")
	}
	if langs.Target == "" {
		return nil, tmerr.Invalid("target_language", "must not be empty")
	}

	result := &Result{
		Languages:        langs,
		Source:           source,
		Target:           target,
		SourceBoundaries: DetectBoundaries(source, langs.Source),
		TargetBoundaries: DetectBoundaries(target, langs.Target),
	}
	alignments, unpaired, err := s.alignBoundaries(ctx, result.SourceBoundaries, result.TargetBoundaries, langs)
	if err != nil {
		return nil, err
	}
	result.Alignments = alignments
	result.Problems = unpaired
	s.finish(result)
	result.Statistics.Duration = time.Since(started)
	s.putIndicators(result.Alignments)

	s.logger.Debug("alignment complete",
		logging.Pair(langs.Source, langs.Target),
		logging.Int("source_sentences", len(result.SourceBoundaries)),
		logging.Int("target_sentences", len(result.TargetBoundaries)),
		logging.Int("alignments", len(result.Alignments)),
		logging.Duration("duration", result.Statistics.Duration),
	)
	return result, nil
}

// alignBoundaries pairs the sentences and builds scored alignments plus
// problems for sentences left unpaired.
func (s *Service) alignBoundaries(ctx context.Context, src, tgt []SentenceBoundary, langs Languages) ([]*store.Alignment, []Problem, error) {
	pairs, method, err := s.pairSentences(ctx, src, tgt, langs)
	if err != nil {
		return nil, nil, err
	}
	priors := make(map[string]float64)
	alignments := make([]*store.Alignment, 0, len(pairs))
	usedSrc := make([]bool, len(src))
	usedTgt := make([]bool, len(tgt))
	for _, p := range pairs {
		sb, tb := src[p.src], tgt[p.tgt]
		usedSrc[p.src], usedTgt[p.tgt] = true, true
		a := &store.Alignment{
			ID:             uuid.NewString(),
			SourceStart:    sb.Start,
			SourceEnd:      sb.End,
			TargetStart:    tb.Start,
			TargetEnd:      tb.End,
			SourceText:     sb.Text,
			TargetText:     tb.Text,
			SourceLanguage: langs.Source,
			TargetLanguage: langs.Target,
			Method:         method,
			Status:         store.StatusPending,
		}
		if err := s.score(ctx, a, p.posSim, priors); err != nil {
			return nil, nil, err
		}
		alignments = append(alignments, a)
	}

	var problems []Problem
	for i, used := range usedSrc {
		if !used {
			problems = append(problems, newProblem(ProblemMissingSentence, -1, Span{src[i].Start, src[i].End}, Span{}))
		}
	}
	for j, used := range usedTgt {
		if !used {
			problems = append(problems, newProblem(ProblemExtraSentence, -1, Span{}, Span{tgt[j].Start, tgt[j].End}))
		}
	}
	return alignments, problems, nil
}

// pairSentences pairs by position when the counts are within tolerance and
// falls back to dynamic programming otherwise.
func (s *Service) pairSentences(ctx context.Context, src, tgt []SentenceBoundary, langs Languages) ([]pair, store.AlignmentMethod, error) {
	ns, nt := len(src), len(tgt)
	if ns == 0 || nt == 0 {
		return nil, store.MethodPositionBased, nil
	}
	if abs(float64(ns)/float64(nt)-1) < countTolerance {
		pairs := make([]pair, 0, min(ns, nt))
		for i := 0; i < min(ns, nt); i++ {
			pairs = append(pairs, pair{src: i, tgt: i, posSim: positionSimilarity(i, ns, i, nt)})
		}
		return pairs, store.MethodPositionBased, nil
	}

	score := make([][]float64, ns+1)
	move := make([][]byte, ns+1)
	for i := range score {
		score[i] = make([]float64, nt+1)
		move[i] = make([]byte, nt+1)
		score[i][0] = skipPenalty * float64(i)
		move[i][0] = 'u'
	}
	for j := 1; j <= nt; j++ {
		score[0][j] = skipPenalty * float64(j)
		move[0][j] = 'l'
	}
	for i := 1; i <= ns; i++ {
		if err := ctx.Err(); err != nil {
			return nil, "", tmerr.FromContext("alignment", "align", err)
		}
		for j := 1; j <= nt; j++ {
			pos := positionSimilarity(i-1, ns, j-1, nt)
			diag := score[i-1][j-1] + s.pairConfidence(src[i-1].Text, tgt[j-1].Text, pos, langs)
			up := score[i-1][j] + skipPenalty
			left := score[i][j-1] + skipPenalty
			switch {
			case diag >= up && diag >= left:
				score[i][j], move[i][j] = diag, 'd'
			case up >= left:
				score[i][j], move[i][j] = up, 'u'
			default:
				score[i][j], move[i][j] = left, 'l'
			}
		}
	}

	var pairs []pair
	for i, j := ns, nt; i > 0 && j > 0; {
		switch move[i][j] {
		case 'd':
			pairs = append(pairs, pair{src: i - 1, tgt: j - 1, posSim: positionSimilarity(i-1, ns, j-1, nt)})
			i, j = i-1, j-1
		case 'u':
			i--
		default:
			j--
		}
	}
	slices.Reverse(pairs)
	return pairs, store.MethodHybrid, nil
}

// score sets the alignment's confidence, method, status, and fingerprint.
// Terminal statuses are left alone.
func (s *Service) score(ctx context.Context, a *store.Alignment, posSim float64, priors map[string]float64) error {
	langs := Languages{Source: a.SourceLanguage, Target: a.TargetLanguage}
	conf := s.pairConfidence(a.SourceText, a.TargetText, posSim, langs)
	method := a.Method
	status := store.StatusPending

	maxDev := s.cfg.MaxLengthRatioDeviation
	dev := abs(lengthRatio(a.SourceText, a.TargetText)/expectedRatio(langs) - 1)
	if maxDev > 0 && dev <= maxDev {
		conf = ratioPassBlend*conf + (1-ratioPassBlend)*(1-dev/maxDev*ratioPassDevScale)
		method = store.MethodLengthRatio
	} else {
		conf *= ratioPassPenalty
		status = store.StatusNeedsReview
	}

	a.Fingerprint = Fingerprint(a.SourceText, a.TargetText, langs)
	if s.cfg.EnableLearning {
		before := conf
		adjust := s.model.adjust(features(a.SourceText, a.TargetText, posSim))
		prior, err := s.prior(ctx, a.Fingerprint, priors)
		if err != nil {
			return err
		}
		conf = textutil.Clamp01(conf + learnedScale*adjust + prior)
		if before < s.cfg.ConfidenceThreshold && conf >= s.cfg.ConfidenceThreshold {
			method = store.MethodMachineLearning
		}
	}
	if conf >= s.cfg.AutoValidationThreshold {
		status = store.StatusValidated
	}

	a.Confidence = textutil.Clamp01(conf)
	if a.Status.Terminal() {
		return nil
	}
	if a.Method != store.MethodUserValidated {
		a.Method = method
	}
	a.Status = status
	return nil
}

func sortAlignments(alignments []*store.Alignment) {
	slices.SortStableFunc(alignments, func(a, b *store.Alignment) int {
		if c := cmp.Compare(a.SourceStart, b.SourceStart); c != 0 {
			return c
		}
		return cmp.Compare(a.TargetStart, b.TargetStart)
	})
}

// finish recomputes alignment problems, quality, health, and statistics.
// Unpaired-sentence problems already on the result are kept.
func (s *Service) finish(r *Result) {
	var carried []Problem
	for _, p := range r.Problems {
		if p.Kind == ProblemMissingSentence || p.Kind == ProblemExtraSentence {
			carried = append(carried, p)
		}
	}
	problems := append(carried, identifyProblems(r.Alignments)...)
	for i := range problems {
		problems[i].Informational = problems[i].Severity <= s.cfg.ProblemSeverityFloor
	}
	if problems == nil {
		problems = []Problem{}
	}
	r.Problems = problems
	r.Quality = computeQuality(r.Alignments)
	r.Health = s.health(r.Quality, r.Problems)

	stats := RunStatistics{
		SourceSentences: len(r.SourceBoundaries),
		TargetSentences: len(r.TargetBoundaries),
		Duration:        r.Statistics.Duration,
	}
	var total float64
	for _, a := range r.Alignments {
		total += a.Confidence
		if a.Confidence >= s.cfg.ConfidenceThreshold {
			stats.Aligned++
		}
		if a.Status == store.StatusValidated {
			stats.Validated++
		}
	}
	if n := len(r.Alignments); n > 0 {
		stats.AverageConfidence = total / float64(n)
		stats.Accuracy = float64(stats.Aligned) / float64(n)
	}
	r.Statistics = stats
}

// spanText returns the trimmed text of text[start:end] and the trimmed
// span's offsets.
func spanText(text string, start, end int) (string, int, int) {
	segment := text[start:end]
	trimmed := strings.TrimSpace(segment)
	if trimmed == "" {
		return "", start, start
	}
	lead := strings.Index(segment, trimmed)
	return trimmed, start + lead, start + lead + len(trimmed)
}

// chunkPosition approximates position similarity for a stored alignment
// from its relative offsets in the two chunks.
func chunkPosition(a *store.Alignment, sourceLen, targetLen int) float64 {
	if sourceLen == 0 || targetLen == 0 {
		return offsetSimilarity(a.SourceStart, a.TargetStart)
	}
	return 1 - math.Abs(float64(a.SourceStart)/float64(sourceLen)-float64(a.TargetStart)/float64(targetLen))
}
