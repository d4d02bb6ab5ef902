package alignment

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"tmengine/internal/logging"
	"tmengine/internal/store"
	"tmengine/internal/tmerr"
)

// ManualAlignment describes a user-drawn pairing between two chunk spans.
type ManualAlignment struct {
	SourceChunkID string    `json:"source_chunk_id"`
	TargetChunkID string    `json:"target_chunk_id"`
	Source        Span      `json:"source"`
	Target        Span      `json:"target"`
	Languages     Languages `json:"languages"`
}

func checkSpan(field, text string, sp Span) error {
	if sp.Start < 0 || sp.End > len(text) || sp.Start >= sp.End {
		return tmerr.Invalid(field, "span [%d,%d) outside text of length %d", sp.Start, sp.End, len(text))
	}
	if !onRuneBoundary(text, sp.Start) || !onRuneBoundary(text, sp.End) {
		return tmerr.Invalid(field, "span [%d,%d) splits a character", sp.Start, sp.End)
	}
	return nil
}

func onRuneBoundary(text string, off int) bool {
	return off == len(text) || utf8.RuneStart(text[off])
}

// AlignManual stores a user-drawn alignment. It is validated with full
// confidence.
func (s *Service) AlignManual(ctx context.Context, m ManualAlignment) (*store.Alignment, error) {
	langs := m.Languages.normalized()
	if langs.Source == "" || langs.Target == "" {
		return nil, tmerr.Invalid("languages", "source and target language are required")
	}
	src, err := s.chunk(ctx, "align manual", m.SourceChunkID)
	if err != nil {
		return nil, err
	}
	tgt, err := s.chunk(ctx, "align manual", m.TargetChunkID)
	if err != nil {
		return nil, err
	}
	if err := checkSpan("source_span", src.Text, m.Source); err != nil {
		return nil, err
	}
	if err := checkSpan("target_span", tgt.Text, m.Target); err != nil {
		return nil, err
	}
	a := &store.Alignment{
		ID:             uuid.NewString(),
		ProjectID:      src.ProjectID,
		SourceChunkID:  src.ID,
		TargetChunkID:  tgt.ID,
		SourceStart:    m.Source.Start,
		SourceEnd:      m.Source.End,
		TargetStart:    m.Target.Start,
		TargetEnd:      m.Target.End,
		SourceText:     src.Text[m.Source.Start:m.Source.End],
		TargetText:     tgt.Text[m.Target.Start:m.Target.End],
		SourceLanguage: langs.Source,
		TargetLanguage: langs.Target,
		Confidence:     1,
		Method:         store.MethodUserValidated,
		Status:         store.StatusValidated,
	}
	a.Fingerprint = Fingerprint(a.SourceText, a.TargetText, langs)
	if err := s.save(ctx, a); err != nil {
		return nil, err
	}
	s.logger.Info("manual alignment stored",
		logging.Project(a.ProjectID),
		logging.String("alignment_id", a.ID),
	)
	return a, nil
}

// Unalign deletes a stored alignment.
func (s *Service) Unalign(ctx context.Context, id string) error {
	deleted, err := s.store.DeleteAlignment(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return tmerr.Wrap(tmerr.ErrNotFound, "alignment", "unalign", fmt.Sprintf("alignment %s", id), nil)
	}
	s.cache.DropIndicator(id)
	return nil
}

// adjacent reports whether only whitespace separates the two spans of text.
func adjacent(text string, first, second Span) bool {
	if second.Start < first.End {
		return false
	}
	return strings.TrimSpace(text[first.End:second.Start]) == ""
}

// joined builds an unsaved alignment covering both inputs. Texts are the
// full chunk or document texts the offsets refer to.
func (s *Service) joined(ctx context.Context, a, b *store.Alignment, source, target string) (*store.Alignment, error) {
	out := &store.Alignment{
		ID:             uuid.NewString(),
		ProjectID:      a.ProjectID,
		SourceChunkID:  a.SourceChunkID,
		TargetChunkID:  a.TargetChunkID,
		SourceStart:    min(a.SourceStart, b.SourceStart),
		SourceEnd:      max(a.SourceEnd, b.SourceEnd),
		TargetStart:    min(a.TargetStart, b.TargetStart),
		TargetEnd:      max(a.TargetEnd, b.TargetEnd),
		SourceLanguage: a.SourceLanguage,
		TargetLanguage: a.TargetLanguage,
		Method:         store.MethodHybrid,
		Status:         store.StatusPending,
	}
	out.SourceText = source[out.SourceStart:out.SourceEnd]
	out.TargetText = target[out.TargetStart:out.TargetEnd]
	err := s.score(ctx, out, chunkPosition(out, len(source), len(target)), make(map[string]float64))
	return out, err
}

// Merge joins two stored alignments of the same chunk pair that are
// adjacent on the source or the target side.
func (s *Service) Merge(ctx context.Context, firstID, secondID string) (*store.Alignment, error) {
	a, err := s.get(ctx, "merge", firstID)
	if err != nil {
		return nil, err
	}
	b, err := s.get(ctx, "merge", secondID)
	if err != nil {
		return nil, err
	}
	if a.ID == b.ID || a.SourceChunkID != b.SourceChunkID || a.TargetChunkID != b.TargetChunkID {
		return nil, tmerr.Wrap(tmerr.ErrConflict, "alignment", "merge", "alignments must be distinct and share a chunk pair", nil)
	}
	src, tgt, err := s.chunkPair(ctx, "merge", a)
	if err != nil {
		return nil, err
	}
	if b.SourceStart < a.SourceStart {
		a, b = b, a
	}
	sourceAdjacent := adjacent(src.Text, Span{a.SourceStart, a.SourceEnd}, Span{b.SourceStart, b.SourceEnd})
	first, second := a, b
	if second.TargetStart < first.TargetStart {
		first, second = second, first
	}
	targetAdjacent := adjacent(tgt.Text, Span{first.TargetStart, first.TargetEnd}, Span{second.TargetStart, second.TargetEnd})
	if !sourceAdjacent && !targetAdjacent {
		return nil, tmerr.Wrap(tmerr.ErrConflict, "alignment", "merge", "alignments are not adjacent", nil)
	}
	merged, err := s.joined(ctx, a, b, src.Text, tgt.Text)
	if err != nil {
		return nil, err
	}
	if err := s.replace(ctx, []string{a.ID, b.ID}, []*store.Alignment{merged}); err != nil {
		return nil, err
	}
	return merged, nil
}

// Split cuts a stored alignment in two at a source and a target offset.
// Offsets are positions in the chunk texts and must fall strictly inside
// the alignment's spans.
func (s *Service) Split(ctx context.Context, id string, sourceOffset, targetOffset int) ([]*store.Alignment, error) {
	a, err := s.get(ctx, "split", id)
	if err != nil {
		return nil, err
	}
	if sourceOffset <= a.SourceStart || sourceOffset >= a.SourceEnd {
		return nil, tmerr.Invalid("source_offset", "offset %d is not inside [%d,%d)", sourceOffset, a.SourceStart, a.SourceEnd)
	}
	if targetOffset <= a.TargetStart || targetOffset >= a.TargetEnd {
		return nil, tmerr.Invalid("target_offset", "offset %d is not inside [%d,%d)", targetOffset, a.TargetStart, a.TargetEnd)
	}
	src, tgt, err := s.chunkPair(ctx, "split", a)
	if err != nil {
		return nil, err
	}
	if !onRuneBoundary(src.Text, sourceOffset) || !onRuneBoundary(tgt.Text, targetOffset) {
		return nil, tmerr.Invalid("offset", "split offset falls inside a character")
	}

	halves := [][4]int{
		{a.SourceStart, sourceOffset, a.TargetStart, targetOffset},
		{sourceOffset, a.SourceEnd, targetOffset, a.TargetEnd},
	}
	parts := make([]*store.Alignment, 0, len(halves))
	for _, h := range halves {
		sText, sStart, sEnd := spanText(src.Text, h[0], h[1])
		tText, tStart, tEnd := spanText(tgt.Text, h[2], h[3])
		if sText == "" || tText == "" {
			return nil, tmerr.Invalid("offset", "split would leave an empty side")
		}
		part := &store.Alignment{
			ID:             uuid.NewString(),
			ProjectID:      a.ProjectID,
			SourceChunkID:  a.SourceChunkID,
			TargetChunkID:  a.TargetChunkID,
			SourceStart:    sStart,
			SourceEnd:      sEnd,
			TargetStart:    tStart,
			TargetEnd:      tEnd,
			SourceText:     sText,
			TargetText:     tText,
			SourceLanguage: a.SourceLanguage,
			TargetLanguage: a.TargetLanguage,
			Method:         store.MethodHybrid,
			Status:         store.StatusPending,
		}
		if err := s.score(ctx, part, chunkPosition(part, len(src.Text), len(tgt.Text)), make(map[string]float64)); err != nil {
			return nil, err
		}
		parts = append(parts, part)
	}
	if err := s.replace(ctx, []string{a.ID}, parts); err != nil {
		return nil, err
	}
	return parts, nil
}

func (s *Service) replace(ctx context.Context, remove []string, keep []*store.Alignment) error {
	if err := s.store.ReplaceAlignments(ctx, remove, keep); err != nil {
		return err
	}
	for _, id := range remove {
		s.cache.DropIndicator(id)
	}
	s.putIndicators(keep)
	return nil
}

// AutoFix applies the automatic remedy for one problem of result and
// recomputes its problems, quality, and health. Results that came from
// stored chunks are persisted. Only length mismatches and boundary errors
// can be fixed automatically, and validated or rejected alignments are never
// touched.
func (s *Service) AutoFix(ctx context.Context, result *Result, problemIndex int) (*Result, error) {
	if result == nil || problemIndex < 0 || problemIndex >= len(result.Problems) {
		return nil, tmerr.Invalid("problem_index", "no problem at index %d", problemIndex)
	}
	p := result.Problems[problemIndex]
	idx := p.AlignmentIndex
	if idx < 0 || idx >= len(result.Alignments) {
		return nil, tmerr.Wrap(tmerr.ErrConflict, "alignment", "auto fix",
			fmt.Sprintf("%s requires manual operation", p.Kind), nil)
	}
	target := result.Alignments[idx]
	if target.Status.Terminal() {
		return nil, tmerr.Wrap(tmerr.ErrConflict, "alignment", "auto fix",
			fmt.Sprintf("alignment %d is %s and only changes after a reset", idx, target.Status), nil)
	}

	var remove []*store.Alignment
	var added []*store.Alignment
	switch p.Kind {
	case ProblemLengthMismatch:
		other := mergeNeighbour(result.Alignments, idx)
		if other == nil {
			return nil, tmerr.Wrap(tmerr.ErrConflict, "alignment", "auto fix", "no open neighbouring alignment to merge with", nil)
		}
		merged, err := s.joined(ctx, target, other, result.Source, result.Target)
		if err != nil {
			return nil, err
		}
		remove = []*store.Alignment{target, other}
		added = []*store.Alignment{merged}
	case ProblemBoundaryDetectionError:
		srcBounds := redetect(result.Source, target.SourceStart, target.SourceEnd, result.Languages.Source)
		tgtBounds := redetect(result.Target, target.TargetStart, target.TargetEnd, result.Languages.Target)
		realigned, _, err := s.alignBoundaries(ctx, srcBounds, tgtBounds, result.Languages)
		if err != nil {
			return nil, err
		}
		if len(realigned) == 0 {
			return nil, tmerr.Wrap(tmerr.ErrConflict, "alignment", "auto fix", "re-detection found no sentences", nil)
		}
		for _, a := range realigned {
			a.ProjectID = target.ProjectID
			a.SourceChunkID = target.SourceChunkID
			a.TargetChunkID = target.TargetChunkID
		}
		remove = []*store.Alignment{target}
		added = realigned
	case ProblemStructuralDivergence, ProblemMissingSentence, ProblemExtraSentence, ProblemOrderMismatch:
		return nil, tmerr.Wrap(tmerr.ErrConflict, "alignment", "auto fix",
			fmt.Sprintf("%s requires manual operation", p.Kind), nil)
	default:
		return nil, tmerr.Invalid("problem_kind", "unknown problem kind %q", p.Kind)
	}

	removeIDs := make([]string, 0, len(remove))
	for _, a := range remove {
		removeIDs = append(removeIDs, a.ID)
	}
	if result.SourceChunkID != "" {
		if err := s.store.ReplaceAlignments(ctx, removeIDs, added); err != nil {
			return nil, err
		}
	}
	for _, id := range removeIDs {
		s.cache.DropIndicator(id)
	}
	result.Alignments = slices.DeleteFunc(result.Alignments, func(a *store.Alignment) bool {
		return slices.Contains(removeIDs, a.ID)
	})
	result.Alignments = append(result.Alignments, added...)
	sortAlignments(result.Alignments)
	s.finish(result)
	s.putIndicators(added)

	s.logger.Info("alignment problem fixed",
		logging.String("kind", string(p.Kind)),
		logging.Int("removed", len(removeIDs)),
		logging.Int("added", len(added)),
		logging.Float64("quality", result.Quality.Overall),
	)
	return result, nil
}

// mergeNeighbour picks the following alignment, else the preceding one,
// skipping validated and rejected alignments.
func mergeNeighbour(alignments []*store.Alignment, idx int) *store.Alignment {
	for _, n := range []int{idx + 1, idx - 1} {
		if n >= 0 && n < len(alignments) && !alignments[n].Status.Terminal() {
			return alignments[n]
		}
	}
	return nil
}

// redetect runs relaxed boundary detection over text[start:end] and maps
// the results back to offsets in text.
func redetect(text string, start, end int, lang string) []SentenceBoundary {
	bounds := detect(text[start:end], lang, true)
	for i := range bounds {
		bounds[i].Start += start
		bounds[i].End += start
	}
	return bounds
}
