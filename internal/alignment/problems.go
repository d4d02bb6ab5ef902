package alignment

import (
	"fmt"
	"math"

	"tmengine/internal/store"
	"tmengine/internal/textutil"
)

// ProblemKind classifies an alignment problem area.
type ProblemKind string

const (
	ProblemLengthMismatch         ProblemKind = "length_mismatch"
	ProblemBoundaryDetectionError ProblemKind = "boundary_detection_error"
	ProblemStructuralDivergence   ProblemKind = "structural_divergence"
	ProblemMissingSentence        ProblemKind = "missing_sentence"
	ProblemExtraSentence          ProblemKind = "extra_sentence"
	ProblemOrderMismatch          ProblemKind = "order_mismatch"
)

const (
	maxLengthRatio    = 3.0
	minLengthRatio    = 0.3
	boundaryConfFloor = 0.5
	structureSimFloor = 0.3
	healthyScore      = 0.8
	degradedScore     = 0.5
	weightPosition    = 0.3
	weightLength      = 0.25
	weightStructure   = 0.25
	weightValidation  = 0.2
)

// Severity returns the fixed severity of the kind.
func (k ProblemKind) Severity() float64 {
	switch k {
	case ProblemLengthMismatch:
		return 0.8
	case ProblemBoundaryDetectionError:
		return 0.6
	case ProblemStructuralDivergence:
		return 0.7
	case ProblemMissingSentence, ProblemExtraSentence:
		return 0.75
	case ProblemOrderMismatch:
		return 0.65
	default:
		return 0
	}
}

// Suggestion returns the fixed remediation hint for the kind.
func (k ProblemKind) Suggestion() string {
	switch k {
	case ProblemLengthMismatch:
		return "Merge the shorter side with its neighbouring sentence"
	case ProblemBoundaryDetectionError:
		return "Re-detect sentence boundaries for this span"
	case ProblemStructuralDivergence:
		return "Check that punctuation and structure match the source"
	case ProblemMissingSentence:
		return "Source sentence has no translation; align it manually"
	case ProblemExtraSentence:
		return "Target sentence has no source; align or remove it"
	case ProblemOrderMismatch:
		return "Sentences appear reordered; review the pairing"
	default:
		return ""
	}
}

// Span is a half-open byte range.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Problem is one detected issue. AlignmentIndex is -1 for sentences that
// have no pair.
type Problem struct {
	Kind           ProblemKind `json:"kind"`
	AlignmentIndex int         `json:"alignment_index"`
	Source         Span        `json:"source"`
	Target         Span        `json:"target"`
	Severity       float64     `json:"severity"`
	Suggestion     string      `json:"suggestion"`
	Informational  bool        `json:"informational"`
}

func newProblem(kind ProblemKind, index int, source, target Span) Problem {
	return Problem{
		Kind:           kind,
		AlignmentIndex: index,
		Source:         source,
		Target:         target,
		Severity:       kind.Severity(),
		Suggestion:     kind.Suggestion(),
	}
}

func problemAt(kind ProblemKind, index int, a *store.Alignment) Problem {
	p := newProblem(kind, index, Span{a.SourceStart, a.SourceEnd}, Span{a.TargetStart, a.TargetEnd})
	if kind == ProblemLengthMismatch {
		p.Suggestion = fmt.Sprintf("%s (%q vs %q)", p.Suggestion, a.SourceText, a.TargetText)
	}
	return p
}

// identifyProblems scans alignments ordered by source position.
func identifyProblems(alignments []*store.Alignment) []Problem {
	var problems []Problem
	for i, a := range alignments {
		ratio := lengthRatio(a.SourceText, a.TargetText)
		if ratio > maxLengthRatio || ratio < minLengthRatio {
			problems = append(problems, problemAt(ProblemLengthMismatch, i, a))
		}
		if a.Confidence < boundaryConfFloor && a.Method != store.MethodUserValidated {
			problems = append(problems, problemAt(ProblemBoundaryDetectionError, i, a))
		}
		if structureSimilarity(a.SourceText, a.TargetText) < structureSimFloor {
			problems = append(problems, problemAt(ProblemStructuralDivergence, i, a))
		}
		if i > 0 && a.TargetStart < alignments[i-1].TargetStart {
			problems = append(problems, problemAt(ProblemOrderMismatch, i, a))
		}
	}
	return problems
}

// Quality scores a set of alignments. Every component is in [0,1].
type Quality struct {
	Overall             float64 `json:"overall"`
	PositionConsistency float64 `json:"position_consistency"`
	LengthConsistency   float64 `json:"length_consistency"`
	StructuralCoherence float64 `json:"structural_coherence"`
	ValidationRate      float64 `json:"validation_rate"`
}

func computeQuality(alignments []*store.Alignment) Quality {
	n := len(alignments)
	if n == 0 {
		return Quality{}
	}
	var q Quality

	q.PositionConsistency = 1
	if n >= 2 {
		ordered := 0
		for i := 1; i < n; i++ {
			if alignments[i].TargetStart >= alignments[i-1].TargetStart {
				ordered++
			}
		}
		q.PositionConsistency = float64(ordered) / float64(n-1)
	}

	ratios := make([]float64, n)
	var mean, structure float64
	validated := 0
	for i, a := range alignments {
		ratios[i] = lengthRatio(a.SourceText, a.TargetText)
		mean += ratios[i]
		structure += structureSimilarity(a.SourceText, a.TargetText)
		if a.Status == store.StatusValidated {
			validated++
		}
	}
	mean /= float64(n)
	var variance float64
	for _, r := range ratios {
		variance += (r - mean) * (r - mean)
	}
	q.LengthConsistency = 1 - min(math.Sqrt(variance/float64(n)), 1)
	q.StructuralCoherence = structure / float64(n)
	q.ValidationRate = float64(validated) / float64(n)

	q.Overall = textutil.Clamp01(weightPosition*q.PositionConsistency +
		weightLength*q.LengthConsistency +
		weightStructure*q.StructuralCoherence +
		weightValidation*q.ValidationRate)
	return q
}

// HealthStatus summarizes alignment health.
type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthCritical HealthStatus = "critical"
)

// Health is the quality score discounted by actionable problems.
type Health struct {
	Score              float64      `json:"score"`
	Status             HealthStatus `json:"status"`
	ActionableProblems int          `json:"actionable_problems"`
}

func (s *Service) health(q Quality, problems []Problem) Health {
	var total float64
	actionable := 0
	for _, p := range problems {
		if p.Informational {
			continue
		}
		total += p.Severity
		actionable++
	}
	score := q.Overall
	if actionable > 0 {
		score -= s.cfg.HealthDecayWeight * total / float64(actionable)
	}
	h := Health{Score: textutil.Clamp01(score), ActionableProblems: actionable}
	switch {
	case h.Score >= healthyScore:
		h.Status = HealthHealthy
	case h.Score >= degradedScore:
		h.Status = HealthDegraded
	default:
		h.Status = HealthCritical
	}
	return h
}
