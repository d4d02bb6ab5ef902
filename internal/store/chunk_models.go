package store

import (
	"slices"
	"strings"
	"time"

	"tmengine/internal/tmerr"
)

// ChunkType classifies a chunk's structural role.
type ChunkType string

const (
	ChunkSentence     ChunkType = "sentence"
	ChunkParagraph    ChunkType = "paragraph"
	ChunkHeading      ChunkType = "heading"
	ChunkListItem     ChunkType = "list_item"
	ChunkCodeBlock    ChunkType = "code_block"
	ChunkTable        ChunkType = "table"
	ChunkLinkedPhrase ChunkType = "linked_phrase"
)

// Valid reports whether t is a known chunk type.
func (t ChunkType) Valid() bool {
	switch t {
	case ChunkSentence, ChunkParagraph, ChunkHeading, ChunkListItem, ChunkCodeBlock, ChunkTable, ChunkLinkedPhrase:
		return true
	default:
		return false
	}
}

// Chunk is the smallest alignment-granularity unit.
type Chunk struct {
	ID                 string    `json:"id"`
	ProjectID          string    `json:"project_id"`
	ChapterID          string    `json:"chapter_id"`
	OriginalPosition   int       `json:"original_position"`
	ChunkType          ChunkType `json:"chunk_type"`
	Text               string    `json:"text"`
	SentenceBoundaries []int     `json:"sentence_boundaries"`
	LinkedChunks       []string  `json:"linked_chunks"`
	ProcessingNotes    []string  `json:"processing_notes"`
	PhraseGroupID      *string   `json:"phrase_group_id,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// LinkWith records a link to other. Self-links are rejected.
func (c *Chunk) LinkWith(other string) error {
	if other == c.ID {
		return tmerr.Wrap(tmerr.ErrConflict, "chunk", "link", "cannot link chunk with itself", nil)
	}
	if !slices.Contains(c.LinkedChunks, other) {
		c.LinkedChunks = append(c.LinkedChunks, other)
	}
	return nil
}

// Unlink removes other from the linked set.
func (c *Chunk) Unlink(other string) {
	c.LinkedChunks = slices.DeleteFunc(c.LinkedChunks, func(id string) bool { return id == other })
}

// IsLinkedTo reports whether other is in the linked set.
func (c *Chunk) IsLinkedTo(other string) bool {
	return slices.Contains(c.LinkedChunks, other)
}

// AddProcessingNote appends a non-blank note.
func (c *Chunk) AddProcessingNote(note string) {
	if note = strings.TrimSpace(note); note != "" {
		c.ProcessingNotes = append(c.ProcessingNotes, note)
	}
}

// SetSentenceBoundaries replaces the boundary offsets. Offsets must be
// non-negative and ascending.
func (c *Chunk) SetSentenceBoundaries(offsets []int) error {
	for i, off := range offsets {
		if off < 0 {
			return tmerr.Invalid("sentence_boundaries", "offset %d is negative", off)
		}
		if i > 0 && off <= offsets[i-1] {
			return tmerr.Invalid("sentence_boundaries", "offsets must be strictly ascending")
		}
	}
	c.SentenceBoundaries = slices.Clone(offsets)
	return nil
}

// Validate checks the chunk invariants.
func (c *Chunk) Validate() error {
	if strings.TrimSpace(c.ID) == "" {
		return tmerr.Invalid("id", "must not be empty")
	}
	if strings.TrimSpace(c.ProjectID) == "" {
		return tmerr.Invalid("project_id", "must not be empty")
	}
	if !c.ChunkType.Valid() {
		return tmerr.Invalid("chunk_type", "unknown type %q", c.ChunkType)
	}
	if c.OriginalPosition < 0 {
		return tmerr.Invalid("original_position", "must be non-negative")
	}
	if c.IsLinkedTo(c.ID) {
		return tmerr.Wrap(tmerr.ErrConflict, "chunk", "validate", "chunk is linked to itself", nil)
	}
	if !slices.IsSorted(c.SentenceBoundaries) {
		return tmerr.Invalid("sentence_boundaries", "offsets must be ascending")
	}
	return nil
}

// PhraseMetadata carries descriptive data about a phrase group.
type PhraseMetadata struct {
	CreatedBy   string   `json:"created_by"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
	Confidence  float64  `json:"confidence"`
	UsageCount  int      `json:"usage_count"`
}

// DefaultPhraseMetadata returns metadata with full confidence and no usage.
func DefaultPhraseMetadata() PhraseMetadata {
	return PhraseMetadata{Confidence: 1.0}
}

// PhraseGroup merges two or more chunks into one translatable phrase.
type PhraseGroup struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id"`
	ChunkIDs   []string       `json:"chunk_ids"`
	MergeOrder []int          `json:"merge_order"`
	MergedText string         `json:"merged_text"`
	Language   string         `json:"language"`
	Metadata   PhraseMetadata `json:"metadata"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// Validate checks the group invariants.
func (g *PhraseGroup) Validate() error {
	if len(g.ChunkIDs) < 2 {
		return tmerr.Wrap(tmerr.ErrConflict, "phrase_group", "validate", "at least 2 chunks must be selected for linking", nil)
	}
	if len(g.MergeOrder) != len(g.ChunkIDs) {
		return tmerr.Invalid("merge_order", "must cover every chunk")
	}
	if g.Metadata.Confidence < 0 || g.Metadata.Confidence > 1 {
		return tmerr.Invalid("confidence", "must be between 0 and 1")
	}
	return nil
}

// AlignmentMethod records how an alignment was produced.
type AlignmentMethod string

const (
	MethodPositionBased   AlignmentMethod = "position_based"
	MethodLengthRatio     AlignmentMethod = "length_ratio"
	MethodMachineLearning AlignmentMethod = "learned"
	MethodUserValidated   AlignmentMethod = "user_validated"
	MethodHybrid          AlignmentMethod = "hybrid"
)

// Valid reports whether m is a known method.
func (m AlignmentMethod) Valid() bool {
	switch m {
	case MethodPositionBased, MethodLengthRatio, MethodMachineLearning, MethodUserValidated, MethodHybrid:
		return true
	default:
		return false
	}
}

// AlignmentStatus is the validation state of an alignment.
type AlignmentStatus string

const (
	StatusPending     AlignmentStatus = "pending"
	StatusValidated   AlignmentStatus = "validated"
	StatusRejected    AlignmentStatus = "rejected"
	StatusNeedsReview AlignmentStatus = "needs_review"
)

// Valid reports whether s is a known status.
func (s AlignmentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusValidated, StatusRejected, StatusNeedsReview:
		return true
	default:
		return false
	}
}

// Terminal reports whether s persists until an explicit reset.
func (s AlignmentStatus) Terminal() bool {
	return s == StatusValidated || s == StatusRejected
}

// CanTransition reports whether an alignment may move from s to next.
// Terminal states only leave through Reset, which is handled separately.
func (s AlignmentStatus) CanTransition(next AlignmentStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusValidated || next == StatusRejected || next == StatusNeedsReview
	case StatusNeedsReview:
		return next == StatusValidated || next == StatusRejected
	case StatusValidated, StatusRejected:
		return false
	default:
		return false
	}
}

// Alignment pairs a source span with a target span.
type Alignment struct {
	ID             string          `json:"id"`
	ProjectID      string          `json:"project_id"`
	SourceChunkID  string          `json:"source_chunk_id"`
	TargetChunkID  string          `json:"target_chunk_id"`
	SourceStart    int             `json:"source_start"`
	SourceEnd      int             `json:"source_end"`
	TargetStart    int             `json:"target_start"`
	TargetEnd      int             `json:"target_end"`
	SourceText     string          `json:"source_text"`
	TargetText     string          `json:"target_text"`
	SourceLanguage string          `json:"source_language"`
	TargetLanguage string          `json:"target_language"`
	Confidence     float64         `json:"confidence"`
	Method         AlignmentMethod `json:"method"`
	Status         AlignmentStatus `json:"status"`
	Fingerprint    string          `json:"fingerprint"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

// UserValidated reports whether a person confirmed the alignment.
func (a *Alignment) UserValidated() bool {
	return a.Method == MethodUserValidated && a.Status == StatusValidated
}

// Validate checks span ordering, score bounds, and enum values.
func (a *Alignment) Validate() error {
	if a.SourceStart < 0 || a.SourceEnd < a.SourceStart {
		return tmerr.Invalid("source_span", "invalid span [%d,%d)", a.SourceStart, a.SourceEnd)
	}
	if a.TargetStart < 0 || a.TargetEnd < a.TargetStart {
		return tmerr.Invalid("target_span", "invalid span [%d,%d)", a.TargetStart, a.TargetEnd)
	}
	if a.Confidence < 0 || a.Confidence > 1 {
		return tmerr.Invalid("confidence", "must be between 0 and 1, got %.3f", a.Confidence)
	}
	if !a.Method.Valid() {
		return tmerr.Invalid("method", "unknown method %q", a.Method)
	}
	if !a.Status.Valid() {
		return tmerr.Invalid("status", "unknown status %q", a.Status)
	}
	return nil
}

// Correction is one entry in the append-only learning log.
type Correction struct {
	ID                  int64     `json:"id"`
	Fingerprint         string    `json:"fingerprint"`
	SourceLanguage      string    `json:"source_language"`
	TargetLanguage      string    `json:"target_language"`
	OriginalConfidence  float64   `json:"original_confidence"`
	CorrectedConfidence float64   `json:"corrected_confidence"`
	Original            Alignment `json:"original"`
	Corrected           Alignment `json:"corrected"`
	Reason              string    `json:"reason"`
	CreatedAt           time.Time `json:"created_at"`
}
