package store

import (
	"strings"
	"time"

	"tmengine/internal/language"
)

// LanguagePair identifies a source and target language.
type LanguagePair struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Normalized returns the pair with both codes reduced to ISO 639-1 where known.
func (p LanguagePair) Normalized() LanguagePair {
	return LanguagePair{Source: language.Normalize(p.Source), Target: language.Normalize(p.Target)}
}

func (p LanguagePair) String() string {
	return p.Source + "→" + p.Target
}

// TranslationUnit is one source/target sentence or paragraph pair.
type TranslationUnit struct {
	ID              string    `json:"id"`
	ProjectID       string    `json:"project_id"`
	ChapterID       string    `json:"chapter_id"`
	ChunkID         string    `json:"chunk_id"`
	SourceLanguage  string    `json:"source_language"`
	SourceText      string    `json:"source_text"`
	TargetLanguage  string    `json:"target_language"`
	TargetText      string    `json:"target_text"`
	ConfidenceScore float64   `json:"confidence_score"`
	Context         *string   `json:"context,omitempty"`
	TranslatorID    *string   `json:"translator_id,omitempty"`
	ReviewerID      *string   `json:"reviewer_id,omitempty"`
	QualityScore    *float64  `json:"quality_score,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Clone returns a deep copy of u.
func (u *TranslationUnit) Clone() *TranslationUnit {
	cp := *u
	cp.Context = clonePtr(u.Context)
	cp.TranslatorID = clonePtr(u.TranslatorID)
	cp.ReviewerID = clonePtr(u.ReviewerID)
	cp.QualityScore = clonePtr(u.QualityScore)
	return &cp
}

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// Pair returns the unit's language pair.
func (u *TranslationUnit) Pair() LanguagePair {
	return LanguagePair{Source: u.SourceLanguage, Target: u.TargetLanguage}
}

// Term is a terminology entry scoped to a project.
type Term struct {
	ID             string    `json:"id"`
	ProjectID      string    `json:"project_id"`
	Term           string    `json:"term"`
	Definition     *string   `json:"definition,omitempty"`
	DoNotTranslate bool      `json:"do_not_translate"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// DefinitionText returns the definition or an empty string.
func (t *Term) DefinitionText() string {
	if t == nil || t.Definition == nil {
		return ""
	}
	return *t.Definition
}

// SameDefinition compares definitions ignoring surrounding whitespace.
func (t *Term) SameDefinition(other *string) bool {
	a := strings.TrimSpace(t.DefinitionText())
	b := ""
	if other != nil {
		b = strings.TrimSpace(*other)
	}
	return a == b
}

// SearchQuery selects translation units by source-text pattern.
type SearchQuery struct {
	ProjectID string
	Pattern   string
	// SourceLanguage and TargetLanguage filter when non-empty.
	SourceLanguage string
	TargetLanguage string
	// Exact matches the whole source text instead of a case-insensitive substring.
	Exact bool
	Limit int
}

// CandidateQuery prefilters units for approximate matching.
type CandidateQuery struct {
	ProjectID string
	Pair      LanguagePair
	Words     []string
	Limit     int
}

// ProjectStats summarizes the durable contents of one project.
type ProjectStats struct {
	ProjectID       string         `json:"project_id"`
	Units           int            `json:"units"`
	Terms           int            `json:"terms"`
	DoNotTranslate  int            `json:"do_not_translate"`
	Chunks          int            `json:"chunks"`
	PhraseGroups    int            `json:"phrase_groups"`
	Alignments      int            `json:"alignments"`
	LanguagePairs   []LanguagePair `json:"language_pairs"`
	AverageQuality  float64        `json:"average_confidence"`
	LastUnitUpdated *time.Time     `json:"last_unit_updated,omitempty"`
}

// Entity names the kind of row a write touched.
type Entity string

const (
	EntityUnit        Entity = "unit"
	EntityTerm        Entity = "term"
	EntityChunk       Entity = "chunk"
	EntityPhraseGroup Entity = "phrase_group"
	EntityAlignment   Entity = "alignment"
)

// WriteEvent describes a committed write.
type WriteEvent struct {
	ProjectID string
	Entity    Entity
	// Terms lists the affected term texts for term writes.
	Terms []string
}

// WriteObserver is notified after every committed write.
type WriteObserver interface {
	OnWrite(WriteEvent)
}

// WriteObserverFunc adapts a function to WriteObserver.
type WriteObserverFunc func(WriteEvent)

// OnWrite calls f.
func (f WriteObserverFunc) OnWrite(ev WriteEvent) { f(ev) }
