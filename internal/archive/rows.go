package archive

import (
	"time"

	"tmengine/internal/store"
)

// UnitRow is the Parquet layout of a translation unit.
type UnitRow struct {
	ID              string   `parquet:"id"`
	ProjectID       string   `parquet:"project_id"`
	ChapterID       string   `parquet:"chapter_id"`
	ChunkID         string   `parquet:"chunk_id"`
	SourceLanguage  string   `parquet:"source_language,dict"`
	SourceText      string   `parquet:"source_text"`
	TargetLanguage  string   `parquet:"target_language,dict"`
	TargetText      string   `parquet:"target_text"`
	ConfidenceScore float64  `parquet:"confidence_score"`
	Context         *string  `parquet:"context,optional"`
	TranslatorID    *string  `parquet:"translator_id,optional"`
	ReviewerID      *string  `parquet:"reviewer_id,optional"`
	QualityScore    *float64 `parquet:"quality_score,optional"`
	CreatedAt       int64    `parquet:"created_at_us"`
	UpdatedAt       int64    `parquet:"updated_at_us"`
}

// TermRow is the Parquet layout of a term.
type TermRow struct {
	ID             string  `parquet:"id"`
	ProjectID      string  `parquet:"project_id"`
	Term           string  `parquet:"term"`
	Definition     *string `parquet:"definition,optional"`
	DoNotTranslate bool    `parquet:"do_not_translate"`
	CreatedAt      int64   `parquet:"created_at_us"`
	UpdatedAt      int64   `parquet:"updated_at_us"`
}

func micros(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UTC().UnixMicro()
}

func fromMicros(v int64) time.Time {
	if v == 0 {
		return time.Time{}
	}
	return time.UnixMicro(v).UTC()
}

func unitRow(u *store.TranslationUnit) UnitRow {
	return UnitRow{
		ID:              u.ID,
		ProjectID:       u.ProjectID,
		ChapterID:       u.ChapterID,
		ChunkID:         u.ChunkID,
		SourceLanguage:  u.SourceLanguage,
		SourceText:      u.SourceText,
		TargetLanguage:  u.TargetLanguage,
		TargetText:      u.TargetText,
		ConfidenceScore: u.ConfidenceScore,
		Context:         u.Context,
		TranslatorID:    u.TranslatorID,
		ReviewerID:      u.ReviewerID,
		QualityScore:    u.QualityScore,
		CreatedAt:       micros(u.CreatedAt),
		UpdatedAt:       micros(u.UpdatedAt),
	}
}

// ToUnit converts the row back to a store unit.
func (r UnitRow) ToUnit() *store.TranslationUnit {
	return &store.TranslationUnit{
		ID:              r.ID,
		ProjectID:       r.ProjectID,
		ChapterID:       r.ChapterID,
		ChunkID:         r.ChunkID,
		SourceLanguage:  r.SourceLanguage,
		SourceText:      r.SourceText,
		TargetLanguage:  r.TargetLanguage,
		TargetText:      r.TargetText,
		ConfidenceScore: r.ConfidenceScore,
		Context:         r.Context,
		TranslatorID:    r.TranslatorID,
		ReviewerID:      r.ReviewerID,
		QualityScore:    r.QualityScore,
		CreatedAt:       fromMicros(r.CreatedAt),
		UpdatedAt:       fromMicros(r.UpdatedAt),
	}
}

func termRow(t *store.Term) TermRow {
	return TermRow{
		ID:             t.ID,
		ProjectID:      t.ProjectID,
		Term:           t.Term,
		Definition:     t.Definition,
		DoNotTranslate: t.DoNotTranslate,
		CreatedAt:      micros(t.CreatedAt),
		UpdatedAt:      micros(t.UpdatedAt),
	}
}

// ToTerm converts the row back to a store term.
func (r TermRow) ToTerm() *store.Term {
	return &store.Term{
		ID:             r.ID,
		ProjectID:      r.ProjectID,
		Term:           r.Term,
		Definition:     r.Definition,
		DoNotTranslate: r.DoNotTranslate,
		CreatedAt:      fromMicros(r.CreatedAt),
		UpdatedAt:      fromMicros(r.UpdatedAt),
	}
}
