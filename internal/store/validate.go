package store

import (
	"strings"
	"unicode/utf8"

	"tmengine/internal/language"
	"tmengine/internal/tmerr"
)

// Default field limits. The store applies the configured text limit; terms use
// fixed limits that terminology import mirrors.
const (
	DefaultMaxTextLength = 10000
	MaxTermLength        = 200
	MaxDefinitionLength  = 1000
)

// Validate checks the unit against DefaultMaxTextLength.
func (u *TranslationUnit) Validate() error {
	return u.ValidateWithLimit(DefaultMaxTextLength)
}

// ValidateWithLimit checks the unit with a custom text length limit.
func (u *TranslationUnit) ValidateWithLimit(maxTextLength int) error {
	if u == nil {
		return tmerr.Invalid("unit", "must not be nil")
	}
	if maxTextLength <= 0 {
		maxTextLength = DefaultMaxTextLength
	}
	if strings.TrimSpace(u.ProjectID) == "" {
		return tmerr.Invalid("project_id", "must not be empty")
	}
	if strings.TrimSpace(u.SourceText) == "" {
		return tmerr.Invalid("source_text", "must not be empty")
	}
	if strings.TrimSpace(u.TargetText) == "" {
		return tmerr.Invalid("target_text", "must not be empty")
	}
	if n := utf8.RuneCountInString(u.SourceText); n > maxTextLength {
		return tmerr.Invalid("source_text", "length %d exceeds limit %d", n, maxTextLength)
	}
	if n := utf8.RuneCountInString(u.TargetText); n > maxTextLength {
		return tmerr.Invalid("target_text", "length %d exceeds limit %d", n, maxTextLength)
	}
	if strings.TrimSpace(u.SourceLanguage) == "" {
		return tmerr.Invalid("source_language", "must not be empty")
	}
	if strings.TrimSpace(u.TargetLanguage) == "" {
		return tmerr.Invalid("target_language", "must not be empty")
	}
	if language.SameLanguage(u.SourceLanguage, u.TargetLanguage) {
		return tmerr.Invalid("target_language", "must differ from source language %q", u.SourceLanguage)
	}
	if u.ConfidenceScore < 0 || u.ConfidenceScore > 1 {
		return tmerr.Invalid("confidence_score", "must be between 0 and 1, got %.3f", u.ConfidenceScore)
	}
	if u.QualityScore != nil && (*u.QualityScore < 0 || *u.QualityScore > 1) {
		return tmerr.Invalid("quality_score", "must be between 0 and 1, got %.3f", *u.QualityScore)
	}
	if !u.CreatedAt.IsZero() && !u.UpdatedAt.IsZero() && u.UpdatedAt.Before(u.CreatedAt) {
		return tmerr.Invalid("updated_at", "must not precede created_at")
	}
	return nil
}

// Validate checks the term text and definition limits.
func (t *Term) Validate() error {
	if t == nil {
		return tmerr.Invalid("term", "must not be nil")
	}
	if strings.TrimSpace(t.ProjectID) == "" {
		return tmerr.Invalid("project_id", "must not be empty")
	}
	text := strings.TrimSpace(t.Term)
	if text == "" {
		return tmerr.Invalid("term", "must not be empty")
	}
	if n := utf8.RuneCountInString(text); n > MaxTermLength {
		return tmerr.Invalid("term", "length %d exceeds limit %d", n, MaxTermLength)
	}
	if t.Definition != nil {
		if n := utf8.RuneCountInString(*t.Definition); n > MaxDefinitionLength {
			return tmerr.Invalid("definition", "length %d exceeds limit %d", n, MaxDefinitionLength)
		}
	}
	if !t.CreatedAt.IsZero() && !t.UpdatedAt.IsZero() && t.UpdatedAt.Before(t.CreatedAt) {
		return tmerr.Invalid("updated_at", "must not precede created_at")
	}
	return nil
}
