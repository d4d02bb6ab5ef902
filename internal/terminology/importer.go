package terminology

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"tmengine/internal/logging"
	"tmengine/internal/store"
	"tmengine/internal/tmerr"
)

// ImportOptions controls how existing terms are treated.
type ImportOptions struct {
	// Overwrite replaces conflicting existing terms instead of skipping them.
	Overwrite bool
}

// ConflictKind names what differs between an imported and an existing term.
type ConflictKind string

const (
	ConflictDefinition     ConflictKind = "definition"
	ConflictDoNotTranslate ConflictKind = "do_not_translate"
)

// Conflict describes an imported row that disagrees with an existing term.
type Conflict struct {
	Line     int          `json:"line"`
	Term     string       `json:"term"`
	Kind     ConflictKind `json:"kind"`
	Existing string       `json:"existing"`
	Incoming string       `json:"incoming"`
	Resolved bool         `json:"resolved"`
}

// RowIssue is a warning or error attached to one input row.
type RowIssue struct {
	Line    int    `json:"line"`
	Term    string `json:"term,omitempty"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func (r RowIssue) String() string {
	if r.Field != "" {
		return fmt.Sprintf("line %d: %s: %s", r.Line, r.Field, r.Message)
	}
	return fmt.Sprintf("line %d: %s", r.Line, r.Message)
}

// ImportResult collects row outcomes for one glossary import.
type ImportResult struct {
	Total     int        `json:"total"`
	Imported  int        `json:"imported"`
	Updated   int        `json:"updated"`
	Skipped   int        `json:"skipped"`
	Conflicts []Conflict `json:"conflicts"`
	Warnings  []RowIssue `json:"warnings"`
	Errors    []RowIssue `json:"errors"`
}

// record is one parsed glossary row. err carries a row-level parse failure.
type record struct {
	line           int
	term           string
	definition     string
	doNotTranslate bool
	err            error
}

func (s *Service) limits() (maxTerm, warnTerm, maxDef int) {
	maxTerm, warnTerm, maxDef = s.cfg.MaxTermLength, s.cfg.WarnTermLength, s.cfg.MaxDefinitionLength
	if maxTerm <= 0 {
		maxTerm = store.MaxTermLength
	}
	if maxDef <= 0 {
		maxDef = store.MaxDefinitionLength
	}
	return maxTerm, warnTerm, maxDef
}

// importRecords validates rows against each other and the stored glossary,
// then applies overwrites and inserts new terms in one transaction.
func (s *Service) importRecords(ctx context.Context, project string, records []record, opts ImportOptions) (*ImportResult, error) {
	if strings.TrimSpace(project) == "" {
		return nil, tmerr.Invalid("project_id", "must not be empty")
	}
	existing, err := s.store.TermsByProject(ctx, project)
	if err != nil {
		return nil, err
	}
	byKey := make(map[string]*store.Term, len(existing))
	for _, t := range existing {
		byKey[strings.ToLower(t.Term)] = t
	}

	maxTerm, warnTerm, maxDef := s.limits()
	result := &ImportResult{Conflicts: []Conflict{}, Warnings: []RowIssue{}, Errors: []RowIssue{}}
	seen := make(map[string]int, len(records))
	var batch, updates []*store.Term
	var overwritten []Conflict

	for _, rec := range records {
		result.Total++
		term := strings.TrimSpace(rec.term)
		issue := RowIssue{Line: rec.line, Term: term}
		if rec.err != nil {
			issue.Message = rec.err.Error()
			if field, ok := tmerr.Field(rec.err); ok {
				issue.Field = field
			}
			result.Errors = append(result.Errors, issue)
			continue
		}
		if term == "" {
			issue.Field, issue.Message = "term", "empty term"
			result.Warnings = append(result.Warnings, issue)
			continue
		}
		if n := utf8.RuneCountInString(term); n > maxTerm {
			issue.Field, issue.Message = "term", fmt.Sprintf("length %d exceeds limit %d", n, maxTerm)
			result.Errors = append(result.Errors, issue)
			continue
		}
		definition := strings.TrimSpace(rec.definition)
		if n := utf8.RuneCountInString(definition); n > maxDef {
			issue.Field, issue.Message = "definition", fmt.Sprintf("length %d exceeds limit %d", n, maxDef)
			result.Errors = append(result.Errors, issue)
			continue
		}
		key := strings.ToLower(term)
		if first, dup := seen[key]; dup {
			issue.Field, issue.Message = "term", fmt.Sprintf("duplicate of line %d", first)
			result.Warnings = append(result.Warnings, issue)
			continue
		}
		seen[key] = rec.line
		if warnTerm > 0 && utf8.RuneCountInString(term) > warnTerm {
			issue.Field, issue.Message = "term", fmt.Sprintf("longer than %d characters", warnTerm)
			result.Warnings = append(result.Warnings, issue)
		}

		var defPtr *string
		if definition != "" {
			defPtr = &definition
		}
		current, ok := byKey[key]
		if !ok {
			batch = append(batch, &store.Term{
				ProjectID:      project,
				Term:           term,
				Definition:     defPtr,
				DoNotTranslate: rec.doNotTranslate,
			})
			continue
		}

		conflicts := rowConflicts(rec.line, current, definition, rec.doNotTranslate)
		if len(conflicts) == 0 {
			result.Skipped++
			continue
		}
		if !opts.Overwrite {
			result.Conflicts = append(result.Conflicts, conflicts...)
			result.Skipped++
			continue
		}
		updated := *current
		updated.Definition = defPtr
		updated.DoNotTranslate = rec.doNotTranslate
		updates = append(updates, &updated)
		overwritten = append(overwritten, conflicts...)
	}

	n, err := s.store.ImportTerms(ctx, project, batch, updates)
	if err != nil {
		return result, err
	}
	result.Imported = n
	result.Updated = len(updates)
	for i := range overwritten {
		overwritten[i].Resolved = true
	}
	result.Conflicts = append(result.Conflicts, overwritten...)
	if result.Imported > 0 || result.Updated > 0 {
		s.InvalidateProject(project)
	}
	s.logger.Info("glossary imported",
		logging.Project(project),
		logging.Int("total", result.Total),
		logging.Int("imported", result.Imported),
		logging.Int("updated", result.Updated),
		logging.Int("skipped", result.Skipped),
		logging.Int("conflicts", len(result.Conflicts)),
		logging.Int("errors", len(result.Errors)),
	)
	return result, nil
}

func rowConflicts(line int, current *store.Term, definition string, doNotTranslate bool) []Conflict {
	var out []Conflict
	if !current.SameDefinition(&definition) {
		out = append(out, Conflict{
			Line:     line,
			Term:     current.Term,
			Kind:     ConflictDefinition,
			Existing: current.DefinitionText(),
			Incoming: definition,
		})
	}
	if current.DoNotTranslate != doNotTranslate {
		out = append(out, Conflict{
			Line:     line,
			Term:     current.Term,
			Kind:     ConflictDoNotTranslate,
			Existing: fmt.Sprint(current.DoNotTranslate),
			Incoming: fmt.Sprint(doNotTranslate),
		})
	}
	return out
}

// ParseBool accepts true/false, yes/no, 1/0, and y/n in any case. Empty
// input is false.
func ParseBool(value string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "false", "no", "0", "n":
		return false, nil
	case "true", "yes", "1", "y":
		return true, nil
	default:
		return false, tmerr.Invalid("do_not_translate", "invalid boolean %q", value)
	}
}

// ExportStats summarizes an exported glossary.
type ExportStats struct {
	Total          int `json:"total"`
	DoNotTranslate int `json:"do_not_translate"`
	Translatable   int `json:"translatable"`
	WithDefinition int `json:"with_definition"`
}

func (e *ExportStats) add(t *store.Term) {
	e.Total++
	if t.DoNotTranslate {
		e.DoNotTranslate++
	} else {
		e.Translatable++
	}
	if t.DefinitionText() != "" {
		e.WithDefinition++
	}
}
