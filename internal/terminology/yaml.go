package terminology

import (
	"context"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"tmengine/internal/tmerr"
)

type yamlGlossary struct {
	Terms []yamlTerm `yaml:"terms"`
}

type yamlTerm struct {
	Term           string `yaml:"term"`
	Definition     string `yaml:"definition,omitempty"`
	DoNotTranslate string `yaml:"do_not_translate,omitempty"`
}

// yamlEntry keeps node positions so row issues can report a line.
type yamlEntry struct {
	yamlTerm
	line int
}

func (e *yamlEntry) UnmarshalYAML(node *yaml.Node) error {
	e.line = node.Line
	return node.Decode(&e.yamlTerm)
}

// ImportYAML imports a glossary document of the form
// terms: [{term, definition, do_not_translate}].
func (s *Service) ImportYAML(ctx context.Context, project string, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read yaml: %w", err)
	}
	var doc struct {
		Terms []yamlEntry `yaml:"terms"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, tmerr.Wrap(tmerr.ErrValidation, "terminology", "read yaml", "invalid glossary document", err)
	}
	records := make([]record, 0, len(doc.Terms))
	for _, entry := range doc.Terms {
		rec := record{line: entry.line, term: entry.Term, definition: entry.Definition}
		rec.doNotTranslate, rec.err = ParseBool(entry.DoNotTranslate)
		records = append(records, rec)
	}
	return s.importRecords(ctx, project, records, opts)
}

// ExportYAML writes the project's glossary as a YAML document.
func (s *Service) ExportYAML(ctx context.Context, project string, w io.Writer) (ExportStats, error) {
	var stats ExportStats
	terms, err := s.store.TermsByProject(ctx, project)
	if err != nil {
		return stats, err
	}
	doc := yamlGlossary{Terms: make([]yamlTerm, 0, len(terms))}
	for _, t := range terms {
		doc.Terms = append(doc.Terms, yamlTerm{
			Term:           t.Term,
			Definition:     t.DefinitionText(),
			DoNotTranslate: fmt.Sprint(t.DoNotTranslate),
		})
		stats.add(t)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return stats, fmt.Errorf("encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return stats, fmt.Errorf("encode yaml: %w", err)
	}
	return stats, nil
}
