package terminology

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"tmengine/internal/tmerr"
)

var csvHeader = []string{"term", "definition", "do_not_translate"}

// ImportCSV imports a glossary with a term, definition, and
// do_not_translate header. Only the term column is required.
func (s *Service) ImportCSV(ctx context.Context, project string, r io.Reader, opts ImportOptions) (*ImportResult, error) {
	records, err := readCSV(r)
	if err != nil {
		return nil, err
	}
	return s.importRecords(ctx, project, records, opts)
}

func readCSV(r io.Reader) ([]record, error) {
	br := bufio.NewReader(r)
	if bom, err := br.Peek(3); err == nil && bytes.Equal(bom, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
	}
	cr := csv.NewReader(br)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, tmerr.Invalid("header", "empty glossary file")
		}
		return nil, tmerr.Wrap(tmerr.ErrValidation, "terminology", "read csv", "invalid header", err)
	}
	idx := map[string]int{}
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	termIdx, ok := idx["term"]
	if !ok {
		return nil, tmerr.Invalid("header", "missing 'term' column")
	}
	defIdx, hasDef := idx["definition"]
	dntIdx, hasDNT := idx["do_not_translate"]

	var records []record
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				records = append(records, record{line: parseErr.StartLine, err: err})
				continue
			}
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := cr.FieldPos(0)
		rec := record{line: line, term: column(row, termIdx)}
		if hasDef {
			rec.definition = column(row, defIdx)
		}
		if hasDNT {
			rec.doNotTranslate, rec.err = ParseBool(column(row, dntIdx))
		}
		records = append(records, rec)
	}
	return records, nil
}

func column(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return row[i]
}

// ExportCSV writes the project's glossary sorted by term.
func (s *Service) ExportCSV(ctx context.Context, project string, w io.Writer) (ExportStats, error) {
	var stats ExportStats
	terms, err := s.store.TermsByProject(ctx, project)
	if err != nil {
		return stats, err
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return stats, fmt.Errorf("write csv header: %w", err)
	}
	for _, t := range terms {
		row := []string{t.Term, t.DefinitionText(), strconv.FormatBool(t.DoNotTranslate)}
		if err := cw.Write(row); err != nil {
			return stats, fmt.Errorf("write csv row: %w", err)
		}
		stats.add(t)
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return stats, fmt.Errorf("flush csv: %w", err)
	}
	return stats, nil
}
