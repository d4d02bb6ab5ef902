package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tmengine/internal/language"
	"tmengine/internal/store"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

const maxCellRunes = 60

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printTable renders rows to the command's stdout. Styling is applied only
// when stdout is a terminal.
func printTable(cmd *cobra.Command, headers []string, rows [][]string, aligns []columnAlignment) {
	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No results")
		return
	}
	fmt.Fprintln(out, renderTable(headers, rows, aligns, shouldColorize(out)))
}

func renderTable(headers []string, rows [][]string, aligns []columnAlignment, colorize bool) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	if colorize {
		tw.SetStyle(table.StyleColoredBright)
	} else {
		tw.SetStyle(table.StyleRounded)
	}

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	columnConfigs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		columnConfigs = append(columnConfigs, table.ColumnConfig{
			Number:      i + 1,
			Align:       align,
			AlignHeader: text.AlignLeft,
			WidthMax:    maxCellRunes,
		})
	}
	tw.SetColumnConfigs(columnConfigs)

	return tw.Render()
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', 3, 64)
}

// pairLabel names a language pair for people, e.g. "English → French (en→fr)".
func pairLabel(p store.LanguagePair) string {
	return fmt.Sprintf("%s → %s (%s)", language.DisplayName(p.Source), language.DisplayName(p.Target), p)
}

// oneLine collapses whitespace so multi-line texts fit a table cell.
func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
