package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"tmengine/internal/engine"
	"tmengine/internal/store"
	"tmengine/internal/terminology"
)

type glossaryFormat int

const (
	formatCSV glossaryFormat = iota
	formatYAML
)

func formatFor(path, explicit string) (glossaryFormat, error) {
	name := strings.ToLower(strings.TrimSpace(explicit))
	if name == "" {
		name = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch name {
	case "csv":
		return formatCSV, nil
	case "yaml", "yml":
		return formatYAML, nil
	default:
		return 0, fmt.Errorf("unsupported glossary format %q (use .csv, .yaml or --format)", name)
	}
}

func newTermCommand(ctx *commandContext) *cobra.Command {
	termCmd := &cobra.Command{
		Use:   "term",
		Short: "Manage terminology",
	}
	termCmd.AddCommand(newTermImportCommand(ctx))
	termCmd.AddCommand(newTermExportCommand(ctx))
	termCmd.AddCommand(newTermListCommand(ctx))
	return termCmd
}

func newTermImportCommand(ctx *commandContext) *cobra.Command {
	var project, format string
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a CSV or YAML glossary",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, err := formatFor(args[0], format)
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("open glossary: %w", err)
			}
			defer f.Close()

			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				opts := terminology.ImportOptions{Overwrite: overwrite}
				var result *terminology.ImportResult
				switch kind {
				case formatYAML:
					result, err = eng.Terminology().ImportYAML(c, project, f, opts)
				default:
					result, err = eng.Terminology().ImportCSV(c, project, f, opts)
				}
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				printImportResult(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project identifier")
	_ = cmd.MarkFlagRequired("project")
	cmd.Flags().StringVar(&format, "format", "", "Glossary format (csv or yaml); defaults to the file extension")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace conflicting existing terms")
	return cmd
}

func printImportResult(out io.Writer, result *terminology.ImportResult) {
	fmt.Fprintf(out, "Rows: %d  imported: %d  updated: %d  skipped: %d\n",
		result.Total, result.Imported, result.Updated, result.Skipped)
	for _, c := range result.Conflicts {
		state := "kept existing"
		if c.Resolved {
			state = "overwritten"
		}
		fmt.Fprintf(out, "conflict line %d: %s %s %q -> %q (%s)\n", c.Line, c.Term, c.Kind, c.Existing, c.Incoming, state)
	}
	for _, w := range result.Warnings {
		fmt.Fprintf(out, "warning %s\n", w)
	}
	for _, e := range result.Errors {
		fmt.Fprintf(out, "error %s\n", e)
	}
}

func newTermExportCommand(ctx *commandContext) *cobra.Command {
	var project, format, output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a project's terms as CSV or YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			explicit := format
			if explicit == "" && output == "" {
				explicit = "csv"
			}
			kind, err := formatFor(output, explicit)
			if err != nil {
				return err
			}
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				var w io.Writer = cmd.OutOrStdout()
				if output != "" {
					f, err := os.Create(output)
					if err != nil {
						return fmt.Errorf("create export file: %w", err)
					}
					defer f.Close()
					w = f
				}
				var stats terminology.ExportStats
				switch kind {
				case formatYAML:
					stats, err = eng.Terminology().ExportYAML(c, project, w)
				default:
					stats, err = eng.Terminology().ExportCSV(c, project, w)
				}
				if err != nil {
					return err
				}
				if output != "" {
					fmt.Fprintf(cmd.OutOrStdout(), "Exported %d terms (%d do-not-translate) to %s\n",
						stats.Total, stats.DoNotTranslate, output)
				}
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project identifier")
	_ = cmd.MarkFlagRequired("project")
	cmd.Flags().StringVar(&format, "format", "", "Glossary format (csv or yaml)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write to a file instead of stdout")
	return cmd
}

func newTermListCommand(ctx *commandContext) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's terms",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				terms, err := eng.Store().TermsByProject(c, project)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if terms == nil {
						terms = []*store.Term{}
					}
					return writeJSON(cmd, terms)
				}
				rows := make([][]string, 0, len(terms))
				for _, t := range terms {
					rows = append(rows, []string{t.ID, t.Term, yesNo(t.DoNotTranslate), oneLine(t.DefinitionText())})
				}
				printTable(cmd, []string{"ID", "Term", "Do not translate", "Definition"}, rows, nil)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project identifier")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newHighlightCommand(ctx *commandContext) *cobra.Command {
	var project, lang string
	cmd := &cobra.Command{
		Use:   "highlight <text>",
		Short: "Mark terminology occurrences in text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				highlights, err := eng.Highlight(c, args[0], project, lang)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if highlights == nil {
						highlights = []terminology.TermHighlight{}
					}
					return writeJSON(cmd, highlights)
				}
				rows := make([][]string, 0, len(highlights))
				for _, h := range highlights {
					rows = append(rows, []string{
						h.Term,
						h.Matched,
						fmt.Sprintf("%d-%d", h.Start, h.End),
						string(h.Type),
						formatScore(h.Confidence),
					})
				}
				printTable(cmd, []string{"Term", "Matched", "Span", "Type", "Confidence"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight})
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project identifier")
	_ = cmd.MarkFlagRequired("project")
	cmd.Flags().StringVarP(&lang, "lang", "l", "en", "Language of the text")
	return cmd
}

// parseTexts turns repeated lang=text flags into a map.
func parseTexts(values []string) (map[string]string, error) {
	texts := make(map[string]string, len(values))
	for _, v := range values {
		lang, text, ok := strings.Cut(v, "=")
		lang = strings.TrimSpace(lang)
		if !ok || lang == "" {
			return nil, fmt.Errorf("--text %q must look like lang=text", v)
		}
		if _, dup := texts[lang]; dup {
			return nil, fmt.Errorf("--text given twice for language %q", lang)
		}
		texts[lang] = text
	}
	return texts, nil
}

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var project string
	var texts []string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check terminology consistency across translations",
		RunE: func(cmd *cobra.Command, args []string) error {
			byLang, err := parseTexts(texts)
			if err != nil {
				return err
			}
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				issues, err := eng.Terminology().CheckConsistency(c, byLang, project)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if issues == nil {
						issues = []terminology.Inconsistency{}
					}
					return writeJSON(cmd, issues)
				}
				if len(issues) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Terminology is consistent")
					return nil
				}
				rows := make([][]string, 0, len(issues))
				for _, is := range issues {
					rows = append(rows, []string{
						is.Term,
						is.Language,
						strings.Join(is.Found, ", "),
						is.Expected,
						string(is.Severity),
					})
				}
				printTable(cmd, []string{"Term", "Language", "Found", "Expected", "Severity"}, rows, nil)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project identifier")
	_ = cmd.MarkFlagRequired("project")
	cmd.Flags().StringArrayVar(&texts, "text", nil, "Translation as lang=text (repeatable)")
	_ = cmd.MarkFlagRequired("text")
	return cmd
}

func newSuggestCommand(ctx *commandContext) *cobra.Command {
	var project, lang string
	cmd := &cobra.Command{
		Use:   "suggest <text>",
		Short: "Suggest glossary terms for near-miss words",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				suggestions, err := eng.SuggestTerms(c, args[0], project, lang)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if suggestions == nil {
						suggestions = []terminology.TermSuggestion{}
					}
					return writeJSON(cmd, suggestions)
				}
				rows := make([][]string, 0, len(suggestions))
				for _, s := range suggestions {
					rows = append(rows, []string{s.Word, s.SuggestedTerm, formatScore(s.Confidence), s.Reason})
				}
				printTable(cmd, []string{"Word", "Suggested", "Confidence", "Reason"}, rows,
					[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft})
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project identifier")
	_ = cmd.MarkFlagRequired("project")
	cmd.Flags().StringVarP(&lang, "lang", "l", "en", "Language of the text")
	return cmd
}
