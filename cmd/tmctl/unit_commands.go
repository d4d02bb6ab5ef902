package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tmengine/internal/engine"
	"tmengine/internal/store"
)

type unitFlags struct {
	project string
	source  string
	target  string
	limit   int
}

func (f *unitFlags) bindProject(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.project, "project", "p", "", "Project identifier")
	_ = cmd.MarkFlagRequired("project")
}

func (f *unitFlags) bindLanguages(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.source, "src", "", "Source language code")
	cmd.Flags().StringVar(&f.target, "tgt", "", "Target language code")
}

func newUnitCommand(ctx *commandContext) *cobra.Command {
	unitCmd := &cobra.Command{
		Use:   "unit",
		Short: "Manage translation units",
	}
	unitCmd.AddCommand(newUnitAddCommand(ctx))
	unitCmd.AddCommand(newUnitListCommand(ctx))
	unitCmd.AddCommand(newUnitSearchCommand(ctx))
	unitCmd.AddCommand(newUnitDeleteCommand(ctx))
	return unitCmd
}

func newUnitAddCommand(ctx *commandContext) *cobra.Command {
	var flags unitFlags
	var chapter, chunk, translator string
	var confidence float64

	cmd := &cobra.Command{
		Use:   "add <source-text> <target-text>",
		Short: "Add a translation unit",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			u := &store.TranslationUnit{
				ProjectID:       flags.project,
				ChapterID:       chapter,
				ChunkID:         chunk,
				SourceLanguage:  flags.source,
				TargetLanguage:  flags.target,
				SourceText:      args[0],
				TargetText:      args[1],
				ConfidenceScore: confidence,
			}
			if strings.TrimSpace(translator) != "" {
				u.TranslatorID = &translator
			}
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				if err := eng.AddUnit(c, u); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, u)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Added unit %s\n", u.ID)
				return nil
			})
		},
	}
	flags.bindProject(cmd)
	flags.bindLanguages(cmd)
	_ = cmd.MarkFlagRequired("src")
	_ = cmd.MarkFlagRequired("tgt")
	cmd.Flags().Float64Var(&confidence, "confidence", 1.0, "Confidence score between 0 and 1")
	cmd.Flags().StringVar(&chapter, "chapter", "", "Chapter identifier")
	cmd.Flags().StringVar(&chunk, "chunk", "", "Chunk identifier")
	cmd.Flags().StringVar(&translator, "translator", "", "Translator identifier")
	return cmd
}

func newUnitListCommand(ctx *commandContext) *cobra.Command {
	var flags unitFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a project's translation units",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				units, err := eng.Store().UnitsByProject(c, flags.project, flags.limit)
				if err != nil {
					return err
				}
				return printUnits(cmd, ctx, units)
			})
		},
	}
	flags.bindProject(cmd)
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 50, "Maximum units to list (0 lists all)")
	return cmd
}

func newUnitSearchCommand(ctx *commandContext) *cobra.Command {
	var flags unitFlags
	var exact bool
	cmd := &cobra.Command{
		Use:   "search <pattern>",
		Short: "Find units whose source text contains a pattern",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				units, err := eng.Store().SearchUnits(c, store.SearchQuery{
					ProjectID:      flags.project,
					Pattern:        args[0],
					SourceLanguage: flags.source,
					TargetLanguage: flags.target,
					Exact:          exact,
					Limit:          flags.limit,
				})
				if err != nil {
					return err
				}
				return printUnits(cmd, ctx, units)
			})
		},
	}
	flags.bindProject(cmd)
	flags.bindLanguages(cmd)
	cmd.Flags().BoolVar(&exact, "exact", false, "Match the whole source text")
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 50, "Maximum units to return")
	return cmd
}

func newUnitDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <unit-id>",
		Short: "Delete a translation unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			if id == "" {
				return errors.New("unit id is required")
			}
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				if err := eng.DeleteUnit(c, id); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Deleted unit %s\n", id)
				return nil
			})
		},
	}
}

func printUnits(cmd *cobra.Command, ctx *commandContext, units []*store.TranslationUnit) error {
	if ctx.jsonOutput() {
		if units == nil {
			units = []*store.TranslationUnit{}
		}
		return writeJSON(cmd, units)
	}
	rows := make([][]string, 0, len(units))
	for _, u := range units {
		rows = append(rows, []string{
			u.ID,
			u.Pair().String(),
			oneLine(u.SourceText),
			oneLine(u.TargetText),
			formatScore(u.ConfidenceScore),
		})
	}
	printTable(cmd, []string{"ID", "Pair", "Source", "Target", "Confidence"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight})
	return nil
}
