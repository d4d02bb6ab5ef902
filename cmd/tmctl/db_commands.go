package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"tmengine/internal/engine"
	"tmengine/internal/preflight"
)

func newDBCommand(ctx *commandContext) *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database maintenance",
	}
	dbCmd.AddCommand(newDBBackupCommand(ctx))
	dbCmd.AddCommand(newDBOptimizeCommand(ctx))
	return dbCmd
}

func newDBBackupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "backup <destination>",
		Short: "Write a consistent copy of the database",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dest := strings.TrimSpace(args[0])
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				if err := eng.Store().Backup(c, dest); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Backed up database to %s\n", dest)
				return nil
			})
		},
	}
}

func newDBOptimizeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "optimize",
		Short: "Analyze and compact the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				if err := eng.Store().Optimize(c); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Database optimized")
				return nil
			})
		},
	}
}

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show project statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				if project == "" {
					projects, err := eng.Store().Projects(c)
					if err != nil {
						return err
					}
					if ctx.jsonOutput() {
						if projects == nil {
							projects = []string{}
						}
						return writeJSON(cmd, projects)
					}
					rows := make([][]string, 0, len(projects))
					for _, p := range projects {
						rows = append(rows, []string{p})
					}
					printTable(cmd, []string{"Project"}, rows, nil)
					return nil
				}
				stats, err := eng.Stats(c, project)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				pairs := make([]string, 0, len(stats.LanguagePairs))
				for _, p := range stats.LanguagePairs {
					pairs = append(pairs, pairLabel(p))
				}
				rows := [][]string{
					{"Units", fmt.Sprint(stats.Units)},
					{"Terms", fmt.Sprint(stats.Terms)},
					{"Do not translate", fmt.Sprint(stats.DoNotTranslate)},
					{"Chunks", fmt.Sprint(stats.Chunks)},
					{"Phrase groups", fmt.Sprint(stats.PhraseGroups)},
					{"Alignments", fmt.Sprint(stats.Alignments)},
					{"Average confidence", formatScore(stats.AverageQuality)},
					{"Language pairs", strings.Join(pairs, ", ")},
				}
				if stats.LastUnitUpdated != nil {
					rows = append(rows, []string{"Last unit update", stats.LastUnitUpdated.Format("2006-01-02 15:04:05")})
				}
				printTable(cmd, []string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project identifier (empty lists projects)")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Run readiness checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				results := eng.Preflight(c)
				if ctx.jsonOutput() {
					if err := writeJSON(cmd, results); err != nil {
						return err
					}
				} else {
					colorize := shouldColorize(cmd.OutOrStdout())
					for _, r := range results {
						fmt.Fprintln(cmd.OutOrStdout(), renderCheck(r, colorize))
					}
				}
				if failed := preflight.Failed(results); len(failed) > 0 {
					return fmt.Errorf("%d readiness check(s) failed", len(failed))
				}
				return nil
			})
		},
	}
}

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
	ansiGreen = "\x1b[32m"
)

func renderCheck(r preflight.Result, colorize bool) string {
	label, color := "OK", ansiGreen
	if !r.Passed {
		label, color = "ERROR", ansiRed
	}
	line := fmt.Sprintf("  %-20s [%s] %s", r.Name+":", label, r.Detail)
	if colorize {
		return color + line + ansiReset
	}
	return line
}
