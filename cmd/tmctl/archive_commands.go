package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"tmengine/internal/archive"
	"tmengine/internal/engine"
)

var errArchiveDisabled = errors.New("archive is disabled; set [archive] enabled = true")

func newArchiveCommand(ctx *commandContext) *cobra.Command {
	archiveCmd := &cobra.Command{
		Use:   "archive",
		Short: "Manage the columnar archive",
	}
	archiveCmd.AddCommand(newArchiveRefreshCommand(ctx))
	archiveCmd.AddCommand(newArchiveStatsCommand(ctx))
	return archiveCmd
}

func withArchive(ctx *commandContext, cmd *cobra.Command, fn func(context.Context, *archive.Archive) error) error {
	return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
		arch := eng.Archive()
		if arch == nil {
			return errArchiveDisabled
		}
		return fn(c, arch)
	})
}

func newArchiveRefreshCommand(ctx *commandContext) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild a project's archive files from the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(ctx, cmd, func(c context.Context, arch *archive.Archive) error {
				result, err := arch.Refresh(c, project)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Archived %d units and %d terms in %s\n",
					result.Units, result.Terms, result.Duration.Round(time.Millisecond))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project identifier")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}

func newArchiveStatsCommand(ctx *commandContext) *cobra.Command {
	var project string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize a project's archive files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withArchive(ctx, cmd, func(c context.Context, arch *archive.Archive) error {
				stats, err := arch.Stats(c, project)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, stats)
				}
				rows := [][]string{
					{"Units", fmt.Sprint(stats.Units)},
					{"Terms", fmt.Sprint(stats.Terms)},
					{"Do not translate", fmt.Sprint(stats.DoNotTranslate)},
					{"Average confidence", formatScore(stats.AverageConfidence)},
					{"Bytes on disk", fmt.Sprint(stats.Bytes)},
				}
				for _, p := range stats.LanguagePairs {
					rows = append(rows, []string{pairLabel(p.Pair), fmt.Sprint(p.Units)})
				}
				printTable(cmd, []string{"Metric", "Value"}, rows, []columnAlignment{alignLeft, alignRight})
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&project, "project", "p", "", "Project identifier")
	_ = cmd.MarkFlagRequired("project")
	return cmd
}
