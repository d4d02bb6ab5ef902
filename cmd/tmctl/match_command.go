package main

import (
	"context"

	"github.com/spf13/cobra"

	"tmengine/internal/engine"
	"tmengine/internal/match"
	"tmengine/internal/store"
)

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var flags unitFlags
	var floor float64

	cmd := &cobra.Command{
		Use:   "match <text>",
		Short: "Rank stored translations against a query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				candidates, err := eng.Search(c, match.Query{
					Text:            args[0],
					ProjectID:       flags.project,
					Pair:            store.LanguagePair{Source: flags.source, Target: flags.target},
					SimilarityFloor: floor,
					MaxResults:      flags.limit,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					if candidates == nil {
						candidates = []match.Candidate{}
					}
					return writeJSON(cmd, candidates)
				}
				rows := make([][]string, 0, len(candidates))
				for _, cand := range candidates {
					rows = append(rows, []string{
						string(cand.Strategy),
						formatScore(cand.SimilarityScore),
						formatScore(cand.RankScore),
						oneLine(cand.Unit.SourceText),
						oneLine(cand.Unit.TargetText),
					})
				}
				printTable(cmd, []string{"Strategy", "Similarity", "Rank", "Source", "Target"}, rows,
					[]columnAlignment{alignLeft, alignRight, alignRight, alignLeft, alignLeft})
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&flags.project, "project", "p", "", "Project identifier (empty searches all projects)")
	flags.bindLanguages(cmd)
	_ = cmd.MarkFlagRequired("src")
	_ = cmd.MarkFlagRequired("tgt")
	cmd.Flags().Float64Var(&floor, "floor", 0, "Similarity floor (0 uses the configured floor)")
	cmd.Flags().IntVarP(&flags.limit, "limit", "n", 0, "Maximum candidates (0 uses the configured limit)")
	return cmd
}
