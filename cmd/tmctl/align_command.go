package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"tmengine/internal/alignment"
	"tmengine/internal/engine"
)

func newAlignCommand(ctx *commandContext) *cobra.Command {
	var langs alignment.Languages

	cmd := &cobra.Command{
		Use:   "align <source-file> <target-file>",
		Short: "Align the sentences of two parallel texts",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read source: %w", err)
			}
			target, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("read target: %w", err)
			}
			return ctx.withEngine(cmd, func(c context.Context, eng *engine.Engine) error {
				result, err := eng.Alignment().Align(c, string(source), string(target), langs)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				printAlignment(cmd, result)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&langs.Source, "src", "", "Source language code")
	cmd.Flags().StringVar(&langs.Target, "tgt", "", "Target language code")
	_ = cmd.MarkFlagRequired("src")
	_ = cmd.MarkFlagRequired("tgt")
	return cmd
}

func printAlignment(cmd *cobra.Command, result *alignment.Result) {
	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(result.Alignments))
	for _, a := range result.Alignments {
		rows = append(rows, []string{
			oneLine(a.SourceText),
			oneLine(a.TargetText),
			formatScore(a.Confidence),
			string(a.Method),
			string(a.Status),
		})
	}
	printTable(cmd, []string{"Source", "Target", "Confidence", "Method", "Status"}, rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft})

	if len(result.Problems) > 0 {
		problems := make([][]string, 0, len(result.Problems))
		for _, p := range result.Problems {
			index := "-"
			if p.AlignmentIndex >= 0 {
				index = fmt.Sprint(p.AlignmentIndex)
			}
			problems = append(problems, []string{index, string(p.Kind), formatScore(p.Severity), yesNo(p.Informational), p.Suggestion})
		}
		printTable(cmd, []string{"#", "Problem", "Severity", "Informational", "Suggestion"}, problems,
			[]columnAlignment{alignRight, alignLeft, alignRight, alignLeft, alignLeft})
	}

	fmt.Fprintf(out, "Quality: %s  Health: %s (%s)  Sentences: %d/%d  Aligned: %d\n",
		formatScore(result.Quality.Overall),
		result.Health.Status,
		formatScore(result.Health.Score),
		result.Statistics.SourceSentences,
		result.Statistics.TargetSentences,
		result.Statistics.Aligned,
	)
}
