package main

import (
	"sort"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/carteakey/aidar/internal/pipeline"
)

var (
	compareSort        string
	compareConcurrency int
)

var compareCmd = &cobra.Command{
	Use:   "compare <target> <target>...",
	Short: "Analyze multiple URLs/files and rank them by stylistic index",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := compareConcurrency
		if concurrency == 0 {
			concurrency = cfg.Scan.Concurrency
		}

		sum, err := env.Pipeline.RunBatch(ctx, args, pipeline.BatchOptions{
			Concurrency: concurrency,
		})
		if err != nil {
			return err
		}

		outcomes := sum.Outcomes
		switch compareSort {
		case "score":
			sort.SliceStable(outcomes, func(i, j int) bool {
				return indexOf(outcomes[i]) > indexOf(outcomes[j])
			})
		case "url":
			sort.SliceStable(outcomes, func(i, j int) bool {
				return outcomes[i].Target < outcomes[j].Target
			})
		default:
			return eris.Errorf("invalid --sort %q (score|url)", compareSort)
		}

		if outputJSON {
			return printJSON(outcomes)
		}
		renderComparison(outcomes)
		renderSummary(sum)
		return nil
	},
}

// indexOf orders failed targets below every scored one.
func indexOf(out pipeline.Outcome) int {
	if out.Result == nil {
		return -1
	}
	return out.Result.Index
}

func init() {
	compareCmd.Flags().StringVar(&compareSort, "sort", "score", "sort order: score | url")
	compareCmd.Flags().IntVar(&compareConcurrency, "concurrency", 0, "concurrent fetches (default from config)")
	compareCmd.Flags().BoolVar(&outputJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(compareCmd)
}
