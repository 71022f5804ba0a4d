package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/carteakey/aidar/internal/pattern"
	"github.com/carteakey/aidar/internal/score"
)

var (
	analyzeSave         bool
	analyzeCompareModel string
	analyzeMinWords     int
	analyzeVerbose      bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url-or-file>",
	Short: "Analyze a URL or local file for AI-generated stylistic signals",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		target := args[0]

		env, err := initEnv(ctx, analyzeSave)
		if err != nil {
			return err
		}
		defer env.Close()

		out := env.Pipeline.Run(ctx, target, analyzeSave)
		if out.Err != nil {
			return eris.Wrapf(out.Err, "%s failed at %s", target, out.Stage)
		}
		res := out.Result

		if res.WordCount < analyzeMinWords {
			fmt.Fprintf(os.Stderr, "Warning: only %d words extracted (--min-words=%d). Results may be unreliable.\n",
				res.WordCount, analyzeMinWords)
		}

		if analyzeCompareModel != "" {
			profile, err := pattern.LoadModelProfile(cfg.Patterns.Dir, analyzeCompareModel)
			if err != nil {
				return err
			}
			res.ProfileMatch = score.CompareProfile(res.PatternResults, profile)
		}

		if outputJSON {
			return printJSON(res)
		}
		renderResult(res, analyzeVerbose)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().BoolVar(&analyzeSave, "save", false, "persist the result to the database")
	analyzeCmd.Flags().StringVar(&analyzeCompareModel, "compare-model", "", "compare against a model profile (e.g. chatgpt, claude)")
	analyzeCmd.Flags().IntVar(&analyzeMinWords, "min-words", 100, "warn when fewer words are extracted")
	analyzeCmd.Flags().BoolVarP(&analyzeVerbose, "verbose", "v", false, "show per-pattern breakdown")
	analyzeCmd.Flags().BoolVar(&outputJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(analyzeCmd)
}
