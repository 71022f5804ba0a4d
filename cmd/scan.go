package main

import (
	"bufio"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/carteakey/aidar/internal/pipeline"
)

var (
	scanBatchFile    string
	scanConcurrency  int
	scanSave         bool
	scanSkipExisting bool
	scanLimit        int
	scanExclude      []string
)

var scanCmd = &cobra.Command{
	Use:   "scan [targets...]",
	Short: "Bulk-scan URLs from arguments or a batch file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		targets := args
		if scanBatchFile != "" {
			fromFile, err := readTargets(scanBatchFile)
			if err != nil {
				return err
			}
			targets = append(targets, fromFile...)
		}
		if len(targets) == 0 {
			return eris.New("no targets: pass URLs as arguments or --batch <file>")
		}

		needStore := scanSave || scanSkipExisting
		env, err := initEnv(ctx, needStore)
		if err != nil {
			return err
		}
		defer env.Close()

		concurrency := scanConcurrency
		if concurrency == 0 {
			concurrency = cfg.Scan.Concurrency
		}

		sum, err := env.Pipeline.RunBatch(ctx, targets, pipeline.BatchOptions{
			Concurrency:  concurrency,
			Save:         scanSave,
			Limit:        scanLimit,
			Exclude:      scanExclude,
			SkipExisting: scanSkipExisting,
		})
		if err != nil {
			return err
		}

		if outputJSON {
			return printJSON(sum)
		}
		renderComparison(sum.Outcomes)
		renderSummary(sum)
		return nil
	},
}

// readTargets loads one target per line, skipping blanks and # comments.
func readTargets(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open batch file %s", path)
	}
	defer f.Close()

	var targets []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		targets = append(targets, line)
	}
	if err := sc.Err(); err != nil {
		return nil, eris.Wrapf(err, "read batch file %s", path)
	}
	return targets, nil
}

func init() {
	scanCmd.Flags().StringVar(&scanBatchFile, "batch", "", "text file with one URL per line")
	scanCmd.Flags().IntVar(&scanConcurrency, "concurrency", 0, "concurrent fetches (default from config)")
	scanCmd.Flags().BoolVar(&scanSave, "save", false, "persist results to the database")
	scanCmd.Flags().BoolVar(&scanSkipExisting, "skip-existing", false, "skip targets already in the database")
	scanCmd.Flags().IntVar(&scanLimit, "limit", 0, "max targets to scan (0 = all)")
	scanCmd.Flags().StringArrayVar(&scanExclude, "exclude", nil, "skip targets containing this substring (repeatable)")
	scanCmd.Flags().BoolVar(&outputJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(scanCmd)
}
