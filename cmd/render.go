package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/carteakey/aidar/internal/model"
	"github.com/carteakey/aidar/internal/pipeline"
)

// outputJSON is the shared --json flag; set per command.
var outputJSON bool

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func renderResult(res *model.Result, verbose bool) {
	fmt.Printf("\n%s\n", res.Identity.String())
	if res.Title != "" {
		fmt.Printf("  Title:      %s\n", res.Title)
	}
	fmt.Printf("  Words:      %d\n", res.WordCount)
	if res.PublishedDate != nil {
		fmt.Printf("  Published:  %s\n", res.PublishedDate.Format("2006-01-02"))
	}
	fmt.Printf("  Index:      %d / 100\n", res.Index)
	fmt.Printf("  Label:      %s\n", res.Label)

	var cats []model.Category
	for c := range res.CategoryScores {
		cats = append(cats, c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })

	fmt.Println("  Categories:")
	for _, c := range cats {
		fmt.Printf("    %-14s %s %.2f\n", c, bar(res.CategoryScores[c]), res.CategoryScores[c])
	}

	if verbose {
		fmt.Println("  Patterns:")
		for _, pr := range res.PatternResults {
			fmt.Printf("    %-26s v%-2d raw=%-8.3f score=%.2f  %s\n",
				pr.PatternID, pr.Version, pr.RawValue, pr.Normalized, pr.Detail)
		}
	}

	if len(res.ProfileMatch) > 0 {
		fmt.Printf("  Profile similarity: %.3f\n", res.ProfileMatch["similarity"])
	}
}

// bar renders a 20-cell gauge for a [0,1] score.
func bar(score float64) string {
	filled := int(score*20 + 0.5)
	if filled > 20 {
		filled = 20
	}
	return "[" + strings.Repeat("#", filled) + strings.Repeat("-", 20-filled) + "]"
}

func renderComparison(outcomes []pipeline.Outcome) {
	fmt.Printf("\n%-50s %6s  %-12s %6s\n", "TARGET", "INDEX", "LABEL", "WORDS")
	for _, out := range outcomes {
		if out.Err != nil {
			fmt.Printf("%-50s %6s  %-12s %6s  (%s: %v)\n",
				truncate(out.Target, 50), "-", "ERROR", "-", out.Stage, out.Err)
			continue
		}
		fmt.Printf("%-50s %6d  %-12s %6d\n",
			truncate(out.Target, 50), out.Result.Index, out.Result.Label, out.Result.WordCount)
	}
}

func renderSummary(sum *pipeline.Summary) {
	fmt.Printf("\n%d targets: %d scored, %d failed, %d skipped (%.1fs)\n",
		sum.Total, sum.Succeeded, sum.Failed, sum.Skipped, sum.Elapsed.Seconds())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
