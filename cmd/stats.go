package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/carteakey/aidar/internal/model"
)

var statsCmd = &cobra.Command{
	Use:   "stats [domain]",
	Short: "Show stored scan statistics, globally or for one domain",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if len(args) == 1 {
			stats, err := st.DomainStats(ctx, args[0])
			if err != nil {
				return err
			}
			if stats == nil {
				fmt.Printf("No scans stored for %s\n", args[0])
				return nil
			}
			if outputJSON {
				return printJSON(stats)
			}
			fmt.Printf("\n%s\n", stats.Domain)
			fmt.Printf("  Scans:     %d\n", stats.Scans)
			fmt.Printf("  Avg index: %.1f\n", stats.AvgIndex)
			fmt.Printf("  Range:     %d - %d\n", stats.MinIndex, stats.MaxIndex)
			fmt.Printf("  Latest:    %s\n", stats.Latest.Format("2006-01-02 15:04"))
			printLabelCounts(stats.LabelCounts)
			return nil
		}

		stats, err := st.GlobalStats(ctx)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(stats)
		}
		fmt.Printf("\n  Scans:     %d\n", stats.TotalScans)
		fmt.Printf("  Domains:   %d\n", stats.TotalDomains)
		fmt.Printf("  Avg index: %.1f\n", stats.AvgIndex)
		printLabelCounts(stats.LabelCounts)
		return nil
	},
}

func printLabelCounts(counts map[model.Label]int) {
	var labels []model.Label
	for l := range counts {
		labels = append(labels, l)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })
	for _, l := range labels {
		fmt.Printf("  %-13s %d\n", l+":", counts[l])
	}
}

func init() {
	statsCmd.Flags().BoolVar(&outputJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(statsCmd)
}
