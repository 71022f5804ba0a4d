package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/carteakey/aidar/internal/model"
	"github.com/carteakey/aidar/internal/pattern"
)

var patternsCategory string

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Inspect the loaded pattern registry",
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all loaded patterns",
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, err := pattern.Load(cfg.Patterns.Dir)
		if err != nil {
			return err
		}

		var defs []model.PatternDefinition
		if patternsCategory != "" {
			defs = snapshot.All(model.Category(patternsCategory))
		} else {
			defs = snapshot.All()
		}

		if outputJSON {
			return printJSON(defs)
		}

		fmt.Printf("%-26s %-12s %-12s %3s %6s  %s\n", "ID", "CATEGORY", "TYPE", "VER", "WEIGHT", "NAME")
		for _, d := range defs {
			fmt.Printf("%-26s %-12s %-12s %3d %6.2f  %s\n",
				d.ID, d.Category, d.DetectionType, d.Version, d.Weight, d.Name)
		}
		fmt.Printf("\n%d patterns loaded\n", len(defs))
		return nil
	},
}

var patternsShowCmd = &cobra.Command{
	Use:   "show <pattern-id>",
	Short: "Show full configuration for one pattern",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		snapshot, err := pattern.Load(cfg.Patterns.Dir)
		if err != nil {
			return err
		}

		def, ok := snapshot.Lookup(args[0])
		if !ok {
			var ids []string
			for _, d := range snapshot.All() {
				ids = append(ids, d.ID)
			}
			return eris.Errorf("pattern not found: %s (available: %s)", args[0], strings.Join(ids, ", "))
		}

		if outputJSON {
			return printJSON(def)
		}

		fmt.Printf("\n%s\n", def.ID)
		fmt.Printf("  Name:     %s\n", def.Name)
		fmt.Printf("  Category: %s\n", def.Category)
		fmt.Printf("  Type:     %s\n", def.DetectionType)
		fmt.Printf("  Version:  %d\n", def.Version)
		fmt.Printf("  Weight:   %.2f\n", def.Weight)
		fmt.Printf("  Severity: %s\n", def.Severity)
		if def.Description != "" {
			fmt.Printf("  Description:\n    %s\n", strings.TrimSpace(def.Description))
		}
		fmt.Printf("  Thresholds: low=%g high=%g\n", def.Params.ThresholdLow, def.Params.ThresholdHigh)
		if len(def.Params.Terms) > 0 {
			fmt.Printf("  Terms (%s): %s\n", def.Params.MatchMode, strings.Join(def.Params.Terms, ", "))
		}
		if len(def.Params.Patterns) > 0 {
			fmt.Printf("  Patterns: %s\n", strings.Join(def.Params.Patterns, "  "))
		}
		if def.Params.Metric != "" {
			fmt.Printf("  Metric: %s\n", def.Params.Metric)
		}
		for _, ref := range def.References {
			fmt.Printf("  Ref: %s\n", ref)
		}
		return nil
	},
}

var patternsVersionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Compare stored pattern versions against the registry",
	Long:  "Shows, per pattern, the newest version found in stored scans next to the registry version, flagging patterns whose stored scores are stale and listing the stored scans that need a rescan.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		snapshot, err := pattern.Load(cfg.Patterns.Dir)
		if err != nil {
			return err
		}
		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		stored, err := st.PatternVersionSummary(ctx)
		if err != nil {
			return err
		}
		stale, err := st.StaleScans(ctx, snapshot.Versions())
		if err != nil {
			return err
		}
		report := buildVersionsReport(snapshot, stored, stale)

		if outputJSON {
			return printJSON(report)
		}

		fmt.Printf("%-26s %8s %8s %6s\n", "ID", "REGISTRY", "STORED", "SCANS")
		for _, r := range report.Patterns {
			flag := ""
			if r.NeedsRescan {
				flag = "  stale"
			}
			fmt.Printf("%-26s %8d %8d %6d%s\n", r.ID, r.Registry, r.MaxStored, r.ScanCount, flag)
		}
		if len(report.StaleScans) == 0 {
			fmt.Println("\nAll stored scans are current.")
			return nil
		}
		fmt.Printf("\n%d stored scans are stale relative to the registry:\n", len(report.StaleScans))
		for _, id := range report.StaleScans {
			fmt.Printf("  %s\n", id)
		}
		fmt.Println("\nRescan with: aidar track <domain> --rescan-stale")
		return nil
	},
}

type versionRow struct {
	ID          string `json:"pattern_id"`
	Registry    int    `json:"registry_version"`
	MaxStored   int    `json:"max_stored_version"`
	ScanCount   int    `json:"scan_count"`
	NeedsRescan bool   `json:"needs_rescan"`
}

type versionsReport struct {
	Patterns   []versionRow     `json:"patterns"`
	StaleScans []model.Identity `json:"stale_scans"`
}

func buildVersionsReport(snapshot *pattern.Snapshot, stored []model.PatternVersionSummary, stale []model.Identity) versionsReport {
	byID := make(map[string]model.PatternVersionSummary, len(stored))
	for _, s := range stored {
		byID[s.PatternID] = s
	}

	var rows []versionRow
	for id, ver := range snapshot.Versions() {
		s := byID[id]
		rows = append(rows, versionRow{
			ID:          id,
			Registry:    ver,
			MaxStored:   s.MaxStoredVersion,
			ScanCount:   s.ScanCount,
			NeedsRescan: s.ScanCount > 0 && s.MaxStoredVersion < ver,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ID < rows[j].ID })

	return versionsReport{Patterns: rows, StaleScans: stale}
}

func init() {
	patternsListCmd.Flags().StringVar(&patternsCategory, "category", "", "filter by category")
	patternsListCmd.Flags().BoolVar(&outputJSON, "json", false, "emit JSON instead of text")
	patternsShowCmd.Flags().BoolVar(&outputJSON, "json", false, "emit JSON instead of text")
	patternsVersionsCmd.Flags().BoolVar(&outputJSON, "json", false, "emit JSON instead of text")
	patternsCmd.AddCommand(patternsListCmd, patternsShowCmd, patternsVersionsCmd)
	rootCmd.AddCommand(patternsCmd)
}
