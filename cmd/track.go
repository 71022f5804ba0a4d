package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/carteakey/aidar/internal/discovery"
	"github.com/carteakey/aidar/internal/pipeline"
)

var (
	trackLimit        int
	trackConcurrency  int
	trackSource       string
	trackSkipExisting bool
	trackRescanStale  bool
	trackExclude      []string
)

var trackCmd = &cobra.Command{
	Use:   "track <domain>",
	Short: "Discover and scan a domain's pages, persisting results",
	Long: `Discovers article URLs from the domain's sitemap or feed, scans them, and
saves results. Designed to run periodically (e.g. cron) to follow a site's
stylistic drift. With --rescan-stale, pages whose stored scores predate a
pattern version bump are re-queued even when --skip-existing is set.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		base, err := discovery.NormalizeDomain(args[0])
		if err != nil {
			return err
		}

		d := discovery.NewDiscoverer(
			time.Duration(cfg.Discovery.TimeoutSecs)*time.Second,
			cfg.Fetch.UserAgent,
		)
		urls, err := d.Discover(ctx, base, discovery.Options{
			Source: discovery.Source(trackSource),
			Limit:  trackLimit,
		})
		if err != nil {
			return eris.Wrapf(err, "discover %s", base)
		}
		zap.L().Info("discovery complete", zap.String("domain", base), zap.Int("urls", len(urls)))

		targets := urls
		if trackRescanStale {
			targets, err = withStaleTargets(ctx, env, urls)
			if err != nil {
				return err
			}
		}

		concurrency := trackConcurrency
		if concurrency == 0 {
			concurrency = cfg.Scan.Concurrency
		}

		sum, err := env.Pipeline.RunBatch(ctx, targets, pipeline.BatchOptions{
			Concurrency:  concurrency,
			Save:         true,
			Exclude:      trackExclude,
			SkipExisting: trackSkipExisting && !trackRescanStale,
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

// withStaleTargets unions the discovered URLs with stored scans whose
// pattern scores are out of date, and drops discovered URLs that are
// already stored and current.
func withStaleTargets(ctx context.Context, env *env, discovered []string) ([]string, error) {
	stale, err := env.Store.StaleScans(ctx, env.Snapshot.Versions())
	if err != nil {
		return nil, eris.Wrap(err, "find stale scans")
	}

	staleSet := make(map[string]bool, len(stale))
	for _, id := range stale {
		if id.URL != "" {
			staleSet[id.URL] = true
		}
	}

	var targets []string
	for _, u := range discovered {
		known, err := env.Store.HasScan(ctx, pipeline.IdentityFor(u))
		if err != nil {
			return nil, err
		}
		if !known || staleSet[u] {
			targets = append(targets, u)
			delete(staleSet, u)
		}
	}
	// Stale stored URLs the sitemap no longer lists still get rescanned.
	var leftovers []string
	for u := range staleSet {
		leftovers = append(leftovers, u)
	}
	sort.Strings(leftovers)
	targets = append(targets, leftovers...)

	fmt.Printf("Rescanning %d targets (%d stale)\n", len(targets), len(stale))
	return targets, nil
}

func init() {
	trackCmd.Flags().IntVar(&trackLimit, "limit", 50, "max pages to scan per run (0 = all)")
	trackCmd.Flags().IntVar(&trackConcurrency, "concurrency", 0, "concurrent fetches (default from config)")
	trackCmd.Flags().StringVar(&trackSource, "source", "auto", "discovery source: auto | sitemap | rss")
	trackCmd.Flags().BoolVar(&trackSkipExisting, "skip-existing", true, "skip URLs already in the database")
	trackCmd.Flags().BoolVar(&trackRescanStale, "rescan-stale", false, "re-scan URLs whose pattern scores are outdated")
	trackCmd.Flags().StringArrayVar(&trackExclude, "exclude", nil, "skip URLs containing this substring (repeatable)")
	trackCmd.Flags().BoolVar(&outputJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(trackCmd)
}
