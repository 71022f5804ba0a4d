package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/carteakey/aidar/internal/discovery"
)

var (
	discoverLimit  int
	discoverSource string
)

var discoverCmd = &cobra.Command{
	Use:   "discover <domain>",
	Short: "List article URLs found via the domain's sitemap or feed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		base, err := discovery.NormalizeDomain(args[0])
		if err != nil {
			return err
		}

		d := discovery.NewDiscoverer(
			time.Duration(cfg.Discovery.TimeoutSecs)*time.Second,
			cfg.Fetch.UserAgent,
		)
		urls, err := d.Discover(cmd.Context(), base, discovery.Options{
			Source: discovery.Source(discoverSource),
			Limit:  discoverLimit,
		})
		if err != nil {
			return err
		}

		if outputJSON {
			return printJSON(urls)
		}
		for _, u := range urls {
			fmt.Println(u)
		}
		fmt.Printf("\n%d URLs\n", len(urls))
		return nil
	},
}

func init() {
	discoverCmd.Flags().IntVar(&discoverLimit, "limit", 0, "max URLs to return (0 = all)")
	discoverCmd.Flags().StringVar(&discoverSource, "source", "auto", "discovery source: auto | sitemap | rss")
	discoverCmd.Flags().BoolVar(&outputJSON, "json", false, "emit JSON instead of text")
	rootCmd.AddCommand(discoverCmd)
}
