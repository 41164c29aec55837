package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"quarterfacts/pkg/core/cache"
	"quarterfacts/pkg/core/config"
	"quarterfacts/pkg/core/ingest"
	"quarterfacts/pkg/core/series"
	"quarterfacts/pkg/core/xbrl"
)

var configPath string

func main() {
	// .env is optional; environment variables may already be set.
	_ = godotenv.Load()

	root := &cobra.Command{
		Use:   "quarterfacts",
		Short: "Quarterly XBRL fact cache for SEC filings",
	}
	root.PersistentFlags().StringVar(&configPath, "config", "quarterfacts.hjson", "config file (HJSON)")

	root.AddCommand(warmCmd(), showCmd(), statsCmd(), refreshCmd(), conceptsCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// newManager builds the full stack from config: file store, EDGAR fetcher,
// rate limiter, and the optional Postgres archive mirror.
func newManager(ctx context.Context) (*cache.Manager, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	store, err := cache.NewStore(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	var archive *cache.Archive
	if cfg.DatabaseURL != "" {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			log.Printf("Warning: archive database unavailable, running file-only: %v", err)
		} else {
			archive = cache.NewArchive(pool)
		}
	}

	fetcher := ingest.NewEDGARClient(cfg.UserAgent)
	limiter := cache.NewRateLimiter(cfg.RateLimitDelay())
	return cache.NewManager(store, fetcher, limiter, archive), nil
}

func warmCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "warm [tickers...]",
		Short: "Pre-fetch caches for a list of tickers",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			tickers := args
			if len(tickers) == 0 {
				tickers = cfg.WarmTickers
			}
			if len(tickers) == 0 {
				return fmt.Errorf("no tickers given and no warm_tickers configured")
			}

			manager, err := newManager(cmd.Context())
			if err != nil {
				return err
			}
			if workers == 0 {
				workers = cfg.WarmWorkers
			}
			results := manager.Warm(cmd.Context(), tickers, workers)
			failed := 0
			for _, r := range results {
				if r.Err != nil {
					failed++
				}
			}
			fmt.Printf("Warm pass complete: %d ok, %d failed\n", len(results)-failed, failed)
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent workers (default from config)")
	return cmd
}

func showCmd() *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "show TICKER",
		Short: "Show the cached revenue series for a ticker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager(cmd.Context())
			if err != nil {
				return err
			}

			var records []xbrl.FilingRecord
			var meta cache.ReadMeta
			if all {
				records, meta, err = manager.GetCalculationData(cmd.Context(), args[0])
			} else {
				records, meta, err = manager.GetDisplayData(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}

			fmt.Printf("%s (%s): %d/%d quarters\n", meta.Ticker, meta.CompanyName, meta.QuartersLoaded, meta.TotalQuartersCached)
			for _, p := range series.BuildRevenue(records) {
				marker := ""
				if p.IsCalculatedQ4 {
					marker = " (calculated)"
				} else if p.NeedsQ4Calculation {
					marker = " (annual, unreconstructed)"
				}
				fmt.Printf("  %s FY%d  %14.0f  [%s]%s\n", p.Quarter, p.Year, p.Value, p.SelectionMethod, marker)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "use the full calculation view instead of the display view")
	return cmd
}

func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Aggregate cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager(cmd.Context())
			if err != nil {
				return err
			}
			stats := manager.Stats()
			fmt.Printf("Cache: %s (format %s)\n", stats.CacheDirectory, stats.CacheFormatVersion)
			fmt.Printf("  Tickers: %d, quarters: %d, fact rows: %d, size: %d bytes\n",
				stats.TotalTickers, stats.TotalQuartersCached, stats.TotalFactRows, stats.TotalSizeBytes)
			for ticker, ts := range stats.TickerStats {
				fmt.Printf("  %-6s %2d quarters, %8d rows, last filing %s\n", ticker, ts.Quarters, ts.FactRows, ts.LatestCachedFiling)
			}
			return nil
		},
	}
}

func refreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh TICKER",
		Short: "Delete and rebuild a ticker's cache",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manager, err := newManager(cmd.Context())
			if err != nil {
				return err
			}
			if !manager.ForceRefresh(cmd.Context(), args[0]) {
				return fmt.Errorf("refresh failed for %s", args[0])
			}
			fmt.Printf("Refreshed %s\n", args[0])
			return nil
		},
	}
}

func conceptsCmd() *cobra.Command {
	var out string
	var verify string
	cmd := &cobra.Command{
		Use:   "concepts",
		Short: "Export or verify the 49-concept schema contract",
		RunE: func(cmd *cobra.Command, args []string) error {
			if verify != "" {
				if err := xbrl.LoadConceptMapYAML(verify); err != nil {
					return err
				}
				fmt.Printf("%s matches format %s\n", verify, xbrl.CacheFormatVersion)
				return nil
			}
			if err := xbrl.WriteConceptMapYAML(out); err != nil {
				return err
			}
			fmt.Printf("Wrote %d concepts to %s\n", xbrl.ConceptCount, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "concepts.yaml", "output file")
	cmd.Flags().StringVar(&verify, "verify", "", "verify an exported map instead of writing")
	return cmd
}
