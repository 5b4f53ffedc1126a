package cli

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/dyike/CortexOffice/config"
	"github.com/dyike/CortexOffice/internal/cache"
	"github.com/dyike/CortexOffice/internal/dataflows"
	"github.com/dyike/CortexOffice/internal/utils"
)

func newCacheCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Build and inspect the local market-data cache",
	}

	var buildList string
	build := &cobra.Command{
		Use:   "build",
		Short: "Fetch five years of daily bars for every symbol in a list",
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := utils.ReadStockList(buildList)
			if err != nil {
				return err
			}
			rt, builder, err := openBuilder(s.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := builder.Build(cmd.Context(), entries)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderCacheResult("build", res))
			return nil
		},
	}
	build.Flags().StringVar(&buildList, "symbols", "", "CSV or plain list of symbols (symbol,company_name)")
	_ = build.MarkFlagRequired("symbols")

	var updateList string
	update := &cobra.Command{
		Use:   "update",
		Short: "Fetch bars newer than the latest cached day",
		RunE: func(cmd *cobra.Command, args []string) error {
			var entries []utils.StockEntry
			if updateList != "" {
				var err error
				if entries, err = utils.ReadStockList(updateList); err != nil {
					return err
				}
			}
			rt, builder, err := openBuilder(s.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := builder.Update(cmd.Context(), entries)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderCacheResult("update", res))
			return nil
		},
	}
	update.Flags().StringVar(&updateList, "symbols", "", "Limit the update to this list (default: every cached symbol)")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show what the cache holds",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, builder, err := openBuilder(s.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			st, err := builder.Stats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderCacheStats(st))
			return nil
		},
	}

	var exportDays int
	var exportDir string
	export := &cobra.Command{
		Use:   "export SYMBOL",
		Short: "Write cached bars for a symbol to CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			symbol := dataflows.NormalizeSymbol(args[0])
			if err := dataflows.ValidateSymbol(symbol); err != nil {
				return err
			}
			rt, _, err := openBuilder(s.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			end := time.Now()
			bars, err := rt.market.GetStockData(cmd.Context(), symbol, end.AddDate(0, 0, -exportDays), end)
			if err != nil {
				return err
			}
			dir := exportDir
			if dir == "" {
				dir = s.cfg.ResultsDir
			}
			path := filepath.Join(dir, fmt.Sprintf("%s_%s.csv", symbol, end.Format("2006-01-02")))
			if err := utils.WriteBarsCSV(path, symbol, bars); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("%d bars written to %s", len(bars), path)))
			return nil
		},
	}
	export.Flags().IntVar(&exportDays, "days", 365, "Days of history to export")
	export.Flags().StringVar(&exportDir, "out", "", "Output directory (default: results dir)")

	cmd.AddCommand(build, update, stats, export)
	return cmd
}

// openBuilder opens the cache and a live gateway that bypasses it.
func openBuilder(cfg config.Config) (*runtime, *cache.Builder, error) {
	cfg.CacheEnabled = true
	rt := &runtime{cfg: cfg}
	if err := rt.openMarket(); err != nil {
		return nil, nil, err
	}
	if err := rt.buildGateway(false); err != nil {
		rt.Close()
		return nil, nil, err
	}
	return rt, cache.NewBuilder(rt.market, rt.gateway, cfg.ResearchConcurrency), nil
}
