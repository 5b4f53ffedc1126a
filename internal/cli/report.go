package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newReportCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print and save portfolio reports",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "performance",
		Short: "Value every holding at current prices",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newPortfolioRuntime(s.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.portfolio.PerformanceReport(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "ledger",
		Short: "Replay the transaction ledger",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := newPortfolioRuntime(s.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			report, err := rt.portfolio.LedgerReport()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), report)
			fmt.Fprintln(cmd.OutOrStdout(), renderPortfolio(rt.portfolio.Snapshot()))
			return nil
		},
	})
	return cmd
}
