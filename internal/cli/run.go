package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyike/CortexOffice/config"
	"github.com/dyike/CortexOffice/internal/debug"
	"github.com/dyike/CortexOffice/internal/metrics"
	"github.com/dyike/CortexOffice/internal/office"
	"github.com/dyike/CortexOffice/pkg/logger"
)

func newRunCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the office every schedule interval until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScheduler(cmd.Context(), s)
		},
	}
}

func newOnceCmd(s *session) *cobra.Command {
	return &cobra.Command{
		Use:   "once",
		Short: "Run a single trading day",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rt, err := startRuntime(ctx, s.cfg)
			if err != nil {
				return err
			}
			defer rt.Close()

			res, err := rt.office.RunDay(ctx)
			if err != nil {
				return fmt.Errorf("trading day failed: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderDayResult(res, rt.portfolio.Snapshot()))
			return nil
		},
	}
}

// startRuntime wires the office and the optional metrics and debug servers.
func startRuntime(ctx context.Context, cfg config.Config) (*runtime, error) {
	metrics.Init()
	if cfg.MetricsAddr != "" {
		go func() {
			if err := metrics.Serve(ctx, cfg.MetricsAddr); err != nil {
				logger.Get().Warnw("metrics server stopped", "error", err)
			}
		}()
	}
	if err := debug.NewEinoDebugger(&cfg).Initialize(ctx); err != nil {
		logger.Get().Warnw("eino debug unavailable", "error", err)
	}
	return newRuntime(ctx, cfg)
}

func runScheduler(ctx context.Context, s *session) error {
	rt, err := startRuntime(ctx, s.cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	interval, err := s.cfg.Interval()
	if err != nil {
		return err
	}
	sched := office.NewScheduler(rt.office, interval)
	sched.OnResult(func(res *office.DayResult) {
		fmt.Println(renderDayResult(res, rt.portfolio.Snapshot()))
	})

	log := logger.Get().Named("cli")
	if err := s.mgr.Watch(ctx, func(cfg config.Config) {
		rt.office.SetLimits(limitsFrom(cfg))
		if d, err := cfg.Interval(); err == nil {
			sched.SetInterval(d)
		}
	}); err != nil {
		log.Warnw("config watch unavailable, edits apply on restart", "error", err)
	}

	fmt.Println(titleStyle.Render("CortexOffice is open"))
	fmt.Println(mutedStyle.Render(fmt.Sprintf("config %s, next day every %s", s.mgr.Path(), interval)))

	err = sched.Run(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Println(mutedStyle.Render("office closed"))
		return nil
	}
	return err
}
