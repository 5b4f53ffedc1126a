package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyike/CortexOffice/config"
	"github.com/dyike/CortexOffice/pkg/logger"
)

// session carries the resolved configuration into every subcommand.
type session struct {
	configPath string
	logLevel   string

	mgr *config.Manager
	cfg config.Config
}

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	s := &session{}

	rootCmd := &cobra.Command{
		Use:   "cortexoffice",
		Short: "CortexOffice - a simulated investment office",
		Long: `CortexOffice runs a daily meeting between a CEO, a value investor, a market researcher,
an analyst and a secretary. Approved recommendations are traded against a local portfolio ledger.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return s.load()
		},
	}

	rootCmd.PersistentFlags().StringVar(&s.configPath, "config", "", "Configuration file path (defaults to the user config dir)")
	rootCmd.PersistentFlags().StringVar(&s.logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	rootCmd.AddCommand(
		newRunCmd(s),
		newOnceCmd(s),
		newReportCmd(s),
		newCacheCmd(s),
		newSessionsCmd(s),
		newConfigCmd(s),
		newVersionCmd(),
	)
	return rootCmd
}

func (s *session) load() error {
	mgr, cfg, err := config.Load(s.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if s.logLevel != "" {
		cfg.LogLevel = s.logLevel
	}
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}
	if err := logger.Init(cfg.LogLevel, cfg.LogEnv); err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return fmt.Errorf("failed to create directories: %w", err)
	}
	s.mgr = mgr
	s.cfg = cfg
	return nil
}

// newVersionCmd creates the version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), titleStyle.Render("CortexOffice "+Version))
		},
	}
}
