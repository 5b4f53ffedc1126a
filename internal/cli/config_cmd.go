package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var redactedFields = []string{
	"deepseek_api_key", "openai_api_key", "news_api_key",
	"longport_app_key", "longport_app_secret", "longport_access_token",
	"alpaca_api_key", "alpaca_api_secret",
}

func newConfigCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, validate or edit the configuration",
	}

	var reveal bool
	show := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := redactedJSON(s.cfg, reveal)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render(s.mgr.Path()))
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}
	show.Flags().BoolVar(&reveal, "reveal", false, "Print secrets instead of masking them")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "Check the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			// load already validated; reaching here means it passed.
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("configuration is valid: "+s.mgr.Path()))
			return nil
		},
	}

	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Interactively set up the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Start from the file, not the env overlay, so secrets from the environment stay out of it.
			updated, err := runConfigWizard(s.mgr.Get())
			if err != nil {
				return err
			}
			if err := s.mgr.Update(updated); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("saved "+s.mgr.Path()))
			return nil
		},
	}

	cmd.AddCommand(show, validate, initCmd)
	return cmd
}

func redactedJSON(cfg any, reveal bool) (string, error) {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}
	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", err
	}
	if !reveal {
		for _, k := range redactedFields {
			if v, ok := fields[k].(string); ok && v != "" {
				fields[k] = "****"
			}
		}
	}
	out, err := json.MarshalIndent(fields, "", "  ")
	if err != nil {
		return "", err
	}
	return string(out), nil
}
