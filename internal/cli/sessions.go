package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dyike/CortexOffice/internal/storage"
	"github.com/dyike/CortexOffice/internal/storage/sqlite"
)

func newSessionsCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Browse meeting transcripts",
	}

	var (
		limit  int
		cursor int64
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List recent trading days",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTranscriptStore(s)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.ListSessions(cmd.Context(), cursor, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderSessions(sessions))
			return nil
		},
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum sessions to show")
	list.Flags().Int64Var(&cursor, "cursor", 0, "Show sessions older than this row id")

	show := &cobra.Command{
		Use:   "show SESSION_ID",
		Short: "Print every message of a trading day",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := openTranscriptStore(s)
			if err != nil {
				return err
			}
			defer store.Close()

			sess, err := store.GetSession(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if sess == nil {
				return fmt.Errorf("session %s not found", args[0])
			}
			msgs, err := store.ListMessages(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTranscript(*sess, msgs))
			return nil
		},
	}

	cmd.AddCommand(list, show)
	return cmd
}

func openTranscriptStore(s *session) (*sqlite.Store, error) {
	path, err := storage.TranscriptDBPath(s.cfg.DataDir)
	if err != nil {
		return nil, err
	}
	return sqlite.Open(path)
}
