package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragdesk/ragdesk/internal/conversation"
)

func newSessionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect and prune stored chat sessions",
	}
	cmd.AddCommand(newSessionsPruneCmd())
	return cmd
}

func newSessionsPruneCmd() *cobra.Command {
	var (
		olderThanDays int
		dryRun        bool
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove idle sessions to reduce database size",
		Long: `Delete chat sessions, with their turns, that have not been used for a
number of days. The default comes from server.session_max_age_days.

  ragdesk sessions prune                  # use the configured age
  ragdesk sessions prune --older-than 7   # delete sessions idle for a week
  ragdesk sessions prune --dry-run        # preview`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(false)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("older-than") {
				olderThanDays = p.cfg.Server.SessionMaxAge
			}
			if olderThanDays <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			database, err := p.openDB()
			if err != nil {
				return err
			}
			defer func() { _ = database.Close() }()

			store := conversation.NewStore(database)
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			before, err := store.Count(ctx)
			if err != nil {
				return err
			}

			if dryRun {
				fmt.Fprintf(out, "Current sessions: %d\n", before.Sessions)
				fmt.Fprintf(out, "Would delete sessions idle for more than %d days\n", olderThanDays)
				return nil
			}

			pruned, err := store.Prune(ctx, olderThanDays)
			if err != nil {
				return err
			}

			after, _ := store.Count(ctx)
			fmt.Fprintf(out, "Pruned %d sessions (%d → %d)\n", pruned, before.Sessions, after.Sessions)
			return nil
		},
	}

	cmd.Flags().IntVar(&olderThanDays, "older-than", 0, "delete sessions idle for more than N days")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "preview what would be pruned without deleting")

	return cmd
}
