package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ragdesk/ragdesk/internal/analytics"
	"github.com/ragdesk/ragdesk/internal/config"
	"github.com/ragdesk/ragdesk/internal/conversation"
	"github.com/ragdesk/ragdesk/internal/db"
	"github.com/ragdesk/ragdesk/internal/index"
	"github.com/ragdesk/ragdesk/internal/ingest"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show configuration, index and session state for the project",
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := findRoot()
			if err != nil {
				return err
			}
			cfg, err := config.Load(root)
			if err != nil {
				return err
			}
			p := &project{root: root, cfg: cfg}
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			fmt.Fprintf(out, "\nProject:   %s\n", root)
			fmt.Fprintf(out, "Model:     %s\n", cfg.Model)
			fmt.Fprintf(out, "Embedder:  %s\n", cfg.Embedder)
			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(out, "Config:    invalid (%v)\n", err)
			} else {
				fmt.Fprintln(out, "Config:    ok")
			}

			kb := cfg.KnowledgeBasePath(root)
			if docs, err := ingest.LoadDirectory(kb); err != nil {
				fmt.Fprintf(out, "Knowledge: %s (unreadable: %v)\n", kb, err)
			} else {
				fmt.Fprintf(out, "Knowledge: %s (%d documents)\n", kb, len(docs))
			}

			indexState := "not built (run `ragdesk ingest`)"
			if fi, err := os.Stat(p.indexPath()); err == nil {
				indexState = formatBytes(fi.Size())
				if embedder, err := p.embedder(); err == nil {
					if idx, err := index.Load(ctx, p.indexPath(), embedder); err == nil {
						indexState = fmt.Sprintf("%d chunks, dim %d, %s, updated %s",
							idx.Len(), idx.Dimension(), formatBytes(fi.Size()), fi.ModTime().Format("2006-01-02 15:04"))
					} else {
						indexState = fmt.Sprintf("unreadable (%v)", err)
					}
				}
			}
			fmt.Fprintf(out, "Index:     %s\n", indexState)

			dbPath := config.ProjectDBPath(root)
			if fi, err := os.Stat(dbPath); err == nil {
				database, err := db.Open(dbPath)
				if err != nil {
					return fmt.Errorf("open database: %w", err)
				}
				defer database.Close()

				stats, _ := conversation.NewStore(database).Count(ctx)
				summary, _ := analytics.NewRecorder(db.NewKV(database)).Summary(ctx)
				fmt.Fprintf(out, "Sessions:  %d (%d turns)\n", stats.Sessions, stats.Turns)
				fmt.Fprintf(out, "Queries:   %d (avg %.2fs)\n", summary.TotalQueries, summary.AvgResponseTime)
				fmt.Fprintf(out, "DB size:   %s\n", formatBytes(fi.Size()))
			} else {
				fmt.Fprintln(out, "Sessions:  none yet")
			}
			fmt.Fprintln(out)

			return nil
		},
	}
}
