package cli

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ragdesk/ragdesk/internal/analytics"
	"github.com/ragdesk/ragdesk/internal/conversation"
	"github.com/ragdesk/ragdesk/internal/db"
	"github.com/ragdesk/ragdesk/internal/export"
	"github.com/ragdesk/ragdesk/internal/index"
)

func newAnalyticsCmd() *cobra.Command {
	var (
		format string
		output string
	)

	cmd := &cobra.Command{
		Use:   "analytics",
		Short: "Report query volume, response times, satisfaction and intents",
		Long: `Render the usage analytics recorded by 'ragdesk serve'.
Output is written to stdout unless --output is given.

Examples:
  ragdesk analytics
  ragdesk analytics --format json
  ragdesk analytics --format markdown --output SUPPORT_REPORT.md`,
		RunE: func(cmd *cobra.Command, args []string) error {
			exporter, ok := export.Get(strings.ToLower(format))
			if !ok {
				return fmt.Errorf("unknown format %q; valid formats: %s",
					format, strings.Join(export.ValidFormats(), ", "))
			}

			p, err := loadProject(false)
			if err != nil {
				return err
			}
			database, err := p.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			ctx := cmd.Context()
			summary, err := analytics.NewRecorder(db.NewKV(database)).Summary(ctx)
			if err != nil {
				return err
			}
			stats, err := conversation.NewStore(database).Count(ctx)
			if err != nil {
				return err
			}

			data := export.ReportData{Summary: summary, Sessions: stats, GeneratedAt: time.Now()}
			if embedder, err := p.embedder(); err == nil {
				if idx, err := index.Load(ctx, p.indexPath(), embedder); err == nil {
					data.IndexRecords = idx.Len()
				}
			}

			rendered, err := exporter.Export(data)
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}

			if output != "" {
				if err := os.WriteFile(output, []byte(rendered), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", output, err)
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Report written to %s\n", output)
				return nil
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), rendered)
			return err
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "markdown", "output format: json, markdown")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write the report to this file")

	return cmd
}
