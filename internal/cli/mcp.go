package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/ragdesk/ragdesk/internal/analytics"
	"github.com/ragdesk/ragdesk/internal/conversation"
	"github.com/ragdesk/ragdesk/internal/db"
	"github.com/ragdesk/ragdesk/internal/index"
	"github.com/ragdesk/ragdesk/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve knowledge base tools over MCP (stdio)",
		Long: `Run a Model Context Protocol server on stdin/stdout exposing:

  search_knowledge_base  nearest knowledge base passages for a question
  classify_query         intent of a customer message
  extract_entities       account numbers, dates, emails, product names
  get_analytics          usage report

Register it with an MCP client as: ragdesk mcp --dir /path/to/project`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(false)
			if err != nil {
				return err
			}
			embedder, err := p.embedder()
			if err != nil {
				return err
			}

			// A missing index is reported per call so the client can still connect.
			handle := index.NewHandle(nil)
			idx, err := p.loadIndex(cmd.Context(), embedder)
			switch {
			case err == nil:
				handle.Swap(idx)
			case errors.Is(err, index.ErrEmbedderMismatch):
				return err
			}

			database, err := p.openDB()
			if err != nil {
				return err
			}
			defer database.Close()

			srv := mcp.NewServer(handle,
				analytics.NewRecorder(db.NewKV(database)),
				conversation.NewStore(database),
				version)
			return srv.ServeStdio()
		},
	}
}
