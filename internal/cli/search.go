package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ragdesk/ragdesk/internal/index"
)

func newSearchCmd() *cobra.Command {
	var topK int

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show the knowledge base chunks nearest to a query",
		Long: `Run a nearest-neighbour search directly against the persisted index
without calling a language model. Useful for checking what context a
question would retrieve.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")

			p, err := loadProject(false)
			if err != nil {
				return err
			}
			embedder, err := p.embedder()
			if err != nil {
				return fmt.Errorf("init embedder: %w", err)
			}

			results, err := index.SearchFile(cmd.Context(), p.indexPath(), embedder, query, topK)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(results) == 0 {
				fmt.Fprintln(out, "No results found.")
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(out, "%d. %s [%s] score %.3f\n", i+1, r.Chunk.SourceID, r.Chunk.Category, r.Score)
				fmt.Fprintf(out, "   %s\n\n", strings.ReplaceAll(strings.TrimSpace(r.Chunk.Text), "\n", "\n   "))
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&topK, "top-k", "k", 3, "number of chunks to show")

	return cmd
}
