package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/ragdesk/ragdesk/internal/config"
)

func newIngestCmd() *cobra.Command {
	var (
		chunkSize    int
		chunkOverlap int
		quiet        bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Build the vector index from the knowledge base",
		Long: `Read every .txt file in the knowledge base directory, split it into
overlapping chunks, embed each chunk and write the index to .ragdesk/index.db.

The file name (without .txt) becomes each chunk's category. A .gitignore
inside the knowledge base directory excludes files.

The first ingest also writes .ragdesk/config.toml with the settings used,
so later runs and 'ragdesk serve' keep the same embedder and chunking.
API keys are never written there.

Examples:
  ragdesk ingest
  ragdesk ingest --chunk-size 800 --chunk-overlap 100`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(false)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("chunk-size") {
				p.cfg.Ingest.ChunkSize = chunkSize
			}
			if cmd.Flags().Changed("chunk-overlap") {
				p.cfg.Ingest.ChunkOverlap = chunkOverlap
			}
			if err := p.cfg.ValidateEmbedding(); err != nil {
				return err
			}

			embedder, err := p.embedder()
			if err != nil {
				return fmt.Errorf("init embedder: %w", err)
			}

			start := time.Now()
			var bar *progressbar.ProgressBar
			progress := func(done, total int) {
				if quiet {
					return
				}
				if bar == nil {
					bar = progressbar.NewOptions(total,
						progressbar.OptionSetDescription("  Embedding chunks"),
						progressbar.OptionSetWriter(os.Stderr),
						progressbar.OptionShowCount(),
						progressbar.OptionClearOnFinish(),
					)
				}
				_ = bar.Set(done)
			}

			idx, stats, err := p.rebuildIndex(cmd.Context(), embedder, progress)
			if bar != nil {
				_ = bar.Finish()
			}
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%d documents, %d chunks embedded (%s, dim %d) in %s\n",
				stats.Documents, idx.Len(), p.cfg.Embedder, idx.Dimension(), time.Since(start).Round(time.Millisecond))
			fmt.Fprintf(cmd.OutOrStdout(), "Index written to %s\n", p.indexPath())

			cfgPath := config.ProjectConfigPath(p.root)
			if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
				if err := config.SaveProject(p.root, p.cfg); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Project config written to %s\n", cfgPath)
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&chunkSize, "chunk-size", 500, "maximum characters per chunk")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 50, "characters shared between adjacent chunks")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "no progress bar")

	return cmd
}
