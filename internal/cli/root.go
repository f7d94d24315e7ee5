// Package cli defines the Cobra command tree for the ragdesk CLI.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	// version, commit, date are set via -ldflags at build time.
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

var (
	projectDir string
	verbose    bool
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ragdesk",
	Short: "Retrieval-augmented customer support assistant",
	Long: `ragdesk answers customer questions from a folder of plain-text knowledge
base articles. It embeds the articles into a local vector index, retrieves
the passages closest to each question and asks a language model to answer
from them, keeping per-session chat history and usage analytics.

Run 'ragdesk ingest' in a directory containing knowledge_base/*.txt, then
'ragdesk serve' to start the web chat.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute(v, c, d string) {
	version, commit, date = v, c, d
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&projectDir, "dir", "C", "", "project directory (default: nearest directory containing .ragdesk/, else the working directory)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(
		newIngestCmd(),
		newServeCmd(),
		newAskCmd(),
		newChatCmd(),
		newSearchCmd(),
		newAnalyticsCmd(),
		newStatusCmd(),
		newSessionsCmd(),
		newModelsCmd(),
		newMCPCmd(),
		newVersionCmd(),
	)
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "ragdesk %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}
