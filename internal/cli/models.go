package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragdesk/ragdesk/internal/adapter"
)

func newModelsCmd() *cobra.Command {
	var all bool

	cmd := &cobra.Command{
		Use:   "models [provider]",
		Short: "List the models a provider makes available",
		Long: `Query a provider for its model list using the configured credentials.
Defaults to the configured completion provider. Supported: openai, gemini,
ollama. Embedding-only models are hidden unless --all is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := loadProject(false)
			if err != nil {
				return err
			}
			provider := p.cfg.Model
			if len(args) == 1 {
				provider = args[0]
			}

			llm, err := adapter.New(provider, p.cfg.ProviderOptions(provider))
			if err != nil {
				return err
			}
			lister, ok := llm.(adapter.ModelLister)
			if !ok {
				return fmt.Errorf("%s does not support listing models", provider)
			}

			models, err := lister.ListModels(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Available %s models:\n", provider)
			for _, m := range models {
				if !m.CanGenerate && !all {
					continue
				}
				if m.DisplayName != "" {
					fmt.Fprintf(out, "- %s (%s)\n", m.Name, m.DisplayName)
				} else {
					fmt.Fprintf(out, "- %s\n", m.Name)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&all, "all", "a", false, "include embedding-only models")

	return cmd
}
