package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentcore/runtime/internal/models"
)

func buildModelsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Inspect the built-in model capability catalog",
	}
	cmd.AddCommand(buildModelsListCmd())
	return cmd
}

func buildModelsListCmd() *cobra.Command {
	var provider string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List models in the catalog, optionally filtered by provider",
		RunE: func(cmd *cobra.Command, args []string) error {
			var filter *models.Filter
			if provider != "" {
				filter = &models.Filter{Providers: []models.Provider{models.Provider(provider)}}
			}
			for _, m := range models.List(filter) {
				fmt.Fprintf(cmd.OutOrStdout(), "%-28s %-10s %-8s context=%d\n", m.ID, m.Provider, m.Tier, m.ContextWindow)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Filter by provider id (e.g. anthropic, openai)")
	return cmd
}
