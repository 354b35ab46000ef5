package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/subagent"
	"github.com/agentcore/runtime/pkg/models"
)

func buildSubAgentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "subagent",
		Short: "Inspect and cancel recursive sub-agent runs",
	}
	cmd.AddCommand(buildSubAgentListCmd(), buildSubAgentCancelCmd())
	return cmd
}

// openCoordinator rebuilds a Coordinator over the configured store
// without an executor: the CLI only inspects and cancels runs, it
// never drives new ones, so a queued-run pump is never reached.
func openCoordinator(cfg *config.Config) (*subagent.Coordinator, error) {
	var store subagent.Store
	if cfg.SubAgent.StoreMode == "memory" {
		store = subagent.NewMemoryStore()
	} else {
		store = subagent.NewFileStore(cfg.Workspace + "/subagent-runs.json")
	}
	noExec := func(ctx context.Context, run *models.SubAgentRunState) (string, error) {
		return "", errors.New("subagent: cannot execute a new run from the inspection CLI")
	}
	return subagent.NewCoordinator(cfg.SubAgent, store, noExec, nil)
}

func buildSubAgentListCmd() *cobra.Command {
	var (
		configPath string
		parentID   string
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List sub-agent runs for a parent run id",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			coord, err := openCoordinator(cfg)
			if err != nil {
				return fmt.Errorf("opening coordinator: %w", err)
			}
			runs, err := coord.ListForParent(parentID)
			if err != nil {
				return err
			}
			for _, r := range runs {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\tdepth=%d\n", r.RunID, r.AgentID, r.Status, r.Depth)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().StringVar(&parentID, "parent", "", "Parent run id whose children to list")
	return cmd
}

func buildSubAgentCancelCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "cancel <run-id>",
		Short: "Cancel a queued or running sub-agent run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			coord, err := openCoordinator(cfg)
			if err != nil {
				return fmt.Errorf("opening coordinator: %w", err)
			}
			run, err := coord.Cancel(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", run.RunID, run.Status)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	return cmd
}
