package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/hooks"
	"github.com/agentcore/runtime/internal/multiagent"
	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/internal/tools/builtin"
	"github.com/agentcore/runtime/pkg/models"
)

// squadSpec is the on-disk shape of a squad definition: the director
// plus the worker roster it is allowed to delegate to.
type squadSpec struct {
	Squad   models.SquadConfig `yaml:"squad"`
	Workers []workerSpec       `yaml:"workers"`
}

type workerSpec struct {
	ID           string   `yaml:"id"`
	Name         string   `yaml:"name"`
	Role         string   `yaml:"role"`
	SystemPrompt string   `yaml:"system_prompt"`
	Provider     string   `yaml:"provider"`
	Model        string   `yaml:"model"`
	Tools        []string `yaml:"tools"`
}

func buildSquadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "squad",
		Short: "Run and inspect multi-agent squads",
	}
	cmd.AddCommand(buildSquadRunCmd())
	return cmd
}

func buildSquadRunCmd() *cobra.Command {
	var (
		configPath string
		squadPath  string
		goal       string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a squad to completion",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSquad(cmd, configPath, squadPath, goal)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().StringVar(&squadPath, "squad", "", "Path to a squad definition YAML file")
	cmd.Flags().StringVar(&goal, "goal", "", "Override the squad's configured goal")
	_ = cmd.MarkFlagRequired("squad")

	return cmd
}

func runSquad(cmd *cobra.Command, configPath, squadPath, goalOverride string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	obs, err := setupObservability(cfg)
	if err != nil {
		return fmt.Errorf("setting up observability: %w", err)
	}
	defer obs.Shutdown(context.Background())

	stopMetrics := serveMetrics(cfg)
	defer stopMetrics(context.Background())

	raw, err := os.ReadFile(squadPath)
	if err != nil {
		return fmt.Errorf("reading squad definition: %w", err)
	}
	var spec squadSpec
	if err := yaml.Unmarshal(raw, &spec); err != nil {
		return fmt.Errorf("parsing squad definition: %w", err)
	}
	if goalOverride != "" {
		spec.Squad.Goal = goalOverride
	}

	providerMap := buildProviders(cfg)

	bus := hooks.NewRuntimeBus(nil)
	hooks.RegisterSecretsRedaction(bus, apiKeysFromConfig(cfg))
	hooks.RegisterObservability(bus, &metricsObserver{metrics: obs.Metrics})

	reg := tools.NewRegistry(nil)
	reg.Register(builtin.ReadFileTool())
	reg.Register(builtin.WriteFileTool())
	reg.Register(builtin.ShellTool())

	workers := make(map[string]*multiagent.Worker, len(spec.Workers))
	for _, w := range spec.Workers {
		llm, ok := providerMap[w.Provider]
		if !ok {
			return fmt.Errorf("worker %q references unconfigured provider %q", w.ID, w.Provider)
		}
		workers[w.ID] = &multiagent.Worker{
			Agent: &models.AgentConfig{
				ID:           w.ID,
				Name:         w.Name,
				Role:         w.Role,
				SystemPrompt: w.SystemPrompt,
				Provider:     w.Provider,
				Model:        w.Model,
				Tools:        w.Tools,
			},
			Provider: llm,
			Tools:    reg.GetByIDs(w.Tools),
		}
	}

	orchestrator := &multiagent.SquadOrchestrator{
		Turn:      agent.NewTurnEngine(bus, nil),
		Workers:   workers,
		Providers: providerMap,
	}

	resolved, err := orchestrator.ResolveRuntime(spec.Squad, apiKeysFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("resolving squad: %w", err)
	}

	result, err := orchestrator.RunSquad(cmd.Context(), resolved, func(step models.SquadStep) {
		fmt.Fprintf(cmd.ErrOrStderr(), "[iteration %d] %s\n", step.Iteration, step.Decision.Status)
	})
	if err != nil {
		return fmt.Errorf("running squad: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "status: %s\n%s\n", result.Status, result.Response)
	return nil
}
