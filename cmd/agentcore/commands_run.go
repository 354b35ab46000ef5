package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/config"
	"github.com/agentcore/runtime/internal/hooks"
	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/internal/tools/builtin"
	"github.com/agentcore/runtime/pkg/models"
)

// buildRunCmd creates the "run" command: a single Agent Turn Engine
// pass against one prompt, with the built-in filesystem and shell
// tools registered.
func buildRunCmd() *cobra.Command {
	var (
		configPath string
		agentID    string
		provider   string
		model      string
		systemMsg  string
		prompt     string
		fullAccess bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a single agent turn against a prompt",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTurn(cmd, configPath, agentID, provider, model, systemMsg, prompt, fullAccess)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath(), "Path to YAML configuration file")
	cmd.Flags().StringVar(&agentID, "agent", "agent-1", "Agent id to run as")
	cmd.Flags().StringVar(&provider, "provider", "", "Provider id (defaults to llm.default_provider)")
	cmd.Flags().StringVar(&model, "model", "", "Model id (defaults to the provider's first catalog entry)")
	cmd.Flags().StringVar(&systemMsg, "system", "You are a careful, precise engineering assistant.", "System prompt")
	cmd.Flags().StringVar(&prompt, "prompt", "", "User prompt to run")
	cmd.Flags().BoolVar(&fullAccess, "full-access", false, "Grant privileged tools (shell_exec) without per-call approval")
	_ = cmd.MarkFlagRequired("prompt")

	return cmd
}

func runTurn(cmd *cobra.Command, configPath, agentID, provider, modelID, systemMsg, prompt string, fullAccess bool) error {
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

	providerMap := buildProviders(cfg)
	if provider == "" {
		provider = cfg.LLM.DefaultProvider
	}
	llm, ok := providerMap[provider]
	if !ok {
		return fmt.Errorf("no provider %q is configured with an API key", provider)
	}
	if modelID == "" {
		if catalog := llm.Models(); len(catalog) > 0 {
			modelID = catalog[0].ID
		}
	}

	reg := tools.NewRegistry(nil)
	reg.Register(builtin.ReadFileTool())
	reg.Register(builtin.WriteFileTool())
	reg.Register(builtin.ShellTool())

	bus := hooks.NewRuntimeBus(nil)
	hooks.RegisterSecretsRedaction(bus, apiKeysFromConfig(cfg))
	hooks.RegisterObservability(bus, &metricsObserver{metrics: obs.Metrics})

	accessMode := models.AccessAskAlways
	if fullAccess {
		accessMode = models.AccessFullAccess
	}

	agentCfg := &models.AgentConfig{
		ID:           agentID,
		Name:         agentID,
		SystemPrompt: systemMsg,
		Provider:     provider,
		Model:        modelID,
		Tools:        []string{"fs_read_file", "fs_write_file", "shell_exec"},
		AccessMode:   accessMode,
	}

	execCtx := &models.ExecutionContext{
		RunID:               "cli-run",
		AgentID:             agentCfg.ID,
		AgentName:           agentCfg.Name,
		ProviderID:          provider,
		ToolAccessMode:      accessMode,
		ToolAccessGranted:   fullAccess,
		AgentWorkspaceRoot:  cfg.Workspace,
		RuntimeHookRegistry: bus,
		SecretValues:        apiKeysFromConfig(cfg),
	}

	runCtx, cancel := context.WithTimeout(cmd.Context(), cfg.Tools.Execution.Timeout)
	defer cancel()

	engine := agent.NewTurnEngine(bus, nil)
	msg, err := engine.Run(runCtx, &agent.TurnInput{
		History:          []models.Message{{Role: models.RoleUser, Content: prompt}},
		AvailableTools:   reg.GetByIDs(agentCfg.Tools),
		ExecutionContext: execCtx,
		Agent:            agentCfg,
		Provider:         llm,
		RunID:            execCtx.RunID,
		UserPrompt:       prompt,
	})
	if err != nil {
		return fmt.Errorf("running turn: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), msg.Content)
	return nil
}

func apiKeysFromConfig(cfg *config.Config) map[string]string {
	out := make(map[string]string, len(cfg.LLM.Providers))
	for name, p := range cfg.LLM.Providers {
		if p.APIKey != "" {
			out[name] = p.APIKey
		}
	}
	return out
}
