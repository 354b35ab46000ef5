package subagent

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/pkg/models"
)

// AgentResolver looks up the identity, provider, and available tools
// for a registered agent id. Returns ok=false if agentID is unknown.
type AgentResolver func(agentID string) (cfg *models.AgentConfig, provider agent.LLMProvider, available []tools.Tool, ok bool)

// NewTurnEngineExecutor adapts the Agent Turn Engine into an Executor:
// each child run gets a fresh AgentConfig clone, an isolated on-disk
// workspace, and a nested SubAgentRuntime one depth deeper than its
// parent, then is driven through turn with a focused prompt that does
// not assume access to the parent's chat transcript.
func NewTurnEngineExecutor(turn *agent.TurnEngine, resolve AgentResolver, coordinator *Coordinator, dataRoot string) Executor {
	return func(ctx context.Context, run *models.SubAgentRunState) (string, error) {
		cfg, provider, available, ok := resolve(run.AgentID)
		if !ok {
			return "", fmt.Errorf("subagent: unknown agent %q", run.AgentID)
		}
		child := cfg.Clone()

		workspace := filepath.Join(dataRoot, "evolution", "agents", run.RunID, "workspace")

		rt := &SubAgentRuntime{
			Coordinator: coordinator,
			AgentID:     child.ID,
			AgentName:   child.Name,
			RunID:       run.RunID,
			Depth:       run.Depth,
		}
		execCtx := &models.ExecutionContext{
			RunID:              run.RunID,
			AgentID:            child.ID,
			AgentName:          child.Name,
			ProviderID:         child.Provider,
			AgentWorkspaceRoot: workspace,
		}
		rt.Bind(execCtx)

		prompt := fmt.Sprintf(
			"You were spawned by parent agent '%s'. Use only the focused task context below; do not assume access to the full parent chat transcript.\n\n%s",
			run.ParentAgentName, run.Task,
		)

		msg, err := turn.Run(ctx, &agent.TurnInput{
			Agent:            child,
			Provider:         provider,
			AvailableTools:   available,
			ExecutionContext: execCtx,
			History:          []models.Message{{Role: models.RoleUser, Content: prompt}},
			RunID:            run.RunID,
		})
		if err != nil {
			return "", err
		}
		return msg.Content, nil
	}
}
