package subagent

import (
	"context"

	"github.com/agentcore/runtime/pkg/models"
)

// SubAgentRuntime is the per-run depth/identity view a worker's
// ExecutionContext is bound to: it gates the depth limit and blocks an
// agent from spawning itself.
type SubAgentRuntime struct {
	Coordinator *Coordinator
	AgentID     string
	AgentName   string
	RunID       string
	Depth       int
}

// Bind wires the runtime's spawn/await/list/cancel closures into
// execCtx so tools never import this package directly.
func (rt *SubAgentRuntime) Bind(execCtx *models.ExecutionContext) {
	execCtx.SpawnSubAgent = rt.spawn
	execCtx.AwaitSubAgentRun = rt.Coordinator.Await
	execCtx.ListSubAgentRuns = rt.list
	execCtx.CancelSubAgentRun = rt.Coordinator.Cancel
}

func (rt *SubAgentRuntime) spawn(ctx context.Context, agentID, task string) (*models.SubAgentRunState, error) {
	if rt.Depth >= rt.Coordinator.cfg.MaxDepth {
		return rt.Coordinator.syntheticFailure(rt.RunID, rt.AgentName, agentID, task, rt.Depth, "Sub-agent depth limit reached"), nil
	}
	if agentID == rt.AgentID {
		return rt.Coordinator.syntheticFailure(rt.RunID, rt.AgentName, agentID, task, rt.Depth, "Spawning the current agent as its own sub-agent is blocked by runtime policy."), nil
	}
	return rt.Coordinator.Enqueue(ctx, EnqueueRequest{
		ParentRunID:     rt.RunID,
		ParentAgentName: rt.AgentName,
		AgentID:         agentID,
		Depth:           rt.Depth + 1,
	})
}

func (rt *SubAgentRuntime) list(ctx context.Context) ([]*models.SubAgentRunState, error) {
	return rt.Coordinator.ListForParent(rt.RunID)
}
