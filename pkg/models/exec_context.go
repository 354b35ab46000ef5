package models

import "context"

// RuntimeHookRegistry is the minimal surface the Runtime Hook Bus exposes
// into an ExecutionContext. Defined here (rather than imported from
// internal/hooks) to keep pkg/models free of a dependency on the hook
// bus implementation; internal/hooks.Registry satisfies it.
type RuntimeHookRegistry interface {
	Trigger(ctx context.Context, topic string, payload any) error
}

// SpawnSubAgentFunc enqueues a recursive child agent run. Bound into an
// ExecutionContext by the Sub-Agent Coordinator so tools never import
// the coordinator package directly.
type SpawnSubAgentFunc func(ctx context.Context, agentID, task string) (*SubAgentRunState, error)

// AwaitSubAgentRunFunc blocks until a run reaches a terminal status or
// timeoutMs elapses, returning the (possibly non-terminal) state.
type AwaitSubAgentRunFunc func(ctx context.Context, runID string, timeoutMs int) (*SubAgentRunState, error)

// ListSubAgentRunsFunc lists runs belonging to the current agent/run.
type ListSubAgentRunsFunc func(ctx context.Context) ([]*SubAgentRunState, error)

// CancelSubAgentRunFunc cooperatively cancels a non-terminal run.
type CancelSubAgentRunFunc func(ctx context.Context, runID string) (*SubAgentRunState, error)

// ExecutionContext is the ambient environment passed into every
// Tool.Execute call.
type ExecutionContext struct {
	RunID              string
	AgentID            string
	AgentName          string
	ProviderID         string
	SquadID            string
	SquadName          string
	ToolAccessMode     AccessMode
	ToolAccessGranted  bool
	AgentWorkspaceRoot string

	SpawnSubAgent     SpawnSubAgentFunc
	AwaitSubAgentRun  AwaitSubAgentRunFunc
	ListSubAgentRuns  ListSubAgentRunsFunc
	CancelSubAgentRun CancelSubAgentRunFunc

	RuntimeHookRegistry RuntimeHookRegistry
	SecretValues        map[string]string
}
