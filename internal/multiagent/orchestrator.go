// Package multiagent implements the Squad Orchestrator: a director
// agent that issues a strict-JSON DirectorDecision each iteration,
// delegating to a roster of worker agents run through the Agent Turn
// Engine and verifying that a worker's tool-execution summary actually
// backs up what the instruction asked for.
package multiagent

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/pkg/models"
)

// Worker is one squad member: its identity, the provider that drives
// it, and the tools it has access to.
type Worker struct {
	Agent    *models.AgentConfig
	Provider agent.LLMProvider
	Tools    []tools.Tool
}

// SquadOrchestrator runs squads: resolving runtime roster/provider,
// driving the director's JSON decision loop, invoking workers via the
// Agent Turn Engine, and verifying their tool-execution effects.
type SquadOrchestrator struct {
	Turn      *agent.TurnEngine
	Workers   map[string]*Worker
	Providers map[string]agent.LLMProvider
	Logger    *slog.Logger
}

// ResolvedSquad is a SquadConfig after runtime resolution: its worker
// roster filtered against the registry, its director provider/model
// bound, and its artifact workspace computed.
type ResolvedSquad struct {
	Config           models.SquadConfig
	Workers          []*Worker
	DirectorProvider agent.LLMProvider
	DirectorModel    string
	WorkspaceDir     string
}

var slugNonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

func slug(name string) string {
	s := slugNonAlnum.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
	return strings.Trim(s, "-")
}

// ResolveRuntime normalizes the squad's member list, filters it against
// the registered worker roster, requires at least one worker, and
// resolves the director's provider and model.
func (o *SquadOrchestrator) ResolveRuntime(cfg models.SquadConfig, apiKeys map[string]string) (*ResolvedSquad, error) {
	var workers []*Worker
	for _, id := range cfg.NormalizedMembers() {
		if w, ok := o.Workers[id]; ok {
			workers = append(workers, w)
		}
	}
	if len(workers) == 0 {
		return nil, fmt.Errorf("multiagent: squad %q has no resolvable worker agents", cfg.Name)
	}

	provider, model, err := o.resolveDirector(cfg.Orchestrator, workers, apiKeys)
	if err != nil {
		return nil, err
	}

	return &ResolvedSquad{
		Config:           cfg,
		Workers:          workers,
		DirectorProvider: provider,
		DirectorModel:    model,
		WorkspaceDir:     filepath.Join("Squads", slug(cfg.Name)),
	}, nil
}

func (o *SquadOrchestrator) resolveDirector(role models.OrchestratorRole, workers []*Worker, apiKeys map[string]string) (agent.LLMProvider, string, error) {
	if role.Provider != "" {
		if p, ok := o.Providers[role.Provider]; ok {
			return p, role.Model, nil
		}
	}
	for _, w := range workers {
		if _, hasKey := apiKeys[w.Agent.Provider]; !hasKey {
			continue
		}
		if p, ok := o.Providers[w.Agent.Provider]; ok {
			model := role.Model
			if model == "" {
				model = w.Agent.Model
			}
			return p, model, nil
		}
	}
	for name, p := range o.Providers {
		if _, hasKey := apiKeys[name]; hasKey {
			return p, role.Model, nil
		}
	}
	return nil, "", fmt.Errorf("multiagent: no provider with a known API key is available to drive the director")
}

// StepFunc receives a snapshot of each completed squad iteration.
type StepFunc func(models.SquadStep)

// RunSquad drives the director's iteration loop to a terminal result.
func (o *SquadOrchestrator) RunSquad(ctx context.Context, resolved *ResolvedSquad, onStep StepFunc) (*models.SquadResult, error) {
	maxIterations := resolved.Config.MaxIterations
	if maxIterations <= 0 {
		maxIterations = models.DefaultMaxIterations
	}

	var steps []models.SquadStep

	for iteration := 1; iteration <= maxIterations; iteration++ {
		decision, err := o.fetchDecision(ctx, resolved, steps)
		if err != nil {
			return nil, err
		}

		switch decision.Status {
		case models.DirectorComplete:
			response := decision.ResponseToUser
			if response == "" {
				response = decision.Summary
			}
			return &models.SquadResult{Status: models.SquadCompleted, Response: response}, nil

		case models.DirectorNeedsUserInput:
			response := decision.UserQuestion
			if response == "" {
				response = decision.Summary
			}
			return &models.SquadResult{Status: models.SquadNeedsUserInput, Response: response}, nil

		case models.DirectorBlocked:
			response := decision.BlockerReason
			if response == "" {
				response = decision.Summary
			}
			return &models.SquadResult{Status: models.SquadBlocked, Response: response}, nil
		}

		worker, ok := o.Workers[decision.TargetAgentID]
		if !ok || strings.TrimSpace(decision.Instruction) == "" {
			step := models.SquadStep{Iteration: iteration, Decision: decision}
			steps = append(steps, step)
			if onStep != nil {
				onStep(step)
			}
			return &models.SquadResult{Status: models.SquadBlocked, Response: "Orchestrator selected an unknown or unresolvable worker agent."}, nil
		}

		reply, retries, err := o.invokeWorkerWithVerification(ctx, resolved, worker, decision)
		if err != nil {
			return &models.SquadResult{Status: models.SquadBlocked, Response: err.Error()}, nil
		}

		step := models.SquadStep{
			Iteration:     iteration,
			Decision:      decision,
			WorkerAgentID: worker.Agent.ID,
			WorkerReply:   reply,
			RetryCount:    retries,
		}
		steps = append(steps, step)
		if onStep != nil {
			onStep(step)
		}

		if resolved.Config.Interaction.UserTurnPolicy == models.UserTurnEveryRound && iteration != maxIterations {
			return &models.SquadResult{
				Status:   models.SquadNeedsUserInput,
				Response: fmt.Sprintf("%s completed a turn. What do you do next?", worker.Agent.Name),
			}, nil
		}
	}

	return &models.SquadResult{
		Status:   models.SquadMaxIterations,
		Response: fmt.Sprintf("The squad reached its iteration limit (%d) before completion.", maxIterations),
	}, nil
}

func (o *SquadOrchestrator) fetchDecision(ctx context.Context, resolved *ResolvedSquad, steps []models.SquadStep) (models.DirectorDecision, error) {
	prompt := buildDirectorPrompt(resolved, steps)
	req := &agent.ChatRequest{
		Messages:    []models.Message{{Role: models.RoleSystem, Content: prompt}},
		Temperature: 0.2,
		MaxTokens:   1200,
		ResponseFormat: &agent.ResponseFormat{
			Type: "json_schema",
			JSONSchema: &agent.JSONSchemaFormat{
				Name:   "director_decision",
				Schema: directorDecisionSchema,
				Strict: true,
			},
		},
	}
	resp, err := resolved.DirectorProvider.Chat(ctx, req)
	if err != nil {
		return models.DirectorDecision{}, fmt.Errorf("multiagent: director call failed: %w", err)
	}
	return extractDecision(resp.Content), nil
}

func (o *SquadOrchestrator) invokeWorkerWithVerification(ctx context.Context, resolved *ResolvedSquad, w *Worker, decision models.DirectorDecision) (*models.Message, int, error) {
	task := buildWorkerTask(resolved, w, decision)
	history := []models.Message{{Role: models.RoleUser, Content: task}}
	execCtx := &models.ExecutionContext{
		AgentID:            w.Agent.ID,
		AgentName:          w.Agent.Name,
		ProviderID:         w.Agent.Provider,
		SquadID:            resolved.Config.ID,
		SquadName:          resolved.Config.Name,
		AgentWorkspaceRoot: resolved.WorkspaceDir,
	}

	expectation := inferExecutionExpectations(decision.Instruction, w.Agent.Tools)

	reply, err := o.runWorker(ctx, w, history, execCtx, resolved.Config.ID)
	if err != nil {
		return nil, 0, err
	}

	if !expectation.RequiresToolExecution {
		return reply, 0, nil
	}

	if ok, reason := verifyToolExecution(expectation, reply.ToolExecution); ok {
		return reply, 0, nil
	} else {
		retryMessage := models.Message{
			Role: models.RoleUser,
			Content: fmt.Sprintf(
				"Validation failed: %s. Re-run the instruction and satisfy all required postconditions via actual tool calls before finalizing your response.",
				reason,
			),
		}
		history = append(history, *reply, retryMessage)

		retryReply, err := o.runWorker(ctx, w, history, execCtx, resolved.Config.ID)
		if err != nil {
			return nil, 1, err
		}

		if ok2, reason2 := verifyToolExecution(expectation, retryReply.ToolExecution); !ok2 {
			return nil, 1, fmt.Errorf("%s failed tool execution validation: %s", w.Agent.Name, reason2)
		}
		return retryReply, 1, nil
	}
}

func (o *SquadOrchestrator) runWorker(ctx context.Context, w *Worker, history []models.Message, execCtx *models.ExecutionContext, runID string) (*models.Message, error) {
	return o.Turn.Run(ctx, &agent.TurnInput{
		Agent:            w.Agent,
		Provider:         w.Provider,
		AvailableTools:   w.Tools,
		ExecutionContext: execCtx,
		History:          history,
		RunID:            runID,
	})
}

// verifyToolExecution checks a worker's ToolExecutionSummary against
// the inferred execution expectation.
func verifyToolExecution(expectation executionExpectation, summary *models.ToolExecutionSummary) (bool, string) {
	if summary == nil || !(summary.Attempted > 0 && summary.Succeeded > 0) {
		return false, "no successful tool calls were recorded"
	}
	if expectation.RequiresFileEffects && summary.VerifiedFileEffects == 0 {
		return false, "no verified file effects were recorded"
	}
	if expectation.RequiresShellEffects && summary.VerifiedShellEffects == 0 {
		return false, "no verified shell effects were recorded"
	}
	return true, ""
}

func buildDirectorPrompt(resolved *ResolvedSquad, steps []models.SquadStep) string {
	var b strings.Builder
	cfg := resolved.Config

	fmt.Fprintf(&b, "You are the director of a squad named %q. Goal: %s\n", cfg.Name, cfg.Goal)
	if cfg.Context != "" {
		fmt.Fprintf(&b, "Context: %s\n", cfg.Context)
	}

	b.WriteString("\nWorker roster:\n")
	for _, w := range resolved.Workers {
		fmt.Fprintf(&b, "- id=%s name=%s role=%s tools=%s\n", w.Agent.ID, w.Agent.Name, w.Agent.Role, strings.Join(w.Agent.Tools, ","))
	}

	switch cfg.Interaction.Mode {
	case models.InteractionLiveCampaign:
		b.WriteString("\nInteraction mode: live_campaign. Pace the conversation naturally and address workers as in-character participants (DM rules apply).\n")
	default:
		b.WriteString("\nInteraction mode: master_log. Keep instructions task-focused and concise.\n")
	}
	fmt.Fprintf(&b, "User turn policy: %s\n", cfg.Interaction.UserTurnPolicy)

	if len(steps) > 0 {
		b.WriteString("\nCompleted steps so far:\n")
		for _, s := range steps {
			fmt.Fprintf(&b, "%d. worker=%s instruction=%q status=%s\n", s.Iteration, s.WorkerAgentID, s.Decision.Instruction, s.Decision.Status)
		}
	}

	b.WriteString(`
Respond with a single JSON object matching this schema exactly, no markdown fences:
{"status": "continue"|"complete"|"needs_user_input"|"blocked", "summary": string, "targetAgentId"?: string, "instruction"?: string, "responseToUser"?: string, "userQuestion"?: string, "blockerReason"?: string}
`)
	return b.String()
}

func buildWorkerTask(resolved *ResolvedSquad, w *Worker, decision models.DirectorDecision) string {
	var b strings.Builder
	cfg := resolved.Config

	fmt.Fprintf(&b, "Squad goal: %s\n", cfg.Goal)
	if cfg.Context != "" {
		fmt.Fprintf(&b, "Squad context: %s\n", cfg.Context)
	}
	fmt.Fprintf(&b, "Your role: %s\n", w.Agent.Role)
	fmt.Fprintf(&b, "Your capabilities: %s\n", strings.Join(w.Agent.Tools, ", "))
	fmt.Fprintf(&b, "Workspace: all artifacts you produce belong under %s.\n", resolved.WorkspaceDir)
	if hasFileWriteTool(w.Agent.Tools) {
		b.WriteString("Write incrementally: persist partial progress to disk as you go rather than holding a large result in memory until the end.\n")
	}
	fmt.Fprintf(&b, "\nInstruction from the director: %s\n", decision.Instruction)
	return b.String()
}

func hasFileWriteTool(toolIDs []string) bool {
	for _, id := range toolIDs {
		if strings.HasPrefix(id, "fs_") || id == "write_file" {
			return true
		}
	}
	return false
}
