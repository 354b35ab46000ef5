package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	agentctx "github.com/agentcore/runtime/internal/agent/context"
	"github.com/agentcore/runtime/internal/hooks"
	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/internal/tools/schema"
	"github.com/agentcore/runtime/pkg/models"
)

// Hard constants from the turn loop contract.
const (
	MaxToolTurns             = 24
	MaxIdenticalToolCalls    = 2
	ReservedResponseTokens   = 5120
	ReservedToolingTokens    = 1200
	ToolModePromptTokenCap   = 5000
	ToolModeMaxResponseToken = 1536
	recoveryResultMaxChars   = 6000
)

// MCPAllToolID grants access to every registered tool whose id begins
// with "mcp:".
const MCPAllToolID = tools.CanonicalMCPAll

// privilegedToolIDs is the built-in floor of PRIVILEGED_TOOL_IDS; a tool
// marked Privileged() is privileged regardless of id.
var privilegedToolIDs = map[string]bool{
	tools.CanonicalShellExecute: true,
}

// TurnInput bundles everything one Agent Turn Engine run needs.
type TurnInput struct {
	History          []models.Message
	APIKeys          map[string]string
	AvailableTools   []tools.Tool
	ExecutionContext *models.ExecutionContext
	Agent            *models.AgentConfig
	Provider         LLMProvider
	ContextWindow    int
	RunID            string
	UserPrompt       string
}

// TurnEngine runs the per-agent tool-use loop described by the Agent
// Turn Engine: prologue, bounded turn loop, budget-exhaustion recovery,
// and finalization, all driven through a single LLMProvider.
type TurnEngine struct {
	Bus    *hooks.RuntimeBus
	Logger *slog.Logger
}

// NewTurnEngine builds a TurnEngine. A nil bus disables hook emission; a
// nil logger falls back to slog.Default().
func NewTurnEngine(bus *hooks.RuntimeBus, logger *slog.Logger) *TurnEngine {
	if logger == nil {
		logger = slog.Default()
	}
	return &TurnEngine{Bus: bus, Logger: logger}
}

// toolCallRecord tracks one dispatched tool call for duplicate
// suppression and "last successful result" recovery.
type toolCallRecord struct {
	signature string
	output    string
	ok        bool
}

// Run executes one complete turn and returns the final assistant message.
func (e *TurnEngine) Run(ctx context.Context, in *TurnInput) (*models.Message, error) {
	start := time.Now()

	available := e.filterAvailableTools(in)
	manifest := tools.BuildManifest(available, e.Logger)

	if len(in.Agent.Tools) > 0 && !in.Provider.SupportsNativeToolCalling() {
		msg := &models.Message{
			Role:      models.RoleAssistant,
			Content:   fmt.Sprintf("Agent %q declares tools but provider %q does not support native tool calling.", in.Agent.Name, in.Provider.Name()),
			Timestamp: time.Now(),
			ToolExecution: &models.ToolExecutionSummary{},
		}
		e.emitRunEnd(ctx, in.RunID, "error", time.Since(start), msg.Content)
		return msg, nil
	}

	registry := toolRegistryFromList(available)

	systemPrompt := in.Agent.SystemPrompt
	historyBudget := e.historyBudget(in, false)
	if warn := contextWindowWarning(in.ContextWindow, historyBudget); warn != "" {
		systemPrompt = systemPrompt + "\n\n" + warn
	}

	appendices := e.emitPromptBefore(ctx, in, &systemPrompt)
	if len(appendices) > 0 {
		systemPrompt = systemPrompt + "\n\n" + strings.Join(appendices, "\n\n")
	}
	systemPrompt = e.emitPromptAfter(ctx, in, systemPrompt)

	systemMessage := models.Message{Role: models.RoleSystem, Content: systemPrompt, Timestamp: time.Now()}

	conversation := append([]models.Message(nil), in.History...)

	toolMode := len(in.Agent.Tools) > 0
	summary := &models.ToolExecutionSummary{}
	seenSignatures := make(map[string]int)
	insertedAt := make(map[string]time.Time)
	var lastSuccessful *toolCallRecord
	var final *models.Message

	for turnIdx := 0; turnIdx <= MaxToolTurns; turnIdx++ {
		budget := e.historyBudget(in, toolMode)
		managed := agentctx.BuildManagedHistory(conversation, budget)

		repaired := agentctx.RepairOrphanToolResults(managed)
		summary.Failed += repaired.InjectedCount
		managed = repaired.Messages

		pruned, prunedCount := agentctx.ApplyCacheAwarePruning(managed, insertedAt, time.Now(), in.Provider.Name(), budget)
		if prunedCount > 0 {
			e.Logger.Debug("pruned stale tool results", "run_id", in.RunID, "turn", turnIdx, "count", prunedCount)
		}
		managed = pruned

		messages := append([]models.Message{systemMessage}, managed...)

		req := &ChatRequest{
			Messages:        messages,
			Temperature:     temperatureFor(toolMode),
			MaxTokens:       maxTokensFor(toolMode),
			ReasoningEffort: in.Agent.ReasoningEffort,
			Tools:           manifest.ProviderTools,
		}
		if toolMode {
			req.ToolChoice = ToolChoiceAuto
		}

		resp, err := in.Provider.Chat(ctx, req)
		if err != nil {
			if recovered := RecoverToolCalls(resp); len(recovered) > 0 {
				resp = &ChatResponse{Content: resp.Content, ToolCalls: recovered}
			} else if retried, retryErr := in.Provider.Chat(ctx, &ChatRequest{
				Messages:        messages,
				Temperature:     temperatureFor(toolMode),
				MaxTokens:       maxTokensFor(toolMode),
				ReasoningEffort: in.Agent.ReasoningEffort,
				ToolChoice:      ToolChoiceNone,
			}); retryErr == nil {
				resp = retried
			} else {
				return e.terminalError(ctx, in, summary, start, err)
			}
		}

		if len(resp.ToolCalls) == 0 {
			final = e.finalize(ctx, in, resp.Content, summary, start, "completed")
			return final, nil
		}

		assistantMsg := models.Message{
			Role:      models.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
			Timestamp: time.Now(),
		}
		conversation = append(conversation, assistantMsg)

		for _, call := range resp.ToolCalls {
			toolMsg, record := e.executeCall(ctx, in, &call, available, registry, seenSignatures, summary)
			conversation = append(conversation, toolMsg)
			insertedAt[call.ID] = time.Now()
			if record != nil && record.ok {
				lastSuccessful = record
			}
		}
	}

	return e.recoverFromBudgetExhaustion(ctx, in, conversation, manifest, systemMessage, summary, lastSuccessful, start)
}

// filterAvailableTools applies the agent's declared tool list plus the
// MCP wildcard against the full tool set the caller passed in.
func (e *TurnEngine) filterAvailableTools(in *TurnInput) []tools.Tool {
	declared := tools.CanonicalizeToolIDs(in.Agent.Tools)
	wantAll := false
	wanted := make(map[string]bool, len(declared))
	for _, id := range declared {
		if id == MCPAllToolID {
			wantAll = true
			continue
		}
		wanted[id] = true
	}
	var out []tools.Tool
	for _, t := range in.AvailableTools {
		if wanted[t.ID()] {
			out = append(out, t)
			continue
		}
		if wantAll && strings.HasPrefix(t.ID(), "mcp:") {
			out = append(out, t)
		}
	}
	return out
}

func toolRegistryFromList(list []tools.Tool) *tools.Registry {
	reg := tools.NewRegistry(nil)
	for _, t := range list {
		reg.Register(t)
	}
	return reg
}

func temperatureFor(toolMode bool) float64 {
	if toolMode {
		return 0.2
	}
	return 0.7
}

func maxTokensFor(toolMode bool) int {
	if toolMode {
		return ToolModeMaxResponseToken
	}
	return 4096
}

// historyBudget reserves response/tooling headroom out of the model's
// context window, additionally capping at TOOL_MODE_PROMPT_TOKEN_CAP
// while the loop is actively dispatching tool calls.
func (e *TurnEngine) historyBudget(in *TurnInput, toolMode bool) int {
	window := in.ContextWindow
	if window <= 0 {
		window = 128000
	}
	budget := window - ReservedResponseTokens - ReservedToolingTokens
	if toolMode && budget > ToolModePromptTokenCap {
		budget = ToolModePromptTokenCap
	}
	if budget < 0 {
		budget = 0
	}
	return budget
}

func contextWindowWarning(window, budget int) string {
	if window > 0 && budget <= 0 {
		return "Warning: the conversation history exceeds the model's context window; older turns have been summarized."
	}
	return ""
}

// emitPromptBefore fires the prompt_before hook, returning any
// appendices subscribers attached. SystemPrompt is passed by pointer so
// subscribers (e.g. secrets redaction) can rewrite it in place.
func (e *TurnEngine) emitPromptBefore(ctx context.Context, in *TurnInput, systemPrompt *string) []string {
	if e.Bus == nil {
		return nil
	}
	appendices := []string{}
	payload := &hooks.PromptBeforePayload{
		RunID:           in.RunID,
		AgentID:         in.Agent.ID,
		SystemPrompt:    systemPrompt,
		UserPrompt:      in.UserPrompt,
		ContextMessages: in.History,
		Appendices:      &appendices,
	}
	if err := e.Bus.Trigger(ctx, hooks.TopicPromptBefore, payload); err != nil {
		e.Logger.Warn("prompt_before hook failed", "error", err)
	}
	return appendices
}

func (e *TurnEngine) emitPromptAfter(ctx context.Context, in *TurnInput, prompt string) string {
	if e.Bus == nil {
		return prompt
	}
	final := prompt
	payload := &hooks.PromptAfterPayload{RunID: in.RunID, AgentID: in.Agent.ID, Prompt: &final}
	if err := e.Bus.Trigger(ctx, hooks.TopicPromptAfter, payload); err != nil {
		e.Logger.Warn("prompt_after hook failed", "error", err)
	}
	return final
}

func (e *TurnEngine) emitRunEnd(ctx context.Context, runID, status string, durationMs time.Duration, output string) {
	if e.Bus == nil {
		return
	}
	payload := &hooks.RunEndPayload{RunID: runID, Status: status, DurationMs: durationMs.Milliseconds(), Output: output}
	if err := e.Bus.Trigger(ctx, hooks.TopicRunEnd, payload); err != nil {
		e.Logger.Warn("run_end hook failed", "error", err)
	}
}

func (e *TurnEngine) emitResponseStream(ctx context.Context, runID, chunk string) {
	if e.Bus == nil {
		return
	}
	payload := &hooks.ResponseStreamPayload{RunID: runID, Chunk: chunk, ChunkIndex: 0}
	if err := e.Bus.Trigger(ctx, hooks.TopicResponseStream, payload); err != nil {
		e.Logger.Warn("response_stream hook failed", "error", err)
	}
}

func (e *TurnEngine) emitToolBefore(ctx context.Context, runID, toolID, toolName string, args map[string]any) {
	if e.Bus == nil {
		return
	}
	payload := &hooks.ToolBeforePayload{RunID: runID, ToolID: toolID, ToolName: toolName, Args: args}
	if err := e.Bus.Trigger(ctx, hooks.TopicToolBefore, payload); err != nil {
		e.Logger.Warn("tool_before hook failed", "error", err)
	}
}

func (e *TurnEngine) emitToolAfter(ctx context.Context, runID, toolID string, result *models.ToolResult, durationMs int64) {
	if e.Bus == nil {
		return
	}
	payload := &hooks.ToolAfterPayload{RunID: runID, ToolID: toolID, Result: result, DurationMs: durationMs}
	if err := e.Bus.Trigger(ctx, hooks.TopicToolAfter, payload); err != nil {
		e.Logger.Warn("tool_after hook failed", "error", err)
	}
}

// executeCall dispatches a single tool call through the full pipeline:
// availability, parse, validate/coerce, secret substitution, duplicate
// suppression, privilege gate, hooked execution. Returns the tool-role
// message to append to the conversation and, on success, the record of
// what it produced.
func (e *TurnEngine) executeCall(ctx context.Context, in *TurnInput, call *models.ToolCall, available []tools.Tool, registry *tools.Registry, seenSignatures map[string]int, summary *models.ToolExecutionSummary) (models.Message, *toolCallRecord) {
	errMsg := func(text string) models.Message {
		return models.Message{Role: models.RoleTool, ToolCallID: call.ID, Name: call.Name, Content: text, Timestamp: time.Now()}
	}

	canonicalID, found := manifestResolve(call.Name, available, registry)
	if !found {
		summary.Malformed++
		summary.Failed++
		return errMsg(fmt.Sprintf("Error: tool %q is not available.", call.Name)), nil
	}

	tool, _ := registry.GetByID(canonicalID)

	args, err := tools.ParseArguments(call.ArgumentsText)
	if err != nil {
		summary.Malformed++
		summary.Failed++
		return errMsg(fmt.Sprintf("Error: could not parse arguments for %q: %s", call.Name, err.Error())), nil
	}

	result := schema.Validate(tool.InputSchema(), args)
	if !result.OK {
		summary.Malformed++
		summary.Failed++
		return errMsg(fmt.Sprintf("Error: arguments for %q failed validation: %s", call.Name, strings.Join(result.Errors, "; "))), nil
	}
	args = substituteSecrets(result.NormalizedArgs, in.ExecutionContext)

	sig := tools.Signature(canonicalID, args)
	seenSignatures[sig]++
	if seenSignatures[sig] > MaxIdenticalToolCalls {
		summary.Failed++
		return errMsg(fmt.Sprintf("Error: tool call %q with identical arguments has already run %d times; refusing to repeat it.", call.Name, seenSignatures[sig]-1)), nil
	}

	if (tool.Privileged() || privilegedToolIDs[canonicalID]) && in.ExecutionContext.ToolAccessMode == models.AccessAskAlways && !in.ExecutionContext.ToolAccessGranted {
		summary.Failed++
		return errMsg("Permission required to run tool " + call.Name + "; access not granted."), nil
	}

	e.emitToolBefore(ctx, in.RunID, canonicalID, call.Name, args)
	callStart := time.Now()
	toolResult, execErr := tool.Execute(ctx, args, in.ExecutionContext)
	duration := time.Since(callStart)
	summary.Attempted++

	if execErr != nil {
		toolResult = &models.ToolResult{OK: false, Error: execErr.Error()}
	}
	e.emitToolAfter(ctx, in.RunID, canonicalID, toolResult, duration.Milliseconds())

	if toolResult == nil {
		toolResult = &models.ToolResult{OK: false, Error: "tool returned no result"}
	}

	if toolResult.OK {
		summary.Succeeded++
		if toolResult.AllChecksPassed() {
			applyVerifiedEffects(toolResult.Artifacts, summary)
		}
	} else {
		summary.Failed++
	}

	content := toolResult.Output
	if !toolResult.OK && toolResult.Error != "" {
		content = "Error: " + toolResult.Error
	}

	record := &toolCallRecord{signature: sig, output: content, ok: toolResult.OK}
	return models.Message{Role: models.RoleTool, ToolCallID: call.ID, Name: call.Name, Content: content, Timestamp: time.Now()}, record
}

// manifestResolve resolves a provider-returned call name to a canonical
// tool id, falling back to matching by id or Name() directly.
func manifestResolve(name string, available []tools.Tool, registry *tools.Registry) (string, bool) {
	for _, t := range available {
		if t.Name() == name || t.ID() == name {
			return t.ID(), true
		}
	}
	if t, ok := registry.GetByID(name); ok {
		return t.ID(), true
	}
	return "", false
}

// substituteSecrets replaces verbatim occurrences of configured secret
// placeholder values inside string arguments, per the spec's "verbatim
// string replacement" rule.
func substituteSecrets(args map[string]any, execCtx *models.ExecutionContext) map[string]any {
	if execCtx == nil || len(execCtx.SecretValues) == 0 {
		return args
	}
	out := make(map[string]any, len(args))
	for k, v := range args {
		out[k] = substituteSecretValue(v, execCtx.SecretValues)
	}
	return out
}

func substituteSecretValue(v any, secrets map[string]string) any {
	switch val := v.(type) {
	case string:
		for placeholder, actual := range secrets {
			val = strings.ReplaceAll(val, placeholder, actual)
		}
		return val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, vv := range val {
			out[k] = substituteSecretValue(vv, secrets)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, vv := range val {
			out[i] = substituteSecretValue(vv, secrets)
		}
		return out
	default:
		return v
	}
}

// applyVerifiedEffects tallies VerifiedFileEffects/VerifiedShellEffects
// from a successful tool result's artifacts.
func applyVerifiedEffects(artifacts []models.Artifact, summary *models.ToolExecutionSummary) {
	fileOps := map[string]bool{"write": true, "append": true, "overwrite": true, "create": true, "update": true}
	shellOps := map[string]bool{"execute": true, "run": true}
	for _, a := range artifacts {
		switch a.Kind {
		case models.ArtifactFile:
			if fileOps[a.Operation] {
				summary.VerifiedFileEffects++
			}
		case models.ArtifactShell:
			if shellOps[a.Operation] {
				summary.VerifiedShellEffects++
			}
		}
	}
}

func (e *TurnEngine) finalize(ctx context.Context, in *TurnInput, content string, summary *models.ToolExecutionSummary, start time.Time, status string) *models.Message {
	e.emitResponseStream(ctx, in.RunID, content)
	e.emitRunEnd(ctx, in.RunID, status, time.Since(start), content)
	msg := &models.Message{
		Role:      models.RoleAssistant,
		Content:   content,
		Timestamp: time.Now(),
	}
	if len(in.Agent.Tools) > 0 {
		msg.ToolExecution = summary
	}
	return msg
}

func (e *TurnEngine) terminalError(ctx context.Context, in *TurnInput, summary *models.ToolExecutionSummary, start time.Time, err error) (*models.Message, error) {
	content := fmt.Sprintf("The run failed: %s", err.Error())
	e.emitRunEnd(ctx, in.RunID, "error", time.Since(start), content)
	return &models.Message{Role: models.RoleAssistant, Content: content, Timestamp: time.Now(), ToolExecution: summary}, nil
}

// recoverFromBudgetExhaustion issues one final no-tools recovery call
// after MAX_TOOL_TURNS is reached, per the spec's budget-exhaustion
// clause.
func (e *TurnEngine) recoverFromBudgetExhaustion(ctx context.Context, in *TurnInput, conversation []models.Message, manifest *tools.Manifest, systemMessage models.Message, summary *models.ToolExecutionSummary, lastSuccessful *toolCallRecord, start time.Time) (*models.Message, error) {
	recoveryText := "Tool-call budget is exhausted. Do not call any tools. Provide the final user-facing answer now."
	if lastSuccessful != nil {
		recoveryText += "\n\nLast successful tool result:\n" + lastSuccessful.output
	}
	recoveryMsgs := append(append([]models.Message{systemMessage}, conversation...), models.Message{
		Role:      models.RoleUser,
		Content:   recoveryText,
		Timestamp: time.Now(),
	})

	resp, err := in.Provider.Chat(ctx, &ChatRequest{
		Messages:    recoveryMsgs,
		Temperature: 0.2,
		MaxTokens:   ToolModeMaxResponseToken,
	})
	if err == nil && resp != nil && strings.TrimSpace(resp.Content) != "" {
		return e.finalize(ctx, in, resp.Content, summary, start, "completed"), nil
	}

	if lastSuccessful != nil {
		content := lastSuccessful.output
		if len(content) > recoveryResultMaxChars {
			content = content[:recoveryResultMaxChars] + "...[truncated]"
		}
		return e.finalize(ctx, in, content, summary, start, "completed"), nil
	}

	content := "The tool-call budget was exhausted before a final answer could be produced."
	e.emitRunEnd(ctx, in.RunID, "error", time.Since(start), content)
	return &models.Message{Role: models.RoleAssistant, Content: content, Timestamp: time.Now(), ToolExecution: summary}, nil
}
