// Package agent implements the Provider Client, the Context Manager's
// consumer-facing entry point, and the Agent Turn Engine — the
// tool-use loop that drives provider calls, dispatches tool calls
// through the Tool Abstraction, and produces a single assistant
// Message per run.
package agent

import (
	"context"

	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/pkg/models"
)

// ToolChoice constrains whether the provider may emit tool calls.
type ToolChoice string

const (
	ToolChoiceAuto ToolChoice = "auto"
	ToolChoiceNone ToolChoice = "none"
)

// ResponseFormat requests a constrained output shape from the provider.
type ResponseFormat struct {
	Type       string // "json_schema" | "json_object"
	JSONSchema *JSONSchemaFormat
}

// JSONSchemaFormat names and shapes a requested json_schema response format.
type JSONSchemaFormat struct {
	Name   string
	Schema tools.InputSchema
	Strict bool
}

// ChatRequest is the uniform request the engine issues to any provider.
type ChatRequest struct {
	Messages        []models.Message
	Temperature     float64
	MaxTokens       int
	ReasoningEffort models.ReasoningEffort
	Tools           []tools.ProviderTool
	ToolChoice      ToolChoice
	ResponseFormat  *ResponseFormat
}

// Usage reports token accounting returned by the provider, when available.
type Usage struct {
	TotalTokens int
}

// ChatResponse is the uniform response the engine receives from any provider.
type ChatResponse struct {
	Content   string
	ToolCalls []models.ToolCall
	Usage     *Usage

	// RawToolCallFailure carries a provider's best-effort tool_use_failed
	// payload (the teacher's "failed_generation" string) so the engine's
	// tool-call recovery chain (see recovery.go) can attempt repair.
	RawToolCallFailure string
}

// Model describes one model a provider exposes.
type Model struct {
	ID                      string
	ContextWindow           int
	ChatCapable             bool
	SupportsToolUse         bool
	SupportsReasoningEffort bool
	DeprecatedFallback      string // non-empty if this model id is deprecated
}

// LLMProvider is the uniform interface the core sees each provider
// through. Implementations live under internal/agent/providers.
type LLMProvider interface {
	Name() string
	Models() []Model
	SupportsNativeToolCalling() bool
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
}
