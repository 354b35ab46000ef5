// Package models defines the core data types shared across the agent
// execution core: conversation messages, tool calls/results, agent and
// squad configuration, and the ambient execution context passed into
// every tool invocation.
package models

import "time"

// Role indicates the message author type.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one item of conversation history.
type Message struct {
	ID            string                `json:"id"`
	Role          Role                  `json:"role"`
	Content       string                `json:"content"`
	Name          string                `json:"name,omitempty"`
	ToolCallID    string                `json:"tool_call_id,omitempty"`
	ToolCalls     []ToolCall            `json:"tool_calls,omitempty"`
	Timestamp     time.Time             `json:"timestamp"`
	ToolExecution *ToolExecutionSummary `json:"tool_execution,omitempty"`
}

// Clone returns a shallow copy of the message with its ToolCalls slice
// copied so callers can mutate the clone's tool calls without aliasing
// the original history.
func (m *Message) Clone() *Message {
	if m == nil {
		return nil
	}
	clone := *m
	if m.ToolCalls != nil {
		clone.ToolCalls = append([]ToolCall(nil), m.ToolCalls...)
	}
	return &clone
}

// ToolCall is an LLM's request to invoke a tool. ID correlates with the
// later tool-role Message carrying the result.
type ToolCall struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ArgumentsText string `json:"arguments_text"`
}

// ArtifactKind classifies the kind of side-effect an artifact records.
type ArtifactKind string

const (
	ArtifactFile  ArtifactKind = "file"
	ArtifactShell ArtifactKind = "shell"
	ArtifactWeb   ArtifactKind = "web"
	ArtifactOther ArtifactKind = "other"
)

// Artifact is a structured side-effect record a tool returns so callers
// (notably the Squad Orchestrator's verification step) can inspect what
// actually happened rather than trusting the model's narration.
type Artifact struct {
	Kind      ArtifactKind   `json:"kind"`
	Label     string         `json:"label"`
	Operation string         `json:"operation,omitempty"`
	Path      string         `json:"path,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// Check is a structured postcondition a tool asserts about its own
// effect (e.g. "file exists", "exit code zero").
type Check struct {
	ID          string `json:"id"`
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Details     string `json:"details,omitempty"`
}

// ToolResult is the uniform outcome of a single tool execution.
type ToolResult struct {
	OK       bool       `json:"ok"`
	Output   string     `json:"output,omitempty"`
	Error    string     `json:"error,omitempty"`
	Artifacts []Artifact `json:"artifacts,omitempty"`
	Checks   []Check    `json:"checks,omitempty"`
}

// AllChecksPassed reports whether every recorded check succeeded. A
// result with no checks at all counts as passed for this purpose.
func (r *ToolResult) AllChecksPassed() bool {
	if r == nil {
		return false
	}
	for _, c := range r.Checks {
		if !c.OK {
			return false
		}
	}
	return true
}

// ToolExecutionSummary aggregates the outcome of every tool call made
// during one agent turn. Attached to the final assistant Message.
type ToolExecutionSummary struct {
	Attempted            int `json:"attempted"`
	Succeeded            int `json:"succeeded"`
	Failed               int `json:"failed"`
	Malformed            int `json:"malformed"`
	VerifiedFileEffects  int `json:"verified_file_effects"`
	VerifiedShellEffects int `json:"verified_shell_effects"`
}
