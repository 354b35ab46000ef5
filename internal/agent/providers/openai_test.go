package providers

import (
	"testing"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/pkg/models"
)

func TestToOpenAIMessagesMapsRoles(t *testing.T) {
	msgs := []models.Message{
		{Role: models.RoleSystem, Content: "be terse"},
		{Role: models.RoleUser, Content: "hi"},
		{Role: models.RoleAssistant, Content: "hello", ToolCalls: []models.ToolCall{
			{ID: "call-1", Name: "web_search", ArgumentsText: `{"q":"go"}`},
		}},
		{Role: models.RoleTool, ToolCallID: "call-1", Content: "results"},
	}

	out := toOpenAIMessages(msgs)

	if len(out) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(out))
	}
	if out[0].Role != openai.ChatMessageRoleSystem {
		t.Fatalf("expected system role first, got %s", out[0].Role)
	}
	if out[2].Role != openai.ChatMessageRoleAssistant || len(out[2].ToolCalls) != 1 {
		t.Fatalf("expected assistant message with 1 tool call, got %+v", out[2])
	}
	if out[3].Role != openai.ChatMessageRoleTool || out[3].ToolCallID != "call-1" {
		t.Fatalf("expected tool result message wired to call-1, got %+v", out[3])
	}
}

func TestToOpenAIToolsFallsBackOnUnmarshalableSchema(t *testing.T) {
	provTools := []tools.ProviderTool{
		{Name: "noop", Description: "does nothing", Parameters: tools.InputSchema{Type: "object"}},
	}

	out := toOpenAITools(provTools)

	if len(out) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(out))
	}
	if out[0].Function.Name != "noop" {
		t.Fatalf("unexpected function name: %q", out[0].Function.Name)
	}
}

func TestDefaultOpenAIModelsMarksDeprecatedFallback(t *testing.T) {
	models := defaultOpenAIModels()
	for _, m := range models {
		if m.ID == "gpt-3.5-turbo" {
			if m.DeprecatedFallback != "gpt-4o-mini" {
				t.Fatalf("expected gpt-3.5-turbo to fall back to gpt-4o-mini, got %q", m.DeprecatedFallback)
			}
			return
		}
	}
	t.Fatal("expected gpt-3.5-turbo entry in default model catalog")
}
