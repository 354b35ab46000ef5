package providers

import (
	"testing"

	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/pkg/models"
)

func TestSplitSystemPromptCollectsSystemMessages(t *testing.T) {
	msgs := []models.Message{
		{Role: models.RoleSystem, Content: "You are terse."},
		{Role: models.RoleSystem, Content: "Never apologize."},
		{Role: models.RoleUser, Content: "hi"},
	}

	system, rest := splitSystemPrompt(msgs)

	if system != "You are terse.\n\nNever apologize." {
		t.Fatalf("unexpected merged system prompt: %q", system)
	}
	if len(rest) != 1 {
		t.Fatalf("expected system messages to be excluded from rest, got %d", len(rest))
	}
}

func TestSplitSystemPromptMapsToolRoleToToolResultBlock(t *testing.T) {
	msgs := []models.Message{
		{Role: models.RoleTool, ToolCallID: "call-1", Content: "42"},
	}

	_, rest := splitSystemPrompt(msgs)

	if len(rest) != 1 {
		t.Fatalf("expected one converted message, got %d", len(rest))
	}
}

func TestToAnthropicToolsCarriesNameAndDescription(t *testing.T) {
	schema := tools.InputSchema{Type: "object", Properties: map[string]tools.SchemaProp{
		"query": {Type: "string"},
	}}
	provTools := []tools.ProviderTool{
		{Name: "web_search", Description: "Searches the web", Parameters: schema},
	}

	out := toAnthropicTools(provTools)

	if len(out) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(out))
	}
	if out[0].OfTool == nil {
		t.Fatal("expected OfTool to be populated")
	}
	if out[0].OfTool.Name != "web_search" {
		t.Fatalf("unexpected tool name: %q", out[0].OfTool.Name)
	}
}

func TestDefaultAnthropicModelsMarksDeprecatedFallback(t *testing.T) {
	models := defaultAnthropicModels()
	for _, m := range models {
		if m.ID == "claude-2.1" {
			if m.DeprecatedFallback == "" {
				t.Fatal("expected claude-2.1 to declare a deprecated fallback")
			}
			return
		}
	}
	t.Fatal("expected claude-2.1 entry in default model catalog")
}
