package context

import (
	"testing"

	"github.com/agentcore/runtime/pkg/models"
)

func TestRepairOrphanToolResultsLeavesSatisfiedCallsAlone(t *testing.T) {
	messages := []models.Message{
		withToolCall(assistantMsg(""), "call-1", "web_search"),
		{Role: models.RoleTool, ToolCallID: "call-1", Content: "results"},
	}

	result := RepairOrphanToolResults(messages)

	if result.InjectedCount != 0 {
		t.Fatalf("expected no injections, got %d", result.InjectedCount)
	}
	if len(result.Messages) != 2 {
		t.Fatalf("expected history length unchanged, got %d", len(result.Messages))
	}
}

func TestRepairOrphanToolResultsInjectsSyntheticFailure(t *testing.T) {
	messages := []models.Message{
		withToolCall(assistantMsg(""), "call-2", "shell_execute"),
	}

	result := RepairOrphanToolResults(messages)

	if result.InjectedCount != 1 {
		t.Fatalf("expected 1 injection, got %d", result.InjectedCount)
	}
	if len(result.Messages) != 2 {
		t.Fatalf("expected injected tool message appended, got %d messages", len(result.Messages))
	}
	injected := result.Messages[1]
	if injected.Role != models.RoleTool || injected.ToolCallID != "call-2" {
		t.Fatalf("unexpected injected message: %+v", injected)
	}
	if injected.Content == "" {
		t.Fatal("expected injected message to carry an error description")
	}
}

func withToolCall(m models.Message, id, name string) models.Message {
	m.ToolCalls = append(m.ToolCalls, models.ToolCall{ID: id, Name: name, ArgumentsText: "{}"})
	return m
}
