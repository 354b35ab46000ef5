package context

import (
	"strings"
	"testing"

	"github.com/agentcore/runtime/pkg/models"
)

func TestEstimateTokensRoundsUpAndFloorsAtOne(t *testing.T) {
	cases := []struct {
		text string
		want int
	}{
		{"", 1},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("a", 400), 100},
	}
	for _, c := range cases {
		if got := EstimateTokens(c.text); got != c.want {
			t.Errorf("EstimateTokens(%d chars) = %d, want %d", len(c.text), got, c.want)
		}
	}
}

func TestEstimateMessageTokensAddsRoleOverheadAndToolCallCost(t *testing.T) {
	m := models.Message{
		Content: strings.Repeat("a", 4),
		ToolCalls: []models.ToolCall{
			{ID: "1", Name: "web_search", ArgumentsText: "{}"},
			{ID: "2", Name: "shell_execute", ArgumentsText: "{}"},
		},
	}

	got := EstimateMessageTokens(m)
	want := EstimateTokens(m.Content) + roleOverheadTokens + perToolCallTokens*2
	if got != want {
		t.Fatalf("EstimateMessageTokens() = %d, want %d", got, want)
	}
}

func TestApplyLongMessageGuardLeavesShortMessagesUntouched(t *testing.T) {
	short := strings.Repeat("x", longMessageThreshold)
	if got := ApplyLongMessageGuard(short); got != short {
		t.Fatal("expected message at exactly the threshold to pass through unchanged")
	}
}

func TestApplyLongMessageGuardTrimsMiddleAndKeepsEnds(t *testing.T) {
	text := strings.Repeat("a", longMessageHead) + strings.Repeat("m", 5000) + strings.Repeat("z", longMessageTail)

	got := ApplyLongMessageGuard(text)

	if !strings.HasPrefix(got, strings.Repeat("a", longMessageHead)) {
		t.Fatal("expected head to be preserved")
	}
	if !strings.Contains(got, "trimmed middle") {
		t.Fatal("expected a trimmed-middle marker")
	}
	if len(got) > longMessageHardCap {
		t.Fatalf("expected result capped at %d chars, got %d", longMessageHardCap, len(got))
	}
}

func TestGuardMessagePreservesOtherFields(t *testing.T) {
	m := models.Message{ID: "abc", Role: models.RoleAssistant, Content: strings.Repeat("a", 9000)}

	out := GuardMessage(m)

	if out.ID != m.ID || out.Role != m.Role {
		t.Fatal("expected non-content fields to be preserved")
	}
	if len(out.Content) > longMessageHardCap {
		t.Fatal("expected guarded content to respect hard cap")
	}
}
