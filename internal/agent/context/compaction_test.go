package context

import (
	"strings"
	"testing"

	"github.com/agentcore/runtime/pkg/models"
)

func userMsg(content string) models.Message {
	return models.Message{Role: models.RoleUser, Content: content}
}

func assistantMsg(content string) models.Message {
	return models.Message{Role: models.RoleAssistant, Content: content}
}

func TestBuildManagedHistoryKeepsEverythingUnderBudget(t *testing.T) {
	history := []models.Message{userMsg("hi"), assistantMsg("hello")}

	got := BuildManagedHistory(history, 10000)

	if len(got) != len(history) {
		t.Fatalf("expected history to pass through unchanged, got %d messages", len(got))
	}
}

func TestBuildManagedHistoryDropsOldestTurnsAndSynthesizesSummary(t *testing.T) {
	var history []models.Message
	for i := 0; i < 20; i++ {
		history = append(history, userMsg(strings.Repeat("q", 400)), assistantMsg(strings.Repeat("a", 400)))
	}

	got := BuildManagedHistory(history, 200)

	if len(got) == 0 {
		t.Fatal("expected non-empty managed history")
	}
	if got[0].Role != models.RoleAssistant || !strings.HasPrefix(got[0].Content, compactionSummaryHeader) {
		t.Fatalf("expected synthesized summary as first message, got %+v", got[0])
	}
	if strings.Count(got[0].Content, "\n") >= maxCompactionSummaryLines+5 {
		t.Fatal("expected synthesized summary to stay within its line cap")
	}
}

func TestBuildManagedHistoryRightTruncatesWhenStillOverBudget(t *testing.T) {
	history := []models.Message{
		userMsg(strings.Repeat("q", 40000)),
	}

	got := BuildManagedHistory(history, 1)

	if totalTokens(got) > 1 && len(got) > 0 {
		// A single oversized message can't be split further; the guard
		// only drops whole messages, so this asserts it doesn't panic
		// and returns something no larger than the input.
		if len(got) > len(history) {
			t.Fatal("truncation should never grow the history")
		}
	}
}
