package context

import (
	"github.com/agentcore/runtime/pkg/models"
)

// RepairResult is the outcome of orphan-tool-result repair.
type RepairResult struct {
	Messages      []models.Message
	InjectedCount int
}

// RepairOrphanToolResults scans for assistant messages with tool
// calls and, for any call id with no following tool-role message
// sharing that id, injects a synthetic tool-role message marking the
// call as failed. The engine counts injected messages as failures.
func RepairOrphanToolResults(messages []models.Message) RepairResult {
	satisfied := make(map[string]bool)
	for _, m := range messages {
		if m.Role == models.RoleTool && m.ToolCallID != "" {
			satisfied[m.ToolCallID] = true
		}
	}

	out := make([]models.Message, 0, len(messages))
	injected := 0
	for _, m := range messages {
		out = append(out, m)
		if m.Role != models.RoleAssistant || len(m.ToolCalls) == 0 {
			continue
		}
		for _, tc := range m.ToolCalls {
			if satisfied[tc.ID] {
				continue
			}
			out = append(out, models.Message{
				Role:       models.RoleTool,
				ToolCallID: tc.ID,
				Content:    "Error: Missing tool result for '" + tc.Name + "' (" + tc.ID + "). Treat this tool call as failed.",
			})
			satisfied[tc.ID] = true
			injected++
		}
	}

	return RepairResult{Messages: out, InjectedCount: injected}
}
