package multiagent

import (
	"strings"

	"github.com/agentcore/runtime/internal/jsonrecover"
	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/pkg/models"
)

// directorDecisionSchema is the strict JSON schema the director's raw
// response is asked to conform to.
var directorDecisionSchema = tools.InputSchema{
	Type: "object",
	Properties: map[string]tools.SchemaProp{
		"status": {
			Type: "string",
			Enum: []any{"continue", "complete", "needs_user_input", "blocked"},
		},
		"summary":        {Type: "string"},
		"targetAgentId":  {Type: "string"},
		"instruction":    {Type: "string"},
		"responseToUser": {Type: "string"},
		"userQuestion":   {Type: "string"},
		"blockerReason":  {Type: "string"},
	},
	Required: []string{"status", "summary"},
}

// invalidDecision is the fail-closed decision returned whenever the
// director's raw output cannot be recovered into a well-formed
// DirectorDecision.
var invalidDecision = models.DirectorDecision{
	Status:  models.DirectorBlocked,
	Summary: "Orchestrator decision schema was invalid.",
}

// extractDecision strips markdown fences, JSON-parses with recovery,
// and normalizes the result. Invalid payloads fail closed rather than
// erroring, so the squad loop can always make forward progress.
func extractDecision(raw string) models.DirectorDecision {
	var decoded models.DirectorDecision
	if err := jsonrecover.Decode(raw, &decoded); err != nil {
		return invalidDecision
	}
	return normalizeDecision(decoded)
}

func normalizeDecision(d models.DirectorDecision) models.DirectorDecision {
	switch d.Status {
	case models.DirectorContinue, models.DirectorComplete, models.DirectorNeedsUserInput, models.DirectorBlocked:
	default:
		return invalidDecision
	}
	if strings.TrimSpace(d.Summary) == "" {
		return invalidDecision
	}
	return d
}
