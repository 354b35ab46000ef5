package agent

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"

	"github.com/agentcore/runtime/internal/jsonrecover"
	"github.com/agentcore/runtime/pkg/models"
)

// functionWrapperPattern matches the "<function=NAME ...>ARGS</function>"
// wrapper some providers fall back to when native tool calling fails
// mid-response.
var functionWrapperPattern = regexp.MustCompile(`(?s)<function=([A-Za-z0-9_]+)[^>]*>(.*?)(?:</function>|$)`)

// RecoverToolCalls implements the spec's tool-call recovery chain: (a)
// parse a <function=NAME> wrapper, (b) JSON-with-recovery into
// {tool|name|function:{name}, arguments|args|input}, (c) extract the
// first balanced object and retry, (d) last resort: retry the chat call
// once with tools stripped. Steps (a)-(c) are attempted here against
// resp.RawToolCallFailure; step (d) is the caller's responsibility (see
// Runtime.recoverWithoutTools) since it requires re-issuing the request.
func RecoverToolCalls(resp *ChatResponse) []models.ToolCall {
	if resp == nil || resp.RawToolCallFailure == "" {
		return nil
	}
	raw := resp.RawToolCallFailure

	if calls := parseFunctionWrapper(raw); len(calls) > 0 {
		return calls
	}

	if call, ok := parseRecoveredCallObject(raw); ok {
		return []models.ToolCall{call}
	}

	if balanced, ok := jsonrecover.ExtractBalancedObject(raw); ok {
		if call, ok := parseRecoveredCallObject(balanced); ok {
			return []models.ToolCall{call}
		}
	}

	return nil
}

func parseFunctionWrapper(raw string) []models.ToolCall {
	matches := functionWrapperPattern.FindAllStringSubmatch(raw, -1)
	if len(matches) == 0 {
		return nil
	}
	calls := make([]models.ToolCall, 0, len(matches))
	for i, match := range matches {
		calls = append(calls, models.ToolCall{
			ID:            syntheticCallID(i),
			Name:          match[1],
			ArgumentsText: strings.TrimSpace(match[2]),
		})
	}
	return calls
}

type recoveredCallShape struct {
	Tool     string `json:"tool"`
	Name     string `json:"name"`
	Function struct {
		Name string `json:"name"`
	} `json:"function"`
	Arguments any `json:"arguments"`
	Args      any `json:"args"`
	Input     any `json:"input"`
}

func parseRecoveredCallObject(raw string) (models.ToolCall, bool) {
	var shape recoveredCallShape
	if err := jsonrecover.Decode(raw, &shape); err != nil {
		return models.ToolCall{}, false
	}

	name := shape.Tool
	if name == "" {
		name = shape.Name
	}
	if name == "" {
		name = shape.Function.Name
	}
	if name == "" {
		return models.ToolCall{}, false
	}

	args := shape.Arguments
	if args == nil {
		args = shape.Args
	}
	if args == nil {
		args = shape.Input
	}

	argsText := "{}"
	if raw, err := json.Marshal(args); err == nil {
		argsText = string(raw)
	}
	return models.ToolCall{ID: syntheticCallID(0), Name: name, ArgumentsText: argsText}, true
}

func syntheticCallID(i int) string {
	if i == 0 {
		return "recovered-call"
	}
	return "recovered-call-" + string(rune('a'+i))
}

// RetryWithoutTools is the last-resort recovery step (d): retry the
// chat call once with tools stripped, used when the recovery chain
// above cannot extract any tool call at all.
func RetryWithoutTools(ctx context.Context, p LLMProvider, req *ChatRequest) (*ChatResponse, error) {
	stripped := *req
	stripped.Tools = nil
	stripped.ToolChoice = ToolChoiceNone
	return p.Chat(ctx, &stripped)
}
