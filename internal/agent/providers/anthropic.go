// Package providers implements Provider Client adapters for each
// supported LLM vendor, satisfying agent.LLMProvider.
package providers

import (
	"context"
	"encoding/json"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/pkg/models"
)

// AnthropicProvider adapts github.com/anthropics/anthropic-sdk-go to
// the uniform LLMProvider contract.
type AnthropicProvider struct {
	BaseProvider
	client       anthropic.Client
	defaultModel string
	models       []agent.Model
}

// NewAnthropicProvider builds a provider bound to apiKey, advertising
// the catalog entries in catalog (falling back to a sensible default
// Claude lineup when catalog is empty).
func NewAnthropicProvider(apiKey string, catalog []agent.Model) *AnthropicProvider {
	if len(catalog) == 0 {
		catalog = defaultAnthropicModels()
	}
	return &AnthropicProvider{
		BaseProvider: NewBaseProvider("anthropic", 3, time.Second),
		client:       anthropic.NewClient(option.WithAPIKey(apiKey)),
		defaultModel: catalog[0].ID,
		models:       catalog,
	}
}

func defaultAnthropicModels() []agent.Model {
	return []agent.Model{
		{ID: "claude-sonnet-4-5", ContextWindow: 200000, ChatCapable: true, SupportsToolUse: true, SupportsReasoningEffort: true},
		{ID: "claude-opus-4-1", ContextWindow: 200000, ChatCapable: true, SupportsToolUse: true, SupportsReasoningEffort: true},
		{ID: "claude-3-5-haiku-latest", ContextWindow: 200000, ChatCapable: true, SupportsToolUse: true, SupportsReasoningEffort: false},
		{ID: "claude-2.1", ContextWindow: 100000, ChatCapable: true, SupportsToolUse: false, SupportsReasoningEffort: false, DeprecatedFallback: "claude-3-5-haiku-latest"},
	}
}

func (p *AnthropicProvider) Name() string { return "anthropic" }

func (p *AnthropicProvider) Models() []agent.Model { return p.models }

func (p *AnthropicProvider) SupportsNativeToolCalling() bool { return true }

// Chat issues one request/response round trip against the Anthropic
// Messages API. Streaming is not exercised here: the engine treats
// every provider call as a single suspension point and reads the
// final message, mirroring a non-streaming Messages.New path for
// tool-use turns.
func (p *AnthropicProvider) Chat(ctx context.Context, req *agent.ChatRequest) (*agent.ChatResponse, error) {
	system, messages := splitSystemPrompt(req.Messages)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.defaultModel),
		MaxTokens: int64(req.MaxTokens),
		Messages:  messages,
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if len(req.Tools) > 0 && req.ToolChoice != agent.ToolChoiceNone {
		params.Tools = toAnthropicTools(req.Tools)
	}

	var resp *anthropic.Message
	err := p.Retry(ctx, IsRetryable, func() error {
		var callErr error
		resp, callErr = p.client.Messages.New(ctx, params)
		return callErr
	})
	if err != nil {
		return nil, NewProviderError("anthropic", p.defaultModel, err)
	}

	out := &agent.ChatResponse{}
	if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
		out.Usage = &agent.Usage{TotalTokens: int(resp.Usage.InputTokens + resp.Usage.OutputTokens)}
	}

	for _, block := range resp.Content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			out.Content += variant.Text
		case anthropic.ToolUseBlock:
			argsText, _ := json.Marshal(variant.Input)
			out.ToolCalls = append(out.ToolCalls, models.ToolCall{
				ID:            variant.ID,
				Name:          variant.Name,
				ArgumentsText: string(argsText),
			})
		}
	}

	return out, nil
}

func splitSystemPrompt(msgs []models.Message) (string, []anthropic.MessageParam) {
	var system string
	out := make([]anthropic.MessageParam, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == models.RoleSystem {
			if system != "" {
				system += "\n\n"
			}
			system += m.Content
			continue
		}
		switch m.Role {
		case models.RoleAssistant:
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		case models.RoleTool:
			out = append(out, anthropic.NewUserMessage(anthropic.NewToolResultBlock(m.ToolCallID, m.Content, false)))
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}
	return system, out
}

func toAnthropicTools(provTools []tools.ProviderTool) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(provTools))
	for _, t := range provTools {
		schemaJSON, _ := json.Marshal(t.Parameters)
		var schema anthropic.ToolInputSchemaParam
		_ = json.Unmarshal(schemaJSON, &schema)

		toolParam := anthropic.ToolUnionParamOfTool(schema, t.Name)
		if toolParam.OfTool != nil {
			toolParam.OfTool.Description = anthropic.String(t.Description)
		}
		out = append(out, toolParam)
	}
	return out
}
