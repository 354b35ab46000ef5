package providers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/pkg/models"
)

// OpenAIProvider adapts github.com/sashabaranov/go-openai to the
// uniform LLMProvider contract.
type OpenAIProvider struct {
	BaseProvider
	client       *openai.Client
	defaultModel string
	models       []agent.Model
}

// NewOpenAIProvider builds a provider bound to apiKey, advertising the
// catalog entries in catalog (falling back to a default GPT lineup
// when catalog is empty).
func NewOpenAIProvider(apiKey string, catalog []agent.Model) *OpenAIProvider {
	if len(catalog) == 0 {
		catalog = defaultOpenAIModels()
	}
	return &OpenAIProvider{
		BaseProvider: NewBaseProvider("openai", 3, time.Second),
		client:       openai.NewClient(apiKey),
		defaultModel: catalog[0].ID,
		models:       catalog,
	}
}

func defaultOpenAIModels() []agent.Model {
	return []agent.Model{
		{ID: "gpt-4o", ContextWindow: 128000, ChatCapable: true, SupportsToolUse: true, SupportsReasoningEffort: false},
		{ID: "gpt-4o-mini", ContextWindow: 128000, ChatCapable: true, SupportsToolUse: true, SupportsReasoningEffort: false},
		{ID: "o3", ContextWindow: 200000, ChatCapable: true, SupportsToolUse: true, SupportsReasoningEffort: true},
		{ID: "gpt-4-turbo", ContextWindow: 128000, ChatCapable: true, SupportsToolUse: true, SupportsReasoningEffort: false},
		{ID: "gpt-3.5-turbo", ContextWindow: 16385, ChatCapable: true, SupportsToolUse: true, SupportsReasoningEffort: false, DeprecatedFallback: "gpt-4o-mini"},
	}
}

func (p *OpenAIProvider) Name() string { return "openai" }

func (p *OpenAIProvider) Models() []agent.Model { return p.models }

func (p *OpenAIProvider) SupportsNativeToolCalling() bool { return true }

// Chat issues one non-streaming request/response round trip against
// the Chat Completions API. When the model reports finish_reason
// "tool_calls" but a tool call's Arguments string fails to decode as
// JSON, the raw arguments text is carried in RawToolCallFailure so the
// engine's recovery chain (see recovery.go) can attempt repair instead
// of treating the turn as a hard failure.
func (p *OpenAIProvider) Chat(ctx context.Context, req *agent.ChatRequest) (*agent.ChatResponse, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:       p.defaultModel,
		Messages:    toOpenAIMessages(req.Messages),
		Temperature: float32(req.Temperature),
	}
	if req.MaxTokens > 0 {
		chatReq.MaxTokens = req.MaxTokens
	}
	if len(req.Tools) > 0 && req.ToolChoice != agent.ToolChoiceNone {
		chatReq.Tools = toOpenAITools(req.Tools)
	} else if req.ToolChoice == agent.ToolChoiceNone {
		chatReq.ToolChoice = "none"
	}
	if req.ResponseFormat != nil && req.ResponseFormat.Type == "json_object" {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject}
	}

	var resp openai.ChatCompletionResponse
	err := p.Retry(ctx, IsRetryable, func() error {
		var callErr error
		resp, callErr = p.client.CreateChatCompletion(ctx, chatReq)
		return callErr
	})
	if err != nil {
		return nil, NewProviderError("openai", p.defaultModel, err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("openai chat: empty choices in response")
	}
	choice := resp.Choices[0]

	out := &agent.ChatResponse{Content: choice.Message.Content}
	if resp.Usage.TotalTokens > 0 {
		out.Usage = &agent.Usage{TotalTokens: resp.Usage.TotalTokens}
	}

	for _, tc := range choice.Message.ToolCalls {
		argsText := tc.Function.Arguments
		if !json.Valid([]byte(argsText)) {
			out.RawToolCallFailure = argsText
			continue
		}
		out.ToolCalls = append(out.ToolCalls, models.ToolCall{
			ID:            tc.ID,
			Name:          tc.Function.Name,
			ArgumentsText: argsText,
		})
	}

	return out, nil
}

func toOpenAIMessages(msgs []models.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case models.RoleSystem:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: m.Content})
		case models.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: m.Content}
			for _, tc := range m.ToolCalls {
				oaiMsg.ToolCalls = append(oaiMsg.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.ArgumentsText,
					},
				})
			}
			out = append(out, oaiMsg)
		case models.RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    m.Content,
				ToolCallID: m.ToolCallID,
			})
		default:
			out = append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: m.Content})
		}
	}
	return out
}

func toOpenAITools(provTools []tools.ProviderTool) []openai.Tool {
	out := make([]openai.Tool, 0, len(provTools))
	for _, t := range provTools {
		schemaJSON, _ := json.Marshal(t.Parameters)
		var schemaMap map[string]any
		if err := json.Unmarshal(schemaJSON, &schemaMap); err != nil {
			schemaMap = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  schemaMap,
			},
		})
	}
	return out
}
