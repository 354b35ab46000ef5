package agent

import (
	"context"
	"testing"

	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/pkg/models"
)

type fakeProvider struct {
	name          string
	nativeTools   bool
	responses     []*ChatResponse
	errs          []error
	calls         int
	capturedReqs  []*ChatRequest
}

func (p *fakeProvider) Name() string                     { return p.name }
func (p *fakeProvider) Models() []Model                  { return nil }
func (p *fakeProvider) SupportsNativeToolCalling() bool  { return p.nativeTools }
func (p *fakeProvider) Chat(_ context.Context, req *ChatRequest) (*ChatResponse, error) {
	p.capturedReqs = append(p.capturedReqs, req)
	idx := p.calls
	p.calls++
	var resp *ChatResponse
	var err error
	if idx < len(p.responses) {
		resp = p.responses[idx]
	}
	if idx < len(p.errs) {
		err = p.errs[idx]
	}
	return resp, err
}

func echoTool(id string, privileged bool) tools.Tool {
	return tools.NewFuncTool(id, id, "echoes its argument", tools.InputSchema{
		Type:       "object",
		Properties: map[string]tools.SchemaProp{"text": {Type: "string"}},
		Required:   []string{"text"},
	}, privileged, func(_ context.Context, args map[string]any, _ *models.ExecutionContext) (*models.ToolResult, error) {
		text, _ := args["text"].(string)
		return &models.ToolResult{OK: true, Output: "echo: " + text}, nil
	})
}

func baseAgent(toolIDs ...string) *models.AgentConfig {
	return &models.AgentConfig{
		ID:           "agent-1",
		Name:         "tester",
		SystemPrompt: "You are a test agent.",
		Provider:     "fake",
		Model:        "fake-model",
		Tools:        toolIDs,
	}
}

func TestRunFinalizesImmediatelyWithNoToolCalls(t *testing.T) {
	provider := &fakeProvider{name: "fake", nativeTools: true, responses: []*ChatResponse{
		{Content: "hello there"},
	}}
	engine := NewTurnEngine(nil, nil)

	msg, err := engine.Run(context.Background(), &TurnInput{
		Agent:            baseAgent(),
		Provider:         provider,
		ExecutionContext: &models.ExecutionContext{},
		RunID:            "run-1",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Content != "hello there" {
		t.Fatalf("expected echoed content, got %q", msg.Content)
	}
	if msg.Role != models.RoleAssistant {
		t.Fatalf("expected assistant role, got %s", msg.Role)
	}
}

func TestRunReturnsSynthesizedErrorWhenProviderLacksToolSupport(t *testing.T) {
	provider := &fakeProvider{name: "fake", nativeTools: false}
	engine := NewTurnEngine(nil, nil)

	msg, err := engine.Run(context.Background(), &TurnInput{
		Agent:            baseAgent(tools.CanonicalWebSearch),
		Provider:         provider,
		AvailableTools:   []tools.Tool{echoTool(tools.CanonicalWebSearch, false)},
		ExecutionContext: &models.ExecutionContext{},
		RunID:            "run-2",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ToolExecution == nil {
		t.Fatalf("expected a zeroed tool execution summary")
	}
	if msg.ToolExecution.Attempted != 0 {
		t.Fatalf("expected no tool attempts, got %d", msg.ToolExecution.Attempted)
	}
}

func TestRunExecutesToolCallAndFinalizes(t *testing.T) {
	toolCall := models.ToolCall{ID: "call-1", Name: tools.CanonicalWebSearch, ArgumentsText: `{"text":"hi"}`}
	provider := &fakeProvider{name: "fake", nativeTools: true, responses: []*ChatResponse{
		{ToolCalls: []models.ToolCall{toolCall}},
		{Content: "done"},
	}}
	engine := NewTurnEngine(nil, nil)

	msg, err := engine.Run(context.Background(), &TurnInput{
		Agent:            baseAgent(tools.CanonicalWebSearch),
		Provider:         provider,
		AvailableTools:   []tools.Tool{echoTool(tools.CanonicalWebSearch, false)},
		ExecutionContext: &models.ExecutionContext{},
		RunID:            "run-3",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Content != "done" {
		t.Fatalf("expected final content %q, got %q", "done", msg.Content)
	}
	if msg.ToolExecution == nil || msg.ToolExecution.Succeeded != 1 {
		t.Fatalf("expected one succeeded tool call, got %+v", msg.ToolExecution)
	}
}

func TestRunGatesPrivilegedToolWithoutAccess(t *testing.T) {
	toolCall := models.ToolCall{ID: "call-1", Name: tools.CanonicalShellExecute, ArgumentsText: `{"text":"hi"}`}
	provider := &fakeProvider{name: "fake", nativeTools: true, responses: []*ChatResponse{
		{ToolCalls: []models.ToolCall{toolCall}},
		{Content: "acknowledged"},
	}}
	engine := NewTurnEngine(nil, nil)

	msg, err := engine.Run(context.Background(), &TurnInput{
		Agent:    baseAgent(tools.CanonicalShellExecute),
		Provider: provider,
		AvailableTools: []tools.Tool{echoTool(tools.CanonicalShellExecute, true)},
		ExecutionContext: &models.ExecutionContext{
			ToolAccessMode:    models.AccessAskAlways,
			ToolAccessGranted: false,
		},
		RunID: "run-4",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ToolExecution == nil || msg.ToolExecution.Failed != 1 || msg.ToolExecution.Attempted != 0 {
		t.Fatalf("expected the privileged call to fail without executing, got %+v", msg.ToolExecution)
	}
}

func TestRunSuppressesIdenticalToolCallsAfterLimit(t *testing.T) {
	call := models.ToolCall{ID: "call-x", Name: tools.CanonicalWebSearch, ArgumentsText: `{"text":"same"}`}
	responses := []*ChatResponse{
		{ToolCalls: []models.ToolCall{call}},
		{ToolCalls: []models.ToolCall{call}},
		{ToolCalls: []models.ToolCall{call}},
		{Content: "stop"},
	}
	provider := &fakeProvider{name: "fake", nativeTools: true, responses: responses}
	engine := NewTurnEngine(nil, nil)

	msg, err := engine.Run(context.Background(), &TurnInput{
		Agent:            baseAgent(tools.CanonicalWebSearch),
		Provider:         provider,
		AvailableTools:   []tools.Tool{echoTool(tools.CanonicalWebSearch, false)},
		ExecutionContext: &models.ExecutionContext{},
		RunID:            "run-5",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ToolExecution.Succeeded != MaxIdenticalToolCalls {
		t.Fatalf("expected exactly %d successful calls before suppression, got %d", MaxIdenticalToolCalls, msg.ToolExecution.Succeeded)
	}
	if msg.ToolExecution.Failed < 1 {
		t.Fatalf("expected at least one suppressed duplicate counted as failed")
	}
}

func TestRunRecoversOnBudgetExhaustion(t *testing.T) {
	call := models.ToolCall{ID: "call-loop", Name: tools.CanonicalWebSearch, ArgumentsText: `{"text":"loop"}`}
	responses := make([]*ChatResponse, 0, MaxToolTurns+2)
	for i := 0; i <= MaxToolTurns; i++ {
		c := call
		c.ID = call.ID + string(rune('a'+i%20))
		responses = append(responses, &ChatResponse{ToolCalls: []models.ToolCall{c}})
	}
	responses = append(responses, &ChatResponse{Content: "final answer after recovery"})
	provider := &fakeProvider{name: "fake", nativeTools: true, responses: responses}
	engine := NewTurnEngine(nil, nil)

	msg, err := engine.Run(context.Background(), &TurnInput{
		Agent:            baseAgent(tools.CanonicalWebSearch),
		Provider:         provider,
		AvailableTools:   []tools.Tool{echoTool(tools.CanonicalWebSearch, false)},
		ExecutionContext: &models.ExecutionContext{},
		RunID:            "run-6",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Content != "final answer after recovery" {
		t.Fatalf("expected recovery content, got %q", msg.Content)
	}
}
