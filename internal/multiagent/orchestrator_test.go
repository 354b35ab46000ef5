package multiagent

import (
	"context"
	"testing"

	"github.com/agentcore/runtime/internal/agent"
	"github.com/agentcore/runtime/internal/tools"
	"github.com/agentcore/runtime/pkg/models"
)

type fakeDirectorProvider struct {
	name      string
	responses []string
	calls     int
}

func (p *fakeDirectorProvider) Name() string            { return p.name }
func (p *fakeDirectorProvider) Models() []agent.Model    { return nil }
func (p *fakeDirectorProvider) SupportsNativeToolCalling() bool { return false }
func (p *fakeDirectorProvider) Chat(_ context.Context, _ *agent.ChatRequest) (*agent.ChatResponse, error) {
	idx := p.calls
	p.calls++
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return &agent.ChatResponse{Content: p.responses[idx]}, nil
}

type fakeWorkerProvider struct {
	responses []*agent.ChatResponse
	calls     int
}

func (p *fakeWorkerProvider) Name() string            { return "worker" }
func (p *fakeWorkerProvider) Models() []agent.Model   { return nil }
func (p *fakeWorkerProvider) SupportsNativeToolCalling() bool { return true }
func (p *fakeWorkerProvider) Chat(_ context.Context, _ *agent.ChatRequest) (*agent.ChatResponse, error) {
	idx := p.calls
	p.calls++
	if idx >= len(p.responses) {
		idx = len(p.responses) - 1
	}
	return p.responses[idx], nil
}

func writerTool() tools.Tool {
	return tools.NewFuncTool("fs_write_file", "fs_write_file", "writes a file", tools.InputSchema{
		Type:       "object",
		Properties: map[string]tools.SchemaProp{"path": {Type: "string"}},
		Required:   []string{"path"},
	}, false, func(_ context.Context, _ map[string]any, _ *models.ExecutionContext) (*models.ToolResult, error) {
		return &models.ToolResult{OK: true, Output: "wrote file", Artifacts: []models.Artifact{{Kind: models.ArtifactFile, Operation: "write", Path: "README.md"}}}, nil
	})
}

func newHarness(directorResponses []string, workerResponses []*agent.ChatResponse) (*SquadOrchestrator, *ResolvedSquad) {
	workerAgent := &models.AgentConfig{ID: "writer", Name: "Writer", Role: "implementer", Provider: "fake", Model: "fake-model", Tools: []string{"fs_write_file"}}
	worker := &Worker{Agent: workerAgent, Provider: &fakeWorkerProvider{responses: workerResponses}, Tools: []tools.Tool{writerTool()}}

	director := &fakeDirectorProvider{name: "fake-director", responses: directorResponses}

	orch := &SquadOrchestrator{
		Turn:      agent.NewTurnEngine(nil, nil),
		Workers:   map[string]*Worker{"writer": worker},
		Providers: map[string]agent.LLMProvider{"fake": director},
	}

	cfg := models.SquadConfig{
		ID:            "squad-1",
		Name:          "Test Squad",
		Goal:          "ship the thing",
		Members:       []string{"writer"},
		MaxIterations: 3,
	}
	resolved, err := orch.ResolveRuntime(cfg, map[string]string{"fake": "key"})
	if err != nil {
		panic(err)
	}
	return orch, resolved
}

func TestRunSquadCompletesOnDirectorComplete(t *testing.T) {
	orch, resolved := newHarness(
		[]string{`{"status":"complete","summary":"done","responseToUser":"All finished."}`},
		nil,
	)
	result, err := orch.RunSquad(context.Background(), resolved, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != models.SquadCompleted || result.Response != "All finished." {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestRunSquadBlocksOnUnknownTargetAgent(t *testing.T) {
	orch, resolved := newHarness(
		[]string{`{"status":"continue","summary":"delegate","targetAgentId":"ghost","instruction":"do it"}`},
		nil,
	)
	result, err := orch.RunSquad(context.Background(), resolved, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != models.SquadBlocked {
		t.Fatalf("expected blocked result, got %+v", result)
	}
}

func TestRunSquadInvokesWorkerAndVerifiesFileEffects(t *testing.T) {
	var steps []models.SquadStep
	orch, resolved := newHarness(
		[]string{
			`{"status":"continue","summary":"delegate","targetAgentId":"writer","instruction":"write the README file to disk"}`,
			`{"status":"complete","summary":"done","responseToUser":"Shipped."}`,
		},
		[]*agent.ChatResponse{
			{ToolCalls: []models.ToolCall{{ID: "call-1", Name: "fs_write_file", ArgumentsText: `{"path":"README.md"}`}}},
			{Content: "wrote it"},
		},
	)
	result, err := orch.RunSquad(context.Background(), resolved, func(s models.SquadStep) { steps = append(steps, s) })
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != models.SquadCompleted {
		t.Fatalf("expected completed result, got %+v", result)
	}
	if len(steps) != 1 || steps[0].WorkerAgentID != "writer" {
		t.Fatalf("expected one worker step, got %+v", steps)
	}
}

func TestRunSquadBlocksAfterFailedVerificationRetry(t *testing.T) {
	orch, resolved := newHarness(
		[]string{
			`{"status":"continue","summary":"delegate","targetAgentId":"writer","instruction":"write the file to disk"}`,
		},
		[]*agent.ChatResponse{
			{Content: "I described the change but did not call any tool."},
			{Content: "Still no tool calls."},
		},
	)
	result, err := orch.RunSquad(context.Background(), resolved, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != models.SquadBlocked {
		t.Fatalf("expected blocked result after failed verification retry, got %+v", result)
	}
}

func TestExtractDecisionFailsClosedOnInvalidPayload(t *testing.T) {
	d := extractDecision("not json at all")
	if d.Status != models.DirectorBlocked || d.Summary != "Orchestrator decision schema was invalid." {
		t.Fatalf("expected fail-closed decision, got %+v", d)
	}
}

func TestExtractDecisionRecoversFromMarkdownFence(t *testing.T) {
	d := extractDecision("```json\n{\"status\":\"complete\",\"summary\":\"ok\"}\n```")
	if d.Status != models.DirectorComplete {
		t.Fatalf("expected complete status, got %+v", d)
	}
}

func TestInferExecutionExpectationsRequiresFileEffects(t *testing.T) {
	exp := inferExecutionExpectations("please write the report to disk", []string{"fs_write_file"})
	if !exp.RequiresFileEffects || !exp.RequiresToolExecution {
		t.Fatalf("expected file effects to be required, got %+v", exp)
	}
	if exp.RequiresShellEffects {
		t.Fatalf("did not expect shell effects, got %+v", exp)
	}
}

func TestInferExecutionExpectationsNoneForPlainQuestion(t *testing.T) {
	exp := inferExecutionExpectations("what do you think about this plan?", []string{"fs_write_file"})
	if exp.RequiresToolExecution {
		t.Fatalf("expected no execution requirement, got %+v", exp)
	}
}
