package subagent

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/agentcore/runtime/pkg/models"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.MaxConcurrency = 2
	cfg.MaxActiveRunsPerParent = 2
	cfg.DefaultTimeoutMs = 2000
	cfg.MaxTimeoutMs = 5000
	cfg.MaxRunOutputChars = 20
	return cfg
}

func TestEnqueueAndAwaitCompletesRun(t *testing.T) {
	exec := func(_ context.Context, run *models.SubAgentRunState) (string, error) {
		return "hello " + run.Task, nil
	}
	c, err := NewCoordinator(testConfig(), NewMemoryStore(), exec, nil)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	run, err := c.Enqueue(context.Background(), EnqueueRequest{AgentID: "child", Task: "world", AwaitCompletion: true})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if run.Status != models.SubAgentCompleted {
		t.Fatalf("expected completed, got %+v", run)
	}
	if run.Output != "hello world" {
		t.Fatalf("unexpected output: %q", run.Output)
	}
}

func TestRunOutputIsTruncated(t *testing.T) {
	exec := func(_ context.Context, _ *models.SubAgentRunState) (string, error) {
		return "this output is definitely longer than twenty characters", nil
	}
	c, err := NewCoordinator(testConfig(), NewMemoryStore(), exec, nil)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}
	run, err := c.Enqueue(context.Background(), EnqueueRequest{AgentID: "child", Task: "t", AwaitCompletion: true})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if run.Status != models.SubAgentCompleted {
		t.Fatalf("expected completed, got %+v", run)
	}
	want := "[truncated: output exceeded 20 chars]"
	if len(run.Output) < len(want) {
		t.Fatalf("expected truncation marker in output, got %q", run.Output)
	}
}

func TestEnqueueRejectsWhenParentAtCapacity(t *testing.T) {
	release := make(chan struct{})
	var started sync.WaitGroup
	started.Add(2)
	exec := func(_ context.Context, _ *models.SubAgentRunState) (string, error) {
		started.Done()
		<-release
		return "done", nil
	}
	c, err := NewCoordinator(testConfig(), NewMemoryStore(), exec, nil)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	for i := 0; i < 2; i++ {
		if _, err := c.Enqueue(context.Background(), EnqueueRequest{ParentRunID: "parent-1", AgentID: fmt.Sprintf("child-%d", i), Task: "t"}); err != nil {
			t.Fatalf("Enqueue %d: %v", i, err)
		}
	}
	started.Wait()

	if _, err := c.Enqueue(context.Background(), EnqueueRequest{ParentRunID: "parent-1", AgentID: "child-3", Task: "t"}); err == nil {
		t.Fatalf("expected capacity rejection")
	}
	close(release)
}

func TestCancelQueuedRunNeverExecutes(t *testing.T) {
	var executed bool
	var mu sync.Mutex
	block := make(chan struct{})
	exec := func(_ context.Context, run *models.SubAgentRunState) (string, error) {
		mu.Lock()
		executed = true
		mu.Unlock()
		<-block
		return "ran", nil
	}
	cfg := testConfig()
	cfg.MaxConcurrency = 1
	c, err := NewCoordinator(cfg, NewMemoryStore(), exec, nil)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	// First run occupies the only slot.
	blocker, err := c.Enqueue(context.Background(), EnqueueRequest{AgentID: "blocker", Task: "t"})
	if err != nil {
		t.Fatalf("Enqueue blocker: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	queued, err := c.Enqueue(context.Background(), EnqueueRequest{AgentID: "waiter", Task: "t"})
	if err != nil {
		t.Fatalf("Enqueue waiter: %v", err)
	}
	if queued.Status != models.SubAgentQueued {
		t.Fatalf("expected waiter to still be queued, got %+v", queued)
	}

	cancelled, err := c.Cancel(context.Background(), queued.RunID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.Status != models.SubAgentCancelled {
		t.Fatalf("expected cancelled status, got %+v", cancelled)
	}

	close(block)
	final, err := c.Await(context.Background(), blocker.RunID, 2000)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if final.Status != models.SubAgentCompleted {
		t.Fatalf("expected blocker to complete, got %+v", final)
	}

	mu.Lock()
	defer mu.Unlock()
	_ = executed // blocker did execute; waiter must not have
	waiterAfter, err := c.Await(context.Background(), queued.RunID, 100)
	if err != nil {
		t.Fatalf("Await waiter: %v", err)
	}
	if waiterAfter.Status != models.SubAgentCancelled {
		t.Fatalf("expected waiter to remain cancelled, got %+v", waiterAfter)
	}
}

func TestRuntimeRejectsDepthLimitAndSelfSpawn(t *testing.T) {
	exec := func(_ context.Context, _ *models.SubAgentRunState) (string, error) { return "ok", nil }
	c, err := NewCoordinator(testConfig(), NewMemoryStore(), exec, nil)
	if err != nil {
		t.Fatalf("NewCoordinator: %v", err)
	}

	atLimit := &SubAgentRuntime{Coordinator: c, AgentID: "root", RunID: "run-root", Depth: c.cfg.MaxDepth}
	run, err := atLimit.spawn(context.Background(), "child", "task")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if run.Status != models.SubAgentFailed || run.Error != "Sub-agent depth limit reached" {
		t.Fatalf("expected depth-limit failure, got %+v", run)
	}

	selfSpawner := &SubAgentRuntime{Coordinator: c, AgentID: "root", RunID: "run-root", Depth: 0}
	run2, err := selfSpawner.spawn(context.Background(), "root", "task")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if run2.Status != models.SubAgentFailed || run2.Error == "" {
		t.Fatalf("expected self-spawn rejection, got %+v", run2)
	}
}

func TestFileStoreRoundTripsAndCoercesInterruptedRuns(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "subagent_runs.json")
	store := NewFileStore(path)

	now := time.Now()
	running := &models.SubAgentRunState{RunID: "r1", Status: models.SubAgentRunning, CreatedAt: now}
	if err := store.Save([]*models.SubAgentRunState{running}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	reloaded, err := NewFileStore(path).Load(DefaultConfig().FinishedRunRetentionMs)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(reloaded) != 1 || reloaded[0].Status != models.SubAgentFailed {
		t.Fatalf("expected interrupted run coerced to failed, got %+v", reloaded)
	}
}
