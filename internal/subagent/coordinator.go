package subagent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentcore/runtime/pkg/models"
)

// Executor runs one queued run to completion and returns its output.
// Bound by the embedder (see NewTurnEngineExecutor for the Agent Turn
// Engine adapter); the coordinator itself has no opinion on how a run
// is actually executed.
type Executor func(ctx context.Context, run *models.SubAgentRunState) (string, error)

// EnqueueRequest describes a new child run.
type EnqueueRequest struct {
	ParentRunID     string
	ParentAgentName string
	AgentID         string
	AgentName       string
	Task            string
	Depth           int
	TimeoutMs       int
	AwaitCompletion bool
}

// Coordinator is the durable, bounded FIFO queue of recursive child
// agent runs described by the Sub-Agent Coordinator.
type Coordinator struct {
	mu       sync.Mutex
	cfg      Config
	store    Store
	executor Executor
	logger   *slog.Logger

	runs    map[string]*models.SubAgentRunState
	queue   []string
	active  int
	waiters map[string][]chan *models.SubAgentRunState
}

// NewCoordinator loads the store's snapshot (sanitizing interrupted
// runs and pruning expired ones) and returns a ready Coordinator.
func NewCoordinator(cfg Config, store Store, executor Executor, logger *slog.Logger) (*Coordinator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Coordinator{
		cfg:      cfg,
		store:    store,
		executor: executor,
		logger:   logger.With("component", "subagent.coordinator"),
		runs:     make(map[string]*models.SubAgentRunState),
		waiters:  make(map[string][]chan *models.SubAgentRunState),
	}

	loaded, err := store.Load(cfg.FinishedRunRetentionMs)
	if err != nil {
		return nil, fmt.Errorf("subagent: loading store: %w", err)
	}
	for _, r := range loaded {
		c.runs[r.RunID] = r
		if r.Status == models.SubAgentQueued {
			c.queue = append(c.queue, r.RunID)
		}
	}
	if err := c.persistLocked(); err != nil {
		return nil, err
	}
	return c, nil
}

// Enqueue creates a queued run for agentID, rejecting it if the parent
// already has Config.MaxActiveRunsPerParent non-terminal runs. If
// req.AwaitCompletion is set, Enqueue blocks until the run reaches a
// terminal status or its timeout elapses.
func (c *Coordinator) Enqueue(ctx context.Context, req EnqueueRequest) (*models.SubAgentRunState, error) {
	c.mu.Lock()
	if req.ParentRunID != "" {
		active := 0
		for _, r := range c.runs {
			if r.ParentRunID == req.ParentRunID && !r.Status.IsTerminal() {
				active++
			}
		}
		if active >= c.cfg.MaxActiveRunsPerParent {
			c.mu.Unlock()
			return nil, fmt.Errorf("subagent: parent %s already has %d active runs", req.ParentRunID, c.cfg.MaxActiveRunsPerParent)
		}
	}

	task := req.Task
	if len(task) > c.cfg.MaxTaskChars {
		task = task[:c.cfg.MaxTaskChars]
	}

	run := &models.SubAgentRunState{
		RunID:           uuid.NewString(),
		ParentRunID:     req.ParentRunID,
		ParentAgentName: req.ParentAgentName,
		Status:          models.SubAgentQueued,
		AgentID:         req.AgentID,
		AgentName:       req.AgentName,
		Task:            task,
		Depth:           req.Depth,
		CreatedAt:       time.Now(),
	}
	c.runs[run.RunID] = run
	c.queue = append(c.queue, run.RunID)
	if err := c.persistLocked(); err != nil {
		c.mu.Unlock()
		return nil, err
	}
	c.mu.Unlock()

	c.pumpQueue(ctx)

	if !req.AwaitCompletion {
		c.mu.Lock()
		snap := run.Clone()
		c.mu.Unlock()
		return snap, nil
	}

	timeout := req.TimeoutMs
	if timeout <= 0 {
		timeout = c.cfg.DefaultTimeoutMs
	}
	if timeout > c.cfg.MaxTimeoutMs {
		timeout = c.cfg.MaxTimeoutMs
	}
	return c.Await(ctx, run.RunID, timeout)
}

// pumpQueue dequeues runs while there is a free concurrency slot and
// the queue is non-empty, dispatching each to the executor in its own
// goroutine.
func (c *Coordinator) pumpQueue(ctx context.Context) {
	for {
		c.mu.Lock()
		if c.active >= c.cfg.MaxConcurrency || len(c.queue) == 0 {
			c.mu.Unlock()
			return
		}
		runID := c.queue[0]
		c.queue = c.queue[1:]
		run, ok := c.runs[runID]
		if !ok || run.Status != models.SubAgentQueued {
			c.mu.Unlock()
			continue
		}
		run.Status = models.SubAgentRunning
		started := time.Now()
		run.StartedAt = &started
		c.active++
		if err := c.persistLocked(); err != nil {
			c.logger.Error("persist after dequeue failed", "run_id", runID, "error", err)
		}
		c.mu.Unlock()

		go c.execute(ctx, run)
	}
}

func (c *Coordinator) execute(ctx context.Context, run *models.SubAgentRunState) {
	output, runErr := c.invokeExecutor(ctx, run)

	c.mu.Lock()
	if run.Status == models.SubAgentCancelled {
		// Already cancelled while in flight: discard the result, the
		// terminal state and waiters were already handled by Cancel.
		c.active--
		c.mu.Unlock()
		c.pumpQueue(ctx)
		return
	}

	finished := time.Now()
	if runErr != nil {
		run.Status = models.SubAgentFailed
		run.Error = runErr.Error()
	} else {
		if len(output) > c.cfg.MaxRunOutputChars {
			output = output[:c.cfg.MaxRunOutputChars] + fmt.Sprintf("\n\n[truncated: output exceeded %d chars]", c.cfg.MaxRunOutputChars)
		}
		run.Status = models.SubAgentCompleted
		run.Output = output
	}
	run.FinishedAt = &finished
	c.active--
	if err := c.persistLocked(); err != nil {
		c.logger.Error("persist after run completion failed", "run_id", run.RunID, "error", err)
	}
	waiters := c.waiters[run.RunID]
	delete(c.waiters, run.RunID)
	snapshot := run.Clone()
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- snapshot
	}
	c.pumpQueue(ctx)
}

func (c *Coordinator) invokeExecutor(ctx context.Context, run *models.SubAgentRunState) (out string, runErr error) {
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("sub-agent run panicked: %v", r)
		}
	}()
	return c.executor(ctx, run)
}

// Await blocks until run reaches a terminal status or timeoutMs
// elapses, whichever comes first, returning the run's current
// (possibly non-terminal) state.
func (c *Coordinator) Await(ctx context.Context, runID string, timeoutMs int) (*models.SubAgentRunState, error) {
	c.mu.Lock()
	run, ok := c.runs[runID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("subagent: run %s not found", runID)
	}
	if run.Status.IsTerminal() {
		snap := run.Clone()
		c.mu.Unlock()
		return snap, nil
	}
	ch := make(chan *models.SubAgentRunState, 1)
	c.waiters[runID] = append(c.waiters[runID], ch)
	c.mu.Unlock()

	if timeoutMs <= 0 {
		timeoutMs = c.cfg.DefaultTimeoutMs
	}
	timer := time.NewTimer(time.Duration(timeoutMs) * time.Millisecond)
	defer timer.Stop()

	select {
	case snap := <-ch:
		return snap, nil
	case <-timer.C:
		c.mu.Lock()
		snap := run.Clone()
		c.mu.Unlock()
		return snap, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel marks a non-terminal run cancelled, removing it from the
// queue if it hadn't started yet. In-flight work is not forcibly
// interrupted; its output is discarded when the executor returns
// because the run is already terminal by then.
func (c *Coordinator) Cancel(ctx context.Context, runID string) (*models.SubAgentRunState, error) {
	c.mu.Lock()
	run, ok := c.runs[runID]
	if !ok {
		c.mu.Unlock()
		return nil, fmt.Errorf("subagent: run %s not found", runID)
	}
	if run.Status.IsTerminal() {
		snap := run.Clone()
		c.mu.Unlock()
		return snap, nil
	}

	run.Status = models.SubAgentCancelled
	finished := time.Now()
	run.FinishedAt = &finished

	filtered := c.queue[:0]
	for _, id := range c.queue {
		if id != runID {
			filtered = append(filtered, id)
		}
	}
	c.queue = filtered

	if err := c.persistLocked(); err != nil {
		c.logger.Error("persist after cancel failed", "run_id", runID, "error", err)
	}
	waiters := c.waiters[runID]
	delete(c.waiters, runID)
	snap := run.Clone()
	c.mu.Unlock()

	for _, ch := range waiters {
		ch <- snap
	}
	return snap, nil
}

// ListForParent returns, newest-excluded-last, up to Config.MaxListedRuns
// runs whose ParentRunID matches parentRunID.
func (c *Coordinator) ListForParent(parentRunID string) ([]*models.SubAgentRunState, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out []*models.SubAgentRunState
	for _, r := range c.runs {
		if r.ParentRunID == parentRunID {
			out = append(out, r.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > c.cfg.MaxListedRuns {
		out = out[:c.cfg.MaxListedRuns]
	}
	return out, nil
}

// syntheticFailure records and returns an already-terminal failed run
// that never entered the queue, for depth-limit and self-spawn
// rejections.
func (c *Coordinator) syntheticFailure(parentRunID, parentAgentName, agentID, task string, depth int, reason string) *models.SubAgentRunState {
	now := time.Now()
	run := &models.SubAgentRunState{
		RunID:           uuid.NewString(),
		ParentRunID:     parentRunID,
		ParentAgentName: parentAgentName,
		Status:          models.SubAgentFailed,
		AgentID:         agentID,
		Task:            task,
		Depth:           depth,
		CreatedAt:       now,
		FinishedAt:      &now,
		Error:           reason,
	}
	c.mu.Lock()
	c.runs[run.RunID] = run
	if err := c.persistLocked(); err != nil {
		c.logger.Error("persist synthetic failure failed", "run_id", run.RunID, "error", err)
	}
	c.mu.Unlock()
	return run.Clone()
}

// persistLocked must be called with c.mu held.
func (c *Coordinator) persistLocked() error {
	runs := make([]*models.SubAgentRunState, 0, len(c.runs))
	for _, r := range c.runs {
		runs = append(runs, r)
	}
	return c.store.Save(runs)
}
