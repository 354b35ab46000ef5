package hooks

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/agentcore/runtime/pkg/models"
)

// Runtime Hook Bus topics, one per Agent Turn Engine suspension point
// subscribers can observe or mutate.
const (
	TopicPromptBefore   = "prompt_before"
	TopicPromptAfter    = "prompt_after"
	TopicToolBefore     = "tool_before"
	TopicToolAfter      = "tool_after"
	TopicResponseStream = "response_stream"
	TopicRunEnd         = "run_end"
)

// PromptBeforePayload is delivered on TopicPromptBefore. Subscribers
// may append to Appendices and/or rewrite *SystemPrompt in place.
type PromptBeforePayload struct {
	RunID           string
	AgentID         string
	SystemPrompt    *string
	UserPrompt      string
	ContextMessages []models.Message
	Appendices      *[]string
}

// PromptAfterPayload is delivered on TopicPromptAfter. Subscribers may
// replace *Prompt with a different final system prompt.
type PromptAfterPayload struct {
	RunID   string
	AgentID string
	Prompt  *string
}

// ToolBeforePayload is delivered on TopicToolBefore.
type ToolBeforePayload struct {
	RunID    string
	ToolID   string
	ToolName string
	Args     map[string]any
}

// ToolAfterPayload is delivered on TopicToolAfter.
type ToolAfterPayload struct {
	RunID      string
	ToolID     string
	Result     *models.ToolResult
	DurationMs int64
}

// ResponseStreamPayload is delivered on TopicResponseStream.
type ResponseStreamPayload struct {
	RunID      string
	Chunk      string
	ChunkIndex int
	Metadata   map[string]any
}

// RunEndPayload is delivered on TopicRunEnd.
type RunEndPayload struct {
	RunID      string
	Status     string
	DurationMs int64
	Output     string
}

// RuntimeBus adapts the priority-ordered Registry to the spec's fixed
// topic/payload pub-sub contract and satisfies
// models.RuntimeHookRegistry so it can be handed to tools via
// ExecutionContext without those tools importing this package.
type RuntimeBus struct {
	registry *Registry
}

// NewRuntimeBus wraps registry (or a fresh one, if nil) as a RuntimeBus.
func NewRuntimeBus(registry *Registry) *RuntimeBus {
	if registry == nil {
		registry = NewRegistry(nil)
	}
	return &RuntimeBus{registry: registry}
}

// Subscribe registers handler for topic, returning its registration id.
func (b *RuntimeBus) Subscribe(topic string, handler Handler, opts ...RegisterOption) string {
	return b.registry.Register(topic, handler, opts...)
}

// Unsubscribe removes a previously registered handler.
func (b *RuntimeBus) Unsubscribe(id string) bool {
	return b.registry.Unregister(id)
}

// Trigger dispatches payload to every subscriber of topic, in
// priority order. It satisfies models.RuntimeHookRegistry.
func (b *RuntimeBus) Trigger(ctx context.Context, topic string, payload any) error {
	event := &Event{
		Type:      EventType(topic),
		Timestamp: time.Now(),
		Context:   map[string]any{"payload": payload},
	}
	return b.registry.Trigger(ctx, event)
}

// PayloadFromEvent extracts the typed payload a RuntimeBus handler
// receives, returning false if the event carries none or a mismatched
// type.
func PayloadFromEvent[T any](event *Event) (T, bool) {
	var zero T
	if event == nil || event.Context == nil {
		return zero, false
	}
	v, ok := event.Context["payload"]
	if !ok {
		return zero, false
	}
	typed, ok := v.(T)
	return typed, ok
}

// RegisterSecretsRedaction subscribes a built-in handler that masks
// configured secret values in every outbound prompt, tool argument,
// and response chunk string before any other subscriber (or the
// provider) observes them.
func RegisterSecretsRedaction(bus *RuntimeBus, secretValues map[string]string) {
	mask := func(s string) string {
		for _, v := range secretValues {
			if v == "" {
				continue
			}
			s = strings.ReplaceAll(s, v, "[REDACTED]")
		}
		return s
	}

	bus.Subscribe(TopicPromptBefore, func(_ context.Context, event *Event) error {
		p, ok := PayloadFromEvent[*PromptBeforePayload](event)
		if !ok || p.SystemPrompt == nil {
			return nil
		}
		*p.SystemPrompt = mask(*p.SystemPrompt)
		return nil
	}, WithPriority(PriorityHighest), WithName("secrets-redaction"))

	bus.Subscribe(TopicResponseStream, func(_ context.Context, event *Event) error {
		p, ok := PayloadFromEvent[*ResponseStreamPayload](event)
		if !ok {
			return nil
		}
		p.Chunk = mask(p.Chunk)
		return nil
	}, WithPriority(PriorityHighest), WithName("secrets-redaction"))
}

// RuntimeObserver receives run/tool telemetry from the built-in
// observability subscriber, decoupling the hook bus from any
// particular metrics backend.
type RuntimeObserver interface {
	ObserveRunEnd(status string, durationMs int64)
	ObserveToolCall(toolID string, isError bool, durationMs int64)
}

// RegisterObservability subscribes a built-in handler recording
// counters, timings, and error rates for every tool call and run
// completion.
func RegisterObservability(bus *RuntimeBus, observer RuntimeObserver) {
	if observer == nil {
		return
	}
	bus.Subscribe(TopicToolAfter, func(_ context.Context, event *Event) error {
		p, ok := PayloadFromEvent[*ToolAfterPayload](event)
		if !ok {
			return nil
		}
		isError := p.Result == nil || !p.Result.OK
		observer.ObserveToolCall(p.ToolID, isError, p.DurationMs)
		return nil
	}, WithPriority(PriorityLow), WithName("observability"))

	bus.Subscribe(TopicRunEnd, func(_ context.Context, event *Event) error {
		p, ok := PayloadFromEvent[*RunEndPayload](event)
		if !ok {
			return nil
		}
		observer.ObserveRunEnd(p.Status, p.DurationMs)
		return nil
	}, WithPriority(PriorityLow), WithName("observability"))
}

// MemoryAppender appends one durable line to an agent's memory file.
type MemoryAppender interface {
	AppendMemoryLine(agentID, line string) error
}

// RegisterMemoryCapture subscribes a built-in handler that appends a
// durable summary line to the run's agent memory file on completion.
func RegisterMemoryCapture(bus *RuntimeBus, appender MemoryAppender, logger *slog.Logger) {
	if appender == nil {
		return
	}
	if logger == nil {
		logger = slog.Default()
	}
	bus.Subscribe(TopicRunEnd, func(_ context.Context, event *Event) error {
		p, ok := PayloadFromEvent[*RunEndPayload](event)
		if !ok {
			return nil
		}
		line := "[" + p.Status + "] " + strings.TrimSpace(p.Output)
		if err := appender.AppendMemoryLine(p.RunID, line); err != nil {
			logger.Warn("memory capture failed", "run_id", p.RunID, "error", err)
		}
		return nil
	}, WithPriority(PriorityLowest), WithName("memory-capture"))
}
