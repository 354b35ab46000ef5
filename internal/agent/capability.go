package agent

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// MinContextWindow and MinWarnContextWindow bound the context window the
// engine will accept for a model, per spec §4.2.
const (
	MinContextWindow     = 16000
	MinWarnContextWindow = 32000
)

// CapabilityMatrix holds per-(provider,model) knowledge of chat/tool/
// reasoning support and context windows, consulted at agent construction
// and before every provider call.
type CapabilityMatrix struct {
	models map[string]map[string]Model // provider -> modelID -> Model
}

// NewCapabilityMatrix builds a matrix from each provider's advertised
// Models(). Providers are consulted directly rather than via a separate
// static catalog so a newly wired provider's models are picked up
// without an engine change.
func NewCapabilityMatrix(providers []LLMProvider) *CapabilityMatrix {
	m := &CapabilityMatrix{models: make(map[string]map[string]Model)}
	for _, p := range providers {
		byID := make(map[string]Model)
		for _, model := range p.Models() {
			byID[model.ID] = model
		}
		m.models[p.Name()] = byID
	}
	return m
}

func (m *CapabilityMatrix) lookup(provider, model string) (Model, bool) {
	byID, ok := m.models[provider]
	if !ok {
		return Model{}, false
	}
	mm, ok := byID[model]
	return mm, ok
}

// IsKnownDeprecated reports whether (provider, model) is deprecated and,
// if so, returns the fallback model id to rewrite to.
func (m *CapabilityMatrix) IsKnownDeprecated(provider, model string) (fallback string, deprecated bool) {
	mm, ok := m.lookup(provider, model)
	if !ok || mm.DeprecatedFallback == "" {
		return "", false
	}
	return mm.DeprecatedFallback, true
}

// IsChatCapable filters out STT/TTS/embedding/moderation/guard models.
// Unknown models default to chat-capable (permissive default lets a
// freshly released model work before the catalog learns about it).
func (m *CapabilityMatrix) IsChatCapable(provider, model string) bool {
	mm, ok := m.lookup(provider, model)
	if !ok {
		return true
	}
	return mm.ChatCapable
}

// SupportsToolUse reports whether the model supports native tool calling.
func (m *CapabilityMatrix) SupportsToolUse(provider, model string) bool {
	mm, ok := m.lookup(provider, model)
	if !ok {
		return true
	}
	return mm.SupportsToolUse
}

// SupportsReasoningEffort reports whether the model accepts a reasoning
// budget; callers MUST force effort to "none" when this is false.
func (m *CapabilityMatrix) SupportsReasoningEffort(provider, model string) bool {
	mm, ok := m.lookup(provider, model)
	if !ok {
		return false
	}
	return mm.SupportsReasoningEffort
}

var contextWindowShorthand = regexp.MustCompile(`(?i)(\d+)\s*k\b`)
var contextWindowRawDigits = regexp.MustCompile(`\b(\d{4,6})\b`)

// ResolveContextWindow returns the model's context window, using the
// catalog entry if present, otherwise inferring from the model id: an
// "N k" token is read as N*1000; a raw 4-6 digit integer in
// [4096, 1_000_000] is used directly. Returns 0 if no window can be
// determined.
func (m *CapabilityMatrix) ResolveContextWindow(provider, model string) int {
	if mm, ok := m.lookup(provider, model); ok && mm.ContextWindow > 0 {
		return mm.ContextWindow
	}

	if match := contextWindowShorthand.FindStringSubmatch(model); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil {
			return n * 1000
		}
	}
	if match := contextWindowRawDigits.FindStringSubmatch(model); match != nil {
		if n, err := strconv.Atoi(match[1]); err == nil && n >= 4096 && n <= 1_000_000 {
			return n
		}
	}
	return 0
}

// ContextWindowError classifies the outcome of checking a resolved
// context window against the spec's floors.
type ContextWindowError struct {
	Window int
}

func (e *ContextWindowError) Error() string {
	return fmt.Sprintf("context window %d is below the minimum supported (%d)", e.Window, MinContextWindow)
}

// CheckContextWindow returns an error if window is below MinContextWindow,
// and a non-empty warning string (to append to the system prompt) if it
// is below MinWarnContextWindow.
func CheckContextWindow(window int) (warning string, err error) {
	if window < MinContextWindow {
		return "", &ContextWindowError{Window: window}
	}
	if window < MinWarnContextWindow {
		return fmt.Sprintf("Warning: this model's context window (%d tokens) is small; long tool outputs may be aggressively pruned.", window), nil
	}
	return "", nil
}

// NoCompatibleModelError is the synthesized error the engine surfaces
// when no candidate model survives the capability matrix.
type NoCompatibleModelError struct {
	Provider string
	Model    string
	Reason   string
}

func (e *NoCompatibleModelError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("Provider '%s' does not support native tool calling for this runtime", e.Provider)
}

// ResolveAgentModel applies the capability matrix at agent construction
// time: rewrites deprecated models to their fallback, and reports
// whether the resulting (provider, model) can serve a tool-bearing
// agent.
func (m *CapabilityMatrix) ResolveAgentModel(provider, model string, needsTools bool) (resolvedModel string, err error) {
	resolvedModel = model
	if fallback, deprecated := m.IsKnownDeprecated(provider, model); deprecated {
		resolvedModel = fallback
	}

	if !m.IsChatCapable(provider, resolvedModel) {
		return "", &NoCompatibleModelError{Provider: provider, Model: resolvedModel, Reason: fmt.Sprintf("Model '%s' does not support native tool calling", resolvedModel)}
	}

	if needsTools && !m.SupportsToolUse(provider, resolvedModel) {
		return "", &NoCompatibleModelError{Provider: provider, Model: resolvedModel, Reason: fmt.Sprintf("Model '%s' does not support native tool calling", resolvedModel)}
	}

	return resolvedModel, nil
}

// providerNameIsKnown is a small guard used by tests and the CLI to give
// a friendlier error than a nil-map lookup when a provider name is
// misspelled.
func providerNameIsKnown(m *CapabilityMatrix, provider string) bool {
	_, ok := m.models[strings.ToLower(provider)]
	return ok
}
