package context

import (
	"strconv"

	"github.com/agentcore/runtime/pkg/models"
)

// roleOverheadTokens and perToolCallTokens are the fixed per-message
// accounting terms added on top of the character-based body estimate.
const (
	roleOverheadTokens = 8
	perToolCallTokens  = 10
)

// EstimateTokens implements tokens(text) = max(1, ceil(len(text)/4)),
// the budget proxy used throughout the Context Manager in place of a
// real tokenizer.
func EstimateTokens(text string) int {
	if text == "" {
		return 1
	}
	n := (len(text) + 3) / 4
	if n < 1 {
		return 1
	}
	return n
}

// EstimateMessageTokens estimates the accounted cost of a message:
// its body tokens, plus role overhead, plus perToolCallTokens for
// each tool call it carries.
func EstimateMessageTokens(m models.Message) int {
	total := EstimateTokens(m.Content) + roleOverheadTokens
	total += perToolCallTokens * len(m.ToolCalls)
	return total
}

// Long-message guard thresholds, applied to a single message body.
const (
	longMessageThreshold = 2800
	longMessageHead      = 1300
	longMessageTail      = 900
	longMessageHardCap   = 8000
)

// ApplyLongMessageGuard rewrites text exceeding longMessageThreshold
// chars to "head + marker + tail", capping the result at
// longMessageHardCap chars.
func ApplyLongMessageGuard(text string) string {
	if len(text) <= longMessageThreshold {
		return text
	}

	head := text[:longMessageHead]
	tail := text[len(text)-longMessageTail:]
	trimmed := len(text) - longMessageHead - longMessageTail
	marker := "[... trimmed middle (" + strconv.Itoa(trimmed) + " chars) ...]"

	out := head + marker + tail
	if len(out) > longMessageHardCap {
		out = out[:longMessageHardCap]
	}
	return out
}

// GuardMessage returns m with the long-message guard applied to its
// content, leaving m unmodified if no rewrite was needed.
func GuardMessage(m models.Message) models.Message {
	guarded := ApplyLongMessageGuard(m.Content)
	if guarded == m.Content {
		return m
	}
	out := m
	out.Content = guarded
	return out
}
