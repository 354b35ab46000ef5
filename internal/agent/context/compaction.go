package context

import (
	"strconv"
	"strings"

	"github.com/agentcore/runtime/pkg/models"
)

// compactionSummaryHeader is the fixed content of the synthesized
// assistant message injected when turns are dropped to fit budget.
const compactionSummaryHeader = "[Context summary generated to fit model window]"

// maxCompactionSummaryLines bounds the synthesized summary body,
// independent of the header line.
const maxCompactionSummaryLines = 14

// turn is a contiguous run of messages starting at a user message and
// continuing up to (but not including) the next user message.
type turn struct {
	messages []models.Message
	tokens   int
}

// splitTurns partitions history into turns. Any leading messages
// before the first user message form an initial turn of their own so
// no message is dropped silently.
func splitTurns(history []models.Message) []turn {
	var turns []turn
	var current turn
	started := false

	flush := func() {
		if len(current.messages) > 0 {
			turns = append(turns, current)
		}
		current = turn{}
	}

	for _, m := range history {
		if m.Role == models.RoleUser {
			if started {
				flush()
			}
			started = true
		}
		current.messages = append(current.messages, m)
		current.tokens += EstimateMessageTokens(m)
	}
	flush()
	return turns
}

// BuildManagedHistory implements turn-boundary compaction: it fits
// history within budget tokens, synthesizing a staged summary message
// for any turns that had to be dropped.
//
// A "turn" starts at each user message and ends just before the next
// one. Turns are kept from newest to oldest while the running sum
// stays within budget; anything older is dropped and folded into a
// single synthesized assistant message prepended to the result. If
// the result is still over budget after that, it is right-truncated
// by token budget from the tail.
func BuildManagedHistory(history []models.Message, budget int) []models.Message {
	if budget <= 0 || len(history) == 0 {
		return history
	}

	turns := splitTurns(history)

	kept := make([]turn, 0, len(turns))
	dropped := make([]turn, 0)
	running := 0
	for i := len(turns) - 1; i >= 0; i-- {
		t := turns[i]
		if running+t.tokens > budget {
			dropped = append(dropped, t)
			continue
		}
		kept = append([]turn{t}, kept...)
		running += t.tokens
	}

	result := make([]models.Message, 0, len(history))
	if len(dropped) > 0 {
		// dropped was accumulated oldest-call-order from the newest
		// dropped turn to the oldest kept boundary; reverse it back
		// to chronological order before chunking.
		chron := make([]turn, len(dropped))
		for i, t := range dropped {
			chron[len(dropped)-1-i] = t
		}
		result = append(result, synthesizeSummary(chron, budget))
	}
	for _, t := range kept {
		result = append(result, t.messages...)
	}

	if totalTokens(result) > budget {
		result = rightTruncateByBudget(result, budget)
	}
	return result
}

func totalTokens(messages []models.Message) int {
	total := 0
	for _, m := range messages {
		total += EstimateMessageTokens(m)
	}
	return total
}

// synthesizeSummary chunks dropped turns by an average-turn-token
// budget and builds a single assistant message summarizing them in
// "Stage k:"/"Stage k end:" lines drawn from each chunk's first and
// last turn.
func synthesizeSummary(dropped []turn, budget int) models.Message {
	avgTurnTokens := budget / 4
	if avgTurnTokens <= 0 {
		avgTurnTokens = 1
	}

	var chunks [][]turn
	var current []turn
	currentTokens := 0
	for _, t := range dropped {
		if currentTokens > 0 && currentTokens+t.tokens > avgTurnTokens {
			chunks = append(chunks, current)
			current = nil
			currentTokens = 0
		}
		current = append(current, t)
		currentTokens += t.tokens
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}

	var lines []string
	lines = append(lines, compactionSummaryHeader)
	for i, chunk := range chunks {
		if len(lines) >= maxCompactionSummaryLines+1 {
			break
		}
		stage := i + 1
		first := chunk[0]
		last := chunk[len(chunk)-1]
		lines = append(lines, "Stage "+strconv.Itoa(stage)+": "+turnSnippet(first))
		if len(lines) >= maxCompactionSummaryLines+1 {
			break
		}
		lines = append(lines, "Stage "+strconv.Itoa(stage)+" end: "+turnSnippet(last))
	}

	return models.Message{
		Role:    models.RoleAssistant,
		Content: strings.Join(lines, "\n"),
	}
}

// turnSnippet renders a single-line snippet of a turn's first user
// message and first assistant reply, if present.
func turnSnippet(t turn) string {
	var user, assistant string
	for _, m := range t.messages {
		switch m.Role {
		case models.RoleUser:
			if user == "" {
				user = singleLine(m.Content)
			}
		case models.RoleAssistant:
			if assistant == "" {
				assistant = singleLine(m.Content)
			}
		}
	}
	switch {
	case user != "" && assistant != "":
		return user + " -> " + assistant
	case user != "":
		return user
	case assistant != "":
		return assistant
	default:
		return "(tool activity)"
	}
}

func singleLine(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	const max = 120
	if len(s) > max {
		s = s[:max] + "..."
	}
	return s
}

// rightTruncateByBudget drops messages from the front (oldest) until
// the remaining tail fits within budget tokens.
func rightTruncateByBudget(messages []models.Message, budget int) []models.Message {
	running := totalTokens(messages)
	start := 0
	for start < len(messages) && running > budget {
		running -= EstimateMessageTokens(messages[start])
		start++
	}
	return messages[start:]
}
