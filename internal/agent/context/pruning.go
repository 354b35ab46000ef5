package context

import (
	"strconv"
	"strings"
	"time"

	"github.com/agentcore/runtime/pkg/models"
)

// prunedMarkerPrefix tags an already-pruned tool result so it is
// never pruned a second time.
const prunedMarkerPrefix = "[Tool result pruned after cache expiry]"

// providerTTLs are the per-provider cache lifetimes tool results are
// assumed to remain inexpensive (already paid for by provider-side
// prompt caching) before pruning should consider them stale.
var providerTTLs = map[string]time.Duration{
	"openai":    300000 * time.Millisecond,
	"anthropic": 300000 * time.Millisecond,
	"google":    300000 * time.Millisecond,
	"groq":      180000 * time.Millisecond,
}

const defaultProviderTTL = 240000 * time.Millisecond

// ProviderTTL returns the cache TTL for a provider name, falling back
// to defaultProviderTTL for unrecognized providers.
func ProviderTTL(provider string) time.Duration {
	if ttl, ok := providerTTLs[strings.ToLower(provider)]; ok {
		return ttl
	}
	return defaultProviderTTL
}

// ApplyCacheAwarePruning replaces stale tool-role message content
// with a short marker when the accounted token total exceeds budget,
// walking tool results oldest-first and pruning until under budget or
// exhausted. insertedAt maps each tool-call id to the time its result
// was appended to history. Already-pruned entries are skipped.
func ApplyCacheAwarePruning(messages []models.Message, insertedAt map[string]time.Time, now time.Time, provider string, budget int) ([]models.Message, int) {
	if totalTokens(messages) <= budget {
		return messages, 0
	}

	ttl := ProviderTTL(provider)
	out := append([]models.Message(nil), messages...)
	pruned := 0

	for i := range out {
		if totalTokens(out) <= budget {
			break
		}
		m := out[i]
		if m.Role != models.RoleTool {
			continue
		}
		if strings.HasPrefix(m.Content, prunedMarkerPrefix) {
			continue
		}
		at, ok := insertedAt[m.ToolCallID]
		if !ok || now.Sub(at) < ttl {
			continue
		}
		name := m.Name
		if name == "" {
			name = m.ToolCallID
		}
		marker := prunedMarkerPrefix + " " + name + " (" + m.ToolCallID + "); original length=" + strconv.Itoa(len(m.Content)) + " chars."
		out[i].Content = marker
		pruned++
	}

	return out, pruned
}
