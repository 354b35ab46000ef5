package tools

import "strings"

// Canonical tool ids. An implementation MAY extend this closed set but
// MUST reject unknown ids during canonicalization (spec §4.1).
const (
	CanonicalWebSearch    = "web_search"
	CanonicalShellExecute = "shell_execute"
	CanonicalMCPAll       = "mcp_all"
	CanonicalSubagents    = "subagents"
)

var closedSet = map[string]bool{
	CanonicalWebSearch:    true,
	CanonicalShellExecute: true,
	CanonicalMCPAll:       true,
	CanonicalSubagents:    true,
}

// legacyAliases collapses legacy/verbose ids seen in agent configs onto
// their canonical replacement.
var legacyAliases = map[string]string{
	"fs_read":        CanonicalMCPAll,
	"fs_write":       CanonicalMCPAll,
	"fs_list":        CanonicalMCPAll,
	"read_file":      CanonicalMCPAll,
	"write_file":     CanonicalMCPAll,
	"list_directory": CanonicalMCPAll,
	"execute_command": CanonicalShellExecute,
	"search_internet": CanonicalWebSearch,
}

// RegisterCanonicalID extends the closed set, per spec §4.1's "an
// implementation MAY extend the closed set". Used to admit ids like
// "mcp:<server>:<tool>" prefixes without listing every one individually
// — see IsExtendedAllowed.
func RegisterCanonicalID(id string) {
	closedSet[id] = true
}

// CanonicalizeToolIDs normalizes an agent's declared tool id list:
// lowercase + trim, collapse legacy aliases, filter against the closed
// set (plus any "mcp:" prefixed id, which the engine treats specially),
// dedupe while preserving first-seen order.
func CanonicalizeToolIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, raw := range ids {
		id := strings.ToLower(strings.TrimSpace(raw))
		if id == "" {
			continue
		}
		if alias, ok := legacyAliases[id]; ok {
			id = alias
		}
		if !closedSet[id] && !strings.HasPrefix(id, "mcp:") {
			continue
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// IsKnownCanonicalID reports whether id is accepted by CanonicalizeToolIDs.
func IsKnownCanonicalID(id string) bool {
	id = strings.ToLower(strings.TrimSpace(id))
	return closedSet[id] || strings.HasPrefix(id, "mcp:")
}
