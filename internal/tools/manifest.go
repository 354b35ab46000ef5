package tools

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// providerNamePattern is the character class every provider-facing tool
// name must satisfy.
var providerNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,63}$`)

var disallowedCharsPattern = regexp.MustCompile(`[^A-Za-z0-9_]`)
var repeatedUnderscorePattern = regexp.MustCompile(`_{2,}`)

const maxProviderNameLen = 64
const maxSanitizeAttempts = 10000

// ProviderTool is one provider-facing tool declaration: a sanitized,
// collision-free name plus the schema the provider sees.
type ProviderTool struct {
	Name        string
	Description string
	Parameters  InputSchema
}

// Manifest is the bidirectional mapping between provider-facing names
// and canonical tool ids produced by BuildManifest.
type Manifest struct {
	ProviderTools []ProviderTool
	nameToID      map[string]string
	idToName      map[string]string
}

// ResolveToolID resolves a provider-returned tool-call name back to the
// canonical tool id. Falls back to treating providerName as already a
// tool id or tool.Name() if the manifest's map misses — the spec's
// "resolveToolId falls back to matching by tool.id or tool.name".
func (m *Manifest) ResolveToolID(providerName string, reg *Registry) (string, bool) {
	if id, ok := m.nameToID[providerName]; ok {
		return id, true
	}
	if t, ok := reg.GetByID(providerName); ok {
		return t.ID(), true
	}
	for _, t := range reg.GetAll() {
		if t.Name() == providerName {
			return t.ID(), true
		}
	}
	return "", false
}

// sanitizeBaseName implements step 1 of the manifest algorithm: replace
// disallowed chars with '_', collapse repeats, strip leading/trailing
// '_', prepend "tool_" if the leading char isn't a letter or '_'.
func sanitizeBaseName(name string) string {
	s := disallowedCharsPattern.ReplaceAllString(name, "_")
	s = repeatedUnderscorePattern.ReplaceAllString(s, "_")
	s = strings.Trim(s, "_")
	if s == "" {
		s = "tool"
	}
	first := rune(s[0])
	if !((first >= 'A' && first <= 'Z') || (first >= 'a' && first <= 'z') || first == '_') {
		s = "tool_" + s
	}
	if len(s) > maxProviderNameLen {
		s = s[:maxProviderNameLen]
	}
	return s
}

// BuildManifest builds provider-facing tool declarations for tools,
// following the spec's sanitize/truncate/dedupe-with-suffix algorithm.
// Tools for which no valid name can be produced within 10,000 attempts
// are dropped with a warning.
func BuildManifest(toolList []Tool, logger *slog.Logger) *Manifest {
	if logger == nil {
		logger = slog.Default()
	}
	m := &Manifest{nameToID: make(map[string]string), idToName: make(map[string]string)}
	used := make(map[string]bool, len(toolList))

	for _, t := range toolList {
		base := sanitizeBaseName(t.Name())
		name, ok := disambiguate(base, used)
		if !ok {
			logger.Warn("dropping tool: no valid provider name within attempt budget", "tool_id", t.ID(), "tool_name", t.Name())
			continue
		}
		used[name] = true
		m.nameToID[name] = t.ID()
		m.idToName[t.ID()] = name
		m.ProviderTools = append(m.ProviderTools, ProviderTool{
			Name:        name,
			Description: t.Description(),
			Parameters:  t.InputSchema(),
		})
	}
	return m
}

// disambiguate appends "_2", "_3", ... to base until an unused name is
// found, reducing the base length as needed to stay within
// maxProviderNameLen, or reports failure after maxSanitizeAttempts tries.
func disambiguate(base string, used map[string]bool) (string, bool) {
	if !used[base] && providerNamePattern.MatchString(base) {
		return base, true
	}
	for n := 2; n < maxSanitizeAttempts; n++ {
		suffix := "_" + strconv.Itoa(n)
		candBase := base
		if len(candBase)+len(suffix) > maxProviderNameLen {
			candBase = candBase[:maxProviderNameLen-len(suffix)]
		}
		cand := candBase + suffix
		if !used[cand] && providerNamePattern.MatchString(cand) {
			return cand, true
		}
	}
	return "", false
}
