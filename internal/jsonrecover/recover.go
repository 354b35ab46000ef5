// Package jsonrecover implements the JSON-with-recovery parser combinator
// used throughout the core to decode model output that is supposed to be
// JSON but frequently arrives wrapped in markdown fences, truncated, or
// lightly malformed. The same four-step recipe is reused for tool-call
// arguments, director decisions, and provider tool-call recovery:
//
//  1. direct parse;
//  2. escape unescaped control characters inside string literals and
//     retry;
//  3. walk to the first '{', depth-track quoted strings and escapes,
//     and extract the first balanced object;
//  4. re-run step 2 on the extracted object and parse once more.
package jsonrecover

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Decode attempts to unmarshal raw into v, recovering from common
// malformations before giving up.
func Decode(raw string, v any) error {
	trimmed := strings.TrimSpace(raw)
	trimmed = stripFences(trimmed)

	if err := json.Unmarshal([]byte(trimmed), v); err == nil {
		return nil
	}

	escaped := escapeControlChars(trimmed)
	if err := json.Unmarshal([]byte(escaped), v); err == nil {
		return nil
	}

	balanced, ok := ExtractBalancedObject(trimmed)
	if !ok {
		return fmt.Errorf("jsonrecover: no balanced JSON object found")
	}

	if err := json.Unmarshal([]byte(balanced), v); err == nil {
		return nil
	}

	reescaped := escapeControlChars(balanced)
	if err := json.Unmarshal([]byte(reescaped), v); err != nil {
		return fmt.Errorf("jsonrecover: all recovery stages failed: %w", err)
	}
	return nil
}

// stripFences removes a leading/trailing ```json or ``` markdown fence,
// the shape model output is most commonly wrapped in.
func stripFences(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimPrefix(s, "JSON")
	s = strings.TrimPrefix(s, "\n")
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}

// escapeControlChars escapes raw control characters (newlines, tabs,
// etc.) that appear inside string literals, which a well-formed JSON
// encoder would never emit but which model output frequently contains
// when echoing multi-line text in a string value.
func escapeControlChars(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 16)
	inString := false
	escapeNext := false
	for _, r := range s {
		if escapeNext {
			b.WriteRune(r)
			escapeNext = false
			continue
		}
		switch r {
		case '\\':
			if inString {
				escapeNext = true
			}
			b.WriteRune(r)
		case '"':
			inString = !inString
			b.WriteRune(r)
		case '\n':
			if inString {
				b.WriteString(`\n`)
			} else {
				b.WriteRune(r)
			}
		case '\r':
			if inString {
				b.WriteString(`\r`)
			} else {
				b.WriteRune(r)
			}
		case '\t':
			if inString {
				b.WriteString(`\t`)
			} else {
				b.WriteRune(r)
			}
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ExtractBalancedObject walks s to the first '{' and returns the first
// balanced JSON object, depth-tracking quoted strings and escapes so
// braces inside string literals don't confuse the scan.
func ExtractBalancedObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escapeNext := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if escapeNext {
			escapeNext = false
			continue
		}
		switch c {
		case '\\':
			if inString {
				escapeNext = true
			}
		case '"':
			inString = !inString
		case '{':
			if !inString {
				depth++
			}
		case '}':
			if !inString {
				depth--
				if depth == 0 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}
