package tools

import (
	"sort"
	"strconv"
	"strings"
)

// Signature computes sig(toolId, args) = toolId + ":" + stableStringify(args),
// used by the Agent Turn Engine to detect and suppress duplicate tool
// calls within a run.
func Signature(toolID string, args map[string]any) string {
	return toolID + ":" + StableStringify(args)
}

// StableStringify serializes a decoded JSON value with object keys
// sorted lexicographically and arrays serialized in order, so that two
// argument maps differing only in key order produce identical output.
func StableStringify(v any) string {
	var b strings.Builder
	writeStable(&b, v)
	return b.String()
}

func writeStable(b *strings.Builder, v any) {
	switch val := v.(type) {
	case nil:
		b.WriteString("null")
	case bool:
		if val {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case string:
		b.WriteString(strconv.Quote(val))
	case float64:
		b.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	case int:
		b.WriteString(strconv.Itoa(val))
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			writeStable(b, val[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range val {
			if i > 0 {
				b.WriteByte(',')
			}
			writeStable(b, item)
		}
		b.WriteByte(']')
	default:
		b.WriteString(strconv.Quote(""))
	}
}
