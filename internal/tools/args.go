package tools

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/agentcore/runtime/internal/jsonrecover"
)

// ErrArgsNotObject is returned when tool arguments cannot be coerced
// into a JSON object.
var ErrArgsNotObject = errors.New("Tool arguments must decode to a JSON object.")

// ParseArguments accepts argumentsText as it arrives off the wire: a
// JSON object string (the normal case, parsed with recovery), an empty
// string (-> {}), or anything else, which fails.
func ParseArguments(argumentsText string) (map[string]any, error) {
	text := strings.TrimSpace(argumentsText)
	if text == "" {
		return map[string]any{}, nil
	}

	var direct map[string]any
	if err := json.Unmarshal([]byte(text), &direct); err == nil {
		return direct, nil
	}

	var recovered map[string]any
	if err := jsonrecover.Decode(text, &recovered); err == nil {
		return recovered, nil
	}

	return nil, ErrArgsNotObject
}
