// Package schema implements the Tool Abstraction's argument validation
// and coercion pass: required-property checking, primitive coercion
// (string -> number/boolean/integer, string -> array/object as a last
// resort), enum matching, and recursive object/array validation.
//
// After coercion the package compiles the tool's declared InputSchema
// to a JSON-Schema document and runs it through
// github.com/santhosh-tekuri/jsonschema/v5 as a final conformance
// check — the same schema library the teacher uses for its own
// websocket payload validation, here given the Tool Abstraction as its
// natural home.
package schema

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/agentcore/runtime/internal/tools"
)

// Result is the outcome of validating and coercing a tool's arguments.
type Result struct {
	OK             bool
	Errors         []string
	NormalizedArgs map[string]any
}

// Validate validates args against schema, coercing primitive values
// where unambiguous, and returns the normalized argument map.
func Validate(s tools.InputSchema, args map[string]any) Result {
	normalized := make(map[string]any, len(args))
	for k, v := range args {
		normalized[k] = v
	}

	var errs []string

	for _, req := range s.Required {
		if _, ok := normalized[req]; !ok {
			errs = append(errs, fmt.Sprintf("missing required property %q", req))
		}
	}

	if s.AdditionalProperties != nil && !*s.AdditionalProperties {
		for k := range normalized {
			if _, declared := s.Properties[k]; !declared {
				errs = append(errs, fmt.Sprintf("unexpected property %q", k))
				delete(normalized, k)
			}
		}
	}

	for name, prop := range s.Properties {
		v, present := normalized[name]
		if !present {
			continue
		}
		coerced, propErrs := coerceValue(name, prop, v)
		errs = append(errs, propErrs...)
		normalized[name] = coerced
	}

	if len(errs) > 0 {
		return Result{OK: false, Errors: errs}
	}

	if err := conformsToCompiledSchema(s, normalized); err != nil {
		return Result{OK: false, Errors: []string{err.Error()}}
	}

	return Result{OK: true, NormalizedArgs: normalized}
}

func coerceValue(path string, prop tools.SchemaProp, v any) (any, []string) {
	var errs []string

	switch prop.Type {
	case "number", "integer":
		switch val := v.(type) {
		case float64:
			if prop.Type == "integer" && val != float64(int64(val)) {
				errs = append(errs, fmt.Sprintf("%q must be an integer", path))
			}
			return val, errs
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%q must be a number", path))
				return v, errs
			}
			if prop.Type == "integer" && f != float64(int64(f)) {
				errs = append(errs, fmt.Sprintf("%q must be an integer", path))
			}
			return f, errs
		default:
			errs = append(errs, fmt.Sprintf("%q must be a number", path))
			return v, errs
		}

	case "boolean":
		switch val := v.(type) {
		case bool:
			return val, errs
		case string:
			switch strings.ToLower(strings.TrimSpace(val)) {
			case "true":
				return true, errs
			case "false":
				return false, errs
			default:
				errs = append(errs, fmt.Sprintf("%q must be a boolean", path))
				return v, errs
			}
		default:
			errs = append(errs, fmt.Sprintf("%q must be a boolean", path))
			return v, errs
		}

	case "string":
		if s, ok := v.(string); ok {
			if len(prop.Enum) > 0 && !enumContains(prop.Enum, s) {
				errs = append(errs, fmt.Sprintf("%q must be one of the declared enum values", path))
			}
			return s, errs
		}
		errs = append(errs, fmt.Sprintf("%q must be a string", path))
		return v, errs

	case "object":
		obj, ok := v.(map[string]any)
		if !ok {
			if s, ok := v.(string); ok {
				var parsed map[string]any
				if err := json.Unmarshal([]byte(s), &parsed); err == nil {
					obj = parsed
					ok = true
				}
			}
		}
		if !ok {
			errs = append(errs, fmt.Sprintf("%q must be an object", path))
			return v, errs
		}
		nested := tools.InputSchema{Type: "object", Properties: prop.Properties, Required: prop.Required}
		sub := Validate(nested, obj)
		if !sub.OK {
			for _, e := range sub.Errors {
				errs = append(errs, path+"."+e)
			}
			return v, errs
		}
		return sub.NormalizedArgs, errs

	case "array":
		arr, ok := v.([]any)
		if !ok {
			if s, ok := v.(string); ok {
				var parsed []any
				if err := json.Unmarshal([]byte(s), &parsed); err == nil {
					arr = parsed
					ok = true
				}
			}
		}
		if !ok {
			errs = append(errs, fmt.Sprintf("%q must be an array", path))
			return v, errs
		}
		if prop.Items == nil {
			return arr, errs
		}
		out := make([]any, len(arr))
		for i, item := range arr {
			coerced, itemErrs := coerceValue(fmt.Sprintf("%s[%d]", path, i), *prop.Items, item)
			errs = append(errs, itemErrs...)
			out[i] = coerced
		}
		return out, errs

	default:
		if len(prop.Enum) > 0 && !enumContains(prop.Enum, v) {
			errs = append(errs, fmt.Sprintf("%q must be one of the declared enum values", path))
		}
		return v, errs
	}
}

func enumContains(enum []any, v any) bool {
	for _, e := range enum {
		if fmt.Sprint(e) == fmt.Sprint(v) {
			return true
		}
	}
	return false
}

// conformsToCompiledSchema runs the normalized args through a compiled
// jsonschema.Schema as a final conformance check, catching anything the
// hand-written coercion pass above didn't (e.g. interactions between
// sibling constraints).
func conformsToCompiledSchema(s tools.InputSchema, args map[string]any) error {
	doc, err := json.Marshal(toJSONSchemaDoc(s))
	if err != nil {
		return nil // best-effort; skip conformance check on marshal failure
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("tool-args.json", strings.NewReader(string(doc))); err != nil {
		return nil // malformed schema shouldn't block execution; the coercion pass already validated
	}
	compiled, err := compiler.Compile("tool-args.json")
	if err != nil {
		return nil
	}

	argsJSON, err := json.Marshal(args)
	if err != nil {
		return nil
	}
	var decoded any
	if err := json.Unmarshal(argsJSON, &decoded); err != nil {
		return nil
	}
	if err := compiled.Validate(decoded); err != nil {
		return fmt.Errorf("schema conformance: %w", err)
	}
	return nil
}

func toJSONSchemaDoc(s tools.InputSchema) map[string]any {
	props := make(map[string]any, len(s.Properties))
	for name, p := range s.Properties {
		props[name] = schemaPropToDoc(p)
	}
	doc := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		doc["required"] = s.Required
	}
	if s.AdditionalProperties != nil {
		doc["additionalProperties"] = *s.AdditionalProperties
	}
	return doc
}

func schemaPropToDoc(p tools.SchemaProp) map[string]any {
	doc := map[string]any{}
	if p.Type != "" {
		doc["type"] = p.Type
	}
	if len(p.Enum) > 0 {
		doc["enum"] = p.Enum
	}
	if p.Items != nil {
		doc["items"] = schemaPropToDoc(*p.Items)
	}
	if len(p.Properties) > 0 {
		props := make(map[string]any, len(p.Properties))
		for k, v := range p.Properties {
			props[k] = schemaPropToDoc(v)
		}
		doc["properties"] = props
	}
	if len(p.Required) > 0 {
		doc["required"] = p.Required
	}
	return doc
}
