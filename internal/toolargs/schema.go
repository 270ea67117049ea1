// Package toolargs builds tool call arguments: typing key=value entries
// against a tool's input schema and applying configured presets.
package toolargs

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Kind is the argument type derived from a JSON Schema property.
type Kind string

const (
	KindString      Kind = "string"
	KindInteger     Kind = "integer"
	KindNumber      Kind = "number"
	KindBoolean     Kind = "boolean"
	KindStringArray Kind = "[]string"
	KindIntArray    Kind = "[]integer"
	// KindJSON is any other type; values are parsed as JSON.
	KindJSON Kind = "json"
)

// Param is one property of a tool's input schema.
type Param struct {
	Name        string
	Description string
	Required    bool
	Kind        Kind
	Default     any
	Enum        []string
}

// Params parses a JSON Schema inputSchema and returns one Param per
// property, required ones first, then by name.
//
// Edge cases:
//   - nil or empty inputSchema → returns empty slice, no error
//   - Missing "properties" → returns empty slice, no error
//   - Missing "type" on a property → defaults to string
func Params(inputSchema json.RawMessage) ([]Param, error) {
	if len(inputSchema) == 0 || string(inputSchema) == "null" {
		return nil, nil
	}

	var root map[string]any
	if err := json.Unmarshal(inputSchema, &root); err != nil {
		return nil, fmt.Errorf("toolargs: failed to parse inputSchema: %w", err)
	}

	properties, ok := root["properties"].(map[string]any)
	if !ok || len(properties) == 0 {
		return nil, nil
	}

	requiredSet := make(map[string]bool)
	if reqArr, ok := root["required"].([]any); ok {
		for _, v := range reqArr {
			if s, ok := v.(string); ok {
				requiredSet[s] = true
			}
		}
	}

	params := make([]Param, 0, len(properties))
	for name, propRaw := range properties {
		prop, ok := propRaw.(map[string]any)
		if !ok {
			continue
		}

		p := Param{
			Name:     name,
			Required: requiredSet[name],
			Kind:     KindString,
		}
		if desc, ok := prop["description"].(string); ok {
			p.Description = desc
		}
		if schemaType := prop["type"]; schemaType != nil {
			items, _ := prop["items"].(map[string]any)
			p.Kind = kindOf(schemaType, items)
		}
		if def, ok := prop["default"]; ok {
			p.Default = def
		}
		if enumRaw, ok := prop["enum"].([]any); ok {
			vals := make([]string, 0, len(enumRaw))
			for _, v := range enumRaw {
				vals = append(vals, fmt.Sprintf("%v", v))
			}
			p.Enum = vals
		}

		params = append(params, p)
	}

	sort.Slice(params, func(i, j int) bool {
		if params[i].Required != params[j].Required {
			return params[i].Required
		}
		return params[i].Name < params[j].Name
	})

	return params, nil
}

// kindOf maps a JSON Schema type (and optional items) to a Kind. A
// nullable type such as ["string", "null"] takes its first non-null entry.
func kindOf(schemaType any, items map[string]any) Kind {
	switch t := schemaType.(type) {
	case string:
		return singleKind(t, items)
	case []any:
		for _, v := range t {
			s, ok := v.(string)
			if ok && s != "null" {
				return singleKind(s, items)
			}
		}
		return KindString
	default:
		return KindString
	}
}

func singleKind(t string, items map[string]any) Kind {
	switch t {
	case "string":
		return KindString
	case "integer":
		return KindInteger
	case "number":
		return KindNumber
	case "boolean":
		return KindBoolean
	case "array":
		return arrayKind(items)
	default:
		return KindJSON
	}
}

func arrayKind(items map[string]any) Kind {
	if items == nil {
		return KindStringArray
	}
	switch items["type"] {
	case "string":
		return KindStringArray
	case "integer":
		return KindIntArray
	default:
		return KindJSON
	}
}
