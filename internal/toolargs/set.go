package toolargs

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// parseValue attempts to parse a string as JSON. If parsing fails, the raw
// string is returned. This allows --set labels='["a","b"]' to produce a
// []any while --set org=acme stays a plain string.
func parseValue(raw string) any {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}

// ParseSet parses key=value entries into tool arguments. Each entry is
// split on the first '='. Keys found in params are converted to the
// property's type; other keys fall back to parseValue.
func ParseSet(entries []string, params []Param) (map[string]any, error) {
	byName := make(map[string]Param, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}

	args := make(map[string]any, len(entries))
	for _, entry := range entries {
		key, raw, ok := strings.Cut(entry, "=")
		if !ok {
			return nil, fmt.Errorf("toolargs: invalid --set %q: expected key=value", entry)
		}
		if key == "" {
			return nil, fmt.Errorf("toolargs: invalid --set %q: empty key", entry)
		}
		p, known := byName[key]
		if !known {
			args[key] = parseValue(raw)
			continue
		}
		v, err := convert(p, raw)
		if err != nil {
			return nil, fmt.Errorf("toolargs: --set %s: %w", key, err)
		}
		args[key] = v
	}
	return args, nil
}

func convert(p Param, raw string) (any, error) {
	switch p.Kind {
	case KindString:
		if len(p.Enum) > 0 && !slices.Contains(p.Enum, raw) {
			return nil, fmt.Errorf("%q is not one of %s", raw, strings.Join(p.Enum, ", "))
		}
		return raw, nil
	case KindInteger:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not an integer", raw)
		}
		return n, nil
	case KindNumber:
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("%q is not a number", raw)
		}
		return f, nil
	case KindBoolean:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return nil, fmt.Errorf("%q is not a boolean", raw)
		}
		return b, nil
	case KindStringArray:
		if strings.HasPrefix(raw, "[") {
			var vals []string
			if err := json.Unmarshal([]byte(raw), &vals); err != nil {
				return nil, fmt.Errorf("%q is not a string array: %w", raw, err)
			}
			return vals, nil
		}
		return splitList(raw), nil
	case KindIntArray:
		if strings.HasPrefix(raw, "[") {
			var vals []int64
			if err := json.Unmarshal([]byte(raw), &vals); err != nil {
				return nil, fmt.Errorf("%q is not an integer array: %w", raw, err)
			}
			return vals, nil
		}
		parts := splitList(raw)
		vals := make([]int64, 0, len(parts))
		for _, s := range parts {
			n, err := strconv.ParseInt(s, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("%q is not an integer", s)
			}
			vals = append(vals, n)
		}
		return vals, nil
	default:
		return parseValue(raw), nil
	}
}

func splitList(raw string) []string {
	vals := []string{}
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			vals = append(vals, s)
		}
	}
	return vals
}
