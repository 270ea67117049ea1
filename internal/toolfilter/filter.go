package toolfilter

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConflictingFilters is returned when both an include and an exclude
// list are given.
var ErrConflictingFilters = errors.New("include and exclude filters cannot be used together")

// NotFoundError reports an included name that matches no item.
type NotFoundError struct {
	Name       string
	Available  []string
	Suggestion string
}

func (e *NotFoundError) Error() string {
	msg := fmt.Sprintf("tool '%s' not found on server. Available tools: %s",
		e.Name, strings.Join(e.Available, ", "))
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" Did you mean '%s'?", e.Suggestion)
	}
	return msg
}

// ParseList splits a comma-separated string into a deduplicated, trimmed
// list of names. Empty entries are removed and order is preserved (first
// occurrence wins on duplicates).
func ParseList(csv string) []string {
	var result []string
	seen := make(map[string]struct{})
	for _, p := range strings.Split(csv, ",") {
		name := strings.TrimSpace(p)
		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		result = append(result, name)
	}
	return result
}

// Select filters items by the name nameOf reports for each.
//
//   - Include mode keeps the named items, in include order. A name that
//     matches nothing is a *NotFoundError carrying a suggestion when one is
//     close.
//   - Exclude mode drops the named items and keeps the rest in order.
//     Excluding names that do not exist is not an error.
//   - With neither list, items is returned unchanged.
func Select[T any](items []T, nameOf func(T) string, include, exclude []string) ([]T, error) {
	if len(include) > 0 && len(exclude) > 0 {
		return nil, ErrConflictingFilters
	}
	if len(include) == 0 && len(exclude) == 0 {
		return items, nil
	}

	if len(include) > 0 {
		byName := make(map[string]T, len(items))
		available := make([]string, 0, len(items))
		for _, it := range items {
			n := nameOf(it)
			byName[n] = it
			available = append(available, n)
		}

		result := make([]T, 0, len(include))
		for _, name := range include {
			it, ok := byName[name]
			if !ok {
				return nil, &NotFoundError{
					Name:       name,
					Available:  available,
					Suggestion: SuggestTool(name, available),
				}
			}
			result = append(result, it)
		}
		return result, nil
	}

	drop := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		drop[name] = struct{}{}
	}
	result := make([]T, 0, len(items))
	for _, it := range items {
		if _, skip := drop[nameOf(it)]; !skip {
			result = append(result, it)
		}
	}
	return result, nil
}
