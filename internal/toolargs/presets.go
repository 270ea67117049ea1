package toolargs

import (
	"fmt"
	"maps"
)

// Presets are arguments injected into every tool call. Global params are
// applied first, then tool-specific params override on conflict. Arguments
// supplied by the caller win over both.
type Presets struct {
	Global map[string]any            `yaml:"global" mapstructure:"global"`
	Tools  map[string]map[string]any `yaml:"tools" mapstructure:"tools"`
}

// Validate rejects empty param or tool names.
func (p Presets) Validate() error {
	for name := range p.Global {
		if name == "" {
			return fmt.Errorf("presets: global params contain an empty param name")
		}
	}
	for tool, params := range p.Tools {
		if tool == "" {
			return fmt.Errorf("presets: empty tool name")
		}
		for name := range params {
			if name == "" {
				return fmt.Errorf("presets: tool %q params contain an empty param name", tool)
			}
		}
	}
	return nil
}

// Empty reports whether no presets are configured.
func (p Presets) Empty() bool {
	return len(p.Global) == 0 && len(p.Tools) == 0
}

// Merge returns the preset params for a given tool.
func (p Presets) Merge(tool string) map[string]any {
	merged := make(map[string]any, len(p.Global))
	maps.Copy(merged, p.Global)
	maps.Copy(merged, p.Tools[tool])
	return merged
}

// Apply returns args layered over the presets for tool. args is not
// modified; with no presets it is returned as is.
func (p Presets) Apply(tool string, args map[string]any) map[string]any {
	if p.Empty() {
		return args
	}
	merged := p.Merge(tool)
	maps.Copy(merged, args)
	return merged
}
