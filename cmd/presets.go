package cmd

import (
	"context"

	"github.com/thellimist/mcphost/internal/mcp"
	"github.com/thellimist/mcphost/internal/toolargs"
)

// presetManager merges the configured presets into every tool call.
type presetManager struct {
	*mcp.Manager
	presets toolargs.Presets
}

func (p presetManager) CallTool(ctx context.Context, name string, args map[string]any) (*mcp.ToolResult, error) {
	return p.Manager.CallTool(ctx, name, p.presets.Apply(name, args))
}
