package cmd

import (
	"encoding/json"
	"fmt"
	"maps"

	"github.com/spf13/cobra"

	"github.com/thellimist/mcphost/internal/mcp"
	"github.com/thellimist/mcphost/internal/toolargs"
)

var (
	flagArgs string
	flagSet  []string
)

var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Call a tool and print its result",
	Long: `Start the server, call one tool and print the text of its result.

Examples:
  mcphost call list_tasks
  mcphost call create_task --args '{"title":"Ship","description":"Tag the release"}'
  mcphost call create_task --set title=Ship --set description="Tag the release" --set priority=high

Values given with --set are typed from the tool's input schema and
override --args. Presets from the config file apply underneath both.`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCall,
}

func init() {
	callCmd.Flags().StringVar(&flagArgs, "args", "", "tool arguments as a JSON object")
	callCmd.Flags().StringArrayVar(&flagSet, "set", nil, "tool argument as key=value (repeatable)")
}

func runCall(cmd *cobra.Command, args []string) error {
	toolArgs, err := parseToolArgs(flagArgs)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	m, _, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer m.Stop()

	if len(flagSet) > 0 {
		toolArgs, err = applySet(m.Capabilities(), args[0], toolArgs, flagSet)
		if err != nil {
			return err
		}
	}

	res, err := presetManager{m, cfg.Presets}.CallTool(ctx, args[0], toolArgs)
	if err != nil {
		return err
	}
	// A result the tool flagged as an error exits non-zero with its text.
	if err := res.Err(); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.Text)
	return nil
}

func parseToolArgs(raw string) (map[string]any, error) {
	if raw == "" {
		return nil, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, fmt.Errorf("--args must be a JSON object: %w", err)
	}
	return args, nil
}

// applySet layers --set entries over args, typed by the tool's input
// schema when the server advertises the tool.
func applySet(caps mcp.Capabilities, tool string, args map[string]any, entries []string) (map[string]any, error) {
	var params []toolargs.Param
	if t, ok := caps.Tool(tool); ok {
		var err error
		if params, err = toolargs.Params(t.InputSchema); err != nil {
			return nil, err
		}
	}
	set, err := toolargs.ParseSet(entries, params)
	if err != nil {
		return nil, err
	}
	merged := make(map[string]any, len(args)+len(set))
	maps.Copy(merged, args)
	maps.Copy(merged, set)
	return merged, nil
}
