package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/thellimist/mcphost/internal/mcp"
	"github.com/thellimist/mcphost/internal/toolfilter"
)

var (
	flagOutput       string
	flagIncludeTools string
	flagExcludeTools string
)

var capabilitiesCmd = &cobra.Command{
	Use:   "capabilities",
	Short: "List the tools, resources and resource templates of the server",
	Long: `Start the server, run discovery and print what it offers.

Examples:
  mcphost capabilities
  mcphost capabilities --output yaml --include-tools create_task,list_tasks`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runCapabilities,
}

func init() {
	f := capabilitiesCmd.Flags()
	f.StringVarP(&flagOutput, "output", "o", "json", "output format: json or yaml")
	f.StringVar(&flagIncludeTools, "include-tools", "", "only list these tools (comma-separated)")
	f.StringVar(&flagExcludeTools, "exclude-tools", "", "omit these tools (comma-separated)")
}

func runCapabilities(cmd *cobra.Command, args []string) error {
	include := toolfilter.ParseList(flagIncludeTools)
	exclude := toolfilter.ParseList(flagExcludeTools)
	if len(include) > 0 && len(exclude) > 0 {
		return toolfilter.ErrConflictingFilters
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, _, err := connect(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer m.Stop()

	caps := m.Capabilities()
	caps.Tools, err = toolfilter.Select(caps.Tools, func(t mcp.Tool) string { return t.Name }, include, exclude)
	if err != nil {
		return err
	}
	return writeOutput(cmd.OutOrStdout(), flagOutput, caps)
}

// writeOutput renders v as indented JSON or YAML.
func writeOutput(w io.Writer, format string, v any) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unknown output format %q (want json or yaml)", format)
}
