package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var readCmd = &cobra.Command{
	Use:   "read <uri>",
	Short: "Read a resource and print its text",
	Long: `Start the server, read one resource and print the text of its first
content item.

Examples:
  mcphost read tasks://statistics
  mcphost read tasks://status/pending`,
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runRead,
}

func runRead(cmd *cobra.Command, args []string) error {
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

	text, err := m.ReadResource(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}
