package cmd

import "github.com/spf13/cobra"

var statusCmd = &cobra.Command{
	Use:           "status",
	Short:         "Connect to the server and print the connection status",
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runStatus,
}

func init() {
	statusCmd.Flags().StringVarP(&flagOutput, "output", "o", "json", "output format: json or yaml")
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	m, _, err := connect(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer m.Stop()

	return writeOutput(cmd.OutOrStdout(), flagOutput, m.Status())
}
