package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/thellimist/mcphost/internal/peer"
	"github.com/thellimist/mcphost/internal/taskstore"
)

var flagSeed bool

var peerCmd = &cobra.Command{
	Use:   "peer",
	Short: "Run the task manager MCP server on stdin/stdout",
	Long: `Run the bundled task manager as an MCP server speaking line-delimited
JSON-RPC on stdin and stdout. Logs go to stderr.

This is the default server started by the other commands.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runPeer,
}

func init() {
	peerCmd.Flags().BoolVar(&flagSeed, "seed", true, "load the sample tasks at startup")
}

func runPeer(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}

	store := taskstore.New()
	if flagSeed {
		if err := store.Seed(); err != nil {
			return err
		}
	}
	return peer.New(store, logger).Serve(ctx, os.Stdin, os.Stdout)
}
