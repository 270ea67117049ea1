package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/thellimist/mcphost/internal/config"
	"github.com/thellimist/mcphost/internal/logging"
	"github.com/thellimist/mcphost/internal/mcp"
)

const selfCommand = "mcphost"

var appVersion = "dev"

func SetVersion(v string) {
	appVersion = v
}

var (
	flagConfig   string
	flagServer   string
	flagLogLevel string
	flagEnv      []string
)

var rootCmd = &cobra.Command{
	Use:   "mcphost",
	Short: "Drive an MCP server over stdio",
	Long: `mcphost runs an MCP server as a child process and talks to it over
line-delimited JSON-RPC on the child's stdin and stdout.

By default the server is the bundled task manager ("mcphost peer").`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&flagConfig, "config", "", "YAML config file (default ./"+config.DefaultConfigFile+" if present)")
	f.StringVar(&flagServer, "server", "", "shell command that spawns the MCP server")
	f.StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")
	f.StringSliceVar(&flagEnv, "env", nil, "environment variables for the server (KEY=VALUE, repeatable)")

	rootCmd.AddCommand(serveCmd, peerCmd, callCmd, readCmd, capabilitiesCmd, statusCmd)
	rootCmd.SetVersionTemplate(fmt.Sprintf("mcphost v%s\n", appVersion))
}

func Execute() error {
	rootCmd.Version = appVersion
	return rootCmd.Execute()
}

// loadConfig applies the global flags on top of the file and environment
// configuration.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagServer != "" {
		cfg.Server.Command = flagServer
	}
	if flagLogLevel != "" {
		cfg.Log.Level = flagLogLevel
	}
	cfg.Server.Env = append(cfg.Server.Env, flagEnv...)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	return logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format)
}

// managerConfig resolves the bundled peer command to this executable so
// the default works without mcphost on PATH.
func managerConfig(cfg *config.Config) (mcp.Config, error) {
	mcfg, err := cfg.ManagerConfig(appVersion)
	if err != nil {
		return mcp.Config{}, err
	}
	if mcfg.Process.Command == selfCommand {
		if self, err := os.Executable(); err == nil {
			mcfg.Process.Command = self
		}
	}
	return mcfg, nil
}

// connect starts a manager for cfg. Callers must Stop the returned
// manager.
func connect(ctx context.Context, cfg *config.Config) (*mcp.Manager, *slog.Logger, error) {
	logger, err := newLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	mcfg, err := managerConfig(cfg)
	if err != nil {
		return nil, nil, err
	}

	m := mcp.NewManager(mcfg, mcp.WithLogger(logger))
	if err := m.Start(ctx); err != nil {
		return nil, nil, err
	}
	return m, logger, nil
}
