package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/thellimist/mcphost/internal/api"
	"github.com/thellimist/mcphost/internal/logging"
)

var flagAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Connect to the server and expose it over a REST API",
	Long: `Start the MCP server, complete the handshake and serve the REST API
until interrupted.

Examples:
  # Bundled task server on the default address
  mcphost serve

  # Another server, listening on all interfaces
  mcphost serve --server "npx @modelcontextprotocol/server-everything" --addr :8080`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "HTTP listen address (overrides http.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if flagAddr != "" {
		cfg.HTTP.Addr = flagAddr
	}

	m, logger, err := connect(ctx, cfg)
	if err != nil {
		return err
	}
	defer m.Stop()

	gin.SetMode(gin.ReleaseMode)
	srv := &http.Server{
		Addr:    cfg.HTTP.Addr,
		Handler: api.NewServer(presetManager{m, cfg.Presets}, logger).Handler(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx := context.Background()
		if cfg.HTTP.ShutdownTimeout > 0 {
			var cancel context.CancelFunc
			shutdownCtx, cancel = context.WithTimeout(shutdownCtx, cfg.HTTP.ShutdownTimeout)
			defer cancel()
		}
		logger.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Error(logger, "http shutdown", err)
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	})
	return g.Wait()
}
