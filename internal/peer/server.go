// Package peer implements the task-management MCP server that mcphost
// drives over stdio.
package peer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"

	"github.com/mark3labs/mcp-go/server"

	"github.com/thellimist/mcphost/internal/taskstore"
)

const (
	Name    = "task-manager"
	Version = "1.0.0"
)

// Server exposes a task store as MCP tools, resources and resource
// templates.
type Server struct {
	store  *taskstore.Store
	logger *slog.Logger
	mcp    *server.MCPServer
}

func New(store *taskstore.Store, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		store:  store,
		logger: logger,
		mcp: server.NewMCPServer(Name, Version,
			server.WithToolCapabilities(false),
			server.WithResourceCapabilities(false, false),
			server.WithRecovery(),
		),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying server, for in-process transports.
func (s *Server) MCPServer() *server.MCPServer { return s.mcp }

// Serve answers requests read from in until ctx is done or in is
// exhausted. Responses are written to out, one JSON object per line.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(log.New(&logWriter{logger: s.logger}, "", 0))
	s.logger.Info("task peer serving on stdio", "name", Name, "version", Version)
	if err := stdio.Listen(ctx, in, out); err != nil && ctx.Err() == nil {
		return fmt.Errorf("serve stdio: %w", err)
	}
	return nil
}

// logWriter adapts the stdio server's *log.Logger output to slog.
type logWriter struct {
	logger *slog.Logger
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.logger.Warn("stdio server", "message", string(trimNewline(p)))
	return len(p), nil
}

func trimNewline(p []byte) []byte {
	for len(p) > 0 && (p[len(p)-1] == '\n' || p[len(p)-1] == '\r') {
		p = p[:len(p)-1]
	}
	return p
}

func marshalText(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
