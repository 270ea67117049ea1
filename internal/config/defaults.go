package config

import (
	"time"

	"github.com/thellimist/mcphost/internal/mcp"
)

// DefaultConfig returns the default configuration. The default peer is the
// bundled task server.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Command:     "mcphost peer",
			StopTimeout: mcp.DefaultStopTimeout,
			KillTimeout: mcp.DefaultKillTimeout,
		},
		Connect: ConnectConfig{
			Attempts:         mcp.DefaultConnectAttempts,
			Delay:            mcp.DefaultConnectDelay,
			HandshakeTimeout: mcp.DefaultHandshakeTimeout,
		},
		Retry: RetryConfig{
			Attempts:    mcp.DefaultMaxAttempts,
			Delay:       mcp.DefaultRetryDelay,
			CallTimeout: mcp.DefaultAttemptTimeout,
		},
		HTTP: HTTPConfig{
			Addr:            "127.0.0.1:8000",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
