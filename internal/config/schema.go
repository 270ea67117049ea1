package config

import (
	"time"

	"github.com/thellimist/mcphost/internal/toolargs"
)

// Config is the full mcphost configuration.
type Config struct {
	// Peer process
	Server ServerConfig `yaml:"server" mapstructure:"server"`

	// Spawn and handshake attempts
	Connect ConnectConfig `yaml:"connect" mapstructure:"connect"`

	// Tool call and resource read attempts
	Retry RetryConfig `yaml:"retry" mapstructure:"retry"`

	// REST façade
	HTTP HTTPConfig `yaml:"http" mapstructure:"http"`

	Log LogConfig `yaml:"log" mapstructure:"log"`

	// Arguments merged into every tool call
	Presets toolargs.Presets `yaml:"presets" mapstructure:"presets"`
}

// ServerConfig describes how to launch the peer.
type ServerConfig struct {
	// Command is split shell-style into program and arguments.
	Command string `yaml:"command" mapstructure:"command" env:"MCPHOST_SERVER_COMMAND"`
	// Env entries are KEY=VALUE pairs added to the inherited environment.
	Env         []string      `yaml:"env" mapstructure:"env"`
	Dir         string        `yaml:"dir" mapstructure:"dir" env:"MCPHOST_SERVER_DIR"`
	StopTimeout time.Duration `yaml:"stop_timeout" mapstructure:"stop_timeout" env:"MCPHOST_STOP_TIMEOUT"`
	KillTimeout time.Duration `yaml:"kill_timeout" mapstructure:"kill_timeout" env:"MCPHOST_KILL_TIMEOUT"`
}

// ConnectConfig bounds Start.
type ConnectConfig struct {
	Attempts         int           `yaml:"attempts" mapstructure:"attempts" env:"MCPHOST_CONNECT_ATTEMPTS"`
	Delay            time.Duration `yaml:"delay" mapstructure:"delay" env:"MCPHOST_CONNECT_DELAY"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" mapstructure:"handshake_timeout" env:"MCPHOST_HANDSHAKE_TIMEOUT"`
}

// RetryConfig bounds each call.
type RetryConfig struct {
	Attempts int           `yaml:"attempts" mapstructure:"attempts" env:"MCPHOST_RETRY_ATTEMPTS"`
	Delay    time.Duration `yaml:"delay" mapstructure:"delay" env:"MCPHOST_RETRY_DELAY"`
	// CallTimeout bounds a single attempt; 0 waits forever.
	CallTimeout time.Duration `yaml:"call_timeout" mapstructure:"call_timeout" env:"MCPHOST_CALL_TIMEOUT"`
}

// HTTPConfig configures the REST façade.
type HTTPConfig struct {
	Addr            string        `yaml:"addr" mapstructure:"addr" env:"MCPHOST_HTTP_ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout" env:"MCPHOST_HTTP_SHUTDOWN_TIMEOUT"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level" env:"MCPHOST_LOG_LEVEL"`
	Format string `yaml:"format" mapstructure:"format" env:"MCPHOST_LOG_FORMAT"`
}
