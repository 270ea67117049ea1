package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/spf13/viper"

	"github.com/thellimist/mcphost/internal/cmdline"
	"github.com/thellimist/mcphost/internal/logging"
	"github.com/thellimist/mcphost/internal/mcp"
)

// DefaultConfigFile is read from the working directory when no file is
// named explicitly.
const DefaultConfigFile = "mcphost.yaml"

// Load builds the configuration from defaults, then the YAML file at path
// (or DefaultConfigFile if present), then MCPHOST_* environment variables.
// A missing file is only an error when path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultConfigFile
	}
	if err := loadFile(path, cfg); err != nil {
		if explicit || !os.IsNotExist(err) {
			return nil, fmt.Errorf("load config %s: %w", path, err)
		}
	}

	if err := envdecode.Decode(cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("load config from environment: %w", err)
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	if _, err := os.Stat(path); err != nil {
		return err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return err
	}
	return v.Unmarshal(cfg)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if _, _, err := cmdline.Parse(c.Server.Command); err != nil {
		return fmt.Errorf("server.command: %w", err)
	}
	for _, kv := range c.Server.Env {
		if key, _, ok := strings.Cut(kv, "="); !ok || key == "" {
			return fmt.Errorf("server.env: %q is not KEY=VALUE", kv)
		}
	}
	if c.Connect.Attempts < 1 {
		return fmt.Errorf("connect.attempts must be at least 1, got %d", c.Connect.Attempts)
	}
	if c.Retry.Attempts < 1 {
		return fmt.Errorf("retry.attempts must be at least 1, got %d", c.Retry.Attempts)
	}
	durations := []struct {
		name string
		d    time.Duration
	}{
		{"server.stop_timeout", c.Server.StopTimeout},
		{"server.kill_timeout", c.Server.KillTimeout},
		{"connect.delay", c.Connect.Delay},
		{"connect.handshake_timeout", c.Connect.HandshakeTimeout},
		{"retry.delay", c.Retry.Delay},
		{"retry.call_timeout", c.Retry.CallTimeout},
		{"http.shutdown_timeout", c.HTTP.ShutdownTimeout},
	}
	for _, f := range durations {
		if f.d < 0 {
			return fmt.Errorf("%s must not be negative, got %s", f.name, f.d)
		}
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if err := c.Presets.Validate(); err != nil {
		return err
	}
	return nil
}

// ManagerConfig converts the configuration into connection manager
// settings.
func (c *Config) ManagerConfig(clientVersion string) (mcp.Config, error) {
	name, args, err := cmdline.Parse(c.Server.Command)
	if err != nil {
		return mcp.Config{}, fmt.Errorf("server.command: %w", err)
	}
	return mcp.Config{
		Process: mcp.ProcessConfig{
			Command:     name,
			Args:        args,
			Env:         c.Server.Env,
			Dir:         c.Server.Dir,
			StopTimeout: c.Server.StopTimeout,
			KillTimeout: c.Server.KillTimeout,
		},
		ClientInfo:       mcp.ClientInfo{Name: "mcphost", Version: clientVersion},
		ConnectAttempts:  c.Connect.Attempts,
		ConnectDelay:     c.Connect.Delay,
		HandshakeTimeout: c.Connect.HandshakeTimeout,
		Retry: mcp.RetryPolicy{
			MaxAttempts:    c.Retry.Attempts,
			Delay:          c.Retry.Delay,
			AttemptTimeout: c.Retry.CallTimeout,
		},
	}, nil
}
