package mcp

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Default termination timeouts.
const (
	DefaultStopTimeout = 5 * time.Second
	DefaultKillTimeout = 2 * time.Second
)

// ProcessConfig describes the peer command.
type ProcessConfig struct {
	Command string
	Args    []string
	// Env entries are KEY=VALUE and override the parent environment.
	Env []string
	Dir string

	// StopTimeout bounds the wait after the graceful termination request.
	StopTimeout time.Duration
	// KillTimeout bounds the wait after the forced kill.
	KillTimeout time.Duration
}

func (c ProcessConfig) String() string {
	return strings.TrimSpace(c.Command + " " + strings.Join(c.Args, " "))
}

// Process supervises one peer child process and owns its pipes.
type Process struct {
	cfg     ProcessConfig
	cmd     *exec.Cmd
	channel *PipeChannel
	logger  *slog.Logger

	exited  chan struct{}
	waitErr error

	stopOnce sync.Once
}

// StartProcess launches the peer with stdin, stdout and stderr connected to
// pipes. The peer's stderr is forwarded to logger line by line.
func StartProcess(cfg ProcessConfig, logger *slog.Logger) (*Process, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("start process: empty command")
	}
	if cfg.StopTimeout <= 0 {
		cfg.StopTimeout = DefaultStopTimeout
	}
	if cfg.KillTimeout <= 0 {
		cfg.KillTimeout = DefaultKillTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = mergeEnv(os.Environ(), cfg.Env)
	cmd.Dir = cfg.Dir
	cmd.Stderr = &stderrLogger{logger: logger.With("stream", "stderr")}
	// Bounds Wait when a grandchild keeps stderr open after the peer exits.
	cmd.WaitDelay = cfg.KillTimeout

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}

	// stdout is an explicit os.Pipe rather than cmd.StdoutPipe: Wait closes
	// StdoutPipe readers as soon as the process exits, which could drop a
	// final response still buffered in the pipe.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		stdin.Close()
		return nil, fmt.Errorf("stdout pipe: %w", err)
	}
	cmd.Stdout = stdoutW

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdoutR.Close()
		stdoutW.Close()
		return nil, fmt.Errorf("start process: %w", err)
	}
	stdoutW.Close()

	p := &Process{
		cfg:     cfg,
		cmd:     cmd,
		channel: NewPipeChannel(stdin, stdoutR),
		logger:  logger,
		exited:  make(chan struct{}),
	}
	go func() {
		<-p.channel.Done()
		stdoutR.Close()
	}()
	go p.wait()

	logger.Info("peer process started", "command", cfg.String(), "pid", cmd.Process.Pid)
	return p, nil
}

func (p *Process) wait() {
	p.waitErr = p.cmd.Wait()
	close(p.exited)
	if p.waitErr != nil {
		p.logger.Debug("peer process exited", "pid", p.cmd.Process.Pid, "error", p.waitErr)
	} else {
		p.logger.Debug("peer process exited", "pid", p.cmd.Process.Pid)
	}
}

// Channel returns the line channel over the process's stdin and stdout.
func (p *Process) Channel() Channel { return p.channel }

// Exited is closed once the process has been reaped.
func (p *Process) Exited() <-chan struct{} { return p.exited }

// Alive reports whether the process is still running.
func (p *Process) Alive() bool {
	select {
	case <-p.exited:
		return false
	default:
		return true
	}
}

// PID returns the operating system process id.
func (p *Process) PID() int { return p.cmd.Process.Pid }

// Stop terminates the process: stdin is closed and SIGTERM sent, then after
// StopTimeout the process is killed and given KillTimeout to be reaped.
// Stop never fails; cleanup problems are logged. Calling Stop again is a
// no-op.
func (p *Process) Stop() {
	p.stopOnce.Do(p.stop)
}

func (p *Process) stop() {
	pid := p.cmd.Process.Pid
	p.logger.Info("stopping peer process", "pid", pid)

	if err := p.channel.Close(); err != nil {
		p.logger.Debug("close peer stdin", "pid", pid, "error", err)
	}
	if err := p.cmd.Process.Signal(syscall.SIGTERM); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Debug("signal peer process", "pid", pid, "error", err)
	}

	select {
	case <-p.exited:
		p.logger.Info("peer process stopped", "pid", pid)
		return
	case <-time.After(p.cfg.StopTimeout):
	}

	p.logger.Warn("peer process did not terminate, forcing kill", "pid", pid, "timeout", p.cfg.StopTimeout)
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		p.logger.Error("kill peer process", "pid", pid, "error", err)
	}

	select {
	case <-p.exited:
		p.logger.Info("peer process killed", "pid", pid)
	case <-time.After(p.cfg.KillTimeout):
		p.logger.Error("peer process still running after kill", "pid", pid, "timeout", p.cfg.KillTimeout)
	}
}

// stderrLogger forwards complete lines written by the peer to a logger.
type stderrLogger struct {
	logger *slog.Logger
	mu     sync.Mutex
	buf    []byte
}

func (w *stderrLogger) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf = append(w.buf, p...)
	for {
		i := bytes.IndexByte(w.buf, '\n')
		if i < 0 {
			break
		}
		if line := bytes.TrimSpace(w.buf[:i]); len(line) > 0 {
			w.logger.Debug("peer output", "line", string(line))
		}
		w.buf = w.buf[i+1:]
	}
	return len(p), nil
}

// mergeEnv merges base environment variables with overrides. If an override
// key already exists in base, the override value wins and keeps base's
// position.
func mergeEnv(base, overrides []string) []string {
	if len(overrides) == 0 {
		return base
	}
	env := make(map[string]string, len(base)+len(overrides))
	order := make([]string, 0, len(base)+len(overrides))

	for _, entries := range [][]string{base, overrides} {
		for _, entry := range entries {
			key, _, found := strings.Cut(entry, "=")
			if !found {
				continue
			}
			if _, exists := env[key]; !exists {
				order = append(order, key)
			}
			env[key] = entry
		}
	}

	result := make([]string, 0, len(order))
	for _, key := range order {
		result = append(result, env[key])
	}
	return result
}
