package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Connect defaults.
const (
	DefaultConnectAttempts  = 3
	DefaultConnectDelay     = time.Second
	DefaultHandshakeTimeout = 30 * time.Second
)

// State is the lifecycle state of a Manager.
type State int32

const (
	StateDisconnected State = iota
	StateConnecting
	StateReady
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// MarshalText renders the state by name.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Config configures a Manager.
type Config struct {
	Process    ProcessConfig
	ClientInfo ClientInfo

	// ConnectAttempts is the number of spawn+handshake attempts Start makes.
	ConnectAttempts int
	ConnectDelay    time.Duration
	// HandshakeTimeout bounds each handshake. Zero disables the bound.
	HandshakeTimeout time.Duration

	Retry RetryPolicy
}

// DefaultConfig returns a Config with the default attempt counts and
// timeouts. Process must still be filled in.
func DefaultConfig() Config {
	return Config{
		ClientInfo:       ClientInfo{Name: "mcphost", Version: "dev"},
		ConnectAttempts:  DefaultConnectAttempts,
		ConnectDelay:     DefaultConnectDelay,
		HandshakeTimeout: DefaultHandshakeTimeout,
		Retry:            DefaultRetryPolicy(),
	}
}

// Status is a point-in-time view of the manager.
type Status struct {
	Connected       bool      `json:"connected" yaml:"connected"`
	State           State     `json:"state" yaml:"state"`
	Initialized     bool      `json:"initialized" yaml:"initialized"`
	PeerAlive       bool      `json:"peer_alive" yaml:"peer_alive"`
	Command         string    `json:"command" yaml:"command"`
	Server          string    `json:"server,omitempty" yaml:"server,omitempty"`
	ServerVersion   string    `json:"server_version,omitempty" yaml:"server_version,omitempty"`
	LastActivity    time.Time `json:"last_activity" yaml:"last_activity"`
	Tools           int       `json:"tools" yaml:"tools"`
	Resources       int       `json:"resources" yaml:"resources"`
	Templates       int       `json:"resource_templates" yaml:"resource_templates"`
	Degraded        bool      `json:"degraded" yaml:"degraded"`
	DiscoveryErrors []string  `json:"discovery_errors,omitempty" yaml:"discovery_errors,omitempty"`
}

// peerProcess is the part of *Process the manager depends on.
type peerProcess interface {
	Channel() Channel
	Exited() <-chan struct{}
	Stop()
}

type spawnFunc func(ProcessConfig, *slog.Logger) (peerProcess, error)

func spawnProcess(cfg ProcessConfig, logger *slog.Logger) (peerProcess, error) {
	return StartProcess(cfg, logger)
}

// connection is one live process, its session and the capabilities
// discovered on it. A connection is never mutated after it is published;
// re-discovery publishes a new one sharing the process and session.
type connection struct {
	proc      peerProcess
	session   *Session
	caller    *Caller
	handshake *HandshakeResult

	// ctx is cancelled when the connection is torn down, aborting calls
	// and retry pauses in flight.
	ctx    context.Context
	cancel context.CancelFunc
}

func (c *connection) alive() bool {
	select {
	case <-c.proc.Exited():
		return false
	default:
		return true
	}
}

// bind returns a context that is done when either ctx or the connection is.
func (c *connection) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

// Manager owns at most one connection to the peer and serializes all calls
// on it.
type Manager struct {
	cfg    Config
	logger *slog.Logger
	spawn  spawnFunc
	sleep  func(context.Context, time.Duration) error

	mu   sync.Mutex // serializes Start, calls and teardown
	conn *connection

	state   atomic.Int32
	current atomic.Pointer[connection] // read without mu by Capabilities and Status
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger. It is passed on to the process,
// session and caller.
func WithLogger(l *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = l }
}

// NewManager returns a disconnected manager.
func NewManager(cfg Config, opts ...ManagerOption) *Manager {
	if cfg.ConnectAttempts < 1 {
		cfg.ConnectAttempts = 1
	}
	m := &Manager{
		cfg:    cfg,
		logger: slog.Default(),
		spawn:  spawnProcess,
		sleep:  sleepContext,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns the current lifecycle state.
func (m *Manager) State() State { return State(m.state.Load()) }

// Start spawns the peer and performs the handshake, making up to
// ConnectAttempts attempts ConnectDelay apart. The process of a failed
// attempt is stopped before the next one starts. Start on a ready manager
// does nothing.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.conn != nil {
		if m.conn.ctx.Err() == nil {
			return nil
		}
		// A concurrent Stop cancelled this connection but has not yet
		// taken mu to finish the teardown.
		m.teardown()
	}
	m.state.Store(int32(StateConnecting))

	var lastErr error
	for attempt := 1; attempt <= m.cfg.ConnectAttempts; attempt++ {
		conn, err := m.connect(ctx)
		if err == nil {
			m.conn = conn
			m.current.Store(conn)
			m.state.Store(int32(StateReady))
			m.logger.Info("peer connected", "command", m.cfg.Process.String(), "attempt", attempt)
			return nil
		}
		lastErr = err
		m.logger.Warn("connect attempt failed",
			"attempt", attempt,
			"max_attempts", m.cfg.ConnectAttempts,
			"error", err)

		if attempt < m.cfg.ConnectAttempts {
			if serr := m.sleep(ctx, m.cfg.ConnectDelay); serr != nil {
				lastErr = errors.Join(lastErr, serr)
				break
			}
		}
	}

	m.state.Store(int32(StateDisconnected))
	return fmt.Errorf("connect %q: %w", m.cfg.Process.String(), lastErr)
}

func (m *Manager) connect(ctx context.Context) (*connection, error) {
	proc, err := m.spawn(m.cfg.Process, m.logger)
	if err != nil {
		return nil, err
	}
	session := NewSession(proc.Channel(), WithSessionLogger(m.logger))

	hctx := ctx
	if m.cfg.HandshakeTimeout > 0 {
		var cancel context.CancelFunc
		hctx, cancel = context.WithTimeout(ctx, m.cfg.HandshakeTimeout)
		defer cancel()
	}
	hs, err := session.Handshake(hctx, m.cfg.ClientInfo)
	if err != nil {
		proc.Stop()
		return nil, err
	}

	cctx, cancel := context.WithCancel(context.Background())
	return &connection{
		proc:      proc,
		session:   session,
		caller:    m.newCaller(session, hs.Capabilities),
		handshake: hs,
		ctx:       cctx,
		cancel:    cancel,
	}, nil
}

func (m *Manager) newCaller(session *Session, caps Capabilities) *Caller {
	return NewCaller(session, caps, m.cfg.Retry, WithCallerLogger(m.logger), withSleep(m.sleep))
}

// Stop tears down the connection, if any. A call in flight is aborted and
// fails with the connection's error. Stop is safe to call repeatedly.
func (m *Manager) Stop() {
	// Cancel before taking mu so an in-flight call holding it unblocks.
	if conn := m.current.Load(); conn != nil {
		conn.cancel()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.teardown()
	m.state.Store(int32(StateDisconnected))
}

// teardown destroys the connection and the capabilities published with it.
// mu must be held.
func (m *Manager) teardown() {
	m.current.Store(nil)
	if m.conn == nil {
		return
	}
	m.conn.cancel()
	m.conn.proc.Stop()
	m.conn = nil
	m.logger.Info("peer disconnected")
}

// acquire locks mu and returns the live connection, or nil. The caller
// must unlock mu.
func (m *Manager) acquire() *connection {
	m.mu.Lock()
	if m.conn == nil || m.conn.ctx.Err() != nil {
		return nil
	}
	return m.conn
}

// InvokeTool calls a discovered tool. See Caller.InvokeTool.
func (m *Manager) InvokeTool(ctx context.Context, name string, args map[string]any) (string, error) {
	res, err := m.CallTool(ctx, name, args)
	if err != nil {
		return "", err
	}
	return res.Text, nil
}

// CallTool calls a discovered tool. See Caller.CallTool.
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (*ToolResult, error) {
	// Reject unknown tools without queueing behind a call in flight.
	snap := m.current.Load()
	if snap == nil {
		return nil, &UnknownToolError{Name: name, Err: ErrNotInitialized}
	}
	if _, ok := snap.handshake.Capabilities.Tool(name); !ok {
		return snap.caller.CallTool(ctx, name, args)
	}

	conn := m.acquire()
	defer m.mu.Unlock()
	if conn == nil {
		return nil, &UnknownToolError{Name: name, Err: ErrNotInitialized}
	}
	ctx, cancel := conn.bind(ctx)
	defer cancel()
	return conn.caller.CallTool(ctx, name, args)
}

// ReadResource reads a resource by URI. See Caller.ReadResource.
func (m *Manager) ReadResource(ctx context.Context, uri string) (string, error) {
	conn := m.acquire()
	defer m.mu.Unlock()
	if conn == nil {
		return "", fmt.Errorf("read resource %s: %w", uri, ErrNotInitialized)
	}
	ctx, cancel := conn.bind(ctx)
	defer cancel()
	return conn.caller.ReadResource(ctx, uri)
}

// Refresh re-runs capability discovery on the live connection and replaces
// the snapshot wholesale.
func (m *Manager) Refresh(ctx context.Context) error {
	conn := m.acquire()
	defer m.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("refresh: %w", ErrNotInitialized)
	}
	bctx, cancel := conn.bind(ctx)
	defer cancel()

	caps, errs := conn.session.Discover(bctx)
	hs := *conn.handshake
	hs.Capabilities = caps
	hs.DiscoveryErrors = errs

	next := *conn
	next.handshake = &hs
	next.caller = m.newCaller(conn.session, caps)
	m.conn = &next
	m.current.CompareAndSwap(conn, &next)
	return nil
}

// Capabilities returns a copy of the discovered capabilities. It never
// waits for a call in flight.
func (m *Manager) Capabilities() Capabilities {
	conn := m.current.Load()
	if conn == nil {
		return Capabilities{}
	}
	return conn.handshake.Capabilities.Clone()
}

// Status reports the connection state. It never waits for a call in
// flight.
func (m *Manager) Status() Status {
	st := Status{
		State:   m.State(),
		Command: m.cfg.Process.String(),
	}
	st.Connected = st.State == StateReady

	conn := m.current.Load()
	if conn == nil {
		return st
	}
	hs := conn.handshake
	st.Initialized = conn.session.Initialized()
	st.PeerAlive = conn.alive()
	st.Server = hs.Server.ServerInfo.Name
	st.ServerVersion = hs.Server.ServerInfo.Version
	st.LastActivity = conn.session.LastActivity()
	st.Tools = len(hs.Capabilities.Tools)
	st.Resources = len(hs.Capabilities.Resources)
	st.Templates = len(hs.Capabilities.ResourceTemplates)
	st.Degraded = hs.Degraded()
	st.DiscoveryErrors = append([]string(nil), hs.DiscoveryErrors...)
	return st
}
