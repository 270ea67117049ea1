package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Session sequences requests over a Channel. At most one request is in
// flight: Request holds the session until its response (or failure) is
// resolved.
type Session struct {
	channel Channel
	logger  *slog.Logger
	now     func() time.Time

	reqMu sync.Mutex // one request on the channel at a time

	mu           sync.Mutex // guards the fields below
	lastID       int64
	lastActivity time.Time
	initialized  bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionLogger sets the session logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// NewSession creates a session over ch. A nil ch yields a session whose
// requests fail with ErrChannelClosed.
func NewSession(ch Channel, opts ...SessionOption) *Session {
	s := &Session{
		channel: ch,
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastActivity = s.now()
	return s
}

// allocID increments the counter and returns the new value. Ids start at 1
// and are never reused within a session.
func (s *Session) allocID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastID++
	return s.lastID
}

// LastID returns the most recently issued correlation id, 0 if none.
func (s *Session) LastID() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastID
}

// LastActivity returns the time of the last completed send+receive pair.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Initialized reports whether the handshake succeeded on this session.
func (s *Session) Initialized() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.initialized
}

func (s *Session) markInitialized() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.initialized = true
	s.lastActivity = s.now()
}

func (s *Session) touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = s.now()
}

// Request sends method with params and waits for the matching response.
// The returned envelope may be an error response; transport and framing
// failures come back as errors wrapping ErrChannelClosed or
// ErrMalformedMessage.
//
// Responses to earlier, abandoned requests are dropped. Messages initiated
// by the peer are skipped.
func (s *Session) Request(ctx context.Context, method string, params any) (*Envelope, error) {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	if s.channel == nil {
		return nil, fmt.Errorf("%s: %w", method, ErrChannelClosed)
	}

	id := s.allocID()
	req, err := NewRequest(id, method, params)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	line, err := Encode(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	s.logger.Debug("rpc send", "id", id, "method", method)
	if err := s.channel.Send(line); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	for {
		raw, err := s.channel.Receive(ctx)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}
		resp, err := Decode(raw)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}
		if resp.IsRequest() {
			s.logger.Debug("skipping peer-initiated message", "method", resp.Method)
			continue
		}
		if err := resp.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", method, err)
		}

		switch {
		case resp.ID == nil || *resp.ID == id:
			// A null id is only valid on error responses; with one request
			// in flight it can only belong to this one.
			s.touch()
			s.logger.Debug("rpc receive", "id", id, "method", method, "error", resp.Error != nil)
			return resp, nil
		case *resp.ID > 0 && *resp.ID < id:
			s.logger.Warn("dropping stale response", "id", *resp.ID, "want", id, "method", method)
			continue
		default:
			return nil, fmt.Errorf("%s: %w: unexpected correlation id %d (want %d)", method, ErrMalformedMessage, *resp.ID, id)
		}
	}
}

// Notify sends a notification. No response is awaited.
func (s *Session) Notify(method string, params any) error {
	s.reqMu.Lock()
	defer s.reqMu.Unlock()

	if s.channel == nil {
		return fmt.Errorf("%s: %w", method, ErrChannelClosed)
	}
	env, err := NewNotification(method, params)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	line, err := Encode(env)
	if err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	if err := s.channel.Send(line); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}
