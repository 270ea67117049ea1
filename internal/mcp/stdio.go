package mcp

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
)

// PipeChannel implements Channel over a child process's stdin and stdout.
// One goroutine owns the read side for the channel's whole life, so giving
// up on a Receive never leaves a second reader competing for lines.
type PipeChannel struct {
	mu sync.Mutex // guards writes to w
	w  io.WriteCloser

	lines   chan []byte
	done    chan struct{} // closed when the read loop exits
	readErr error

	closed    chan struct{}
	closeOnce sync.Once
}

// NewPipeChannel starts reading r in the background. w is the peer's
// stdin, r its stdout.
func NewPipeChannel(w io.WriteCloser, r io.Reader) *PipeChannel {
	c := &PipeChannel{
		w:      w,
		lines:  make(chan []byte),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go c.readLoop(bufio.NewReader(r))
	return c
}

func (c *PipeChannel) readLoop(r *bufio.Reader) {
	defer close(c.done)
	for {
		line, err := r.ReadBytes('\n')
		if trimmed := bytes.TrimSpace(line); len(trimmed) > 0 {
			select {
			case c.lines <- trimmed:
			case <-c.closed:
				c.readErr = io.ErrClosedPipe
				return
			}
		}
		if err != nil {
			c.readErr = err
			return
		}
	}
}

// Send writes line plus a newline terminator. A trailing newline already
// present in line is not doubled.
func (c *PipeChannel) Send(line []byte) error {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	if bytes.IndexByte(line, '\n') >= 0 {
		return fmt.Errorf("%w: embedded newline", ErrMalformedMessage)
	}

	select {
	case <-c.closed:
		return ErrChannelClosed
	case <-c.done:
		return c.closedErr()
	default:
	}

	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.w.Write(buf); err != nil {
		return fmt.Errorf("%w: write to stdin: %w", ErrChannelClosed, err)
	}
	return nil
}

// Receive returns the next non-empty line from the peer.
func (c *PipeChannel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case line := <-c.lines:
		return line, nil
	case <-c.done:
		return nil, c.closedErr()
	case <-c.closed:
		return nil, ErrChannelClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close closes the peer's stdin. It is safe to call more than once.
func (c *PipeChannel) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		// Not under mu: closing must unblock a Send stuck on a full pipe.
		err = c.w.Close()
	})
	if errors.Is(err, io.ErrClosedPipe) {
		return nil
	}
	return err
}

// Done is closed once the peer's stdout has been drained.
func (c *PipeChannel) Done() <-chan struct{} { return c.done }

func (c *PipeChannel) closedErr() error {
	if c.readErr == nil || errors.Is(c.readErr, io.EOF) {
		return fmt.Errorf("%w: peer closed stdout", ErrChannelClosed)
	}
	return fmt.Errorf("%w: read from stdout: %w", ErrChannelClosed, c.readErr)
}
