package mcp

import "context"

// Channel is a line-oriented duplex stream to a peer. Implementations
// assume a single writer and a single reader.
type Channel interface {
	// Send writes one line followed by a newline and flushes it.
	Send(line []byte) error
	// Receive blocks until a full line arrives, the stream closes
	// (ErrChannelClosed) or ctx is done.
	Receive(ctx context.Context) ([]byte, error)
	// Close releases the write side. Pending and later calls fail with
	// ErrChannelClosed.
	Close() error
}
