package mcp

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrChannelClosed reports that a pipe to the peer is unavailable: the
	// process was never started, has exited, or the channel was closed.
	ErrChannelClosed = errors.New("channel closed")

	// ErrMalformedMessage reports an undecodable line or an envelope that
	// violates the request/response invariants.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrNotInitialized reports a call issued before the handshake completed.
	ErrNotInitialized = errors.New("session not initialized")

	// ErrUnknownTool reports a tool name absent from the discovered tool list.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrToolRejected is matched by ToolResult.Err for a result flagged
	// isError: the peer ran the call and refused it.
	ErrToolRejected = errors.New("tool rejected the call")
)

// JSON-RPC and MCP error codes.
const (
	CodeParseError       = -32700
	CodeInvalidRequest   = -32600
	CodeMethodNotFound   = -32601
	CodeInvalidParams    = -32602
	CodeInternalError    = -32603
	CodeResourceNotFound = -32002
)

// RPCError is the error object carried by an error response.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// UnknownToolError is returned by InvokeTool when the tool was not
// discovered. It never involves channel traffic.
type UnknownToolError struct {
	Name       string
	Suggestion string
	// Err is ErrNotInitialized when no session was ready to consult.
	Err error
}

func (e *UnknownToolError) Error() string {
	msg := fmt.Sprintf("unknown tool %q", e.Name)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

func (e *UnknownToolError) Is(target error) bool { return target == ErrUnknownTool }

func (e *UnknownToolError) Unwrap() error { return e.Err }

// HandshakeError reports a failed initialize exchange.
type HandshakeError struct {
	Err error
}

func (e *HandshakeError) Error() string { return "handshake: " + e.Err.Error() }

func (e *HandshakeError) Unwrap() error { return e.Err }

// ToolError is returned when a tool call failed on the peer or exhausted
// its attempts. Message is the last observed error message, verbatim.
type ToolError struct {
	Tool     string
	Message  string
	Code     int // peer error code, 0 when the failure was local
	Attempts int
	Err      error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s: %s", e.Tool, e.Message)
}

func (e *ToolError) Unwrap() error { return e.Err }

// ResourceError is returned when a resource read failed on the peer or
// exhausted its attempts.
type ResourceError struct {
	URI      string
	Message  string
	Code     int
	Attempts int
	Err      error
}

func (e *ResourceError) Error() string {
	return fmt.Sprintf("resource %s: %s", e.URI, e.Message)
}

func (e *ResourceError) Unwrap() error { return e.Err }

// rejectedError carries the text of an isError tool result.
type rejectedError struct {
	text string
}

func (e *rejectedError) Error() string { return e.text }

func (e *rejectedError) Is(target error) bool { return target == ErrToolRejected }

// PeerCode returns the error code reported by the peer somewhere in err's
// chain.
func PeerCode(err error) (int, bool) {
	var te *ToolError
	if errors.As(err, &te) && te.Code != 0 {
		return te.Code, true
	}
	var re *ResourceError
	if errors.As(err, &re) && re.Code != 0 {
		return re.Code, true
	}
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Code, true
	}
	return 0, false
}

// IsNotFound reports whether the peer answered that the target of a call
// does not exist: either the resource-not-found code, or a message
// containing "not found" from peers that do not send the code.
func IsNotFound(err error) bool {
	if code, ok := PeerCode(err); ok && code == CodeResourceNotFound {
		return true
	}
	var te *ToolError
	if errors.As(err, &te) {
		return containsNotFound(te.Message)
	}
	var re *ResourceError
	if errors.As(err, &re) {
		return containsNotFound(re.Message)
	}
	return false
}

// TODO: drop the message match once peers report CodeResourceNotFound.
func containsNotFound(msg string) bool {
	return strings.Contains(strings.ToLower(msg), "not found")
}

// failureDetail splits a call failure into the message and code reported
// to callers.
func failureDetail(err error) (string, int) {
	var rpcErr *RPCError
	if errors.As(err, &rpcErr) {
		return rpcErr.Message, rpcErr.Code
	}
	return err.Error(), 0
}
