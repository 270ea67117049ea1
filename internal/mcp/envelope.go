package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// JSONRPCVersion is the only protocol version the codec speaks.
const JSONRPCVersion = "2.0"

// Envelope is a single JSON-RPC message. A request (or notification) has a
// Method and neither Result nor Error; a response has exactly one of Result
// or Error.
type Envelope struct {
	ProtocolVersion string
	ID              *int64
	Method          string
	Params          json.RawMessage
	Result          json.RawMessage
	Error           *RPCError
}

// wireEnvelope is the encoded form. Requests go out with the JSON-RPC field
// names.
type wireEnvelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *int64          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// inboundEnvelope accepts both the JSON-RPC names and the long-form
// protocolVersion/correlationId aliases.
type inboundEnvelope struct {
	JSONRPC         string          `json:"jsonrpc"`
	ProtocolVersion string          `json:"protocolVersion"`
	ID              json.RawMessage `json:"id"`
	CorrelationID   json.RawMessage `json:"correlationId"`
	Method          string          `json:"method"`
	Params          json.RawMessage `json:"params"`
	Result          json.RawMessage `json:"result"`
	Error           *RPCError       `json:"error"`
}

// NewRequest builds a request envelope with the given correlation id.
func NewRequest(id int64, method string, params any) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	env := &Envelope{ProtocolVersion: JSONRPCVersion, ID: &id, Method: method, Params: raw}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

// NewNotification builds a request envelope without a correlation id.
func NewNotification(method string, params any) (*Envelope, error) {
	raw, err := marshalParams(params)
	if err != nil {
		return nil, err
	}
	env := &Envelope{ProtocolVersion: JSONRPCVersion, Method: method, Params: raw}
	if err := env.Validate(); err != nil {
		return nil, err
	}
	return env, nil
}

// NewResult builds a success response.
func NewResult(id int64, result any) (*Envelope, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal result: %w", ErrMalformedMessage, err)
	}
	return &Envelope{ProtocolVersion: JSONRPCVersion, ID: &id, Result: raw}, nil
}

// NewErrorResponse builds an error response.
func NewErrorResponse(id int64, code int, message string) *Envelope {
	return &Envelope{
		ProtocolVersion: JSONRPCVersion,
		ID:              &id,
		Error:           &RPCError{Code: code, Message: message},
	}
}

func marshalParams(params any) (json.RawMessage, error) {
	if params == nil {
		return nil, nil
	}
	raw, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal params: %w", ErrMalformedMessage, err)
	}
	return raw, nil
}

// IsRequest reports whether the envelope carries a method. Notifications
// are requests without an id.
func (e *Envelope) IsRequest() bool { return e.Method != "" }

// Validate enforces the envelope invariants. An error response may carry a
// null id, as JSON-RPC allows when the peer could not read the request id.
func (e *Envelope) Validate() error {
	if e.ProtocolVersion == "" {
		return fmt.Errorf("%w: missing protocol version", ErrMalformedMessage)
	}
	hasResult := e.Result != nil
	hasError := e.Error != nil

	if e.Method != "" {
		if hasResult || hasError {
			return fmt.Errorf("%w: request %q cannot carry result or error", ErrMalformedMessage, e.Method)
		}
		return nil
	}

	switch {
	case hasResult && hasError:
		return fmt.Errorf("%w: response carries both result and error", ErrMalformedMessage)
	case !hasResult && !hasError:
		return fmt.Errorf("%w: response carries neither result nor error", ErrMalformedMessage)
	case hasResult && e.ID == nil:
		return fmt.Errorf("%w: result response without correlation id", ErrMalformedMessage)
	}
	return nil
}

// Encode validates env and renders it as one JSON line terminated by a
// single newline.
func Encode(env *Envelope) ([]byte, error) {
	if err := env.Validate(); err != nil {
		return nil, err
	}
	data, err := json.Marshal(wireEnvelope{
		JSONRPC: env.ProtocolVersion,
		ID:      env.ID,
		Method:  env.Method,
		Params:  env.Params,
		Result:  env.Result,
		Error:   env.Error,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}
	// encoding/json escapes control characters inside strings, so a
	// compact document never contains a raw newline.
	return append(data, '\n'), nil
}

// Decode parses exactly one line. It does not decide whether the message
// is a request or a response; callers inspect the fields.
func Decode(line []byte) (*Envelope, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return nil, fmt.Errorf("%w: empty line", ErrMalformedMessage)
	}

	var in inboundEnvelope
	if err := json.Unmarshal(line, &in); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedMessage, err)
	}

	version := in.JSONRPC
	if version == "" {
		version = in.ProtocolVersion
	}
	if version == "" {
		return nil, fmt.Errorf("%w: missing protocol version", ErrMalformedMessage)
	}

	rawID := in.ID
	if isAbsent(rawID) {
		rawID = in.CorrelationID
	}
	id, err := parseID(rawID)
	if err != nil && in.Method == "" {
		return nil, err
	}

	return &Envelope{
		ProtocolVersion: version,
		ID:              id,
		Method:          in.Method,
		Params:          in.Params,
		Result:          in.Result,
		Error:           in.Error,
	}, nil
}

func isAbsent(raw json.RawMessage) bool {
	return len(raw) == 0 || string(raw) == "null"
}

// parseID accepts integer ids and strings holding integers. Peer-initiated
// requests may use other id forms; those are reported as errors and the
// caller decides whether that matters.
func parseID(raw json.RawMessage) (*int64, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	var n int64
	if err := json.Unmarshal(raw, &n); err == nil {
		return &n, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return &n, nil
		}
	}
	return nil, fmt.Errorf("%w: unsupported correlation id %s", ErrMalformedMessage, raw)
}
