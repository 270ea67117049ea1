package mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestEncodeRequest(t *testing.T) {
	req, err := NewRequest(1, "tools/call", CallToolParams{Name: "create_task", Arguments: map[string]any{"title": "a\nb"}})
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}
	line, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}

	if !bytes.HasSuffix(line, []byte("\n")) {
		t.Fatalf("encoded line %q does not end with a newline", line)
	}
	if n := bytes.Count(line, []byte("\n")); n != 1 {
		t.Errorf("encoded line has %d newlines, want 1", n)
	}

	var raw map[string]any
	if err := json.Unmarshal(line, &raw); err != nil {
		t.Fatalf("unmarshal encoded line: %v", err)
	}
	if raw["jsonrpc"] != "2.0" {
		t.Errorf("jsonrpc = %v, want %q", raw["jsonrpc"], "2.0")
	}
	if raw["id"] != float64(1) {
		t.Errorf("id = %v, want 1", raw["id"])
	}
	if raw["method"] != "tools/call" {
		t.Errorf("method = %v, want %q", raw["method"], "tools/call")
	}
	if _, ok := raw["result"]; ok {
		t.Error("request must not carry a result field")
	}
}

func TestEncodeNotificationOmitsID(t *testing.T) {
	env, err := NewNotification(MethodInitialized, nil)
	if err != nil {
		t.Fatalf("NewNotification() error: %v", err)
	}
	line, err := Encode(env)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	if strings.Contains(string(line), `"id"`) {
		t.Errorf("notification %s carries an id", line)
	}
	if strings.Contains(string(line), `"params"`) {
		t.Errorf("notification %s carries empty params", line)
	}
}

func TestValidateRejectsInvalidEnvelopes(t *testing.T) {
	id := int64(4)
	tests := []struct {
		name string
		env  Envelope
	}{
		{
			name: "missing version",
			env:  Envelope{ID: &id, Method: "ping"},
		},
		{
			name: "request with result",
			env:  Envelope{ProtocolVersion: "2.0", ID: &id, Method: "ping", Result: json.RawMessage(`{}`)},
		},
		{
			name: "response with result and error",
			env:  Envelope{ProtocolVersion: "2.0", ID: &id, Result: json.RawMessage(`{}`), Error: &RPCError{Code: 1, Message: "x"}},
		},
		{
			name: "response with neither",
			env:  Envelope{ProtocolVersion: "2.0", ID: &id},
		},
		{
			name: "result without id",
			env:  Envelope{ProtocolVersion: "2.0", Result: json.RawMessage(`{}`)},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if err := tc.env.Validate(); !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Validate() = %v, want ErrMalformedMessage", err)
			}
			if _, err := Encode(&tc.env); !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Encode() = %v, want ErrMalformedMessage", err)
			}
		})
	}
}

func TestValidateAllowsErrorWithNullID(t *testing.T) {
	env := Envelope{ProtocolVersion: "2.0", Error: &RPCError{Code: CodeParseError, Message: "parse error"}}
	if err := env.Validate(); err != nil {
		t.Errorf("Validate() error: %v", err)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name       string
		line       string
		wantID     int64
		wantNoID   bool
		wantMethod string
		wantResult string
		wantCode   int
	}{
		{
			name:       "json-rpc names",
			line:       `{"jsonrpc":"2.0","id":3,"result":{"ok":true}}`,
			wantID:     3,
			wantResult: `{"ok":true}`,
		},
		{
			name:       "long-form aliases",
			line:       `{"protocolVersion":"2.0","correlationId":2,"result":{"tools":[]}}`,
			wantID:     2,
			wantResult: `{"tools":[]}`,
		},
		{
			name:       "string id",
			line:       `{"jsonrpc":"2.0","id":"7","result":{}}`,
			wantID:     7,
			wantResult: `{}`,
		},
		{
			name:     "error with null id",
			line:     `{"jsonrpc":"2.0","id":null,"error":{"code":-32700,"message":"parse error"}}`,
			wantNoID: true,
			wantCode: CodeParseError,
		},
		{
			name:       "peer notification",
			line:       `{"jsonrpc":"2.0","method":"notifications/tools/list_changed"}`,
			wantNoID:   true,
			wantMethod: "notifications/tools/list_changed",
		},
		{
			name:       "peer request with opaque id",
			line:       `{"jsonrpc":"2.0","id":"abc-1","method":"ping"}`,
			wantNoID:   true,
			wantMethod: "ping",
		},
		{
			name:       "surrounding whitespace",
			line:       "  {\"jsonrpc\":\"2.0\",\"id\":1,\"result\":{}}\r\n",
			wantID:     1,
			wantResult: `{}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			env, err := Decode([]byte(tc.line))
			if err != nil {
				t.Fatalf("Decode() error: %v", err)
			}
			if env.ProtocolVersion != "2.0" {
				t.Errorf("ProtocolVersion = %q, want %q", env.ProtocolVersion, "2.0")
			}
			switch {
			case tc.wantNoID && env.ID != nil:
				t.Errorf("ID = %d, want none", *env.ID)
			case !tc.wantNoID && env.ID == nil:
				t.Errorf("ID = nil, want %d", tc.wantID)
			case !tc.wantNoID && *env.ID != tc.wantID:
				t.Errorf("ID = %d, want %d", *env.ID, tc.wantID)
			}
			if env.Method != tc.wantMethod {
				t.Errorf("Method = %q, want %q", env.Method, tc.wantMethod)
			}
			if string(env.Result) != tc.wantResult {
				t.Errorf("Result = %s, want %s", env.Result, tc.wantResult)
			}
			if tc.wantCode != 0 && (env.Error == nil || env.Error.Code != tc.wantCode) {
				t.Errorf("Error = %v, want code %d", env.Error, tc.wantCode)
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	tests := []struct {
		name string
		line string
	}{
		{"empty", ""},
		{"blank", "   \n"},
		{"not json", "hello world"},
		{"truncated", `{"jsonrpc":"2.0","id":1`},
		{"missing version", `{"id":1,"result":{}}`},
		{"response with bad id", `{"jsonrpc":"2.0","id":"x","result":{}}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Decode([]byte(tc.line)); !errors.Is(err, ErrMalformedMessage) {
				t.Errorf("Decode(%q) = %v, want ErrMalformedMessage", tc.line, err)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	req, err := NewRequest(42, MethodResourcesRead, ReadResourceParams{URI: "tasks://all"})
	if err != nil {
		t.Fatalf("NewRequest() error: %v", err)
	}
	line, err := Encode(req)
	if err != nil {
		t.Fatalf("Encode() error: %v", err)
	}
	got, err := Decode(line)
	if err != nil {
		t.Fatalf("Decode() error: %v", err)
	}

	if got.ID == nil || *got.ID != 42 {
		t.Fatalf("ID = %v, want 42", got.ID)
	}
	if got.Method != MethodResourcesRead {
		t.Errorf("Method = %q, want %q", got.Method, MethodResourcesRead)
	}
	var params ReadResourceParams
	if err := json.Unmarshal(got.Params, &params); err != nil {
		t.Fatalf("unmarshal params: %v", err)
	}
	if params.URI != "tasks://all" {
		t.Errorf("params.URI = %q, want %q", params.URI, "tasks://all")
	}
}

func TestNewRequestRejectsUnmarshalableParams(t *testing.T) {
	_, err := NewRequest(1, "tools/call", map[string]any{"f": func() {}})
	if !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("NewRequest() = %v, want ErrMalformedMessage", err)
	}
}

func TestNewRequestRejectsEmptyMethod(t *testing.T) {
	// With no method the envelope is a response lacking result and error.
	_, err := NewRequest(1, "", nil)
	if !errors.Is(err, ErrMalformedMessage) {
		t.Errorf("NewRequest() = %v, want ErrMalformedMessage", err)
	}
}
