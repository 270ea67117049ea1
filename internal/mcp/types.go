package mcp

import (
	"encoding/json"
	"slices"
)

// ProtocolVersion is the MCP revision announced in the handshake.
const ProtocolVersion = "2024-11-05"

// MCP method names used by the engine.
const (
	MethodInitialize            = "initialize"
	MethodInitialized           = "notifications/initialized"
	MethodToolsList             = "tools/list"
	MethodToolsCall             = "tools/call"
	MethodResourcesList         = "resources/list"
	MethodResourceTemplatesList = "resources/templates/list"
	MethodResourcesRead         = "resources/read"
)

// InitializeParams holds the parameters for the MCP initialize request.
type InitializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      ClientInfo     `json:"clientInfo"`
}

// ClientInfo identifies the MCP client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult holds the result of a successful initialize request.
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ServerInfo      ServerInfo     `json:"serverInfo"`
}

// ServerInfo identifies the MCP server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name" yaml:"name"`
	Description string          `json:"description,omitempty" yaml:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty" yaml:"-"`
}

// Resource is a readable item advertised by the peer.
type Resource struct {
	URI         string `json:"uri" yaml:"uri"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
}

// ResourceTemplate is a parameterized resource URI pattern.
type ResourceTemplate struct {
	URITemplate string `json:"uriTemplate" yaml:"uriTemplate"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	MIMEType    string `json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
}

// Capabilities is the set of discovered tools, resources and templates.
// A snapshot is replaced wholesale on re-discovery and never mutated.
type Capabilities struct {
	Tools             []Tool             `json:"tools" yaml:"tools"`
	Resources         []Resource         `json:"resources" yaml:"resources"`
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates" yaml:"resourceTemplates"`
}

// Clone returns a copy that shares no slices with c.
func (c Capabilities) Clone() Capabilities {
	out := Capabilities{
		Tools:             slices.Clone(c.Tools),
		Resources:         slices.Clone(c.Resources),
		ResourceTemplates: slices.Clone(c.ResourceTemplates),
	}
	for i := range out.Tools {
		out.Tools[i].InputSchema = slices.Clone(out.Tools[i].InputSchema)
	}
	return out
}

// Tool returns the discovered tool with the given name.
func (c Capabilities) Tool(name string) (Tool, bool) {
	for _, t := range c.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// ToolNames returns the discovered tool names in discovery order.
func (c Capabilities) ToolNames() []string {
	names := make([]string, 0, len(c.Tools))
	for _, t := range c.Tools {
		names = append(names, t.Name)
	}
	return names
}

// ToolsListResult holds the result of a tools/list request.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ResourcesListResult holds the result of a resources/list request.
type ResourcesListResult struct {
	Resources []Resource `json:"resources"`
}

// ResourceTemplatesListResult holds the result of a resources/templates/list
// request.
type ResourceTemplatesListResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
}

// CallToolParams holds the parameters for tools/call.
type CallToolParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ReadResourceParams holds the parameters for resources/read.
type ReadResourceParams struct {
	URI string `json:"uri"`
}

// TextContent is one item of a tool result's content list or a resource's
// contents list. Only the text is consumed.
type TextContent struct {
	Type     string `json:"type,omitempty"`
	URI      string `json:"uri,omitempty"`
	MIMEType string `json:"mimeType,omitempty"`
	Text     string `json:"text"`
}

// CallToolResult is the result of tools/call.
type CallToolResult struct {
	Content []TextContent `json:"content"`
	IsError bool          `json:"isError,omitempty"`
}

// ToolResult is a tool call the peer answered with a result envelope.
type ToolResult struct {
	Tool string
	// Text is the text of the first content item, "" when there is none.
	Text string
	// IsError is set when the peer flagged the result as a tool failure.
	IsError bool
}

// Err returns a *ToolError matching ErrToolRejected when the result is
// flagged isError, and nil otherwise.
func (r *ToolResult) Err() error {
	if !r.IsError {
		return nil
	}
	text := r.Text
	if text == "" {
		text = "tool reported an error"
	}
	return &ToolError{Tool: r.Tool, Message: text, Attempts: 1, Err: &rejectedError{text: text}}
}

// ReadResourceResult is the result of resources/read.
type ReadResourceResult struct {
	Contents []TextContent `json:"contents"`
}
