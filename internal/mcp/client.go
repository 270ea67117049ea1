package mcp

import (
	"context"
	"encoding/json"
	"fmt"
)

// HandshakeResult is what the peer told us during the handshake.
type HandshakeResult struct {
	Server       InitializeResult
	Capabilities Capabilities
	// DiscoveryErrors lists the list requests that failed. Their
	// capability lists are left empty.
	DiscoveryErrors []string
}

// Degraded reports whether any discovery request failed.
func (r *HandshakeResult) Degraded() bool { return len(r.DiscoveryErrors) > 0 }

// Handshake performs the MCP initialize exchange, sends the
// notifications/initialized notification and discovers the peer's tools,
// resources and resource templates.
//
// Only the initialize exchange is fatal. Each list request is best-effort: a
// failure is logged and recorded in DiscoveryErrors.
func (s *Session) Handshake(ctx context.Context, info ClientInfo) (*HandshakeResult, error) {
	params := InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities: map[string]any{
			"tools":     map[string]any{},
			"resources": map[string]any{},
		},
		ClientInfo: info,
	}

	resp, err := s.Request(ctx, MethodInitialize, params)
	if err != nil {
		return nil, &HandshakeError{Err: err}
	}
	if resp.Error != nil {
		return nil, &HandshakeError{Err: fmt.Errorf("initialize: %w", resp.Error)}
	}

	var server InitializeResult
	if err := json.Unmarshal(resp.Result, &server); err != nil {
		return nil, &HandshakeError{Err: fmt.Errorf("initialize: unmarshal result: %w: %w", ErrMalformedMessage, err)}
	}

	s.markInitialized()
	s.logger.Info("session initialized",
		"server", server.ServerInfo.Name,
		"server_version", server.ServerInfo.Version,
		"protocol", server.ProtocolVersion)

	if err := s.Notify(MethodInitialized, nil); err != nil {
		return nil, &HandshakeError{Err: err}
	}

	caps, discoveryErrs := s.Discover(ctx)
	return &HandshakeResult{
		Server:          server,
		Capabilities:    caps,
		DiscoveryErrors: discoveryErrs,
	}, nil
}

// Discover lists the peer's tools, resources and resource templates. Each
// list is best-effort: a failed request leaves its list empty and adds an
// entry to the returned errors.
func (s *Session) Discover(ctx context.Context) (Capabilities, []string) {
	var errs []string
	failed := func(err error) {
		s.logger.Warn("capability discovery failed", "error", err)
		errs = append(errs, err.Error())
	}

	tools, err := list[ToolsListResult](ctx, s, MethodToolsList)
	if err != nil {
		failed(err)
	}
	resources, err := list[ResourcesListResult](ctx, s, MethodResourcesList)
	if err != nil {
		failed(err)
	}
	templates, err := list[ResourceTemplatesListResult](ctx, s, MethodResourceTemplatesList)
	if err != nil {
		failed(err)
	}

	s.logger.Info("capabilities discovered",
		"tools", len(tools.Tools),
		"resources", len(resources.Resources),
		"resource_templates", len(templates.ResourceTemplates))

	return Capabilities{
		Tools:             tools.Tools,
		Resources:         resources.Resources,
		ResourceTemplates: templates.ResourceTemplates,
	}, errs
}

// list sends a parameterless list request and decodes its result. The zero
// value is returned on any failure, never a partially decoded one.
func list[T any](ctx context.Context, s *Session, method string) (T, error) {
	var zero T
	resp, err := s.Request(ctx, method, nil)
	if err != nil {
		return zero, err
	}
	if resp.Error != nil {
		return zero, fmt.Errorf("%s: %w", method, resp.Error)
	}
	var out T
	if err := json.Unmarshal(resp.Result, &out); err != nil {
		return zero, fmt.Errorf("%s: unmarshal result: %w: %w", method, ErrMalformedMessage, err)
	}
	return out, nil
}
