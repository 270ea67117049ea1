// Package main implements a minimal MCP stdio server for E2E testing.
// echo_params echoes the received params as JSON text content, allowing
// tests to assert exactly which params were sent. flaky fails with a
// JSON-RPC error until it has been called FLAKY_FAILURES times.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync/atomic"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

func main() {
	failures, _ := strconv.Atoi(os.Getenv("FLAKY_FAILURES"))

	s := server.NewMCPServer("echo-params", "1.0.0")

	s.AddTool(
		mcp.NewTool("echo_params",
			mcp.WithDescription("Echoes all received params as JSON"),
			mcp.WithString("query", mcp.Description("Search query")),
			mcp.WithString("title", mcp.Description("Item title")),
		),
		echoHandler,
	)

	var calls atomic.Int64
	s.AddTool(
		mcp.NewTool("flaky",
			mcp.WithDescription("Fails until it has been called FLAKY_FAILURES times"),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			n := calls.Add(1)
			if n <= int64(failures) {
				return nil, fmt.Errorf("transient failure %d", n)
			}
			return mcp.NewToolResultText(fmt.Sprintf("succeeded on call %d", n)), nil
		},
	)

	s.AddTool(
		mcp.NewTool("reject",
			mcp.WithDescription("Always answers with an isError result"),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultError("rejected: nothing to do"), nil
		},
	)

	if err := server.ServeStdio(s); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
	}
}

func echoHandler(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	data, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}
