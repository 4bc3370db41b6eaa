package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// StubClient is an offline UpstreamClient used when no MCP upstream is
// configured. It answers the handshake and a small set of diagnostic tools
// so the proxy stays functional without a real server to talk to.
type StubClient struct{}

// NewStubClient creates a new stub MCP client.
func NewStubClient() *StubClient {
	return &StubClient{}
}

// Initialize simulates the MCP handshake.
func (c *StubClient) Initialize(ctx context.Context, clientInfo map[string]interface{}) (*Response, error) {
	return &Response{
		JSONRPC: "2.0",
		ID:      1,
		Result: json.RawMessage(`{
			"protocolVersion": "2024-11-05",
			"capabilities": {},
			"serverInfo": {
				"name": "synapse-stub",
				"version": "1.0.0"
			}
		}`),
	}, nil
}

// ListTools returns the small set of tools the stub answers.
func (c *StubClient) ListTools(ctx context.Context) ([]Tool, error) {
	return []Tool{
		{
			Name:        "ping",
			Description: "Check whether the MCP upstream is reachable (stub always answers)",
			InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
		},
		{
			Name:        "echo",
			Description: "Echo back the given text (stub)",
			InputSchema: json.RawMessage(`{"type": "object", "properties": {"text": {"type": "string"}}}`),
		},
	}, nil
}

// CallTool executes a mock tool call.
func (c *StubClient) CallTool(ctx context.Context, name string, arguments interface{}) (*ToolResult, error) {
	switch name {
	case "ping":
		return &ToolResult{
			Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("pong (stub, %s)", time.Now().UTC().Format(time.RFC3339))}},
		}, nil
	case "echo":
		args, _ := arguments.(map[string]interface{})
		text, _ := args["text"].(string)
		return &ToolResult{
			Content: []ContentBlock{{Type: "text", Text: text}},
		}, nil
	default:
		return &ToolResult{
			Content: []ContentBlock{{Type: "text", Text: fmt.Sprintf("tool %s not implemented in stub", name)}},
			IsError: true,
		}, nil
	}
}
