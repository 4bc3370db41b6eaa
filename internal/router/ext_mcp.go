package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/mcp"
)

// NewMCPExtension builds the "mcp:<tool> <json>" extension handler backed
// by proxy, which itself resolves local-vs-upstream per internal/mcp.Proxy.
func NewMCPExtension(proxy *mcp.Proxy) ExtensionHandler {
	return func(ctx context.Context, command string) (chat.ToolResult, error) {
		rest := strings.TrimPrefix(command, "mcp:")
		name, args, _ := strings.Cut(rest, " ")
		name = strings.TrimSpace(name)
		args = strings.TrimSpace(args)
		if name == "" {
			return chat.ToolResult{IsError: true, Message: "mcp: requires a tool name", Category: chat.CategoryInvalidUsage}, nil
		}
		if args == "" {
			args = "{}"
		}
		var probe interface{}
		if err := json.Unmarshal([]byte(args), &probe); err != nil {
			return chat.ToolResult{IsError: true, Message: fmt.Sprintf("mcp:%s expects a JSON object argument: %v", name, err), Category: chat.CategoryInvalidUsage}, nil
		}

		res, err := proxy.CallTool(ctx, name, json.RawMessage(args))
		if err != nil {
			return chat.ToolResult{IsError: true, Message: err.Error(), Category: chat.CategoryExecutionError}, nil
		}

		var text string
		for _, block := range res.Content {
			if block.Type == "text" {
				text += block.Text
			}
		}
		return chat.ToolResult{Output: text, IsError: res.IsError, Category: errCategoryFor(res.IsError)}, nil
	}
}

func errCategoryFor(isError bool) chat.ResultCategory {
	if isError {
		return chat.CategoryExecutionError
	}
	return chat.CategoryNone
}
