package router

import (
	"context"
	"fmt"
	"strings"

	"github.com/synapse-agent/synapse/internal/chat"
)

// dispatchExtension handles a command Classify has already determined is
// ClassExtension: mcp:, task:, or the two-colon skill:<a>:<b> form.
// Extension handlers may spawn their own subprocesses independent of the
// persistent native shell.Session — per spec.md §4.4, a sub-agent or MCP
// call must not block or share state with the native command surface.
func (r *Router) dispatchExtension(ctx context.Context, command string) (chat.ToolResult, error) {
	switch {
	case strings.HasPrefix(command, "mcp:"):
		if r.MCPExtension == nil {
			return chat.ToolResult{IsError: true, Message: "mcp extension is not configured", Category: chat.CategoryExecutionError}, nil
		}
		return r.MCPExtension(ctx, command)

	case strings.HasPrefix(command, "task:"):
		if r.TaskExtension == nil {
			return chat.ToolResult{IsError: true, Message: "task extension is not configured", Category: chat.CategoryExecutionError}, nil
		}
		return r.TaskExtension(ctx, command)

	case isSkillTwoColon(command):
		if r.SkillTwoColonExt == nil {
			return chat.ToolResult{IsError: true, Message: "skill extension is not configured", Category: chat.CategoryExecutionError}, nil
		}
		return r.SkillTwoColonExt(ctx, command)

	default:
		return chat.ToolResult{IsError: true, Message: fmt.Sprintf("unrecognized extension command: %s", command), Category: chat.CategoryUnknownTool}, nil
	}
}
