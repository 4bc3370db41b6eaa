package router

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/synapse-agent/synapse/internal/chat"
)

// SubAgentRunner executes one sub-agent turn. Satisfied by an adapter over
// internal/subagent.Run — kept as an interface here so internal/router
// doesn't need to know about internal/subagent's provider/tool-factory
// wiring, only that task: commands resolve to (kind, action, prompt).
type SubAgentRunner interface {
	Run(ctx context.Context, kind, action, prompt string, maxIterations, depth int) (content string, inputTokens, outputTokens int, err error)
}

// NewTaskExtension builds the "task:<kind>[:<action>] <prompt> [--flags]"
// extension handler backed by runner. depth is the calling agent's current
// recursion depth (0 for the root agent); the sub-agent it spawns runs one
// level deeper.
func NewTaskExtension(runner SubAgentRunner, depth int) ExtensionHandler {
	return func(ctx context.Context, command string) (chat.ToolResult, error) {
		path, rest, _ := strings.Cut(strings.TrimPrefix(command, "task:"), " ")
		parts := strings.SplitN(path, ":", 2)
		kind := parts[0]
		action := ""
		if len(parts) == 2 {
			action = parts[1]
		}
		if kind == "" {
			return chat.ToolResult{IsError: true, Message: "task: requires a sub-agent type", Category: chat.CategoryInvalidUsage}, nil
		}

		parsed := parseArgs(tokenize(strings.TrimSpace(rest)))
		prompt := strings.Join(parsed.positional, " ")
		if prompt == "" {
			return chat.ToolResult{IsError: true, Message: "task: requires a prompt", Category: chat.CategoryInvalidUsage}, nil
		}

		maxIter := 0
		if v, ok := parsed.flags["max_iterations"]; ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return chat.ToolResult{IsError: true, Message: fmt.Sprintf("invalid --max_iterations: %v", err), Category: chat.CategoryInvalidUsage}, nil
			}
			maxIter = n
		}

		content, in, out, err := runner.Run(ctx, kind, action, prompt, maxIter, depth)
		if err != nil {
			return chat.ToolResult{IsError: true, Message: err.Error(), Category: chat.CategoryExecutionError}, nil
		}
		return chat.ToolResult{
			Output:  content,
			Message: fmt.Sprintf("(sub-agent used %d input / %d output tokens)", in, out),
		}, nil
	}
}
