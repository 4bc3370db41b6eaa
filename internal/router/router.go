package router

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/shell"
)

// BashArgs is the sole argument shape the model ever sees: one opaque
// command string. Everything else — whether it runs as a real shell
// command, a builtin, or a namespaced extension — is decided by Classify
// against the string itself.
type BashArgs struct {
	Command string `json:"command"`
	Restart bool   `json:"restart,omitempty"`
}

// Schema is the JSON schema for the single Bash tool's arguments.
const Schema = `{
	"type": "object",
	"properties": {
		"command": {"type": "string", "description": "The command to run. A real shell command runs natively; read/write/edit/glob/search/bash/TodoWrite take a JSON object after the name (e.g. read {\"file\":\"a.go\"}); mcp:<tool> {json}, task:<type>[:<action>] <prompt> [--flags], and skill:<name>:<action> <args> dispatch to extensions."},
		"restart": {"type": "boolean", "description": "If true, reset the persistent shell session (clears environment and working directory) before executing command."}
	},
	"required": ["command"]
}`

const ToolName = "Bash"

// BuiltinHandler serves one first-token builtin. Matches toolset.Handler's
// shape but takes pre-extracted JSON arguments (the remainder of the
// command string after the builtin name).
type BuiltinHandler func(ctx context.Context, arguments json.RawMessage) (chat.ToolResult, error)

// ExtensionHandler serves one classified extension command (the mcp:,
// task:, or skill:<a>:<b> families). It receives the full trimmed command
// string so each extension can apply its own grammar.
type ExtensionHandler func(ctx context.Context, command string) (chat.ToolResult, error)

// Router implements the router.Handle(ctx, json.RawMessage) signature the
// toolset registers as the model-facing "Bash" tool: unwrap BashArgs,
// Classify the command, and dispatch to native/builtin/extension handling.
// Grounded on internal/mcp.Proxy's local-vs-upstream CallTool dispatch,
// generalized into the three-way command classification spec.md §4.4
// requires — the central redesign of this exercise, replacing the
// teacher's one-MCP-tool-per-concern surface with a single Bash tool whose
// command string itself carries the dispatch decision.
type Router struct {
	Session *shell.Session

	Builtins           map[string]BuiltinHandler
	SkillLoad          BuiltinHandler // handles the "skill:load" builtin family
	MCPExtension       ExtensionHandler
	TaskExtension      ExtensionHandler
	SkillTwoColonExt   ExtensionHandler
}

// Handle implements toolset.Handler / step.Dispatcher's handler shape.
func (r *Router) Handle(ctx context.Context, arguments json.RawMessage) (chat.ToolResult, error) {
	var args BashArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return chat.ToolResult{IsError: true, Message: "invalid Bash arguments: " + err.Error(), Category: chat.CategoryInvalidUsage}, nil
	}
	command := strings.TrimSpace(args.Command)
	if command == "" {
		return chat.ToolResult{IsError: true, Message: "command cannot be empty", Category: chat.CategoryInvalidUsage}, nil
	}

	if args.Restart && r.Session != nil {
		r.Session.Restart()
	}

	switch Classify(command) {
	case ClassBuiltin:
		return r.dispatchBuiltin(ctx, command)
	case ClassExtension:
		return r.dispatchExtension(ctx, command)
	default:
		return r.dispatchNative(ctx, command)
	}
}

func (r *Router) dispatchNative(ctx context.Context, command string) (chat.ToolResult, error) {
	if r.Session == nil {
		return chat.ToolResult{IsError: true, Message: "no shell session configured", Category: chat.CategoryExecutionError}, nil
	}

	var stdout, stderr bytes.Buffer
	err := r.Session.Exec(ctx, command, &stdout, &stderr)

	out := stdout.String()
	errOut := stderr.String()

	if err != nil {
		msg := errOut
		if msg == "" {
			msg = err.Error()
		}
		return chat.ToolResult{
			IsError:  true,
			Output:   out,
			Message:  msg,
			Category: chat.CategoryExecutionError,
		}, nil
	}

	return chat.ToolResult{Output: out, Message: errOut}, nil
}
