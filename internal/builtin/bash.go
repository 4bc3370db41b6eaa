package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/shell"
)

// BashArgs is the "bash" builtin's argument shape: a JSON envelope around a
// command, distinct from the top-level Bash tool's bare-string native
// dispatch (router.Classify routes a first-token "bash" the same way it
// routes "read"/"edit"/etc — through the builtin table rather than
// straight to the persistent shell session). The envelope form lets a
// model bound a single command's runtime independently of the session's
// own lifecycle.
type BashArgs struct {
	Command   string `json:"command"`
	TimeoutMS int    `json:"timeout_ms"`
}

const BashSchema = `{
	"type": "object",
	"properties": {
		"command": {"type": "string"},
		"timeout_ms": {"type": "integer", "minimum": 1, "description": "Optional bound on this command's runtime; the persistent session is left running either way."}
	},
	"required": ["command"]
}`

// BashHandler runs one bounded command against Session, independent of the
// surrounding shell.Session's state machine beyond sharing its cwd/env.
type BashHandler struct {
	Session *shell.Session
}

func (h *BashHandler) Handle(ctx context.Context, arguments json.RawMessage) (chat.ToolResult, error) {
	var args BashArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return errResult(chat.CategoryInvalidUsage, "invalid bash arguments: %v", err)
	}
	if args.Command == "" {
		return errResult(chat.CategoryInvalidUsage, "bash requires a command")
	}
	if h.Session == nil {
		return errResult(chat.CategoryExecutionError, "no shell session configured")
	}

	runCtx := ctx
	if args.TimeoutMS > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, time.Duration(args.TimeoutMS)*time.Millisecond)
		defer cancel()
	}

	var stdout, stderr bytes.Buffer
	err := h.Session.Exec(runCtx, args.Command, &stdout, &stderr)
	out, errOut := stdout.String(), stderr.String()
	if err != nil {
		msg := errOut
		if msg == "" {
			msg = err.Error()
		}
		return chat.ToolResult{IsError: true, Output: out, Message: msg, Category: chat.CategoryExecutionError}, nil
	}
	return chat.ToolResult{Output: out, Message: errOut}, nil
}
