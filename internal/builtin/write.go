package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/delta"
	"github.com/synapse-agent/synapse/internal/hashline"
	"github.com/synapse-agent/synapse/internal/lsp"
	"github.com/synapse-agent/synapse/internal/treesitter"
)

// WriteArgs are the arguments for the write builtin.
type WriteArgs struct {
	File    string `json:"file"`
	Content string `json:"content"`
}

// WriteSchema is the JSON schema for write's arguments.
const WriteSchema = `{
	"type": "object",
	"properties": {
		"file":    {"type": "string", "description": "Path to the new file"},
		"content": {"type": "string", "description": "Full file content"}
	},
	"required": ["file", "content"]
}`

// WriteHandler serves the write builtin — file creation only; it refuses to
// overwrite an existing file, the same as the teacher's Edit.CreateOp path
// this is split out of. Modifying an existing file still goes through edit,
// so the read-before-edit invariant can't be bypassed by overwriting via write.
type WriteHandler struct {
	Root         string
	LSPManager   *lsp.Manager
	TSIndex      *treesitter.Index
	DeltaTracker *delta.Tracker
}

func (h *WriteHandler) Handle(ctx context.Context, arguments json.RawMessage) (chat.ToolResult, error) {
	var args WriteArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return errResult(chat.CategoryInvalidUsage, "Invalid arguments: %v", err)
	}
	if args.File == "" {
		return errResult(chat.CategoryInvalidUsage, "File path cannot be empty")
	}

	root := h.Root
	if root == "" {
		root = getwd()
	}
	absPath, err := validatePathWithRoot(args.File, root)
	if err != nil {
		return errResult(chat.CategoryInvalidUsage, "%v", err)
	}

	if _, err := os.Stat(absPath); err == nil {
		return errResult(chat.CategoryInvalidUsage, "File already exists: %s (use edit to modify it)", args.File)
	}

	dir := filepath.Dir(absPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errResult(chat.CategoryExecutionError, "Failed to create directories: %v", err)
	}

	if h.DeltaTracker != nil {
		h.DeltaTracker.RecordCreate(absPath)
	}

	if err := os.WriteFile(absPath, []byte(args.Content), 0600); err != nil {
		return errResult(chat.CategoryExecutionError, "Failed to create file: %v", err)
	}

	tagged := hashline.TagLines(args.Content, 1)
	text := fmt.Sprintf("Created %s (%d lines):\n\n%s", args.File, len(tagged), hashline.FormatTagged(tagged))

	if h.LSPManager != nil {
		diags := h.LSPManager.NotifyAndWait(ctx, absPath, 5*time.Second)
		text += lsp.FormatDiagnostics(args.File, diags)
	}
	if h.TSIndex != nil {
		h.TSIndex.UpdateFile(absPath)
	}

	return textResult(text)
}
