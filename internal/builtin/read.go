package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/hashline"
	"github.com/synapse-agent/synapse/internal/lsp"
	"github.com/synapse-agent/synapse/internal/treesitter"
)

// ReadArgs are the arguments for the read builtin.
type ReadArgs struct {
	File  string `json:"file"`
	Start int    `json:"start,omitempty"`
	End   int    `json:"end,omitempty"`
}

// ReadSchema is the JSON schema for read's arguments.
const ReadSchema = `{
	"type": "object",
	"properties": {
		"file":  {"type": "string", "description": "Path to the file to read"},
		"start": {"type": "integer", "description": "Optional: starting line number (1-indexed, inclusive)"},
		"end":   {"type": "integer", "description": "Optional: ending line number (1-indexed, inclusive)"}
	},
	"required": ["file"]
}`

// ReadHandler serves the read builtin. Grounded on mcptools.ReadHandler.
type ReadHandler struct {
	Root       string
	Tracker    *FileReadTracker
	LSPManager *lsp.Manager
	TSIndex    *treesitter.Index
}

// Handle implements the router's builtin handler signature.
func (h *ReadHandler) Handle(_ context.Context, arguments json.RawMessage) (chat.ToolResult, error) {
	var args ReadArgs
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

	content, err := os.ReadFile(absPath)
	if err != nil {
		return errResult(chat.CategoryExecutionError, "Failed to read file: %v", err)
	}

	h.Tracker.MarkRead(absPath)
	if h.LSPManager != nil {
		go h.LSPManager.TouchFile(context.Background(), absPath)
	}
	if h.TSIndex != nil {
		go h.TSIndex.UpdateFile(absPath)
	}

	lines := strings.Split(string(content), "\n")
	selected, startLine, err := extractRange(lines, string(content), args.Start, args.End)
	if err != nil {
		return errResult(chat.CategoryInvalidUsage, "%v", err)
	}

	tagged := hashline.TagLines(selected, startLine)
	out := hashline.FormatTagged(tagged)

	rangeInfo := ""
	if args.Start > 0 || args.End > 0 {
		end := args.End
		if end <= 0 || end > len(lines) {
			end = len(lines)
		}
		rangeInfo = fmt.Sprintf(" (lines %d-%d)", startLine, end)
	}

	return textResult(fmt.Sprintf("Read %s%s (%d lines):\n\n%s", args.File, rangeInfo, len(tagged), out))
}

func extractRange(lines []string, full string, start, end int) (string, int, error) {
	if start <= 0 && end <= 0 {
		return full, 1, nil
	}
	if start <= 0 {
		start = 1
	}
	if start < 1 || start > len(lines) {
		return "", 0, fmt.Errorf("start line %d out of range (file has %d lines)", start, len(lines))
	}
	if end <= 0 || end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return "", 0, fmt.Errorf("invalid range: start (%d) > end (%d)", start, end)
	}
	return strings.Join(lines[start-1:end], "\n"), start, nil
}
