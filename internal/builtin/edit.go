package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/delta"
	"github.com/synapse-agent/synapse/internal/hashline"
	"github.com/synapse-agent/synapse/internal/lsp"
	"github.com/synapse-agent/synapse/internal/treesitter"
)

// EditArgs are the arguments for the edit builtin. Exactly one of Replace,
// Insert, Delete must be set.
type EditArgs struct {
	File    string     `json:"file"`
	Replace *ReplaceOp `json:"replace,omitempty"`
	Insert  *InsertOp  `json:"insert,omitempty"`
	Delete  *DeleteOp  `json:"delete,omitempty"`
}

type ReplaceOp struct {
	Start   hashline.Anchor `json:"start"`
	End     hashline.Anchor `json:"end"`
	Content string          `json:"content"`
}

type InsertOp struct {
	After   hashline.Anchor `json:"after"`
	Content string          `json:"content"`
}

type DeleteOp struct {
	Start hashline.Anchor `json:"start"`
	End   hashline.Anchor `json:"end"`
}

const anchorSchema = `{"type": "object", "properties": {"line": {"type": "integer", "description": "1-indexed line number"}, "hash": {"type": "string", "description": "2-char hex hash from read output"}}, "required": ["line", "hash"]}`

// EditSchema is the JSON schema for edit's arguments. Create moved out to
// the write builtin — edit now only ever modifies a file already on disk.
const EditSchema = `{
	"type": "object",
	"properties": {
		"file": {"type": "string", "description": "Path to the file to edit"},
		"replace": {
			"type": "object",
			"description": "Replace lines from start to end (inclusive) with new content",
			"properties": {
				"start":   ` + anchorSchema + `,
				"end":     ` + anchorSchema + `,
				"content": {"type": "string", "description": "Replacement text (may be multiple lines)"}
			},
			"required": ["start", "end", "content"]
		},
		"insert": {
			"type": "object",
			"description": "Insert new lines after the anchored line",
			"properties": {
				"after":   ` + anchorSchema + `,
				"content": {"type": "string", "description": "Text to insert (may be multiple lines)"}
			},
			"required": ["after", "content"]
		},
		"delete": {
			"type": "object",
			"description": "Delete lines from start to end (inclusive)",
			"properties": {
				"start": ` + anchorSchema + `,
				"end":   ` + anchorSchema + `
			},
			"required": ["start", "end"]
		}
	},
	"required": ["file"]
}`

// EditHandler serves the edit builtin. Grounded on mcptools.EditHandler,
// minus its Create path (split into WriteHandler).
type EditHandler struct {
	Root         string
	Tracker      *FileReadTracker
	LSPManager   *lsp.Manager
	TSIndex      *treesitter.Index
	DeltaTracker *delta.Tracker
}

func (h *EditHandler) Handle(ctx context.Context, arguments json.RawMessage) (chat.ToolResult, error) {
	var args EditArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return errResult(chat.CategoryInvalidUsage, "Invalid arguments: %v", err)
	}
	if args.File == "" {
		return errResult(chat.CategoryInvalidUsage, "File path cannot be empty")
	}
	if err := validateEditOps(args); err != nil {
		return errResult(chat.CategoryInvalidUsage, "%v", err)
	}

	root := h.Root
	if root == "" {
		root = getwd()
	}
	absPath, err := validatePathWithRoot(args.File, root)
	if err != nil {
		return errResult(chat.CategoryInvalidUsage, "%v", err)
	}

	if !h.Tracker.WasRead(absPath) {
		return errResult(chat.CategoryInvalidUsage, "You must read the file before editing it. Use read on %s first — you need the line hashes.", args.File)
	}

	return h.applyEdit(ctx, absPath, args)
}

func validateEditOps(args EditArgs) error {
	ops := 0
	if args.Replace != nil {
		ops++
	}
	if args.Insert != nil {
		ops++
	}
	if args.Delete != nil {
		ops++
	}
	if ops != 1 {
		return fmt.Errorf("exactly one operation (replace, insert, or delete) must be specified")
	}
	return nil
}

func (h *EditHandler) applyEdit(ctx context.Context, absPath string, args EditArgs) (chat.ToolResult, error) {
	content, err := os.ReadFile(absPath)
	if err != nil {
		return errResult(chat.CategoryExecutionError, "Failed to read file: %v", err)
	}
	lines := strings.Split(string(content), "\n")

	var result string
	switch {
	case args.Replace != nil:
		result, err = applyReplace(lines, args.Replace)
	case args.Insert != nil:
		result, err = applyInsert(lines, args.Insert)
	case args.Delete != nil:
		result, err = applyDelete(lines, args.Delete)
	}
	if err != nil {
		return errResult(chat.CategoryInvalidUsage, "%v", err)
	}

	if h.DeltaTracker != nil {
		h.DeltaTracker.RecordModify(absPath, content)
	}

	if err := os.WriteFile(absPath, []byte(result), 0600); err != nil {
		return errResult(chat.CategoryExecutionError, "Failed to write file: %v", err)
	}

	tagged := hashline.TagLines(result, 1)
	text := fmt.Sprintf("Edited %s (%d lines):\n\n%s", args.File, len(tagged), hashline.FormatTagged(tagged))

	if h.LSPManager != nil {
		diags := h.LSPManager.NotifyAndWait(ctx, absPath, 5*time.Second)
		text += lsp.FormatDiagnostics(args.File, diags)
	}
	if h.TSIndex != nil {
		h.TSIndex.UpdateFile(absPath)
	}

	return textResult(text)
}

func applyReplace(lines []string, op *ReplaceOp) (string, error) {
	if err := hashline.ValidateRange(op.Start, op.End, lines); err != nil {
		return "", fmt.Errorf("replace: %w", err)
	}
	newLines := make([]string, 0, len(lines))
	newLines = append(newLines, lines[:op.Start.Num-1]...)
	newLines = append(newLines, strings.Split(op.Content, "\n")...)
	newLines = append(newLines, lines[op.End.Num:]...)
	return strings.Join(newLines, "\n"), nil
}

func applyInsert(lines []string, op *InsertOp) (string, error) {
	if err := op.After.Validate(lines); err != nil {
		return "", fmt.Errorf("insert: after anchor: %w", err)
	}
	newLines := make([]string, 0, len(lines)+1)
	newLines = append(newLines, lines[:op.After.Num]...)
	newLines = append(newLines, strings.Split(op.Content, "\n")...)
	newLines = append(newLines, lines[op.After.Num:]...)
	return strings.Join(newLines, "\n"), nil
}

func applyDelete(lines []string, op *DeleteOp) (string, error) {
	if err := hashline.ValidateRange(op.Start, op.End, lines); err != nil {
		return "", fmt.Errorf("delete: %w", err)
	}
	newLines := make([]string, 0, len(lines))
	newLines = append(newLines, lines[:op.Start.Num-1]...)
	newLines = append(newLines, lines[op.End.Num:]...)
	return strings.Join(newLines, "\n"), nil
}
