package builtin

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/synapse-agent/synapse/internal/chat"
)

// Scratchpad holds the agent's current plan/notes, recited at the tail of
// context each round so the working plan stays in the model's recent
// attention window. Grounded on mcptools.Scratchpad.
type Scratchpad struct {
	mu      sync.RWMutex
	content string
}

// NewScratchpad returns an empty scratchpad.
func NewScratchpad() *Scratchpad { return &Scratchpad{} }

// Content returns the current scratchpad text.
func (s *Scratchpad) Content() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.content
}

// TodoWriteArgs are the arguments for the TodoWrite builtin.
type TodoWriteArgs struct {
	Content string `json:"content"`
}

// TodoWriteSchema is the JSON schema for TodoWrite's arguments.
const TodoWriteSchema = `{
	"type": "object",
	"properties": {
		"content": {"type": "string", "description": "Your current plan, todo list, or working notes. Replaces the previous content entirely."}
	},
	"required": ["content"]
}`

// TodoWriteHandler serves the TodoWrite builtin.
type TodoWriteHandler struct {
	Pad *Scratchpad
}

func (h *TodoWriteHandler) Handle(_ context.Context, arguments json.RawMessage) (chat.ToolResult, error) {
	var args TodoWriteArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return errResult(chat.CategoryInvalidUsage, "Invalid arguments: %v", err)
	}
	if args.Content == "" {
		return errResult(chat.CategoryInvalidUsage, "Content cannot be empty")
	}

	h.Pad.mu.Lock()
	h.Pad.content = args.Content
	h.Pad.mu.Unlock()

	return textResult("Plan updated.")
}
