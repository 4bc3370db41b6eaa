// Package builtin implements the fixed set of router builtins — read, write,
// edit, glob, search, bash, TodoWrite — the handlers reachable without going
// through the extension (mcp:/skill:/task:) dispatch path. Grounded on the
// teacher's internal/mcptools handlers (Read/Edit/TodoWrite) and
// internal/mcp_tools/filetrack.go (deleted as a duplicate package, its
// FileReadTracker generalized here), adapted to return chat.ToolResult
// directly instead of an mcp.ToolResult — the router has no mcp.Proxy
// framing to thread through for its own builtin table.
package builtin

import "sync"

// FileReadTracker records which absolute paths have been read this session;
// Edit refuses to touch a file Read hasn't seen first.
type FileReadTracker struct {
	mu   sync.RWMutex
	read map[string]struct{}
}

// NewFileReadTracker creates an empty tracker.
func NewFileReadTracker() *FileReadTracker {
	return &FileReadTracker{read: make(map[string]struct{})}
}

// MarkRead records that absPath was read.
func (t *FileReadTracker) MarkRead(absPath string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.read[absPath] = struct{}{}
}

// WasRead reports whether absPath has been read.
func (t *FileReadTracker) WasRead(absPath string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.read[absPath]
	return ok
}
