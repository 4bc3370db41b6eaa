package toolset

import (
	"context"
	"fmt"

	"github.com/synapse-agent/synapse/internal/chat"
)

// Future is a cancellable, in-flight tool execution. Grounded on the
// teacher's context.WithTimeout usage in internal/mcptools/shell.go,
// generalized into the explicit cancel-channel-plus-task shape spec.md
// §9 ("Cancellable futures") describes: a task runs in its own goroutine,
// cancellation is requested via a channel, and awaiting the result after
// cancellation still returns (never blocks the caller).
type Future struct {
	done   chan struct{}
	cancel context.CancelFunc
	result chat.ToolResult
}

// completed wraps an already-known result (unknown tool, invalid args) in
// a Future that is done immediately.
func completed(r chat.ToolResult) *Future {
	f := &Future{done: make(chan struct{}), cancel: func() {}, result: r}
	close(f.done)
	return f
}

// run starts h in its own goroutine under a cancellable child context.
func run(parent context.Context, callID string, h Handler, args []byte) *Future {
	ctx, cancel := context.WithCancel(parent)
	f := &Future{done: make(chan struct{}), cancel: cancel}

	go func() {
		defer close(f.done)
		defer func() {
			if r := recover(); r != nil {
				f.result = chat.ToolResult{
					ToolCallID: callID,
					IsError:    true,
					Message:    fmt.Sprintf("Tool execution failed: panic: %v", r),
					Category:   chat.CategoryExecutionError,
				}
			}
		}()

		res, err := h(ctx, args)
		if err != nil {
			f.result = chat.ToolResult{
				ToolCallID: callID,
				IsError:    true,
				Message:    fmt.Sprintf("Tool execution failed: %v", err),
				Category:   chat.CategoryExecutionError,
			}
			return
		}
		res.ToolCallID = callID
		f.result = res
	}()

	return f
}

// Cancel requests cancellation. Cancelling an already-completed future is a
// no-op. Cancel never blocks.
func (f *Future) Cancel() {
	f.cancel()
}

// Wait blocks until the future settles (naturally or via cancellation) and
// returns its result. If ctx is cancelled first, Wait returns its error
// without waiting further; the underlying task is left running and will
// still settle into f's internal result (best-effort — the caller should
// Cancel() first if it wants the underlying work stopped).
func (f *Future) Wait(ctx context.Context) (chat.ToolResult, error) {
	select {
	case <-f.done:
		return f.result, nil
	case <-ctx.Done():
		return chat.ToolResult{}, ctx.Err()
	}
}

// Done reports whether the future has already settled, without blocking.
func (f *Future) Done() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
