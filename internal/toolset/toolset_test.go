package toolset

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/synapse-agent/synapse/internal/chat"
)

func TestHandleUnknownTool(t *testing.T) {
	ts := New()
	f := ts.Handle(context.Background(), chat.ToolCall{ID: "c1", Name: "Nope", Arguments: "{}"})
	res, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError || res.Category != chat.CategoryUnknownTool {
		t.Errorf("result = %+v", res)
	}
	if got, want := res.Message, "Unknown tool: Nope"; got != want {
		t.Errorf("Message = %q, want %q", got, want)
	}
}

func TestHandleInvalidJSON(t *testing.T) {
	ts := New()
	ts.Register(Definition{Name: "Echo"}, func(ctx context.Context, args json.RawMessage) (chat.ToolResult, error) {
		return chat.ToolResult{Output: "ok"}, nil
	})
	f := ts.Handle(context.Background(), chat.ToolCall{ID: "c1", Name: "Echo", Arguments: "not json"})
	res, _ := f.Wait(context.Background())
	if !res.IsError || res.Category != chat.CategoryInvalidUsage {
		t.Errorf("result = %+v", res)
	}
}

func TestHandleSchemaValidation(t *testing.T) {
	ts := New()
	schema := json.RawMessage(`{"type":"object","properties":{"command":{"type":"string"}},"required":["command"]}`)
	ts.Register(Definition{Name: "Bash", InputSchema: schema}, func(ctx context.Context, args json.RawMessage) (chat.ToolResult, error) {
		return chat.ToolResult{Output: "ok"}, nil
	})

	f := ts.Handle(context.Background(), chat.ToolCall{ID: "c1", Name: "Bash", Arguments: "{}"})
	res, _ := f.Wait(context.Background())
	if !res.IsError || res.Category != chat.CategoryInvalidUsage {
		t.Errorf("expected schema validation failure, got %+v", res)
	}

	f = ts.Handle(context.Background(), chat.ToolCall{ID: "c2", Name: "Bash", Arguments: `{"command":"ls"}`})
	res, _ = f.Wait(context.Background())
	if res.IsError {
		t.Errorf("expected success, got %+v", res)
	}
}

func TestHandleExecutionError(t *testing.T) {
	ts := New()
	ts.Register(Definition{Name: "Boom"}, func(ctx context.Context, args json.RawMessage) (chat.ToolResult, error) {
		return chat.ToolResult{}, errors.New("kaboom")
	})
	f := ts.Handle(context.Background(), chat.ToolCall{ID: "c1", Name: "Boom", Arguments: "{}"})
	res, _ := f.Wait(context.Background())
	if !res.IsError || res.Category != chat.CategoryExecutionError {
		t.Errorf("result = %+v", res)
	}
}

func TestHandlePanicRecovered(t *testing.T) {
	ts := New()
	ts.Register(Definition{Name: "Panicky"}, func(ctx context.Context, args json.RawMessage) (chat.ToolResult, error) {
		panic("boom")
	})
	f := ts.Handle(context.Background(), chat.ToolCall{ID: "c1", Name: "Panicky", Arguments: "{}"})
	res, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Errorf("expected panic to surface as an error result, got %+v", res)
	}
}

func TestCancelStopsWaitPromptly(t *testing.T) {
	ts := New()
	started := make(chan struct{})
	ts.Register(Definition{Name: "Slow"}, func(ctx context.Context, args json.RawMessage) (chat.ToolResult, error) {
		close(started)
		<-ctx.Done()
		return chat.ToolResult{IsError: true, Message: "cancelled"}, nil
	})

	f := ts.Handle(context.Background(), chat.ToolCall{ID: "c1", Name: "Slow", Arguments: "{}"})
	<-started
	f.Cancel()

	res, err := f.Wait(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.IsError {
		t.Errorf("expected cancelled result, got %+v", res)
	}
}

func TestCancelCompletedFutureIsNoOp(t *testing.T) {
	f := completed(chat.ToolResult{Output: "done"})
	f.Cancel()
	f.Cancel()
	res, err := f.Wait(context.Background())
	if err != nil || res.Output != "done" {
		t.Errorf("result = %+v, err = %v", res, err)
	}
}

func TestToolsReturnsRegistrationOrder(t *testing.T) {
	ts := New()
	noop := func(ctx context.Context, args json.RawMessage) (chat.ToolResult, error) {
		return chat.ToolResult{}, nil
	}
	ts.Register(Definition{Name: "A"}, noop)
	ts.Register(Definition{Name: "B"}, noop)
	ts.Register(Definition{Name: "A"}, noop) // re-register shouldn't duplicate order

	defs := ts.Tools()
	if len(defs) != 2 || defs[0].Name != "A" || defs[1].Name != "B" {
		t.Errorf("Tools() = %+v", defs)
	}
}

func TestWaitRespectsCallerContext(t *testing.T) {
	ts := New()
	block := make(chan struct{})
	ts.Register(Definition{Name: "Block"}, func(ctx context.Context, args json.RawMessage) (chat.ToolResult, error) {
		<-block
		return chat.ToolResult{}, nil
	})
	defer close(block)

	f := ts.Handle(context.Background(), chat.ToolCall{ID: "c1", Name: "Block", Arguments: "{}"})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := f.Wait(ctx)
	if err == nil {
		t.Errorf("expected Wait to return the caller's context error")
	}
}
