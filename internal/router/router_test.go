package router

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/shell"
)

func TestHandleNativeCommand(t *testing.T) {
	r := &Router{Session: shell.NewSession(t.TempDir(), nil)}
	res, err := r.Handle(context.Background(), json.RawMessage(`{"command":"echo hi"}`))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}
}

func TestHandleBuiltinDispatchesWithParsedJSON(t *testing.T) {
	var gotArgs string
	r := &Router{
		Builtins: map[string]BuiltinHandler{
			"read": func(ctx context.Context, arguments json.RawMessage) (chat.ToolResult, error) {
				gotArgs = string(arguments)
				return chat.ToolResult{Output: "ok"}, nil
			},
		},
	}
	res, err := r.Handle(context.Background(), json.RawMessage(`{"command":"read {\"file\":\"a.go\"}"}`))
	if err != nil || res.IsError {
		t.Fatalf("Handle: %v, %+v", err, res)
	}
	if gotArgs != `{"file":"a.go"}` {
		t.Errorf("gotArgs = %q", gotArgs)
	}
}

func TestHandleUnknownBuiltin(t *testing.T) {
	r := &Router{Builtins: map[string]BuiltinHandler{}}
	res, _ := r.Handle(context.Background(), json.RawMessage(`{"command":"glob {}"}`))
	if !res.IsError || res.Category != chat.CategoryUnknownTool {
		t.Errorf("result = %+v", res)
	}
}

func TestHandleBuiltinRejectsNonJSONArgs(t *testing.T) {
	r := &Router{Builtins: map[string]BuiltinHandler{
		"read": func(ctx context.Context, arguments json.RawMessage) (chat.ToolResult, error) {
			return chat.ToolResult{Output: "should not run"}, nil
		},
	}}
	res, _ := r.Handle(context.Background(), json.RawMessage(`{"command":"read not-json"}`))
	if !res.IsError || res.Category != chat.CategoryInvalidUsage {
		t.Errorf("result = %+v", res)
	}
}

func TestHandleExtensionUnconfiguredFails(t *testing.T) {
	r := &Router{}
	res, _ := r.Handle(context.Background(), json.RawMessage(`{"command":"mcp:GitStatus {}"}`))
	if !res.IsError {
		t.Errorf("expected failure for unconfigured mcp extension")
	}
}

func TestHandleSkillLoadBuiltin(t *testing.T) {
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "reviewer"), 0755)
	os.WriteFile(filepath.Join(dir, "reviewer", "SKILL.md"), []byte("Review code carefully."), 0600)

	r := &Router{SkillLoad: NewSkillLoadHandler(dir)}
	res, err := r.Handle(context.Background(), json.RawMessage(`{"command":"skill:load reviewer"}`))
	if err != nil || res.IsError {
		t.Fatalf("Handle: %v, %+v", err, res)
	}
	if res.Output != "Review code carefully." {
		t.Errorf("Output = %q", res.Output)
	}
}

func TestHandleEmptyCommandRejected(t *testing.T) {
	r := &Router{}
	res, _ := r.Handle(context.Background(), json.RawMessage(`{"command":"   "}`))
	if !res.IsError || res.Category != chat.CategoryInvalidUsage {
		t.Errorf("result = %+v", res)
	}
}

func TestHandleSkillExtensionRunsScript(t *testing.T) {
	dir := t.TempDir()
	scriptDir := filepath.Join(dir, "greeter")
	os.MkdirAll(scriptDir, 0755)
	script := filepath.Join(scriptDir, "run")
	os.WriteFile(script, []byte("#!/bin/sh\necho hello $1\n"), 0700)

	r := &Router{SkillTwoColonExt: NewSkillExtension(dir)}
	res, err := r.Handle(context.Background(), json.RawMessage(`{"command":"skill:greeter:run world"}`))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.IsError {
		t.Fatalf("result = %+v", res)
	}
}
