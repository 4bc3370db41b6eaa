package router

import (
	"context"
	"testing"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/perm"
)

func TestToolFactoryBuildRegistersBashTool(t *testing.T) {
	f := &ToolFactory{Root: t.TempDir()}
	ts, cleanup, err := f.Build(context.Background(), 1, perm.Permissions{Include: perm.All()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer cleanup()

	names := make([]string, 0)
	for _, d := range ts.Tools() {
		names = append(names, d.Name)
	}
	if len(names) != 1 || names[0] != ToolName {
		t.Fatalf("tools = %v, want [%s]", names, ToolName)
	}
}

func TestToolFactoryBuildRunsNativeCommand(t *testing.T) {
	f := &ToolFactory{Root: t.TempDir()}
	ts, cleanup, err := f.Build(context.Background(), 1, perm.Permissions{Include: perm.All()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer cleanup()

	future := ts.Handle(context.Background(), chat.ToolCall{ID: "1", Name: ToolName, Arguments: `{"command":"echo hi"}`})
	res, err := future.Wait(context.Background())
	if err != nil || res.IsError {
		t.Fatalf("result = %+v, err = %v", res, err)
	}
}

func TestToolFactoryBuildRestrictsBuiltinsByPermission(t *testing.T) {
	dir := t.TempDir()
	f := &ToolFactory{Root: dir}
	restricted := perm.Permissions{Include: perm.All(), Exclude: []string{"write", "edit"}}
	ts, cleanup, err := f.Build(context.Background(), 1, restricted)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer cleanup()

	future := ts.Handle(context.Background(), chat.ToolCall{ID: "1", Name: ToolName, Arguments: `{"command":"write {\"file\":\"new.txt\",\"content\":\"x\"}"}`})
	res, err := future.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected write builtin to be unavailable, got %+v", res)
	}
}

func TestToolFactoryBuildNoToolsForNonePermissions(t *testing.T) {
	f := &ToolFactory{Root: t.TempDir()}
	ts, cleanup, err := f.Build(context.Background(), 1, perm.Permissions{Include: perm.None()})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer cleanup()

	future := ts.Handle(context.Background(), chat.ToolCall{ID: "1", Name: ToolName, Arguments: `{"command":"read {\"file\":\"x\"}"}`})
	res, err := future.Wait(context.Background())
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !res.IsError {
		t.Fatalf("expected no builtins to be available, got %+v", res)
	}
}
