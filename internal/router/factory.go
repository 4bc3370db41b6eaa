package router

import (
	"context"

	"github.com/synapse-agent/synapse/internal/builtin"
	"github.com/synapse-agent/synapse/internal/delta"
	"github.com/synapse-agent/synapse/internal/lsp"
	"github.com/synapse-agent/synapse/internal/mcp"
	"github.com/synapse-agent/synapse/internal/perm"
	"github.com/synapse-agent/synapse/internal/shell"
	"github.com/synapse-agent/synapse/internal/toolset"
	"github.com/synapse-agent/synapse/internal/treesitter"
)

// ToolFactory builds a permission-scoped, isolated Router+Toolset pair for
// one sub-agent run. It implements internal/subagent.ToolFactory without
// that package needing to import internal/router directly — the root
// agent's cmd/synapse wiring layer is what ties the two together, by
// passing a *ToolFactory wherever subagent.Options.Tools is required.
//
// Grounded on the teacher's internal/mcptools/subagent.go, which built a
// brand-new FileReadTracker and shell.Shell per sub-agent call; generalized
// here into a fresh shell.Session (not just a Shell) and a permission-
// filtered Builtins/extension set instead of the teacher's single fixed
// "every tool except SubAgent" list.
type ToolFactory struct {
	Root         string
	LSPManager   *lsp.Manager
	TSIndex      *treesitter.Index
	DeltaTracker *delta.Tracker
	MCPProxy     *mcp.Proxy
	SkillsDir    string
}

// Build implements subagent.ToolFactory.
func (f *ToolFactory) Build(_ context.Context, _ int, permissions perm.Permissions) (*toolset.Toolset, func(), error) {
	session := shell.NewSession(f.Root, shell.DefaultBlockFuncs())
	tracker := builtin.NewFileReadTracker()

	r := &Router{Session: session}

	allBuiltins := map[string]BuiltinHandler{
		"read":   (&builtin.ReadHandler{Root: f.Root, Tracker: tracker, LSPManager: f.LSPManager, TSIndex: f.TSIndex}).Handle,
		"write":  (&builtin.WriteHandler{Root: f.Root, LSPManager: f.LSPManager, TSIndex: f.TSIndex, DeltaTracker: f.DeltaTracker}).Handle,
		"edit":   (&builtin.EditHandler{Root: f.Root, Tracker: tracker, LSPManager: f.LSPManager, TSIndex: f.TSIndex, DeltaTracker: f.DeltaTracker}).Handle,
		"glob":   (&builtin.GlobHandler{Root: f.Root}).Handle,
		"search": (&builtin.SearchHandler{Root: f.Root}).Handle,
		"bash":   (&builtin.BashHandler{Session: session}).Handle,
	}
	r.Builtins = make(map[string]BuiltinHandler, len(allBuiltins))
	for name, h := range allBuiltins {
		if permissions.Allows(name) {
			r.Builtins[name] = h
		}
	}

	if permissions.Allows("skill") {
		if f.SkillsDir != "" {
			r.SkillLoad = NewSkillLoadHandler(f.SkillsDir)
			r.SkillTwoColonExt = NewSkillExtension(f.SkillsDir)
		}
	}
	if permissions.Allows("mcp") && f.MCPProxy != nil {
		r.MCPExtension = NewMCPExtension(f.MCPProxy)
	}
	// task: is intentionally never wired here: every sub-agent permission
	// set excludes (or has no Include for) "task" — sub-agents cannot spawn
	// further sub-agents.

	ts := toolset.New()
	ts.Register(toolset.Definition{
		Name:        ToolName,
		Description: "Run a shell command, or dispatch to a builtin/extension by its command string.",
		InputSchema: []byte(Schema),
	}, r.Handle)

	cleanup := func() {
		session.Close()
	}
	return ts, cleanup, nil
}
