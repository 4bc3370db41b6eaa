// Package subagent implements the sub-agent executor: a bounded recursive
// child agent run with its own isolated tool/shell state and a permission
// set scoped to its type. Grounded on the teacher's internal/mcptools
// subagent.go + internal/llm.ProcessTurn (which ran a sub-agent as a fixed
// single-purpose "SubAgent" tool with the full tool list minus itself),
// generalized per spec.md §4.7 into a {explore, general, skill} type table
// — skill further split into {search, enhance} actions — each with its own
// internal/perm.Permissions filter, and rebuilt on internal/agentloop
// instead of the older internal/llm loop. internal/mcptools/subagent.go's
// duplicate implementation is retired; task: dispatch in internal/router
// is the only caller of Run now.
package subagent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/synapse-agent/synapse/internal/agentloop"
	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/perm"
	"github.com/synapse-agent/synapse/internal/provider"
	"github.com/synapse-agent/synapse/internal/toolset"
)

// Type identifies a sub-agent archetype, each with its own permission set.
type Type string

const (
	TypeExplore Type = "explore"
	TypeGeneral Type = "general"
	TypeSkill   Type = "skill"
)

// SkillAction further scopes a TypeSkill sub-agent.
type SkillAction string

const (
	ActionSearch  SkillAction = "search"
	ActionEnhance SkillAction = "enhance"
)

const (
	// MaxDepth is the maximum recursion depth: depth 0 is the root agent,
	// depth 1 a sub-agent it spawns. Sub-agents cannot spawn further
	// sub-agents, matching the teacher's MaxSubAgentDepth.
	MaxDepth = 1

	// DefaultMaxIterations is the default tool-round budget for a sub-agent.
	DefaultMaxIterations = 5

	// MaxAllowedIterations caps a caller-specified MaxIterations.
	MaxAllowedIterations = 20
)

// Permissions returns the fixed tool-permission filter for a (type, action)
// pair, per spec.md §4.7's table. Skill sub-agents without ActionSearch are
// treated as ActionEnhance.
func Permissions(t Type, action SkillAction) perm.Permissions {
	switch t {
	case TypeExplore:
		return perm.Permissions{Include: perm.All(), Exclude: []string{"write", "edit", "task"}}
	case TypeSkill:
		if action == ActionSearch {
			return perm.Permissions{Include: perm.None()}
		}
		return perm.Permissions{Include: perm.All(), Exclude: []string{"task"}}
	default: // TypeGeneral
		return perm.Permissions{Include: perm.All(), Exclude: []string{"task"}}
	}
}

// ToolFactory builds the isolated tool surface for one sub-agent run —
// typically a fresh shell.Session the parent doesn't share, plus the
// builtin/router handlers bound to it — and a cleanup func to tear that
// isolation down when the run ends. Grounded on the teacher's pattern of
// constructing a brand-new FileReadTracker and shell.Shell per sub-agent
// call (internal/mcptools/subagent.go), generalized into an interface so
// the router can supply isolation without this package importing it.
type ToolFactory interface {
	Build(ctx context.Context, depth int, permissions perm.Permissions) (*toolset.Toolset, func(), error)
}

// Options configures a sub-agent run.
type Options struct {
	Provider      provider.Provider
	Tools         ToolFactory
	Type          Type
	Action        SkillAction
	Prompt        string
	MaxIterations int
	Depth         int // caller's current depth; the sub-agent runs at Depth+1
}

// Result reports a sub-agent run's outcome.
type Result struct {
	Content      string
	InputTokens  int
	OutputTokens int
}

// Run executes one sub-agent turn to completion and returns its final
// assistant text.
func Run(ctx context.Context, opts Options) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, fmt.Errorf("sub-agent cancelled: %w", err)
	}
	if opts.Depth+1 > MaxDepth {
		return Result{}, fmt.Errorf("max sub-agent depth exceeded: %d > %d", opts.Depth+1, MaxDepth)
	}
	if opts.Provider == nil {
		return Result{}, fmt.Errorf("provider is required")
	}
	if opts.Tools == nil {
		return Result{}, fmt.Errorf("tool factory is required")
	}
	if opts.Prompt == "" {
		return Result{}, fmt.Errorf("prompt is required")
	}
	if opts.Type == "" {
		opts.Type = TypeGeneral
	}

	maxIter := DefaultMaxIterations
	if opts.MaxIterations > 0 {
		if opts.MaxIterations > MaxAllowedIterations {
			return Result{}, fmt.Errorf("max_iterations too large (max: %d)", MaxAllowedIterations)
		}
		maxIter = opts.MaxIterations
	}

	permissions := Permissions(opts.Type, opts.Action)
	ts, cleanup, err := opts.Tools.Build(ctx, opts.Depth+1, permissions)
	if err != nil {
		return Result{}, fmt.Errorf("build sub-agent tools: %w", err)
	}
	if cleanup != nil {
		defer cleanup()
	}

	history := []chat.Message{
		{Role: chat.RoleSystem, Content: SystemPrompt(opts.Type, opts.Action), CreatedAt: time.Now()},
		{Role: chat.RoleUser, Content: opts.Prompt, CreatedAt: time.Now()},
	}

	var totalIn, totalOut int
	res, err := agentloop.Run(ctx, agentloop.Options{
		Provider:      opts.Provider,
		Toolset:       ts,
		History:       history,
		MaxIterations: maxIter,
		Callbacks: agentloop.Callbacks{
			OnUsage: func(in, out int) { totalIn += in; totalOut += out },
		},
	})
	if err != nil {
		return Result{}, fmt.Errorf("sub-agent failed: %w", err)
	}

	var finalContent string
	for i := len(res.History) - 1; i >= 0; i-- {
		if res.History[i].Role == chat.RoleAssistant && res.History[i].Content != "" {
			finalContent = res.History[i].Content
			break
		}
	}
	if finalContent == "" {
		return Result{}, fmt.Errorf("sub-agent produced no final response")
	}

	return Result{Content: finalContent, InputTokens: totalIn, OutputTokens: totalOut}, nil
}

// SystemPrompt builds the sub-agent's system prompt for its (type, action).
func SystemPrompt(t Type, action SkillAction) string {
	var role string
	switch t {
	case TypeExplore:
		role = "You are a focused exploration sub-agent. Investigate the codebase and report findings; you cannot modify files or spawn further sub-agents."
	case TypeSkill:
		if action == ActionSearch {
			role = "You are a skill-search sub-agent. Identify which available skill, if any, best matches the task and explain why. You have no tool access."
		} else {
			role = "You are a skill-enhancement sub-agent. Refine or extend an existing skill's instructions; you cannot spawn further sub-agents."
		}
	default:
		role = "You are a general-purpose sub-agent handling a focused task delegated by the root agent. You cannot spawn further sub-agents."
	}
	return strings.TrimSpace(role + "\n\nReport your result as plain text; the root agent will read only your final message.")
}
