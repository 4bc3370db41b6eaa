package subagent

import (
	"context"
	"fmt"

	"github.com/synapse-agent/synapse/internal/provider"
)

// Runner adapts Run to internal/router.SubAgentRunner's method shape
// (kind, action, prompt strings in; content + token counts out) without
// this package importing internal/router — the router's ext_task.go
// depends only on the interface, satisfied here structurally.
type Runner struct {
	Provider provider.Provider
	Tools    ToolFactory
}

// Run executes one sub-agent turn for the named (kind, action) pair.
func (r *Runner) Run(ctx context.Context, kind, action, prompt string, maxIterations, depth int) (string, int, int, error) {
	t := Type(kind)
	switch t {
	case TypeExplore, TypeGeneral, TypeSkill:
	default:
		return "", 0, 0, fmt.Errorf("unknown sub-agent type %q", kind)
	}

	var skillAction SkillAction
	if t == TypeSkill {
		switch SkillAction(action) {
		case ActionSearch:
			skillAction = ActionSearch
		default:
			skillAction = ActionEnhance
		}
	}

	res, err := Run(ctx, Options{
		Provider:      r.Provider,
		Tools:         r.Tools,
		Type:          t,
		Action:        skillAction,
		Prompt:        prompt,
		MaxIterations: maxIterations,
		Depth:         depth,
	})
	if err != nil {
		return "", 0, 0, err
	}
	return res.Content, res.InputTokens, res.OutputTokens, nil
}
