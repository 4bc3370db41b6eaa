package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/synapse-agent/synapse/internal/chat"
)

// dispatchBuiltin handles a command Classify has already determined is
// ClassBuiltin. The grammar is "<name> <json-object>" for the fixed
// read/write/edit/glob/search/bash/TodoWrite set, and "skill:load <name>"
// for the skill-management family (a bare name, not JSON).
func (r *Router) dispatchBuiltin(ctx context.Context, command string) (chat.ToolResult, error) {
	for _, p := range skillManagementPrefixes {
		if command == p || strings.HasPrefix(command, p+" ") || strings.HasPrefix(command, p+":") {
			rest := strings.TrimSpace(strings.TrimPrefix(command, p))
			rest = strings.TrimPrefix(rest, ":")
			rest = strings.TrimSpace(rest)
			if r.SkillLoad == nil {
				return chat.ToolResult{IsError: true, Message: "skill:load is not configured", Category: chat.CategoryExecutionError}, nil
			}
			payload, _ := json.Marshal(map[string]string{"name": rest})
			return r.SkillLoad(ctx, payload)
		}
	}

	name := firstToken(command)
	h, ok := r.Builtins[name]
	if !ok {
		return chat.ToolResult{IsError: true, Message: fmt.Sprintf("unknown builtin: %s", name), Category: chat.CategoryUnknownTool}, nil
	}

	rest := strings.TrimSpace(strings.TrimPrefix(command, name))
	if rest == "" {
		rest = "{}"
	}
	var probe interface{}
	if err := json.Unmarshal([]byte(rest), &probe); err != nil {
		return chat.ToolResult{IsError: true, Message: fmt.Sprintf("%s expects a JSON object argument: %v", name, err), Category: chat.CategoryInvalidUsage}, nil
	}

	return h(ctx, json.RawMessage(rest))
}
