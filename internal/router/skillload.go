package router

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/synapse-agent/synapse/internal/chat"
)

// NewSkillLoadHandler builds the "skill:load" builtin: it reads a skill's
// definition file into the model's context. Distinct from the
// skill:<name>:<action> extension (ext_skill.go), which executes a script;
// skill:load never runs anything.
func NewSkillLoadHandler(skillsDir string) BuiltinHandler {
	return func(ctx context.Context, arguments json.RawMessage) (chat.ToolResult, error) {
		var args struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(arguments, &args); err != nil {
			return chat.ToolResult{IsError: true, Message: "invalid skill:load arguments: " + err.Error(), Category: chat.CategoryInvalidUsage}, nil
		}
		if args.Name == "" {
			return chat.ToolResult{IsError: true, Message: "skill:load requires a skill name", Category: chat.CategoryInvalidUsage}, nil
		}

		path := filepath.Join(skillsDir, args.Name, "SKILL.md")
		content, err := os.ReadFile(path)
		if err != nil {
			return chat.ToolResult{IsError: true, Message: fmt.Sprintf("no such skill: %s", args.Name), Category: chat.CategoryUnknownTool}, nil
		}

		return chat.ToolResult{Output: string(content)}, nil
	}
}
