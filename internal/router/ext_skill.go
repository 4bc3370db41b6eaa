package router

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/synapse-agent/synapse/internal/chat"
)

// NewSkillExtension builds the "skill:<name>:<action> <args...>" extension
// handler: a skill-hosted user script, run as its own subprocess rooted at
// skillsDir/<name>/<action> — independent of the persistent native
// shell.Session, per spec.md §4.4. This is the extension-path skill
// invocation; "skill:load" (a distinct builtin, see classify.go) only
// reads a skill's definition into context and never executes anything.
func NewSkillExtension(skillsDir string) ExtensionHandler {
	return func(ctx context.Context, command string) (chat.ToolResult, error) {
		rest := strings.TrimPrefix(command, "skill:")
		path, argLine, _ := strings.Cut(rest, " ")
		segs := strings.SplitN(path, ":", 2)
		if len(segs) != 2 || segs[0] == "" || segs[1] == "" {
			return chat.ToolResult{IsError: true, Message: "skill: requires skill:<name>:<action>", Category: chat.CategoryInvalidUsage}, nil
		}
		name, action := segs[0], segs[1]

		script := filepath.Join(skillsDir, name, action)
		if _, err := os.Stat(script); err != nil {
			return chat.ToolResult{IsError: true, Message: fmt.Sprintf("no such skill script: %s/%s", name, action), Category: chat.CategoryUnknownTool}, nil
		}

		args := tokenize(strings.TrimSpace(argLine))
		cmd := exec.CommandContext(ctx, script, args...)
		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				msg = err.Error()
			}
			return chat.ToolResult{IsError: true, Output: stdout.String(), Message: msg, Category: chat.CategoryExecutionError}, nil
		}

		return chat.ToolResult{Output: stdout.String(), Message: stderr.String()}, nil
	}
}
