// Package prompt builds the system prompt handed to the provider: a
// model-family base prompt, any AGENTS.md instructions found on disk, and
// an optional tree-sitter project outline.
package prompt

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/synapse-agent/synapse/internal/treesitter"
)

const basePrompt = `You are synapse, an interactive coding agent operating in a user's
repository. You have exactly one tool: Bash. Its "command" field dispatches
three ways:

  - a real shell command runs natively in a persistent POSIX session
  - read/write/edit/glob/search/bash/TodoWrite run as in-process builtins
  - mcp:, task:, and skill: prefixes dispatch to extensions (MCP proxy calls,
    bounded sub-agents, and skill loading/management, respectively)

Prefer the builtins over native shell equivalents (read over cat, edit over
sed, glob/search over find/grep) — they carry structured results and keep
bookkeeping (tree-sitter symbols, LSP diagnostics, undo deltas) in sync.
Set "restart": true only to recycle a wedged native shell session; it never
touches builtin or extension state.`

// claudePrompt, geminiPrompt, and gptPrompt exist because different model
// families respond to different emphasis in the same instructions — Claude
// models follow terse imperative prompts well, Gemini models benefit from
// explicit restatement of the dispatch contract, and GPT-family models do
// better with the tool-call shape spelled out up front. All three carry the
// same contract as basePrompt; only the framing changes.
var (
	claudePrompt = basePrompt
	geminiPrompt = basePrompt + "\n\nAlways route file and search operations through the Bash tool's builtins; never assume a separate read or edit tool exists."
	gptPrompt    = basePrompt + "\n\nEmit exactly one Bash tool call per turn unless the task genuinely requires parallel independent reads."
)

// SelectPrompt returns the base prompt tuned for the given model family.
func SelectPrompt(modelID string) string {
	lower := strings.ToLower(modelID)
	switch {
	case strings.Contains(lower, "claude"):
		return claudePrompt
	case strings.Contains(lower, "gemini"):
		return geminiPrompt
	case strings.Contains(lower, "gpt"), strings.Contains(lower, "o1"):
		return gptPrompt
	default:
		return basePrompt
	}
}

// LoadAgentInstructions searches for AGENTS.md files from the current
// working directory up to the filesystem root, then checks the user's
// config directory, and returns their concatenated contents with
// project-level instructions taking precedence over user-level ones.
func LoadAgentInstructions() string {
	var instructions []string

	cwd, err := os.Getwd()
	if err == nil {
		dir := cwd
		for {
			path := filepath.Join(dir, "AGENTS.md")
			if content := readFileIfExists(path); content != "" {
				instructions = append(instructions, fmt.Sprintf("Instructions from: %s\n%s", path, content))
			}
			parent := filepath.Dir(dir)
			if parent == dir {
				break
			}
			dir = parent
		}
	}

	if home, err := os.UserHomeDir(); err == nil {
		path := filepath.Join(home, ".config", "synapse", "AGENTS.md")
		if content := readFileIfExists(path); content != "" {
			instructions = append(instructions, fmt.Sprintf("Instructions from: %s\n%s", path, content))
		}
	}

	// Reverse so project-level instructions (found first, walking up from
	// cwd) are prepended last and so win when the provider favors later text.
	for i, j := 0, len(instructions)-1; i < j; i, j = i+1, j-1 {
		instructions[i], instructions[j] = instructions[j], instructions[i]
	}

	return strings.Join(instructions, "\n\n")
}

// BuildSystemPrompt combines the model-specific base prompt with any
// AGENTS.md instructions and, when idx is non-nil, a tree-sitter project
// symbol outline.
func BuildSystemPrompt(modelID string, idx *treesitter.Index) string {
	var parts []string

	if instructions := LoadAgentInstructions(); instructions != "" {
		parts = append(parts, instructions)
	}
	if idx != nil {
		if outline := treesitter.FormatOutline(idx.Snapshot()); outline != "" {
			parts = append(parts, outline)
		}
	}
	parts = append(parts, SelectPrompt(modelID))

	return strings.Join(parts, "\n\n---\n\n")
}

func readFileIfExists(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
