// Package router implements the single privileged Bash tool and its command
// classification / dispatch table: native shell, built-in handlers, and
// namespaced extensions (MCP, skill, sub-agent task). Grounded on the
// teacher's internal/mcp.Proxy (local-vs-upstream dispatch) and
// internal/shell.BlockFunc (command-shape matching), generalized into the
// layered command taxonomy spec.md §3/§4.4 requires — the central redesign
// of this exercise, since the teacher exposes one MCP tool per concern
// (Shell, Edit, Read, Grep, SubAgent, ...) rather than one Bash tool whose
// command string carries the dispatch decision.
package router

import "strings"

// Class is the outcome of classifying a trimmed command string.
type Class int

const (
	ClassNative Class = iota
	ClassBuiltin
	ClassExtension
)

// builtinNames is the fixed set of first-token builtins, per spec.md §3.
var builtinNames = map[string]bool{
	"read":      true,
	"write":     true,
	"edit":      true,
	"glob":      true,
	"search":    true,
	"bash":      true,
	"TodoWrite": true,
}

// skillManagementPrefixes are builtin-classified but dispatch to the
// skill-management handler rather than the generic builtin table. spec.md's
// Open Questions note two divergent definitions of this family in the
// source (one with skill search/enhance/list, one with only skill:load);
// per spec.md we treat the router's closed set — skill:load only — as
// authoritative and do not implement the wider family.
var skillManagementPrefixes = []string{"skill:load"}

// Classify categorizes a trimmed command string into exactly one class.
func Classify(command string) Class {
	command = strings.TrimSpace(command)

	if strings.HasPrefix(command, "mcp:") {
		return ClassExtension
	}
	if strings.HasPrefix(command, "task:") {
		return ClassExtension
	}
	if isSkillTwoColon(command) {
		return ClassExtension
	}
	for _, p := range skillManagementPrefixes {
		if command == p || strings.HasPrefix(command, p+" ") || strings.HasPrefix(command, p+":") {
			return ClassBuiltin
		}
	}
	if first := firstToken(command); builtinNames[first] {
		return ClassBuiltin
	}
	return ClassNative
}

// isSkillTwoColon reports whether command matches "skill:<a>:<b>..." with
// at least two colons and non-empty middle and tail segments — the
// extension-path skill invocation, distinct from the builtin "skill:load".
func isSkillTwoColon(command string) bool {
	if !strings.HasPrefix(command, "skill:") {
		return false
	}
	rest := strings.TrimPrefix(command, "skill:")
	idx := strings.IndexByte(rest, ':')
	if idx <= 0 {
		return false
	}
	middle := rest[:idx]
	tail := rest[idx+1:]
	// tail may have trailing arguments after a space; only the segment up
	// to the next whitespace needs to be non-empty.
	tailHead := tail
	if sp := strings.IndexAny(tail, " \t"); sp >= 0 {
		tailHead = tail[:sp]
	}
	return middle != "" && tailHead != ""
}

// firstToken returns the first whitespace-delimited token of command.
func firstToken(command string) string {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
