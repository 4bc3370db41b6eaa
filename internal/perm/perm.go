// Package perm implements the tool-visibility filter shared by the root
// agent and every sub-agent it spawns. Grounded on the allow-list filtering
// the teacher inlines in internal/mcptools/subagent.go's filterSubAgentTool
// and internal/subagent.FilterTools, generalized into the general
// include/exclude-prefix model spec.md §3 requires.
package perm

import "strings"

// Include is a tagged variant: either every tool ("all") or a concrete set
// of tool names.
type Include struct {
	all  bool
	set  map[string]struct{}
}

// All selects every tool.
func All() Include { return Include{all: true} }

// Set selects exactly the named tools.
func Set(names ...string) Include {
	s := make(map[string]struct{}, len(names))
	for _, n := range names {
		s[n] = struct{}{}
	}
	return Include{set: s}
}

// None selects no tools.
func None() Include { return Include{set: map[string]struct{}{}} }

func (i Include) selects(name string) bool {
	if i.all {
		return true
	}
	_, ok := i.set[name]
	return ok
}

// Permissions pairs an Include selection with an ordered list of exclude
// prefixes. Filtering starts from Include's selection; for each remaining
// tool name, it is dropped if any Exclude prefix matches.
type Permissions struct {
	Include Include
	Exclude []string
}

// excluded reports whether name is dropped by any configured prefix.
func (p Permissions) excluded(name string) bool {
	for _, prefix := range p.Exclude {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// Allows reports whether a single tool name survives this filter.
func (p Permissions) Allows(name string) bool {
	return p.Include.selects(name) && !p.excluded(name)
}

// Filter returns the subset of names allowed by p, preserving input order.
// Filter is a pure function: Filter(Filter(names, p), p) == Filter(names, p)
// for any names and p, since Allows depends only on its argument.
func Filter[T any](items []T, name func(T) string, p Permissions) []T {
	out := make([]T, 0, len(items))
	for _, item := range items {
		if p.Allows(name(item)) {
			out = append(out, item)
		}
	}
	return out
}
