package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/filesearch"
)

// SearchArgs are the arguments for the search builtin.
type SearchArgs struct {
	Pattern       string `json:"pattern"`
	CaseSensitive bool   `json:"case_sensitive,omitempty"`
	MaxResults    int    `json:"max_results,omitempty"`
}

// SearchSchema is the JSON schema for search's arguments.
const SearchSchema = `{
	"type": "object",
	"properties": {
		"pattern":        {"type": "string", "description": "Regular expression searched across file contents"},
		"case_sensitive": {"type": "boolean", "description": "Case-sensitive match (default false)"},
		"max_results":    {"type": "integer", "description": "Cap the number of matches returned (default 200)"}
	},
	"required": ["pattern"]
}`

// SearchHandler performs content search. Grounded on filesearch.Searcher
// with Options.ContentSearch true.
type SearchHandler struct {
	Root string
}

func (h *SearchHandler) Handle(ctx context.Context, arguments json.RawMessage) (chat.ToolResult, error) {
	var args SearchArgs
	if err := json.Unmarshal(arguments, &args); err != nil {
		return errResult(chat.CategoryInvalidUsage, "Invalid arguments: %v", err)
	}
	if args.Pattern == "" {
		return errResult(chat.CategoryInvalidUsage, "Pattern cannot be empty")
	}

	root := h.Root
	if root == "" {
		root = getwd()
	}
	searcher, err := filesearch.NewSearcher(root)
	if err != nil {
		return errResult(chat.CategoryExecutionError, "Failed to initialize search: %v", err)
	}

	maxResults := args.MaxResults
	if maxResults <= 0 {
		maxResults = 200
	}

	results, err := searcher.Search(ctx, filesearch.Options{
		Pattern:       args.Pattern,
		ContentSearch: true,
		CaseSensitive: args.CaseSensitive,
		MaxResults:    maxResults,
		RootDir:       root,
	})
	if err != nil {
		return errResult(chat.CategoryInvalidUsage, "%v", err)
	}
	if len(results) == 0 {
		return textResult("No matches.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d match(es):\n", len(results))
	for _, r := range results {
		fmt.Fprintf(&b, "%s:%d: %s\n", r.Path, r.Line, r.Content)
	}
	return textResult(b.String())
}
