package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/filesearch"
)

// GlobArgs are the arguments for the glob builtin.
type GlobArgs struct {
	Pattern    string `json:"pattern"`
	MaxResults int    `json:"max_results,omitempty"`
}

// GlobSchema is the JSON schema for glob's arguments.
const GlobSchema = `{
	"type": "object",
	"properties": {
		"pattern":     {"type": "string", "description": "Regular expression matched against filenames and relative paths"},
		"max_results": {"type": "integer", "description": "Cap the number of matches returned (default 100)"}
	},
	"required": ["pattern"]
}`

// GlobHandler matches file names/paths by regex. Grounded on
// filesearch.Searcher with Options.ContentSearch left false — the teacher's
// grep tool (internal/mcp_tools/grep.go) combined name and content search
// behind one handler; split here into dedicated glob/search builtins per
// the router's fixed builtin set.
type GlobHandler struct {
	Root string
}

func (h *GlobHandler) Handle(ctx context.Context, arguments json.RawMessage) (chat.ToolResult, error) {
	var args GlobArgs
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
		maxResults = 100
	}

	results, err := searcher.Search(ctx, filesearch.Options{
		Pattern:    args.Pattern,
		MaxResults: maxResults,
		RootDir:    root,
	})
	if err != nil {
		return errResult(chat.CategoryInvalidUsage, "%v", err)
	}
	if len(results) == 0 {
		return textResult("No files matched.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d file(s) matched:\n", len(results))
	for _, r := range results {
		fmt.Fprintf(&b, "%s\n", r.Path)
	}
	return textResult(b.String())
}
