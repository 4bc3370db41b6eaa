// Package toolset implements the model-facing tool surface: declared tool
// definitions, JSON-Schema argument validation, and a cancellable-future
// dispatch contract. Grounded on internal/mcp.Proxy.CallTool's local-handler
// lookup (name -> func) and internal/mcptools/helpers.go's toolError
// convention, generalized into spec.md §4.3's explicit unknown-tool /
// invalid-parameters / execution-error taxonomy and the cancellable future
// every Handle call must return.
//
// Schema validation is new domain-stack wiring not present in the teacher
// (which trusts the model's JSON without validating it against the
// declared schema): github.com/santhosh-tekuri/jsonschema/v5, the same
// library haasonsaas-nexus uses for its websocket request schemas
// (internal/gateway/ws_schema.go), compiles each tool's declared schema
// once at registration time.
package toolset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/synapse-agent/synapse/internal/chat"
)

// Definition is a tool as declared to the model.
type Definition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Handler executes a tool call's parsed arguments and returns the outcome.
// An error return is mapped to an execution_error result by the Toolset;
// handlers that can distinguish their own failure categories should instead
// return a chat.ToolResult with IsError set directly.
type Handler func(ctx context.Context, arguments json.RawMessage) (chat.ToolResult, error)

type entry struct {
	def     Definition
	schema  *jsonschema.Schema
	handler Handler
}

// Toolset maps tool names to handlers and validates arguments against each
// tool's declared JSON schema before invoking it.
type Toolset struct {
	entries map[string]entry
	order   []string
}

// New creates an empty Toolset.
func New() *Toolset {
	return &Toolset{entries: make(map[string]entry)}
}

// Register compiles def's schema and adds it to the set under def.Name.
// A malformed schema is a programmer error; Register logs and skips
// validation for that tool rather than panicking, so a bad schema on one
// tool cannot take the whole agent down.
func (t *Toolset) Register(def Definition, h Handler) {
	var compiled *jsonschema.Schema
	if len(def.InputSchema) > 0 {
		c := jsonschema.NewCompiler()
		if err := c.AddResource(def.Name, bytes.NewReader(def.InputSchema)); err != nil {
			log.Warn().Str("tool", def.Name).Err(err).Msg("toolset: schema add failed, skipping validation")
		} else if s, err := c.Compile(def.Name); err != nil {
			log.Warn().Str("tool", def.Name).Err(err).Msg("toolset: schema compile failed, skipping validation")
		} else {
			compiled = s
		}
	}

	if _, exists := t.entries[def.Name]; !exists {
		t.order = append(t.order, def.Name)
	}
	t.entries[def.Name] = entry{def: def, schema: compiled, handler: h}
}

// Tools returns the declared tool definitions visible to the model, in
// registration order.
func (t *Toolset) Tools() []Definition {
	out := make([]Definition, 0, len(t.order))
	for _, name := range t.order {
		out = append(out, t.entries[name].def)
	}
	return out
}

// Handle looks up call.Name, validates call.Arguments, and dispatches to
// the registered handler. It always returns a non-nil *Future; the future
// never panics out of existence even if the handler itself panics.
func (t *Toolset) Handle(ctx context.Context, call chat.ToolCall) *Future {
	e, ok := t.entries[call.Name]
	if !ok {
		return completed(chat.ToolResult{
			ToolCallID: call.ID,
			IsError:    true,
			Message:    fmt.Sprintf("Unknown tool: %s", call.Name),
			Category:   chat.CategoryUnknownTool,
		})
	}

	args := json.RawMessage(call.Arguments)
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	var parsed interface{}
	if err := json.Unmarshal(args, &parsed); err != nil {
		return completed(chat.ToolResult{
			ToolCallID: call.ID,
			IsError:    true,
			Message:    fmt.Sprintf("invalid parameters: %v", err),
			Category:   chat.CategoryInvalidUsage,
		})
	}

	if e.schema != nil {
		if err := e.schema.Validate(parsed); err != nil {
			return completed(chat.ToolResult{
				ToolCallID: call.ID,
				IsError:    true,
				Message:    fmt.Sprintf("invalid parameters: %v", err),
				Category:   chat.CategoryInvalidUsage,
			})
		}
	}

	return run(ctx, call.ID, e.handler, args)
}
