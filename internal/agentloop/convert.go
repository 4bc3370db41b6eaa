package agentloop

import (
	"encoding/json"

	"github.com/synapse-agent/synapse/internal/chat"
	"github.com/synapse-agent/synapse/internal/provider"
	"github.com/synapse-agent/synapse/internal/toolset"
)

// toProviderMessages converts the canonical chat history into the shape
// provider.Provider.ChatStream expects, splitting each chat.ToolResult into
// its own tool-role provider.Message the way the teacher's executeToolCalls
// does, and re-encoding ToolCall.Arguments (a string on chat.ToolCall) back
// into json.RawMessage for provider.ToolCall.
func toProviderMessages(history []chat.Message) []provider.Message {
	out := make([]provider.Message, 0, len(history))
	for _, m := range history {
		pm := provider.Message{
			Role:         string(m.Role),
			Content:      m.Content,
			Reasoning:    m.Reasoning,
			ToolCallID:   m.ToolCallID,
			CreatedAt:    m.CreatedAt,
			InputTokens:  m.InputTokens,
			OutputTokens: m.OutputTokens,
		}
		if len(m.ToolCalls) > 0 {
			pm.ToolCalls = make([]provider.ToolCall, len(m.ToolCalls))
			for i, tc := range m.ToolCalls {
				pm.ToolCalls[i] = provider.ToolCall{
					ID:        tc.ID,
					Name:      tc.Name,
					Arguments: json.RawMessage(tc.Arguments),
				}
			}
		}
		out = append(out, pm)
	}
	return out
}

// toProviderTools converts declared toolset definitions into provider.Tool.
func toProviderTools(defs []toolset.Definition) []provider.Tool {
	out := make([]provider.Tool, len(defs))
	for i, d := range defs {
		out[i] = provider.Tool{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  d.InputSchema,
		}
	}
	return out
}
