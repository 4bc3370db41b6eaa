// Package chat defines the agent core's wire-independent data model: messages,
// tool calls, and tool results, as they live in conversation history.
package chat

import "time"

// Role identifies who authored a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a conversation history. Messages are immutable
// once appended to history — callers must copy before mutating in place
// (the agent loop's recitation injector, offload pass and repetition guard
// are the sanctioned exceptions, see internal/agentloop).
type Message struct {
	Role Role

	// Content holds the message's text, already folded from any streamed
	// parts. Reasoning holds thinking/chain-of-thought content separately,
	// matching the teacher's flattened Message shape rather than a
	// generic content-part list — the ordering guarantee in spec.md §4.2
	// ("content parts preserve first-seen order") is satisfied because
	// Content/Reasoning are themselves built by strict concatenation.
	Content   string
	Reasoning string

	// ToolCalls is set only on assistant messages that invoked tools.
	ToolCalls []ToolCall

	// ToolCallID is set only on tool-role messages, pairing the result
	// back to the call that produced it.
	ToolCallID string

	CreatedAt time.Time

	InputTokens  int
	OutputTokens int
}

// ToolCall is a single tool invocation parsed from an assistant turn.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string // canonical JSON; "" is normalized to "{}" at assembly time
}

// ResultCategory classifies why a tool result is an error, per spec.md §7.
type ResultCategory string

const (
	CategoryNone           ResultCategory = ""
	CategoryUnknownTool    ResultCategory = "unknown_tool"
	CategoryInvalidUsage   ResultCategory = "invalid_usage"
	CategoryExecutionError ResultCategory = "execution_error"
)

// ToolResult is the outcome of executing one ToolCall. Every ToolCall
// started by a step must eventually be paired with exactly one ToolResult
// bearing the same ToolCallID, even on failure or cancellation.
type ToolResult struct {
	ToolCallID string

	IsError bool

	// Output is the text visible to the model.
	Output string
	// Message is diagnostic text appended after Output (e.g. a stderr block
	// or an error explanation); may be empty.
	Message string
	// Brief is a short user-facing summary, distinct from the model-facing
	// Output/Message (e.g. for CLI status lines).
	Brief string

	Category ResultCategory
}

// Text renders the result the way it is appended to conversation history:
// Output, then a blank line, then Message if non-empty.
func (r ToolResult) Text() string {
	if r.Message == "" {
		return r.Output
	}
	return r.Output + "\n\n" + r.Message
}

// ToMessage converts a settled ToolResult into the tool-role history message
// spec.md §4.6 step 2d describes.
func ToMessage(r ToolResult, at time.Time) Message {
	return Message{
		Role:       RoleTool,
		Content:    r.Text(),
		ToolCallID: r.ToolCallID,
		CreatedAt:  at,
	}
}
